package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigSaveAndLoad(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg := CLIConfig{ServerURL: "http://myhost:9090"}
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(tmp, ".config", "blogc", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not found: %v", err)
	}

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ServerURL != cfg.ServerURL {
		t.Errorf("server_url = %q, want %q", loaded.ServerURL, cfg.ServerURL)
	}
}

func TestConfigLoadMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.ServerURL != "" {
		t.Error("expected zero-value config for missing file")
	}
}

func TestConfigLoadInvalid(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	path := filepath.Join(tmp, ".config", "blogc", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("server_url: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetServerURLFromEnv(t *testing.T) {
	t.Setenv("BLOGC_SERVER_URL", "http://custom:1234")
	t.Setenv("HOME", t.TempDir())

	if url := getServerURL(); url != "http://custom:1234" {
		t.Errorf("url = %q, want %q", url, "http://custom:1234")
	}
}

func TestGetServerURLFromConfig(t *testing.T) {
	t.Setenv("BLOGC_SERVER_URL", "")
	t.Setenv("HOME", t.TempDir())

	if err := saveConfig(CLIConfig{ServerURL: "http://saved:7000"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if url := getServerURL(); url != "http://saved:7000" {
		t.Errorf("url = %q, want %q", url, "http://saved:7000")
	}
}

func TestGetServerURLDefault(t *testing.T) {
	t.Setenv("BLOGC_SERVER_URL", "")
	t.Setenv("HOME", t.TempDir())

	if url := getServerURL(); url != "http://localhost:8080" {
		t.Errorf("url = %q, want %q", url, "http://localhost:8080")
	}
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://blog.example.com/", "https://blog.example.com", false},
		{" http://localhost:8080 ", "http://localhost:8080", false},
		{"http://host:1/prefix/", "http://host:1/prefix", false},
		{"blog.example.com", "", true},
		{"ftp://blog.example.com", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeServerURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeServerURL(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeServerURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestResolveServerURLSource(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Setenv("BLOGC_SERVER_URL", "")
	if u, src := resolveServerURL(); u != defaultServerURL || src != sourceDefault {
		t.Errorf("got %q from %s, want the default", u, src)
	}

	if err := saveConfig(CLIConfig{ServerURL: "http://saved:7000/"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if u, src := resolveServerURL(); u != "http://saved:7000" || src != sourceConfig {
		t.Errorf("got %q from %s, want the saved url", u, src)
	}

	t.Setenv("BLOGC_SERVER_URL", "not a url")
	if u, src := resolveServerURL(); u != "http://saved:7000" || src != sourceConfig {
		t.Errorf("unusable env value should be skipped, got %q from %s", u, src)
	}

	t.Setenv("BLOGC_SERVER_URL", "https://env.example.com")
	if u, src := resolveServerURL(); u != "https://env.example.com" || src != sourceEnv {
		t.Errorf("got %q from %s, want the env url", u, src)
	}
}
