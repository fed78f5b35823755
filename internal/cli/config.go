package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// The CLI only remembers where the comment server is. Everything the
// server itself reads (ports, limits, storage backends) lives in
// internal/config and is loaded by "blogc serve".
const (
	defaultServerURL = "http://localhost:8080"
	serverURLEnv     = "BLOGC_SERVER_URL"
)

// Where a resolved server URL came from.
const (
	sourceEnv     = "env"
	sourceConfig  = "config"
	sourceDefault = "default"
)

// CLIConfig is ~/.config/blogc/config.yaml, written by "blogc server-url".
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "blogc", "config.yaml"), nil
}

// loadConfig reads the CLI config. A missing file yields the zero config.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// normalizeServerURL accepts absolute http and https URLs and drops the
// trailing slash so API paths join onto it cleanly.
func normalizeServerURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid server URL: %s", raw)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// resolveServerURL picks the server URL: BLOGC_SERVER_URL, then the saved
// config, then the local default. Unusable values are skipped.
func resolveServerURL() (serverURL, source string) {
	if v := os.Getenv(serverURLEnv); v != "" {
		if u, err := normalizeServerURL(v); err == nil {
			return u, sourceEnv
		}
	}
	cfg, err := loadConfig()
	if err == nil && cfg.ServerURL != "" {
		if u, err := normalizeServerURL(cfg.ServerURL); err == nil {
			return u, sourceConfig
		}
	}
	return defaultServerURL, sourceDefault
}

func getServerURL() string {
	u, _ := resolveServerURL()
	return u
}
