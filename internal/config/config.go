// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then an optional dotenv file, then
// BLOGC_* environment variables, then command line overrides.
// BLOGC_MAX_PAGE_SIZE=4 sets max_page_size.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/evcraddock/blogcomments/internal/comment"
	"github.com/evcraddock/blogcomments/internal/db"
	"github.com/evcraddock/blogcomments/internal/upload"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "BLOGC_"

// Blob and token backends.
const (
	BackendDisk   = "disk"
	BackendMinio  = "minio"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the server configuration.
type Config struct {
	Port    int    `koanf:"port"`
	DBPath  string `koanf:"db_path"`
	BaseURL string `koanf:"base_url"`
	DevMode bool   `koanf:"dev_mode"`

	MaxBlogs        int           `koanf:"max_blogs"`
	MaxPageSize     int           `koanf:"max_page_size"`
	DefaultPageSize int           `koanf:"default_page_size"`
	CommentLimit    int           `koanf:"comment_limit"`
	MaxImageBytes   int64         `koanf:"max_image_bytes"`
	UploadTTL       time.Duration `koanf:"upload_ttl"`

	BlobBackend string `koanf:"blob_backend"`
	BlobDir     string `koanf:"blob_dir"`

	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey string `koanf:"minio_secret_key"`
	MinioBucket    string `koanf:"minio_bucket"`
	MinioRegion    string `koanf:"minio_region"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`

	TokenBackend string `koanf:"token_backend"`
	RedisAddr    string `koanf:"redis_addr"`
}

func defaults() map[string]interface{} {
	limits := comment.DefaultLimits()
	return map[string]interface{}{
		"port":              8080,
		"db_path":           "",
		"base_url":          "",
		"dev_mode":          false,
		"max_blogs":         limits.MaxBlogs,
		"max_page_size":     limits.MaxPageSize,
		"default_page_size": limits.DefaultPageSize,
		"comment_limit":     limits.CommentLimit,
		"max_image_bytes":   limits.MaxImageBytes,
		"upload_ttl":        upload.DefaultTTL.String(),
		"blob_backend":      BackendDisk,
		"blob_dir":          "",
		"minio_bucket":      "blogc-images",
		"token_backend":     BackendSQLite,
		"redis_addr":        "localhost:6379",
	}
}

// Load reads the configuration. envFile may be empty; a missing file is
// not an error. overrides are keyed like the koanf tags and win over every
// other layer. Derived values such as the default base_url are filled in
// after the overrides, so a port override also moves the default base URL.
func Load(envFile string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if envFile != "" {
		err := k.Load(file.Provider(envFile), dotenv.ParserEnv(EnvPrefix, ".", envKey))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using environment", "path", envFile)
		case err != nil:
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.DBPath == "" {
		path, err := db.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.BlobDir == "" {
		cfg.BlobDir = defaultBlobDir(cfg.DBPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps BLOGC_MAX_PAGE_SIZE to max_page_size.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// defaultBlobDir keeps images next to the database.
func defaultBlobDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "images")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL))
	}
	if c.MaxBlogs < 1 {
		errs = append(errs, fmt.Errorf("max_blogs must be at least 1, got %d", c.MaxBlogs))
	}
	if c.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("max_page_size must be at least 1, got %d", c.MaxPageSize))
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, fmt.Errorf("default_page_size must be between 1 and max_page_size, got %d", c.DefaultPageSize))
	}
	if c.CommentLimit < 1 {
		errs = append(errs, fmt.Errorf("comment_limit must be at least 1, got %d", c.CommentLimit))
	}
	if c.MaxImageBytes < 1 {
		errs = append(errs, fmt.Errorf("max_image_bytes must be at least 1, got %d", c.MaxImageBytes))
	}
	if c.UploadTTL <= 0 {
		errs = append(errs, fmt.Errorf("upload_ttl must be positive, got %s", c.UploadTTL))
	}

	switch c.BlobBackend {
	case BackendDisk:
	case BackendMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			errs = append(errs, errors.New("minio_endpoint and minio_bucket are required for the minio blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob_backend must be %q or %q, got %q", BackendDisk, BackendMinio, c.BlobBackend))
	}

	switch c.TokenBackend {
	case BackendSQLite:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis token backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("token_backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.TokenBackend))
	}

	return errors.Join(errs...)
}

// Limits returns the comment limits the configuration selects.
func (c *Config) Limits() comment.Limits {
	return comment.Limits{
		MaxBlogs:        c.MaxBlogs,
		MaxPageSize:     c.MaxPageSize,
		DefaultPageSize: c.DefaultPageSize,
		CommentLimit:    c.CommentLimit,
		MaxImageBytes:   c.MaxImageBytes,
	}
}

// Minio returns the MinIO connection settings.
func (c *Config) Minio() upload.MinioConfig {
	return upload.MinioConfig{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		Region:    c.MinioRegion,
		UseSSL:    c.MinioUseSSL,
	}
}
