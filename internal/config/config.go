// Package config loads service settings: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"specsharp/internal/engine"
)

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	Engine   EngineConfig   `yaml:"engine"`
	Quota    QuotaConfig    `yaml:"quota"`
	Drift    DriftConfig    `yaml:"drift"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	TaxonomyKey   string `yaml:"taxonomy_key"`
}

// Enabled reports whether enough is set to reach the bucket.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

type TaxonomyConfig struct {
	// Path is the taxonomy document on disk. Empty uses the compiled-in
	// default and disables watching.
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

type EngineConfig = engine.Config

type QuotaConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	DefaultIncluded int           `yaml:"default_included"`
}

type DriftConfig struct {
	Tolerance float64 `yaml:"tolerance"`
}

func Default() Config {
	return Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AllowOrigins:    []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
		},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Storage:  StorageConfig{TaxonomyKey: "taxonomy/taxonomy_export.yaml"},
		Taxonomy: TaxonomyConfig{Watch: true, Debounce: 500 * time.Millisecond},
		Engine:   engine.DefaultConfig(),
		Quota:    QuotaConfig{Timeout: 2 * time.Second, DefaultIncluded: 25},
		Drift:    DriftConfig{Tolerance: 0.01},
	}
}

// Load reads path (optional: "" or a missing file keeps the defaults),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.applyEnvOverrides(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("APP_ENV", &c.Env)
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("LOG_LEVEL", &c.Log.Level)
	set("DATABASE_URL", &c.Database.URL)
	set("JWT_SECRET", &c.Auth.JWTSecret)
	set("R2_ENDPOINT", &c.Storage.Endpoint)
	set("R2_ACCESS_KEY", &c.Storage.AccessKey)
	set("R2_SECRET_KEY", &c.Storage.SecretKey)
	set("R2_BUCKET_NAME", &c.Storage.Bucket)
	set("R2_PUBLIC_BASE_URL", &c.Storage.PublicBaseURL)
	set("TAXONOMY_PATH", &c.Taxonomy.Path)

	if v := getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.HTTP.AllowOrigins = strings.Split(v, ",")
	}
	if v := getenv("QUOTA_DEFAULT_INCLUDED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUOTA_DEFAULT_INCLUDED: %w", err)
		}
		c.Quota.DefaultIncluded = n
	}
	return nil
}

func (c Config) Production() bool { return c.Env == "production" }

func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug|info|warn|error", c.Log.Level))
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, errors.New("database.max_conns must be >= database.min_conns"))
	}
	if c.Production() && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 bytes in production"))
	}
	if c.Quota.Timeout < 0 {
		errs = append(errs, errors.New("quota.timeout must be >= 0"))
	}
	if c.Quota.DefaultIncluded < 0 {
		errs = append(errs, errors.New("quota.default_included must be >= 0"))
	}
	if c.Drift.Tolerance < 0 {
		errs = append(errs, errors.New("drift.tolerance must be >= 0"))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	return errors.Join(errs...)
}
