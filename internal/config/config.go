// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// MemoryBackend is the DATABASE value selecting the in-memory backend.
const MemoryBackend = "mem"

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	ServerPort int
	ServerEnv  string // "development" or "production"

	// Backend selection: Database is a database name, or "mem" for the
	// in-memory backend with snapshots.
	Database         string
	DatabaseUser     string
	DatabasePassword string
	DatabaseHost     string
	DatabaseMaxConn  int
	DatabaseMinConn  int

	// Valkey. Optional; when set the credential registry is Valkey-backed.
	ValkeyURL string

	// Snapshots (in-memory backend only)
	SnapshotPath     string
	SnapshotInterval time.Duration

	// Uploads
	UploadDir       string
	MaxUploadSizeMB int

	// Shutdown endpoint. Empty disables it.
	ShutdownToken string
}

// Load reads configuration from environment variables. It returns an error if
// any variable is set but cannot be parsed, or if a required value is missing;
// all problems are reported at once.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerPort: p.int("PORT", 3333),
		ServerEnv:  envStr("SERVER_ENV", "production"),

		Database:         envStr("DATABASE", ""),
		DatabaseUser:     envStr("DATABASE_USER", "postgres"),
		DatabasePassword: envStr("DATABASE_PASSWORD", ""),
		DatabaseHost:     envStr("DATABASE_HOST", "localhost:5432"),
		DatabaseMaxConn:  p.int("DATABASE_MAX_CONNS", 25),
		DatabaseMinConn:  p.int("DATABASE_MIN_CONNS", 5),

		ValkeyURL: envStr("VALKEY_URL", ""),

		SnapshotPath:     envStr("SNAPSHOT_PATH", "docker/data/mem.json"),
		SnapshotInterval: p.duration("SNAPSHOT_INTERVAL", time.Minute),

		UploadDir:       envStr("UPLOAD_DIR", "docker/data/uploads"),
		MaxUploadSizeMB: p.int("MAX_UPLOAD_SIZE_MB", 50),

		ShutdownToken: envStr("SHUTDOWN_TOKEN", ""),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// UseMemoryBackend returns true when the in-memory backend is selected.
func (c *Config) UseMemoryBackend() bool {
	return c.Database == MemoryBackend
}

// DatabaseURL assembles the connection string for the SQL backend.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.DatabaseUser), url.QueryEscape(c.DatabasePassword),
		c.DatabaseHost, url.PathEscape(c.Database))
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// BodyLimitBytes returns the maximum request body size, derived from
// MaxUploadSizeMB with a small margin for multipart framing overhead.
func (c *Config) BodyLimitBytes() int {
	return (c.MaxUploadSizeMB + 1) * 1024 * 1024
}

func (c *Config) validate() error {
	var errs []error

	if c.Database == "" {
		errs = append(errs, fmt.Errorf("DATABASE is required (a database name, or %q for the in-memory backend)", MemoryBackend))
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535"))
	}
	if c.DatabaseMaxConn < 1 {
		errs = append(errs, fmt.Errorf("DATABASE_MAX_CONNS must be at least 1"))
	}
	if c.DatabaseMinConn < 0 {
		errs = append(errs, fmt.Errorf("DATABASE_MIN_CONNS must not be negative"))
	}
	if c.DatabaseMinConn > c.DatabaseMaxConn {
		errs = append(errs, fmt.Errorf("DATABASE_MIN_CONNS (%d) must not exceed DATABASE_MAX_CONNS (%d)", c.DatabaseMinConn, c.DatabaseMaxConn))
	}
	if c.MaxUploadSizeMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_MB must be at least 1"))
	}
	if c.UseMemoryBackend() && c.SnapshotInterval < time.Second {
		errs = append(errs, fmt.Errorf("SNAPSHOT_INTERVAL must be at least 1s"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected duration like \"60s\" or \"5m\")", key, v))
		return fallback
	}
	return d
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
