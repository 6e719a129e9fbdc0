// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const megabyte = 1 << 20

// PublishConfig holds the optional destination the datamart is copied to
// after consolidation, plus credentials for each supported scheme.
type PublishConfig struct {
	// URL is the destination prefix: s3://bucket/prefix, gs://bucket/prefix,
	// az://container/prefix or file:///some/dir. Empty disables publishing.
	URL string

	// S3 fields are optional and nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	GCSKeyFile string

	AzureAccountName string
	AzureAccountKey  string
}

// Enabled reports whether a publish destination is configured.
func (p *PublishConfig) Enabled() bool {
	return p.URL != ""
}

// HasS3Config returns true if all required S3 fields are set.
func (p *PublishConfig) HasS3Config() bool {
	return p.S3KeyID != nil && p.S3Secret != nil && p.S3Region != nil
}

// Config holds the configuration for the pipeline, its ledger and the status API.
type Config struct {
	RawDir       string // directory scanned for source files (default "data/raw")
	ProcessedDir string // intermediate outputs (default "data/processed")
	DatamartDir  string // Parquet outputs and catalog (default "data/datamart")
	LedgerPath   string // SQLite run ledger (default "<DatamartDir>/../sonai_runs.sqlite")

	LogLevel  string // log level: debug, info, warn, error (default "info")
	LogFormat string // "text" (default) or "json"

	Workers     int           // extraction worker pool size (default 4)
	FileTimeout time.Duration // per-file extraction bound (default 2m)
	ProbeBytes  int           // CSV encoding probe window (default 1024)

	// Per-category size limits in bytes.
	MaxPDFBytes     int64
	MaxWordBytes    int64
	MaxTabularBytes int64

	Schedule string // cron expression for the schedule command

	ListenAddr string // HTTP listen address (default ":8080")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Publish PublishConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// MaxBytes returns the size limit for a handler category name.
func (c *Config) MaxBytes(category string) int64 {
	switch category {
	case "pdf":
		return c.MaxPDFBytes
	case "word":
		return c.MaxWordBytes
	case "tabular":
		return c.MaxTabularBytes
	default:
		return 0
	}
}

// EnsureDirs creates the raw, processed and datamart directories if absent.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.RawDir, c.ProcessedDir, c.DatamartDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Publish credentials are optional. The pipeline runs without them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		RawDir:       os.Getenv("SONAI_RAW_DIR"),
		ProcessedDir: os.Getenv("SONAI_PROCESSED_DIR"),
		DatamartDir:  os.Getenv("SONAI_DATAMART_DIR"),
		LedgerPath:   os.Getenv("SONAI_LEDGER_PATH"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		LogFormat:    os.Getenv("LOG_FORMAT"),
		Schedule:     os.Getenv("SONAI_SCHEDULE"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		Publish: PublishConfig{
			URL:              os.Getenv("SONAI_PUBLISH_URL"),
			GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		},
	}

	if v := os.Getenv("SONAI_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SONAI_WORKERS must be a positive integer, got %q", v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("SONAI_FILE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SONAI_FILE_TIMEOUT: %w", err)
		}
		cfg.FileTimeout = d
	}
	if v := os.Getenv("SONAI_PROBE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProbeBytes = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid SONAI_PROBE_BYTES %q", v))
		}
	}

	cfg.MaxPDFBytes = parseMegabytesEnv(cfg, "SONAI_MAX_PDF_MB", 50)
	cfg.MaxWordBytes = parseMegabytesEnv(cfg, "SONAI_MAX_WORD_MB", 30)
	cfg.MaxTabularBytes = parseMegabytesEnv(cfg, "SONAI_MAX_TABULAR_MB", 100)

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// S3 fields are optional, only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.Publish.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Publish.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Publish.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Publish.S3Region = &v
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.RawDir == "" {
		cfg.RawDir = "data/raw"
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = "data/processed"
	}
	if cfg.DatamartDir == "" {
		cfg.DatamartDir = "data/datamart"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "data/sonai_runs.sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.FileTimeout == 0 {
		cfg.FileTimeout = 2 * time.Minute
	}
	if cfg.ProbeBytes == 0 {
		cfg.ProbeBytes = 1024
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@daily"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if strings.HasPrefix(cfg.Publish.URL, "s3://") && !cfg.Publish.HasS3Config() {
		return nil, fmt.Errorf("SONAI_PUBLISH_URL is s3:// but KEY_ID, SECRET and REGION are not all set")
	}
	if strings.HasPrefix(cfg.Publish.URL, "az://") &&
		(cfg.Publish.AzureAccountName == "" || cfg.Publish.AzureAccountKey == "") {
		return nil, fmt.Errorf("SONAI_PUBLISH_URL is az:// but AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are not set")
	}
	if strings.HasPrefix(cfg.Publish.URL, "gs://") && cfg.Publish.GCSKeyFile == "" {
		cfg.Warnings = append(cfg.Warnings, "GCS_KEY_FILE not set, using application default credentials")
	}

	return cfg, nil
}

func parseMegabytesEnv(cfg *Config, key string, defaultMB int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultMB * megabyte
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid %s %q, using %d MB", key, v, defaultMB))
		return defaultMB * megabyte
	}
	return n * megabyte
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
