package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tickvault configuration.
type Config struct {
	// Storage configures the local monthly file tree.
	Storage StorageConfig `yaml:"storage"`

	// Remote configures the S3-compatible object store (Cloudflare R2).
	Remote RemoteConfig `yaml:"remote"`

	// Upload configures the retrying upload pipeline.
	Upload UploadConfig `yaml:"upload"`

	// Ledger configures the progress ledger database.
	Ledger LedgerConfig `yaml:"ledger"`

	// Collector configures the upstream price API client.
	Collector CollectorConfig `yaml:"collector"`

	// Assets lists the monitored (ticker, exchange) pairs.
	Assets []AssetConfig `yaml:"assets"`
}

// StorageConfig configures the local monthly file tree.
type StorageConfig struct {
	// DataDir is the root directory for all monthly parquet files.
	DataDir string `yaml:"data_dir"`

	// Compression configures parquet compression.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures Parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// RemoteConfig configures the S3-compatible object store.
type RemoteConfig struct {
	// Bucket is the target bucket name.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every remote key. May be empty.
	Prefix string `yaml:"prefix"`

	// EndpointURL is the S3-compatible endpoint
	// (e.g. "https://<account>.r2.cloudflarestorage.com").
	EndpointURL string `yaml:"endpoint_url"`

	// Region for request signing. R2 uses "auto".
	Region string `yaml:"region"`

	// AccessKeyID and SecretAccessKey authenticate against the store.
	// Normally supplied via R2_ACCESS_KEY_ID / R2_SECRET_ACCESS_KEY.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// UploadConfig configures the retrying upload pipeline.
type UploadConfig struct {
	// MaxAttempts is the per-file attempt limit.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay Duration `yaml:"base_delay"`

	// Workers bounds concurrent uploads across distinct months.
	Workers int `yaml:"workers"`

	// PerFileTimeout caps one file's upload including retries.
	PerFileTimeout Duration `yaml:"per_file_timeout"`

	// MinMonthAge skips months younger than this many months
	// (0 uploads everything, including the still-accumulating month).
	MinMonthAge int `yaml:"min_month_age"`
}

// LedgerConfig configures the progress ledger database connection.
type LedgerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	MinConns int `yaml:"min_conns"`
	MaxConns int `yaml:"max_conns"`
}

// CollectorConfig configures the upstream price API client.
type CollectorConfig struct {
	// BaseURL of the price API.
	BaseURL string `yaml:"base_url"`

	// Token authenticates API requests. Normally supplied via TIINGO_TOKEN.
	Token string `yaml:"token"`

	// ResampleFreq is the bar resolution requested from the API.
	ResampleFreq string `yaml:"resample_freq"`

	// MaxRetries and RetryBackoff configure request retries.
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`

	// Timeout is the HTTP client timeout.
	Timeout Duration `yaml:"timeout"`
}

// AssetConfig describes one monitored (ticker, exchange) pair.
type AssetConfig struct {
	Ticker   string `yaml:"ticker"`
	Exchange string `yaml:"exchange"`

	// StartDate is the earliest date to backfill, "YYYY-MM-DD".
	StartDate string `yaml:"start_date"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "./data",
			Compression: CompressionConfig{
				Algorithm: "zstd",
				Level:     3,
			},
		},
		Remote: RemoteConfig{
			Bucket: "crypto-data-tiingo",
			Region: "auto",
		},
		Upload: UploadConfig{
			MaxAttempts:    3,
			BaseDelay:      Duration(time.Second),
			Workers:        4,
			PerFileTimeout: Duration(5 * time.Minute),
			MinMonthAge:    0,
		},
		Ledger: LedgerConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "tickvault",
			Name:     "tickvault",
			SSLMode:  "prefer",
			MinConns: 1,
			MaxConns: 4,
		},
		Collector: CollectorConfig{
			BaseURL:      "https://api.tiingo.com/tiingo/crypto/prices",
			ResampleFreq: "1Min",
			MaxRetries:   3,
			RetryBackoff: Duration(time.Second),
			Timeout:      Duration(30 * time.Second),
		},
	}
}

// applyEnvOverrides applies environment variable overrides for secrets and
// deployment-specific paths.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOCAL_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("R2_ENDPOINT_URL"); v != "" {
		c.Remote.EndpointURL = v
	}
	if v := os.Getenv("R2_BUCKET_NAME"); v != "" {
		c.Remote.Bucket = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		c.Remote.AccessKeyID = v
	}
	if v := os.Getenv("R2_SECRET_ACCESS_KEY"); v != "" {
		c.Remote.SecretAccessKey = v
	}
	if v := os.Getenv("TIINGO_TOKEN"); v != "" {
		c.Collector.Token = v
	}
	if v := os.Getenv("LEDGER_PASSWORD"); v != "" {
		c.Ledger.Password = v
	}
}
