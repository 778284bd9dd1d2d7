package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}

	if err := c.Upload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("upload: %w", err))
	}

	if err := c.Collector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("collector: %w", err))
	}

	for i, a := range c.Assets {
		if err := a.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("assets[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	switch c.Compression.Algorithm {
	case "", "none", "snappy", "zstd", "lz4", "gzip":
	default:
		errs = append(errs, fmt.Errorf("unknown compression algorithm %q", c.Compression.Algorithm))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the remote store configuration.
func (c *RemoteConfig) Validate() error {
	var errs []error

	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the upload configuration.
func (c *UploadConfig) Validate() error {
	var errs []error

	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max_attempts must be positive"))
	}

	if c.BaseDelay <= 0 {
		errs = append(errs, errors.New("base_delay must be positive"))
	}

	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if c.MinMonthAge < 0 {
		errs = append(errs, errors.New("min_month_age must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the collector configuration.
func (c *CollectorConfig) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks one monitored asset.
func (a *AssetConfig) Validate() error {
	var errs []error

	if a.Ticker == "" {
		errs = append(errs, errors.New("ticker is required"))
	}

	if a.Exchange == "" {
		errs = append(errs, errors.New("exchange is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
