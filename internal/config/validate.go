// Package config provides configuration parsing and validation for obtree.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateTreeConfig(&config.Tree)...)
	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	errs = append(errs, validateMetricsConfig(&config.Metrics)...)

	return errs
}

func validateTreeConfig(config *TreeConfig) []error {
	if config.Degree != 0 && config.Degree < 2 {
		return []error{ValidationError{
			Field:   "tree.degree",
			Message: "must be 0 (default) or at least 2",
		}}
	}
	return nil
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	switch config.Backend {
	case BackendMemory:
	case BackendFile, BackendPebble:
		if config.Dir == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.dir",
				Message: fmt.Sprintf("is required for the %s backend", config.Backend),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "must be memory, file, or pebble",
		})
	}

	if config.CacheSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.cacheSize",
			Message: "must be non-negative",
		})
	}

	if config.PebbleCache != "" {
		if _, err := humanize.ParseBytes(config.PebbleCache); err != nil {
			errs = append(errs, ValidationError{
				Field:   "storage.pebbleCache",
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

func validateMetricsConfig(config *MetricsConfig) []error {
	if !config.Enabled {
		return nil
	}
	if err := validateAddress(config.Address); err != nil {
		return []error{ValidationError{
			Field:   "metrics.address",
			Message: err.Error(),
		}}
	}
	return nil
}

// validateAddress validates a network address in host:port format.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrap(err, "invalid address format")
	}
	if port == "" {
		return errors.New("port is required")
	}
	return nil
}

// PebbleCacheBytes returns the configured pebble block cache size. Invalid
// or empty values yield zero, which keeps pebble's default.
func (c StorageConfig) PebbleCacheBytes() int64 {
	n, err := humanize.ParseBytes(c.PebbleCache)
	if err != nil {
		return 0
	}
	return int64(n)
}
