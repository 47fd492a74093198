package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur at the edges of the system.
var (
	// ErrRateLimited indicates that the caller exceeded the request rate.
	ErrRateLimited = errors.New("rate limited")

	// ErrPayloadTooLarge indicates that an upload exceeded the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMedia indicates that an upload is not a CSV file.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
