package ports

import (
	"context"
	"time"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like uploads, decode failures, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like ballot counts and
	// scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// BallotSource yields the raw ballot table: a header row of choice names
// followed by one row of mentions per voter.
type BallotSource interface {
	// ReadRows reads the whole table. Implementations should honor ctx
	// cancellation between rows.
	ReadRows(ctx context.Context) ([][]string, error)
}
