// Package middleware provides cross-cutting concerns for the tallying engine.
package middleware

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-scrutin/internal/ports"
)

// Metric names understood by PrometheusMetrics. Names outside this set are
// routed to the generic operation counter, gauge and histogram vectors.
const (
	MetricTabulations = "scrutin_tabulations_total"
	MetricRejections  = "scrutin_rejections_total"
	MetricDecodes     = "scrutin_decodes_total"
	MetricVoters      = "scrutin_voters"
	MetricChoices     = "scrutin_choices"

	metricStageDuration = "scrutin_stage_duration_seconds"
	metricOperations    = "scrutin_operations_total"
	metricSystemState   = "scrutin_system_state"
	metricValues        = "scrutin_values"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks tabulations, rejected submissions, token decodes and per-stage
// latency of the pipeline.
type PrometheusMetrics struct {
	tabulations      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	decodes          *prometheus.CounterVec
	voters           prometheus.Histogram
	choices          prometheus.Histogram
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	values           *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all of its collectors on reg. A nil reg selects the global default
// registerer. Collectors already registered with the same description are
// reused, so several instances may share one registry. Any other
// registration failure is returned as a *ports.MetricsError.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMetrics{}
	var err error

	if pm.tabulations, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricTabulations,
			Help: "Ballot sets tabulated, by outcome.",
		},
		[]string{"status", "scale"},
	)); err != nil {
		return nil, ports.NewMetricsError(MetricTabulations, "register", err)
	}
	if pm.rejections, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricRejections,
			Help: "Ballot sets rejected before tabulation, by reason.",
		},
		[]string{"reason"},
	)); err != nil {
		return nil, ports.NewMetricsError(MetricRejections, "register", err)
	}
	if pm.decodes, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricDecodes,
			Help: "Result tokens decoded, by outcome.",
		},
		[]string{"status"},
	)); err != nil {
		return nil, ports.NewMetricsError(MetricDecodes, "register", err)
	}
	if pm.voters, err = register(reg, prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricVoters,
			Help:    "Number of ballots per tabulated ballot set.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)); err != nil {
		return nil, ports.NewMetricsError(MetricVoters, "register", err)
	}
	if pm.choices, err = register(reg, prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricChoices,
			Help:    "Number of choices per tabulated ballot set.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)); err != nil {
		return nil, ports.NewMetricsError(MetricChoices, "register", err)
	}

	// General execution metrics shared by every pipeline stage.
	if pm.executionLatency, err = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricStageDuration,
			Help:    "Execution time of pipeline stages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "unit"},
	)); err != nil {
		return nil, ports.NewMetricsError(metricStageDuration, "register", err)
	}
	if pm.operationCounter, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricOperations,
			Help: "Total number of operations performed by the engine.",
		},
		[]string{"operation", "status", "unit"},
	)); err != nil {
		return nil, ports.NewMetricsError(metricOperations, "register", err)
	}
	if pm.systemGauges, err = register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: metricSystemState,
			Help: "Current system state values.",
		},
		[]string{"metric", "unit"},
	)); err != nil {
		return nil, ports.NewMetricsError(metricSystemState, "register", err)
	}
	if pm.values, err = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricValues,
			Help:    "Distribution of engine values without a dedicated histogram.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"metric", "unit"},
	)); err != nil {
		return nil, ports.NewMetricsError(metricValues, "register", err)
	}

	return pm, nil
}

// register adds c to reg, or returns the identical collector reg already
// holds.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricTabulations:
		pm.tabulations.WithLabelValues(
			labelOr(labels, "status", "success"),
			labelOr(labels, "scale", "unknown"),
		).Add(value)
	case MetricRejections:
		pm.rejections.WithLabelValues(labelOr(labels, "reason", "unknown")).Add(value)
	case MetricDecodes:
		pm.decodes.WithLabelValues(labelOr(labels, "status", "success")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(
			metric, labelOr(labels, "status", "success"), unitLabel(labels),
		).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricVoters:
		pm.voters.Observe(value)
	case MetricChoices:
		pm.choices.Observe(value)
	default:
		pm.values.WithLabelValues(metric, unitLabel(labels)).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
