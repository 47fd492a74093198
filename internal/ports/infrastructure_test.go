package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  map[string]time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  make(map[string]time.Duration),
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies[operation] = duration
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

// staticSource implements BallotSource over an in-memory table.
type staticSource struct{ rows [][]string }

func (s staticSource) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.rows, nil
}

// stubCodec implements ResultCodec with a fixed token.
type stubCodec struct{ scale *domain.MentionScale }

func (c stubCodec) Encode(result *domain.ScrutinResult) (string, error) {
	return result.Winner, nil
}

func (c stubCodec) Decode(token string) (*domain.ScrutinResult, error) {
	if token == "" {
		return nil, domain.NewDecodeError(-1, "", "", domain.ErrEmptyToken)
	}
	return &domain.ScrutinResult{Scale: c.scale, Winner: token}, nil
}

func (c stubCodec) Scale() *domain.MentionScale { return c.scale }

func TestInterfaces_Compile(t *testing.T) {
	var _ MetricsCollector = (*mockMetricsCollector)(nil)
	var _ BallotSource = staticSource{}
	var _ ResultCodec = stubCodec{}
}

func TestMetricsCollector(t *testing.T) {
	m := newMockMetricsCollector()
	labels := map[string]string{"unit": "tally"}

	m.RecordLatency("tally", 15*time.Millisecond, labels)
	m.RecordCounter("uploads_total", 1, labels)
	m.RecordCounter("uploads_total", 2, labels)
	m.RecordGauge("in_flight", 3, labels)
	m.RecordHistogram("ballots", 12, labels)
	m.RecordHistogram("ballots", 40, labels)

	assert.Equal(t, 15*time.Millisecond, m.latencies["tally"])
	assert.Equal(t, 3.0, m.counters["uploads_total"])
	assert.Equal(t, 3.0, m.gauges["in_flight"])
	assert.Equal(t, []float64{12, 40}, m.histograms["ballots"])
}

func TestBallotSource(t *testing.T) {
	src := staticSource{rows: [][]string{{"A"}, {"Bien"}}}

	rows, err := src.ReadRows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadRows(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultCodec(t *testing.T) {
	codec := stubCodec{scale: domain.FiveMentionScale()}

	token, err := codec.Encode(&domain.ScrutinResult{Winner: "A"})
	require.NoError(t, err)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "A", decoded.Winner)
	assert.Same(t, codec.Scale(), decoded.Scale)

	_, err = codec.Decode("")
	assert.ErrorIs(t, err, domain.ErrEmptyToken)
}
