package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scrutin/internal/domain"
)

type stubUnit struct {
	name     string
	err      error
	validErr error
	calls    int
}

func (s *stubUnit) Name() string { return s.name }

func (s *stubUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	s.calls++
	if s.err != nil {
		return state, s.err
	}
	return domain.With(state, domain.KeyToken, "tok"), nil
}

func (s *stubUnit) Validate() error { return s.validErr }

type recordingObserver struct {
	pre, post []string
	err       error
	elapsed   time.Duration
	out       domain.State
}

type ctxKey struct{}

func (r *recordingObserver) PreExecute(ctx context.Context, unit string, _ domain.State) context.Context {
	r.pre = append(r.pre, unit)
	return context.WithValue(ctx, ctxKey{}, unit)
}

func (r *recordingObserver) PostExecute(ctx context.Context, unit string, state domain.State, elapsed time.Duration, err error) {
	r.post = append(r.post, fmt.Sprintf("%s:%v", unit, ctx.Value(ctxKey{})))
	r.err = err
	r.elapsed = elapsed
	r.out = state
}

type recordingMetrics struct {
	mu        sync.Mutex
	latencies []map[string]string
	counters  map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]float64{}}
}

func (m *recordingMetrics) RecordLatency(_ string, _ time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, labels)
}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric+"/"+labels["unit"]+"/"+labels["status"]] += value
}

func (m *recordingMetrics) RecordGauge(string, float64, map[string]string)     {}
func (m *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}

func TestObservedUnit_Execute(t *testing.T) {
	inner := &stubUnit{name: "tally"}
	obs := &recordingObserver{}
	unit := NewObservedUnit(inner, obs)

	assert.Equal(t, "tally", unit.Name())
	assert.Same(t, inner, unit.Unwrap())

	out, err := unit.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)

	token, ok := domain.Get(out, domain.KeyToken)
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	assert.Equal(t, []string{"tally"}, obs.pre)
	assert.Equal(t, []string{"tally:tally"}, obs.post, "PostExecute receives the context from PreExecute")
	assert.NoError(t, obs.err)
	assert.GreaterOrEqual(t, obs.elapsed, time.Duration(0))
	_, ok = domain.Get(obs.out, domain.KeyToken)
	assert.True(t, ok)
}

func TestObservedUnit_PropagatesError(t *testing.T) {
	failure := domain.NewFormatError(domain.ErrNoBallots)
	inner := &stubUnit{name: "ballot_validator", err: failure}
	obs := &recordingObserver{}

	_, err := NewObservedUnit(inner, obs).Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrNoBallots)
	assert.ErrorIs(t, obs.err, domain.ErrNoBallots)
}

func TestObservedUnit_NilObserver(t *testing.T) {
	inner := &stubUnit{name: "tally"}
	unit := NewObservedUnit(inner, nil)

	_, err := unit.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestObservedUnit_Validate(t *testing.T) {
	inner := &stubUnit{name: "tally", validErr: errors.New("bad config")}
	assert.EqualError(t, NewObservedUnit(inner, nil).Validate(), "bad config")

	assert.Panics(t, func() { NewObservedUnit(nil, nil) })
}

func TestOTelUnitObserver_RecordsMetrics(t *testing.T) {
	metrics := newRecordingMetrics()
	observer := NewOTelUnitObserver(metrics)

	ok := NewObservedUnit(&stubUnit{name: "token_encoder"}, observer)
	failing := NewObservedUnit(&stubUnit{
		name: "ballot_validator",
		err:  &domain.FormatError{Err: domain.ErrInvalidMention, Row: 3},
	}, observer)

	state := domain.NewState().WithExecutionContext(domain.ExecutionContext{ExecutionID: "exec-1", Source: "test"})
	state = domain.With(state, domain.KeyScale, domain.FiveMentionScale())

	_, err := ok.Execute(context.Background(), state)
	require.NoError(t, err)
	_, err = failing.Execute(context.Background(), state)
	require.Error(t, err)

	assert.Len(t, metrics.latencies, 2)
	assert.Equal(t, 1.0, metrics.counters["unit_executions/token_encoder/success"])
	assert.Equal(t, 1.0, metrics.counters["unit_executions/ballot_validator/error"])
}

func TestOTelUnitObserver_NilMetrics(t *testing.T) {
	unit := NewObservedUnit(&stubUnit{name: "tally", err: context.Canceled}, NewOTelUnitObserver(nil))
	assert.NotPanics(t, func() {
		_, _ = unit.Execute(context.Background(), domain.NewState())
	})
}

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"format error", fmt.Errorf("stage: %w", domain.NewFormatError(domain.ErrRowLengthMismatch)), "row length mismatch"},
		{"decode error", domain.NewDecodeError(0, "tally", "Q1", domain.ErrUnknownAbbreviation), "unknown abbreviation"},
		{"canceled", context.Canceled, "canceled"},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), "canceled"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RejectionReason(tt.err))
		})
	}
}
