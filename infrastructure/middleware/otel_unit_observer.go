package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// TracerName is the instrumentation scope of the pipeline spans.
const TracerName = "scrutin-pipeline"

var _ UnitObserver = (*OTelUnitObserver)(nil)

// OTelUnitObserver traces each stage execution with OpenTelemetry and
// reports its latency to a MetricsCollector. The span travels in the
// context returned by PreExecute, so one observer may serve concurrent
// executions.
type OTelUnitObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelUnitObserver creates an observer using the global tracer
// provider. metrics may be nil.
func NewOTelUnitObserver(metrics ports.MetricsCollector) *OTelUnitObserver {
	return &OTelUnitObserver{
		metrics: metrics,
		tracer:  otel.Tracer(TracerName),
	}
}

// PreExecute starts the stage span.
func (o *OTelUnitObserver) PreExecute(ctx context.Context, unit string, state domain.State) context.Context {
	ctx, span := o.tracer.Start(ctx, unit+".Execute")
	span.SetAttributes(attribute.String("scrutin.unit", unit))
	if ec, ok := state.GetExecutionContext(); ok {
		span.SetAttributes(
			attribute.String("scrutin.execution_id", ec.ExecutionID),
			attribute.String("scrutin.source", ec.Source),
		)
	}
	return ctx
}

// PostExecute finalizes the span and records metrics.
func (o *OTelUnitObserver) PostExecute(
	ctx context.Context,
	unit string,
	state domain.State,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)

		var formatErr *domain.FormatError
		if errors.As(err, &formatErr) {
			span.AddEvent("ballots.rejected", trace.WithAttributes(
				attribute.String("reason", RejectionReason(err)),
				attribute.Int("row", formatErr.Row),
			))
		}
		span.SetStatus(codes.Error, err.Error())
	} else {
		o.addOutputAttributes(span, state)
		span.SetStatus(codes.Ok, "")
	}

	if o.metrics == nil {
		return
	}
	labels := map[string]string{"unit": unit, "status": status}
	o.metrics.RecordLatency("unit_execution", elapsed, labels)
	o.metrics.RecordCounter("unit_executions", 1, labels)
}

// addOutputAttributes annotates the span with whatever the stage produced.
func (o *OTelUnitObserver) addOutputAttributes(span trace.Span, state domain.State) {
	if scale, ok := domain.Get(state, domain.KeyScale); ok && scale != nil {
		span.SetAttributes(attribute.String("scrutin.scale", scale.Name()))
	}
	if ballots, ok := domain.Get(state, domain.KeyBallots); ok {
		span.SetAttributes(attribute.Int("scrutin.ballots", len(ballots)))
	}
	if result, ok := domain.Get(state, domain.KeyResult); ok && result != nil {
		span.SetAttributes(
			attribute.String("scrutin.winner", result.Winner),
			attribute.String("scrutin.winning_mention", result.WinningMention),
		)
	}
}
