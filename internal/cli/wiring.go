package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-scrutin/infrastructure/middleware"
	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// newService wires the tabulation service with every stage traced and
// measured. Metrics are registered on reg.
func newService(ctx context.Context, e *env, reg prometheus.Registerer) (*application.Service, *middleware.PrometheusMetrics, error) {
	metrics, err := middleware.NewPrometheusMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	observer := middleware.NewOTelUnitObserver(metrics)

	builder, err := application.NewPipelineBuilder(application.NewDefaultUnitRegistry(), func(u ports.Unit) ports.Unit {
		return middleware.NewObservedUnit(u, observer)
	})
	if err != nil {
		return nil, nil, err
	}

	svc, err := application.NewService(ctx, e.cfg.Scrutin, builder,
		application.WithMetrics(metrics),
		application.WithLogger(e.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return svc, metrics, nil
}
