package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-scrutin/infrastructure/httpapi"
)

// newHandler builds the HTTP API with its own metrics registry.
func newHandler(ctx context.Context, e *env) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, metrics, err := newService(ctx, e, reg)
	if err != nil {
		return nil, err
	}

	srv := httpapi.New(svc, httpapi.ConfigFrom(e.cfg.Server),
		httpapi.WithLogger(e.logger),
		httpapi.WithMetrics(metrics),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	)
	return srv.Handler(), nil
}

func serveCmd(e *env) *cobra.Command {
	var addr string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and result API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				e.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler, err := newHandler(ctx, e)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:              e.cfg.Server.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("server listening", "addr", server.Addr, "base_url", e.cfg.Server.BaseURL)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("listen: %w", err)
			case <-ctx.Done():
			}

			timeout := time.Duration(e.cfg.Server.ShutdownTimeoutSeconds) * time.Second
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			e.logger.Info("server shutting down", "timeout", timeout)
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	c.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to the configured address)")
	return c
}
