// Package httpapi exposes tabulation and result display over HTTP.
//
// POST /api accepts a CSV upload and answers with the share URL of the
// result. GET /result and GET /embed render a result token. Responses to
// the upload endpoint keep the {success, result | error} envelope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// TracerName is the instrumentation name of request spans.
const TracerName = "scrutin-http"

// Tabulator is the part of application.Service the server depends on.
type Tabulator interface {
	Tabulate(ctx context.Context, rows [][]string, declared int, source string) (*application.Tabulation, error)
	Open(token string) (*domain.ScrutinResult, error)
}

var _ Tabulator = (*application.Service)(nil)

// Config holds the server settings taken from application.ServerConfig.
type Config struct {
	// BaseURL prefixes share and embed links.
	BaseURL string
	// MaxUploadBytes caps the size of an uploaded file.
	MaxUploadBytes int64
	// RateLimit is the sustained request rate allowed per client on the
	// upload and result endpoints. Zero disables limiting.
	RateLimit float64
	// Burst is the number of requests a client may make at once.
	Burst int
}

// ConfigFrom maps the application server settings.
func ConfigFrom(cfg application.ServerConfig) Config {
	return Config{
		BaseURL:        cfg.BaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		Burst:          cfg.Burst,
	}
}

// Server routes HTTP requests to a Tabulator.
type Server struct {
	svc     Tabulator
	cfg     Config
	logger  *slog.Logger
	metrics ports.MetricsCollector
	scrape  http.Handler
	tracer  trace.Tracer
	limits  *clientLimiter
	uploads singleflight.Group
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request latency and status counts to m.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.scrape = h }
}

// New returns a server for svc.
func New(svc Tabulator, cfg Config, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limits = newClientLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.scrape != nil {
		mux.Handle("GET /metrics", s.scrape)
	}

	mux.HandleFunc("POST /api", s.withRateLimit(s.handleUpload))
	mux.HandleFunc("GET /api", methodNotAllowed(msgGetNotAllowed))
	mux.HandleFunc("PUT /api", methodNotAllowed(msgPutNotAllowed))
	mux.HandleFunc("DELETE /api", methodNotAllowed(msgDeleteNotAllowed))

	mux.HandleFunc("GET /result", s.withRateLimit(s.handleResult))
	mux.HandleFunc("GET /embed", s.withRateLimit(s.handleEmbed))

	return s.withTracing(s.withLogging(mux))
}
