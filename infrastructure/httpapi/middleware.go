package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-scrutin/internal/ports"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " " + r.URL.Path
}

// withLogging logs request start and completion, and reports latency and
// status counts when metrics are configured.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Debug("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", clientIP(r),
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		)
		if s.metrics != nil {
			labels := map[string]string{"unit": route(r), "status": strconv.Itoa(rec.status)}
			s.metrics.RecordLatency("http_request", duration, labels)
			s.metrics.RecordCounter("http_requests", 1, labels)
		}
	})
}

// withTracing runs each request in a server span named after its route.
func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		if r.Pattern != "" {
			span.SetName(r.Pattern)
			span.SetAttributes(attribute.String("http.route", r.Pattern))
		}
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// withRateLimit rejects clients that exceed the configured request rate.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.limits == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.limits.check(clientIP(r)); err != nil {
			s.logger.Debug("request throttled", "error", err)
			s.writeError(w, err)
			return
		}
		next(w, r)
	}
}

// maxTrackedClients bounds the limiter table. When full it starts over.
const maxTrackedClients = 10000

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

// check takes one token from the client's bucket. An empty bucket fails
// with ports.ErrRateLimited.
func (c *clientLimiter) check(client string) error {
	c.mu.Lock()
	l, ok := c.clients[client]
	if !ok {
		if len(c.clients) >= maxTrackedClients {
			c.clients = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(c.limit, c.burst)
		c.clients[client] = l
	}
	c.mu.Unlock()
	if !l.Allow() {
		return fmt.Errorf("client %s: %w", client, ports.ErrRateLimited)
	}
	return nil
}

// clientIP extracts the client address. It checks X-Forwarded-For, then
// X-Real-IP, then falls back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
