package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-scrutin/infrastructure/codec"
	"github.com/ahrav/go-scrutin/infrastructure/middleware"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// PipelineID identifies the tabulation pipeline in errors and logs.
const PipelineID = "scrutin"

// Tabulation is the outcome of one ballot set.
type Tabulation struct {
	// ExecutionID correlates logs, spans and the returned result.
	ExecutionID string
	// Source describes where the ballots came from.
	Source string
	// Result is the composed, ranked result.
	Result *domain.ScrutinResult
	// Token is the URL-safe encoding of Result.
	Token string
}

// Service runs ballot sets through the tabulation pipeline and opens
// result tokens. It holds no per-election state and is safe for
// concurrent use.
type Service struct {
	pipeline    *Pipeline
	codecs      []*codec.Codec
	metrics     ports.MetricsCollector
	logger      *slog.Logger
	concurrency int
	newID       func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics reports tabulations, rejections and decodes to m.
func WithMetrics(m ports.MetricsCollector) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithCodecs sets the codecs tried, in order, when opening a token.
// The default is codec.Builtin().
func WithCodecs(codecs ...*codec.Codec) ServiceOption {
	return func(s *Service) { s.codecs = codecs }
}

// WithIDGenerator replaces the execution id generator.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService builds the tabulation pipeline described by cfg.
func NewService(ctx context.Context, cfg ScrutinConfig, builder *PipelineBuilder, opts ...ServiceOption) (*Service, error) {
	if builder == nil {
		return nil, fmt.Errorf("pipeline builder is required")
	}
	pipeline, err := builder.Build(ctx, PipelineID, StagesFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	s := &Service{
		pipeline:    pipeline,
		codecs:      codec.Builtin(),
		concurrency: cfg.Concurrency,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s, nil
}

// Tabulate validates rows, tallies them and returns the composed result
// with its token. declared is 0 to infer the scale, or 5 or 6. Any
// validation failure rejects the whole ballot set with a
// *domain.FormatError.
func (s *Service) Tabulate(ctx context.Context, rows [][]string, declared int, source string) (*Tabulation, error) {
	id := s.newID()
	log := s.logger.With("execution_id", id, "source", source)

	state := domain.NewState().
		WithExecutionContext(domain.ExecutionContext{ExecutionID: id, Source: source}).
		WithMultiple(map[string]any{
			domain.KeyRows.Name():          rows,
			domain.KeyDeclaredScale.Name(): declared,
		})

	out, err := s.pipeline.Execute(ctx, state)
	if err != nil {
		reason := middleware.RejectionReason(err)
		log.Warn("scrutin.rejected", "reason", reason, "error", err)
		s.count(middleware.MetricRejections, map[string]string{"reason": reason})
		s.count(middleware.MetricTabulations, map[string]string{"status": "error"})
		return nil, err
	}

	result, ok := domain.Get(out, domain.KeyResult)
	if !ok {
		return nil, domain.MissingKey(domain.KeyResult)
	}
	token, ok := domain.Get(out, domain.KeyToken)
	if !ok {
		return nil, domain.MissingKey(domain.KeyToken)
	}

	log.Info("scrutin.tabulated",
		"scale", result.Scale.Name(),
		"choices", len(result.Choices),
		"voters", result.Metadata.Voters,
		"winner", result.Winner,
		"winning_mention", result.WinningMention,
	)
	if s.metrics != nil {
		s.metrics.RecordCounter(middleware.MetricTabulations, 1, map[string]string{
			"status": "success",
			"scale":  result.Scale.Name(),
		})
		s.metrics.RecordHistogram(middleware.MetricVoters, float64(result.Metadata.Voters), nil)
		s.metrics.RecordHistogram(middleware.MetricChoices, float64(len(result.Choices)), nil)
	}

	return &Tabulation{
		ExecutionID: id,
		Source:      source,
		Result:      result,
		Token:       token,
	}, nil
}

// TabulateSource reads the ballot table from src and tabulates it.
func (s *Service) TabulateSource(ctx context.Context, src ports.BallotSource, declared int, source string) (*Tabulation, error) {
	rows, err := src.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	return s.Tabulate(ctx, rows, declared, source)
}

// TabulateAll tabulates independent ballot sets concurrently, bounded by
// the configured concurrency. Results keep the order of sources. The first
// failure cancels the remaining work and is returned.
func (s *Service) TabulateAll(ctx context.Context, sources []ports.BallotSource, declared int) ([]*Tabulation, error) {
	results := make([]*Tabulation, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			tab, err := s.TabulateSource(gctx, src, declared, "batch["+strconv.Itoa(i)+"]")
			if err != nil {
				return fmt.Errorf("ballot set %d: %w", i, err)
			}
			results[i] = tab
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Open decodes a result token with the first configured codec that
// accepts it. Errors are *domain.DecodeError values.
func (s *Service) Open(token string) (*domain.ScrutinResult, error) {
	_, result, err := codec.Detect(token, s.codecs...)
	if err != nil {
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			s.logger.Debug("scrutin.decode_failed", "segment", decodeErr.Segment, "field", decodeErr.Field, "error", err)
		}
		s.count(middleware.MetricDecodes, map[string]string{"status": "error"})
		return nil, err
	}
	s.count(middleware.MetricDecodes, map[string]string{"status": "success"})
	return result, nil
}

func (s *Service) count(metric string, labels map[string]string) {
	if s.metrics != nil {
		s.metrics.RecordCounter(metric, 1, labels)
	}
}
