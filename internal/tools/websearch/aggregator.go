// Package websearch aggregates several web-search sources behind one
// query-rewriting, quality-filtering search and exposes it to the agent as
// the web_search and web_fetch tools.
package websearch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Result is a successful search: the accepted attempt plus every attempt
// made, in order, including the accepted one.
type Result struct {
	Accepted models.SearchAttempt
	Attempts []models.SearchAttempt
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	MaxVariants int
	// Filter defaults to DefaultQualityFilter with 50 runes and
	// config.DefaultNoResultPhrases.
	Filter    ResultQualityFilter
	CacheTTL  time.Duration
	CacheSize int
	// Now drives year and month qualifiers in variants.
	Now func() time.Time
}

// Aggregator tries each query variant against each source, in order, until
// a result passes the quality filter.
type Aggregator struct {
	sources  []Source
	variants *VariantGenerator
	filter   ResultQualityFilter
	cache    *resultCache

	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

// NewAggregator creates an aggregator over sources.
func NewAggregator(sources []Source, cfg AggregatorConfig) *Aggregator {
	filter := cfg.Filter
	if filter == nil {
		filter = DefaultQualityFilter{MinLength: 50, NoResultPhrases: config.DefaultNoResultPhrases}
	}
	return &Aggregator{
		sources:  sources,
		variants: NewVariantGenerator(cfg.MaxVariants, cfg.Now),
		filter:   filter,
		cache:    newResultCache(cfg.CacheTTL, cfg.CacheSize),
		logger:   slog.Default(),
	}
}

// FromConfig builds sources and the default quality filter from cfg.
func FromConfig(cfg config.SearchConfig, opts SourceOptions) *Aggregator {
	agg := NewAggregator(NewSources(cfg, opts), AggregatorConfig{
		MaxVariants: cfg.MaxVariants,
		Filter:      DefaultQualityFilter{MinLength: cfg.MinResultLength, NoResultPhrases: cfg.NoResultPhrases},
		CacheTTL:    cfg.CacheTTL,
		CacheSize:   cfg.CacheSize,
	})
	if opts.Logger != nil {
		agg.logger = opts.Logger
	}
	return agg
}

// WithObservability attaches metrics, tracing and logging.
func (a *Aggregator) WithObservability(m *observability.Metrics, t *observability.Tracer, l *slog.Logger) *Aggregator {
	a.metrics = m
	a.tracer = t
	if l != nil {
		a.logger = l
	}
	return a
}

// Sources returns the source names in try order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Search runs variants (outer) against sources (inner) strictly in sequence
// and returns the first accepted pair. Source failures are recorded as
// rejected attempts. When nothing is accepted it returns
// *NoAcceptableResultError carrying every attempt. Attempts are also
// appended to the AttemptLog in ctx, if any.
func (a *Aggregator) Search(ctx context.Context, query string) (*Result, error) {
	ctx, span := a.tracer.TraceSearch(ctx, query)
	defer span.End()

	log := AttemptLogFrom(ctx)
	var attempts []models.SearchAttempt
	record := func(at models.SearchAttempt) {
		attempts = append(attempts, at)
		log.add(at)
		a.metrics.RecordSearchAttempt(at.Source, at.Accepted)
	}

	for _, variant := range a.variants.Generate(query) {
		for _, src := range a.sources {
			if err := ctx.Err(); err != nil {
				observability.RecordError(span, err)
				return nil, err
			}

			attempt := models.SearchAttempt{Variant: variant, Source: src.Name()}
			text, err := a.query(ctx, src, variant)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					observability.RecordError(span, ctxErr)
					return nil, ctxErr
				}
				attempt.RejectionReason = ReasonToolInvocationFailure + ": " + err.Error()
				record(attempt)
				a.logger.Debug("search source failed", "source", src.Name(), "variant", variant, "error", err)
				continue
			}

			attempt.Result = text
			ok, reason := a.filter.Evaluate(text)
			attempt.Accepted = ok
			attempt.RejectionReason = reason
			record(attempt)
			if ok {
				span.SetAttributes(
					attribute.String("search.source", src.Name()),
					attribute.Int("search.attempts", len(attempts)),
				)
				return &Result{Accepted: attempt, Attempts: attempts}, nil
			}
			a.logger.Debug("search result rejected", "source", src.Name(), "variant", variant, "reason", reason)
		}
	}

	err := &NoAcceptableResultError{Query: query, Attempts: attempts}
	observability.RecordError(span, err)
	a.logger.Info("no acceptable search result", "query", query, "attempts", len(attempts))
	return nil, err
}

func (a *Aggregator) query(ctx context.Context, src Source, variant string) (string, error) {
	if text, ok := a.cache.get(src.Name(), variant); ok {
		return text, nil
	}
	text, err := src.Search(ctx, variant)
	if err != nil {
		return "", err
	}
	a.cache.put(src.Name(), variant, text)
	return text, nil
}

// AttemptLog collects search attempts made while serving one request,
// including those made by the web_search tool inside the agent loop.
type AttemptLog struct {
	mu       sync.Mutex
	attempts []models.SearchAttempt
}

type attemptLogKey struct{}

// ContextWithAttemptLog returns ctx carrying log.
func ContextWithAttemptLog(ctx context.Context, log *AttemptLog) context.Context {
	return context.WithValue(ctx, attemptLogKey{}, log)
}

// AttemptLogFrom returns the log in ctx, or nil.
func AttemptLogFrom(ctx context.Context) *AttemptLog {
	log, _ := ctx.Value(attemptLogKey{}).(*AttemptLog)
	return log
}

func (l *AttemptLog) add(at models.SearchAttempt) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, at)
}

// Attempts returns a copy of the recorded attempts.
func (l *AttemptLog) Attempts() []models.SearchAttempt {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.attempts) == 0 {
		return nil
	}
	return append([]models.SearchAttempt(nil), l.attempts...)
}

// truncateRunes shortens s to at most n runes, adding an ellipsis.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return s, false
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return strings.TrimSpace(string(r[:n])) + "...", true
}
