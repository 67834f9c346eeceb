// Package orchestrator answers queries by running the classified dispatch
// path and demoting to a direct backend call when that path fails.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/agent/routing"
	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/internal/tools/weather"
	"github.com/haasonsaas/pathfinder/internal/tools/websearch"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Degrade reasons reported in the envelope.
const (
	ReasonBackendUnavailable = "backend_unavailable"
	ReasonBackendProtocol    = "backend_protocol_error"
	ReasonIterationLimit     = string(models.TerminalIterationLimit)
	ReasonTimeLimit          = string(models.TerminalTimeLimit)
	ReasonParsingFailure     = string(models.TerminalParsingFailure)
	ReasonNoAcceptableResult = "no_acceptable_result"
	ReasonWeatherLookup      = "weather_lookup_failed"
	ReasonStrategyError      = "strategy_error"
	ReasonStaticGuidance     = "static_guidance"
	ReasonEmptyResponse      = "empty_response"
)

// Options configures a Manager. Registry is required; a nil Executor,
// Search or Weather makes that path fail and demote.
type Options struct {
	Registry *backend.Registry
	Router   *routing.Router
	Executor *agent.Executor
	Search   *websearch.Aggregator
	Weather  *weather.Client

	// Language selects the fixed texts: "es" (default) or "en".
	Language string

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *observability.Logger
	Now     func() time.Time
}

// Manager is the fallback chain. It is safe for concurrent use.
type Manager struct {
	registry *backend.Registry
	router   *routing.Router
	executor *agent.Executor
	search   *websearch.Aggregator
	weather  *weather.Client

	msgs     messages
	composer *Composer
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *observability.Logger
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}
	m := &Manager{
		registry: opts.Registry,
		router:   opts.Router,
		executor: opts.Executor,
		search:   opts.Search,
		weather:  opts.Weather,
		msgs:     messagesFor(opts.Language),
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if m.logger == nil {
		m.logger = observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.composer = NewComposer(m.now, func() string { return m.msgs.static })
	return m, nil
}

// Registry returns the backend registry.
func (m *Manager) Registry() *backend.Registry { return m.registry }

// Resolve answers q. It never fails: when every path and backend fails the
// envelope carries static guidance text and is marked degraded.
func (m *Manager) Resolve(ctx context.Context, q models.Query) models.ResponseEnvelope {
	started := m.now()
	attempts := &websearch.AttemptLog{}
	ctx = websearch.ContextWithAttemptLog(ctx, attempts)

	classified := routing.Classify(q)
	requested := q.BackendID
	if m.router != nil {
		requested = m.router.Select(q)
	}
	res := m.registry.Resolve(requested)

	ctx = observability.AddDispatchPath(observability.AddBackend(ctx, res.Backend.ID), string(classified))
	ctx, span := m.tracer.TraceResolve(ctx, string(classified), res.Backend.ID)
	defer span.End()

	d := Draft{
		Classified:       classified,
		Used:             classified,
		BackendRequested: res.Requested,
		StartedAt:        started,
	}
	used := m.dispatch(ctx, q, res.Backend, &d)
	d.BackendUsed = used.ID
	d.Substituted = d.BackendRequested != "" && d.BackendRequested != used.ID
	d.SearchAttempts = attempts.Attempts()

	env := m.composer.Compose(d)
	if env.Degraded {
		span.SetAttributes(attribute.String("pathfinder.degrade_reason", env.DegradeReason))
	}
	m.metrics.RecordRequest(string(env.DispatchPathUsed), env.Degraded, time.Duration(env.Timing.DurationMs)*time.Millisecond)
	m.logger.Info(ctx, "query resolved",
		"path_classified", env.DispatchPathClassified,
		"path_used", env.DispatchPathUsed,
		"backend", env.BackendUsed,
		"substituted", env.BackendSubstituted,
		"degraded", env.Degraded,
		"degrade_reason", env.DegradeReason,
		"duration_ms", env.Timing.DurationMs,
	)
	return env
}

// dispatch fills d and returns the backend that produced the text.
func (m *Manager) dispatch(ctx context.Context, q models.Query, b *backend.Backend, d *Draft) *backend.Backend {
	out, err := m.runPath(ctx, d.Classified, b, q)
	if d.Classified == models.PathAgent {
		d.Trace = out.trace
	}
	if out.used != nil {
		b = out.used
	}
	if err == nil {
		d.Text = out.text
		return b
	}

	reason := failureReason(err)
	m.logger.Warn(ctx, "dispatch path failed",
		"path", d.Classified, "backend", b.ID, "reason", reason, "error", err)

	if d.Classified == models.PathSimple {
		m.static(q, d)
		return b
	}

	d.Used = models.PathSimple
	d.DegradeReason = reason
	m.metrics.RecordDemotion(string(d.Classified), string(models.PathSimple), reason)

	if backend.IsUnavailable(err) {
		next := m.reroute(ctx, b)
		if next == nil {
			m.static(q, d)
			return b
		}
		b = next
	}

	system := m.msgs.simpleSystem
	if reason == ReasonNoAcceptableResult {
		system = m.msgs.guidanceSystem
	}
	text, used, serr := m.answerSimple(ctx, b, system, q.Text)
	if serr != nil {
		m.logger.Warn(ctx, "demoted path failed", "backend", used.ID, "error", serr)
		m.static(q, d)
		return used
	}
	d.Text = m.prefix(reason) + text
	return used
}

// prefix explains why a loop answer was replaced by general knowledge.
func (m *Manager) prefix(reason string) string {
	switch reason {
	case ReasonIterationLimit:
		return m.msgs.iterationLimit
	case ReasonTimeLimit:
		return m.msgs.timeLimit
	case ReasonParsingFailure:
		return m.msgs.parsingFailure
	}
	return ""
}

func (m *Manager) static(q models.Query, d *Draft) {
	d.Used = models.PathSimple
	d.Text = m.msgs.staticText(q.Text)
	d.Degraded = true
	d.DegradeReason = ReasonStaticGuidance
}

