package orchestrator

import (
	"context"
	"errors"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/tools/weather"
	"github.com/haasonsaas/pathfinder/internal/tools/websearch"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// ErrStrategyUnavailable means the path's collaborator was not configured.
var ErrStrategyUnavailable = errors.New("dispatch path not configured")

// outcome is what a strategy produced. trace may be set even on failure.
type outcome struct {
	text  string
	trace *models.AgentTrace
	used  *backend.Backend
}

func (m *Manager) runPath(ctx context.Context, path models.DispatchPath, b *backend.Backend, q models.Query) (outcome, error) {
	switch path {
	case models.PathAgent:
		return m.runAgent(ctx, b, q)
	case models.PathWeather:
		return m.runWeather(ctx, b, q)
	case models.PathSearch:
		return m.runSearch(ctx, b, q)
	default:
		text, used, err := m.answerSimple(ctx, b, m.msgs.simpleSystem, q.Text)
		return outcome{text: text, used: used}, err
	}
}

// runAgent keeps the partial trace when the loop stops early.
func (m *Manager) runAgent(ctx context.Context, b *backend.Backend, q models.Query) (outcome, error) {
	if m.executor == nil {
		return outcome{used: b}, ErrStrategyUnavailable
	}
	res, err := m.executor.Run(ctx, b, q.Text)
	out := outcome{used: b}
	if res != nil {
		out.text = res.Answer
		out.trace = res.Trace
	}
	return out, err
}

// runWeather looks the city up and lets the backend phrase the report. The
// formatted report is the answer when the backend cannot phrase it.
func (m *Manager) runWeather(ctx context.Context, b *backend.Backend, q models.Query) (outcome, error) {
	if m.weather == nil {
		return outcome{used: b}, ErrStrategyUnavailable
	}
	city := weather.ExtractCity(q.Text, m.weather.DefaultCity())
	report, err := m.weather.Lookup(ctx, city)
	if err != nil {
		return outcome{used: b}, err
	}
	formatted := report.Format(m.weather.Lang())

	text, err := b.Complete(ctx, m.msgs.weatherSystem, m.msgs.weatherUser(q.Text, formatted), nil)
	if err != nil {
		m.logger.Warn(ctx, "backend could not phrase weather report", "backend", b.ID, "error", err)
		if backend.IsUnavailable(err) {
			m.registry.ReportFailure(ctx, b.ID)
		}
		return outcome{text: formatted, used: b}, nil
	}
	return outcome{text: text, used: b}, nil
}

// runSearch summarizes the first accepted search result.
func (m *Manager) runSearch(ctx context.Context, b *backend.Backend, q models.Query) (outcome, error) {
	if m.search == nil {
		return outcome{used: b}, ErrStrategyUnavailable
	}
	res, err := m.search.Search(ctx, q.Text)
	if err != nil {
		return outcome{used: b}, err
	}
	text, err := b.Complete(ctx, m.msgs.searchSystem, m.msgs.searchUser(q.Text, res.Accepted.Result), nil)
	return outcome{text: text, used: b}, err
}

// answerSimple makes the direct backend call. When b is unavailable and
// another backend can take over, the call is retried once on it.
func (m *Manager) answerSimple(ctx context.Context, b *backend.Backend, system, question string) (string, *backend.Backend, error) {
	text, err := b.Complete(ctx, system, question, nil)
	if err == nil || !backend.IsUnavailable(err) {
		return text, b, err
	}
	next := m.reroute(ctx, b)
	if next == nil || next.ID == b.ID {
		return "", b, err
	}
	m.logger.Info(ctx, "retrying with substitute backend", "failed", b.ID, "substitute", next.ID)
	text, err = next.Complete(ctx, system, question, nil)
	return text, next, err
}

// reroute reports b's failure to the registry and returns the backend to use
// next: the first other available backend, else b itself if a fresh probe
// found it healthy. It returns nil when nothing is left or the caller's
// context is done.
func (m *Manager) reroute(ctx context.Context, b *backend.Backend) *backend.Backend {
	if ctx.Err() != nil {
		return nil
	}
	healthy, probed := m.registry.ReportFailure(ctx, b.ID)
	for _, candidate := range m.registry.ListAvailable() {
		if candidate.ID != b.ID {
			return candidate
		}
	}
	if healthy && probed {
		return b
	}
	return nil
}

// failureReason maps a strategy failure to its degrade reason.
func failureReason(err error) string {
	if reason, ok := agent.TerminalReasonOf(err); ok {
		return string(reason)
	}
	var noResult *websearch.NoAcceptableResultError
	var lookup *weather.LookupError
	switch {
	case errors.As(err, &noResult):
		return ReasonNoAcceptableResult
	case errors.As(err, &lookup):
		return ReasonWeatherLookup
	case backend.IsUnavailable(err):
		return ReasonBackendUnavailable
	case backend.IsProtocol(err):
		return ReasonBackendProtocol
	default:
		return ReasonStrategyError
	}
}
