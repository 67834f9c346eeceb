package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// LoopConfig bounds one agent run.
type LoopConfig struct {
	// MaxIterations caps Thinking turns, and therefore tool calls. Default: 3.
	MaxIterations int
	// MaxDuration is the wall-clock budget for the whole run. Default: 60s.
	MaxDuration time.Duration
	// MaxParseRetries is how many corrective observations are sent for
	// malformed output before the run ends. Default: 2; negative disables
	// corrections.
	MaxParseRetries int
	// ToolTimeout bounds each tool call. Default: 20s.
	ToolTimeout time.Duration
	// ObservationLimit truncates observations to this many runes. Default: 2000.
	ObservationLimit int
	// Language selects the prompt wording.
	Language Language
}

// DefaultLoopConfig returns the default loop bounds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:    3,
		MaxDuration:      60 * time.Second,
		MaxParseRetries:  2,
		ToolTimeout:      20 * time.Second,
		ObservationLimit: 2000,
		Language:         LanguageSpanish,
	}
}

func sanitizeLoopConfig(cfg LoopConfig) LoopConfig {
	d := DefaultLoopConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = d.MaxIterations
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = d.MaxDuration
	}
	switch {
	case cfg.MaxParseRetries == 0:
		cfg.MaxParseRetries = d.MaxParseRetries
	case cfg.MaxParseRetries < 0:
		cfg.MaxParseRetries = 0
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = d.ToolTimeout
	}
	if cfg.ObservationLimit <= 0 {
		cfg.ObservationLimit = d.ObservationLimit
	}
	if _, ok := prompts[cfg.Language]; !ok {
		cfg.Language = d.Language
	}
	return cfg
}

// Result is a completed agent run.
type Result struct {
	Answer string
	Trace  *models.AgentTrace
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records run outcomes.
func WithMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer wraps runs in spans.
func WithTracer(t *observability.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithTraceWriter persists each run's trace.
func WithTraceWriter(w TraceWriter) ExecutorOption {
	return func(e *Executor) { e.traces = w }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// Executor runs the bounded think/act/observe loop:
//
//	Start -> Thinking -> ActingTool -> Observing -> Thinking ... -> Terminal
//
// Budgets are checked before every Thinking entry. In-flight backend and
// tool calls are bounded by the remaining wall-clock budget and are never
// abandoned early.
type Executor struct {
	tools   *ToolExecutor
	config  LoopConfig
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	traces  TraceWriter
	now     func() time.Time
}

// NewExecutor creates an executor over the given tools.
func NewExecutor(tools *ToolExecutor, cfg LoopConfig, opts ...ExecutorOption) *Executor {
	e := &Executor{
		tools:  tools,
		config: sanitizeLoopConfig(cfg),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the sanitized configuration.
func (e *Executor) Config() LoopConfig { return e.config }

// Run answers question with completer, invoking tools as the model asks.
// On success the Result carries the final answer and full trace. Otherwise
// the Result carries the partial trace and err is a *LoopError.
func (e *Executor) Run(ctx context.Context, completer Completer, question string) (*Result, error) {
	ctx, span := e.tracer.TraceAgent(ctx, e.config.MaxIterations)
	defer span.End()

	res, err := e.run(ctx, completer, question)
	reason := string(res.Trace.TerminalReason)
	if reason == "" {
		reason = "backend_error"
	}
	e.metrics.RecordAgentRun(reason, res.Trace.Iterations)
	if err != nil {
		observability.RecordError(span, err)
	}
	if e.traces != nil {
		if werr := e.traces.WriteRun(ctx, question, res, err); werr != nil {
			e.logger.Warn("failed to write agent trace", "error", werr)
		}
	}
	return res, err
}

func (e *Executor) run(ctx context.Context, completer Completer, question string) (*Result, error) {
	p := prompts[e.config.Language]
	system := p.systemPrompt(e.tools.Registry())
	pad := &scratchpad{p: p}
	trace := &models.AgentTrace{Steps: []models.AgentStep{}}

	start := e.now()
	deadline := start.Add(e.config.MaxDuration)
	corrections := 0

	finish := func(reason models.TerminalReason, phase LoopPhase, msg string) (*Result, error) {
		trace.TerminalReason = reason
		return &Result{Trace: trace}, &LoopError{Phase: phase, Reason: reason, Iteration: trace.Iterations, Message: msg}
	}

	for {
		if trace.Iterations >= e.config.MaxIterations {
			return finish(models.TerminalIterationLimit, PhaseThinking,
				fmt.Sprintf("stopped after %d iterations", trace.Iterations))
		}
		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			return finish(models.TerminalTimeLimit, PhaseThinking,
				fmt.Sprintf("stopped after %s", e.config.MaxDuration))
		}

		trace.Iterations++
		callCtx, cancel := context.WithTimeout(ctx, remaining)
		output, err := completer.Complete(callCtx, system, pad.userPrompt(question), nil)
		cancel()
		if err != nil {
			if !e.now().Before(deadline) {
				return finish(models.TerminalTimeLimit, PhaseThinking,
					fmt.Sprintf("backend call exceeded the %s budget", e.config.MaxDuration))
			}
			return &Result{Trace: trace}, &LoopError{Phase: PhaseThinking, Iteration: trace.Iterations, Cause: err}
		}

		step, perr := ParseReAct(output)
		if perr != nil {
			corrections++
			trace.Thoughts = append(trace.Thoughts, "unparseable output: "+perr.Error())
			if corrections > e.config.MaxParseRetries {
				return finish(models.TerminalParsingFailure, PhaseThinking, perr.Error())
			}
			pad.addCorrection(fmt.Sprintf(p.badFormat, perr.Error()))
			continue
		}
		if step.Thought != "" {
			trace.Thoughts = append(trace.Thoughts, step.Thought)
		}

		if step.Kind == StepFinal {
			trace.TerminalReason = models.TerminalFinalAnswer
			return &Result{Answer: step.FinalAnswer, Trace: trace}, nil
		}

		if _, ok := e.tools.Registry().Get(step.Action); !ok {
			corrections++
			trace.Thoughts = append(trace.Thoughts, "unknown tool: "+step.Action)
			if corrections > e.config.MaxParseRetries {
				return finish(models.TerminalParsingFailure, PhaseActing,
					fmt.Sprintf("model kept requesting unknown tool %q", step.Action))
			}
			pad.addCorrection(fmt.Sprintf(p.unknownTool, step.Action, strings.Join(e.tools.Registry().Names(), ", ")))
			continue
		}

		observation, agentStep := e.act(ctx, step, len(trace.Steps)+1, deadline)
		trace.Steps = append(trace.Steps, agentStep)
		pad.addAction(step.Thought, step.Action, step.ActionInput, observation)
	}
}

// act performs one tool call and returns the observation text plus its step record.
func (e *Executor) act(ctx context.Context, step *ParsedStep, index int, deadline time.Time) (string, models.AgentStep) {
	started := e.now()
	limit := deadline.Sub(started)
	if e.config.ToolTimeout < limit {
		limit = e.config.ToolTimeout
	}
	if limit <= 0 {
		limit = time.Millisecond
	}

	var observation string
	isErr := false
	result, err := e.tools.Execute(ctx, step.Action, step.ActionInput, limit)
	switch {
	case err != nil:
		isErr = true
		var te *ToolError
		if errors.As(err, &te) {
			observation = "Error: " + te.Error()
		} else {
			observation = "Error: " + err.Error()
		}
	default:
		observation = result.Content
		isErr = result.IsError
	}

	observation, truncated := truncateRunes(observation, e.config.ObservationLimit)

	return observation, models.AgentStep{
		Index:       index,
		Tool:        step.Action,
		Input:       step.ActionInput,
		Observation: observation,
		Truncated:   truncated,
		IsError:     isErr,
		Elapsed:     e.now().Sub(started),
	}
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]) + "...", true
}
