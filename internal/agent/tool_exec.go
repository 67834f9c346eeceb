package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/pathfinder/internal/observability"
)

// ToolExecConfig configures tool execution.
type ToolExecConfig struct {
	// Timeout bounds each call. Default: 20 seconds.
	Timeout time.Duration
}

// ToolExecutor runs one tool call at a time with a timeout, schema
// validation and panic recovery. Failures are returned as *ToolError.
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
}

// NewToolExecutor creates an executor over registry.
func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	return &ToolExecutor{registry: registry, config: config, logger: slog.Default()}
}

// WithObservability attaches metrics, tracing and logging.
func (e *ToolExecutor) WithObservability(m *observability.Metrics, t *observability.Tracer, l *slog.Logger) *ToolExecutor {
	e.metrics = m
	e.tracer = t
	if l != nil {
		e.logger = l
	}
	return e
}

// Registry returns the underlying registry.
func (e *ToolExecutor) Registry() *ToolRegistry { return e.registry }

// Execute runs the named tool with free-text input. limit, if positive and
// shorter than the configured timeout, caps this call.
func (e *ToolExecutor) Execute(ctx context.Context, name, input string, limit time.Duration) (*ToolResult, error) {
	start := time.Now()
	ctx, span := e.tracer.TraceTool(ctx, name)
	defer span.End()

	result, err := e.execute(ctx, name, input, limit)
	isErr := err != nil || (result != nil && result.IsError)
	e.metrics.RecordToolExecution(name, isErr, time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		e.logger.Debug("tool call failed", "tool", name, "error", err)
	}
	return result, err
}

func (e *ToolExecutor) execute(ctx context.Context, name, input string, limit time.Duration) (*ToolResult, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		return nil, NewToolError(name, ErrToolNotFound)
	}
	params, err := e.registry.Params(name, input)
	if err != nil {
		return nil, NewToolError(name, err).WithType(ToolErrorInvalidInput)
	}
	if err := e.registry.Validate(name, params); err != nil {
		return nil, NewToolError(name, err).WithType(ToolErrorInvalidInput)
	}

	timeout := e.config.Timeout
	if limit > 0 && limit < timeout {
		timeout = limit
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrToolPanic, r)}
			}
		}()
		res, err := tool.Execute(callCtx, params)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, NewToolError(name, ErrToolTimeout).
				WithMessage(fmt.Sprintf("timed out after %s", timeout.Round(time.Millisecond)))
		}
		return nil, NewToolError(name, callCtx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, NewToolError(name, out.err)
		}
		if out.result == nil {
			return &ToolResult{}, nil
		}
		return out.result, nil
	}
}
