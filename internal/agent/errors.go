package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

// Terminal conditions of the agent loop. A *LoopError matches the sentinel
// for its Reason under errors.Is.
var (
	ErrIterationLimitReached = errors.New("agent iteration limit reached")
	ErrTimeLimitReached      = errors.New("agent time limit reached")
	ErrParsingFailure        = errors.New("agent output could not be parsed")
)

// Tool failure sentinels.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolTimeout  = errors.New("tool execution timed out")
	ErrToolPanic    = errors.New("tool panicked")
)

// ToolErrorType categorizes a tool failure.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorPanic        ToolErrorType = "panic"
)

// ToolError is a failed tool invocation. The loop turns it into an
// observation; it never escapes the executor.
type ToolError struct {
	Type     ToolErrorType
	ToolName string
	Message  string
	Cause    error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[tool:%s]", e.Type)
	if e.ToolName != "" {
		b.WriteString(" " + e.ToolName)
	}
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Cause != nil:
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError wraps cause, classifying it structurally.
func NewToolError(toolName string, cause error) *ToolError {
	te := &ToolError{ToolName: toolName, Cause: cause, Type: classifyToolError(cause)}
	if cause != nil {
		te.Message = cause.Error()
	}
	return te
}

// WithType overrides the classified type.
func (e *ToolError) WithType(t ToolErrorType) *ToolError {
	e.Type = t
	return e
}

// WithMessage overrides the message.
func (e *ToolError) WithMessage(msg string) *ToolError {
	e.Message = msg
	return e
}

func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorExecution
	}
	switch {
	case errors.Is(err, ErrToolNotFound):
		return ToolErrorNotFound
	case errors.Is(err, ErrToolPanic):
		return ToolErrorPanic
	case errors.Is(err, ErrToolTimeout), errors.Is(err, context.DeadlineExceeded):
		return ToolErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ToolErrorTimeout
		}
		return ToolErrorNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ToolErrorNetwork
	}
	return ToolErrorExecution
}

// GetToolError extracts a *ToolError from err's chain.
func GetToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// LoopPhase names the state the loop was in when it stopped.
type LoopPhase string

const (
	PhaseThinking LoopPhase = "thinking"
	PhaseActing   LoopPhase = "acting"
	PhaseTerminal LoopPhase = "terminal"
)

// LoopError reports a run that ended without a final answer. Reason is set
// for budget and parsing terminations. A backend failure leaves Reason empty
// and carries the backend error as Cause.
type LoopError struct {
	Phase     LoopPhase
	Reason    models.TerminalReason
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Reason != "" {
		return fmt.Sprintf("agent loop %s at %s (iteration %d): %s", e.Reason, e.Phase, e.Iteration, msg)
	}
	return fmt.Sprintf("agent loop error at %s (iteration %d): %s", e.Phase, e.Iteration, msg)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// Is matches the sentinel corresponding to Reason.
func (e *LoopError) Is(target error) bool {
	switch e.Reason {
	case models.TerminalIterationLimit:
		return target == ErrIterationLimitReached
	case models.TerminalTimeLimit:
		return target == ErrTimeLimitReached
	case models.TerminalParsingFailure:
		return target == ErrParsingFailure
	}
	return false
}

// TerminalReasonOf returns the terminal reason carried by err, if any.
func TerminalReasonOf(err error) (models.TerminalReason, bool) {
	var le *LoopError
	if errors.As(err, &le) && le.Reason != "" {
		return le.Reason, true
	}
	return "", false
}
