package models

import "time"

// TerminalReason records why an agent run stopped.
type TerminalReason string

const (
	TerminalFinalAnswer    TerminalReason = "final_answer"
	TerminalIterationLimit TerminalReason = "iteration_limit_reached"
	TerminalTimeLimit      TerminalReason = "time_limit_reached"
	TerminalParsingFailure TerminalReason = "parsing_failure"
)

// Recoverable reports whether the fallback chain may demote after this reason.
func (r TerminalReason) Recoverable() bool {
	return r != TerminalFinalAnswer && r != ""
}

// AgentStep is one real tool invocation made by the agent loop.
type AgentStep struct {
	Index       int           `json:"index"`
	Tool        string        `json:"tool"`
	Input       string        `json:"input"`
	Observation string        `json:"observation"`
	Truncated   bool          `json:"truncated,omitempty"`
	IsError     bool          `json:"is_error,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// AgentTrace is the ordered record of one agent run.
type AgentTrace struct {
	Steps          []AgentStep    `json:"steps"`
	Thoughts       []string       `json:"thoughts,omitempty"`
	Iterations     int            `json:"iterations"`
	TerminalReason TerminalReason `json:"terminalReason,omitempty"`
}

// Clone returns a deep copy so callers cannot alias the executor's buffers.
func (t *AgentTrace) Clone() *AgentTrace {
	if t == nil {
		return nil
	}
	out := &AgentTrace{
		Iterations:     t.Iterations,
		TerminalReason: t.TerminalReason,
	}
	if t.Steps != nil {
		out.Steps = append([]AgentStep(nil), t.Steps...)
	}
	if t.Thoughts != nil {
		out.Thoughts = append([]string(nil), t.Thoughts...)
	}
	return out
}
