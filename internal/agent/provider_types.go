package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

// LLMProvider is implemented by every model provider (Anthropic, OpenAI,
// Google, Ollama, Bedrock). It streams a single text completion.
type LLMProvider interface {
	// Complete sends the request and returns a channel of chunks. The channel
	// is closed after a chunk with Done or Error set.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider identifier, e.g. "anthropic".
	Name() string

	// Models lists models known to the provider.
	Models() []Model
}

// CompletionRequest is a provider-agnostic text completion request.
type CompletionRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []CompletionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

// CompletionMessage is one conversation turn. Role is "user" or "assistant".
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionChunk is one streamed piece of a completion.
type CompletionChunk struct {
	Text         string `json:"text,omitempty"`
	Done         bool   `json:"done,omitempty"`
	Error        error  `json:"-"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Model describes a model a provider can serve.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_size"`
}

// Completer is the backend call contract the agent loop depends on. The
// backend adapter implements it.
type Completer interface {
	Complete(ctx context.Context, system, user string, overrides *models.Sampling) (string, error)
}

// Tool is a capability the agent can invoke.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool's parameters.
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
