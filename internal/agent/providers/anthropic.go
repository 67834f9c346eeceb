package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// maxEmptyStreamEvents bounds consecutive events that carry nothing useful
// before a stream is declared malformed.
const maxEmptyStreamEvents = 50

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// AnthropicProvider implements agent.LLMProvider for the Claude Messages API.
type AnthropicProvider struct {
	base
	client anthropic.Client
}

var _ agent.LLMProvider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates an Anthropic provider. The SDK's own retries
// are disabled so the backend layer stays in control.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	b := newBase("anthropic", cfg.DefaultModel, cfg.Timeout)

	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: b.timeout}),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{base: b, client: anthropic.NewClient(options...)}, nil
}

// Complete streams a Messages API completion.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := p.model(req.Model)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  convertAnthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *AnthropicProvider) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	var inputTokens, outputTokens int
	empty := 0
	for stream.Next() {
		event := stream.Current()
		useful := true

		switch event.Type {
		case "message_start":
			inputTokens = int(event.AsMessageStart().Message.Usage.InputTokens)
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			if delta.Type != "text_delta" || delta.Text == "" {
				useful = false
				break
			}
			if !send(ctx, chunks, &agent.CompletionChunk{Text: delta.Text}) {
				return
			}
		case "message_delta":
			outputTokens = int(event.AsMessageDelta().Usage.OutputTokens)
		case "message_stop":
			send(ctx, chunks, &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens})
			return
		case "error":
			fail(ctx, chunks, NewProviderError(p.name, model, errors.New("anthropic stream error")).WithCode("api_error"))
			return
		default:
			useful = false
		}

		if useful {
			empty = 0
			continue
		}
		empty++
		if empty >= maxEmptyStreamEvents {
			fail(ctx, chunks, malformed(p.name, model, "received %d consecutive empty events", empty))
			return
		}
	}

	if err := stream.Err(); err != nil {
		fail(ctx, chunks, p.wrapError(err, model))
		return
	}
	fail(ctx, chunks, malformed(p.name, model, "stream ended without message_stop"))
}

func convertAnthropicMessages(messages []agent.CompletionMessage) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(block))
		} else {
			result = append(result, anthropic.NewUserMessage(block))
		}
	}
	return result
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	if _, ok := GetProviderError(err); ok {
		return err
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError(p.name, model, err)
	}

	pe := NewProviderError(p.name, model, err).WithStatus(apiErr.StatusCode)
	pe.Message = "anthropic request failed"
	if apiErr.RequestID != "" {
		pe = pe.WithRequestID(apiErr.RequestID)
	}
	var payload anthropicErrorPayload
	if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
		if payload.Error.Message != "" {
			pe = pe.WithMessage(payload.Error.Message)
		}
		if payload.Error.Type != "" {
			pe = pe.WithCode(payload.Error.Type)
		}
		if payload.RequestID != "" {
			pe = pe.WithRequestID(payload.RequestID)
		}
	}
	return pe
}
