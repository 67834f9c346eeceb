package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	// Name overrides the provider name; "openrouter" for OpenRouter.
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Headers are added to every request (OpenRouter's HTTP-Referer and X-Title).
	Headers map[string]string
}

// OpenAIProvider implements agent.LLMProvider for OpenAI and any endpoint
// speaking its chat completions API.
type OpenAIProvider struct {
	base
	client *openai.Client
}

var _ agent.LLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI-compatible provider. An empty API key
// is rejected.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}
	b := newBase(name, cfg.DefaultModel, cfg.Timeout)

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout:   b.timeout,
		Transport: &headerTransport{headers: cfg.Headers, next: http.DefaultTransport},
	}
	return &OpenAIProvider{base: b, client: openai.NewClientWithConfig(clientConfig)}, nil
}

// NewOpenRouterProvider creates a provider for OpenRouter's OpenAI-compatible API.
func NewOpenRouterProvider(apiKey, defaultModel, appName, siteURL string, timeout time.Duration) (*OpenAIProvider, error) {
	headers := map[string]string{}
	if appName != "" {
		headers["X-Title"] = appName
	}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	return NewOpenAIProvider(OpenAIConfig{
		Name:         "openrouter",
		APIKey:       apiKey,
		BaseURL:      "https://openrouter.ai/api/v1",
		DefaultModel: defaultModel,
		Timeout:      timeout,
		Headers:      headers,
	})
}

// Complete streams a chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := p.model(req.Model)

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  convertToOpenAIMessages(req.Messages, req.System),
		MaxTokens: maxTokens(req.MaxTokens),
		Stream:    true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, p.wrapError(err, model)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	var inputTokens, outputTokens int
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			send(ctx, chunks, &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens})
			return
		}
		if err != nil {
			fail(ctx, chunks, p.wrapError(err, model))
			return
		}
		if response.Usage != nil {
			inputTokens = response.Usage.PromptTokens
			outputTokens = response.Usage.CompletionTokens
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			if !send(ctx, chunks, &agent.CompletionChunk{Text: choice.Delta.Content}) {
				return
			}
		}
		if choice.FinishReason == openai.FinishReasonContentFilter {
			fail(ctx, chunks, &ProviderError{Reason: FailoverContentFilter, Provider: p.name, Model: model, Message: "response blocked by content filter"})
			return
		}
	}
}

func convertToOpenAIMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		result = append(result, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return result
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if _, ok := GetProviderError(err); ok {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := NewProviderError(p.name, model, err).WithMessage(apiErr.Message)
		if apiErr.HTTPStatusCode != 0 {
			pe = pe.WithStatus(apiErr.HTTPStatusCode)
		}
		if code, ok := apiErr.Code.(string); ok && code != "" {
			pe = pe.WithCode(code)
		} else if apiErr.Type != "" {
			pe = pe.WithCode(apiErr.Type)
		}
		return pe
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(p.name, model, err).WithStatus(reqErr.HTTPStatusCode)
	}
	return NewProviderError(p.name, model, err)
}

// headerTransport adds fixed headers to outgoing requests.
type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req)
}
