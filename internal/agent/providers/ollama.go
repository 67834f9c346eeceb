package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OllamaProvider implements agent.LLMProvider for a local Ollama server.
type OllamaProvider struct {
	base
	client  *http.Client
	baseURL string
}

var _ agent.LLMProvider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	b := newBase("ollama", cfg.DefaultModel, cfg.Timeout)
	return &OllamaProvider{
		base:    b,
		client:  &http.Client{Timeout: b.timeout},
		baseURL: baseURL,
	}
}

// BaseURL returns the server address.
func (p *OllamaProvider) BaseURL() string { return p.baseURL }

// ListModels returns the names of locally installed models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewProviderError(p.name, "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, NewProviderError(p.name, "", fmt.Errorf("ollama tags status %d", resp.StatusCode)).WithStatus(resp.StatusCode)
	}
	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tags); err != nil {
		return nil, malformed(p.name, "", "decode tags: %v", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Complete sends a streaming chat request to Ollama.
func (p *OllamaProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := p.model(req.Model)
	if model == "" {
		return nil, NewProviderError(p.name, req.Model, errors.New("model is required")).WithStatus(http.StatusBadRequest)
	}

	options := map[string]any{"num_predict": maxTokens(req.MaxTokens)}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	payload := ollamaChatRequest{
		Model:    model,
		Stream:   true,
		Messages: buildOllamaMessages(req),
		Options:  options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError(p.name, model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(p.name, model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError(p.name, model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError(p.name, model,
			fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.streamResponse(ctx, resp.Body, chunks, model)
	return chunks, nil
}

func (p *OllamaProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan<- *agent.CompletionChunk, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			fail(ctx, out, malformed(p.name, model, "decode response: %v", err))
			return
		}
		if resp.Error != "" {
			fail(ctx, out, NewProviderError(p.name, model, errors.New(resp.Error)))
			return
		}
		if resp.Message != nil && resp.Message.Content != "" {
			if !send(ctx, out, &agent.CompletionChunk{Text: resp.Message.Content}) {
				return
			}
		}
		if resp.Done {
			send(ctx, out, &agent.CompletionChunk{
				Done:         true,
				InputTokens:  resp.PromptEvalCount,
				OutputTokens: resp.EvalCount,
			})
			return
		}
	}
	if err := scanner.Err(); err != nil {
		fail(ctx, out, NewProviderError(p.name, model, err))
		return
	}
	fail(ctx, out, malformed(p.name, model, "stream ended without done"))
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

func buildOllamaMessages(req *agent.CompletionRequest) []ollamaChatMessage {
	messages := make([]ollamaChatMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ollamaChatMessage{Role: role, Content: msg.Content})
	}
	return messages
}
