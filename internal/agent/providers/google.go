package providers

import (
	"context"
	"errors"
	"iter"
	"time"

	"google.golang.org/genai"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// GoogleConfig configures the Gemini provider.
type GoogleConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// GoogleProvider implements agent.LLMProvider for the Gemini API.
type GoogleProvider struct {
	base
	client *genai.Client
}

var _ agent.LLMProvider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	b := newBase("google", cfg.DefaultModel, cfg.Timeout)

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, errors.Join(errors.New("google: failed to create client"), err)
	}
	return &GoogleProvider{base: b, client: client}, nil
}

// Complete streams a Gemini completion.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := p.model(req.Model)
	contents := convertGoogleMessages(req.Messages)
	config := buildGoogleConfig(req)

	chunks := make(chan *agent.CompletionChunk)
	go func() {
		defer close(chunks)
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		p.processStream(ctx, p.client.Models.GenerateContentStream(callCtx, model, contents, config), chunks, model)
	}()
	return chunks, nil
}

func (p *GoogleProvider) processStream(ctx context.Context, stream iter.Seq2[*genai.GenerateContentResponse, error], chunks chan<- *agent.CompletionChunk, model string) {
	var inputTokens, outputTokens int
	for resp, err := range stream {
		if err != nil {
			fail(ctx, chunks, p.wrapError(err, model))
			return
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			inputTokens = int(resp.UsageMetadata.PromptTokenCount)
			outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			fail(ctx, chunks, &ProviderError{Reason: FailoverContentFilter, Provider: p.name, Model: model,
				Message: "prompt blocked: " + string(resp.PromptFeedback.BlockReason)})
			return
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil || part.Text == "" || part.Thought {
					continue
				}
				if !send(ctx, chunks, &agent.CompletionChunk{Text: part.Text}) {
					return
				}
			}
		}
	}
	send(ctx, chunks, &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens})
}

func convertGoogleMessages(messages []agent.CompletionMessage) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		result = append(result, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}
	return result
}

func buildGoogleConfig(req *agent.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		// #nosec G115 -- bounded by maxTokens
		MaxOutputTokens: int32(maxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	return config
}

func (p *GoogleProvider) wrapError(err error, model string) error {
	if _, ok := GetProviderError(err); ok {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe := NewProviderError(p.name, model, err).WithMessage(apiErr.Message).WithStatus(apiErr.Code)
		if apiErr.Status != "" {
			pe.Code = apiErr.Status
		}
		return pe
	}
	return NewProviderError(p.name, model, err)
}
