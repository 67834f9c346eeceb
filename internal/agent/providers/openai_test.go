package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

func sseServer(t *testing.T, check func(r *http.Request), events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestOpenAICompleteStreams(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var title string
	srv := sseServer(t, func(r *http.Request) {
		title = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&body)
	},
		`{"id":"1","choices":[{"index":0,"delta":{"content":"Java es"}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"content":" un lenguaje."},"finish_reason":"stop"}]}`,
		`{"id":"1","choices":[],"usage":{"prompt_tokens":7,"completion_tokens":4,"total_tokens":11}}`,
	)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{
		Name:         "openrouter",
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "openai/gpt-4o-mini",
		Headers:      map[string]string{"X-Title": "pathfinder"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openrouter" {
		t.Errorf("name = %q", p.Name())
	}

	temp := 0.5
	ch, err := p.Complete(context.Background(), &agent.CompletionRequest{
		System:      "sys",
		Messages:    []agent.CompletionMessage{{Role: "user", Content: "¿Qué es Java?"}},
		MaxTokens:   200,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var text string
	var done *agent.CompletionChunk
	for chunk := range ch {
		if chunk.Error != nil {
			t.Fatalf("stream error: %v", chunk.Error)
		}
		text += chunk.Text
		if chunk.Done {
			done = chunk
		}
	}
	if text != "Java es un lenguaje." {
		t.Errorf("text = %q", text)
	}
	if done == nil || done.InputTokens != 7 || done.OutputTokens != 4 {
		t.Errorf("done chunk = %+v", done)
	}
	if body.Model != "openai/gpt-4o-mini" || body.MaxTokens != 200 || body.Temperature != 0.5 {
		t.Errorf("request = %+v", body)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", body.Messages)
	}
	if title != "pathfinder" {
		t.Errorf("X-Title = %q", title)
	}
}

func TestOpenAICompleteClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   FailoverReason
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`, FailoverAuth},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, FailoverRateLimit},
		{http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`, FailoverServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p, _ := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "gpt-4o-mini"})
			_, err := p.Complete(context.Background(), &agent.CompletionRequest{
				Messages: []agent.CompletionMessage{{Role: "user", Content: "q"}},
			})
			pe, ok := GetProviderError(err)
			if !ok {
				t.Fatalf("err = %v, want *ProviderError", err)
			}
			if pe.Reason != tt.want {
				t.Errorf("reason = %s, want %s (%v)", pe.Reason, tt.want, err)
			}
			if pe.Status != tt.status {
				t.Errorf("status = %d", pe.Status)
			}
		})
	}
}
