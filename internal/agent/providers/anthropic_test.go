package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

func anthropicSSE(events ...[2]string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
		}
	}
}

func TestNewAnthropicProviderRequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestAnthropicCompleteStreams(t *testing.T) {
	srv := httptest.NewServer(anthropicSSE(
		[2]string{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-haiku-latest","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hola"}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", mundo"}}`},
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		[2]string{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":6}}`},
		[2]string{"message_stop", `{"type":"message_stop"}`},
	))
	defer srv.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatal(err)
	}
	ch, err := p.Complete(context.Background(), &agent.CompletionRequest{
		System:   "sys",
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hola"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	var last *agent.CompletionChunk
	for chunk := range ch {
		if chunk.Error != nil {
			t.Fatalf("stream error: %v", chunk.Error)
		}
		b.WriteString(chunk.Text)
		last = chunk
	}
	if b.String() != "Hola, mundo" {
		t.Errorf("text = %q", b.String())
	}
	if last == nil || !last.Done || last.InputTokens != 12 || last.OutputTokens != 6 {
		t.Errorf("final chunk = %+v", last)
	}
}

func TestAnthropicStreamWithoutStopIsMalformed(t *testing.T) {
	srv := httptest.NewServer(anthropicSSE(
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}`},
	))
	defer srv.Close()

	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"})
	ch, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "q"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = collect(t, ch)
	if pe, ok := GetProviderError(err); !ok || pe.Reason != FailoverMalformedResponse {
		t.Errorf("err = %v, want malformed response", err)
	}
}

func TestAnthropicHTTPErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
	}))
	defer srv.Close()

	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"})
	ch, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "q"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = collect(t, ch)
	pe, ok := GetProviderError(err)
	if !ok {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Reason != FailoverRateLimit || pe.Status != http.StatusTooManyRequests {
		t.Errorf("reason = %s status = %d", pe.Reason, pe.Status)
	}
	if !strings.Contains(pe.Message, "rate limit") {
		t.Errorf("message = %q", pe.Message)
	}
}
