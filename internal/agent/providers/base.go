// Package providers contains LLM provider implementations. Each provider
// streams a single text completion; retries and failover live in the
// backend layer.
package providers

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// defaultMaxTokens applies when neither the request nor the provider sets one.
const defaultMaxTokens = 1000

// base holds what every provider shares.
type base struct {
	name         string
	defaultModel string
	timeout      time.Duration
}

func newBase(name, defaultModel string, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return base{name: name, defaultModel: strings.TrimSpace(defaultModel), timeout: timeout}
}

// Name returns the provider name.
func (b *base) Name() string { return b.name }

// Models returns the configured default model, if any.
func (b *base) Models() []agent.Model {
	if b.defaultModel == "" {
		return nil
	}
	return []agent.Model{{ID: b.defaultModel, Name: b.defaultModel}}
}

func (b *base) model(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return b.defaultModel
}

func maxTokens(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return min(n, math.MaxInt32)
}

// send delivers a chunk unless ctx is done first.
func send(ctx context.Context, out chan<- *agent.CompletionChunk, chunk *agent.CompletionChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail sends a terminal error chunk. The consumer may already be gone, so it
// never blocks past ctx.
func fail(ctx context.Context, out chan<- *agent.CompletionChunk, err error) {
	send(ctx, out, &agent.CompletionChunk{Error: err, Done: true})
}
