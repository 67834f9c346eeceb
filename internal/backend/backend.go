package backend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/agent/providers"
	"github.com/haasonsaas/pathfinder/internal/backoff"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

const defaultTimeout = 60 * time.Second

// Backend is one configured model endpoint. Everything except the
// availability flag is fixed at construction; only the Registry flips it.
type Backend struct {
	ID       string
	Kind     Kind
	Model    string
	Sampling models.Sampling

	provider  agent.LLMProvider
	prober    Prober
	available atomic.Bool

	timeout     time.Duration
	maxAttempts int
	policy      backoff.Policy

	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

var _ agent.Completer = (*Backend)(nil)

// Options configures a Backend.
type Options struct {
	Sampling models.Sampling

	// Timeout bounds each attempt. Default: 60s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// retryable failures. Negative or zero means no retries.
	MaxRetries int

	// Policy overrides backoff.BackendPolicy.
	Policy *backoff.Policy

	// Prober overrides the kind's default probe.
	Prober Prober

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// New creates a backend around provider. The backend starts unavailable
// until a Registry probes it.
func New(id string, kind Kind, model string, provider agent.LLMProvider, opts Options) *Backend {
	if model == "" {
		model = kind.Capability().DefaultModel
	}
	b := &Backend{
		ID:          id,
		Kind:        kind,
		Model:       model,
		Sampling:    opts.Sampling,
		provider:    provider,
		prober:      opts.Prober,
		timeout:     opts.Timeout,
		maxAttempts: 1 + max(opts.MaxRetries, 0),
		policy:      backoff.BackendPolicy(),
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      opts.Logger,
	}
	if b.timeout <= 0 {
		b.timeout = defaultTimeout
	}
	if opts.Policy != nil {
		b.policy = *opts.Policy
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.prober == nil {
		b.prober = defaultProber(kind, provider, model)
	}
	return b
}

// Available reports the result of the most recent probe.
func (b *Backend) Available() bool { return b.available.Load() }

// Locality returns where the backend's model runs.
func (b *Backend) Locality() Locality { return b.Kind.Capability().Locality }

// Complete sends one system+user exchange and returns the completion text.
// Failures are *UnavailableError or *ProtocolError.
func (b *Backend) Complete(ctx context.Context, system, user string, overrides *models.Sampling) (string, error) {
	if b.provider == nil {
		return "", &UnavailableError{Backend: b.ID, Reason: providers.FailoverUnknown, Cause: ErrNoClient}
	}
	req := b.request(system, user, overrides)

	ctx, span := b.tracer.TraceBackend(ctx, b.ID, b.Kind.String(), b.Model)
	defer span.End()
	start := time.Now()

	res, err := backoff.Retry(ctx, b.policy, b.maxAttempts, func(ctx context.Context, attempt int) (string, error) {
		text, err := b.once(ctx, req)
		if err == nil {
			return text, nil
		}
		if !providers.IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		if attempt < b.maxAttempts {
			b.logger.Debug("retrying backend call",
				"backend", b.ID, "attempt", attempt, "error", err)
		}
		return "", err
	})
	if err != nil {
		err = classify(b.ID, err, res.Attempts)
		observability.RecordError(span, err)
		status := "unavailable"
		switch {
		case IsProtocol(err):
			status = "protocol"
		case errors.Is(err, context.Canceled):
			status = "canceled"
		}
		b.metrics.RecordBackendRequest(b.ID, b.Kind.String(), status, time.Since(start))
		return "", err
	}
	b.metrics.RecordBackendRequest(b.ID, b.Kind.String(), "success", time.Since(start))
	return res.Value, nil
}

func (b *Backend) request(system, user string, overrides *models.Sampling) *agent.CompletionRequest {
	req := &agent.CompletionRequest{
		Model:       b.Model,
		System:      system,
		Messages:    []agent.CompletionMessage{{Role: "user", Content: user}},
		MaxTokens:   b.Sampling.MaxTokens,
		Temperature: b.Sampling.Temperature,
	}
	if overrides != nil {
		if overrides.MaxTokens > 0 {
			req.MaxTokens = overrides.MaxTokens
		}
		if overrides.Temperature != nil {
			req.Temperature = overrides.Temperature
		}
	}
	return req
}

// once runs a single attempt and drains the stream into text.
func (b *Backend) once(ctx context.Context, req *agent.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	chunks, err := b.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return "", chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &providers.ProviderError{
			Reason:   providers.FailoverMalformedResponse,
			Provider: b.provider.Name(),
			Model:    b.Model,
			Message:  "empty completion",
		}
	}
	return text, nil
}

// ping issues the one-token probe completion.
func (b *Backend) ping(ctx context.Context) error {
	if b.provider == nil {
		return ErrNoClient
	}
	_, err := b.once(ctx, &agent.CompletionRequest{
		Model:     b.Model,
		Messages:  []agent.CompletionMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func (b *Backend) setAvailable(v bool) {
	b.available.Store(v)
	b.metrics.SetBackendAvailable(b.ID, v)
}
