package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// Prober checks whether a backend can serve requests.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// ModelLister is implemented by local daemons that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ModelProbe requires the daemon to list model. A missing ":latest" tag on
// either side is ignored.
type ModelProbe struct {
	Lister ModelLister
	Model  string
}

func (p ModelProbe) Probe(ctx context.Context) error {
	installed, err := p.Lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	want := normalizeTag(p.Model)
	for _, name := range installed {
		if normalizeTag(name) == want {
			return nil
		}
	}
	return fmt.Errorf("model %q is not installed (have %s)", p.Model, strings.Join(installed, ", "))
}

func normalizeTag(model string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(model)), ":latest")
}

var errMissingCredentials = errors.New("missing credentials")

// CredentialProbe passes when the kind's required credentials are present.
type CredentialProbe struct {
	HasCredentials bool
}

func (p CredentialProbe) Probe(context.Context) error {
	if !p.HasCredentials {
		return errMissingCredentials
	}
	return nil
}

func defaultProber(kind Kind, provider agent.LLMProvider, model string) Prober {
	if lister, ok := provider.(ModelLister); ok && kind.IsLocal() {
		return ModelProbe{Lister: lister, Model: model}
	}
	return CredentialProbe{HasCredentials: provider != nil}
}
