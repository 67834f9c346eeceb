// Package backend owns the configured model backends: the closed set of
// provider kinds, the adapter that turns a prompt into text, and the
// registry that probes and resolves backends.
package backend

import (
	"fmt"
	"strings"
)

// Kind identifies a provider implementation.
type Kind int

const (
	KindAnthropic Kind = iota + 1
	KindOpenAI
	KindOpenRouter
	KindGoogle
	KindOllama
	KindBedrock
)

// Locality says where a backend's model runs.
type Locality int

const (
	LocalityCloud Locality = iota
	LocalityLocal
)

func (l Locality) String() string {
	if l == LocalityLocal {
		return "local"
	}
	return "cloud"
}

// Capability describes what a kind needs and provides.
type Capability struct {
	Name           string
	Locality       Locality
	RequiresAPIKey bool
	DefaultModel   string
	DefaultBaseURL string
}

var capabilities = map[Kind]Capability{
	KindAnthropic: {
		Name:           "anthropic",
		RequiresAPIKey: true,
		DefaultModel:   "claude-3-5-haiku-latest",
		DefaultBaseURL: "https://api.anthropic.com",
	},
	KindOpenAI: {
		Name:           "openai",
		RequiresAPIKey: true,
		DefaultModel:   "gpt-4o-mini",
		DefaultBaseURL: "https://api.openai.com/v1",
	},
	KindOpenRouter: {
		Name:           "openrouter",
		RequiresAPIKey: true,
		DefaultModel:   "openai/gpt-4o-mini",
		DefaultBaseURL: "https://openrouter.ai/api/v1",
	},
	KindGoogle: {
		Name:           "google",
		RequiresAPIKey: true,
		DefaultModel:   "gemini-2.0-flash",
		DefaultBaseURL: "https://generativelanguage.googleapis.com",
	},
	KindOllama: {
		Name:           "ollama",
		Locality:       LocalityLocal,
		DefaultModel:   "llama3",
		DefaultBaseURL: "http://localhost:11434",
	},
	KindBedrock: {
		Name:         "bedrock",
		DefaultModel: "anthropic.claude-3-haiku-20240307-v1:0",
	},
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindAnthropic, KindOpenAI, KindOpenRouter, KindGoogle, KindOllama, KindBedrock}
}

// ParseKind maps a configured kind name to a Kind. "gemini" is accepted for google.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "gemini" {
		return KindGoogle, nil
	}
	for _, k := range Kinds() {
		if capabilities[k].Name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown backend kind %q", s)
}

// Capability returns the kind's table row. Unknown kinds return the zero value.
func (k Kind) Capability() Capability { return capabilities[k] }

// IsLocal reports whether the kind runs on a local daemon.
func (k Kind) IsLocal() bool { return capabilities[k].Locality == LocalityLocal }

func (k Kind) String() string {
	if c, ok := capabilities[k]; ok {
		return c.Name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
