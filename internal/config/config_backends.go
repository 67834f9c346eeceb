package config

import (
	"fmt"
	"strings"
	"time"
)

// BackendConfig declares one model backend. Kind selects the provider
// implementation; the remaining fields are passed through to it.
type BackendConfig struct {
	ID    string `yaml:"id"`
	Kind  string `yaml:"kind"`
	Model string `yaml:"model"`

	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`

	// Bedrock only. Empty keys use the default AWS credential chain.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	// OpenRouter attribution headers.
	AppName string `yaml:"app_name"`
	SiteURL string `yaml:"site_url"`

	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	// Timeout bounds a single completion call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt for
	// retryable failures. Default: 2; negative disables retries.
	MaxRetries int `yaml:"max_retries"`
}

// RoutingConfig configures default backend selection.
type RoutingConfig struct {
	// PreferLocal picks the first available local backend when no rule matches.
	PreferLocal bool          `yaml:"prefer_local"`
	Rules       []RoutingRule `yaml:"rules"`
}

// RoutingRule routes matching questions to a backend. First match wins.
type RoutingRule struct {
	Name    string       `yaml:"name"`
	Match   RoutingMatch `yaml:"match"`
	Backend string       `yaml:"backend"`
}

// RoutingMatch defines rule matching criteria. Patterns are case-insensitive
// substrings; tags come from the heuristic classifier.
type RoutingMatch struct {
	Patterns []string `yaml:"patterns"`
	Tags     []string `yaml:"tags"`
}

// RegistryConfig controls backend probing.
type RegistryConfig struct {
	// ProbeWithCompletion additionally requires a one-token completion from
	// cloud backends at probe time.
	ProbeWithCompletion bool `yaml:"probe_with_completion"`

	// RefreshSchedule is a cron spec for periodic re-probing. "off" disables it.
	RefreshSchedule string `yaml:"refresh_schedule"`

	// MinProbeInterval throttles failure-triggered re-probes per backend.
	MinProbeInterval time.Duration `yaml:"min_probe_interval"`

	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

func applyBackendDefaults(b *BackendConfig) {
	b.Kind = strings.ToLower(strings.TrimSpace(b.Kind))
	if b.ID == "" {
		b.ID = b.Kind
		if b.Model != "" {
			b.ID = b.Kind + ":" + b.Model
		}
	}
	if b.Temperature == nil {
		t := defaultTemperature
		b.Temperature = &t
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = defaultMaxTokens
	}
	if b.Timeout == 0 {
		b.Timeout = 60 * time.Second
	}
	if b.MaxRetries == 0 {
		b.MaxRetries = 2
	}
}

func validateBackend(i int, b BackendConfig) []string {
	var problems []string
	if b.Kind == "" {
		problems = append(problems, fmt.Sprintf("backends[%d]: kind is required", i))
	}
	if b.Temperature != nil && (*b.Temperature < 0 || *b.Temperature > 2) {
		problems = append(problems, fmt.Sprintf("backends[%d]: temperature must be within [0,2]", i))
	}
	if b.MaxTokens < 0 {
		problems = append(problems, fmt.Sprintf("backends[%d]: max_tokens must not be negative", i))
	}
	if b.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("backends[%d]: timeout must not be negative", i))
	}
	return problems
}
