package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the main configuration structure for Pathfinder.
type Config struct {
	Version  int    `yaml:"version"`
	Language string `yaml:"language"`

	Server         ServerConfig    `yaml:"server"`
	Backends       []BackendConfig `yaml:"backends"`
	DefaultBackend string          `yaml:"default_backend"`
	Routing        RoutingConfig   `yaml:"routing"`
	Registry       RegistryConfig  `yaml:"registry"`

	Agent   AgentConfig   `yaml:"agent"`
	Search  SearchConfig  `yaml:"search"`
	Weather WeatherConfig `yaml:"weather"`

	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Load reads, merges and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: a local
// Ollama llama3 backend, plus Gemini when GOOGLE_API_KEY is set.
func Default() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Backends: []BackendConfig{
			{ID: "llama3", Kind: "ollama", Model: "llama3"},
		},
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		cfg.Backends = append(cfg.Backends, BackendConfig{
			ID: "gemini", Kind: "google", Model: "gemini-2.0-flash", APIKey: key,
		})
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	cfg.Language = strings.ToLower(cfg.Language)

	applyServerDefaults(&cfg.Server)
	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}
	applyRegistryDefaults(&cfg.Registry)
	applyAgentDefaults(&cfg.Agent)
	applySearchDefaults(&cfg.Search)
	applyWeatherDefaults(&cfg.Weather, cfg.Language)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = "/metrics"
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "pathfinder"
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 5000
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 3 * time.Minute
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{"*"}
	}
}

func applyRegistryDefaults(r *RegistryConfig) {
	if r.RefreshSchedule == "" {
		r.RefreshSchedule = "@every 1m"
	}
	if r.MinProbeInterval == 0 {
		r.MinProbeInterval = 10 * time.Second
	}
	if r.ProbeTimeout == 0 {
		r.ProbeTimeout = 5 * time.Second
	}
}

func applyAgentDefaults(a *AgentConfig) {
	if a.MaxIterations == 0 {
		a.MaxIterations = 3
	}
	if a.MaxDuration == 0 {
		a.MaxDuration = 60 * time.Second
	}
	if a.MaxParseRetries == 0 {
		a.MaxParseRetries = 2
	}
	if a.ToolTimeout == 0 {
		a.ToolTimeout = 20 * time.Second
	}
	if a.ObservationLimit == 0 {
		a.ObservationLimit = 2000
	}
}

func applyWeatherDefaults(w *WeatherConfig, language string) {
	if w.BaseURL == "" {
		w.BaseURL = "https://wttr.in"
	}
	if w.DefaultCity == "" {
		w.DefaultCity = "Quito"
	}
	if w.Lang == "" {
		w.Lang = language
	}
	if w.Timeout == 0 {
		w.Timeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch cfg.Language {
	case "es", "en":
	default:
		add("language must be es or en, got %q", cfg.Language)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port out of range: %d", cfg.Server.Port)
	}

	if len(cfg.Backends) == 0 {
		add("backends: at least one backend is required")
	}
	ids := make(map[string]bool, len(cfg.Backends))
	for i, b := range cfg.Backends {
		problems = append(problems, validateBackend(i, b)...)
		if b.ID != "" {
			if ids[b.ID] {
				add("backends[%d]: duplicate id %q", i, b.ID)
			}
			ids[b.ID] = true
		}
	}
	if cfg.DefaultBackend != "" && !ids[cfg.DefaultBackend] {
		add("default_backend %q does not name a configured backend", cfg.DefaultBackend)
	}
	for i, rule := range cfg.Routing.Rules {
		if rule.Backend == "" || !ids[rule.Backend] {
			add("routing.rules[%d]: backend %q does not name a configured backend", i, rule.Backend)
		}
		if len(rule.Match.Patterns) == 0 && len(rule.Match.Tags) == 0 {
			add("routing.rules[%d]: match needs patterns or tags", i)
		}
		for _, tag := range rule.Match.Tags {
			if !knownTags[strings.ToLower(tag)] {
				add("routing.rules[%d]: unknown tag %q", i, tag)
			}
		}
	}

	if cfg.Agent.MaxIterations < 1 {
		add("agent.max_iterations must be positive")
	}
	if cfg.Agent.MaxDuration < 0 || cfg.Agent.ToolTimeout < 0 {
		add("agent durations must not be negative")
	}

	problems = append(problems, validateSearch(cfg.Search)...)

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		add("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if rate := cfg.Observability.Tracing.SamplingRate; rate < 0 || rate > 1 {
		add("observability.tracing.sampling_rate must be within [0,1]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// knownTags are the heuristic tags routing rules may match on.
var knownTags = map[string]bool{
	"weather":   true,
	"fresh":     true,
	"code":      true,
	"reasoning": true,
	"quick":     true,
}
