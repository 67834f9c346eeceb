package config

import "time"

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// AgentConfig bounds the tool-using reasoning loop.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	MaxDuration   time.Duration `yaml:"max_duration"`

	// MaxParseRetries is the number of corrective prompts allowed before the
	// loop gives up. Default: 2; negative disables corrections.
	MaxParseRetries int `yaml:"max_parse_retries"`

	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// ObservationLimit truncates tool output, in runes.
	ObservationLimit int `yaml:"observation_limit"`

	// TraceFile appends one JSONL record per agent run when set.
	TraceFile string `yaml:"trace_file"`
}

// WeatherConfig configures the wttr.in weather tool.
type WeatherConfig struct {
	BaseURL     string        `yaml:"base_url"`
	DefaultCity string        `yaml:"default_city"`
	Lang        string        `yaml:"lang"`
	Timeout     time.Duration `yaml:"timeout"`
}
