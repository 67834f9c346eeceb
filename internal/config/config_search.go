package config

import (
	"fmt"
	"time"
)

// SearchConfig configures the web-search aggregator and page fetch tool.
type SearchConfig struct {
	// Sources are tried in order for every query variant. Sources that need
	// a URL or key are skipped when it is missing.
	Sources []string `yaml:"sources"`

	MaxVariants     int      `yaml:"max_variants"`
	MinResultLength int      `yaml:"min_result_length"`
	NoResultPhrases []string `yaml:"no_result_phrases"`

	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`

	// Timeout bounds a single source request.
	Timeout time.Duration `yaml:"timeout"`

	DuckDuckGoURL     string `yaml:"duckduckgo_url"`
	DuckDuckGoLiteURL string `yaml:"duckduckgo_lite_url"`
	SearXNGURL        string `yaml:"searxng_url"`
	BraveURL          string `yaml:"brave_url"`
	BraveAPIKey       string `yaml:"brave_api_key"`

	Fetch FetchConfig `yaml:"fetch"`
}

// FetchConfig configures the web_fetch tool.
type FetchConfig struct {
	Enabled  *bool `yaml:"enabled"`
	MaxChars int   `yaml:"max_chars"`
}

// Known search source names.
const (
	SourceDuckDuckGo     = "duckduckgo"
	SourceDuckDuckGoLite = "duckduckgo_lite"
	SourceSearXNG        = "searxng"
	SourceBrave          = "brave"
)

// DefaultNoResultPhrases mark a search result as empty.
var DefaultNoResultPhrases = []string{
	"no good duckduckgo search result",
	"no results found",
	"sin resultados",
	"no se encontraron resultados",
	"no abstract available",
}

func applySearchDefaults(s *SearchConfig) {
	if len(s.Sources) == 0 {
		s.Sources = []string{SourceDuckDuckGo, SourceDuckDuckGoLite, SourceSearXNG, SourceBrave}
	}
	if s.MaxVariants == 0 {
		s.MaxVariants = 3
	}
	if s.MinResultLength == 0 {
		s.MinResultLength = 50
	}
	if len(s.NoResultPhrases) == 0 {
		s.NoResultPhrases = append([]string(nil), DefaultNoResultPhrases...)
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = 5 * time.Minute
	}
	if s.CacheSize == 0 {
		s.CacheSize = 1000
	}
	if s.Timeout == 0 {
		s.Timeout = 10 * time.Second
	}
	if s.DuckDuckGoURL == "" {
		s.DuckDuckGoURL = "https://api.duckduckgo.com/"
	}
	if s.DuckDuckGoLiteURL == "" {
		s.DuckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"
	}
	if s.BraveURL == "" {
		s.BraveURL = "https://api.search.brave.com/res/v1/web/search"
	}
	if s.Fetch.Enabled == nil {
		enabled := true
		s.Fetch.Enabled = &enabled
	}
	if s.Fetch.MaxChars == 0 {
		s.Fetch.MaxChars = 4000
	}
}

// FetchEnabled reports whether the web_fetch tool should be registered.
func (s SearchConfig) FetchEnabled() bool {
	return s.Fetch.Enabled == nil || *s.Fetch.Enabled
}

func validateSearch(s SearchConfig) []string {
	var problems []string
	for i, name := range s.Sources {
		switch name {
		case SourceDuckDuckGo, SourceDuckDuckGoLite, SourceSearXNG, SourceBrave:
		default:
			problems = append(problems, fmt.Sprintf("search.sources[%d]: unknown source %q", i, name))
		}
	}
	if s.MaxVariants < 1 {
		problems = append(problems, "search.max_variants must be positive")
	}
	if s.MinResultLength < 0 {
		problems = append(problems, "search.min_result_length must not be negative")
	}
	return problems
}
