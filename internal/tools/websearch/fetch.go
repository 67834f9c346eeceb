package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// FetchConfig controls web_fetch defaults.
type FetchConfig struct {
	// MaxChars caps returned text in runes. Default: 4000.
	MaxChars int
	Timeout  time.Duration
}

// FetchParams are the web_fetch tool's inputs.
type FetchParams struct {
	URL      string `json:"url" jsonschema:"description=URL to fetch (http or https only)"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"description=Maximum characters to return,minimum=0"`
}

// WebFetchTool fetches a page and returns its readable text.
type WebFetchTool struct {
	config    FetchConfig
	extractor *ContentExtractor
}

// WebFetchOption customizes WebFetchTool construction.
type WebFetchOption func(*WebFetchTool)

// WithExtractor overrides the default content extractor.
func WithExtractor(extractor *ContentExtractor) WebFetchOption {
	return func(tool *WebFetchTool) {
		if extractor != nil {
			tool.extractor = extractor
		}
	}
}

// NewWebFetchTool creates a new web_fetch tool with defaults applied.
func NewWebFetchTool(config FetchConfig, opts ...WebFetchOption) *WebFetchTool {
	if config.MaxChars <= 0 {
		config.MaxChars = 4000
	}
	tool := &WebFetchTool{
		config:    config,
		extractor: NewContentExtractor(config.Timeout),
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

// Name returns the tool name for registration with the agent runtime.
func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

// Description returns the tool description.
func (t *WebFetchTool) Description() string {
	return "Fetch a web page and return its main readable text. Input: the URL."
}

// Schema returns the JSON schema for tool parameters.
func (t *WebFetchTool) Schema() json.RawMessage {
	return agent.SchemaFor(FetchParams{})
}

// Execute fetches and extracts the page. max_chars can only lower the
// configured limit.
func (t *WebFetchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p FetchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	p.URL = strings.TrimSpace(p.URL)
	if p.URL == "" {
		return &agent.ToolResult{Content: "Missing required parameter: url", IsError: true}, nil
	}

	limit := t.config.MaxChars
	if p.MaxChars > 0 && p.MaxChars < limit {
		limit = p.MaxChars
	}

	page, err := t.extractor.Extract(ctx, p.URL)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Fetch failed: %v", err), IsError: true}, nil
	}
	if page.Text == "" {
		return &agent.ToolResult{Content: fmt.Sprintf("No readable content at %s", page.URL), IsError: true}, nil
	}

	text, truncated := truncateRunes(page.Text, limit)
	var b strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", page.Title)
	}
	if page.Byline != "" {
		fmt.Fprintf(&b, "By: %s\n", page.Byline)
	}
	fmt.Fprintf(&b, "URL: %s\n\n%s", page.URL, text)
	if truncated {
		b.WriteString("\n[truncated]")
	}
	return &agent.ToolResult{Content: b.String()}, nil
}
