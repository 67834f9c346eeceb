package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// SearchParams are the web_search tool's inputs.
type SearchParams struct {
	Query string `json:"query" jsonschema:"description=What to search for"`
}

// WebSearchTool implements agent.Tool over an Aggregator.
type WebSearchTool struct {
	aggregator *Aggregator
}

// NewWebSearchTool wraps aggregator.
func NewWebSearchTool(aggregator *Aggregator) *WebSearchTool {
	return &WebSearchTool{aggregator: aggregator}
}

// Name returns the tool name for registration with the agent runtime.
func (t *WebSearchTool) Name() string {
	return "web_search"
}

// Description returns the tool description.
func (t *WebSearchTool) Description() string {
	return "Search the web for current information such as news, prices, sports results and recent events. Input: the search query."
}

// Schema returns the JSON schema for tool parameters used by LLMs.
func (t *WebSearchTool) Schema() json.RawMessage {
	return agent.SchemaFor(SearchParams{})
}

// Execute runs the aggregated search. Exhaustion is an error observation
// listing every rejected attempt.
func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p SearchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	if p.Query == "" {
		return &agent.ToolResult{Content: "Query parameter is required", IsError: true}, nil
	}

	res, err := t.aggregator.Search(ctx, p.Query)
	if err != nil {
		var noResult *NoAcceptableResultError
		if errors.As(err, &noResult) {
			return &agent.ToolResult{
				Content: fmt.Sprintf("No useful results for %q. Attempts:\n%s", p.Query, noResult.Summary()),
				IsError: true,
			}, nil
		}
		return nil, err
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("[%s: %s]\n%s", res.Accepted.Source, res.Accepted.Variant, res.Accepted.Result),
	}, nil
}
