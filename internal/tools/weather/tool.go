package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// ToolParams are the weather tool's inputs.
type ToolParams struct {
	City string `json:"city" jsonschema:"description=City name, for example Quito or London"`
}

// Tool implements agent.Tool over a Client.
type Tool struct {
	client *Client
}

// NewTool wraps client.
func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string { return "weather" }

func (t *Tool) Description() string {
	return "Current weather conditions for a city (temperature, humidity, wind). Input: the city name."
}

func (t *Tool) Schema() json.RawMessage { return agent.SchemaFor(ToolParams{}) }

// Execute looks up the weather. Lookup failures become error observations.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p ToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	city := ExtractCity(p.City, t.client.DefaultCity())

	report, err := t.client.Lookup(ctx, city)
	if err != nil {
		var lookupErr *LookupError
		if errors.As(err, &lookupErr) {
			return &agent.ToolResult{Content: lookupErr.Message, IsError: true}, nil
		}
		return nil, err
	}
	return &agent.ToolResult{Content: report.Format(t.client.Lang())}, nil
}
