package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool parameter limits.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 1 << 20
)

type registeredTool struct {
	tool       Tool
	schema     *jsonschema.Schema
	inputField string
}

// ToolRegistry holds the tools available to the agent loop. Schemas are
// compiled once at registration.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*registeredTool)}
}

// Register adds or replaces a tool. It fails if the tool's schema does not compile.
func (r *ToolRegistry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" || len(name) > MaxToolNameLength {
		return fmt.Errorf("invalid tool name %q", name)
	}
	rt := &registeredTool{tool: tool}
	if raw := tool.Schema(); len(raw) > 0 {
		compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", name, err)
		}
		rt.schema = compiled
		rt.inputField = primaryField(raw)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = rt
	return nil
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders "name: description" lines for prompts.
func (r *ToolRegistry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		tool, _ := r.Get(name)
		fmt.Fprintf(&b, "%s: %s\n", name, tool.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Params converts free-text action input into tool parameters. A JSON
// object is passed through; anything else is assigned to the tool's
// primary (first required) string field.
func (r *ToolRegistry) Params(name, input string) (json.RawMessage, error) {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	field := rt.inputField
	if field == "" {
		field = "input"
	}
	return json.Marshal(map[string]string{field: strings.Trim(trimmed, `"'`)})
}

// Validate checks params against the tool's compiled schema.
func (r *ToolRegistry) Validate(name string, params json.RawMessage) error {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if len(params) > MaxToolParamsSize {
		return fmt.Errorf("tool parameters exceed %d bytes", MaxToolParamsSize)
	}
	if rt.schema == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}
	return rt.schema.Validate(decoded)
}

// primaryField returns the first required property of an object schema, or
// the first declared property when none is required.
func primaryField(raw json.RawMessage) string {
	var s struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	if len(s.Required) > 0 {
		return s.Required[0]
	}
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		return keys[0]
	}
	return ""
}

// SchemaFor reflects a parameter struct into an inline JSON schema. Fields
// without omitempty are required.
func SchemaFor(v any) json.RawMessage {
	r := &invopop.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}
