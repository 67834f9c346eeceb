// Package models provides the request-scoped domain types shared by the
// Pathfinder orchestrator, its HTTP surface and its CLI.
package models

import "strings"

// Mode is the caller's hint about how a query should be answered.
type Mode string

const (
	// ModeSimple is the default hint. Heuristics may still promote the query.
	ModeSimple Mode = "simple"
	// ModeAgent forces the tool-augmented reasoning loop.
	ModeAgent Mode = "agent"
	// ModeSearch forces a single web-search pass summarized by the backend.
	ModeSearch Mode = "search"
)

// ParseMode normalizes a user-supplied mode, including the Spanish aliases
// used by the web front end. Unknown values map to ModeSimple.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent", "agente":
		return ModeAgent
	case "search", "busqueda_rapida", "busqueda", "búsqueda":
		return ModeSearch
	default:
		return ModeSimple
	}
}

// IsExplicit reports whether the mode overrides heuristic classification.
func (m Mode) IsExplicit() bool {
	return m == ModeAgent || m == ModeSearch
}

// Query is a single user request. It is created per request and never mutated.
type Query struct {
	// Text is the raw question.
	Text string `json:"text"`

	// Mode is the explicit mode hint.
	Mode Mode `json:"mode,omitempty"`

	// BackendID optionally names the backend the caller wants.
	BackendID string `json:"backend,omitempty"`

	// InternetAllowed gates every path that touches the network besides the backend.
	InternetAllowed bool `json:"internet"`
}

// DispatchPath is the response strategy chosen for a query.
type DispatchPath string

const (
	PathSimple  DispatchPath = "simple"
	PathAgent   DispatchPath = "agent"
	PathWeather DispatchPath = "weather"
	PathSearch  DispatchPath = "search"
)

// Strength orders paths from weakest to strongest. Demotion always moves to
// a strictly weaker path.
func (p DispatchPath) Strength() int {
	switch p {
	case PathAgent:
		return 3
	case PathWeather, PathSearch:
		return 2
	case PathSimple:
		return 1
	default:
		return 0
	}
}

// Sampling carries optional per-call overrides for a backend.
type Sampling struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}
