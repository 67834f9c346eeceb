package models

import "time"

// SearchAttempt is one (variant, source) pair tried by the search aggregator.
type SearchAttempt struct {
	Variant         string `json:"variant"`
	Source          string `json:"source"`
	Result          string `json:"result,omitempty"`
	Accepted        bool   `json:"accepted"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// Timing records when a request was handled.
type Timing struct {
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	DurationMs int64     `json:"durationMs"`
}

// ResponseEnvelope is the final, immutable answer to a Query.
type ResponseEnvelope struct {
	Text                   string          `json:"text"`
	DispatchPathUsed       DispatchPath    `json:"dispatchPathUsed"`
	DispatchPathClassified DispatchPath    `json:"dispatchPathClassified"`
	BackendUsed            string          `json:"backendUsed"`
	BackendRequested       string          `json:"backendRequested,omitempty"`
	BackendSubstituted     bool            `json:"backendSubstituted"`
	Trace                  *AgentTrace     `json:"trace,omitempty"`
	SearchAttempts         []SearchAttempt `json:"searchAttempts,omitempty"`
	Timing                 Timing          `json:"timing"`
	Degraded               bool            `json:"degraded"`
	DegradeReason          string          `json:"degradeReason,omitempty"`
}
