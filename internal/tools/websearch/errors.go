package websearch

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/pathfinder/pkg/models"
)

// ReasonToolInvocationFailure prefixes the rejection reason of an attempt
// whose source call failed.
const ReasonToolInvocationFailure = "tool_invocation_failure"

// SourceError is a failed call to a search source. It is recorded as a
// rejected attempt and never returned from Search.
type SourceError struct {
	Source string
	Query  string
	Status int
	Cause  error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s search for %q failed", e.Source, e.Query)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Cause }

// NoAcceptableResultError means every variant/source pair was rejected.
type NoAcceptableResultError struct {
	Query    string
	Attempts []models.SearchAttempt
}

func (e *NoAcceptableResultError) Error() string {
	return fmt.Sprintf("no acceptable search result for %q after %d attempts", e.Query, len(e.Attempts))
}

// Summary lists each attempt and why it was rejected, one per line.
func (e *NoAcceptableResultError) Summary() string {
	var b strings.Builder
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "%d. [%s] %q: %s\n", i+1, a.Source, a.Variant, a.RejectionReason)
	}
	return strings.TrimRight(b.String(), "\n")
}
