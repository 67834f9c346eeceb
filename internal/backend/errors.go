package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/pathfinder/internal/agent/providers"
)

var (
	// ErrNoBackendsConfigured is returned at startup when no backend passes probing.
	ErrNoBackendsConfigured = errors.New("no backends available")

	// ErrNoClient means the backend was registered without a provider.
	ErrNoClient = errors.New("backend has no client")
)

// UnavailableError means the backend could not serve the call: transport
// failure, timeout, auth, quota, rate limit after retries, or server error.
type UnavailableError struct {
	Backend  string
	Reason   providers.FailoverReason
	Attempts int
	Cause    error
}

func (e *UnavailableError) Error() string {
	return formatError("backend unavailable", e.Backend, e.Reason, e.Attempts, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// ProtocolError means the backend answered but the reply was unusable:
// malformed, empty, filtered, or the request itself was rejected.
type ProtocolError struct {
	Backend string
	Reason  providers.FailoverReason
	Cause   error
}

func (e *ProtocolError) Error() string {
	return formatError("backend protocol error", e.Backend, e.Reason, 0, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func formatError(prefix, backend string, reason providers.FailoverReason, attempts int, cause error) string {
	var b strings.Builder
	b.WriteString(prefix)
	if backend != "" {
		fmt.Fprintf(&b, " [%s]", backend)
	}
	if reason != "" {
		fmt.Fprintf(&b, " reason=%s", reason)
	}
	if attempts > 1 {
		fmt.Fprintf(&b, " attempts=%d", attempts)
	}
	if cause != nil {
		b.WriteString(": ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

// IsUnavailable reports whether err carries an *UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsProtocol reports whether err carries a *ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// classify converts a provider failure into the adapter's error taxonomy.
// A cancelled call is neither: it says nothing about the backend.
func classify(backendID string, err error, attempts int) error {
	reason := providers.ClassifyError(err)
	if reason == providers.FailoverCanceled {
		return fmt.Errorf("backend [%s] call canceled: %w", backendID, err)
	}
	if reason.IsUnavailable() {
		return &UnavailableError{Backend: backendID, Reason: reason, Attempts: attempts, Cause: err}
	}
	return &ProtocolError{Backend: backendID, Reason: reason, Cause: err}
}
