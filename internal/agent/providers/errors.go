package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailoverReason categorizes why a provider request failed.
type FailoverReason string

const (
	// FailoverBilling indicates payment/quota issues (HTTP 402)
	FailoverBilling FailoverReason = "billing"

	// FailoverRateLimit indicates rate limiting (HTTP 429)
	FailoverRateLimit FailoverReason = "rate_limit"

	// FailoverAuth indicates authentication failure (HTTP 401, 403)
	FailoverAuth FailoverReason = "auth"

	// FailoverTimeout indicates request timeout
	FailoverTimeout FailoverReason = "timeout"

	// FailoverNetwork indicates the endpoint could not be reached at all
	FailoverNetwork FailoverReason = "network"

	// FailoverServerError indicates server-side issues (HTTP 5xx)
	FailoverServerError FailoverReason = "server_error"

	// FailoverInvalidRequest indicates client-side issues (HTTP 400)
	FailoverInvalidRequest FailoverReason = "invalid_request"

	// FailoverModelUnavailable indicates the model is not available
	FailoverModelUnavailable FailoverReason = "model_unavailable"

	// FailoverContentFilter indicates content was blocked by safety filters
	FailoverContentFilter FailoverReason = "content_filter"

	// FailoverMalformedResponse indicates a reply that could not be decoded
	// or carried no text.
	FailoverMalformedResponse FailoverReason = "malformed_response"

	// FailoverCanceled indicates the caller cancelled the request
	FailoverCanceled FailoverReason = "canceled"

	// FailoverUnknown indicates an unclassified error
	FailoverUnknown FailoverReason = "unknown"
)

// IsRetryable returns true if retrying the same backend may succeed.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError, FailoverNetwork:
		return true
	default:
		return false
	}
}

// IsUnavailable reports whether the backend itself should be considered down,
// as opposed to the reply being unusable.
func (r FailoverReason) IsUnavailable() bool {
	switch r {
	case FailoverMalformedResponse, FailoverContentFilter, FailoverInvalidRequest, FailoverCanceled:
		return false
	default:
		return true
	}
}

// ProviderError is a structured error from an LLM provider.
type ProviderError struct {
	Reason    FailoverReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps cause and classifies it.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Reason:   FailoverUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// malformed builds a FailoverMalformedResponse error.
func malformed(provider, model, format string, args ...any) *ProviderError {
	return &ProviderError{
		Reason:   FailoverMalformedResponse,
		Provider: provider,
		Model:    model,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithStatus adds HTTP status to the error and reclassifies if needed.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if reason := classifyStatusCode(status); reason != FailoverUnknown {
		e.Reason = reason
	}
	return e
}

// WithCode adds a provider-specific error code.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != FailoverUnknown {
		e.Reason = reason
	}
	return e
}

// WithRequestID adds the provider's request ID.
func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

// WithMessage sets the error message.
func (e *ProviderError) WithMessage(msg string) *ProviderError {
	e.Message = msg
	return e
}

// ClassifyError inspects an error and returns the appropriate FailoverReason.
// Typed errors are checked first; message patterns are the fallback for
// SDKs that only surface strings.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason
	}
	if errors.Is(err, context.Canceled) {
		return FailoverCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailoverTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailoverTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailoverNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailoverNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "deadline exceeded", "etimedout"):
		return FailoverTimeout
	case containsAny(errStr, "connection refused", "no such host", "connection reset"):
		return FailoverNetwork
	case containsAny(errStr, "rate limit", "rate_limit", "too many requests", "throttl"):
		return FailoverRateLimit
	case containsAny(errStr, "unauthorized", "invalid api key", "invalid_api_key", "authentication", "access denied"):
		return FailoverAuth
	case containsAny(errStr, "billing", "payment", "quota", "insufficient"):
		return FailoverBilling
	case containsAny(errStr, "content_filter", "content policy", "safety", "blocked"):
		return FailoverContentFilter
	case containsAny(errStr, "model not found", "model_not_found", "does not exist", "unavailable"):
		return FailoverModelUnavailable
	case containsAny(errStr, "internal server", "server error", "bad gateway"):
		return FailoverServerError
	}
	return FailoverUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func classifyStatusCode(status int) FailoverReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailoverAuth
	case status == http.StatusPaymentRequired:
		return FailoverBilling
	case status == http.StatusTooManyRequests:
		return FailoverRateLimit
	case status == http.StatusBadRequest:
		return FailoverInvalidRequest
	case status == http.StatusNotFound:
		return FailoverModelUnavailable
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return FailoverTimeout
	case status >= 500:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

func classifyErrorCode(code string) FailoverReason {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded", "throttlingexception", "toomanyrequestsexception":
		return FailoverRateLimit
	case "authentication_error", "invalid_api_key", "accessdeniedexception", "unrecognizedclientexception":
		return FailoverAuth
	case "billing_error", "insufficient_quota", "servicequotaexceededexception":
		return FailoverBilling
	case "model_not_found", "model_not_available", "not_found_error", "resourcenotfoundexception", "modelnotreadyexception":
		return FailoverModelUnavailable
	case "content_policy_violation", "content_filter":
		return FailoverContentFilter
	case "server_error", "internal_error", "api_error", "overloaded_error", "internalserverexception", "serviceunavailableexception", "modelerrorexception":
		return FailoverServerError
	case "modeltimeoutexception":
		return FailoverTimeout
	case "invalid_request_error", "validationexception":
		return FailoverInvalidRequest
	default:
		return FailoverUnknown
	}
}

// GetProviderError extracts a ProviderError from an error chain.
func GetProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	return ClassifyError(err).IsRetryable()
}
