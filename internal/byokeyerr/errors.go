// Package byokeyerr defines the single domain error type the whole request
// path speaks. Every layer above the
// executors (auth manager, translators, dispatcher) returns or wraps one of
// these instead of inventing ad hoc error shapes.
package byokeyerr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the closed set of domain error kinds 
type Kind int

const (
	// KindInvalidRequest maps to HTTP 400.
	KindInvalidRequest Kind = iota
	// KindModelUnknown maps to HTTP 404.
	KindModelUnknown
	// KindNotAuthenticated maps to HTTP 401; tells the client to run `byokey login <provider>`.
	KindNotAuthenticated
	// KindTransientAuthError maps to HTTP 502 with Retry-After.
	KindTransientAuthError
	// KindUpstreamError passes through the upstream status where possible, else 502.
	KindUpstreamError
	// KindUpstreamTimeout maps to HTTP 504.
	KindUpstreamTimeout
	// KindInternalError maps to HTTP 500.
	KindInternalError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindModelUnknown:
		return "model_unknown"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindTransientAuthError:
		return "transient_auth_error"
	case KindUpstreamError:
		return "upstream_error"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	default:
		return "internal_error"
	}
}

// Error is the domain error carried across every BYOKEY layer above an executor.
type Error struct {
	Kind          Kind
	Message       string
	UpstreamCode  int    // non-zero when Kind == KindUpstreamError and the upstream status is known
	BodyExcerpt   string // first bytes of an upstream error body, for UpstreamError
	Provider      string
	CorrelationID string
	RetryAfter    time.Duration
	cause         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status this error should surface as.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindModelUnknown:
		return http.StatusNotFound
	case KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindTransientAuthError:
		return http.StatusBadGateway
	case KindUpstreamError:
		if e.UpstreamCode > 0 {
			return e.UpstreamCode
		}
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Headers returns response headers this error wants attached (currently just Retry-After).
func (e *Error) Headers() http.Header {
	if e.RetryAfter <= 0 {
		return nil
	}
	h := http.Header{}
	h.Set("Retry-After", fmt.Sprintf("%d", int(e.RetryAfter.Seconds())))
	return h
}

func newErr(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// InvalidRequest builds a KindInvalidRequest error.
func InvalidRequest(format string, args ...any) *Error {
	return newErr(KindInvalidRequest, nil, format, args...)
}

// ModelUnknown builds a KindModelUnknown error for the given model name.
func ModelUnknown(model string) *Error {
	return newErr(KindModelUnknown, nil, "unknown model %q", model)
}

// NotAuthenticated builds a KindNotAuthenticated error telling the caller which provider to log into.
func NotAuthenticated(provider string) *Error {
	e := newErr(KindNotAuthenticated, nil, "not authenticated for provider %q: run `byokey login %s`", provider, provider)
	e.Provider = provider
	return e
}

// TransientAuthError builds a KindTransientAuthError, optionally carrying Retry-After.
func TransientAuthError(provider string, cause error, retryAfter time.Duration) *Error {
	e := newErr(KindTransientAuthError, cause, "temporary auth failure for provider %q: %v", provider, cause)
	e.Provider = provider
	e.RetryAfter = retryAfter
	return e
}

// UpstreamError builds a KindUpstreamError carrying the upstream status and a body excerpt.
func UpstreamError(provider string, status int, bodyExcerpt string) *Error {
	e := newErr(KindUpstreamError, nil, "upstream %q returned status %d", provider, status)
	e.Provider = provider
	e.UpstreamCode = status
	e.BodyExcerpt = bodyExcerpt
	return e
}

// UpstreamTimeout builds a KindUpstreamTimeout error.
func UpstreamTimeout(provider string, cause error) *Error {
	e := newErr(KindUpstreamTimeout, cause, "upstream %q timed out", provider)
	e.Provider = provider
	return e
}

// Internal builds a KindInternalError carrying a correlation id for tracing.
func Internal(correlationID string, cause error) *Error {
	e := newErr(KindInternalError, cause, "internal error (correlation_id=%s): %v", correlationID, cause)
	e.CorrelationID = correlationID
	return e
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// As is a small convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}
