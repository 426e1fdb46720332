// Package apierr defines the classified errors returned by the API client.
//
// Every failed call is folded into exactly one of seven error kinds. Each kind is a concrete
// type implementing Error, so callers can switch on the type (or on Kind) and handle every case.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies which classified error is active.
type Kind int

const (
	KindGeneric Kind = iota
	KindRateLimited
	KindSecurityViolation
	KindIPBlocked
	KindServerError
	KindNetworkError
	KindUnauthenticated
)

// Kinds lists every classified error kind.
var Kinds = []Kind{
	KindGeneric,
	KindRateLimited,
	KindSecurityViolation,
	KindIPBlocked,
	KindServerError,
	KindNetworkError,
	KindUnauthenticated,
}

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindRateLimited:
		return "rate_limited"
	case KindSecurityViolation:
		return "security_violation"
	case KindIPBlocked:
		return "ip_blocked"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Default user-facing messages.
const (
	MsgRateLimited       = "Too many requests. Please wait a moment and try again."
	MsgSecurityViolation = "Your request was blocked for security reasons."
	MsgIPBlocked         = "Access from your IP address has been blocked. Please contact support."
	MsgServerError       = "Server is temporarily unavailable. Please try again later."
	MsgNetworkError      = "Unable to reach the server. Please check your connection and try again."
	MsgUnauthenticated   = "Your session has expired. Please log in again."
	MsgGeneric           = "Something went wrong. Please try again."
)

// Error is a classified API error. The set of implementations is closed.
type Error interface {
	error
	// Kind returns the active tag.
	Kind() Kind
	// StatusCode returns the HTTP status that produced the error, 0 when no response was received.
	StatusCode() int
	// Reason returns a stable machine readable code.
	Reason() string
	// UserMessage returns a short non-technical message suitable for display.
	UserMessage() string

	classified()
}

var (
	_ Error = (*RateLimitedError)(nil)
	_ Error = (*SecurityViolationError)(nil)
	_ Error = (*IPBlockedError)(nil)
	_ Error = (*ServerError)(nil)
	_ Error = (*NetworkError)(nil)
	_ Error = (*UnauthenticatedError)(nil)
	_ Error = (*GenericError)(nil)
)

// RateLimitedError is returned for 429 responses.
type RateLimitedError struct {
	// RetryAfterSeconds is only meaningful when HasRetryAfter is true.
	RetryAfterSeconds int
	HasRetryAfter     bool
	Message           string
}

func (e *RateLimitedError) Error() string {
	if e.HasRetryAfter {
		return fmt.Sprintf("rate limited: retry after %ds: %s", e.RetryAfterSeconds, e.Message)
	}
	return "rate limited: " + e.Message
}
func (e *RateLimitedError) Kind() Kind          { return KindRateLimited }
func (e *RateLimitedError) StatusCode() int     { return http.StatusTooManyRequests }
func (e *RateLimitedError) Reason() string      { return "RateLimited.TooManyRequests" }
func (e *RateLimitedError) UserMessage() string { return e.Message }
func (e *RateLimitedError) classified()         {}

// SecurityViolationError is returned when the backend rejects a request as a security violation.
type SecurityViolationError struct {
	ViolationType string
	Message       string
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("security violation (%s): %s", e.ViolationType, e.Message)
}
func (e *SecurityViolationError) Kind() Kind          { return KindSecurityViolation }
func (e *SecurityViolationError) StatusCode() int     { return http.StatusBadRequest }
func (e *SecurityViolationError) Reason() string      { return "BadRequest.SecurityViolation" }
func (e *SecurityViolationError) UserMessage() string { return e.Message }
func (e *SecurityViolationError) classified()         {}

// IPBlockedError is returned when the caller's IP address is blocked.
type IPBlockedError struct {
	Message string
}

func (e *IPBlockedError) Error() string       { return "ip blocked: " + e.Message }
func (e *IPBlockedError) Kind() Kind          { return KindIPBlocked }
func (e *IPBlockedError) StatusCode() int     { return http.StatusForbidden }
func (e *IPBlockedError) Reason() string      { return "Forbidden.IPBlocked" }
func (e *IPBlockedError) UserMessage() string { return e.Message }
func (e *IPBlockedError) classified()         {}

// ServerError is returned for 5xx responses. Message never carries backend text.
type ServerError struct {
	Message    string
	HTTPStatus int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.HTTPStatus, e.Message)
}
func (e *ServerError) Kind() Kind          { return KindServerError }
func (e *ServerError) StatusCode() int     { return e.HTTPStatus }
func (e *ServerError) Reason() string      { return "InternalError.Unavailable" }
func (e *ServerError) UserMessage() string { return e.Message }
func (e *ServerError) classified()         {}

// NetworkError is returned when no response was received.
type NetworkError struct {
	Message string
	// Err is the underlying transport error, may be nil.
	Err error
}

// NewNetworkError folds a transport failure (dial, TLS, timeout, read) into a NetworkError.
func NewNetworkError(err error) *NetworkError {
	return &NetworkError{Message: MsgNetworkError, Err: err}
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return "network error: " + e.Err.Error()
	}
	return "network error: " + e.Message
}
func (e *NetworkError) Unwrap() error       { return e.Err }
func (e *NetworkError) Kind() Kind          { return KindNetworkError }
func (e *NetworkError) StatusCode() int     { return 0 }
func (e *NetworkError) Reason() string      { return "Unavailable.Network" }
func (e *NetworkError) UserMessage() string { return e.Message }
func (e *NetworkError) classified()         {}

// UnauthenticatedError signals a 401. The pipeline recovers it by refreshing the session and only
// surfaces it when that is impossible.
type UnauthenticatedError struct {
	Message string
}

// NewUnauthenticated returns the session expired error.
func NewUnauthenticated() *UnauthenticatedError {
	return &UnauthenticatedError{Message: MsgUnauthenticated}
}

func (e *UnauthenticatedError) Error() string       { return "unauthenticated: " + e.Message }
func (e *UnauthenticatedError) Kind() Kind          { return KindUnauthenticated }
func (e *UnauthenticatedError) StatusCode() int     { return http.StatusUnauthorized }
func (e *UnauthenticatedError) Reason() string      { return "Unauthenticated.SessionExpired" }
func (e *UnauthenticatedError) UserMessage() string { return e.Message }
func (e *UnauthenticatedError) classified()         {}

// GenericError covers every other failure.
type GenericError struct {
	HTTPStatus int
	Message    string
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.HTTPStatus, e.Message)
}
func (e *GenericError) Kind() Kind          { return KindGeneric }
func (e *GenericError) StatusCode() int     { return e.HTTPStatus }
func (e *GenericError) UserMessage() string { return e.Message }
func (e *GenericError) classified()         {}

func (e *GenericError) Reason() string {
	if text := http.StatusText(e.HTTPStatus); text != "" {
		return "Generic." + strings.ReplaceAll(text, " ", "")
	}
	return "Generic.Unknown"
}

// As finds the first classified error in err's chain.
func As(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or KindGeneric for anything else.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind()
	}
	return KindGeneric
}

// UserMessage returns a display message for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok && e.UserMessage() != "" {
		return e.UserMessage()
	}
	return MsgGeneric
}
