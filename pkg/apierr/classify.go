package apierr

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Body markers agreed with the backend.
const (
	// SecurityViolationSentinel is the "error" value of a security violation response.
	SecurityViolationSentinel = "Security violation detected"
	// CodeSecurityViolation and CodeIPBlocked are the structured "code" values, preferred when present.
	CodeSecurityViolation = "security_violation"
	CodeIPBlocked         = "ip_blocked"

	ipBlockedMarker      = "ip address has been blocked"
	unknownViolationType = "unknown"
)

// Classify maps a failed HTTP exchange to a classified error.
//
// status 0 means no response was received. Classify never performs I/O, never mutates shared
// state and never fails: malformed bodies fall back to default messages.
func Classify(status int, header http.Header, body []byte) Error {
	doc := parseBody(body)

	switch {
	case status == http.StatusTooManyRequests:
		e := &RateLimitedError{Message: firstString(doc, MsgRateLimited, "message")}
		if secs, ok := parseRetryAfter(header); ok {
			e.RetryAfterSeconds, e.HasRetryAfter = secs, true
		}
		return e

	case status == http.StatusBadRequest && isSecurityViolation(doc):
		return &SecurityViolationError{
			ViolationType: firstString(doc, unknownViolationType, "violation_type"),
			Message:       firstString(doc, MsgSecurityViolation, "message"),
		}

	case status == http.StatusForbidden && isIPBlocked(doc):
		return &IPBlockedError{Message: firstString(doc, MsgIPBlocked, "message")}

	case status == http.StatusUnauthorized:
		return NewUnauthenticated()

	case status >= http.StatusInternalServerError:
		return &ServerError{Message: MsgServerError, HTTPStatus: status}

	case status == 0:
		return &NetworkError{Message: MsgNetworkError}

	default:
		return &GenericError{HTTPStatus: status, Message: firstString(doc, MsgGeneric, "message", "error")}
	}
}

func parseBody(body []byte) gjson.Result {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}
	}
	return doc
}

// firstString returns the first non-empty string field among keys, or def.
func firstString(doc gjson.Result, def string, keys ...string) string {
	if !doc.Exists() {
		return def
	}
	for _, key := range keys {
		v := doc.Get(key)
		if v.Type == gjson.String {
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		}
	}
	return def
}

func isSecurityViolation(doc gjson.Result) bool {
	if !doc.Exists() {
		return false
	}
	return doc.Get("code").String() == CodeSecurityViolation ||
		doc.Get("error").String() == SecurityViolationSentinel
}

func isIPBlocked(doc gjson.Result) bool {
	if !doc.Exists() {
		return false
	}
	if doc.Get("code").String() == CodeIPBlocked {
		return true
	}
	for _, key := range []string{"error", "message"} {
		if strings.Contains(strings.ToLower(doc.Get(key).String()), ipBlockedMarker) {
			return true
		}
	}
	return false
}

// parseRetryAfter reads a Retry-After header expressed in seconds.
func parseRetryAfter(header http.Header) (int, bool) {
	if header == nil {
		return 0, false
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}
