// Package apierror normalizes error payloads returned by the push platform
// backend into a stable, machine-readable error taxonomy. Every call path in
// the SDK funnels backend failures through this package so callers can
// branch on one fixed set of codes instead of raw HTTP statuses.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Code is a stable, backend-agnostic error code.
type Code string

const (
	// InvalidArgument indicates a malformed request payload or target (HTTP 400).
	InvalidArgument Code = "invalid-argument"
	// Unauthenticated indicates missing or expired credentials (HTTP 401).
	Unauthenticated Code = "unauthenticated"
	// PermissionDenied indicates the credential lacks access to the project (HTTP 403).
	PermissionDenied Code = "permission-denied"
	// NotFound indicates the requested resource does not exist (HTTP 404).
	NotFound Code = "not-found"
	// Unregistered indicates a device registration token that is no longer valid.
	Unregistered Code = "unregistered"
	// SenderIDMismatch indicates the token belongs to a different sender.
	SenderIDMismatch Code = "sender-id-mismatch"
	// QuotaExceeded indicates message rate limits were hit (HTTP 429).
	QuotaExceeded Code = "quota-exceeded"
	// DeadlineExceeded indicates the request timed out before completing.
	DeadlineExceeded Code = "deadline-exceeded"
	// Unavailable indicates the backend could not be reached or is overloaded (HTTP 503).
	Unavailable Code = "unavailable"
	// Internal indicates a backend-side failure (HTTP 5xx).
	Internal Code = "internal"
	// ThirdPartyAuthError indicates rejected platform push credentials (APNs/VAPID).
	ThirdPartyAuthError Code = "third-party-auth-error"
	// Unknown indicates an unclassified error.
	Unknown Code = "unknown"
)

// backendCodes maps the error identifiers the backend embeds in JSON error
// bodies (google.rpc style) onto the stable Code set.
var backendCodes = map[string]Code{
	"INVALID_ARGUMENT":       InvalidArgument,
	"UNAUTHENTICATED":        Unauthenticated,
	"PERMISSION_DENIED":      PermissionDenied,
	"NOT_FOUND":              NotFound,
	"UNREGISTERED":           Unregistered,
	"SENDER_ID_MISMATCH":     SenderIDMismatch,
	"QUOTA_EXCEEDED":         QuotaExceeded,
	"RESOURCE_EXHAUSTED":     QuotaExceeded,
	"DEADLINE_EXCEEDED":      DeadlineExceeded,
	"UNAVAILABLE":            Unavailable,
	"INTERNAL":               Internal,
	"THIRD_PARTY_AUTH_ERROR": ThirdPartyAuthError,
}

// Error is a normalized backend error. It optionally carries the raw HTTP
// status and body for diagnostics. Instances are never mutated after
// construction.
type Error struct {
	Code    Code
	Message string
	// Status is the HTTP status of the originating response, 0 when the
	// failure happened before a response was received.
	Status int
	// Body is the raw response body, kept for diagnostics only.
	Body []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a normalized error with no originating response.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// wireError mirrors the JSON error envelope the backend returns.
type wireError struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// CodeFromBody extracts the platform error code embedded in a JSON error
// body. The detail-level errorCode is more specific than the top-level
// status and wins when both are present. Returns false when the body is not
// JSON or carries no recognizable code.
func CodeFromBody(body []byte) (Code, bool) {
	var we wireError
	if err := json.Unmarshal(body, &we); err != nil {
		return Unknown, false
	}
	for _, d := range we.Error.Details {
		if c, ok := backendCodes[d.ErrorCode]; ok {
			return c, true
		}
	}
	if c, ok := backendCodes[we.Error.Status]; ok {
		return c, true
	}
	return Unknown, false
}

// CodeFromStatus maps an HTTP status to a Code. Used as the fallback when
// the response body carries no recognizable platform error code.
func CodeFromStatus(status int) Code {
	switch status {
	case 400:
		return InvalidArgument
	case 401:
		return Unauthenticated
	case 403:
		return PermissionDenied
	case 404:
		return NotFound
	case 429:
		return QuotaExceeded
	case 503:
		return Unavailable
	default:
		if status >= 500 && status < 600 {
			return Internal
		}
		return Unknown
	}
}

// FromResponse classifies a backend response into a normalized error. The
// JSON body code takes precedence over the HTTP status.
func FromResponse(status int, body []byte) *Error {
	code, ok := CodeFromBody(body)
	if !ok {
		code = CodeFromStatus(status)
	}
	msg := messageFromBody(body)
	if msg == "" {
		msg = fmt.Sprintf("unexpected response with status %d", status)
	}
	return &Error{Code: code, Message: msg, Status: status, Body: body}
}

// FromError normalizes an arbitrary error. An error that is already
// normalized is returned unchanged, never re-wrapped.
func FromError(err error) *Error {
	var norm *Error
	if errors.As(err, &norm) {
		return norm
	}
	code := Unknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = DeadlineExceeded
	case errors.As(err, &netErr) && netErr.Timeout():
		code = DeadlineExceeded
	case errors.As(err, &netErr):
		code = Unavailable
	}
	return &Error{Code: code, Message: err.Error()}
}

func messageFromBody(body []byte) string {
	var we wireError
	if err := json.Unmarshal(body, &we); err != nil {
		return ""
	}
	return we.Error.Message
}

// HasCode reports whether err is a normalized error carrying the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsUnregistered reports whether err indicates a dead registration token.
// Callers use this to prune token stores.
func IsUnregistered(err error) bool { return HasCode(err, Unregistered) }

// IsQuotaExceeded reports whether err indicates rate limiting.
func IsQuotaExceeded(err error) bool { return HasCode(err, QuotaExceeded) }

// IsUnavailable reports whether err indicates a transient backend outage.
func IsUnavailable(err error) bool { return HasCode(err, Unavailable) }

// IsInvalidArgument reports whether err indicates a malformed request.
func IsInvalidArgument(err error) bool { return HasCode(err, InvalidArgument) }
