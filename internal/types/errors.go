package types

import (
	"errors"
	"maps"
	"net/http"
	"strings"
)

// ErrorCode classifies an AppError. The prefix decides the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Conflict (409)
	ErrCodeConflictJobRunning ErrorCode = "conflict_job_already_running"

	// Reminder configuration (500). The job cannot run without at least one
	// recipient group, which is an operator problem rather than a client one.
	ErrCodeReminderNoRecipients     ErrorCode = "reminder_no_recipients"
	ErrCodeReminderInvalidRecipient ErrorCode = "reminder_invalid_recipient"
	ErrCodeReminderRender           ErrorCode = "reminder_render_failed"
	ErrCodeReminderDispatchFailed   ErrorCode = "reminder_dispatch_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamBackend       ErrorCode = "upstream_backend_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps c to a response status by prefix. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if c == ErrCodeEmailBlocked {
		return http.StatusForbidden
	}
	prefix, _, _ := strings.Cut(string(c), "_")
	switch prefix {
	case "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusUnauthorized
	case "conflict":
		return http.StatusConflict
	case "upstream":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError carries a code for callers and a terse message for clients. Err
// holds the cause for logs and errors.Is; it is never serialized.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// NewAppError creates an AppError. err may be nil.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string { return string(e.Code) + ": " + e.Message }

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy of e with details merged over its own.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	out := *e
	out.Details = merged
	return &out
}

// CodeOf returns the code of the first AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ErrParameterNotFound is returned by parameter sources when no row matches
// the requested group and name.
var ErrParameterNotFound = errors.New("parameter not found")
