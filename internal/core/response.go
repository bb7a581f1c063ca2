package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"garasiku/internal/types"
)

const (
	maxRequestBodySize = 64 << 10

	errCodeValidationInvalidJSON types.ErrorCode = "validation_invalid_json"
)

// APIResponse wraps successful /v1 payloads.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse wraps /v1 errors.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with status. A value that cannot be marshalled becomes a
// 500 error envelope instead.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorEnvelope(r, types.ErrCodeInternalUnexpected, "failed to marshal response", nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err in the /v1 envelope. Only an AppError's code and message
// reach the client; anything else is a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError,
			errorEnvelope(r, types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil))
		return
	}
	JSON(w, r, appErr.HTTPStatus(), errorEnvelope(r, appErr.Code, appErr.Message, appErr.Details))
}

func errorEnvelope(r *http.Request, code types.ErrorCode, msg string, details map[string]any) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   msg,
		Details:   details,
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// DecodeOptionalJSON decodes a single JSON object from the body into dst.
// A missing or empty body leaves dst untouched. Unknown fields are rejected.
func DecodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()

	switch err := dec.Decode(dst); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return invalidJSON(err)
	case dec.More():
		return types.NewAppError(errCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

func invalidJSON(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		badType  *json.UnmarshalTypeError
	)
	msg := "invalid JSON in request body"
	switch {
	case errors.As(err, &tooLarge):
		msg = "request body is too large"
	case errors.As(err, &syntax):
		msg = "malformed JSON in request body"
	case errors.As(err, &badType):
		return types.NewAppError(errCodeValidationInvalidJSON, "invalid value for field", err).
			WithDetails(map[string]any{"field": badType.Field})
	default:
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			msg = "unknown field in request body: " + field
		}
	}
	return types.NewAppError(errCodeValidationInvalidJSON, msg, err)
}
