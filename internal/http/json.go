// Package httpx provides the HTTP transport for the coursekit admin API.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/coursekit/admin-api/internal/errors"
)

const maxJSONBodyBytes = 1 << 20 // 1 MiB

// Envelope is the response body shape shared by every API endpoint.
// Code mirrors the HTTP status so clients reading only the body stay consistent.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes an enveloped JSON response using the default message
// for the status (http.StatusText).
func WriteJSON(w http.ResponseWriter, status int, data any) {
	WriteJSONMessage(w, status, http.StatusText(status), data)
}

// WriteJSONMessage writes an enveloped JSON response with an explicit message.
func WriteJSONMessage(w http.ResponseWriter, status int, message string, data any) {
	env := Envelope{Code: status, Message: message, Data: data}

	// Encode to a buffer first so an encoding failure can still produce a 500
	// instead of a half-written body.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(env); err != nil {
		http.Error(w, `{"code":500,"message":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes an error envelope with no data payload.
func WriteError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	WriteJSONMessage(w, status, message, nil)
}

// WriteServiceError maps a service-layer error onto an HTTP status and writes
// the envelope. AppError codes translate directly; anything else is an opaque
// 500 so internal details never reach the client.
func WriteServiceError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteError(w, http.StatusInternalServerError, "")
		return
	}

	status := statusForCode(appErr.Code)
	if status == http.StatusInternalServerError {
		WriteError(w, status, "")
		return
	}
	WriteError(w, status, appErr.Message)
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into dst, enforcing a size cap and
// rejecting unknown fields. On failure it writes a 400 envelope and returns
// false; callers should return immediately.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, decodeErrorMessage(err))
		return false
	}
	// Reject trailing garbage after the first JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}
	return true
}

func decodeErrorMessage(err error) string {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return "request body contains malformed JSON"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return "request body has an invalid value for field " + typeErr.Field
		}
		return "request body has an invalid value"
	case errors.As(err, &maxBytesErr):
		return "request body is too large"
	case errors.Is(err, io.EOF):
		return "request body is empty"
	}
	return "invalid request body"
}
