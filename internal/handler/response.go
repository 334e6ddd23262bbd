package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"error": "conflict", "message": "Email already subscribed", "alreadyExists": true}
//
// "error" is machine-readable, "message" is safe to show to a visitor.
// The landing page keys off alreadyExists to show "You're on the list!"
// instead of an error.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/heyfriend/landing/internal/apperror"
)

// maxBodyBytes caps JSON request bodies. The largest legitimate body is a
// 255-character email or a password plus an id.
const maxBodyBytes = 1 << 16

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error         string `json:"error"`                   // Machine-readable error type (e.g., "not_found")
	Message       string `json:"message"`                 // Human-readable description
	AlreadyExists bool   `json:"alreadyExists,omitempty"` // Set only on duplicate subscriptions
}

// MessageResponse is the body of successful mutations that return no data.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror values and knows nothing about HTTP.
// This function is the single place they become status codes:
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrNotFound     → 404
//	ErrConflict     → 409 (with alreadyExists)
//
// Anything else is a storage or programming failure. The client gets a 500
// with internalMessage (e.g. "Failed to fetch emails"); the real error was
// already logged by the service and is NEVER echoed, since it may contain
// SQL or connection details.
func writeError(w http.ResponseWriter, err error, internalMessage string) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		resp := ErrorResponse{Error: "internal_error", Message: appErr.Message}
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			resp.Error = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			resp.Error = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			resp.Error = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			resp.Error = "conflict"
			resp.AlreadyExists = true
		default:
			resp.Message = internalMessage
		}

		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: internalMessage,
	})
}

// decodeJSON reads a size-limited JSON body into dst. The body must hold
// exactly one JSON value; anything malformed or trailing is reported as a
// validation error so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
