package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// With helpers, handlers stay short and consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every non-200 response from the API has the same shape:
//   {"error": "validation_error", "message": "topic is required"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/codeask/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "validation_error")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror.ErrValidation, apperror.ErrUnavailable,
// and so on. This is the one place those become 400, 503, 504.
//
// errors.Is walks the whole chain, so a service returning
// fmt.Errorf("executing code: %w", apperror.Unavailable("sandbox"))
// still maps to 503.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable // 503
			errorType = "unavailable"
		case errors.Is(err, apperror.ErrTimeout):
			status = http.StatusGatewayTimeout // 504
			errorType = "timeout"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: never expose internals (paths, container ids) to clients.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
//
// maxBytes caps the body with http.MaxBytesReader; an oversized body
// surfaces as a validation error rather than an unbounded read.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body",
				fmt.Sprintf("request body must be %d bytes or less", tooLarge.Limit))
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
