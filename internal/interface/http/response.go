package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalCount int       `json:"total_count,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSONList(w http.ResponseWriter, r *http.Request, data interface{}, total int) {
	writeEnvelope(w, http.StatusOK, JSONResponse{
		Success:   true,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), TotalCount: total},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, response JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsStoreUnavailable(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns the human-readable part of a domain error. Wrapped
// driver errors and operation prefixes never reach the client.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "An unexpected error occurred"
	case http.StatusServiceUnavailable:
		return "A backing store is temporarily unavailable"
	}
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return http.StatusText(status)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			logger.Err(err),
		)
	}
	writeJSONError(w, r, status, code, publicMessage(status, err))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

var errBadBody = shared.ValidationError("http", "decode", "request body must be valid JSON")

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.ValidationError("http", "decode", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return shared.ValidationError("http", "decode", "request body too large")
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}
