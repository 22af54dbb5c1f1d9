package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/capitalize-ai/loan-assistant/internal/service"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps a dialogue error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	var extErr *service.ExternalServiceError
	var cfgErr *service.ConfigurationError
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, service.ErrNotApproved):
		return http.StatusConflict, "loan has not been approved"
	case errors.Is(err, service.ErrNotAwaitingDocuments):
		return http.StatusConflict, "conversation is not awaiting documents"
	case errors.Is(err, service.ErrConversationFailed):
		return http.StatusConflict, "conversation has failed"
	case errors.As(err, &extErr):
		return http.StatusServiceUnavailable, extErr.Service + " unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "service misconfigured"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
