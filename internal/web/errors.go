package web

// errors.go provides unified error responses for the API.
//
// Every failure is logged with its technical detail and the request id,
// then returned as {error, message, action, code} where code comes from
// backup.MapError and can be quoted to support.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/logging"
	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, backup.ErrTooManyOperations):
		return http.StatusTooManyRequests
	case errors.Is(err, backup.ErrNoSnapshotStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, snapshotstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, snapshotstore.ErrInvalidKey), backup.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user message with statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondMessage(w, r, err, backup.MapError(err), statusFor(err))
}

// respondMessage writes msg with status, logging err as the cause.
func (s *Server) respondMessage(w http.ResponseWriter, r *http.Request, err error, msg backup.UserMessage, status int) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as the response body with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// requestID returns the chi request id, echoed in a response header.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
