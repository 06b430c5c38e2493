package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/permalink"
)

var (
	ErrBadRequest     = errors.New("httpapi: malformed request")
	ErrParentRequired = errors.New("httpapi: embedded record needs a parent")
	ErrNoEnqueuer     = errors.New("httpapi: backfill is not configured")
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, permalink.ErrNotFound),
		errors.Is(err, permalink.ErrUnknownType),
		errors.Is(err, permalink.ErrNotDeclared):
		return http.StatusNotFound
	case errors.Is(err, permalink.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrParentRequired),
		errors.Is(err, permalink.ErrConfiguration),
		errors.Is(err, permalink.ErrBuilder),
		errors.Is(err, permalink.ErrEmptyCandidate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoEnqueuer):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestID(r)})
}
