package httpapi

import (
	"errors"
	"net/http"

	"payso.org/internal/escrow"
	"payso.org/internal/session"
)

// errorStatus maps the escrow error taxonomy to HTTP codes. Every category
// surfaces distinctly; revert reasons ride along as opaque text.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, escrow.ErrNotConnected), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, escrow.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrReadFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, escrow.ErrWriteRejected), errors.Is(err, escrow.ErrWriteReverted):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, errorStatus(err), err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
