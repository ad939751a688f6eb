package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"envelopes/internal/core"
	applog "envelopes/internal/log"
)

const internalErrorMessage = "Internal Server Error"

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

// statusForKind maps a ledger error kind to its HTTP status.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindInvalidInput, core.KindInvalidBudget, core.KindInsufficientFunds:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the response for an error returned by the service.
// Categorized errors expose their message; anything else is logged and
// reported as a generic 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusForKind(core.KindOf(err))

	if status == http.StatusInternalServerError {
		applog.NewStructuredLogger(s.logger).LogError(ctx, "Unhandled service error", err, r.Method+" "+r.URL.Path, nil)
		writeInternalError(w)
		return
	}

	message := err.Error()
	var ce *core.Error
	if errors.As(err, &ce) {
		message = ce.Msg
	}

	applog.FromContext(ctx).DebugContext(ctx, "Request rejected by ledger",
		applog.FieldErrorKind, string(core.KindOf(err)),
		applog.FieldError, err.Error(),
		applog.FieldStatusCode, status)
	writeError(w, status, message)
}
