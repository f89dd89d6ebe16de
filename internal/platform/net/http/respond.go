// Package http provides the chi-backed server, router facade, and response helpers
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"
)

// errorBody is the JSON error shape returned by the gateway.
// The message is always generic; internals go to the log only
type errorBody struct {
	Error string `json:"error"`
}

// Text writes a plain text body with the given status
func Text(w stdhttp.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Error writes a JSON {"error": msg} body with the given status
func Error(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// RespondError maps a project error onto the generic user-facing bodies.
// Raw error internals are logged and never written to the response
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status := perr.HTTPStatus(err)
	logger.C(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	Error(w, status, GenericMessage(status))
}

// GenericMessage returns the user-facing text for an error status
func GenericMessage(status int) string {
	switch status {
	case stdhttp.StatusBadRequest:
		return "Invalid request"
	case stdhttp.StatusRequestEntityTooLarge:
		return "Message too long"
	case stdhttp.StatusServiceUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Internal server error"
	}
}
