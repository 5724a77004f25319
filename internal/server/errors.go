package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tjfontaine/kms-gateway/internal/domain"
)

// WriteError renders err as the uniform error envelope, classifying
// unrecognized failures as client errors. The detail of client errors is
// suppressed unless debug is set. The envelope always carries the request's
// correlation id.
func WriteError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	e := domain.AsError(err)
	AddError(r.Context(), err)

	detail := e.Message
	if e.Kind == domain.KindClient && !debug {
		detail = "Internal server error"
	}

	env := domain.Envelope{
		Error:      string(e.Kind),
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
		RequestID:  GetRequestID(r.Context()),
		StatusCode: e.HTTPStatusCode(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	json.NewEncoder(w).Encode(env)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
