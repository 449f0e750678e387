package web

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Envelope is the response shape every endpoint returns: data on success,
// a message on failure.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in a success envelope. A nil v is serialized as
// {"success":true} with no data field, except via WriteNullData.
func WriteData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, Envelope{Success: true, Data: v})
}

// WriteNullData emits an explicit null data field, used where "no value"
// is a valid answer rather than an error (e.g. a user with no cart yet).
func WriteNullData(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":true,"data":null}` + "\n"))
}

// WriteError emits a failure envelope carrying the request id from the
// chi RequestID middleware so a client can correlate with server logs.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, Envelope{
		Success:   false,
		Message:   msg,
		RequestID: chimw.GetReqID(r.Context()),
	})
}
