package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/d-khalang/SMM/internal/catalog"
)

// Envelope is the shape of every response body. The HTTP status code of the
// response always equals Status.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Content any    `json:"content,omitempty"`
	Status  int    `json:"status"`
}

// Guidance messages for paths and ids the catalog does not serve.
const (
	msgValidURLs = "Enter a valid URL among: broker, main_topic, devices, devices/{id}, " +
		"plants, plants/{plantId}, users, users/{userId}"
	msgNoValidURL    = "No valid url. " + msgValidURLs
	msgSpecifyAdd    = "Specify what to add: /plants, /devices, /users"
	msgSpecifyUpdate = "Specify what to update: /plants, /devices, /users"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeEnvelope writes env with env.Status as the HTTP status code.
func writeEnvelope(w http.ResponseWriter, env Envelope) {
	writeJSON(w, env.Status, env)
}

// writeContent writes a successful envelope carrying content.
func writeContent(w http.ResponseWriter, content any) {
	writeEnvelope(w, Envelope{Success: true, Content: content, Status: http.StatusOK})
}

// writeMessage writes a successful envelope carrying a message.
func writeMessage(w http.ResponseWriter, message string) {
	writeEnvelope(w, Envelope{Success: true, Message: message, Status: http.StatusOK})
}

// writeFailure writes a failed envelope.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, Envelope{Message: message, Status: status})
}

// writeNotFound writes a 404 envelope with a guidance message.
func writeNotFound(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusNotFound, message)
}

// writeRegistryError maps a registry error onto the envelope taxonomy:
// validation 400, not found 404, anything else 500.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case catalog.IsValidationError(err):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	default:
		writeFailure(w, http.StatusInternalServerError, err.Error())
	}
}
