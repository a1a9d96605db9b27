package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/d-khalang/SMM/internal/catalog"
)

// handleUnknown answers paths and verbs the catalog does not serve.
func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		writeNotFound(w, msgSpecifyAdd)
	case http.MethodPut:
		writeNotFound(w, msgSpecifyUpdate)
	default:
		writeNotFound(w, msgNoValidURL)
	}
}

// handleBroker returns {IP, port} of the MQTT broker.
func (s *Server) handleBroker(w http.ResponseWriter, r *http.Request) {
	b, err := s.registry.Broker(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeContent(w, b)
}

// handleMainTopic returns the root of the MQTT topic namespace.
func (s *Server) handleMainTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.registry.MainTopic(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeContent(w, topic)
}

// handleList returns every document of a kind.
//
// Query parameters:
//   - case: "snake" renders keys in snake_case
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := catalog.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeNotFound(w, msgNoValidURL)
		return
	}

	docs, err := s.registry.List(r.Context(), kind)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	s.writeDocuments(w, r, docs)
}

// handleGet returns one document as a one-element list.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := catalog.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeNotFound(w, msgNoValidURL)
		return
	}
	id, ok := catalog.ParseID(chi.URLParam(r, "id"))
	if !ok {
		name := kind.Singular()
		writeNotFound(w, fmt.Sprintf("Enter a valid %s id, %s/{%s id}", name, kind, name))
		return
	}

	doc, err := s.registry.Get(r.Context(), kind, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeNotFound(w, kind.Singular()+" not present")
		return
	}
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	s.writeDocuments(w, r, []any{doc})
}

// handleRegister upserts the body as a document of the path's kind.
// POST and PUT behave the same.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	kind, ok := catalog.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		s.handleUnknown(w, r)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	res, err := s.registry.Register(r.Context(), kind, body)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeMessage(w, res.Message)
}

// handleDeviceStatus sets a device's status from {deviceId, status},
// creating a status-only device when the id is unknown.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	id, status, err := catalog.DecodeStatus(body)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	res, err := s.registry.EnsureOrPatchDeviceStatus(r.Context(), id, status)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeMessage(w, res.Message)
}

// writeDocuments writes docs as envelope content, converting keys to
// snake_case when the client asks for it.
func (s *Server) writeDocuments(w http.ResponseWriter, r *http.Request, docs any) {
	if r.URL.Query().Get("case") != "snake" {
		writeContent(w, docs)
		return
	}

	snake, err := snakeCase(docs)
	if err != nil {
		s.logger.Error("rendering snake_case documents", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeContent(w, snake)
}

// snakeCase round-trips docs through JSON and rewrites every object's keys.
func snakeCase(docs any) ([]map[string]any, error) {
	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encoding documents: %w", err)
	}
	var objs []map[string]any
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}
	for i, obj := range objs {
		objs[i] = catalog.Snake(obj)
	}
	return objs, nil
}

// readBody reads the request body, answering 400 itself on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeFailure(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return nil, false
	}
	return body, true
}
