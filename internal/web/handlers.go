package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/przemyslawpluta/extractd/internal/pipeline"
	"github.com/przemyslawpluta/extractd/pkg/extractd"
	"github.com/przemyslawpluta/extractd/pkg/types"
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type APIErrorResponse struct {
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIErrorResponse{Message: message})
}

func writeValidationError(w http.ResponseWriter, field, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ValidationError{
		Field:   field,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ExtractRequest is the body of POST /api/extract. Options fall back to the
// server configuration when omitted, and so does an empty destination.
type ExtractRequest struct {
	Sources []string       `json:"sources"`
	Options *types.Options `json:"options,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.client.Options()
	if req.Options != nil {
		destination := opts.Destination
		opts = *req.Options
		if opts.Destination == "" {
			opts.Destination = destination
		}
	}
	if opts.Stream {
		writeValidationError(w, "stream", "stream output is not available over HTTP")
		return
	}

	sources, err := s.client.Expand(req.Sources...)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out, err := s.client.Generate(opts, sources...)
	if err != nil {
		if errors.Is(err, types.ErrNoSources) {
			writeValidationError(w, "sources", err.Error())
			return
		}
		if errors.Is(err, extractd.ErrClientClosed) {
			writeAPIError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.client.Status())
}

func (s *Server) handleDesist(w http.ResponseWriter, r *http.Request) {
	status, err := s.client.Desist()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status)
}

func (s *Server) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.hub.broadcast <- data
}

func (s *Server) broadcastProgress(update pipeline.ProgressUpdate) {
	s.broadcastJSON(update)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version})
}
