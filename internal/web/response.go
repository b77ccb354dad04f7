package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/camuig/stock-watch/internal/rules"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps domain errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var verr *rules.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, rules.ErrNotFound):
		respondError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, rules.ErrExtraction), errors.Is(err, rules.ErrLookup):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
