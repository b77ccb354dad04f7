package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/camuig/stock-watch/internal/rules"
	"github.com/camuig/stock-watch/internal/storage"
)

const checkTimeout = 2 * time.Minute

type NoteView struct {
	ID            string              `json:"id"`
	RawText       string              `json:"raw_text"`
	Symbol        string              `json:"symbol,omitempty"`
	ActionType    string              `json:"action_type,omitempty"`
	BuyPrice      decimal.NullDecimal `json:"buy_price"`
	Conditions    map[string]any      `json:"conditions"`
	UserOpinion   string              `json:"user_opinion,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	LastChecked   *time.Time          `json:"last_checked"`
	Active        bool                `json:"active"`
	AwaitingReset bool                `json:"awaiting_reset,omitempty"`
}

func viewOf(n *rules.Note) NoteView {
	v := NoteView{
		ID:            n.ID,
		RawText:       n.RawText,
		Symbol:        n.Symbol,
		BuyPrice:      n.BuyPrice,
		Conditions:    n.Conditions,
		UserOpinion:   n.UserOpinion,
		CreatedAt:     n.CreatedAt,
		LastChecked:   n.LastChecked,
		Active:        n.Active,
		AwaitingReset: n.AwaitingReset,
	}
	if n.ActionType != nil {
		v.ActionType = string(*n.ActionType)
	}
	if v.Conditions == nil {
		v.Conditions = map[string]any{}
	}
	return v
}

type addNoteRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text is required", Field: "text"})
		return
	}

	note, err := s.notes.Add(r.Context(), req.Text)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewOf(note))
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "active must be a boolean", Field: "active"})
			return
		}
		activeOnly = b
	}

	notes, err := s.notes.List(r.Context(), activeOnly)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	views := make([]NoteView, 0, len(notes))
	for i := range notes {
		views = append(views, viewOf(&notes[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(note))
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.notes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReactivateNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.Reactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(note))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	// the cycle saves note state, so it outlives a client that hangs up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), checkTimeout)
	defer cancel()

	report, err := s.checker.RunCheckCycle(ctx)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCheckHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500", Field: "limit"})
			return
		}
		limit = n
	}

	logs, err := s.history.RecentCycles(r.Context(), limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []storage.CheckLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}
