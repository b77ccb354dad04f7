package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/camuig/stock-watch/internal/storage"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

type DashboardData struct {
	Notes       []NoteView
	Checks      []storage.CheckLog
	ActiveCount int
	Provider    string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := DashboardData{Provider: s.provider}

	// Notes, newest first
	notes, err := s.notes.List(r.Context(), false)
	if err != nil {
		s.logger.Error("list notes for dashboard", "error", err)
	}
	for i := range notes {
		data.Notes = append(data.Notes, viewOf(&notes[i]))
		if notes[i].Active {
			data.ActiveCount++
		}
	}

	// Check journal
	if checks, err := s.history.RecentCycles(r.Context(), 10); err == nil {
		data.Checks = checks
	} else {
		s.logger.Error("list check cycles for dashboard", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("execute template", "error", err)
	}
}
