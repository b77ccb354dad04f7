package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
	"github.com/camuig/stock-watch/internal/storage"
)

type NoteService interface {
	Add(ctx context.Context, rawText string) (*rules.Note, error)
	List(ctx context.Context, activeOnly bool) ([]rules.Note, error)
	Get(ctx context.Context, id string) (*rules.Note, error)
	Delete(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) (*rules.Note, error)
}

type Checker interface {
	RunCheckCycle(ctx context.Context) (*monitor.CycleReport, error)
}

type CheckHistory interface {
	RecentCycles(ctx context.Context, limit int) ([]storage.CheckLog, error)
}

type Server struct {
	httpServer *http.Server
	notes      NoteService
	checker    Checker
	history    CheckHistory
	provider   string
	port       int
	origins    []string
	logger     *logger.Logger
}

func NewServer(notes NoteService, checker Checker, history CheckHistory, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		notes:    notes,
		checker:  checker,
		history:  history,
		provider: cfg.Quotes.Provider,
		port:     cfg.Web.Port,
		origins:  cfg.Web.AllowedOrigins,
		logger:   log,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		// a check cycle waits for the slowest quote lookup
		WriteTimeout: 2 * time.Minute,
	}

	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleAddNote)
			r.Get("/{id}", s.handleGetNote)
			r.Delete("/{id}", s.handleDeleteNote)
			r.Post("/{id}/reactivate", s.handleReactivateNote)
		})
		r.Post("/check", s.handleCheck)
		r.Get("/checks", s.handleCheckHistory)
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
