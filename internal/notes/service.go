package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camuig/stock-watch/internal/ai"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
)

// Store is the persistence the note service needs.
type Store interface {
	Create(ctx context.Context, note *rules.Note) error
	Save(ctx context.Context, note *rules.Note) error
	List(ctx context.Context, activeOnly bool) ([]rules.Note, error)
	Get(ctx context.Context, id string) (*rules.Note, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	extractor ai.Extractor
	quotes    monitor.QuoteProvider
	store     Store
	rearm     monitor.RearmPolicy
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(
	extractor ai.Extractor,
	quotes monitor.QuoteProvider,
	store Store,
	rearm monitor.RearmPolicy,
	log *logger.Logger,
) *Service {
	return &Service{
		extractor: extractor,
		quotes:    quotes,
		store:     store,
		rearm:     rearm,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock replaces the wall clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Add extracts a note from free text, validates it and stores it as active.
// Nothing is stored when extraction, validation or the baseline quote fails.
func (s *Service) Add(ctx context.Context, rawText string) (*rules.Note, error) {
	candidate, err := s.extractor.Extract(ctx, rawText)
	if err != nil {
		return nil, err
	}

	now := s.now()
	note, err := rules.ValidateAndBuildNote(rawText, candidate, now, s.newID())
	if err != nil {
		return nil, err
	}

	if err := s.pinBaseline(ctx, note); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("note added",
		"id", note.ID, "symbol", note.Symbol, "conditions", len(note.Conditions))
	return note, nil
}

// pinBaseline fixes the quote at creation time as the reference for percent
// conditions that have neither an explicit baseline nor a buy price.
func (s *Service) pinBaseline(ctx context.Context, note *rules.Note) error {
	cs, err := rules.ParseConditions(note.Conditions, note.CreatedAt)
	if err != nil {
		return err
	}
	if !cs.NeedsCreationBaseline(note.BuyPrice) {
		return nil
	}

	q, err := s.quotes.Quote(ctx, note.Symbol)
	if err != nil {
		return rules.LookupError(note.Symbol, err)
	}
	if !q.Price.IsPositive() {
		return rules.LookupError(note.Symbol, fmt.Errorf("non-positive price %s", q.Price))
	}

	cs.PinBaseline(q.Price)
	note.Conditions = cs.ToMap()
	s.logger.Info("pinned percent baseline", "symbol", note.Symbol, "price", q.Price.String())
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]rules.Note, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id string) (*rules.Note, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("note deleted", "id", id)
	return nil
}

// Reactivate turns a fired note back on. Under the reset policy the note must
// be seen pending once before it may fire again.
func (s *Service) Reactivate(ctx context.Context, id string) (*rules.Note, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.Active {
		return nil, &rules.ValidationError{Field: "active", Message: fmt.Sprintf("note %s is already active", id)}
	}

	note.Active = true
	note.AwaitingReset = s.rearm == monitor.RearmReset

	if err := s.store.Save(ctx, note); err != nil {
		return nil, err
	}
	s.logger.Info("note reactivated", "id", id, "awaiting_reset", note.AwaitingReset)
	return note, nil
}
