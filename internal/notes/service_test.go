package notes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, rawText string) (*rules.Candidate, error) {
	args := m.Called(ctx, rawText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.Candidate), args.Error(1)
}

type MockQuotes struct {
	mock.Mock
}

func (m *MockQuotes) Quote(ctx context.Context, symbol string) (rules.Quote, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(rules.Quote), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, note *rules.Note) error {
	return m.Called(ctx, note).Error(0)
}

func (m *MockStore) Save(ctx context.Context, note *rules.Note) error {
	return m.Called(ctx, note).Error(0)
}

func (m *MockStore) List(ctx context.Context, activeOnly bool) ([]rules.Note, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rules.Note), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id string) (*rules.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.Note), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var now = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestService(ex *MockExtractor, q *MockQuotes, st *MockStore, rearm monitor.RearmPolicy) *Service {
	s := NewService(ex, q, st, rearm, logger.Nop()).WithClock(func() time.Time { return now })
	s.newID = func() string { return "note-1" }
	return s
}

func TestAdd_StoresValidatedNote(t *testing.T) {
	ctx := context.Background()
	ex, q, st := new(MockExtractor), new(MockQuotes), new(MockStore)

	ex.On("Extract", ctx, "bought NVDA at 170, alert above 200").Return(&rules.Candidate{
		Symbol:     strPtr("nasdaq:nvda"),
		ActionType: strPtr("buy"),
		BuyPrice:   170.0,
		Conditions: map[string]any{"crosses_above": 200},
	}, nil)
	st.On("Create", ctx, mock.AnythingOfType("*rules.Note")).Return(nil)

	note, err := newTestService(ex, q, st, monitor.RearmLevel).Add(ctx, "bought NVDA at 170, alert above 200")
	require.NoError(t, err)

	assert.Equal(t, "note-1", note.ID)
	assert.Equal(t, "NVDA", note.Symbol)
	assert.True(t, note.Active)
	assert.Equal(t, now, note.CreatedAt)
	assert.True(t, note.BuyPrice.Decimal.Equal(decimal.NewFromInt(170)))
	q.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	st.AssertExpectations(t)
}

func TestAdd_PinsCreationQuoteAsBaseline(t *testing.T) {
	ctx := context.Background()
	ex, q, st := new(MockExtractor), new(MockQuotes), new(MockStore)

	ex.On("Extract", ctx, "tell me if AAPL falls 10%").Return(&rules.Candidate{
		Symbol:     strPtr("AAPL"),
		Conditions: map[string]any{"percent_drop": map[string]any{"percent": 10}},
	}, nil)
	q.On("Quote", ctx, "AAPL").Return(rules.Quote{Symbol: "AAPL", Price: decimal.RequireFromString("231.40"), AsOf: now}, nil)
	st.On("Create", ctx, mock.AnythingOfType("*rules.Note")).Return(nil)

	note, err := newTestService(ex, q, st, monitor.RearmLevel).Add(ctx, "tell me if AAPL falls 10%")
	require.NoError(t, err)

	cs, err := rules.ParseConditions(note.Conditions, note.CreatedAt)
	require.NoError(t, err)
	require.NotNil(t, cs.PercentDrop)
	require.True(t, cs.PercentDrop.Baseline.Valid)
	assert.Equal(t, "231.4", cs.PercentDrop.Baseline.Decimal.String())
}

func TestAdd_BaselineLookupFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	ex, q, st := new(MockExtractor), new(MockQuotes), new(MockStore)

	ex.On("Extract", ctx, "AAPL up 5%").Return(&rules.Candidate{
		Symbol:     strPtr("AAPL"),
		Conditions: map[string]any{"percent_rise": 5},
	}, nil)
	q.On("Quote", ctx, "AAPL").Return(rules.Quote{}, errors.New("timeout"))

	_, err := newTestService(ex, q, st, monitor.RearmLevel).Add(ctx, "AAPL up 5%")
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrLookup)
	st.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdd_NonPositiveBaselineQuoteStoresNothing(t *testing.T) {
	ctx := context.Background()
	ex, q, st := new(MockExtractor), new(MockQuotes), new(MockStore)

	ex.On("Extract", ctx, "AAPL down 10%").Return(&rules.Candidate{
		Symbol:     strPtr("AAPL"),
		Conditions: map[string]any{"percent_drop": 10},
	}, nil)
	q.On("Quote", ctx, "AAPL").Return(rules.Quote{Symbol: "AAPL", AsOf: now}, nil)

	_, err := newTestService(ex, q, st, monitor.RearmLevel).Add(ctx, "AAPL down 10%")
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrLookup)
	st.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdd_ErrorsStopBeforeStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		candidate  *rules.Candidate
		extractErr error
		wantErr    error
	}{
		{
			name:       "extraction failure",
			extractErr: rules.ExtractionError(errors.New("model unavailable")),
			wantErr:    rules.ErrExtraction,
		},
		{
			name:      "price condition without symbol",
			candidate: &rules.Candidate{Conditions: map[string]any{"crosses_below": 50}},
			wantErr:   rules.ErrValidation,
		},
		{
			name:      "negative threshold",
			candidate: &rules.Candidate{Symbol: strPtr("TSLA"), Conditions: map[string]any{"crosses_below": -5}},
			wantErr:   rules.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, q, st := new(MockExtractor), new(MockQuotes), new(MockStore)
			if tt.extractErr != nil {
				ex.On("Extract", ctx, "text").Return(nil, tt.extractErr)
			} else {
				ex.On("Extract", ctx, "text").Return(tt.candidate, nil)
			}

			_, err := newTestService(ex, q, st, monitor.RearmLevel).Add(ctx, "text")
			assert.ErrorIs(t, err, tt.wantErr)
			st.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestReactivate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		policy        monitor.RearmPolicy
		awaitingReset bool
	}{
		{"level policy", monitor.RearmLevel, false},
		{"reset policy", monitor.RearmReset, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := new(MockStore)
			st.On("Get", ctx, "n1").Return(&rules.Note{ID: "n1", Active: false}, nil)
			st.On("Save", ctx, mock.MatchedBy(func(n *rules.Note) bool {
				return n.Active && n.AwaitingReset == tt.awaitingReset
			})).Return(nil)

			note, err := newTestService(new(MockExtractor), new(MockQuotes), st, tt.policy).Reactivate(ctx, "n1")
			require.NoError(t, err)
			assert.True(t, note.Active)
			st.AssertExpectations(t)
		})
	}
}

func TestReactivate_AlreadyActive(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	st.On("Get", ctx, "n1").Return(&rules.Note{ID: "n1", Active: true}, nil)

	_, err := newTestService(new(MockExtractor), new(MockQuotes), st, monitor.RearmLevel).Reactivate(ctx, "n1")
	assert.ErrorIs(t, err, rules.ErrValidation)
	st.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestReactivate_NotFound(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	st.On("Get", ctx, "missing").Return(nil, rules.ErrNotFound)

	_, err := newTestService(new(MockExtractor), new(MockQuotes), st, monitor.RearmLevel).Reactivate(ctx, "missing")
	assert.ErrorIs(t, err, rules.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	st.On("Delete", ctx, "n1").Return(nil)
	st.On("Delete", ctx, "n2").Return(rules.ErrNotFound)

	svc := newTestService(new(MockExtractor), new(MockQuotes), st, monitor.RearmLevel)
	assert.NoError(t, svc.Delete(ctx, "n1"))
	assert.ErrorIs(t, svc.Delete(ctx, "n2"), rules.ErrNotFound)
}
