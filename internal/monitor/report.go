package monitor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/stock-watch/internal/rules"
)

// Alert is emitted once per note whose conditions were satisfied and whose
// deactivation was persisted.
type Alert struct {
	NoteID        string              `json:"note_id"`
	Symbol        string              `json:"symbol,omitempty"`
	Reason        string              `json:"reason"`
	ObservedPrice decimal.NullDecimal `json:"observed_price"`
	Timestamp     time.Time           `json:"timestamp"`

	// rendering context
	BuyPrice    decimal.NullDecimal `json:"buy_price"`
	ActionType  string              `json:"action_type,omitempty"`
	UserOpinion string              `json:"user_opinion,omitempty"`
	RawText     string              `json:"raw_text"`
}

// PriceDelta returns the observed price minus the buy price and the same move
// in percent. ok is false when either side is unknown.
func (a Alert) PriceDelta() (diff, pct decimal.Decimal, ok bool) {
	if !a.ObservedPrice.Valid || !a.BuyPrice.Valid || !a.BuyPrice.Decimal.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	diff = a.ObservedPrice.Decimal.Sub(a.BuyPrice.Decimal)
	pct = diff.Div(a.BuyPrice.Decimal).Mul(decimal.NewFromInt(100))
	return diff, pct, true
}

// FormatDelta renders the buy-price delta as "+5.00 (+2.94%)".
func (a Alert) FormatDelta() string {
	diff, pct, ok := a.PriceDelta()
	if !ok {
		return ""
	}
	return signed(diff) + " (" + signed(pct) + "%)"
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if !d.IsNegative() {
		s = "+" + s
	}
	return s
}

// Skip is a note that could not be evaluated this cycle.
type Skip struct {
	NoteID string `json:"note_id"`
	Symbol string `json:"symbol,omitempty"`
	Cause  string `json:"cause"`
}

// Failure is a note whose updated state could not be saved.
type Failure struct {
	NoteID string `json:"note_id"`
	Symbol string `json:"symbol,omitempty"`
	Error  string `json:"error"`
}

type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Alerts     []Alert   `json:"alerts"`
	Skipped    []Skip    `json:"skipped"`
	Failures   []Failure `json:"failures"`
}

func newAlert(note *rules.Note, verdict rules.Verdict, qc rules.QuoteContext) Alert {
	a := Alert{
		NoteID:      note.ID,
		Symbol:      note.Symbol,
		Reason:      verdict.Reason,
		Timestamp:   qc.Now,
		BuyPrice:    note.BuyPrice,
		UserOpinion: note.UserOpinion,
		RawText:     note.RawText,
	}
	if qc.HasPrice() {
		a.ObservedPrice = decimal.NewNullDecimal(qc.Price)
	}
	if note.ActionType != nil {
		a.ActionType = string(*note.ActionType)
	}
	return a
}
