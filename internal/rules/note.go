package rules

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionBuy    ActionType = "buy"
	ActionHold   ActionType = "hold"
	ActionWatch  ActionType = "watch"
	ActionSell   ActionType = "sell"
	ActionReview ActionType = "review"
)

// Note is one monitoring rule derived from one piece of user text.
type Note struct {
	ID          string
	RawText     string
	Symbol      string
	ActionType  *ActionType
	BuyPrice    decimal.NullDecimal
	Conditions  map[string]any
	UserOpinion string
	CreatedAt   time.Time
	LastChecked *time.Time
	Active      bool

	// AwaitingReset is only consulted under the reset re-arm policy.
	AwaitingReset bool
}

// Candidate is the loosely-typed output of the extraction service.
// Nil fields are ones the extractor could not determine.
type Candidate struct {
	Symbol      *string        `json:"symbol"`
	ActionType  *string        `json:"action_type"`
	BuyPrice    any            `json:"buy_price"`
	Conditions  map[string]any `json:"conditions"`
	UserOpinion *string        `json:"user_opinion"`
}

// ValidateAndBuildNote turns an extraction candidate into a new active note.
// Conditions are stored in canonical form so that relative durations are pinned
// to the creation time.
func ValidateAndBuildNote(rawText string, c *Candidate, now time.Time, id string) (*Note, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, invalid("raw_text", "must not be empty")
	}
	if c == nil {
		c = &Candidate{}
	}

	note := &Note{
		ID:        id,
		RawText:   rawText,
		CreatedAt: now,
		Active:    true,
	}

	if c.Symbol != nil {
		note.Symbol = NormalizeSymbol(*c.Symbol)
	}

	if c.ActionType != nil {
		at, err := parseActionType(*c.ActionType)
		if err != nil {
			return nil, err
		}
		note.ActionType = at
	}

	if c.BuyPrice != nil {
		price, err := positiveDecimal("buy_price", c.BuyPrice)
		if err != nil {
			return nil, err
		}
		note.BuyPrice = decimal.NewNullDecimal(price)
	}

	if c.UserOpinion != nil {
		note.UserOpinion = strings.TrimSpace(*c.UserOpinion)
	}

	cs, err := ParseConditions(c.Conditions, now)
	if err != nil {
		return nil, err
	}
	if note.BuyPrice.Valid && periodRequiresGain(c.Conditions) {
		cs.RequireAbove(note.BuyPrice.Decimal)
	}
	if note.Symbol == "" && cs.HasPriceConditions() {
		return nil, invalid("symbol", "price conditions require a symbol")
	}
	note.Conditions = cs.ToMap()

	return note, nil
}

func parseActionType(s string) (*ActionType, error) {
	v := ActionType(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case ActionBuy, ActionHold, ActionWatch, ActionSell, ActionReview:
		return &v, nil
	case "", "unknown", "null", "none":
		return nil, nil
	}
	return nil, invalid("action_type", "unsupported value %q", s)
}

var (
	exchangePrefixes = []string{"NASDAQ:", "NYSE:", "AMEX:", "MOEX:", "NYSEARCA:"}
	droppedSuffixes  = []string{".US", ".NASDAQ", ".NYSE", ".NMS"}
)

// NormalizeSymbol uppercases a ticker and strips decoration that the quote
// providers do not need. Class and market suffixes such as BRK.B or SBER.ME are kept.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "$", "")
	for _, p := range exchangePrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	for _, suf := range droppedSuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	return strings.TrimSpace(s)
}

// MarkChecked records an evaluation attempt, never moving last_checked before created_at.
func (n *Note) MarkChecked(now time.Time) {
	if now.Before(n.CreatedAt) {
		now = n.CreatedAt
	}
	n.LastChecked = &now
}
