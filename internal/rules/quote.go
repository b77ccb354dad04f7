package rules

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is what a price provider returns for one symbol.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Reference decimal.NullDecimal // previous close or session open, when the provider knows it
	AsOf      time.Time
}

// QuoteResult is the outcome of one lookup, shared by every note on the symbol
// within a cycle.
type QuoteResult struct {
	Quote Quote
	Err   error
}

// QuoteContext is the per-note input of the evaluator. When Err is set the
// price fields carry no meaning.
type QuoteContext struct {
	Symbol    string
	Price     decimal.Decimal
	Reference decimal.NullDecimal
	AsOf      time.Time
	Now       time.Time
	Err       error
}

var (
	errNoSymbol = errors.New("note has no symbol")
	errNoQuote  = errors.New("no quote fetched")
	errBadQuote = errors.New("provider returned a non-positive price")
)

// BuildQuoteContext assembles the evaluator input for note from the cycle's
// lookup result. result is nil when no lookup was made for the note's symbol.
func BuildQuoteContext(note Note, result *QuoteResult, now time.Time) QuoteContext {
	qc := QuoteContext{Symbol: note.Symbol, Now: now}
	switch {
	case note.Symbol == "":
		qc.Err = errNoSymbol
	case result == nil:
		qc.Err = LookupError(note.Symbol, errNoQuote)
	case result.Err != nil:
		qc.Err = result.Err
	case !result.Quote.Price.IsPositive():
		qc.Err = LookupError(note.Symbol, errBadQuote)
	default:
		qc.Price = result.Quote.Price
		qc.AsOf = result.Quote.AsOf
		if result.Quote.Reference.Valid && result.Quote.Reference.Decimal.IsPositive() {
			qc.Reference = result.Quote.Reference
		}
	}
	return qc
}

// HasPrice reports whether the context carries a usable price.
func (qc QuoteContext) HasPrice() bool {
	return qc.Err == nil
}
