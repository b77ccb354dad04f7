package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/rules"
)

// QuoteProvider fetches the current price of one symbol.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (rules.Quote, error)
}

type NoteStore interface {
	LoadActive(ctx context.Context) ([]rules.Note, error)
	Save(ctx context.Context, note *rules.Note) error
	RecordCycle(ctx context.Context, report *CycleReport) error
}

type Notifier interface {
	NotifyAlert(alert Alert)
}

// RearmPolicy decides what a reactivated note needs before it may fire again.
type RearmPolicy string

const (
	// RearmLevel fires again as soon as the condition holds.
	RearmLevel RearmPolicy = "level"
	// RearmReset requires one Pending observation after reactivation.
	RearmReset RearmPolicy = "reset"
)

type Options struct {
	QuoteConcurrency int
	QuoteTimeout     time.Duration
	RearmPolicy      RearmPolicy
}

type Monitor struct {
	store    NoteStore
	quotes   QuoteProvider
	notifier Notifier
	opts     Options
	logger   *logger.Logger
	now      func() time.Time
}

// New builds a Monitor. notifier may be nil.
func New(store NoteStore, quotes QuoteProvider, notifier Notifier, opts Options, log *logger.Logger) *Monitor {
	if opts.QuoteConcurrency <= 0 {
		opts.QuoteConcurrency = 4
	}
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = 20 * time.Second
	}
	if opts.RearmPolicy == "" {
		opts.RearmPolicy = RearmLevel
	}
	return &Monitor{
		store:    store,
		quotes:   quotes,
		notifier: notifier,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

type pending struct {
	note *rules.Note
	cs   rules.ConditionSet
	err  error
}

// RunCheckCycle evaluates every active note once. Only a failure to load the
// active notes is returned as an error; everything else lands in the report.
func (m *Monitor) RunCheckCycle(ctx context.Context) (report *CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in check cycle", "panic", fmt.Sprint(r))
			report, err = nil, fmt.Errorf("check cycle panic: %v", r)
		}
	}()

	report = &CycleReport{StartedAt: m.now()}
	m.logger.Info("starting check cycle")

	// 1. Load active notes
	notes, err := m.store.LoadActive(ctx)
	if err != nil {
		m.logger.Error("load active notes", "error", err)
		return nil, fmt.Errorf("load active notes: %w", err)
	}
	report.Checked = len(notes)
	if len(notes) == 0 {
		report.FinishedAt = m.now()
		m.recordCycle(ctx, report)
		m.logger.Info("no active notes, nothing to check")
		return report, nil
	}

	// 2. Parse stored conditions and collect symbols that need a quote
	items := make([]pending, len(notes))
	symbolSet := make(map[string]struct{})
	for i := range notes {
		note := &notes[i]
		cs, perr := rules.ParseConditions(note.Conditions, note.CreatedAt)
		items[i] = pending{note: note, cs: cs, err: perr}
		if perr == nil && note.Symbol != "" && cs.HasPriceConditions() {
			symbolSet[note.Symbol] = struct{}{}
		}
	}

	// 3. Fetch one quote per distinct symbol
	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	quotes := m.fetchQuotes(ctx, symbols)
	m.logger.Info("quotes fetched", "symbols", len(symbols))

	// 4. Evaluate and transition
	now := m.now()
	for _, it := range items {
		m.checkNote(ctx, it, quotes, now, report)
	}

	// 5. Journal the cycle
	report.FinishedAt = m.now()
	m.recordCycle(ctx, report)

	m.logger.Info("check cycle completed",
		"checked", report.Checked,
		"alerts", len(report.Alerts),
		"skipped", len(report.Skipped),
		"failures", len(report.Failures))
	return report, nil
}

func (m *Monitor) checkNote(ctx context.Context, it pending, quotes map[string]*rules.QuoteResult, now time.Time, report *CycleReport) {
	note := it.note
	note.MarkChecked(now)

	var (
		verdict rules.Verdict
		qc      rules.QuoteContext
	)
	if it.err != nil {
		verdict = rules.Unevaluable(fmt.Sprintf("stored conditions are invalid: %v", it.err))
	} else {
		qc = rules.BuildQuoteContext(*note, quotes[note.Symbol], now)
		verdict = rules.Evaluate(it.cs, qc, *note)
	}

	fire := m.transition(note, verdict)

	if err := m.store.Save(ctx, note); err != nil {
		m.logger.Error("save note", "note_id", note.ID, "error", err)
		report.Failures = append(report.Failures, Failure{NoteID: note.ID, Symbol: note.Symbol, Error: err.Error()})
		return
	}

	switch {
	case fire:
		alert := newAlert(note, verdict, qc)
		report.Alerts = append(report.Alerts, alert)
		m.logger.Info("note fired", "note_id", note.ID, "symbol", note.Symbol, "reason", verdict.Reason)
		if m.notifier != nil {
			m.notifier.NotifyAlert(alert)
		}
	case verdict.IsUnevaluable():
		report.Skipped = append(report.Skipped, Skip{NoteID: note.ID, Symbol: note.Symbol, Cause: verdict.Cause})
		m.logger.Debug("note skipped", "note_id", note.ID, "cause", verdict.Cause)
	}
}

// transition applies the verdict to the note's lifecycle flags and reports
// whether the note fires.
func (m *Monitor) transition(note *rules.Note, verdict rules.Verdict) bool {
	if m.opts.RearmPolicy == RearmReset && note.AwaitingReset {
		if verdict.Kind == rules.VerdictPending {
			note.AwaitingReset = false
		}
		return false
	}
	if !verdict.IsSatisfied() {
		return false
	}
	note.Active = false
	note.AwaitingReset = false
	return true
}

// fetchQuotes looks up every symbol concurrently with bounded parallelism and
// a per-lookup timeout. The returned map is complete when it is returned.
func (m *Monitor) fetchQuotes(ctx context.Context, symbols []string) map[string]*rules.QuoteResult {
	results := make(map[string]*rules.QuoteResult, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.opts.QuoteConcurrency)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := m.fetchOne(ctx, symbol)

			mu.Lock()
			results[symbol] = res
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

func (m *Monitor) fetchOne(ctx context.Context, symbol string) (res *rules.QuoteResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &rules.QuoteResult{Err: rules.LookupError(symbol, fmt.Errorf("panic: %v", r))}
		}
	}()

	lookupCtx, cancel := context.WithTimeout(ctx, m.opts.QuoteTimeout)
	defer cancel()

	q, err := m.quotes.Quote(lookupCtx, symbol)
	if err != nil {
		m.logger.Warn("quote lookup failed", "symbol", symbol, "error", err)
		return &rules.QuoteResult{Err: rules.LookupError(symbol, err)}
	}
	return &rules.QuoteResult{Quote: q}
}

func (m *Monitor) recordCycle(ctx context.Context, report *CycleReport) {
	if err := m.store.RecordCycle(ctx, report); err != nil {
		m.logger.Error("record check cycle", "error", err)
	}
}
