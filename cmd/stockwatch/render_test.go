package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
)

func TestFormatAlert_WithBuyPrice(t *testing.T) {
	out := formatAlert(monitor.Alert{
		NoteID:        "n1",
		Symbol:        "NVDA",
		Reason:        "Price crossed above $200.00",
		ObservedPrice: decimal.NewNullDecimal(decimal.RequireFromString("201.50")),
		BuyPrice:      decimal.NewNullDecimal(decimal.RequireFromString("170")),
		RawText:       "bought NVDA at 170",
	})

	assert.Contains(t, out, "STOCK ALERT: NVDA")
	assert.Contains(t, out, "Current price: $201.50")
	assert.Contains(t, out, "Buy price:     $170.00")
	assert.Contains(t, out, "Change:        +31.50 (+18.53%)")
	assert.Contains(t, out, "Reason:        Price crossed above $200.00")
}

func TestFormatAlert_Reminder(t *testing.T) {
	out := formatAlert(monitor.Alert{Reason: "Time reached 2026-06-01 00:00", RawText: "rebalance"})

	assert.Contains(t, out, "STOCK ALERT: REMINDER")
	assert.NotContains(t, out, "Change")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &monitor.CycleReport{
		Checked:  3,
		Alerts:   []monitor.Alert{{NoteID: "n1", Symbol: "AAPL", Reason: "Price fell below $180.00"}},
		Skipped:  []monitor.Skip{{NoteID: "n2", Symbol: "XYZ", Cause: "price lookup failed"}},
		Failures: []monitor.Failure{{NoteID: "n3", Error: "database is locked"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Checked 3 notes: 1 alerts, 1 skipped, 1 failures")
	assert.Contains(t, out, "STOCK ALERT: AAPL")
	assert.Contains(t, out, "n2 XYZ: price lookup failed")
	assert.Contains(t, out, "n3 -: database is locked")
}

func TestPrintNoteTable(t *testing.T) {
	var buf bytes.Buffer
	printNoteTable(&buf, nil)
	assert.Equal(t, "No notes.\n", buf.String())

	buf.Reset()
	printNoteTable(&buf, []rules.Note{{
		ID:         "n1",
		Symbol:     "TSLA",
		RawText:    "watch TSLA under 150",
		Conditions: map[string]any{"crosses_below": json.Number("150")},
		CreatedAt:  time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
		Active:     true,
	}})
	out := buf.String()
	assert.Contains(t, out, "TSLA")
	assert.Contains(t, out, `{"crosses_below":150}`)
	assert.Contains(t, out, "active")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
