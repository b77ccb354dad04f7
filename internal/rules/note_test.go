package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidateAndBuildNote(t *testing.T) {
	c := &Candidate{
		Symbol:      strPtr("$aapl"),
		ActionType:  strPtr("Buy"),
		BuyPrice:    170.0,
		Conditions:  map[string]any{"crosses_above": 200.0, "reminder_days": 90.0},
		UserOpinion: strPtr("  earnings look strong "),
	}

	note, err := ValidateAndBuildNote("  bought AAPL at 170, tell me above 200  ", c, created, "id-1")
	require.NoError(t, err)

	assert.Equal(t, "id-1", note.ID)
	assert.Equal(t, "bought AAPL at 170, tell me above 200", note.RawText)
	assert.Equal(t, "AAPL", note.Symbol)
	require.NotNil(t, note.ActionType)
	assert.Equal(t, ActionBuy, *note.ActionType)
	assert.True(t, note.BuyPrice.Decimal.Equal(d("170")))
	assert.Equal(t, "earnings look strong", note.UserOpinion)
	assert.True(t, note.Active)
	assert.Nil(t, note.LastChecked)
	assert.Equal(t, created, note.CreatedAt)

	// stored in canonical form with the duration pinned to an absolute time
	assert.Contains(t, note.Conditions, "crosses_above")
	assert.Equal(t, created.Add(90*day).Format(time.RFC3339Nano), note.Conditions["time_after"])
	assert.NotContains(t, note.Conditions, "reminder_days")
}

func TestValidateAndBuildNote_TimePeriodNeedsGain(t *testing.T) {
	tests := []struct {
		name      string
		buyPrice  any
		extra     map[string]any
		wantAbove string
	}{
		{"with buy price", 100.0, nil, "100"},
		{"lower explicit threshold is raised", 100.0, map[string]any{"price_above": 90.0}, "100"},
		{"higher explicit threshold is kept", 100.0, map[string]any{"crosses_above": 120.0}, "120"},
		{"without buy price", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := map[string]any{"time_period_days": 30.0}
			for k, v := range tt.extra {
				conds[k] = v
			}
			c := &Candidate{Symbol: strPtr("MSFT"), BuyPrice: tt.buyPrice, Conditions: conds}

			note, err := ValidateAndBuildNote("check MSFT in a month if it is up", c, created, "id-1")
			require.NoError(t, err)

			cs, err := ParseConditions(note.Conditions, note.CreatedAt)
			require.NoError(t, err)
			require.NotNil(t, cs.TimeAfter)
			assert.True(t, cs.TimeAfter.Equal(created.Add(30*day)))
			if tt.wantAbove == "" {
				assert.Nil(t, cs.CrossesAbove)
				return
			}
			require.NotNil(t, cs.CrossesAbove)
			assert.True(t, cs.CrossesAbove.Equal(d(tt.wantAbove)))
		})
	}
}

func TestValidateAndBuildNote_TimePeriodPendingWhileDown(t *testing.T) {
	c := &Candidate{Symbol: strPtr("MSFT"), BuyPrice: 100.0, Conditions: map[string]any{"time_period_days": 30.0}}
	note, err := ValidateAndBuildNote("check MSFT in a month if it is up", c, created, "id-1")
	require.NoError(t, err)

	cs, err := ParseConditions(note.Conditions, note.CreatedAt)
	require.NoError(t, err)

	later := created.Add(31 * day)
	assert.Equal(t, VerdictPending, Evaluate(cs, priced("95", later), *note).Kind)
	assert.True(t, Evaluate(cs, priced("104", later), *note).IsSatisfied())
}

func TestValidateAndBuildNote_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		c     *Candidate
		field string
	}{
		{"empty text", "   ", &Candidate{}, "raw_text"},
		{"bad action", "note", &Candidate{ActionType: strPtr("yolo")}, "action_type"},
		{"zero buy price", "note", &Candidate{BuyPrice: 0.0}, "buy_price"},
		{"text buy price", "note", &Candidate{BuyPrice: "cheap"}, "buy_price"},
		{"price condition without symbol", "note", &Candidate{Conditions: map[string]any{"crosses_below": 10.0}}, "symbol"},
		{"bad condition", "note", &Candidate{Symbol: strPtr("X"), Conditions: map[string]any{"percent_drop": -4.0}}, "percent_drop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAndBuildNote(tt.raw, tt.c, created, "id")
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateAndBuildNote_Optionals(t *testing.T) {
	note, err := ValidateAndBuildNote("remind me to review my portfolio in 2 weeks",
		&Candidate{ActionType: strPtr("unknown"), Conditions: map[string]any{"time_after": "2w"}}, created, "id-2")
	require.NoError(t, err)
	assert.Empty(t, note.Symbol)
	assert.Nil(t, note.ActionType)
	assert.False(t, note.BuyPrice.Valid)

	note, err = ValidateAndBuildNote("just a thought", nil, created, "id-3")
	require.NoError(t, err)
	assert.Empty(t, note.Conditions)
}

func TestNormalizeSymbol(t *testing.T) {
	tests := map[string]string{
		"aapl":        "AAPL",
		" $tsla ":     "TSLA",
		"NASDAQ:msft": "MSFT",
		"nyse:ko":     "KO",
		"AAPL.US":     "AAPL",
		"brk.b":       "BRK.B",
		"sber.me":     "SBER.ME",
		"MOEX:GAZP":   "GAZP",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSymbol(in), "input %q", in)
	}
}

func TestMarkChecked(t *testing.T) {
	note := Note{CreatedAt: created}

	note.MarkChecked(created.Add(-time.Hour))
	require.NotNil(t, note.LastChecked)
	assert.Equal(t, created, *note.LastChecked)

	later := created.Add(time.Hour)
	note.MarkChecked(later)
	assert.Equal(t, later, *note.LastChecked)
}
