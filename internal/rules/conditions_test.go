package rules

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var created = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func TestParseConditions_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		check func(t *testing.T, cs ConditionSet)
	}{
		{
			name: "crosses above as number",
			raw:  map[string]any{"crosses_above": 200.0},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.CrossesAbove)
				assert.True(t, cs.CrossesAbove.Equal(d("200")))
			},
		},
		{
			name: "crosses below as object with dollar string",
			raw:  map[string]any{"crosses_below": map[string]any{"threshold": "$65.50"}},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.CrossesBelow)
				assert.True(t, cs.CrossesBelow.Equal(d("65.5")))
			},
		},
		{
			name: "percent drop with baseline",
			raw:  map[string]any{"percent_drop": map[string]any{"percent": 15, "baseline": 100}},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.PercentDrop)
				assert.True(t, cs.PercentDrop.Percent.Equal(d("15")))
				require.True(t, cs.PercentDrop.Baseline.Valid)
				assert.True(t, cs.PercentDrop.Baseline.Decimal.Equal(d("100")))
			},
		},
		{
			name: "percent rise as percent string",
			raw:  map[string]any{"percent_rise": "10%"},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.PercentRise)
				assert.True(t, cs.PercentRise.Percent.Equal(d("10")))
				assert.False(t, cs.PercentRise.Baseline.Valid)
			},
		},
		{
			name: "price range as pair",
			raw:  map[string]any{"price_in_range": []any{300.0, 310.0}},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.PriceInRange)
				assert.True(t, cs.PriceInRange.Low.Equal(d("300")))
				assert.True(t, cs.PriceInRange.High.Equal(d("310")))
			},
		},
		{
			name: "time after relative duration",
			raw:  map[string]any{"time_after": "3 months"},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.TimeAfter)
				assert.True(t, cs.TimeAfter.Equal(created.Add(90*24*time.Hour)))
			},
		},
		{
			name: "time after absolute date",
			raw:  map[string]any{"time_after": "2026-06-01"},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.TimeAfter)
				assert.True(t, cs.TimeAfter.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
			},
		},
		{
			name: "time after days object",
			raw:  map[string]any{"time_after": map[string]any{"days": json.Number("10")}},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.TimeAfter)
				assert.True(t, cs.TimeAfter.Equal(created.Add(10*24*time.Hour)))
			},
		},
		{
			name: "go duration",
			raw:  map[string]any{"time_after": "36h"},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.TimeAfter)
				assert.True(t, cs.TimeAfter.Equal(created.Add(36*time.Hour)))
			},
		},
		{
			name: "percent change",
			raw:  map[string]any{"percent_change": 5},
			check: func(t *testing.T, cs ConditionSet) {
				require.NotNil(t, cs.PercentChange)
				assert.True(t, cs.PercentChange.Equal(d("5")))
			},
		},
		{
			name: "unknown keys and nulls are ignored",
			raw:  map[string]any{"moon_phase": "full", "crosses_above": nil, "price_between": nil},
			check: func(t *testing.T, cs ConditionSet) {
				assert.True(t, cs.IsEmpty())
			},
		},
		{
			name: "nil mapping is an empty set",
			raw:  nil,
			check: func(t *testing.T, cs ConditionSet) {
				assert.True(t, cs.IsEmpty())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := ParseConditions(tt.raw, created)
			require.NoError(t, err)
			tt.check(t, cs)
		})
	}
}

func TestParseConditions_LegacyAliases(t *testing.T) {
	raw := map[string]any{
		"price_above":       200.0,
		"trailing_stop":     150.0,
		"price_between":     map[string]any{"min": 300.0, "max": 310.0},
		"percent_above_buy": 10.0,
		"reminder_days":     90.0,
		"percent_change":    nil,
	}

	cs, err := ParseConditions(raw, created)
	require.NoError(t, err)

	assert.True(t, cs.CrossesAbove.Equal(d("200")))
	assert.True(t, cs.CrossesBelow.Equal(d("150")))
	assert.True(t, cs.PriceInRange.Low.Equal(d("300")))
	assert.True(t, cs.PriceInRange.High.Equal(d("310")))
	assert.True(t, cs.PercentRise.Percent.Equal(d("10")))
	assert.True(t, cs.TimeAfter.Equal(created.Add(90*24*time.Hour)))
	assert.Nil(t, cs.PercentChange)
}

func TestParseConditions_CanonicalKeyWinsOverAlias(t *testing.T) {
	cs, err := ParseConditions(map[string]any{"crosses_above": 210.0, "price_above": 200.0}, created)
	require.NoError(t, err)
	assert.True(t, cs.CrossesAbove.Equal(d("210")))
}

func TestParseConditions_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"non numeric threshold", map[string]any{"crosses_above": "soon"}, "crosses_above"},
		{"negative threshold", map[string]any{"crosses_below": -5.0}, "crosses_below"},
		{"zero threshold", map[string]any{"crosses_above": 0.0}, "crosses_above"},
		{"wrong type", map[string]any{"crosses_above": true}, "crosses_above"},
		{"missing threshold field", map[string]any{"crosses_above": map[string]any{"level": 3}}, "crosses_above"},
		{"percent above 100", map[string]any{"percent_drop": 150.0}, "percent_drop"},
		{"percent zero", map[string]any{"percent_rise": 0.0}, "percent_rise"},
		{"bad baseline", map[string]any{"percent_drop": map[string]any{"percent": 10, "baseline": "x"}}, "percent_drop.baseline"},
		{"range inverted", map[string]any{"price_in_range": map[string]any{"low": 310.0, "high": 300.0}}, "price_in_range"},
		{"range equal bounds", map[string]any{"price_in_range": map[string]any{"low": 300.0, "high": 300.0}}, "price_in_range"},
		{"range missing high", map[string]any{"price_in_range": map[string]any{"low": 300.0}}, "price_in_range"},
		{"range wrong shape", map[string]any{"price_in_range": 300.0}, "price_in_range"},
		{"alias named in error", map[string]any{"price_between": map[string]any{"min": 5.0, "max": 1.0}}, "price_between"},
		{"time garbage", map[string]any{"time_after": "whenever"}, "time_after"},
		{"time negative days", map[string]any{"time_after": -3.0}, "time_after"},
		{"time zero duration", map[string]any{"time_after": "0d"}, "time_after"},
		{"time empty object", map[string]any{"time_after": map[string]any{}}, "time_after"},
		{"time days overflow", map[string]any{"time_after": 1e9}, "time_after"},
		{"time unit overflow", map[string]any{"time_after": "1000000000d"}, "time_after"},
		{"time years overflow", map[string]any{"time_after": map[string]any{"duration": "500 years"}}, "time_after.duration"},
		{"decimal comma", map[string]any{"crosses_above": "85,5"}, "crosses_above"},
		{"misplaced grouping", map[string]any{"crosses_above": "1,25,000"}, "crosses_above"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConditions(tt.raw, created)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseConditions_ThousandsSeparators(t *testing.T) {
	cs, err := ParseConditions(map[string]any{"crosses_above": "$1,250.50", "crosses_below": "12,000"}, created)
	require.NoError(t, err)
	assert.True(t, cs.CrossesAbove.Equal(d("1250.50")))
	assert.True(t, cs.CrossesBelow.Equal(d("12000")))
}

func TestParseConditions_LongHorizonStaysInFuture(t *testing.T) {
	cs, err := ParseConditions(map[string]any{"time_after": "200 years"}, created)
	require.NoError(t, err)
	assert.True(t, cs.TimeAfter.After(created))
}

func TestConditionSet_RoundTrip(t *testing.T) {
	inputs := []map[string]any{
		{"crosses_above": 200.0},
		{"crosses_below": "65.25"},
		{"percent_drop": map[string]any{"percent": 15.0, "baseline": 100.0}},
		{"percent_rise": 12.5},
		{"price_in_range": map[string]any{"low": 300.0, "high": 310.0}},
		{"time_after": "2026-09-01T00:00:00Z"},
		{"percent_change": map[string]any{"percent": 3.0}},
		{
			"crosses_above":  250.0,
			"percent_drop":   20.0,
			"time_after":     "90d",
			"price_in_range": []any{240.0, 260.0},
		},
		{},
	}

	for _, raw := range inputs {
		cs, err := ParseConditions(raw, created)
		require.NoError(t, err)

		again, err := ParseConditions(cs.ToMap(), created.Add(48*time.Hour))
		require.NoError(t, err)
		assert.True(t, cs.Equal(again), "round trip changed %v into %v", raw, cs.ToMap())
	}
}

func TestConditionSet_RoundTripThroughJSON(t *testing.T) {
	cs, err := ParseConditions(map[string]any{
		"percent_drop":   map[string]any{"percent": 15, "baseline": 101.37},
		"price_in_range": map[string]any{"low": 300, "high": 310},
		"time_after":     "2w",
	}, created)
	require.NoError(t, err)

	data, err := json.Marshal(cs.ToMap())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	again, err := ParseConditions(raw, created)
	require.NoError(t, err)
	assert.True(t, cs.Equal(again))
}

func TestConditionSet_Helpers(t *testing.T) {
	timeOnly, err := ParseConditions(map[string]any{"time_after": "30d"}, created)
	require.NoError(t, err)
	assert.False(t, timeOnly.HasPriceConditions())
	assert.Equal(t, []Kind{KindTimeAfter}, timeOnly.Kinds())

	cs, err := ParseConditions(map[string]any{"percent_drop": 10, "percent_rise": 20}, created)
	require.NoError(t, err)
	assert.True(t, cs.HasPriceConditions())
	assert.True(t, cs.NeedsCreationBaseline(decimal.NullDecimal{}))
	assert.False(t, cs.NeedsCreationBaseline(decimal.NewNullDecimal(d("50"))))

	cs.PinBaseline(d("42"))
	assert.False(t, cs.NeedsCreationBaseline(decimal.NullDecimal{}))
	assert.True(t, cs.PercentDrop.Baseline.Decimal.Equal(d("42")))
	assert.True(t, cs.PercentRise.Baseline.Decimal.Equal(d("42")))
}
