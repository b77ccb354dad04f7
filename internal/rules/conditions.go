package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindCrossesAbove  Kind = "crosses_above"
	KindCrossesBelow  Kind = "crosses_below"
	KindPercentDrop   Kind = "percent_drop"
	KindPercentRise   Kind = "percent_rise"
	KindPriceInRange  Kind = "price_in_range"
	KindTimeAfter     Kind = "time_after"
	KindPercentChange Kind = "percent_change"
)

// aliases maps canonical kinds to the keys older extractor prompts emit.
var aliases = map[Kind][]string{
	KindCrossesAbove: {"price_above"},
	KindCrossesBelow: {"price_below", "trailing_stop"},
	KindPercentRise:  {"percent_above_buy"},
	KindPriceInRange: {"price_between"},
	KindTimeAfter:    {"reminder_days", "time_period_days"},
}

var hundred = decimal.NewFromInt(100)

// PercentCondition is a percentage move measured from a baseline price.
// An invalid Baseline means "resolve at evaluation time".
type PercentCondition struct {
	Percent  decimal.Decimal
	Baseline decimal.NullDecimal
}

type PriceRange struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// ConditionSet is the validated, stateless form of a note's conditions.
// All present conditions are AND-combined.
type ConditionSet struct {
	CrossesAbove  *decimal.Decimal
	CrossesBelow  *decimal.Decimal
	PercentDrop   *PercentCondition
	PercentRise   *PercentCondition
	PriceInRange  *PriceRange
	TimeAfter     *time.Time
	PercentChange *decimal.Decimal
}

// ParseConditions validates a raw conditions mapping. Relative time_after
// durations are resolved against createdAt.
func ParseConditions(raw map[string]any, createdAt time.Time) (ConditionSet, error) {
	var cs ConditionSet

	if key, v, ok := lookup(raw, KindCrossesAbove); ok {
		d, err := priceValue(key, v, "threshold")
		if err != nil {
			return cs, err
		}
		cs.CrossesAbove = &d
	}
	if key, v, ok := lookup(raw, KindCrossesBelow); ok {
		d, err := priceValue(key, v, "threshold")
		if err != nil {
			return cs, err
		}
		cs.CrossesBelow = &d
	}
	if key, v, ok := lookup(raw, KindPercentDrop); ok {
		pc, err := percentCondition(key, v)
		if err != nil {
			return cs, err
		}
		cs.PercentDrop = pc
	}
	if key, v, ok := lookup(raw, KindPercentRise); ok {
		pc, err := percentCondition(key, v)
		if err != nil {
			return cs, err
		}
		cs.PercentRise = pc
	}
	if key, v, ok := lookup(raw, KindPriceInRange); ok {
		r, err := priceRange(key, v)
		if err != nil {
			return cs, err
		}
		cs.PriceInRange = r
	}
	if key, v, ok := lookup(raw, KindTimeAfter); ok {
		t, err := targetTime(key, v, createdAt)
		if err != nil {
			return cs, err
		}
		cs.TimeAfter = &t
	}
	if key, v, ok := lookup(raw, KindPercentChange); ok {
		p, err := percentField(key, v, "percent")
		if err != nil {
			return cs, err
		}
		cs.PercentChange = &p
	}

	return cs, nil
}

// lookup returns the first non-null value for kind, preferring the canonical key.
func lookup(raw map[string]any, kind Kind) (string, any, bool) {
	if v, ok := raw[string(kind)]; ok && v != nil {
		return string(kind), v, true
	}
	for _, alias := range aliases[kind] {
		if v, ok := raw[alias]; ok && v != nil {
			return alias, v, true
		}
	}
	return "", nil, false
}

// periodRequiresGain reports whether raw carries a time_period_days check.
// That legacy key means "after the period, if the position is up".
func periodRequiresGain(raw map[string]any) bool {
	key, _, ok := lookup(raw, KindTimeAfter)
	return ok && key == "time_period_days"
}

// RequireAbove tightens crosses_above so that it holds only at or above price.
func (cs *ConditionSet) RequireAbove(price decimal.Decimal) {
	if cs.CrossesAbove == nil || cs.CrossesAbove.LessThan(price) {
		p := price
		cs.CrossesAbove = &p
	}
}

// IsEmpty reports whether no condition is present.
func (cs ConditionSet) IsEmpty() bool {
	return len(cs.Kinds()) == 0
}

// HasPriceConditions reports whether any condition needs a quote.
func (cs ConditionSet) HasPriceConditions() bool {
	for _, k := range cs.Kinds() {
		if k != KindTimeAfter {
			return true
		}
	}
	return false
}

// NeedsCreationBaseline reports whether a percent condition has neither an
// explicit baseline nor a buy price to fall back on.
func (cs ConditionSet) NeedsCreationBaseline(buyPrice decimal.NullDecimal) bool {
	if buyPrice.Valid {
		return false
	}
	return (cs.PercentDrop != nil && !cs.PercentDrop.Baseline.Valid) ||
		(cs.PercentRise != nil && !cs.PercentRise.Baseline.Valid)
}

// PinBaseline sets price as the baseline of every percent condition that has none.
func (cs *ConditionSet) PinBaseline(price decimal.Decimal) {
	for _, pc := range []*PercentCondition{cs.PercentDrop, cs.PercentRise} {
		if pc != nil && !pc.Baseline.Valid {
			pc.Baseline = decimal.NewNullDecimal(price)
		}
	}
}

// Kinds lists present conditions in evaluation order.
func (cs ConditionSet) Kinds() []Kind {
	var kinds []Kind
	if cs.CrossesAbove != nil {
		kinds = append(kinds, KindCrossesAbove)
	}
	if cs.CrossesBelow != nil {
		kinds = append(kinds, KindCrossesBelow)
	}
	if cs.PercentDrop != nil {
		kinds = append(kinds, KindPercentDrop)
	}
	if cs.PercentRise != nil {
		kinds = append(kinds, KindPercentRise)
	}
	if cs.PriceInRange != nil {
		kinds = append(kinds, KindPriceInRange)
	}
	if cs.TimeAfter != nil {
		kinds = append(kinds, KindTimeAfter)
	}
	if cs.PercentChange != nil {
		kinds = append(kinds, KindPercentChange)
	}
	return kinds
}

// ToMap serializes the set back to canonical keys. ParseConditions(cs.ToMap(), t)
// yields a set Equal to cs for any t.
func (cs ConditionSet) ToMap() map[string]any {
	m := make(map[string]any)
	if cs.CrossesAbove != nil {
		m[string(KindCrossesAbove)] = number(*cs.CrossesAbove)
	}
	if cs.CrossesBelow != nil {
		m[string(KindCrossesBelow)] = number(*cs.CrossesBelow)
	}
	if cs.PercentDrop != nil {
		m[string(KindPercentDrop)] = cs.PercentDrop.toMap()
	}
	if cs.PercentRise != nil {
		m[string(KindPercentRise)] = cs.PercentRise.toMap()
	}
	if cs.PriceInRange != nil {
		m[string(KindPriceInRange)] = map[string]any{
			"low":  number(cs.PriceInRange.Low),
			"high": number(cs.PriceInRange.High),
		}
	}
	if cs.TimeAfter != nil {
		m[string(KindTimeAfter)] = cs.TimeAfter.Format(time.RFC3339Nano)
	}
	if cs.PercentChange != nil {
		m[string(KindPercentChange)] = map[string]any{"percent": number(*cs.PercentChange)}
	}
	return m
}

func (pc *PercentCondition) toMap() map[string]any {
	m := map[string]any{"percent": number(pc.Percent)}
	if pc.Baseline.Valid {
		m["baseline"] = number(pc.Baseline.Decimal)
	}
	return m
}

// Equal compares two sets by value.
func (cs ConditionSet) Equal(o ConditionSet) bool {
	return decimalPtrEqual(cs.CrossesAbove, o.CrossesAbove) &&
		decimalPtrEqual(cs.CrossesBelow, o.CrossesBelow) &&
		percentEqual(cs.PercentDrop, o.PercentDrop) &&
		percentEqual(cs.PercentRise, o.PercentRise) &&
		rangeEqual(cs.PriceInRange, o.PriceInRange) &&
		timePtrEqual(cs.TimeAfter, o.TimeAfter) &&
		decimalPtrEqual(cs.PercentChange, o.PercentChange)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func percentEqual(a, b *PercentCondition) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Baseline.Valid != b.Baseline.Valid {
		return false
	}
	return a.Percent.Equal(b.Percent) && (!a.Baseline.Valid || a.Baseline.Decimal.Equal(b.Baseline.Decimal))
}

func rangeEqual(a, b *PriceRange) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Low.Equal(b.Low) && a.High.Equal(b.High)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func priceValue(key string, v any, field string) (decimal.Decimal, error) {
	if obj, ok := v.(map[string]any); ok {
		inner, ok := obj[field]
		if !ok || inner == nil {
			return decimal.Decimal{}, invalid(key, "missing %q", field)
		}
		return positiveDecimal(key+"."+field, inner)
	}
	return positiveDecimal(key, v)
}

func percentField(key string, v any, field string) (decimal.Decimal, error) {
	if obj, ok := v.(map[string]any); ok {
		inner, ok := obj[field]
		if !ok || inner == nil {
			return decimal.Decimal{}, invalid(key, "missing %q", field)
		}
		return percentValue(key+"."+field, inner)
	}
	return percentValue(key, v)
}

func percentCondition(key string, v any) (*PercentCondition, error) {
	p, err := percentField(key, v, "percent")
	if err != nil {
		return nil, err
	}
	pc := &PercentCondition{Percent: p}
	if obj, ok := v.(map[string]any); ok {
		if b, ok := obj["baseline"]; ok && b != nil {
			base, err := positiveDecimal(key+".baseline", b)
			if err != nil {
				return nil, err
			}
			pc.Baseline = decimal.NewNullDecimal(base)
		}
	}
	return pc, nil
}

func priceRange(key string, v any) (*PriceRange, error) {
	var lowRaw, highRaw any
	switch val := v.(type) {
	case map[string]any:
		lowRaw, highRaw = firstOf(val, "low", "min"), firstOf(val, "high", "max")
	case []any:
		if len(val) != 2 {
			return nil, invalid(key, "expected [low, high]")
		}
		lowRaw, highRaw = val[0], val[1]
	default:
		return nil, invalid(key, "expected an object with low and high, got %T", v)
	}
	if lowRaw == nil {
		return nil, invalid(key, "missing %q", "low")
	}
	if highRaw == nil {
		return nil, invalid(key, "missing %q", "high")
	}
	low, err := positiveDecimal(key+".low", lowRaw)
	if err != nil {
		return nil, err
	}
	high, err := positiveDecimal(key+".high", highRaw)
	if err != nil {
		return nil, err
	}
	if !low.LessThan(high) {
		return nil, invalid(key, "low %s must be below high %s", low, high)
	}
	return &PriceRange{Low: low, High: high}, nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func targetTime(key string, v any, createdAt time.Time) (time.Time, error) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, createdAt.Location()); err == nil {
				return t, nil
			}
		}
		d, err := parseDuration(s)
		if err != nil {
			return time.Time{}, invalid(key, "%v", err)
		}
		return createdAt.Add(d), nil
	case map[string]any:
		if date, ok := val["date"]; ok && date != nil {
			s, ok := date.(string)
			if !ok {
				return time.Time{}, invalid(key+".date", "expected a date string, got %T", date)
			}
			return targetTime(key+".date", s, createdAt)
		}
		if dur, ok := val["duration"]; ok && dur != nil {
			return targetTime(key+".duration", dur, createdAt)
		}
		if days, ok := val["days"]; ok && days != nil {
			return targetTime(key+".days", days, createdAt)
		}
		return time.Time{}, invalid(key, "expected days, duration or date")
	default:
		days, err := toDecimal(key, v)
		if err != nil {
			return time.Time{}, err
		}
		if !days.IsPositive() {
			return time.Time{}, invalid(key, "days must be positive")
		}
		d, err := scaleDuration(days.InexactFloat64(), day)
		if err != nil {
			return time.Time{}, invalid(key, "%v", err)
		}
		return createdAt.Add(d), nil
	}
}

var durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

const day = 24 * time.Hour

var durationUnits = map[string]time.Duration{
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": 7 * day, "wk": 7 * day, "week": 7 * day, "weeks": 7 * day,
	"mo": 30 * day, "mon": 30 * day, "month": 30 * day, "months": 30 * day,
	"y": 365 * day, "yr": 365 * day, "year": 365 * day, "years": 365 * day,
}

var errDurationTooLong = errors.New("duration is too far in the future")

// parseDuration accepts "90d", "3 months", "2w" style durations as well as Go durations.
func parseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	d, err := unitDuration(s)
	if errors.Is(err, errDurationTooLong) {
		return 0, err
	}
	if err != nil {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("unrecognized date or duration %q", s)
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return d, nil
}

func unitDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.New("no unit match")
	}
	unit, ok := durationUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", m[2])
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	return scaleDuration(n, unit)
}

// scaleDuration returns n units, refusing results time.Duration cannot hold.
func scaleDuration(n float64, unit time.Duration) (time.Duration, error) {
	v := n * float64(unit)
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 {
		return 0, errDurationTooLong
	}
	return time.Duration(v), nil
}

func positiveDecimal(key string, v any) (decimal.Decimal, error) {
	d, err := toDecimal(key, v)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return d, invalid(key, "must be positive, got %s", d)
	}
	return d, nil
}

func percentValue(key string, v any) (decimal.Decimal, error) {
	d, err := toDecimal(key, v)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() || d.GreaterThan(hundred) {
		return d, invalid(key, "percent must be in (0, 100], got %s", d)
	}
	return d, nil
}

// thousandsRe matches numbers whose commas only group thousands.
var thousandsRe = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// toDecimal accepts the numeric shapes JSON decoders and LLMs produce.
func toDecimal(key string, v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, invalid(key, "must be finite")
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return toDecimal(key, float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return toDecimal(key, string(n))
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.TrimSpace(s)
		if strings.Contains(s, ",") {
			if !thousandsRe.MatchString(s) {
				return decimal.Decimal{}, invalid(key, "not a number: %q", n)
			}
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, invalid(key, "not a number: %q", n)
		}
		return d, nil
	}
	return decimal.Decimal{}, invalid(key, "expected a number, got %T", v)
}
