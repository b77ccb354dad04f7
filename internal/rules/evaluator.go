package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type VerdictKind int

const (
	VerdictPending VerdictKind = iota
	VerdictSatisfied
	VerdictUnevaluable
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictSatisfied:
		return "satisfied"
	case VerdictUnevaluable:
		return "unevaluable"
	default:
		return "pending"
	}
}

// Verdict is the outcome of evaluating a condition set. Reason is set for
// satisfied verdicts, Cause for unevaluable ones.
type Verdict struct {
	Kind   VerdictKind
	Reason string
	Cause  string
}

func Satisfied(reason string) Verdict {
	return Verdict{Kind: VerdictSatisfied, Reason: reason}
}

func Pending() Verdict {
	return Verdict{Kind: VerdictPending}
}

func Unevaluable(cause string) Verdict {
	return Verdict{Kind: VerdictUnevaluable, Cause: cause}
}

func (v Verdict) IsSatisfied() bool {
	return v.Kind == VerdictSatisfied
}

func (v Verdict) IsUnevaluable() bool {
	return v.Kind == VerdictUnevaluable
}

type state int

const (
	stateFalse state = iota
	stateTrue
	stateUnknown
)

type outcome struct {
	state state
	text  string // reason when true, cause when unknown
}

func holds(ok bool, reason string) outcome {
	if ok {
		return outcome{state: stateTrue, text: reason}
	}
	return outcome{state: stateFalse}
}

func unknown(format string, args ...any) outcome {
	return outcome{state: stateUnknown, text: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether cs holds for the given quote and note. It never
// reads the clock; time comes from quote.Now.
//
// Any false condition yields Pending. Otherwise at least one true condition
// yields Satisfied, and a set with nothing evaluable yields Unevaluable.
func Evaluate(cs ConditionSet, quote QuoteContext, note Note) Verdict {
	kinds := cs.Kinds()
	if len(kinds) == 0 {
		return Unevaluable("note has no conditions")
	}

	var reasons, causes []string
	for _, kind := range kinds {
		o := evaluateOne(kind, cs, quote, note)
		switch o.state {
		case stateFalse:
			return Pending()
		case stateTrue:
			reasons = append(reasons, o.text)
		case stateUnknown:
			causes = append(causes, o.text)
		}
	}

	if len(reasons) == 0 {
		return Unevaluable(strings.Join(causes, "; "))
	}
	return Satisfied(strings.Join(reasons, "; "))
}

func evaluateOne(kind Kind, cs ConditionSet, q QuoteContext, note Note) outcome {
	if kind == KindTimeAfter {
		target := *cs.TimeAfter
		return holds(!q.Now.Before(target), fmt.Sprintf("Time reached %s", target.Format("2006-01-02 15:04")))
	}

	if !q.HasPrice() {
		return unknown("%s: %v", kind, q.Err)
	}
	price := q.Price

	switch kind {
	case KindCrossesAbove:
		t := *cs.CrossesAbove
		return holds(price.GreaterThanOrEqual(t), fmt.Sprintf("Price crossed above %s", money(t)))

	case KindCrossesBelow:
		t := *cs.CrossesBelow
		return holds(price.LessThanOrEqual(t), fmt.Sprintf("Price fell below %s", money(t)))

	case KindPriceInRange:
		r := cs.PriceInRange
		in := price.GreaterThanOrEqual(r.Low) && price.LessThanOrEqual(r.High)
		return holds(in, fmt.Sprintf("Price is between %s and %s", money(r.Low), money(r.High)))

	case KindPercentDrop:
		base, ok := baseline(cs.PercentDrop, note)
		if !ok {
			return unknown("%s: no baseline price", kind)
		}
		target := base.Mul(hundred.Sub(cs.PercentDrop.Percent)).Div(hundred)
		return holds(price.LessThanOrEqual(target),
			fmt.Sprintf("Price dropped %s%% from %s", pct(changePct(base, price).Neg()), money(base)))

	case KindPercentRise:
		base, ok := baseline(cs.PercentRise, note)
		if !ok {
			return unknown("%s: no baseline price", kind)
		}
		target := base.Mul(hundred.Add(cs.PercentRise.Percent)).Div(hundred)
		return holds(price.GreaterThanOrEqual(target),
			fmt.Sprintf("Price rose %s%% from %s", pct(changePct(base, price)), money(base)))

	case KindPercentChange:
		if !q.Reference.Valid {
			return unknown("%s: no reference price", kind)
		}
		change := changePct(q.Reference.Decimal, price)
		direction := "up"
		if change.IsNegative() {
			direction = "down"
		}
		return holds(change.Abs().GreaterThanOrEqual(*cs.PercentChange),
			fmt.Sprintf("Price moved %s%% %s from reference %s", pct(change.Abs()), direction, money(q.Reference.Decimal)))
	}

	return unknown("%s: unsupported condition", kind)
}

// baseline resolves the reference price of a percent condition: explicit
// baseline first, then the note's buy price.
func baseline(pc *PercentCondition, note Note) (decimal.Decimal, bool) {
	if pc.Baseline.Valid {
		return pc.Baseline.Decimal, true
	}
	if note.BuyPrice.Valid {
		return note.BuyPrice.Decimal, true
	}
	return decimal.Decimal{}, false
}

func changePct(from, to decimal.Decimal) decimal.Decimal {
	return to.Sub(from).Div(from).Mul(hundred)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(2)
}
