package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/camuig/stock-watch/internal/rules"
)

var (
	thinkTagRegex      = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRegex     = regexp.MustCompile("```(?:json|JSON)?")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// StripThinkTags removes DeepSeek R1 reasoning tags from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// ParseCandidate parses a model response into a candidate.
// Handles: reasoning tags, markdown code fences, prose around the object,
// trailing commas.
func ParseCandidate(text string) (*rules.Candidate, error) {
	cleaned := StripThinkTags(text)
	cleaned = strings.TrimSpace(codeFenceRegex.ReplaceAllString(cleaned, ""))

	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	// Cut the outermost object out of any surrounding text
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %.200s", cleaned)
	}
	cleaned = cleaned[start : end+1]
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response as JSON: %w: %.200s", err, cleaned)
	}

	return candidateFromMap(raw)
}

// candidateFromMap keeps whatever scalar fields have a usable shape and drops
// the rest. Conditions of the wrong shape are rejected; deeper validation
// happens when the note is built.
func candidateFromMap(raw map[string]any) (*rules.Candidate, error) {
	c := &rules.Candidate{
		Symbol:      optString(raw["symbol"]),
		ActionType:  optString(raw["action_type"]),
		BuyPrice:    raw["buy_price"],
		UserOpinion: optString(raw["user_opinion"]),
	}
	switch conds := raw["conditions"].(type) {
	case nil:
	case map[string]any:
		c.Conditions = conds
	default:
		return nil, &rules.ValidationError{
			Field:   "conditions",
			Message: fmt.Sprintf("expected an object, got %T", conds),
		}
	}
	return c, nil
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}
