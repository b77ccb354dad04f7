package ai

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You are a stock monitoring assistant. You extract structured data from short notes
that a private investor writes about stocks. Always answer with a single valid JSON object and nothing else.`

const extractionRules = `Return ONLY a JSON object with this structure:
{
  "symbol": "TICKER" or null,
  "action_type": "buy" | "hold" | "watch" | "sell" | "review" | "unknown" or null,
  "buy_price": number or null,
  "conditions": {
    "crosses_above": number or null,
    "crosses_below": number or null,
    "percent_drop": {"percent": number, "baseline": number or null} or null,
    "percent_rise": {"percent": number, "baseline": number or null} or null,
    "price_in_range": {"low": number, "high": number} or null,
    "percent_change": number or null,
    "time_after": "90d" | "2w" | "6 months" | "YYYY-MM-DD" or null
  },
  "user_opinion": "string" or null
}

Rules:
1. Normalize company names to uppercase tickers ("nvidia" -> "NVDA", "Apple" -> "AAPL", "Сбер" -> "SBER").
2. buy_price is the price the user paid, only if mentioned.
3. Map phrases to conditions:
   - "crosses 200$", "above 200" -> crosses_above: 200
   - "goes below 65$", "stop at 65" -> crosses_below: 65
   - "between 300 and 310" -> price_in_range: {"low": 300, "high": 310}
   - "falls more than 15%" -> percent_drop: {"percent": 15}
   - "10% above my buy price", "rises 20%" -> percent_rise: {"percent": 10}
   - "15% below 120" -> percent_drop: {"percent": 15, "baseline": 120}
   - "moves 5% in a day" -> percent_change: 5
   - "in 3 months" -> time_after: "3 months"; "after a month" -> time_after: "30d"; "on June 1" -> time_after: "YYYY-06-01"
4. Percentages relative to the buy price go into percent_rise or percent_drop, never into crosses_above or crosses_below.
5. Use null for anything the text does not state. No empty strings, no empty objects.
6. No markdown, no comments, no text outside the JSON object.`

// BuildUserPrompt wraps the note text together with today's date so that
// absolute dates can be resolved.
func BuildUserPrompt(rawText string, today time.Time) string {
	var sb strings.Builder
	sb.WriteString(extractionRules)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Today is %s.\n", today.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("User text: %q\n\n", rawText))
	sb.WriteString("JSON:")
	return sb.String()
}
