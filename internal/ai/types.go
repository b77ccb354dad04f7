package ai

import (
	"context"

	"github.com/camuig/stock-watch/internal/rules"
)

// Extractor turns free-form note text into a loosely-typed candidate.
// Implementations wrap every failure with rules.ExtractionError.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*rules.Candidate, error)
}
