package engine

import (
	"context"
	"fmt"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Explanation is a pairwise check rendered for review.
type Explanation struct {
	Result *compatibility.Result `json:"result"`
	// Report is Result.Report().
	Report string `json:"report"`
	// Diff is a unified diff from previous to candidate over their canonical bodies.
	Diff string `json:"diff"`
}

// Explain checks candidate against previous and pairs the verdict with a textual
// diff of the two documents.
func (e *Engine) Explain(ctx context.Context, candidate, previous *schema.Document, mode compatibility.CompatibilityMode) (*Explanation, error) {
	result, err := e.CheckPair(ctx, candidate, previous, mode)
	if err != nil {
		return nil, err
	}

	diff, err := schema.UnifiedDiff(previous, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schemas: %w", err)
	}

	return &Explanation{
		Result: result,
		Report: result.Report(),
		Diff:   diff,
	}, nil
}
