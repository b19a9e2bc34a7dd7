package engine

import (
	"context"

	"github.com/platinummonkey/schemacompat/pkg/async"
	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Request is one check in a batch.
type Request struct {
	Candidate *schema.Document
	Mode      compatibility.CompatibilityMode
	History   HistoryProvider
}

// Response is the outcome of one Request. Exactly one of Result and Err is set.
type Response struct {
	Result *compatibility.Result
	Err    error
}

// CheckBatch runs the requests with at most Config.Concurrency checks in flight and
// returns the responses in request order. A failing request does not affect the
// others.
func (e *Engine) CheckBatch(ctx context.Context, requests []Request) []Response {
	results, errs := async.Map(ctx, requests, e.config.Concurrency, "compatibility batch check",
		e.config.BatchTimeout, e.logger,
		func(ctx context.Context, req Request) (*compatibility.Result, error) {
			return e.Check(ctx, req.Candidate, req.Mode, req.History)
		})

	responses := make([]Response, len(requests))
	for i := range requests {
		if errs[i] != nil {
			responses[i] = Response{Err: errs[i]}
			continue
		}
		responses[i] = Response{Result: results[i]}
	}
	return responses
}
