package async

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/schemacompat/pkg/observability"
)

// Run executes fn synchronously with:
// - Timeout enforcement (when timeout > 0)
// - Panic recovery, the panic is returned as an *observability.PanicError
// - Error logging
//
// Example:
//
//	err := Run(ctx, 5*time.Second, "pairwise check", logger, func(ctx context.Context) error {
//	    return checker.Check(ctx, pair)
//	})
func Run(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) (err error) {
	ctx := parentCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, timeout)
		defer cancel()
	}

	defer observability.RecoverToError(logger, taskName, &err)

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(ctx); err != nil && logger != nil {
		logger.WithError(err).WithField("task", taskName).Debug("task failed")
	}
	return err
}

// Map runs fn over items with at most workers running at once and returns the
// results and errors in item order. A failing item does not cancel its siblings;
// cancelling ctx stops items that have not started yet.
//
// Example:
//
//	results, errs := Map(ctx, requests, 8, "batch check", 0, logger,
//	    func(ctx context.Context, req Request) (*Result, error) {
//	        return engine.Check(ctx, req.Candidate, req.Mode, req.History)
//	    })
func Map[T, R any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	logger *observability.Logger, fn func(context.Context, T) (R, error)) ([]R, []error) {

	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	g := errgroup.Group{}
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, item := range items {
		g.Go(func() error {
			errs[i] = Run(ctx, timeout, taskName, logger, func(ctx context.Context) error {
				r, err := fn(ctx, item)
				results[i] = r
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// FirstError returns the first non-nil error, or nil.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
