// Package engine runs compatibility checks of a candidate schema against the
// registered history of its subject.
//
// The engine selects which prior versions to compare against based on the
// compatibility mode, dispatches each pairwise comparison to the checker for the
// schema's format, and aggregates the violations into a single result. Pairwise
// results are memoized in a cache keyed by content hash, so repeated checks of the
// same candidate are cheap and concurrent checks of one pair run the checker once.
//
// Example:
//
//	e, err := engine.New(engine.DefaultConfig(), engine.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	result, err := e.Check(ctx, candidate, compatibility.CompatibilityModeBackward, store)
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/schemacompat/pkg/cache"
	"github.com/platinummonkey/schemacompat/pkg/checkers"
	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/observability"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

var engineTracer = otel.Tracer(observability.TracerName)

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records check metrics into m. A cache built by New reports into the
// same metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCache makes the engine use c instead of building its own cache, so several
// engines can share one matrix. It takes precedence over Config.CacheEnabled.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// Engine checks candidate schemas against their history. It is safe for concurrent
// use.
type Engine struct {
	config  Config
	cache   *cache.Cache
	logger  *observability.Logger
	metrics *observability.Metrics
	flight  singleflight.Group
}

// New creates an engine
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		config: cfg,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil && cfg.CacheEnabled {
		c, err := cache.New(cfg.Cache, cache.WithMetrics(e.metrics))
		if err != nil {
			return nil, fmt.Errorf("failed to create compatibility cache: %w", err)
		}
		e.cache = c
	}

	return e, nil
}

// Check decides whether candidate may be registered under mode, given the versions
// history returns for the candidate's subject.
//
// A nil error means the check ran; the verdict is Result.Compatible. Errors are
// reserved for invalid input (ErrInvalidMode, ErrNilSchema, a format mismatch),
// checker failures and an unavailable history (ErrHistoryUnavailable).
func (e *Engine) Check(ctx context.Context, candidate *schema.Document, mode compatibility.CompatibilityMode, history HistoryProvider) (*compatibility.Result, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if candidate == nil {
		return nil, ErrNilSchema
	}

	start := time.Now()
	checkID := uuid.NewString()

	ctx, span := engineTracer.Start(ctx, "compatibility.Check",
		trace.WithAttributes(
			attribute.String("check.id", checkID),
			attribute.String("schema.subject", candidate.Subject()),
			attribute.String("schema.version", candidate.Version().String()),
			attribute.String("schema.format", candidate.Format().String()),
			attribute.String("compatibility.mode", mode.String()),
		),
	)
	defer span.End()

	ctx = observability.WithCheckID(ctx, checkID)
	ctx = observability.WithSubject(ctx, candidate.Subject())
	logger := observability.UpdateLoggerWithTraceContext(ctx, e.logger.WithFields(map[string]interface{}{
		"check_id": checkID,
		"subject":  candidate.Subject(),
		"version":  candidate.Version().String(),
		"mode":     mode.String(),
	}))

	result, err := e.check(ctx, logger, candidate, mode, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compatibility check failed")
		e.metrics.RecordCheckError(mode.String())
		logger.WithError(err).Warn("compatibility check failed")
		return nil, err
	}
	result = result.WithDuration(time.Since(start))

	span.SetAttributes(
		attribute.Bool("compatibility.compatible", result.Compatible),
		attribute.Int("compatibility.violations", len(result.Violations)),
		attribute.Int("compatibility.compared_versions", len(result.ComparedVersions)),
		attribute.Int("compatibility.skipped_versions", result.SkippedVersions),
	)
	span.SetStatus(codes.Ok, fmt.Sprintf("compared %d versions", len(result.ComparedVersions)))

	e.metrics.RecordCheck(mode.String(), result.Compatible, result.Duration)
	for _, v := range result.Violations {
		e.metrics.RecordViolation(string(v.Kind), v.Severity.String())
	}

	fields := map[string]interface{}{
		"compatible":  result.Compatible,
		"violations":  len(result.Violations),
		"compared":    len(result.ComparedVersions),
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Compatible {
		logger.WithFields(fields).Debug("compatibility check passed")
	} else {
		logger.WithFields(fields).Info("compatibility check rejected candidate")
	}

	return result, nil
}

// CheckPair compares candidate against a single previous version under mode. The
// transitive flag of mode has no effect with a single version.
func (e *Engine) CheckPair(ctx context.Context, candidate, previous *schema.Document, mode compatibility.CompatibilityMode) (*compatibility.Result, error) {
	if candidate == nil || previous == nil {
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
		}
		return nil, ErrNilSchema
	}
	return e.Check(ctx, candidate, mode, StaticHistory{previous})
}

// Invalidate drops every cached pairwise result involving subject and returns how
// many entries were removed. It is safe to call for subjects with nothing cached.
func (e *Engine) Invalidate(subject string) int {
	if e.cache == nil {
		return 0
	}
	n := e.cache.Invalidate(subject)
	if n > 0 {
		e.logger.WithFields(map[string]interface{}{
			"subject": subject,
			"removed": n,
		}).Debug("invalidated cached compatibility results")
	}
	return n
}

// CacheStats returns a snapshot of the cache counters, or zero stats when caching
// is disabled.
func (e *Engine) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

func (e *Engine) check(ctx context.Context, logger *observability.Logger, candidate *schema.Document, mode compatibility.CompatibilityMode, history HistoryProvider) (*compatibility.Result, error) {
	if mode == compatibility.CompatibilityModeNone {
		return compatibility.CompatibleResult(mode, nil, 0), nil
	}
	if history == nil {
		e.metrics.RecordHistoryError()
		return nil, fmt.Errorf("%w: no history provider", ErrHistoryUnavailable)
	}

	docs, err := history.History(ctx, candidate.Subject())
	if err != nil {
		e.metrics.RecordHistoryError()
		return nil, fmt.Errorf("%w: subject %s: %w", ErrHistoryUnavailable, candidate.Subject(), err)
	}

	targets, skipped := e.targets(docs, mode)
	if skipped > 0 {
		logger.WithFields(map[string]interface{}{
			"skipped": skipped,
			"limit":   e.config.MaxTransitiveVersions,
		}).Warn("transitive history exceeds limit, oldest versions not checked")
		e.metrics.RecordHistoryTruncation()
	}

	base := mode.Base()
	var violations []compatibility.Violation
	compared := make([]schema.SemanticVersion, 0, len(targets))
	for _, previous := range targets {
		vs, err := e.pairwise(candidate, previous, base)
		if err != nil {
			return nil, err
		}
		violations = append(violations, stamp(vs, previous.Version())...)
		compared = append(compared, previous.Version())
	}

	return compatibility.NewResult(mode, violations, compared, 0).WithSkipped(skipped), nil
}

// targets orders the history by version and selects the versions mode compares
// against: the latest for non-transitive modes, all of them (up to the cap)
// otherwise. It also returns how many versions the cap dropped.
func (e *Engine) targets(docs []*schema.Document, mode compatibility.CompatibilityMode) ([]*schema.Document, int) {
	prior := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			prior = append(prior, d)
		}
	}
	if len(prior) == 0 {
		return nil, 0
	}
	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].Version().Less(prior[j].Version())
	})

	if !mode.IsTransitive() {
		return prior[len(prior)-1:], 0
	}
	if n := len(prior) - e.config.MaxTransitiveVersions; n > 0 {
		return prior[n:], n
	}
	return prior, 0
}

// pairwise returns the violations between candidate and one previous version under
// a base mode. Identical content short-circuits; otherwise the cache is consulted
// before the format checker runs.
func (e *Engine) pairwise(candidate, previous *schema.Document, base compatibility.CompatibilityMode) ([]compatibility.Violation, error) {
	if candidate.Format() != previous.Format() {
		return nil, &schema.FormatMismatchError{
			Expected: candidate.Format(),
			Actual:   previous.Format(),
			Subject:  previous.Subject(),
			Version:  previous.Version().String(),
		}
	}
	format := candidate.Format().String()

	if candidate.Hash() == previous.Hash() {
		e.metrics.RecordPairwise(format, observability.SourceFastPath)
		return nil, nil
	}

	if e.cache == nil {
		vs, err := runChecker(candidate, previous, base)
		if err != nil {
			return nil, err
		}
		e.metrics.RecordPairwise(format, observability.SourceChecker)
		return vs, nil
	}

	key := cache.NewKey(candidate, previous, base)
	if cached, ok := e.cache.Get(key); ok {
		e.metrics.RecordPairwise(format, observability.SourceCache)
		return cached.Violations, nil
	}

	flightKey := fmt.Sprintf("%s:%s:%s", candidate.Hash(), previous.Hash(), base)
	v, err, _ := e.flight.Do(flightKey, func() (interface{}, error) {
		start := time.Now()
		vs, err := runChecker(candidate, previous, base)
		if err != nil {
			return nil, err
		}
		result := compatibility.NewResult(base, vs, []schema.SemanticVersion{previous.Version()}, time.Since(start))
		if err := e.cache.Put(key, subjectsOf(candidate, previous), result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordPairwise(format, observability.SourceChecker)
	return v.(*compatibility.Result).Violations, nil
}

func runChecker(candidate, previous *schema.Document, base compatibility.CompatibilityMode) ([]compatibility.Violation, error) {
	checker, err := checkers.For(candidate.Format())
	if err != nil {
		return nil, err
	}
	vs, err := checkers.Check(checker, candidate, previous, base)
	if err != nil {
		return nil, fmt.Errorf("checking %s against version %s: %w", candidate.ID(), previous.Version(), err)
	}
	return vs, nil
}

// stamp copies vs, recording the version they were found against. Cached slices
// are shared and never modified.
func stamp(vs []compatibility.Violation, version schema.SemanticVersion) []compatibility.Violation {
	if len(vs) == 0 {
		return nil
	}
	out := make([]compatibility.Violation, len(vs))
	copy(out, vs)
	for i := range out {
		out[i].Version = version.String()
	}
	return out
}

// subjectsOf lists the subjects a cached pair depends on, so invalidating any of
// them drops the entry.
func subjectsOf(docs ...*schema.Document) []string {
	var subjects []string
	for _, d := range docs {
		subjects = append(subjects, d.Subject())
		for _, ref := range d.References() {
			if ref.Subject != "" {
				subjects = append(subjects, ref.Subject)
			}
		}
	}
	return subjects
}
