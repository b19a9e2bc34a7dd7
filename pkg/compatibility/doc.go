// Package compatibility defines the vocabulary of schema compatibility checking:
// modes, violations and results.
//
// # Compatibility Modes
//
// The package supports seven compatibility modes with varying strictness:
//
// NONE: No compatibility checking. Any change is allowed.
//
// BACKWARD: New schema can read data written by the latest prior version.
// Consumers can upgrade before producers.
//
// FORWARD: The latest prior version can read data written by the new schema.
// Producers can upgrade before consumers.
//
// FULL: BACKWARD and FORWARD against the latest prior version. Violations from both
// directions are reported together.
//
// BACKWARD_TRANSITIVE, FORWARD_TRANSITIVE, FULL_TRANSITIVE: the same pairwise check
// repeated against every retained prior version. Base returns the pairwise mode.
//
// # Violations
//
// A Violation carries a ViolationKind from a closed catalogue (FIELD_REMOVED,
// TYPE_CHANGED, REQUIRED_ADDED and so on) or a format-specific kind built with
// Custom, the dotted path of the offending element, optional old and new values and a
// Severity. Only SeverityBreaking violations make a Result incompatible; warnings and
// info entries are advisory.
//
//	v := compatibility.NewViolationBuilder(compatibility.KindRequiredAdded).
//		WithPath("required.email").
//		WithDescription("field %q is required but absent from the writer", "email").
//		Build()
//
// # Results
//
// NewResult derives Compatible from the violations, so a result can never claim
// compatibility while holding a breaking violation. Results are shared by the cache and
// must not be modified; WithDuration returns a copy.
//
// HTTPStatus translates a result or error into the status code an API layer returns:
// 409 for incompatible results, 400 for malformed input.
package compatibility
