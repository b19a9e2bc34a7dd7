// Package async provides bounded, panic-safe fan-out for batch compatibility checks.
//
// Run executes one task with timeout enforcement and converts panics into errors.
// Map applies a function to a slice with a worker limit and returns results and
// errors aligned with the input:
//
//	results, errs := async.Map(ctx, requests, 8, "batch check", 0, logger, check)
package async
