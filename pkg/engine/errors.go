package engine

import (
	"errors"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
)

var (
	// ErrNilSchema is returned when a check is asked for without a candidate
	ErrNilSchema = errors.New("nil candidate schema")

	// ErrHistoryUnavailable wraps failures of the history provider. Results that hit
	// it are never cached.
	ErrHistoryUnavailable = errors.New("schema history unavailable")

	// ErrInvalidMode is compatibility.ErrInvalidMode, re-exported for callers that only
	// import the engine.
	ErrInvalidMode = compatibility.ErrInvalidMode
)
