package cache

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration cannot back a cache
	ErrInvalidConfig = errors.New("invalid cache config")

	// ErrNilResult is returned by Put when there is nothing to store
	ErrNilResult = errors.New("cannot cache a nil result")
)
