package engine

import (
	"fmt"
	"runtime"
	"time"

	"github.com/platinummonkey/schemacompat/pkg/cache"
)

const (
	// DefaultMaxTransitiveVersions bounds how many prior versions a transitive check
	// compares against.
	DefaultMaxTransitiveVersions = 100
)

// Config holds engine settings
type Config struct {
	// MaxTransitiveVersions keeps only the most recent prior versions in transitive
	// modes. Older ones are reported through Result.SkippedVersions.
	MaxTransitiveVersions int
	// CacheEnabled turns the pairwise matrix cache on.
	CacheEnabled bool
	Cache        cache.Config
	// Concurrency bounds the checks CheckBatch runs at once.
	Concurrency int
	// BatchTimeout bounds each check started by CheckBatch. Zero means no bound.
	BatchTimeout time.Duration
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxTransitiveVersions: DefaultMaxTransitiveVersions,
		CacheEnabled:          true,
		Cache:                 cache.DefaultConfig(),
		Concurrency:           runtime.GOMAXPROCS(0),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxTransitiveVersions <= 0 {
		return fmt.Errorf("max transitive versions must be positive, got %d", c.MaxTransitiveVersions)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch timeout must not be negative, got %s", c.BatchTimeout)
	}
	if c.CacheEnabled {
		if err := c.Cache.Validate(); err != nil {
			return err
		}
	}
	return nil
}
