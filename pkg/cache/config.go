package cache

import (
	"fmt"
	"time"
)

const (
	DefaultMaxEntries = 10000
	DefaultTTL        = time.Hour
	DefaultShards     = 16
)

// Config holds matrix cache settings
type Config struct {
	// MaxEntries bounds the number of cached pairs, rounded up to a multiple of Shards.
	MaxEntries int `yaml:"max_entries"`
	// TTL is how long an entry stays valid. Zero or negative disables expiry.
	TTL time.Duration `yaml:"ttl"`
	// Shards is the number of independently locked LRU partitions.
	Shards int `yaml:"shards"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries: DefaultMaxEntries,
		TTL:        DefaultTTL,
		Shards:     DefaultShards,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: max entries must be positive, got %d", ErrInvalidConfig, c.MaxEntries)
	}
	if c.Shards < 0 {
		return fmt.Errorf("%w: shards must not be negative, got %d", ErrInvalidConfig, c.Shards)
	}
	return nil
}

// shardLayout returns the shard count and per-shard capacity for c.
func (c Config) shardLayout() (shards, perShard int) {
	shards = c.Shards
	if shards == 0 {
		shards = DefaultShards
	}
	if shards > c.MaxEntries {
		shards = c.MaxEntries
	}
	perShard = (c.MaxEntries + shards - 1) / shards
	return shards, perShard
}
