// Package cache memoizes pairwise compatibility results keyed by content hash.
//
// The cache is a set of independently locked LRU shards. Expiry is checked lazily on
// Get and capacity eviction happens inside Put, so the cache never starts goroutines.
// Each shard indexes its keys by subject so that a registration can drop every entry
// involving the subject it touched.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/observability"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithMetrics records hits, misses, evictions and size to metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache is a sharded, TTL-bounded LRU of pairwise compatibility results. It is safe
// for concurrent use.
type Cache struct {
	config  Config
	shards  []*shard
	now     func() time.Time
	metrics *observability.Metrics
	stats   counters
	size    atomic.Int64
}

type shard struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[Key, *Entry]
	bySubject map[string]map[Key]struct{}
	// reason labels removals triggered while mu is held; capacity eviction is the default.
	reason string
}

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	invalidations atomic.Int64
}

// Stats is a point-in-time snapshot of cache activity
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
	Size          int     `json:"size"`
}

// New creates a cache from cfg
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	n, perShard := cfg.shardLayout()
	c.shards = make([]*shard, n)
	for i := range c.shards {
		s := &shard{
			bySubject: make(map[string]map[Key]struct{}),
			reason:    observability.EvictionCapacity,
		}
		lru, err := simplelru.NewLRU[Key, *Entry](perShard, c.onEvict(s))
		if err != nil {
			return nil, fmt.Errorf("failed to create cache shard: %w", err)
		}
		s.lru = lru
		c.shards[i] = s
	}

	return c, nil
}

// onEvict keeps the subject index and counters in step with the LRU. It runs with
// the shard lock held.
func (c *Cache) onEvict(s *shard) simplelru.EvictCallback[Key, *Entry] {
	return func(key Key, entry *Entry) {
		s.unindex(entry)
		c.size.Add(-1)

		switch s.reason {
		case observability.EvictionCapacity:
			c.stats.evictions.Add(1)
		case observability.EvictionExpired:
			c.stats.expirations.Add(1)
		case observability.EvictionInvalidate:
			c.stats.invalidations.Add(1)
		}
		c.metrics.RecordCacheEviction(s.reason, 1)
	}
}

func (c *Cache) shardFor(key Key) *shard {
	return c.shards[key.shard(len(c.shards))]
}

// Get returns the cached result for key. Expired entries are removed and reported
// as misses.
func (c *Cache) Get(key Key) (*compatibility.Result, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	entry, ok := s.lru.Get(key)
	if ok && entry.Expired(c.now()) {
		s.remove(key, observability.EvictionExpired)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		c.stats.misses.Add(1)
		c.metrics.RecordCacheMiss()
		c.publishSize()
		return nil, false
	}

	c.stats.hits.Add(1)
	c.metrics.RecordCacheHit()
	return entry.Result, true
}

// Put stores result for key, replacing any previous entry. subjects lists the
// subjects whose registrations should invalidate the entry.
func (c *Cache) Put(key Key, subjects []string, result *compatibility.Result) error {
	if result == nil {
		return ErrNilResult
	}

	entry := &Entry{
		Key:        key,
		Result:     result,
		Subjects:   dedupe(subjects),
		InsertedAt: c.now(),
		TTL:        c.config.TTL,
	}

	s := c.shardFor(key)
	s.mu.Lock()
	if old, ok := s.lru.Peek(key); ok {
		// Add replaces in place without firing the eviction callback.
		s.unindex(old)
	} else {
		c.size.Add(1)
	}
	s.lru.Add(key, entry)
	s.index(entry)
	s.mu.Unlock()

	c.publishSize()
	return nil
}

// Invalidate drops every entry registered under subject and returns how many were
// removed. Invalidating an unknown subject is a no-op.
func (c *Cache) Invalidate(subject string) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		keys := s.bySubject[subject]
		if len(keys) > 0 {
			pending := make([]Key, 0, len(keys))
			for k := range keys {
				pending = append(pending, k)
			}
			for _, k := range pending {
				if s.remove(k, observability.EvictionInvalidate) {
					removed++
				}
			}
		}
		s.mu.Unlock()
	}

	c.publishSize()
	return removed
}

// InvalidateHash drops every entry whose key involves the document hash h.
func (c *Cache) InvalidateHash(h schema.Hash) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for _, k := range s.lru.Keys() {
			if k.references(h) && s.remove(k, observability.EvictionInvalidate) {
				removed++
			}
		}
		s.mu.Unlock()
	}

	c.publishSize()
	return removed
}

// Purge empties the cache. Purged entries count as invalidations.
func (c *Cache) Purge() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.reason = observability.EvictionInvalidate
		s.lru.Purge()
		s.reason = observability.EvictionCapacity
		s.mu.Unlock()
	}
	c.publishSize()
}

// Len returns the number of entries, including expired ones not yet collected.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	stats := Stats{
		Hits:          c.stats.hits.Load(),
		Misses:        c.stats.misses.Load(),
		Evictions:     c.stats.evictions.Load(),
		Expirations:   c.stats.expirations.Load(),
		Invalidations: c.stats.invalidations.Load(),
		Size:          c.Len(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

func (c *Cache) publishSize() {
	c.metrics.SetCacheEntries(c.Len())
}

// remove deletes key with the given eviction reason. The shard lock must be held.
func (s *shard) remove(key Key, reason string) bool {
	s.reason = reason
	ok := s.lru.Remove(key)
	s.reason = observability.EvictionCapacity
	return ok
}

func (s *shard) index(e *Entry) {
	for _, subject := range e.Subjects {
		keys, ok := s.bySubject[subject]
		if !ok {
			keys = make(map[Key]struct{})
			s.bySubject[subject] = keys
		}
		keys[e.Key] = struct{}{}
	}
}

func (s *shard) unindex(e *Entry) {
	for _, subject := range e.Subjects {
		keys := s.bySubject[subject]
		delete(keys, e.Key)
		if len(keys) == 0 {
			delete(s.bySubject, subject)
		}
	}
}

func dedupe(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
