package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// RedisConfig holds connection settings for a Redis history store.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
	// KeyPrefix namespaces every key the store writes. Defaults to "schemacompat".
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore keeps one hash per subject, mapping version to a JSON encoded Record,
// plus a set of known subjects.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "schemacompat"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

func (s *RedisStore) subjectKey(subject string) string {
	return fmt.Sprintf("%s:subject:%s", s.prefix, subject)
}

func (s *RedisStore) subjectsKey() string {
	return s.prefix + ":subjects"
}

// Register implements Store.
func (s *RedisStore) Register(ctx context.Context, doc *schema.Document) error {
	rec, err := RecordOf(doc)
	if err != nil {
		return err
	}
	key, err := versionKey(rec.Version)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	added, err := s.client.HSetNX(ctx, s.subjectKey(rec.Subject), key, data).Result()
	if err != nil {
		return fmt.Errorf("redis hsetnx failed: %w", err)
	}
	if !added {
		return fmt.Errorf("%w: %s@%s", ErrVersionExists, rec.Subject, rec.Version)
	}
	if err := s.client.SAdd(ctx, s.subjectsKey(), rec.Subject).Err(); err != nil {
		return fmt.Errorf("redis sadd failed: %w", err)
	}
	return nil
}

// History implements engine.HistoryProvider. An unknown subject has an empty history.
func (s *RedisStore) History(ctx context.Context, subject string) ([]*schema.Document, error) {
	entries, err := s.client.HGetAll(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for version, data := range entries {
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s@%s: %w", subject, version, err)
		}
		records = append(records, rec)
	}
	return documents(records)
}

// Subjects implements Store.
func (s *RedisStore) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.client.SMembers(ctx, s.subjectsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Client returns the underlying client, for health probes.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
