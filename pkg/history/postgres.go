package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// PostgresConfig holds connection settings for a PostgreSQL history store.
type PostgresConfig struct {
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	Timeout      time.Duration `yaml:"timeout"`
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
	subject     TEXT NOT NULL,
	version     TEXT NOT NULL,
	version_key TEXT NOT NULL,
	format      TEXT NOT NULL,
	body        TEXT NOT NULL,
	refs        TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (subject, version_key)
)`

// SQLStore persists schema versions in a schema_versions table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database. The table must exist; see Migrate.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenPostgres connects to PostgreSQL, verifies the connection and creates the table
// when missing.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*SQLStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := NewSQLStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the schema_versions table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	return nil
}

// Register implements Store.
func (s *SQLStore) Register(ctx context.Context, doc *schema.Document) error {
	rec, err := RecordOf(doc)
	if err != nil {
		return err
	}
	key, err := versionKey(rec.Version)
	if err != nil {
		return err
	}
	refs, err := json.Marshal(rec.References)
	if err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}

	query := `
		INSERT INTO schema_versions (subject, version, version_key, format, body, refs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject, version_key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.Subject,
		rec.Version,
		key,
		rec.Format.String(),
		rec.Body,
		string(refs),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s@%s", ErrVersionExists, rec.Subject, rec.Version)
	}
	return nil
}

// History implements engine.HistoryProvider.
func (s *SQLStore) History(ctx context.Context, subject string) ([]*schema.Document, error) {
	query := `
		SELECT version, format, body, refs, created_at
		FROM schema_versions
		WHERE subject = $1
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema versions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec    = Record{Subject: subject}
			format string
			refs   string
		)
		if err := rows.Scan(&rec.Version, &format, &rec.Body, &refs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		if rec.Format, err = schema.ParseFormat(format); err != nil {
			return nil, fmt.Errorf("%s@%s: %w", subject, rec.Version, err)
		}
		if refs != "" {
			if err := json.Unmarshal([]byte(refs), &rec.References); err != nil {
				return nil, fmt.Errorf("failed to decode references of %s@%s: %w", subject, rec.Version, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema versions: %w", err)
	}

	return documents(records)
}

// Subjects implements Store.
func (s *SQLStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT subject FROM schema_versions ORDER BY subject")
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// DB returns the underlying database, for health probes.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
