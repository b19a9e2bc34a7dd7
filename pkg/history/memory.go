package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// MemoryStore keeps schema versions in process.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subjects: make(map[string]map[string]Record)}
}

// Register implements Store.
func (s *MemoryStore) Register(_ context.Context, doc *schema.Document) error {
	rec, err := RecordOf(doc)
	if err != nil {
		return err
	}
	key, err := versionKey(rec.Version)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.subjects[rec.Subject]
	if !ok {
		versions = make(map[string]Record)
		s.subjects[rec.Subject] = versions
	}
	if _, exists := versions[key]; exists {
		return fmt.Errorf("%w: %s@%s", ErrVersionExists, rec.Subject, rec.Version)
	}
	versions[key] = rec
	return nil
}

// History implements engine.HistoryProvider. An unknown subject has an empty history.
func (s *MemoryStore) History(_ context.Context, subject string) ([]*schema.Document, error) {
	s.mu.RLock()
	records := make([]Record, 0, len(s.subjects[subject]))
	for _, rec := range s.subjects[subject] {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	return documents(records)
}

// Subjects implements Store.
func (s *MemoryStore) Subjects(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make([]string, 0, len(s.subjects))
	for subject := range s.subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
