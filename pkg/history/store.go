package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/schemacompat/pkg/engine"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

var (
	// ErrVersionExists is returned when a subject already holds the version being
	// registered. Build metadata is ignored when comparing versions.
	ErrVersionExists = errors.New("schema version already registered")
	// ErrInvalidRecord is returned for a record with no subject or an unparsable version.
	ErrInvalidRecord = errors.New("invalid schema record")
)

// Store persists schema versions per subject.
type Store interface {
	engine.HistoryProvider
	// Register stores doc under its subject and version.
	Register(ctx context.Context, doc *schema.Document) error
	// Subjects lists every subject with at least one version, sorted.
	Subjects(ctx context.Context) ([]string, error)
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Record is the stored form of a schema document.
type Record struct {
	Subject    string             `json:"subject"`
	Version    string             `json:"version"`
	Format     schema.Format      `json:"format"`
	Body       string             `json:"body"`
	References []schema.Reference `json:"references,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// RecordOf converts doc to its stored form.
func RecordOf(doc *schema.Document) (Record, error) {
	if doc == nil {
		return Record{}, fmt.Errorf("%w: nil document", ErrInvalidRecord)
	}
	if doc.Subject() == "" {
		return Record{}, fmt.Errorf("%w: empty subject", ErrInvalidRecord)
	}
	return Record{
		Subject:    doc.Subject(),
		Version:    doc.Version().String(),
		Format:     doc.Format(),
		Body:       doc.Body(),
		References: doc.References(),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Document parses the record back into a schema document.
func (r Record) Document() (*schema.Document, error) {
	return schema.ParseString(r.Format, r.Subject, r.Version, r.Body, schema.WithReferences(r.References...))
}

// versionKey identifies a version within a subject. Build metadata is dropped so that
// 1.0.0+a and 1.0.0+b collide.
func versionKey(version string) (string, error) {
	v, err := schema.ParseVersion(version)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	v.Build = ""
	return v.String(), nil
}

// documents parses records and sorts them oldest first.
func documents(records []Record) ([]*schema.Document, error) {
	docs := make([]*schema.Document, 0, len(records))
	for _, r := range records {
		doc, err := r.Document()
		if err != nil {
			return nil, fmt.Errorf("loading %s@%s: %w", r.Subject, r.Version, err)
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Version().Less(docs[j].Version())
	})
	return docs, nil
}
