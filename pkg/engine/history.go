package engine

import (
	"context"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// HistoryProvider supplies the registered versions of a subject, oldest first. The
// engine only reads through it.
type HistoryProvider interface {
	History(ctx context.Context, subject string) ([]*schema.Document, error)
}

// HistoryFunc adapts a function to HistoryProvider.
type HistoryFunc func(ctx context.Context, subject string) ([]*schema.Document, error)

// History implements HistoryProvider.
func (f HistoryFunc) History(ctx context.Context, subject string) ([]*schema.Document, error) {
	return f(ctx, subject)
}

// StaticHistory is a fixed history returned for every subject.
type StaticHistory []*schema.Document

// History implements HistoryProvider.
func (h StaticHistory) History(context.Context, string) ([]*schema.Document, error) {
	return h, nil
}
