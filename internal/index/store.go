package index

import (
	"context"
	"time"

	"github.com/dgallion1/medrag/internal/chunker"
)

// Entry is one stored chunk with its embedding.
type Entry struct {
	ID         string
	Collection string
	Text       string
	Metadata   chunker.Metadata
	Vector     []float32
	Model      string
	CreatedAt  time.Time
}

// Store persists entries per collection. Insert is atomic: either every
// entry is stored or none is.
type Store interface {
	// Insert adds entries. Entries of the drugs named in replace are deleted
	// first, in the same transaction.
	Insert(ctx context.Context, collection string, entries []Entry, replace []string) error

	// Each calls fn for every entry of the collection in insertion order.
	Each(ctx context.Context, collection string, fn func(Entry) error) error

	Count(ctx context.Context, collection string) (int, error)

	// Reset deletes every entry of the collection and reports how many.
	Reset(ctx context.Context, collection string) (int, error)

	Close() error
}
