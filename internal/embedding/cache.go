package embedding

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// Cache is the content-addressed embedding cache port. The key is a hash of
// the input text (spec.md §4.2: "Cache key is a hash of the text"). The
// Postgres adapter backs this with the embedding cache columns on each
// entity row; storage/memstore backs it with a plain map for tests.
type Cache interface {
	Get(ctx context.Context, textHash string) (pgvector.Vector, bool, error)
	Put(ctx context.Context, textHash string, vec pgvector.Vector) error
}
