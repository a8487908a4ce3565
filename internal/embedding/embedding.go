// Package embedding provides the EmbeddingProvider port (spec.md §4.2): a
// dense-vector provider behind a cache, retry, and circuit-breaker envelope.
package embedding

import (
	"context"
	"errors"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/entrevista-ai/consolida/internal/model"
)

// ErrUnavailable is returned by a Provider that cannot currently serve
// embeddings (circuit open, upstream exhausted its retries). Callers must
// treat this as a signal to fall back to name-only similarity, never as a
// fatal error.
var ErrUnavailable = errors.New("embedding: provider unavailable")

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed generates a single embedding vector from text.
	Embed(ctx context.Context, text string) (pgvector.Vector, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error)

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int
}

// Text builds the canonical embedding input for an entity: its name plus up
// to the first 200 runes of its description, matching spec.md §4.3's
// `text(x) = x.name + " " + x.description[:200]`.
func Text(e model.Entity) string {
	desc := []rune(e.Description)
	if len(desc) > 200 {
		desc = desc[:200]
	}
	if len(desc) == 0 {
		return e.Name
	}
	return e.Name + " " + string(desc)
}

// Cosine returns the cosine similarity between two vectors, clamped to
// [0,1] per spec.md §4.3 ("clamped to [0,1]").
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		da, db := float64(a[i]), float64(b[i])
		dot += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
