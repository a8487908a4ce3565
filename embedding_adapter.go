package consolida

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/entrevista-ai/consolida/internal/embedding"
)

// embeddingAdapter wraps a public, []float32-based EmbeddingProvider so it
// satisfies internal/embedding.Provider's pgvector.Vector-based interface.
// This is the only place pgvector.Vector and a caller-supplied provider
// meet; callers outside this module never need to import pgvector-go.
type embeddingAdapter struct {
	inner EmbeddingProvider
	dims  int
}

var _ embedding.Provider = (*embeddingAdapter)(nil)

func newEmbeddingAdapter(inner EmbeddingProvider) *embeddingAdapter {
	return &embeddingAdapter{inner: inner, dims: inner.Dimensions()}
}

func (a *embeddingAdapter) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(vec) != a.dims {
		return pgvector.Vector{}, fmt.Errorf("embedding_adapter: got %d dimensions, want %d", len(vec), a.dims)
	}
	return pgvector.NewVector(vec), nil
}

func (a *embeddingAdapter) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vecs, err := a.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]pgvector.Vector, len(vecs))
	for i, v := range vecs {
		if len(v) != a.dims {
			return nil, fmt.Errorf("embedding_adapter: batch item %d has %d dimensions, want %d", i, len(v), a.dims)
		}
		out[i] = pgvector.NewVector(v)
	}
	return out, nil
}

func (a *embeddingAdapter) Dimensions() int { return a.dims }
