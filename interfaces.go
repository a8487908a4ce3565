package consolida

import "context"

// EmbeddingProvider generates vector embeddings from text. Implementations
// passed via New must be safe for concurrent use. internal/embedding's
// OllamaProvider and CachedProvider return pgvector.Vector rather than
// []float32, so they do not satisfy this interface directly; a caller may
// supply its own (e.g. an OpenAI-backed one) without importing
// internal/embedding.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
