package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/entrevista-ai/consolida/internal/model"
)

// GetEntityEmbedding returns the cached embedding vector for an entity, if
// one has been computed and the content hash it was computed from still
// matches.
func (db *DB) GetEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID) (pgvector.Vector, string, bool, error) {
	if !t.IsValid() {
		return pgvector.Vector{}, "", false, model.InvalidEntityTypeError(t)
	}
	var (
		vec      pgvector.Vector
		textHash string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT embedding, embedding_text_hash FROM entities WHERE id=$1 AND entity_type=$2 AND embedding IS NOT NULL`,
		id, t,
	).Scan(&vec, &textHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgvector.Vector{}, "", false, nil
		}
		return pgvector.Vector{}, "", false, fmt.Errorf("storage: get entity embedding: %w", err)
	}
	return vec, textHash, true, nil
}

// PutEntityEmbedding stores a computed embedding vector against its source
// text hash (embedding.Cache's content-addressed key).
func (db *DB) PutEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID, vec pgvector.Vector, textHash string) error {
	if !t.IsValid() {
		return model.InvalidEntityTypeError(t)
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE entities SET embedding=$1, embedding_text_hash=$2 WHERE id=$3 AND entity_type=$4`,
		vec, textHash, id, t,
	)
	if err != nil {
		return fmt.Errorf("storage: put entity embedding: %w", err)
	}
	return nil
}
