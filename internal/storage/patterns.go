package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/model"
)

// ReplacePatterns atomically replaces every pattern row of patternType with
// patterns, matching PatternRecognizer.Identify's "wholesale replace"
// contract.
func (db *DB) ReplacePatterns(ctx context.Context, patternType model.PatternType, patterns []model.Pattern) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin replace patterns tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM patterns WHERE pattern_type=$1`, patternType); err != nil {
		return fmt.Errorf("storage: delete existing patterns: %w", err)
	}

	for _, p := range patterns {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO patterns (id, pattern_type, entity_type, entity_id, pattern_frequency, source_count,
				high_priority, description, detected_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			p.ID, p.PatternType, p.EntityType, p.EntityID, p.PatternFrequency, p.SourceCount,
			p.HighPriority, p.Description, p.DetectedAt,
		); err != nil {
			return fmt.Errorf("storage: insert pattern: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit replace patterns: %w", err)
	}
	return nil
}
