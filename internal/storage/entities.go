package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/entrevista-ai/consolida/internal/model"
)

// pgxExecer is the subset of pgx.Tx / pgxpool.Pool used for statements that
// run either bare or inside a transaction. Both *pgxpool.Pool and pgx.Tx
// satisfy this interface.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execer(tx Tx) pgxExecer {
	if dt, ok := tx.(*dbTx); ok && dt != nil {
		return dt.tx
	}
	return db.pool
}

// GetEntitiesByType returns every entity of the given type, up to limit (0
// means unlimited).
func (db *DB) GetEntitiesByType(ctx context.Context, t model.EntityType, limit int) ([]model.Entity, error) {
	if !t.IsValid() {
		return nil, model.InvalidEntityTypeError(t)
	}
	query := `SELECT id, entity_type, name, description, attributes, company, business_unit, department,
		mentioned_in_interviews, source_count, first_mentioned_at, last_mentioned_at, merged_entity_ids,
		is_consolidated, consensus_confidence, needs_review, has_contradictions, contradiction_details,
		consolidated_at, embedding_text_hash, content_hash
		FROM entities WHERE entity_type = $1 ORDER BY last_mentioned_at DESC`
	args := []any{t}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: get entities by type: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: get entities by type: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (model.Entity, error) {
	var (
		e                model.Entity
		attrsJSON        []byte
		contradictionsJS []byte
	)
	err := row.Scan(
		&e.ID, &e.Type, &e.Name, &e.Description, &attrsJSON, &e.Company, &e.BusinessUnit, &e.Department,
		&e.MentionedInInterviews, &e.SourceCount, &e.FirstMentionedAt, &e.LastMentionedAt, &e.MergedEntityIDs,
		&e.IsConsolidated, &e.ConsensusConfidence, &e.NeedsReview, &e.HasContradictions, &contradictionsJS,
		&e.ConsolidatedAt, &e.EmbeddingTextHash, &e.ContentHash,
	)
	if err != nil {
		return model.Entity{}, err
	}
	e.Attributes, err = model.ParseAttributesJSON(attrsJSON)
	if err != nil {
		return model.Entity{}, fmt.Errorf("parse attributes: %w", err)
	}
	e.ContradictionDetails, err = model.ParseContradictionsJSON(contradictionsJS)
	if err != nil {
		return model.Entity{}, fmt.Errorf("parse contradictions: %w", err)
	}
	return e, nil
}

// InsertEntity inserts a brand-new entity row and records every interview it
// cites in the interview ledger (backing GetTotalInterviewCount).
func (db *DB) InsertEntity(ctx context.Context, tx Tx, t model.EntityType, e model.Entity) (uuid.UUID, error) {
	if !t.IsValid() {
		return uuid.Nil, model.InvalidEntityTypeError(t)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Type = t

	attrsJSON, err := model.AttributesJSON(e.Attributes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: marshal attributes: %w", err)
	}
	contradictionsJSON, err := model.ContradictionsJSON(e.ContradictionDetails)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: marshal contradictions: %w", err)
	}

	exec := db.execer(tx)
	_, err = exec.Exec(ctx,
		`INSERT INTO entities (id, entity_type, name, description, attributes, company, business_unit, department,
			mentioned_in_interviews, source_count, first_mentioned_at, last_mentioned_at, merged_entity_ids,
			is_consolidated, consensus_confidence, needs_review, has_contradictions, contradiction_details,
			consolidated_at, embedding_text_hash, content_hash)
		 VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb,$19,$20,$21)`,
		e.ID, e.Type, e.Name, e.Description, attrsJSON, e.Company, e.BusinessUnit, e.Department,
		e.MentionedInInterviews, e.SourceCount, e.FirstMentionedAt, e.LastMentionedAt, e.MergedEntityIDs,
		e.IsConsolidated, e.ConsensusConfidence, e.NeedsReview, e.HasContradictions, contradictionsJSON,
		e.ConsolidatedAt, e.EmbeddingTextHash, e.ContentHash,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: insert entity: %w", err)
	}

	if err := recordInterviews(ctx, exec, e.MentionedInInterviews); err != nil {
		return uuid.Nil, err
	}

	return e.ID, nil
}

// UpdateConsolidatedEntity overwrites an entity's full state after a merge
// and records the triggering interview in the ledger.
func (db *DB) UpdateConsolidatedEntity(ctx context.Context, tx Tx, t model.EntityType, id uuid.UUID, merged model.Entity, interviewID string) error {
	if !t.IsValid() {
		return model.InvalidEntityTypeError(t)
	}
	attrsJSON, err := model.AttributesJSON(merged.Attributes)
	if err != nil {
		return fmt.Errorf("storage: marshal attributes: %w", err)
	}
	contradictionsJSON, err := model.ContradictionsJSON(merged.ContradictionDetails)
	if err != nil {
		return fmt.Errorf("storage: marshal contradictions: %w", err)
	}

	exec := db.execer(tx)
	tag, err := exec.Exec(ctx,
		`UPDATE entities SET name=$1, description=$2, attributes=$3::jsonb, company=$4, business_unit=$5,
			department=$6, mentioned_in_interviews=$7, source_count=$8, first_mentioned_at=$9,
			last_mentioned_at=$10, merged_entity_ids=$11, is_consolidated=$12, consensus_confidence=$13,
			needs_review=$14, has_contradictions=$15, contradiction_details=$16::jsonb, consolidated_at=$17,
			embedding_text_hash=$18, content_hash=$19
		 WHERE id=$20 AND entity_type=$21`,
		merged.Name, merged.Description, attrsJSON, merged.Company, merged.BusinessUnit,
		merged.Department, merged.MentionedInInterviews, merged.SourceCount, merged.FirstMentionedAt,
		merged.LastMentionedAt, merged.MergedEntityIDs, merged.IsConsolidated, merged.ConsensusConfidence,
		merged.NeedsReview, merged.HasContradictions, contradictionsJSON, merged.ConsolidatedAt,
		merged.EmbeddingTextHash, merged.ContentHash,
		id, t,
	)
	if err != nil {
		return fmt.Errorf("storage: update consolidated entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: entity %s: %w", id, ErrNotFound)
	}

	return recordInterviews(ctx, exec, []string{interviewID})
}

// GetEntity fetches a single entity by type and id.
func (db *DB) GetEntity(ctx context.Context, t model.EntityType, id uuid.UUID) (model.Entity, error) {
	if !t.IsValid() {
		return model.Entity{}, model.InvalidEntityTypeError(t)
	}
	row := db.pool.QueryRow(ctx,
		`SELECT id, entity_type, name, description, attributes, company, business_unit, department,
			mentioned_in_interviews, source_count, first_mentioned_at, last_mentioned_at, merged_entity_ids,
			is_consolidated, consensus_confidence, needs_review, has_contradictions, contradiction_details,
			consolidated_at, embedding_text_hash, content_hash
		 FROM entities WHERE id=$1 AND entity_type=$2`,
		id, t,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Entity{}, fmt.Errorf("storage: entity %s: %w", id, ErrNotFound)
		}
		return model.Entity{}, fmt.Errorf("storage: get entity: %w", err)
	}
	return e, nil
}

// PutEntity overwrites an entity's full state, used by RollbackService to
// restore a pre-merge snapshot.
func (db *DB) PutEntity(ctx context.Context, tx Tx, t model.EntityType, e model.Entity) error {
	return db.UpdateConsolidatedEntity(ctx, tx, t, e.ID, e, "")
}

func recordInterviews(ctx context.Context, exec pgxExecer, interviewIDs []string) error {
	for _, iv := range interviewIDs {
		if iv == "" {
			continue
		}
		if _, err := exec.Exec(ctx,
			`INSERT INTO interview_ledger (interview_id) VALUES ($1) ON CONFLICT (interview_id) DO NOTHING`,
			iv,
		); err != nil {
			return fmt.Errorf("storage: record interview %s: %w", iv, err)
		}
	}
	return nil
}

// GetTotalInterviewCount returns the number of distinct interviews ever
// ingested, backing ConsensusScorer's total_sources_hint.
func (db *DB) GetTotalInterviewCount(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM interview_ledger`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: get total interview count: %w", err)
	}
	return n, nil
}
