package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/entrevista-ai/consolida/internal/model"
)

func scanRelationship(row rowScanner) (model.Relationship, error) {
	var r model.Relationship
	err := row.Scan(
		&r.ID, &r.SourceEntityID, &r.SourceEntityType, &r.TargetEntityID, &r.TargetEntityType,
		&r.RelationshipType, &r.Strength, &r.MentionedInInterviews, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const relationshipColumns = `id, source_entity_id, source_entity_type, target_entity_id, target_entity_type,
	relationship_type, strength, mentioned_in_interviews, created_at, updated_at`

// InsertRelationship inserts a new typed edge.
func (db *DB) InsertRelationship(ctx context.Context, tx Tx, rel model.Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	exec := db.execer(tx)
	_, err := exec.Exec(ctx,
		`INSERT INTO relationships (id, source_entity_id, source_entity_type, target_entity_id, target_entity_type,
			relationship_type, strength, mentioned_in_interviews, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rel.ID, rel.SourceEntityID, rel.SourceEntityType, rel.TargetEntityID, rel.TargetEntityType,
		rel.RelationshipType, rel.Strength, rel.MentionedInInterviews, rel.CreatedAt, rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert relationship: %w", err)
	}
	return nil
}

// UpdateRelationship overwrites a relationship's mutable fields (strength,
// mentioned_in_interviews, updated_at), used by relationship.Reconcile.
func (db *DB) UpdateRelationship(ctx context.Context, tx Tx, rel model.Relationship) error {
	exec := db.execer(tx)
	tag, err := exec.Exec(ctx,
		`UPDATE relationships SET strength=$1, mentioned_in_interviews=$2, updated_at=$3 WHERE id=$4`,
		rel.Strength, rel.MentionedInInterviews, rel.UpdatedAt, rel.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: update relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: relationship %s: %w", rel.ID, ErrNotFound)
	}
	return nil
}

// FindRelationship looks up an existing edge by its natural key.
func (db *DB) FindRelationship(ctx context.Context, sourceID, targetID uuid.UUID, rt model.RelationshipType) (model.Relationship, bool, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 WHERE source_entity_id=$1 AND target_entity_id=$2 AND relationship_type=$3`,
		sourceID, targetID, rt,
	)
	r, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Relationship{}, false, nil
		}
		return model.Relationship{}, false, fmt.Errorf("storage: find relationship: %w", err)
	}
	return r, true, nil
}

// ListRelationshipsByEndpoint returns every edge touching entityID as
// either source or target.
func (db *DB) ListRelationshipsByEndpoint(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE source_entity_id=$1 OR target_entity_id=$1`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list relationships by endpoint: %w", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOrphanRelationships returns every edge whose source or target entity
// no longer exists. Reported for diagnostics only — spec.md is explicit
// that orphans are never purged automatically.
func (db *DB) ListOrphanRelationships(ctx context.Context) ([]model.Relationship, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+relationshipColumns+` FROM relationships r
		 WHERE NOT EXISTS (SELECT 1 FROM entities e WHERE e.id = r.source_entity_id)
		    OR NOT EXISTS (SELECT 1 FROM entities e WHERE e.id = r.target_entity_id)`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list orphan relationships: %w", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
