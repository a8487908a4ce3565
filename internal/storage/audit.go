package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/entrevista-ai/consolida/internal/model"
)

// InsertAudit appends an audit record identifying which entities were
// merged into which, ahead of the merge being committed.
func (db *DB) InsertAudit(ctx context.Context, tx Tx, record model.AuditRecord) (uuid.UUID, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	exec := db.execer(tx)
	_, err := exec.Exec(ctx,
		`INSERT INTO consolidation_audit (id, entity_type, merged_entity_ids, resulting_entity_id,
			similarity_score, consolidated_at, rolled_back_at, rollback_reason, snapshot_root_hash)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		record.ID, record.EntityType, record.MergedEntityIDs, record.ResultingEntityID,
		record.SimilarityScore, record.ConsolidatedAt, record.RolledBackAt, record.RollbackReason,
		record.SnapshotRootHash,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: insert audit: %w", err)
	}
	return record.ID, nil
}

// MarkAuditRolledBack flags an audit record as reversed. Returns
// model.ErrAlreadyRolledBack if it was already marked.
func (db *DB) MarkAuditRolledBack(ctx context.Context, tx Tx, auditID uuid.UUID, reason string) error {
	exec := db.execer(tx)
	tag, err := exec.Exec(ctx,
		`UPDATE consolidation_audit SET rolled_back_at = now(), rollback_reason = $1
		 WHERE id = $2 AND rolled_back_at IS NULL`,
		reason, auditID,
	)
	if err != nil {
		return fmt.Errorf("storage: mark audit rolled back: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM consolidation_audit WHERE id=$1)`, auditID).Scan(&exists); err != nil {
			return fmt.Errorf("storage: check audit existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("storage: audit %s: %w", auditID, ErrNotFound)
		}
		return model.ErrAlreadyRolledBack
	}
	return nil
}

// GetAudit fetches an audit record by id.
func (db *DB) GetAudit(ctx context.Context, auditID uuid.UUID) (model.AuditRecord, error) {
	var a model.AuditRecord
	err := db.pool.QueryRow(ctx,
		`SELECT id, entity_type, merged_entity_ids, resulting_entity_id, similarity_score,
			consolidated_at, rolled_back_at, rollback_reason, snapshot_root_hash
		 FROM consolidation_audit WHERE id=$1`,
		auditID,
	).Scan(&a.ID, &a.EntityType, &a.MergedEntityIDs, &a.ResultingEntityID, &a.SimilarityScore,
		&a.ConsolidatedAt, &a.RolledBackAt, &a.RollbackReason, &a.SnapshotRootHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AuditRecord{}, fmt.Errorf("storage: audit %s: %w", auditID, ErrNotFound)
		}
		return model.AuditRecord{}, fmt.Errorf("storage: get audit: %w", err)
	}
	return a, nil
}

// InsertSnapshot records an entity's pre-merge serialized state for later
// rollback.
func (db *DB) InsertSnapshot(ctx context.Context, tx Tx, auditID uuid.UUID, t model.EntityType, entityID uuid.UUID, state []byte) error {
	exec := db.execer(tx)
	_, err := exec.Exec(ctx,
		`INSERT INTO entity_snapshots (id, entity_type, entity_id, serialized_entity_state, audit_id, created_at)
		 VALUES ($1,$2,$3,$4::jsonb,$5, now())`,
		uuid.New(), t, entityID, state, auditID,
	)
	if err != nil {
		return fmt.Errorf("storage: insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshotsForAudit returns every snapshot captured for an audit record,
// in insertion order.
func (db *DB) GetSnapshotsForAudit(ctx context.Context, auditID uuid.UUID) ([]model.EntitySnapshot, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, entity_type, entity_id, serialized_entity_state, audit_id, created_at
		 FROM entity_snapshots WHERE audit_id=$1 ORDER BY created_at ASC`,
		auditID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get snapshots for audit: %w", err)
	}
	defer rows.Close()

	var out []model.EntitySnapshot
	for rows.Next() {
		var s model.EntitySnapshot
		if err := rows.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.SerializedEntityState, &s.AuditID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertOperationAudit records an entry in the operational "what changed and
// why" trail, independent of the snapshot/rollback mechanism.
func (db *DB) InsertOperationAudit(ctx context.Context, tx Tx, op OperationAudit) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	exec := db.execer(tx)
	_, err := exec.Exec(ctx,
		`INSERT INTO operation_audit_log (id, interview_id, entity_type, entity_id, operation, correlation_id, occurred_at)
		 VALUES ($1,$2,$3,$4,$5,$6, now())`,
		op.ID, op.InterviewID, op.EntityType, op.EntityID, op.Operation, op.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("storage: insert operation audit: %w", err)
	}
	return nil
}
