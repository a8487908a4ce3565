// Package storage defines the EntityStore port (spec.md §4.8) and its two
// adapters: a PostgreSQL-backed DB (storage/pool.go et al.) and an
// in-memory adapter for fast tests (storage/memstore).
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/entrevista-ai/consolida/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Tx represents an open transaction. All mutating Store methods that accept
// a Tx operate within it; Commit or Rollback ends it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the EntityStore port: every operation spec.md §4.8 requires.
// Implementations MUST validate any type parameter against the closed set
// before touching persisted state (model.EntityType.IsValid), and MUST
// parameterize every query — string interpolation into query text is
// forbidden.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetEntitiesByType(ctx context.Context, t model.EntityType, limit int) ([]model.Entity, error)
	InsertEntity(ctx context.Context, tx Tx, t model.EntityType, e model.Entity) (uuid.UUID, error)
	UpdateConsolidatedEntity(ctx context.Context, tx Tx, t model.EntityType, id uuid.UUID, merged model.Entity, interviewID string) error

	InsertRelationship(ctx context.Context, tx Tx, rel model.Relationship) error
	UpdateRelationship(ctx context.Context, tx Tx, rel model.Relationship) error
	FindRelationship(ctx context.Context, sourceID, targetID uuid.UUID, rt model.RelationshipType) (model.Relationship, bool, error)
	ListRelationshipsByEndpoint(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error)
	ListOrphanRelationships(ctx context.Context) ([]model.Relationship, error)

	InsertAudit(ctx context.Context, tx Tx, record model.AuditRecord) (uuid.UUID, error)
	MarkAuditRolledBack(ctx context.Context, tx Tx, auditID uuid.UUID, reason string) error
	GetAudit(ctx context.Context, auditID uuid.UUID) (model.AuditRecord, error)

	InsertSnapshot(ctx context.Context, tx Tx, auditID uuid.UUID, t model.EntityType, entityID uuid.UUID, state []byte) error
	GetSnapshotsForAudit(ctx context.Context, auditID uuid.UUID) ([]model.EntitySnapshot, error)

	GetEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID) (vec pgvector.Vector, textHash string, ok bool, err error)
	PutEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID, vec pgvector.Vector, textHash string) error

	GetTotalInterviewCount(ctx context.Context) (int, error)

	ReplacePatterns(ctx context.Context, patternType model.PatternType, patterns []model.Pattern) error

	// InsertOperationAudit records an operational "what changed and why"
	// trail around every state-changing call, independent of the
	// snapshot/rollback mechanism (SPEC_FULL.md supplemented feature).
	InsertOperationAudit(ctx context.Context, tx Tx, op OperationAudit) error

	// Notify publishes a consolidation-completed event on the
	// consolida_events channel (SPEC_FULL.md supplemented feature).
	Notify(ctx context.Context, payload string) error

	// GetEntity fetches a single entity by type and id, used by rollback to
	// overwrite live state with a snapshot.
	GetEntity(ctx context.Context, t model.EntityType, id uuid.UUID) (model.Entity, error)
	// PutEntity overwrites an entity's full state (used by rollback).
	PutEntity(ctx context.Context, tx Tx, t model.EntityType, e model.Entity) error
}

// OperationAudit is one row of the mutation audit trail: a byte-for-byte
// "what changed and why" record independent of EntitySnapshot-based
// rollback, adapted from the teacher's mutation_audit_log.
type OperationAudit struct {
	ID          uuid.UUID
	InterviewID string
	EntityType  model.EntityType
	EntityID    uuid.UUID
	Operation   string // "insert" | "merge" | "rollback"
	CorrelationID string
	OccurredAt  string
}
