// Package memstore implements storage.Store entirely in memory, for fast
// unit tests of the detector/merger/agent logic without a database.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/storage"
)

func nowUTC() time.Time { return time.Now().UTC() }

// Store is an in-memory implementation of storage.Store. Safe for
// concurrent use; BeginTx returns a no-op Tx since the whole store is
// already guarded by a single mutex (sufficient for the single-writer
// reference assumption spec.md §4.9 allows).
type Store struct {
	mu sync.Mutex

	entities      map[model.EntityType]map[uuid.UUID]model.Entity
	relationships map[uuid.UUID]model.Relationship
	audits        map[uuid.UUID]model.AuditRecord
	snapshots     map[uuid.UUID][]model.EntitySnapshot
	embeddings    map[string]embeddingEntry
	patterns      map[model.PatternType][]model.Pattern
	operationLog  []storage.OperationAudit
	notifications []string

	// TotalInterviewCount backs GetTotalInterviewCount; tests set it
	// directly since memstore has no independent notion of "interviews
	// seen" beyond what's reflected in entity provenance.
	TotalInterviewCount int
}

type embeddingEntry struct {
	vec      pgvector.Vector
	textHash string
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		entities:      make(map[model.EntityType]map[uuid.UUID]model.Entity),
		relationships: make(map[uuid.UUID]model.Relationship),
		audits:        make(map[uuid.UUID]model.AuditRecord),
		snapshots:     make(map[uuid.UUID][]model.EntitySnapshot),
		embeddings:    make(map[string]embeddingEntry),
		patterns:      make(map[model.PatternType][]model.Pattern),
	}
}

type noopTx struct{}

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

// BeginTx returns a no-op Tx; memstore applies mutations immediately and
// relies on its mutex for isolation, since a true rollback over an
// in-memory map would require a full copy-on-write scheme this adapter does
// not need for test speed. Callers that need atomicity semantics under test
// should use the snapshot/restore helpers the agent already exercises via
// RollbackService instead of relying on mid-transaction abort here.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	return noopTx{}, nil
}

func embeddingKey(t model.EntityType, id uuid.UUID) string {
	return string(t) + ":" + id.String()
}

func (s *Store) GetEntitiesByType(ctx context.Context, t model.EntityType, limit int) ([]model.Entity, error) {
	if !t.IsValid() {
		return nil, model.InvalidEntityTypeError(t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.entities[t]
	out := make([]model.Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertEntity(ctx context.Context, tx storage.Tx, t model.EntityType, e model.Entity) (uuid.UUID, error) {
	if !t.IsValid() {
		return uuid.Nil, model.InvalidEntityTypeError(t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if s.entities[t] == nil {
		s.entities[t] = make(map[uuid.UUID]model.Entity)
	}
	s.entities[t][e.ID] = e
	return e.ID, nil
}

func (s *Store) UpdateConsolidatedEntity(ctx context.Context, tx storage.Tx, t model.EntityType, id uuid.UUID, merged model.Entity, interviewID string) error {
	if !t.IsValid() {
		return model.InvalidEntityTypeError(t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities[t] == nil {
		s.entities[t] = make(map[uuid.UUID]model.Entity)
	}
	s.entities[t][id] = merged
	return nil
}

func (s *Store) GetEntity(ctx context.Context, t model.EntityType, id uuid.UUID) (model.Entity, error) {
	if !t.IsValid() {
		return model.Entity{}, model.InvalidEntityTypeError(t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[t][id]
	if !ok {
		return model.Entity{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutEntity(ctx context.Context, tx storage.Tx, t model.EntityType, e model.Entity) error {
	if !t.IsValid() {
		return model.InvalidEntityTypeError(t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities[t] == nil {
		s.entities[t] = make(map[uuid.UUID]model.Entity)
	}
	s.entities[t][e.ID] = e
	return nil
}

func (s *Store) InsertRelationship(ctx context.Context, tx storage.Tx, rel model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	s.relationships[rel.ID] = rel
	return nil
}

func (s *Store) UpdateRelationship(ctx context.Context, tx storage.Tx, rel model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.ID] = rel
	return nil
}

func (s *Store) FindRelationship(ctx context.Context, sourceID, targetID uuid.UUID, rt model.RelationshipType) (model.Relationship, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relationships {
		if r.SourceEntityID == sourceID && r.TargetEntityID == targetID && r.RelationshipType == rt {
			return r, true, nil
		}
	}
	return model.Relationship{}, false, nil
}

func (s *Store) ListRelationshipsByEndpoint(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Relationship
	for _, r := range s.relationships {
		if r.SourceEntityID == entityID || r.TargetEntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListOrphanRelationships(ctx context.Context) ([]model.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Relationship
	for _, r := range s.relationships {
		if !s.entityExistsLocked(r.SourceEntityType, r.SourceEntityID) || !s.entityExistsLocked(r.TargetEntityType, r.TargetEntityID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) entityExistsLocked(t model.EntityType, id uuid.UUID) bool {
	_, ok := s.entities[t][id]
	return ok
}

func (s *Store) InsertAudit(ctx context.Context, tx storage.Tx, record model.AuditRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.audits[record.ID] = record
	return record.ID, nil
}

func (s *Store) MarkAuditRolledBack(ctx context.Context, tx storage.Tx, auditID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return storage.ErrNotFound
	}
	if a.RolledBackAt != nil {
		return model.ErrAlreadyRolledBack
	}
	now := nowUTC()
	a.RolledBackAt = &now
	a.RollbackReason = &reason
	s.audits[auditID] = a
	return nil
}

func (s *Store) GetAudit(ctx context.Context, auditID uuid.UUID) (model.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return model.AuditRecord{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, tx storage.Tx, auditID uuid.UUID, t model.EntityType, entityID uuid.UUID, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[auditID] = append(s.snapshots[auditID], model.EntitySnapshot{
		ID:                    uuid.New(),
		EntityType:            t,
		EntityID:              entityID,
		SerializedEntityState: state,
		AuditID:               auditID,
		CreatedAt:             nowUTC(),
	})
	return nil
}

func (s *Store) GetSnapshotsForAudit(ctx context.Context, auditID uuid.UUID) ([]model.EntitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EntitySnapshot{}, s.snapshots[auditID]...), nil
}

func (s *Store) GetEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID) (pgvector.Vector, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.embeddings[embeddingKey(t, id)]
	if !ok {
		return pgvector.Vector{}, "", false, nil
	}
	return entry.vec, entry.textHash, true, nil
}

func (s *Store) PutEntityEmbedding(ctx context.Context, t model.EntityType, id uuid.UUID, vec pgvector.Vector, textHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[embeddingKey(t, id)] = embeddingEntry{vec: vec, textHash: textHash}
	return nil
}

func (s *Store) GetTotalInterviewCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TotalInterviewCount, nil
}

func (s *Store) ReplacePatterns(ctx context.Context, patternType model.PatternType, patterns []model.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[patternType] = append([]model.Pattern{}, patterns...)
	return nil
}

// Patterns returns the current patterns of a type, for test assertions.
func (s *Store) Patterns(patternType model.PatternType) []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Pattern{}, s.patterns[patternType]...)
}

func (s *Store) InsertOperationAudit(ctx context.Context, tx storage.Tx, op storage.OperationAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operationLog = append(s.operationLog, op)
	return nil
}

func (s *Store) Notify(ctx context.Context, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, payload)
	return nil
}

// Notifications returns every payload passed to Notify, for test assertions.
func (s *Store) Notifications() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.notifications...)
}

// Audits returns every audit record recorded so far, for test assertions.
func (s *Store) Audits() []model.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditRecord, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a)
	}
	return out
}

// Snapshot returns a deep-enough copy of the whole store for the atomicity
// invariant test (spec.md §8, law 5): "for every call that raises
// ConsolidationFailed, a snapshot of the store before and after the call is
// identical."
func (s *Store) Snapshot() map[model.EntityType]map[uuid.UUID]model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.EntityType]map[uuid.UUID]model.Entity, len(s.entities))
	for t, m := range s.entities {
		cp := make(map[uuid.UUID]model.Entity, len(m))
		for id, e := range m {
			cp[id] = e
		}
		out[t] = cp
	}
	return out
}
