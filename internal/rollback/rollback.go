// Package rollback implements RollbackService (spec.md §4.11): reversing a
// consolidation by restoring pre-merge entity snapshots and redirecting
// relationship endpoints back to the original entity ids.
package rollback

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/integrity"
	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/storage"
)

// Service reverses consolidation_audit entries.
type Service struct {
	store storage.Store
}

// New constructs a Service.
func New(store storage.Store) *Service { return &Service{store: store} }

// Rollback implements spec.md §4.11's six steps, all-or-nothing: on any
// error the transaction is rolled back and the prior state stands.
func (s *Service) Rollback(ctx context.Context, auditID uuid.UUID, reason string) error {
	audit, err := s.store.GetAudit(ctx, auditID)
	if err != nil {
		return fmt.Errorf("rollback: load audit: %w", err)
	}
	if audit.RolledBackAt != nil {
		return model.ErrAlreadyRolledBack
	}
	if len(audit.MergedEntityIDs) == 0 {
		return fmt.Errorf("rollback: audit %s has no merged entity ids", auditID)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("rollback: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	snapshots, err := s.store.GetSnapshotsForAudit(ctx, auditID)
	if err != nil {
		return fmt.Errorf("rollback: load snapshots: %w", err)
	}

	if audit.SnapshotRootHash != "" {
		if err := verifySnapshotRoot(audit.SnapshotRootHash, snapshots); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}

	for _, snap := range snapshots {
		restored, err := model.DeserializeEntity(snap.SerializedEntityState)
		if err != nil {
			return fmt.Errorf("rollback: deserialize snapshot %s: %w", snap.ID, err)
		}
		if err := s.store.PutEntity(ctx, tx, snap.EntityType, restored); err != nil {
			return fmt.Errorf("rollback: restore entity %s: %w", snap.EntityID, err)
		}
	}

	originalID := audit.MergedEntityIDs[0]
	if err := s.redirectRelationships(ctx, tx, audit.ResultingEntityID, originalID); err != nil {
		return fmt.Errorf("rollback: redirect relationships: %w", err)
	}

	if err := s.store.MarkAuditRolledBack(ctx, tx, auditID, reason); err != nil {
		return fmt.Errorf("rollback: mark rolled back: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("rollback: commit: %w", err)
	}
	committed = true
	return nil
}

// unionKeepMaxStrength implements spec.md §4.11 step 4's collision rule:
// union mentioned_in_interviews, keep the larger of the two strengths.
// existing's identity (id, timestamps otherwise) is kept; only the fields
// the spec calls out are combined.
func unionKeepMaxStrength(existing, redirected model.Relationship) model.Relationship {
	merged := existing
	merged.MentionedInInterviews = unionInterviews(existing.MentionedInInterviews, redirected.MentionedInInterviews)
	if redirected.Strength > merged.Strength {
		merged.Strength = redirected.Strength
	}
	return merged
}

func unionInterviews(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// verifySnapshotRoot recomputes the Merkle root over snapshots' serialized
// state and compares it against the root recorded at snapshot time,
// detecting any tampering with the stored snapshot rows in between.
func verifySnapshotRoot(recorded string, snapshots []model.EntitySnapshot) error {
	leaves := make([]string, len(snapshots))
	for i, snap := range snapshots {
		leaves[i] = integrity.HashLeaf(snap.SerializedEntityState)
	}
	sort.Strings(leaves)
	if integrity.BuildMerkleRoot(leaves) != recorded {
		return model.ErrSnapshotTampered
	}
	return nil
}

// redirectRelationships moves every edge touching resultingID back to
// originalID. If the redirect would collide with an edge already anchored
// at originalID, the two are unioned: mentioned_in_interviews combined,
// strength kept at the max of the two.
func (s *Service) redirectRelationships(ctx context.Context, tx storage.Tx, resultingID, originalID uuid.UUID) error {
	rels, err := s.store.ListRelationshipsByEndpoint(ctx, resultingID)
	if err != nil {
		return fmt.Errorf("list relationships for %s: %w", resultingID, err)
	}

	for _, rel := range rels {
		redirected := rel
		if redirected.SourceEntityID == resultingID {
			redirected.SourceEntityID = originalID
		}
		if redirected.TargetEntityID == resultingID {
			redirected.TargetEntityID = originalID
		}

		existing, found, err := s.store.FindRelationship(ctx, redirected.SourceEntityID, redirected.TargetEntityID, redirected.RelationshipType)
		if err != nil {
			return fmt.Errorf("find relationship: %w", err)
		}

		if found && existing.ID != rel.ID {
			// rel.ID itself is left in place pointing at resultingID; the
			// store port has no delete operation (orphans are reported, not
			// purged, per spec.md), so the stale row persists as a harmless
			// duplicate until the next ListOrphanRelationships sweep.
			//
			// spec.md §4.11 step 4 is a plain union-and-keep-the-max, distinct
			// from §4.6's re-discovery ratchet (relationship.Reconcile): a
			// redirect is not a new co-occurrence mention, so strength must
			// never be bumped by it.
			merged := unionKeepMaxStrength(existing, redirected)
			if err := s.store.UpdateRelationship(ctx, tx, merged); err != nil {
				return fmt.Errorf("union redirected relationship: %w", err)
			}
			continue
		}

		if err := s.store.UpdateRelationship(ctx, tx, redirected); err != nil {
			return fmt.Errorf("redirect relationship %s: %w", rel.ID, err)
		}
	}
	return nil
}
