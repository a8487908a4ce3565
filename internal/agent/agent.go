// Package agent implements ConsolidationAgent (spec.md §4.9): the
// per-interview orchestration of duplicate detection, merge, consensus
// scoring, and relationship discovery, wrapped in one atomic transaction
// per interview.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/entrevista-ai/consolida/internal/consensus"
	"github.com/entrevista-ai/consolida/internal/ctxutil"
	"github.com/entrevista-ai/consolida/internal/duplicate"
	"github.com/entrevista-ai/consolida/internal/integrity"
	"github.com/entrevista-ai/consolida/internal/merge"
	"github.com/entrevista-ai/consolida/internal/metrics"
	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/relationship"
	"github.com/entrevista-ai/consolida/internal/storage"
)

// typeOrder is the fixed per-interview processing order spec.md §4.9 and §5
// require: systems and processes (and their SPEC_FULL.md-supplemented
// cousins kpis/automation_candidates) before pain_points, so relationship
// discovery has targets to match against, followed by the remaining types
// in a stable order.
var typeOrder = []model.EntityType{
	model.EntityTypeSystem,
	model.EntityTypeProcess,
	model.EntityTypeKPI,
	model.EntityTypeAutomationCandidate,
	model.EntityTypePainPoint,
	model.EntityTypeInefficiency,
	model.EntityTypeCommunicationChannel,
	model.EntityTypeDecisionPoint,
	model.EntityTypeDataFlow,
	model.EntityTypeTemporalPattern,
	model.EntityTypeFailureMode,
	model.EntityTypeTeamStructure,
	model.EntityTypeKnowledgeGap,
	model.EntityTypeSuccessPattern,
	model.EntityTypeBudgetConstraint,
	model.EntityTypeExternalDependency,
}

// Input is one interview's freshly extracted entities, grouped by type.
type Input struct {
	InterviewID   string
	EntitiesByType map[model.EntityType][]model.Entity
}

// Output is the resulting entity ids per type, in processing order.
type Output struct {
	ResultingIDsByType map[model.EntityType][]uuid.UUID
	Metrics            metrics.Snapshot
}

// Agent orchestrates one or many Consolidate calls.
type Agent struct {
	store      storage.Store
	detector   *duplicate.Detector
	merger     *merge.Merger
	scorer     *consensus.Scorer
	discoverer *relationship.Discoverer
	thresholds duplicate.Thresholds

	embedTimeout  time.Duration
	totalTimeout  time.Duration
	maxWorkers    int

	logger *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithEmbedTimeout sets the Agent's embedding timeout value (default 30s).
// The value is stored only: no embedding call made during Consolidate is
// given its own deadline, so embeddings run under the whole-call timeout.
func WithEmbedTimeout(d time.Duration) Option { return func(a *Agent) { a.embedTimeout = d } }

// WithConsolidationTimeout overrides the whole-call timeout (default 5m,
// spec.md §5).
func WithConsolidationTimeout(d time.Duration) Option { return func(a *Agent) { a.totalTimeout = d } }

// WithMaxWorkers overrides the cross-interview worker cap (default 4,
// spec.md §5).
func WithMaxWorkers(n int) Option { return func(a *Agent) { a.maxWorkers = n } }

// New constructs an Agent from its component collaborators.
func New(
	store storage.Store,
	detector *duplicate.Detector,
	merger *merge.Merger,
	scorer *consensus.Scorer,
	discoverer *relationship.Discoverer,
	thresholds duplicate.Thresholds,
	logger *slog.Logger,
	opts ...Option,
) *Agent {
	a := &Agent{
		store:        store,
		detector:     detector,
		merger:       merger,
		scorer:       scorer,
		discoverer:   discoverer,
		thresholds:   thresholds,
		embedTimeout: 30 * time.Second,
		totalTimeout: 5 * time.Minute,
		maxWorkers:   4,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Consolidate implements spec.md §4.9 for a single interview, under one
// transaction. reg accumulates metrics across calls (the caller owns its
// lifetime, typically one Registry per batch).
func (a *Agent) Consolidate(ctx context.Context, in Input, reg *metrics.Registry) (Output, error) {
	correlationID := uuid.New()
	ctx = ctxutil.WithCorrelationID(ctx, correlationID)

	ctx, cancel := context.WithTimeout(ctx, a.totalTimeout)
	defer cancel()

	logger := a.logger.With("correlation_id", correlationID.String(), "interview_id", in.InterviewID)
	logger.Info("consolidation started")

	out, err := a.consolidateLocked(ctx, in, reg, logger)
	if err != nil {
		logger.Error("consolidation failed", "error", err)
		var cf *model.ConsolidationFailedError
		if errors.As(err, &cf) {
			return Output{}, err
		}
		reason := "store_error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return Output{}, model.NewConsolidationFailed(in.InterviewID, correlationID.String(), reason, err)
	}

	out.Metrics = reg.Snapshot()
	logger.Info("consolidation completed",
		"entities_inserted", out.Metrics.EntitiesInserted,
		"entities_merged", out.Metrics.EntitiesMerged,
	)
	return out, nil
}

func (a *Agent) consolidateLocked(ctx context.Context, in Input, reg *metrics.Registry, logger *slog.Logger) (Output, error) {
	tx, err := a.store.BeginTx(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("agent: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rerr := tx.Rollback(ctx); rerr != nil {
				logger.Warn("rollback after failure also failed", "error", rerr)
			}
		}
	}()

	totalInterviews, err := a.store.GetTotalInterviewCount(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("agent: get total interview count: %w", err)
	}

	resultingByType := make(map[model.EntityType][]uuid.UUID)
	consolidatedByType := make(map[model.EntityType][]model.Entity)

	for _, t := range orderedTypes(in.EntitiesByType) {
		news := in.EntitiesByType[t]
		if len(news) == 0 {
			continue
		}

		var existing []model.Entity
		reg.Stage(metrics.StageDetector, func() {
			existing, err = a.store.GetEntitiesByType(ctx, t, 0)
		})
		if err != nil {
			return Output{}, fmt.Errorf("agent: get existing entities of type %s: %w", t, err)
		}

		for _, n := range news {
			reg.RecordEntitySeen()

			var candidates []duplicate.Candidate
			reg.Stage(metrics.StageDetector, func() {
				candidates, err = a.detector.FindDuplicates(ctx, n, t, existing)
			})
			if err != nil {
				return Output{}, fmt.Errorf("agent: find duplicates for %q: %w", n.Name, err)
			}

			threshold := a.thresholds[t]
			if threshold == 0 {
				threshold = 0.75
			}

			var resultID uuid.UUID
			if len(candidates) > 0 && candidates[0].Score >= threshold {
				best := candidates[0]

				if alreadyMentioned(best.Entity.MentionedInInterviews, in.InterviewID) {
					// Idempotent re-ingestion (spec.md §8 property 6): this
					// interview was already folded into this entity by a
					// prior call with the same interview_id. Re-running the
					// identical consolidation must not double-count the
					// interview, merge a second time, or append another
					// AuditRecord.
					resultID = best.Entity.ID
					consolidatedByType[t] = append(consolidatedByType[t], best.Entity)
					resultingByType[t] = append(resultingByType[t], resultID)
					continue
				}

				reg.AddDuplicatesFound(1)
				if n.ID == uuid.Nil {
					n.ID = uuid.New()
				}

				before, err := model.SerializeEntity(best.Entity)
				if err != nil {
					return Output{}, fmt.Errorf("agent: snapshot entity %s: %w", best.Entity.ID, err)
				}
				snapshotRoot := integrity.BuildMerkleRoot([]string{integrity.HashLeaf(before)})

				auditID, err := a.store.InsertAudit(ctx, tx, model.AuditRecord{
					EntityType:        t,
					MergedEntityIDs:   []uuid.UUID{n.ID},
					ResultingEntityID: best.Entity.ID,
					SimilarityScore:   best.Score,
					ConsolidatedAt:    time.Now().UTC(),
					SnapshotRootHash:  snapshotRoot,
				})
				if err != nil {
					return Output{}, fmt.Errorf("agent: insert audit: %w", err)
				}
				if err := a.store.InsertSnapshot(ctx, tx, auditID, t, best.Entity.ID, before); err != nil {
					return Output{}, fmt.Errorf("agent: insert snapshot: %w", err)
				}

				var merged model.Entity
				reg.Stage(metrics.StageMerger, func() {
					merged = a.merger.Merge(n, best.Entity, in.InterviewID, totalInterviews)
				})
				reg.AddEntitiesMerged(1)
				reg.AddContradictionsRecorded(int64(len(merged.ContradictionDetails) - len(best.Entity.ContradictionDetails)))
				reg.RecordConfidence(merged.ConsensusConfidence)

				if err := a.store.UpdateConsolidatedEntity(ctx, tx, t, merged.ID, merged, in.InterviewID); err != nil {
					return Output{}, fmt.Errorf("agent: update consolidated entity: %w", err)
				}
				if err := a.store.InsertOperationAudit(ctx, tx, storage.OperationAudit{
					InterviewID:   in.InterviewID,
					EntityType:    t,
					EntityID:      merged.ID,
					Operation:     "merge",
					CorrelationID: ctxutil.CorrelationID(ctx).String(),
				}); err != nil {
					return Output{}, fmt.Errorf("agent: insert operation audit: %w", err)
				}

				resultID = merged.ID
				consolidatedByType[t] = append(consolidatedByType[t], merged)
				existing = replaceEntity(existing, merged)
			} else {
				now := time.Now().UTC()
				n.SourceCount = 1
				n.MentionedInInterviews = []string{in.InterviewID}
				n.FirstMentionedAt = now
				n.LastMentionedAt = now
				n.IsConsolidated = false

				var confidence float64
				var needsReview bool
				reg.Stage(metrics.StageScorer, func() {
					confidence, needsReview = a.scorer.Confidence(n, totalInterviews)
				})
				n.ConsensusConfidence = confidence
				n.NeedsReview = needsReview
				reg.RecordConfidence(confidence)

				id, err := a.store.InsertEntity(ctx, tx, t, n)
				if err != nil {
					return Output{}, fmt.Errorf("agent: insert entity: %w", err)
				}
				n.ID = id
				reg.AddEntitiesInserted(1)

				if err := a.store.InsertOperationAudit(ctx, tx, storage.OperationAudit{
					InterviewID:   in.InterviewID,
					EntityType:    t,
					EntityID:      id,
					Operation:     "insert",
					CorrelationID: ctxutil.CorrelationID(ctx).String(),
				}); err != nil {
					return Output{}, fmt.Errorf("agent: insert operation audit: %w", err)
				}

				resultID = id
				consolidatedByType[t] = append(consolidatedByType[t], n)
				existing = append(existing, n)
			}

			resultingByType[t] = append(resultingByType[t], resultID)
		}
	}

	var edges []model.Relationship
	reg.Stage(metrics.StageDiscoverer, func() {
		edges = a.discoverer.Discover(consolidatedByType, in.InterviewID)
	})
	for _, edge := range edges {
		existingEdge, found, err := a.store.FindRelationship(ctx, edge.SourceEntityID, edge.TargetEntityID, edge.RelationshipType)
		if err != nil {
			return Output{}, fmt.Errorf("agent: find relationship: %w", err)
		}
		if found {
			merged := relationship.Reconcile(existingEdge, edge)
			if err := a.store.UpdateRelationship(ctx, tx, merged); err != nil {
				return Output{}, fmt.Errorf("agent: update relationship: %w", err)
			}
			reg.AddRelationshipsUpdated(1)
		} else {
			if err := a.store.InsertRelationship(ctx, tx, edge); err != nil {
				return Output{}, fmt.Errorf("agent: insert relationship: %w", err)
			}
			reg.AddRelationshipsEmitted(1)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Output{}, fmt.Errorf("agent: commit: %w", err)
	}
	committed = true

	if err := a.store.Notify(ctx, in.InterviewID); err != nil {
		logger.Warn("notify failed after commit", "error", err)
	}

	return Output{ResultingIDsByType: resultingByType}, nil
}

// orderedTypes returns the types present in byType following typeOrder,
// with any types outside typeOrder (forward-compatible additions) appended
// afterward in a stable, sorted order.
func orderedTypes(byType map[model.EntityType][]model.Entity) []model.EntityType {
	seen := make(map[model.EntityType]bool, len(typeOrder))
	out := make([]model.EntityType, 0, len(byType))
	for _, t := range typeOrder {
		if _, ok := byType[t]; ok {
			out = append(out, t)
			seen[t] = true
		}
	}
	var rest []model.EntityType
	for t := range byType {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// alreadyMentioned reports whether interviewID is already recorded on the
// entity, the signal used to detect an idempotent re-ingestion.
func alreadyMentioned(mentioned []string, interviewID string) bool {
	for _, m := range mentioned {
		if m == interviewID {
			return true
		}
	}
	return false
}

func replaceEntity(entities []model.Entity, updated model.Entity) []model.Entity {
	for i, e := range entities {
		if e.ID == updated.ID {
			entities[i] = updated
			return entities
		}
	}
	return append(entities, updated)
}

// ConsolidateBatch runs Consolidate for each input concurrently, up to
// a.maxWorkers at a time, matching spec.md §5's "one interview per worker,
// reference target up to 4 workers" — adapted from the teacher's
// conflicts.Scorer.BackfillScoring errgroup-with-limit shape.
func (a *Agent) ConsolidateBatch(ctx context.Context, inputs []Input, reg *metrics.Registry) ([]Output, error) {
	outputs := make([]Output, len(inputs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)

	for i, in := range inputs {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}
			out, err := a.Consolidate(gCtx, in, reg)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
