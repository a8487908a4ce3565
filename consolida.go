package consolida

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/agent"
	"github.com/entrevista-ai/consolida/internal/consensus"
	"github.com/entrevista-ai/consolida/internal/duplicate"
	"github.com/entrevista-ai/consolida/internal/embedding"
	"github.com/entrevista-ai/consolida/internal/merge"
	"github.com/entrevista-ai/consolida/internal/metrics"
	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/pattern"
	"github.com/entrevista-ai/consolida/internal/relationship"
	"github.com/entrevista-ai/consolida/internal/rollback"
	"github.com/entrevista-ai/consolida/internal/storage"
)

// Agent is the public entry point: wires duplicate detection, merging,
// consensus scoring, relationship discovery, pattern recognition and
// rollback into a single facade over a storage.Store.
type Agent struct {
	store     storage.Store
	core      *agent.Agent
	patterns  *pattern.Recognizer
	rollbacks *rollback.Service
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// New constructs an Agent. embedder may be nil, in which case duplicate
// detection falls back to name-only matching for the lifetime of the Agent
// (spec.md §4.2's EmbeddingUnavailable path).
func New(cfg Config, store storage.Store, embedder EmbeddingProvider, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consolida: invalid config: %w", err)
	}

	resolved := resolvedOptions{
		logger:       slog.Default(),
		embedTimeout: cfg.EmbeddingTimeout,
		totalTimeout: cfg.ConsolidationTimeout,
		maxWorkers:   cfg.MaxWorkers,
	}
	for _, opt := range opts {
		opt(&resolved)
	}

	reg := metrics.New(resolved.meter)

	var provider embedding.Provider
	if embedder != nil {
		cached := embedding.NewCachedProvider(
			newEmbeddingAdapter(embedder),
			embedding.NewMemCache(),
			resolved.logger,
			embedding.WithMaxRetries(cfg.MaxRetries),
			embedding.WithCircuitThreshold(cfg.CircuitThreshold, cfg.EmbeddingTimeout),
			embedding.WithCacheHooks(
				func() { reg.AddEmbeddingCacheHits(1) },
				func() { reg.AddEmbeddingCacheMisses(1) },
			),
			embedding.WithRetryHook(func() { reg.AddEmbeddingUpstreamFailures(1) }),
		)
		provider = cached
	}

	thresholds := make(duplicate.Thresholds, len(cfg.Thresholds))
	for t, v := range cfg.Thresholds {
		thresholds[model.EntityType(t)] = v
	}

	detector := duplicate.New(duplicate.Options{
		Thresholds:            thresholds,
		NameWeight:            cfg.NameWeight,
		SemanticWeight:        cfg.SemanticWeight,
		SkipSemanticThreshold: cfg.SkipSemanticThreshold,
		MaxCandidates:         cfg.MaxCandidates,
	}, provider, resolved.logger)

	scorer := consensus.New(consensus.Options{
		SourceCountDivisor:      cfg.SourceCountDivisor,
		SingleSourcePenalty:     cfg.SingleSourcePenalty,
		BonusPerAttribute:       cfg.BonusPerAttribute,
		MaxAgreementBonus:       cfg.MaxAgreementBonus,
		PenaltyPerContradiction: cfg.PenaltyPerContradiction,
	})

	merger := merge.New(merge.Options{
		ContradictionSimilarityThreshold: cfg.ContradictionSimilarityThreshold,
	}, scorer)

	discoverer := relationship.New()

	recognizer := pattern.New(pattern.Options{
		RecurringPainThreshold:     cfg.RecurringPainThreshold,
		ProblematicSystemThreshold: cfg.ProblematicSystemThreshold,
		HighPriorityFrequency:      cfg.HighPriorityFrequency,
	}, store)

	core := agent.New(store, detector, merger, scorer, discoverer, thresholds, resolved.logger,
		agent.WithEmbedTimeout(resolved.embedTimeout),
		agent.WithConsolidationTimeout(resolved.totalTimeout),
		agent.WithMaxWorkers(resolved.maxWorkers),
	)

	return &Agent{
		store:     store,
		core:      core,
		patterns:  recognizer,
		rollbacks: rollback.New(store),
		metrics:   reg,
		logger:    resolved.logger,
	}, nil
}

// Consolidate runs one interview's extracted entities through duplicate
// detection, merging, consensus scoring, and relationship discovery, all
// inside a single transaction (spec.md §4.9).
func (a *Agent) Consolidate(ctx context.Context, in ConsolidationInput) (ConsolidationOutput, error) {
	entitiesByType := make(map[model.EntityType][]model.Entity, len(in.EntitiesByType))
	for t, entities := range in.EntitiesByType {
		converted := make([]model.Entity, len(entities))
		for i, e := range entities {
			converted[i] = entityToModel(e)
		}
		entitiesByType[model.EntityType(t)] = converted
	}

	out, err := a.core.Consolidate(ctx, agent.Input{
		InterviewID:    in.InterviewID,
		EntitiesByType: entitiesByType,
	}, a.metrics)
	if err != nil {
		return ConsolidationOutput{}, err
	}

	resultingByType := make(map[EntityType][]uuid.UUID, len(out.ResultingIDsByType))
	for t, ids := range out.ResultingIDsByType {
		resultingByType[EntityType(t)] = ids
	}

	return ConsolidationOutput{
		ResultingIDsByType: resultingByType,
		Metrics:            metricsFromInternal(out.Metrics),
	}, nil
}

// ConsolidateBatch runs multiple interviews concurrently, bounded by the
// configured worker cap (spec.md §4.9's cross-interview scaling note).
func (a *Agent) ConsolidateBatch(ctx context.Context, ins []ConsolidationInput) ([]ConsolidationOutput, error) {
	inputs := make([]agent.Input, len(ins))
	for i, in := range ins {
		entitiesByType := make(map[model.EntityType][]model.Entity, len(in.EntitiesByType))
		for t, entities := range in.EntitiesByType {
			converted := make([]model.Entity, len(entities))
			for j, e := range entities {
				converted[j] = entityToModel(e)
			}
			entitiesByType[model.EntityType(t)] = converted
		}
		inputs[i] = agent.Input{InterviewID: in.InterviewID, EntitiesByType: entitiesByType}
	}

	outs, err := a.core.ConsolidateBatch(ctx, inputs, a.metrics)
	if err != nil {
		return nil, err
	}

	results := make([]ConsolidationOutput, len(outs))
	for i, out := range outs {
		resultingByType := make(map[EntityType][]uuid.UUID, len(out.ResultingIDsByType))
		for t, ids := range out.ResultingIDsByType {
			resultingByType[EntityType(t)] = ids
		}
		results[i] = ConsolidationOutput{
			ResultingIDsByType: resultingByType,
			Metrics:            metricsFromInternal(out.Metrics),
		}
	}
	return results, nil
}

// IdentifyPatterns re-scans the entire store for recurring-pain and
// problematic-system findings (spec.md §4.7) and replaces the persisted set
// for each pattern type wholesale.
func (a *Agent) IdentifyPatterns(ctx context.Context) ([]Pattern, error) {
	found, err := a.patterns.Identify(ctx)
	if err != nil {
		return nil, fmt.Errorf("consolida: identify patterns: %w", err)
	}

	byType := map[model.PatternType][]model.Pattern{
		model.PatternRecurringPain:     nil,
		model.PatternProblematicSystem: nil,
	}
	for _, p := range found {
		byType[p.PatternType] = append(byType[p.PatternType], p)
	}

	for pt, patterns := range byType {
		if err := a.store.ReplacePatterns(ctx, pt, patterns); err != nil {
			return nil, fmt.Errorf("consolida: replace %s patterns: %w", pt, err)
		}
	}

	out := make([]Pattern, len(found))
	for i, p := range found {
		out[i] = patternFromModel(p)
	}
	return out, nil
}

// Rollback reverses a consolidation, restoring the pre-merge entity
// snapshots and redirecting relationship endpoints (spec.md §4.11).
func (a *Agent) Rollback(ctx context.Context, auditID uuid.UUID, reason string) error {
	return a.rollbacks.Rollback(ctx, auditID, reason)
}

// Metrics returns a snapshot of the cumulative metrics across every
// Consolidate/ConsolidateBatch call made through this Agent.
func (a *Agent) Metrics() MetricsSnapshot {
	return metricsFromInternal(a.metrics.Snapshot())
}
