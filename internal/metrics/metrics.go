// Package metrics implements MetricsRegistry (spec.md §4.10): in-memory
// per-consolidation counters and stage timers, exportable as a flat record.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Stage names for wall-time accumulation.
const (
	StageDetector   = "detector"
	StageMerger     = "merger"
	StageScorer     = "scorer"
	StageDiscoverer = "discoverer"
)

// Snapshot is a flat, JSON-serializable record of every counter and timer,
// plus the post-run aggregates spec.md §4.10 requires.
type Snapshot struct {
	DuplicatesFound         int64 `json:"duplicates_found"`
	EntitiesInserted        int64 `json:"entities_inserted"`
	EntitiesMerged          int64 `json:"entities_merged"`
	ContradictionsRecorded  int64 `json:"contradictions_recorded"`
	RelationshipsEmitted    int64 `json:"relationships_emitted"`
	RelationshipsUpdated    int64 `json:"relationships_updated"`

	EmbeddingCacheHits         int64 `json:"embedding_cache_hits"`
	EmbeddingCacheMisses       int64 `json:"embedding_cache_misses"`
	EmbeddingUpstreamFailures  int64 `json:"embedding_upstream_failures"`
	EmbeddingCircuitOpens      int64 `json:"embedding_circuit_opens"`

	StageWallTime map[string]time.Duration `json:"stage_wall_time"`

	AverageConfidence      float64 `json:"average_confidence"`
	DuplicateReductionRatio float64 `json:"duplicate_reduction_ratio"`
	ContradictionRate      float64 `json:"contradiction_rate"`
}

// Registry accumulates counters and timers across one or more Consolidate
// calls. Safe for concurrent use by the agent's per-interview worker pool.
type Registry struct {
	mu sync.Mutex

	duplicatesFound        int64
	entitiesInserted       int64
	entitiesMerged         int64
	contradictionsRecorded int64
	relationshipsEmitted   int64
	relationshipsUpdated   int64

	embeddingCacheHits        int64
	embeddingCacheMisses      int64
	embeddingUpstreamFailures int64
	embeddingCircuitOpens     int64

	stageWallTime map[string]time.Duration

	confidenceSum   float64
	confidenceCount int64
	entitiesSeen    int64 // sourced entities before dedup, for duplicate_reduction_ratio

	meter        metric.Meter
	otelCounters map[string]metric.Int64Counter
}

// New constructs an empty Registry. meter may be nil, in which case no OTEL
// mirroring happens (spec.md's "no live streaming requirement" default).
func New(meter metric.Meter) *Registry {
	r := &Registry{
		stageWallTime: make(map[string]time.Duration),
		meter:         meter,
		otelCounters:  make(map[string]metric.Int64Counter),
	}
	return r
}

func (r *Registry) incr(name string, field *int64, n int64) {
	r.mu.Lock()
	*field += n
	r.mu.Unlock()
	r.mirrorOTEL(name, n)
}

func (r *Registry) mirrorOTEL(name string, n int64) {
	if r.meter == nil {
		return
	}
	r.mu.Lock()
	c, ok := r.otelCounters[name]
	if !ok {
		var err error
		c, err = r.meter.Int64Counter("consolida_" + name)
		if err == nil {
			r.otelCounters[name] = c
		}
	}
	r.mu.Unlock()
	if c != nil {
		c.Add(context.Background(), n)
	}
}

func (r *Registry) AddDuplicatesFound(n int64)        { r.incr("duplicates_found", &r.duplicatesFound, n) }
func (r *Registry) AddEntitiesInserted(n int64)       { r.incr("entities_inserted", &r.entitiesInserted, n) }
func (r *Registry) AddEntitiesMerged(n int64)         { r.incr("entities_merged", &r.entitiesMerged, n) }
func (r *Registry) AddContradictionsRecorded(n int64) {
	r.incr("contradictions_recorded", &r.contradictionsRecorded, n)
}
func (r *Registry) AddRelationshipsEmitted(n int64) {
	r.incr("relationships_emitted", &r.relationshipsEmitted, n)
}
func (r *Registry) AddRelationshipsUpdated(n int64) {
	r.incr("relationships_updated", &r.relationshipsUpdated, n)
}
func (r *Registry) AddEmbeddingCacheHits(n int64) {
	r.incr("embedding_cache_hits", &r.embeddingCacheHits, n)
}
func (r *Registry) AddEmbeddingCacheMisses(n int64) {
	r.incr("embedding_cache_misses", &r.embeddingCacheMisses, n)
}
func (r *Registry) AddEmbeddingUpstreamFailures(n int64) {
	r.incr("embedding_upstream_failures", &r.embeddingUpstreamFailures, n)
}
func (r *Registry) AddEmbeddingCircuitOpens(n int64) {
	r.incr("embedding_circuit_opens", &r.embeddingCircuitOpens, n)
}

// RecordEntitySeen tracks one more raw (pre-dedup) entity, for
// duplicate_reduction_ratio.
func (r *Registry) RecordEntitySeen() {
	r.mu.Lock()
	r.entitiesSeen++
	r.mu.Unlock()
}

// RecordConfidence folds a post-merge confidence score into the running
// average for the post-run aggregate.
func (r *Registry) RecordConfidence(c float64) {
	r.mu.Lock()
	r.confidenceSum += c
	r.confidenceCount++
	r.mu.Unlock()
}

// Stage times fn and accumulates its wall time under the named stage.
func (r *Registry) Stage(name string, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	r.mu.Lock()
	r.stageWallTime[name] += elapsed
	r.mu.Unlock()
}

// Snapshot exports every counter and timer plus the post-run aggregates.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	stageCopy := make(map[string]time.Duration, len(r.stageWallTime))
	for k, v := range r.stageWallTime {
		stageCopy[k] = v
	}

	var avgConfidence float64
	if r.confidenceCount > 0 {
		avgConfidence = r.confidenceSum / float64(r.confidenceCount)
	}

	var reductionRatio float64
	if r.entitiesSeen > 0 {
		consolidated := r.entitiesSeen - r.entitiesInserted
		reductionRatio = float64(consolidated) / float64(r.entitiesSeen)
	}

	var contradictionRate float64
	if r.entitiesMerged > 0 {
		contradictionRate = float64(r.contradictionsRecorded) / float64(r.entitiesMerged)
	}

	return Snapshot{
		DuplicatesFound:           r.duplicatesFound,
		EntitiesInserted:          r.entitiesInserted,
		EntitiesMerged:            r.entitiesMerged,
		ContradictionsRecorded:    r.contradictionsRecorded,
		RelationshipsEmitted:      r.relationshipsEmitted,
		RelationshipsUpdated:      r.relationshipsUpdated,
		EmbeddingCacheHits:        r.embeddingCacheHits,
		EmbeddingCacheMisses:      r.embeddingCacheMisses,
		EmbeddingUpstreamFailures: r.embeddingUpstreamFailures,
		EmbeddingCircuitOpens:     r.embeddingCircuitOpens,
		StageWallTime:             stageCopy,
		AverageConfidence:         avgConfidence,
		DuplicateReductionRatio:   reductionRatio,
		ContradictionRate:         contradictionRate,
	}
}
