// Package duplicate ranks existing entities as candidate duplicates of a
// newly extracted one (spec.md §4.3): a two-stage fuzzy-then-semantic
// pipeline.
package duplicate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/entrevista-ai/consolida/internal/embedding"
	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/normalize"
	"github.com/entrevista-ai/consolida/internal/textsim"
)

// Thresholds holds the per-type similarity cutoffs used in stage 1. Callers
// build this once from Config and pass it to every Detector call.
type Thresholds map[model.EntityType]float64

// Candidate is a ranked existing entity paired with its combined score.
type Candidate struct {
	Entity model.Entity
	Score  float64
}

// Options configures the detector's stage-2 and ranking behavior.
type Options struct {
	Thresholds            Thresholds
	NameWeight            float64 // default 0.7
	SemanticWeight        float64 // default 0.3
	SkipSemanticThreshold float64 // default 0.95
	MaxCandidates         int     // default 10
}

// DefaultOptions returns spec.md §6.4's default combination weights.
func DefaultOptions(thresholds Thresholds) Options {
	return Options{
		Thresholds:            thresholds,
		NameWeight:            0.7,
		SemanticWeight:        0.3,
		SkipSemanticThreshold: 0.95,
		MaxCandidates:         10,
	}
}

// Detector ranks existing entities as candidate duplicates of a new one.
type Detector struct {
	opts     Options
	embedder embedding.Provider
	logger   *slog.Logger
}

// New constructs a Detector. embedder may be nil, in which case the detector
// always operates in name-only mode.
func New(opts Options, embedder embedding.Provider, logger *slog.Logger) *Detector {
	return &Detector{opts: opts, embedder: embedder, logger: logger}
}

// FindDuplicates implements spec.md §4.3's algorithm exactly, including the
// fuzzy prefilter, candidate cap, semantic refinement, degraded-state
// fallback, and the source_count/id tie-break.
func (d *Detector) FindDuplicates(ctx context.Context, entity model.Entity, t model.EntityType, existing []model.Entity) ([]Candidate, error) {
	if !t.IsValid() {
		return nil, model.InvalidEntityTypeError(t)
	}
	if len(existing) == 0 {
		return nil, nil
	}

	threshold, ok := d.opts.Thresholds[t]
	if !ok {
		threshold = 0.75
	}

	q, err := normalize.Name(entity.Name, t)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entity model.Entity
		sName  float64
	}
	var survivors []scored
	for _, e := range existing {
		nq, err := normalize.Name(e.Name, t)
		if err != nil {
			continue
		}
		s := textsim.Ratio(q, nq)
		if s >= threshold {
			survivors = append(survivors, scored{entity: e, sName: s})
			d.logger.Debug("duplicate: stage1 candidate", "entity", e.Name, "s_name", s)
		}
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	sort.SliceStable(survivors, func(i, j int) bool { return survivors[i].sName > survivors[j].sName })
	maxCandidates := d.opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	if len(survivors) > maxCandidates {
		survivors = survivors[:maxCandidates]
	}

	degraded := d.embedder == nil
	var newText string
	var newVec []float32
	if !degraded {
		newText = embedding.Text(entity)
	}

	candidates := make([]Candidate, 0, len(survivors))
	for _, s := range survivors {
		combined := s.sName

		switch {
		case s.sName >= d.opts.SkipSemanticThreshold:
			// Stage 2 skipped: name similarity is already decisive.
		case degraded:
			// EmbeddingProvider unavailable: name-only, never raise.
		default:
			if newVec == nil {
				v, err := d.embedder.Embed(ctx, newText)
				if err != nil {
					if embedding.IsUnavailable(err) {
						degraded = true
						break
					}
					return nil, err
				}
				newVec = v.Slice()
			}
			candVec, err := d.embedder.Embed(ctx, embedding.Text(s.entity))
			if err != nil {
				if embedding.IsUnavailable(err) {
					degraded = true
					break
				}
				return nil, err
			}
			sSem := embedding.Cosine(newVec, candVec.Slice())
			nameW, semW := d.opts.NameWeight, d.opts.SemanticWeight
			combined = nameW*s.sName + semW*sSem
		}

		candidates = append(candidates, Candidate{Entity: s.entity, Score: combined})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Entity.SourceCount != candidates[j].Entity.SourceCount {
			return candidates[i].Entity.SourceCount > candidates[j].Entity.SourceCount
		}
		return candidates[i].Entity.ID.String() < candidates[j].Entity.ID.String()
	})

	return candidates, nil
}
