// Package pattern batch-scans the entire entity store for recurring-pain and
// problematic-system findings (spec.md §4.7).
package pattern

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/normalize"
	"github.com/entrevista-ai/consolida/internal/textsim"
)

// Options holds the tunable constants from spec.md §6.4.
type Options struct {
	RecurringPainThreshold     int     // default 3
	ProblematicSystemThreshold int     // default 5
	HighPriorityFrequency      float64 // default 0.30
}

// DefaultOptions returns spec.md §6.4's defaults.
func DefaultOptions() Options {
	return Options{
		RecurringPainThreshold:     3,
		ProblematicSystemThreshold: 5,
		HighPriorityFrequency:      0.30,
	}
}

// Store is the subset of storage.Store the recognizer needs. Declared here
// (rather than importing internal/storage) to keep this package's
// dependency surface a pure leaf, matching the port-segregation discipline
// the teacher uses for its own PairwiseScorer/CandidateFinder interfaces.
type Store interface {
	GetEntitiesByType(ctx context.Context, t model.EntityType, limit int) ([]model.Entity, error)
	GetTotalInterviewCount(ctx context.Context) (int, error)
}

// Recognizer identifies store-wide patterns.
type Recognizer struct {
	opts  Options
	store Store
}

// New constructs a Recognizer.
func New(opts Options, store Store) *Recognizer { return &Recognizer{opts: opts, store: store} }

// Identify implements spec.md §4.7: runs over the entire store and emits
// recurring_pain and problematic_system findings. The caller replaces any
// existing Pattern rows of the same pattern_type wholesale with the output.
func (r *Recognizer) Identify(ctx context.Context) ([]model.Pattern, error) {
	total, err := r.store.GetTotalInterviewCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("pattern: get total interview count: %w", err)
	}

	var patterns []model.Pattern

	painPatterns, err := r.recurringPain(ctx, total)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, painPatterns...)

	systemPatterns, err := r.problematicSystems(ctx, total)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, systemPatterns...)

	return patterns, nil
}

func (r *Recognizer) recurringPain(ctx context.Context, totalInterviews int) ([]model.Pattern, error) {
	painPoints, err := r.store.GetEntitiesByType(ctx, model.EntityTypePainPoint, 0)
	if err != nil {
		return nil, fmt.Errorf("pattern: get pain points: %w", err)
	}

	threshold := r.opts.RecurringPainThreshold
	if threshold <= 0 {
		threshold = 3
	}

	var out []model.Pattern
	for _, e := range painPoints {
		if e.SourceCount < threshold {
			continue
		}
		freq := frequency(e.SourceCount, totalInterviews)
		out = append(out, model.Pattern{
			ID:               uuid.New(),
			PatternType:      model.PatternRecurringPain,
			EntityType:       model.EntityTypePainPoint,
			EntityID:         e.ID,
			PatternFrequency: freq,
			SourceCount:      e.SourceCount,
			HighPriority:     freq >= r.highPriorityFrequency(),
			Description:      e.Name,
			DetectedAt:       time.Now().UTC(),
		})
	}
	return out, nil
}

func (r *Recognizer) problematicSystems(ctx context.Context, totalInterviews int) ([]model.Pattern, error) {
	systems, err := r.store.GetEntitiesByType(ctx, model.EntityTypeSystem, 0)
	if err != nil {
		return nil, fmt.Errorf("pattern: get systems: %w", err)
	}
	painPoints, err := r.store.GetEntitiesByType(ctx, model.EntityTypePainPoint, 0)
	if err != nil {
		return nil, fmt.Errorf("pattern: get pain points for systems: %w", err)
	}

	threshold := r.opts.ProblematicSystemThreshold
	if threshold <= 0 {
		threshold = 5
	}

	var out []model.Pattern
	for _, sys := range systems {
		sysName, err := normalize.Name(sys.Name, model.EntityTypeSystem)
		if err != nil {
			continue
		}

		flaggedInterviews := make(map[string]bool)
		for _, pp := range painPoints {
			desc := normalize.Text(pp.Description)
			if textsim.WholeTokenMatch(desc, sysName) || textsim.PrefixMatch(desc, sysName, 4) {
				for _, iv := range pp.MentionedInInterviews {
					flaggedInterviews[iv] = true
				}
			}
		}
		for _, c := range sys.ContradictionDetails {
			for _, iv := range c.SourceInterviews {
				flaggedInterviews[iv] = true
			}
		}

		if len(flaggedInterviews) < threshold {
			continue
		}
		freq := frequency(len(flaggedInterviews), totalInterviews)
		out = append(out, model.Pattern{
			ID:               uuid.New(),
			PatternType:      model.PatternProblematicSystem,
			EntityType:       model.EntityTypeSystem,
			EntityID:         sys.ID,
			PatternFrequency: freq,
			SourceCount:      len(flaggedInterviews),
			HighPriority:     freq >= r.highPriorityFrequency(),
			Description:      sys.Name,
			DetectedAt:       time.Now().UTC(),
		})
	}
	return out, nil
}

func (r *Recognizer) highPriorityFrequency() float64 {
	if r.opts.HighPriorityFrequency <= 0 {
		return 0.30
	}
	return r.opts.HighPriorityFrequency
}

func frequency(sourceCount, totalInterviews int) float64 {
	if totalInterviews <= 0 {
		return 0
	}
	return float64(sourceCount) / float64(totalInterviews)
}
