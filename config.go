package consolida

import (
	"errors"
	"fmt"
	"time"
)

// Config is the single configuration value object described in spec.md
// §6.4. It holds plain values only; unlike the teacher's internal/config,
// nothing here is read from the environment or a file — the caller builds
// one explicitly (by embedding, this package has no opinion on where a
// deployment sources its numbers from).
type Config struct {
	// Thresholds holds the per-type duplicate-detection cutoff T(type).
	// DefaultConfig populates spec.md §6.4's defaults; three types the spec
	// text leaves unlisted (decision_point, knowledge_gap, success_pattern)
	// fall back to 0.75, the same value used for the "ordinary" tiers
	// (system, process, automation_candidate) — see DESIGN.md.
	Thresholds map[EntityType]float64

	NameWeight            float64 // default 0.7
	SemanticWeight        float64 // default 0.3
	SkipSemanticThreshold float64 // default 0.95
	MaxCandidates         int     // default 10

	SourceCountDivisor      float64 // default 5
	SingleSourcePenalty     float64 // default 0.3
	BonusPerAttribute       float64 // default 0.05
	MaxAgreementBonus       float64 // default 0.3
	PenaltyPerContradiction float64 // default 0.25

	RecurringPainThreshold     int     // default 3
	ProblematicSystemThreshold int     // default 5
	HighPriorityFrequency      float64 // default 0.30

	MaxRetries              int           // default 3
	CircuitThreshold        int           // default 10
	EmbeddingTimeout        time.Duration // default 30s
	ConsolidationTimeout    time.Duration // default 5m, not in spec §6.4 but required by Agent
	MaxWorkers              int           // default 4, cross-interview batch concurrency

	ContradictionSimilarityThreshold float64 // default 0.7
}

// DefaultConfig returns spec.md §6.4's documented defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[EntityType]float64{
			EntityTypePainPoint:    0.70,
			EntityTypeInefficiency: 0.70,
			EntityTypeFailureMode:  0.70,

			EntityTypeSystem:              0.75,
			EntityTypeProcess:             0.75,
			EntityTypeAutomationCandidate: 0.75,
			EntityTypeDecisionPoint:       0.75,
			EntityTypeKnowledgeGap:        0.75,
			EntityTypeSuccessPattern:      0.75,

			EntityTypeDataFlow:         0.80,
			EntityTypeBudgetConstraint: 0.80,

			EntityTypeKPI:                  0.85,
			EntityTypeCommunicationChannel: 0.85,
			EntityTypeTemporalPattern:      0.85,
			EntityTypeExternalDependency:   0.85,

			EntityTypeTeamStructure: 0.90,
		},

		NameWeight:            0.7,
		SemanticWeight:        0.3,
		SkipSemanticThreshold: 0.95,
		MaxCandidates:         10,

		SourceCountDivisor:      5,
		SingleSourcePenalty:     0.3,
		BonusPerAttribute:       0.05,
		MaxAgreementBonus:       0.3,
		PenaltyPerContradiction: 0.25,

		RecurringPainThreshold:     3,
		ProblematicSystemThreshold: 5,
		HighPriorityFrequency:      0.30,

		MaxRetries:           3,
		CircuitThreshold:     10,
		EmbeddingTimeout:     30 * time.Second,
		ConsolidationTimeout: 5 * time.Minute,
		MaxWorkers:           4,

		ContradictionSimilarityThreshold: 0.7,
	}
}

// Validate checks Config for internally inconsistent values, accumulating
// every problem found rather than stopping at the first (matching
// the style of the teacher's internal/config.Load).
func (c Config) Validate() error {
	var errs []error

	for t, v := range c.Thresholds {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("threshold for %q out of [0,1]: %v", t, v))
		}
	}
	if c.NameWeight < 0 || c.SemanticWeight < 0 {
		errs = append(errs, errors.New("name_weight and semantic_weight must be non-negative"))
	}
	if c.NameWeight+c.SemanticWeight == 0 {
		errs = append(errs, errors.New("name_weight and semantic_weight cannot both be zero"))
	}
	if c.MaxCandidates <= 0 {
		errs = append(errs, errors.New("max_candidates must be positive"))
	}
	if c.SourceCountDivisor <= 0 {
		errs = append(errs, errors.New("source_count_divisor must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries cannot be negative"))
	}
	if c.CircuitThreshold <= 0 {
		errs = append(errs, errors.New("circuit_threshold must be positive"))
	}
	if c.EmbeddingTimeout <= 0 {
		errs = append(errs, errors.New("embedding_timeout_seconds must be positive"))
	}
	if c.MaxWorkers <= 0 {
		errs = append(errs, errors.New("max_workers must be positive"))
	}

	return errors.Join(errs...)
}
