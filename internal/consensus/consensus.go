// Package consensus computes per-entity confidence from source count,
// attribute agreement, and contradictions (spec.md §4.5).
package consensus

import "github.com/entrevista-ai/consolida/internal/model"

// Options holds the tunable constants from spec.md §6.4.
type Options struct {
	SourceCountDivisor      float64 // default 5
	SingleSourcePenalty     float64 // default 0.3
	BonusPerAttribute       float64 // default 0.05
	MaxAgreementBonus       float64 // default 0.3
	PenaltyPerContradiction float64 // default 0.25
}

// DefaultOptions returns spec.md §6.4's defaults.
func DefaultOptions() Options {
	return Options{
		SourceCountDivisor:      5,
		SingleSourcePenalty:     0.3,
		BonusPerAttribute:       0.05,
		MaxAgreementBonus:       0.3,
		PenaltyPerContradiction: 0.25,
	}
}

// Scorer computes consensus confidence.
type Scorer struct {
	opts Options
}

// New constructs a Scorer.
func New(opts Options) *Scorer { return &Scorer{opts: opts} }

// Confidence implements spec.md §4.5's eight steps exactly, including the
// total_sources_hint-derived divisor cap and needs_review at the 0.6 cutoff.
func (s *Scorer) Confidence(entity model.Entity, totalSourcesHint int) (confidence float64, needsReview bool) {
	divisor := s.opts.SourceCountDivisor
	if totalSourcesHint > 0 {
		hintDivisor := float64(totalSourcesHint) / 4
		if hintDivisor < 1 {
			hintDivisor = 1
		}
		if hintDivisor < divisor {
			divisor = hintDivisor
		}
	}
	if divisor <= 0 {
		divisor = 1
	}

	base := float64(entity.SourceCount) / divisor
	if base > 1.0 {
		base = 1.0
	}

	var singleSourcePenalty float64
	if entity.SourceCount == 1 {
		singleSourcePenalty = s.opts.SingleSourcePenalty
	}

	agreements := countAgreements(entity.Attributes)
	agreementBonus := float64(agreements) * s.opts.BonusPerAttribute
	if agreementBonus > s.opts.MaxAgreementBonus {
		agreementBonus = s.opts.MaxAgreementBonus
	}

	contradictionPenalty := float64(len(entity.ContradictionDetails)) * s.opts.PenaltyPerContradiction

	raw := base + agreementBonus - contradictionPenalty - singleSourcePenalty
	confidence = clamp(raw, 0.0, 1.0)
	needsReview = confidence < 0.6
	return confidence, needsReview
}

// countAgreements is the documented fallback proxy for per-attribute
// source-tracking (spec.md §4.5, §9): since per-attribute provenance is not
// part of the data model, an attribute with a single non-empty value counts
// as agreement. Named so true per-attribute tracking can replace it later
// without touching call sites.
func countAgreements(attrs map[string]model.AttributeValue) int {
	n := 0
	for _, v := range attrs {
		if !isEmpty(v) {
			n++
		}
	}
	return n
}

func isEmpty(v model.AttributeValue) bool {
	switch v.Kind {
	case model.AttributeString:
		return v.String == ""
	case model.AttributeSequence:
		return len(v.Sequence) == 0
	default:
		return false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
