// Package merge combines a newly extracted entity into an existing one,
// tracking provenance and recording contradictions (spec.md §4.4).
package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/textsim"
)

// Scorer recomputes consensus confidence for a merged entity. Satisfied by
// *consensus.Scorer; declared here to avoid an import cycle (consensus
// depends on model only, merge depends on consensus in practice via the
// agent wiring these together, not via this package importing consensus).
type Scorer interface {
	Confidence(entity model.Entity, totalSourcesHint int) (confidence float64, needsReview bool)
}

// Options configures contradiction detection.
type Options struct {
	ContradictionSimilarityThreshold float64 // default 0.7
}

// DefaultOptions returns spec.md §6.4's default.
func DefaultOptions() Options {
	return Options{ContradictionSimilarityThreshold: 0.7}
}

// Merger produces the post-merge state of an existing entity absorbing a
// newly extracted one. Merge is pure with respect to its inputs; persisting
// the result is the caller's responsibility.
type Merger struct {
	opts   Options
	scorer Scorer
}

// New constructs a Merger.
func New(opts Options, scorer Scorer) *Merger {
	return &Merger{opts: opts, scorer: scorer}
}

// Merge implements spec.md §4.4's five steps exactly.
func (m *Merger) Merge(newEntity, existing model.Entity, interviewID string, totalSourcesHint int) model.Entity {
	merged := existing

	merged.Description = combineDescriptions(existing.Description, newEntity.Description)

	merged.Attributes, merged.ContradictionDetails = m.mergeAttributes(
		existing.Attributes, newEntity.Attributes,
		existing.ContradictionDetails,
		earliestInterview(existing.MentionedInInterviews), interviewID,
	)

	merged.MentionedInInterviews = appendUnique(existing.MentionedInInterviews, interviewID)
	merged.SourceCount = len(merged.MentionedInInterviews)
	if merged.FirstMentionedAt.IsZero() {
		merged.FirstMentionedAt = time.Now().UTC()
	}
	merged.LastMentionedAt = time.Now().UTC()
	merged.MergedEntityIDs = appendUniqueID(existing.MergedEntityIDs, newEntity.ID)

	merged.IsConsolidated = true
	merged.HasContradictions = len(merged.ContradictionDetails) > 0
	merged.ConsolidatedAt = time.Now().UTC()

	merged.ConsensusConfidence, merged.NeedsReview = m.scorer.Confidence(merged, totalSourcesHint)
	merged.ContentHash = contentHash(merged)

	return merged
}

// combineDescriptions splits both descriptions into Spanish-aware sentences
// and appends any new sentence not already present after whitespace
// normalization.
func combineDescriptions(existingDesc, newDesc string) string {
	existingSentences := textsim.SplitSentences(existingDesc)
	newSentences := textsim.SplitSentences(newDesc)

	seen := make(map[string]bool, len(existingSentences))
	for _, s := range existingSentences {
		seen[textsim.NormalizeSentence(s)] = true
	}

	result := append([]string{}, existingSentences...)
	for _, s := range newSentences {
		key := textsim.NormalizeSentence(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, s)
	}
	return strings.Join(result, " ")
}

// mergeAttributes implements spec.md §4.4 step 2: union of attribute keys,
// adopt-if-only-one-side, keep-if-equal, else keep existing and record a
// Contradiction when v_sim is strictly below the configured threshold.
func (m *Merger) mergeAttributes(
	existingAttrs, newAttrs map[string]model.AttributeValue,
	existingContradictions []model.Contradiction,
	earliestExistingInterview, newInterviewID string,
) (map[string]model.AttributeValue, []model.Contradiction) {
	merged := make(map[string]model.AttributeValue, len(existingAttrs)+len(newAttrs))
	for k, v := range existingAttrs {
		merged[k] = v
	}
	contradictions := append([]model.Contradiction{}, existingContradictions...)

	keys := make([]string, 0, len(existingAttrs)+len(newAttrs))
	seenKey := make(map[string]bool)
	for k := range existingAttrs {
		if !seenKey[k] {
			keys = append(keys, k)
			seenKey[k] = true
		}
	}
	for k := range newAttrs {
		if !seenKey[k] {
			keys = append(keys, k)
			seenKey[k] = true
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		ev, eok := existingAttrs[k]
		nv, nok := newAttrs[k]

		switch {
		case !eok && nok:
			merged[k] = nv
		case eok && !nok:
			merged[k] = ev
		case eok && nok:
			if ev.Equal(nv) {
				merged[k] = ev
				continue
			}
			sim := valueSimilarity(ev, nv)
			merged[k] = ev
			if sim < m.opts.ContradictionSimilarityThreshold {
				contradictions = append(contradictions, model.Contradiction{
					Attribute:        k,
					Values:           []model.AttributeValue{ev, nv},
					SourceInterviews: []string{earliestExistingInterview, newInterviewID},
					Similarity:       sim,
				})
			}
		}
	}

	return merged, contradictions
}

// valueSimilarity is v_sim from spec.md §4.4: 1.0 for equal numbers, 0.0 for
// unequal numbers, a fuzzy ratio for strings, and 0.0 for sequences (which
// are compared only by set equality upstream).
func valueSimilarity(a, b model.AttributeValue) float64 {
	if a.Kind != b.Kind {
		return 0.0
	}
	switch a.Kind {
	case model.AttributeNumber:
		if a.Number == b.Number {
			return 1.0
		}
		return 0.0
	case model.AttributeString:
		return textsim.Ratio(a.String, b.String)
	default:
		return 0.0
	}
}

func appendUnique(ss []string, v string) []string {
	for _, s := range ss {
		if s == v {
			return ss
		}
	}
	return append(ss, v)
}

func appendUniqueID(ids []uuid.UUID, v uuid.UUID) []uuid.UUID {
	for _, id := range ids {
		if id == v {
			return ids
		}
	}
	return append(ids, v)
}

func earliestInterview(mentioned []string) string {
	if len(mentioned) == 0 {
		return ""
	}
	return mentioned[0]
}

// contentHash computes a SHA-256 digest of the entity's ID, type, name,
// description, source count and mentioned interviews. It is stored on the
// entity only; RollbackService does not read it (its snapshot check uses
// AuditRecord.SnapshotRootHash).
func contentHash(e model.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%d|%v", e.ID, e.Type, e.Name, e.Description, e.SourceCount, e.MentionedInInterviews)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
