// Package relationship infers typed co-occurrence edges between entities
// extracted from a single interview (spec.md §4.6).
package relationship

import (
	"time"

	"github.com/google/uuid"

	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/normalize"
	"github.com/entrevista-ai/consolida/internal/textsim"
)

// edgeRule describes one of the four fixed typed-edge rules in spec.md §4.6.
type edgeRule struct {
	sourceType       model.EntityType
	targetType       model.EntityType
	relationshipType model.RelationshipType
	fullStrength     float64
	partialStrength  float64 // 0 disables partial matching for this rule
}

var rules = []edgeRule{
	{model.EntityTypeSystem, model.EntityTypePainPoint, model.RelationshipCauses, 0.8, 0.6},
	{model.EntityTypeProcess, model.EntityTypeSystem, model.RelationshipUses, 0.7, 0.5},
	{model.EntityTypeKPI, model.EntityTypeProcess, model.RelationshipMeasures, 0.7, 0},
	{model.EntityTypeAutomationCandidate, model.EntityTypePainPoint, model.RelationshipAddress, 0.8, 0},
}

// minPrefixChars is the minimum prefix length for a partial match (spec.md
// §4.6: "a prefix of at least 4 characters").
const minPrefixChars = 4

// Discoverer emits typed edges between co-occurring entities of one
// interview.
type Discoverer struct{}

// New constructs a Discoverer.
func New() *Discoverer { return &Discoverer{} }

// Discover implements spec.md §4.6: for each rule, match the source entity's
// normalized name as a word-boundary substring of the target entity's
// description, emitting causes/uses/measures/addresses edges at the
// specified strength tiers. entitiesByType holds only the entities produced
// in this single interview.
func (d *Discoverer) Discover(entitiesByType map[model.EntityType][]model.Entity, interviewID string) []model.Relationship {
	var out []model.Relationship
	now := time.Now().UTC()

	for _, rule := range rules {
		sources := entitiesByType[rule.sourceType]
		targets := entitiesByType[rule.targetType]
		for _, src := range sources {
			srcName, err := normalize.Name(src.Name, rule.sourceType)
			if err != nil {
				continue
			}
			for _, tgt := range targets {
				desc := normalize.Text(tgt.Description)
				strength := matchStrength(desc, srcName, rule)
				if strength == 0 {
					continue
				}
				out = append(out, model.Relationship{
					ID:                    uuid.New(),
					SourceEntityID:        src.ID,
					SourceEntityType:      rule.sourceType,
					TargetEntityID:        tgt.ID,
					TargetEntityType:      rule.targetType,
					RelationshipType:      rule.relationshipType,
					Strength:              strength,
					MentionedInInterviews: []string{interviewID},
					CreatedAt:             now,
					UpdatedAt:             now,
				})
			}
		}
	}

	return dedupe(out)
}

// matchStrength returns the rule's full-match strength if srcName appears
// whole-token in desc, the partial-match strength if at least minPrefixChars
// of srcName match as a word-boundary-anchored prefix, or 0 for no match.
func matchStrength(desc, srcName string, rule edgeRule) float64 {
	if textsim.WholeTokenMatch(desc, srcName) {
		return rule.fullStrength
	}
	if rule.partialStrength > 0 && textsim.PrefixMatch(desc, srcName, minPrefixChars) {
		return rule.partialStrength
	}
	return 0
}

// dedupe collapses duplicate edges discovered within a single pass (same
// source, target, and relationship type), matching spec.md §4.6.
func dedupe(rels []model.Relationship) []model.Relationship {
	type key struct {
		src, tgt uuid.UUID
		rt       model.RelationshipType
	}
	seen := make(map[key]int)
	out := make([]model.Relationship, 0, len(rels))
	for _, r := range rels {
		k := key{r.SourceEntityID, r.TargetEntityID, r.RelationshipType}
		if idx, ok := seen[k]; ok {
			if r.Strength > out[idx].Strength {
				out[idx].Strength = r.Strength
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Reconcile applies a re-discovered edge against a previously stored one per
// spec.md §4.6: union the interview id, strength = min(1.0, previous+0.2),
// refresh UpdatedAt. Monotonicity: strength never decreases and no interview
// id is ever removed. Re-discovery from an interview id already recorded on
// the edge (an idempotent re-ingestion, spec.md §8 property 6) is a pure
// no-op: it must not ratchet strength a second time for the same mention.
func Reconcile(previous, discovered model.Relationship) model.Relationship {
	noNewInterview := containsAll(previous.MentionedInInterviews, discovered.MentionedInInterviews)

	merged := previous
	merged.MentionedInInterviews = unionInterviews(previous.MentionedInInterviews, discovered.MentionedInInterviews)
	if noNewInterview {
		return merged
	}

	newStrength := previous.Strength + 0.2
	if newStrength > 1.0 {
		newStrength = 1.0
	}
	if newStrength > merged.Strength {
		merged.Strength = newStrength
	}
	merged.UpdatedAt = time.Now().UTC()
	return merged
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, s := range haystack {
		set[s] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
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
