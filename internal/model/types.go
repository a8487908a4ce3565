// Package model defines the core data types of the consolidation engine:
// entities, relationships, patterns, audit records, and snapshots.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EntityType is one of the closed set of business-intelligence entity tags.
type EntityType string

// The closed set of entity types. Any operation referencing a type outside
// this set fails with ErrInvalidEntityType before touching the store.
const (
	EntityTypePainPoint            EntityType = "pain_point"
	EntityTypeProcess              EntityType = "process"
	EntityTypeSystem               EntityType = "system"
	EntityTypeKPI                  EntityType = "kpi"
	EntityTypeAutomationCandidate  EntityType = "automation_candidate"
	EntityTypeInefficiency         EntityType = "inefficiency"
	EntityTypeCommunicationChannel EntityType = "communication_channel"
	EntityTypeDecisionPoint        EntityType = "decision_point"
	EntityTypeDataFlow             EntityType = "data_flow"
	EntityTypeTemporalPattern      EntityType = "temporal_pattern"
	EntityTypeFailureMode          EntityType = "failure_mode"
	EntityTypeTeamStructure        EntityType = "team_structure"
	EntityTypeKnowledgeGap         EntityType = "knowledge_gap"
	EntityTypeSuccessPattern       EntityType = "success_pattern"
	EntityTypeBudgetConstraint     EntityType = "budget_constraint"
	EntityTypeExternalDependency   EntityType = "external_dependency"
	EntityTypeRelationship         EntityType = "relationship"
	EntityTypePattern              EntityType = "pattern"
)

// entityTypes is the closed set used for validation. Adding a type requires
// touching this set, the threshold table, and (if relevant) the
// relationship rules — see spec.md §9.
var entityTypes = map[EntityType]bool{
	EntityTypePainPoint:            true,
	EntityTypeProcess:              true,
	EntityTypeSystem:               true,
	EntityTypeKPI:                  true,
	EntityTypeAutomationCandidate:  true,
	EntityTypeInefficiency:         true,
	EntityTypeCommunicationChannel: true,
	EntityTypeDecisionPoint:        true,
	EntityTypeDataFlow:             true,
	EntityTypeTemporalPattern:      true,
	EntityTypeFailureMode:          true,
	EntityTypeTeamStructure:        true,
	EntityTypeKnowledgeGap:         true,
	EntityTypeSuccessPattern:       true,
	EntityTypeBudgetConstraint:     true,
	EntityTypeExternalDependency:   true,
	EntityTypeRelationship:         true,
	EntityTypePattern:              true,
}

// IsValid reports whether t belongs to the closed entity type set.
func (t EntityType) IsValid() bool {
	return entityTypes[t]
}

// AttributeKind tags the variant held by an AttributeValue.
type AttributeKind int

const (
	AttributeString AttributeKind = iota
	AttributeNumber
	AttributeSequence
)

// AttributeValue is the statically-typed realization of the spec's dynamic
// attribute map: a string, a number, or an ordered sequence of either.
// Exactly one of the fields is meaningful, selected by Kind.
type AttributeValue struct {
	Kind     AttributeKind
	String   string
	Number   float64
	Sequence []AttributeValue
}

// StringValue builds a string attribute value.
func StringValue(s string) AttributeValue { return AttributeValue{Kind: AttributeString, String: s} }

// NumberValue builds a numeric attribute value.
func NumberValue(n float64) AttributeValue { return AttributeValue{Kind: AttributeNumber, Number: n} }

// SequenceValue builds a sequence attribute value.
func SequenceValue(vs ...AttributeValue) AttributeValue {
	return AttributeValue{Kind: AttributeSequence, Sequence: vs}
}

// Equal reports whether two attribute values are equal under the merge
// rules in spec.md §4.4: numbers compare by equality, strings by normalized
// (trimmed, whitespace-collapsed) equality, and sequences by set equality.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case AttributeNumber:
		return v.Number == o.Number
	case AttributeString:
		return normalizeForEquality(v.String) == normalizeForEquality(o.String)
	case AttributeSequence:
		return sequenceSetEqual(v.Sequence, o.Sequence)
	default:
		return false
	}
}

func sequenceSetEqual(a, b []AttributeValue) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, av := range a {
		found := false
		for i, bv := range b {
			if used[i] {
				continue
			}
			if av.Equal(bv) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Contradiction records a per-attribute disagreement between sources.
type Contradiction struct {
	Attribute        string
	Values           []AttributeValue
	SourceInterviews []string
	Similarity       float64
}

// Entity is a typed business-intelligence record consolidated from one or
// more interviews.
type Entity struct {
	ID          uuid.UUID
	Type        EntityType
	Name        string
	Description string
	Attributes  map[string]AttributeValue

	Company      string
	BusinessUnit string
	Department   string

	MentionedInInterviews []string
	SourceCount           int
	FirstMentionedAt      time.Time
	LastMentionedAt       time.Time
	MergedEntityIDs       []uuid.UUID

	IsConsolidated       bool
	ConsensusConfidence  float64
	NeedsReview          bool
	HasContradictions    bool
	ContradictionDetails []Contradiction
	ConsolidatedAt       time.Time

	EmbeddingVector   *pgvector.Vector
	EmbeddingTextHash string

	// ContentHash is a SHA-256 digest of the entity's core fields,
	// recomputed on every merge. RollbackService does not read it; snapshot
	// integrity is checked against AuditRecord.SnapshotRootHash.
	ContentHash string
}

// RelationshipType is the closed set of relationship edge labels.
type RelationshipType string

const (
	RelationshipCauses   RelationshipType = "causes"
	RelationshipUses     RelationshipType = "uses"
	RelationshipMeasures RelationshipType = "measures"
	RelationshipAddress  RelationshipType = "addresses"
)

// Relationship is a typed directed edge between two co-occurring entities.
type Relationship struct {
	ID                    uuid.UUID
	SourceEntityID        uuid.UUID
	SourceEntityType      EntityType
	TargetEntityID        uuid.UUID
	TargetEntityType      EntityType
	RelationshipType      RelationshipType
	Strength              float64
	MentionedInInterviews []string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PatternType is the closed set of store-wide finding kinds.
type PatternType string

const (
	PatternRecurringPain       PatternType = "recurring_pain"
	PatternProblematicSystem   PatternType = "problematic_system"
)

// Pattern is a store-wide finding derived from aggregate provenance.
type Pattern struct {
	ID              uuid.UUID
	PatternType     PatternType
	EntityType      EntityType
	EntityID        uuid.UUID
	PatternFrequency float64
	SourceCount     int
	HighPriority    bool
	Description     string
	DetectedAt      time.Time
}

// AuditRecord is the append-only log entry identifying which entities were
// merged into which, with enough provenance to reverse the operation.
type AuditRecord struct {
	ID                uuid.UUID
	EntityType        EntityType
	MergedEntityIDs   []uuid.UUID
	ResultingEntityID uuid.UUID
	SimilarityScore   float64
	ConsolidatedAt    time.Time
	RolledBackAt      *time.Time
	RollbackReason    *string

	// SnapshotRootHash is the Merkle root over the content hashes of every
	// EntitySnapshot captured for this audit record, recomputed and checked
	// by RollbackService before any snapshot is restored.
	SnapshotRootHash string
}

// EntitySnapshot is the pre-merge serialized state of an entity, captured
// so rollback can restore it.
type EntitySnapshot struct {
	ID                   uuid.UUID
	EntityType           EntityType
	EntityID             uuid.UUID
	SerializedEntityState []byte
	AuditID              uuid.UUID
	CreatedAt            time.Time
}
