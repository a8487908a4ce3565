// Package consolida is the public facade for the interview
// business-intelligence consolidation engine.
//
// Construct an Agent with New(), feed it one interview's extracted
// entities at a time via Consolidate, and periodically call
// IdentifyPatterns to refresh store-wide findings. Public types here
// (Entity, Relationship, Pattern, Contradiction, AuditRecord,
// ConsolidationInput, ConsolidationOutput) are standalone structs declared
// in this file without internal/* imports; conversion helpers between these
// and internal/model live in convert.go. The package as a whole still
// imports internal packages (consolida.go, embedding_adapter.go), so
// depending on it also brings in their pgx/pgvector dependencies.
package consolida

import (
	"time"

	"github.com/google/uuid"
)

// EntityType is one of the closed set of business-intelligence entity
// tags recognized by the engine.
type EntityType string

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
)

// AttributeValue is a string, a number, or an ordered sequence of either —
// the public mirror of internal/model.AttributeValue.
type AttributeValue struct {
	Kind     string // "string" | "number" | "sequence"
	String   string
	Number   float64
	Sequence []AttributeValue
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
	PatternRecurringPain     PatternType = "recurring_pain"
	PatternProblematicSystem PatternType = "problematic_system"
)

// Pattern is a store-wide finding derived from aggregate provenance.
type Pattern struct {
	ID               uuid.UUID
	PatternType      PatternType
	EntityType       EntityType
	EntityID         uuid.UUID
	PatternFrequency float64
	SourceCount      int
	HighPriority     bool
	Description      string
	DetectedAt       time.Time
}

// AuditRecord identifies which entities were merged into which, with enough
// provenance to reverse the operation via Rollback.
type AuditRecord struct {
	ID                uuid.UUID
	EntityType        EntityType
	MergedEntityIDs   []uuid.UUID
	ResultingEntityID uuid.UUID
	SimilarityScore   float64
	ConsolidatedAt    time.Time
	RolledBackAt      *time.Time
	RollbackReason    *string
}

// ConsolidationInput is one interview's freshly extracted entities, per
// spec.md §6.1.
type ConsolidationInput struct {
	InterviewID    string
	EntitiesByType map[EntityType][]Entity
}

// ConsolidationOutput is the resulting entity ids per type, in processing
// order, plus a metrics snapshot, per spec.md §6.2.
type ConsolidationOutput struct {
	ResultingIDsByType map[EntityType][]uuid.UUID
	Metrics            MetricsSnapshot
}

// MetricsSnapshot is the public mirror of internal/metrics.Snapshot.
type MetricsSnapshot struct {
	DuplicatesFound        int64
	EntitiesInserted       int64
	EntitiesMerged         int64
	ContradictionsRecorded int64
	RelationshipsEmitted   int64
	RelationshipsUpdated   int64

	EmbeddingCacheHits        int64
	EmbeddingCacheMisses      int64
	EmbeddingUpstreamFailures int64
	EmbeddingCircuitOpens     int64

	StageWallTime map[string]time.Duration

	AverageConfidence       float64
	DuplicateReductionRatio float64
	ContradictionRate       float64
}
