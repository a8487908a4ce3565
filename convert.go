package consolida

import (
	"github.com/entrevista-ai/consolida/internal/metrics"
	"github.com/entrevista-ai/consolida/internal/model"
)

func attrToModel(a AttributeValue) model.AttributeValue {
	switch a.Kind {
	case "number":
		return model.NumberValue(a.Number)
	case "sequence":
		seq := make([]model.AttributeValue, len(a.Sequence))
		for i, v := range a.Sequence {
			seq[i] = attrToModel(v)
		}
		return model.SequenceValue(seq...)
	default:
		return model.StringValue(a.String)
	}
}

func attrFromModel(a model.AttributeValue) AttributeValue {
	switch a.Kind {
	case model.AttributeNumber:
		return AttributeValue{Kind: "number", Number: a.Number}
	case model.AttributeSequence:
		seq := make([]AttributeValue, len(a.Sequence))
		for i, v := range a.Sequence {
			seq[i] = attrFromModel(v)
		}
		return AttributeValue{Kind: "sequence", Sequence: seq}
	default:
		return AttributeValue{Kind: "string", String: a.String}
	}
}

func attrsToModel(m map[string]AttributeValue) map[string]model.AttributeValue {
	if m == nil {
		return nil
	}
	out := make(map[string]model.AttributeValue, len(m))
	for k, v := range m {
		out[k] = attrToModel(v)
	}
	return out
}

func attrsFromModel(m map[string]model.AttributeValue) map[string]AttributeValue {
	if m == nil {
		return nil
	}
	out := make(map[string]AttributeValue, len(m))
	for k, v := range m {
		out[k] = attrFromModel(v)
	}
	return out
}

func contradictionToModel(c Contradiction) model.Contradiction {
	values := make([]model.AttributeValue, len(c.Values))
	for i, v := range c.Values {
		values[i] = attrToModel(v)
	}
	return model.Contradiction{
		Attribute:        c.Attribute,
		Values:           values,
		SourceInterviews: c.SourceInterviews,
		Similarity:       c.Similarity,
	}
}

func contradictionFromModel(c model.Contradiction) Contradiction {
	values := make([]AttributeValue, len(c.Values))
	for i, v := range c.Values {
		values[i] = attrFromModel(v)
	}
	return Contradiction{
		Attribute:        c.Attribute,
		Values:           values,
		SourceInterviews: c.SourceInterviews,
		Similarity:       c.Similarity,
	}
}

func entityToModel(e Entity) model.Entity {
	contradictions := make([]model.Contradiction, len(e.ContradictionDetails))
	for i, c := range e.ContradictionDetails {
		contradictions[i] = contradictionToModel(c)
	}
	return model.Entity{
		ID:          e.ID,
		Type:        model.EntityType(e.Type),
		Name:        e.Name,
		Description: e.Description,
		Attributes:  attrsToModel(e.Attributes),

		Company:      e.Company,
		BusinessUnit: e.BusinessUnit,
		Department:   e.Department,

		MentionedInInterviews: e.MentionedInInterviews,
		SourceCount:           e.SourceCount,
		FirstMentionedAt:      e.FirstMentionedAt,
		LastMentionedAt:       e.LastMentionedAt,
		MergedEntityIDs:       e.MergedEntityIDs,

		IsConsolidated:       e.IsConsolidated,
		ConsensusConfidence:  e.ConsensusConfidence,
		NeedsReview:          e.NeedsReview,
		HasContradictions:    e.HasContradictions,
		ContradictionDetails: contradictions,
		ConsolidatedAt:       e.ConsolidatedAt,

		ContentHash: e.ContentHash,
	}
}

func entityFromModel(e model.Entity) Entity {
	contradictions := make([]Contradiction, len(e.ContradictionDetails))
	for i, c := range e.ContradictionDetails {
		contradictions[i] = contradictionFromModel(c)
	}
	return Entity{
		ID:          e.ID,
		Type:        EntityType(e.Type),
		Name:        e.Name,
		Description: e.Description,
		Attributes:  attrsFromModel(e.Attributes),

		Company:      e.Company,
		BusinessUnit: e.BusinessUnit,
		Department:   e.Department,

		MentionedInInterviews: e.MentionedInInterviews,
		SourceCount:           e.SourceCount,
		FirstMentionedAt:      e.FirstMentionedAt,
		LastMentionedAt:       e.LastMentionedAt,
		MergedEntityIDs:       e.MergedEntityIDs,

		IsConsolidated:       e.IsConsolidated,
		ConsensusConfidence:  e.ConsensusConfidence,
		NeedsReview:          e.NeedsReview,
		HasContradictions:    e.HasContradictions,
		ContradictionDetails: contradictions,
		ConsolidatedAt:       e.ConsolidatedAt,

		ContentHash: e.ContentHash,
	}
}

func patternFromModel(p model.Pattern) Pattern {
	return Pattern{
		ID:               p.ID,
		PatternType:      PatternType(p.PatternType),
		EntityType:       EntityType(p.EntityType),
		EntityID:         p.EntityID,
		PatternFrequency: p.PatternFrequency,
		SourceCount:      p.SourceCount,
		HighPriority:     p.HighPriority,
		Description:      p.Description,
		DetectedAt:       p.DetectedAt,
	}
}

func auditFromModel(a model.AuditRecord) AuditRecord {
	return AuditRecord{
		ID:                a.ID,
		EntityType:        EntityType(a.EntityType),
		MergedEntityIDs:   a.MergedEntityIDs,
		ResultingEntityID: a.ResultingEntityID,
		SimilarityScore:   a.SimilarityScore,
		ConsolidatedAt:    a.ConsolidatedAt,
		RolledBackAt:      a.RolledBackAt,
		RollbackReason:    a.RollbackReason,
	}
}

func metricsFromInternal(s metrics.Snapshot) MetricsSnapshot {
	return MetricsSnapshot{
		DuplicatesFound:        s.DuplicatesFound,
		EntitiesInserted:       s.EntitiesInserted,
		EntitiesMerged:         s.EntitiesMerged,
		ContradictionsRecorded: s.ContradictionsRecorded,
		RelationshipsEmitted:   s.RelationshipsEmitted,
		RelationshipsUpdated:   s.RelationshipsUpdated,

		EmbeddingCacheHits:        s.EmbeddingCacheHits,
		EmbeddingCacheMisses:      s.EmbeddingCacheMisses,
		EmbeddingUpstreamFailures: s.EmbeddingUpstreamFailures,
		EmbeddingCircuitOpens:     s.EmbeddingCircuitOpens,

		StageWallTime: s.StageWallTime,

		AverageConfidence:       s.AverageConfidence,
		DuplicateReductionRatio: s.DuplicateReductionRatio,
		ContradictionRate:       s.ContradictionRate,
	}
}
