package consolida

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/storage/memstore"
)

func newTestAgent(t *testing.T) (*Agent, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	a, err := New(DefaultConfig(), store, nil)
	require.NoError(t, err)
	return a, store
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCandidates = 0

	_, err := New(cfg, memstore.New(), nil)
	assert.Error(t, err)
}

func TestConsolidate_FirstMentionIsInsertedNotMerged(t *testing.T) {
	a, _ := newTestAgent(t)

	out, err := a.Consolidate(context.Background(), ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "ERP principal."}},
		},
	})
	require.NoError(t, err)

	ids := out.ResultingIDsByType[EntityTypeSystem]
	require.Len(t, ids, 1)
	assert.Equal(t, int64(1), out.Metrics.EntitiesInserted)
	assert.Equal(t, int64(0), out.Metrics.EntitiesMerged)
}

func TestConsolidate_SecondMentionMergesAndTracksConfidence(t *testing.T) {
	a, _ := newTestAgent(t)
	ctx := context.Background()

	first, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "ERP principal."}},
		},
	})
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[EntityTypeSystem][0]

	second, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i2",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "Lo usa el equipo de finanzas."}},
		},
	})
	require.NoError(t, err)

	secondID := second.ResultingIDsByType[EntityTypeSystem][0]
	assert.Equal(t, firstID, secondID)
	assert.Equal(t, int64(1), second.Metrics.DuplicatesFound)
	assert.GreaterOrEqual(t, second.Metrics.AverageConfidence, 0.0)
	assert.LessOrEqual(t, second.Metrics.AverageConfidence, 1.0)
}

func TestConsolidate_NameVariantsAcrossThreeInterviewsConsolidateIntoOneEntity(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	first, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "Excel"}},
		},
	})
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[EntityTypeSystem][0]

	second, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i2",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "MS Excel"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, second.ResultingIDsByType[EntityTypeSystem][0])

	third, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i3",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "Microsoft Excel"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, third.ResultingIDsByType[EntityTypeSystem][0])

	all, err := store.GetEntitiesByType(ctx, model.EntityTypeSystem, 0)
	require.NoError(t, err)
	require.Len(t, all, 1, "the three name variants must consolidate into a single entity")

	entity := all[0]
	assert.Equal(t, "Excel", entity.Name, "the first-seen name is retained")
	assert.Equal(t, 3, entity.SourceCount)
	assert.Equal(t, []string{"i1", "i2", "i3"}, entity.MentionedInInterviews)
	assert.True(t, entity.IsConsolidated)
	assert.Len(t, entity.MergedEntityIDs, 2)
}

func TestConsolidate_ContradictingAttributesAreFlaggedForReview(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	first, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{
				Name: "SAP",
				Attributes: map[string]AttributeValue{
					"owner": {Kind: "string", String: "finanzas"},
				},
			}},
		},
	})
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[EntityTypeSystem][0]

	_, err = a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i2",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{
				Name: "SAP",
				Attributes: map[string]AttributeValue{
					"owner": {Kind: "string", String: "una dependencia completamente distinta"},
				},
			}},
		},
	})
	require.NoError(t, err)

	merged, err := store.GetEntity(ctx, model.EntityTypeSystem, firstID)
	require.NoError(t, err)
	assert.True(t, merged.HasContradictions)
	require.NotEmpty(t, merged.ContradictionDetails)
}

func TestConsolidate_InvalidEntityTypeIsAConsolidationFailure(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	before := store.Snapshot()

	_, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityType("not_a_real_type"): {{Name: "bogus"}},
		},
	})
	require.Error(t, err)

	after := store.Snapshot()
	assert.Equal(t, before, after)
}

func TestConsolidateBatch_RunsAllInputsConcurrently(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	inputs := []ConsolidationInput{
		{InterviewID: "i1", EntitiesByType: map[EntityType][]Entity{EntityTypeSystem: {{Name: "SAP"}}}},
		{InterviewID: "i2", EntitiesByType: map[EntityType][]Entity{EntityTypeSystem: {{Name: "Workday"}}}},
		{InterviewID: "i3", EntitiesByType: map[EntityType][]Entity{EntityTypeSystem: {{Name: "Excel"}}}},
	}

	outs, err := a.ConsolidateBatch(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	for _, o := range outs {
		assert.Len(t, o.ResultingIDsByType[EntityTypeSystem], 1)
	}

	all, err := store.GetEntitiesByType(ctx, model.EntityTypeSystem, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIdentifyPatterns_SurfacesRecurringPain(t *testing.T) {
	a, _ := newTestAgent(t)
	ctx := context.Background()

	for _, interviewID := range []string{"i1", "i2", "i3"} {
		_, err := a.Consolidate(ctx, ConsolidationInput{
			InterviewID: interviewID,
			EntitiesByType: map[EntityType][]Entity{
				EntityTypePainPoint: {{Name: "Cierre manual lento", Description: "El cierre tarda demasiado."}},
			},
		})
		require.NoError(t, err)
	}

	patterns, err := a.IdentifyPatterns(ctx)
	require.NoError(t, err)

	var found bool
	for _, p := range patterns {
		if p.PatternType == PatternRecurringPain {
			found = true
		}
	}
	assert.True(t, found, "three independent mentions should cross the default recurring-pain threshold")
}

func TestRollback_ReversesAMerge(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	first, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "ERP principal."}},
		},
	})
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[EntityTypeSystem][0]

	_, err = a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i2",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "Tambien lo usa RRHH."}},
		},
	})
	require.NoError(t, err)

	merged, err := store.GetEntity(ctx, model.EntityTypeSystem, firstID)
	require.NoError(t, err)
	require.Equal(t, 2, merged.SourceCount)

	audits := store.Audits()
	require.Len(t, audits, 1)

	require.NoError(t, a.Rollback(ctx, audits[0].ID, "duplicate was a false positive"))

	restored, err := store.GetEntity(ctx, model.EntityTypeSystem, firstID)
	require.NoError(t, err)
	assert.Equal(t, "ERP principal.", restored.Description)
}

func TestConsolidate_ReingestingSameInterviewDoesNotDoubleCount(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	input := ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP", Description: "ERP principal."}},
		},
	}

	first, err := a.Consolidate(ctx, input)
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[EntityTypeSystem][0]

	_, err = a.Consolidate(ctx, input)
	require.NoError(t, err)

	entity, err := store.GetEntity(ctx, model.EntityTypeSystem, firstID)
	require.NoError(t, err)
	assert.Equal(t, 1, entity.SourceCount, "re-ingesting the same interview must not be counted twice")
	assert.Len(t, store.Audits(), 0, "no merge happened yet, so no audit record should exist")
}

func TestMetrics_AccumulatesAcrossCalls(t *testing.T) {
	a, _ := newTestAgent(t)
	ctx := context.Background()

	_, err := a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i1",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP"}},
		},
	})
	require.NoError(t, err)

	_, err = a.Consolidate(ctx, ConsolidationInput{
		InterviewID: "i2",
		EntitiesByType: map[EntityType][]Entity{
			EntityTypeSystem: {{Name: "SAP"}},
		},
	})
	require.NoError(t, err)

	snap := a.Metrics()
	assert.Equal(t, int64(1), snap.EntitiesInserted)
	assert.Equal(t, int64(1), snap.EntitiesMerged)
}
