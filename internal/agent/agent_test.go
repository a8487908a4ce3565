package agent

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrevista-ai/consolida/internal/consensus"
	"github.com/entrevista-ai/consolida/internal/duplicate"
	"github.com/entrevista-ai/consolida/internal/merge"
	"github.com/entrevista-ai/consolida/internal/metrics"
	"github.com/entrevista-ai/consolida/internal/model"
	"github.com/entrevista-ai/consolida/internal/relationship"
	"github.com/entrevista-ai/consolida/internal/storage/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(store *memstore.Store) *Agent {
	thresholds := duplicate.Thresholds{
		model.EntityTypeSystem:    0.8,
		model.EntityTypePainPoint: 0.8,
	}
	detector := duplicate.New(duplicate.DefaultOptions(thresholds), nil, discardLogger())
	scorer := consensus.New(consensus.DefaultOptions())
	merger := merge.New(merge.DefaultOptions(), scorer)
	discoverer := relationship.New()
	return New(store, detector, merger, scorer, discoverer, thresholds, discardLogger())
}

func TestConsolidate_NewEntityIsInserted(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	out, err := a.Consolidate(context.Background(), Input{
		InterviewID: "i1",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityTypeSystem: {{Name: "SAP"}},
		},
	}, reg)
	require.NoError(t, err)

	ids := out.ResultingIDsByType[model.EntityTypeSystem]
	require.Len(t, ids, 1)

	stored, err := store.GetEntity(context.Background(), model.EntityTypeSystem, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "SAP", stored.Name)
	assert.False(t, stored.IsConsolidated)
}

func TestConsolidate_DuplicateAcrossInterviewsMerges(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	first, err := a.Consolidate(context.Background(), Input{
		InterviewID: "i1",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityTypeSystem: {{Name: "SAP", Description: "ERP principal."}},
		},
	}, reg)
	require.NoError(t, err)
	firstID := first.ResultingIDsByType[model.EntityTypeSystem][0]

	second, err := a.Consolidate(context.Background(), Input{
		InterviewID: "i2",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityTypeSystem: {{Name: "SAP", Description: "Usado por finanzas."}},
		},
	}, reg)
	require.NoError(t, err)
	secondID := second.ResultingIDsByType[model.EntityTypeSystem][0]

	assert.Equal(t, firstID, secondID, "second mention of the same name should merge into the existing entity")

	merged, err := store.GetEntity(context.Background(), model.EntityTypeSystem, firstID)
	require.NoError(t, err)
	assert.True(t, merged.IsConsolidated)
	assert.Equal(t, 2, merged.SourceCount)
	assert.Contains(t, merged.Description, "ERP principal.")
	assert.Contains(t, merged.Description, "Usado por finanzas.")

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap.EntitiesMerged)
	assert.Equal(t, int64(1), snap.DuplicatesFound)
}

func TestConsolidate_RelationshipDiscoveredWithinInterview(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	_, err := a.Consolidate(context.Background(), Input{
		InterviewID: "i1",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityTypeSystem:    {{Name: "SAP"}},
			model.EntityTypePainPoint: {{Name: "Cierre lento", Description: "El sistema sap tarda en cerrar el mes."}},
		},
	}, reg)
	require.NoError(t, err)

	rels, err := store.ListOrphanRelationships(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rels, "both endpoints exist, so nothing should be orphaned")

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap.RelationshipsEmitted)
}

func TestConsolidate_InvalidEntityTypeFailsAtomically(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	before := store.Snapshot()

	_, err := a.Consolidate(context.Background(), Input{
		InterviewID: "i1",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityType("not_a_real_type"): {{Name: "bogus"}},
		},
	}, reg)
	require.Error(t, err)

	var cf *model.ConsolidationFailedError
	require.ErrorAs(t, err, &cf)

	after := store.Snapshot()
	assert.Equal(t, before, after, "a failed consolidation must leave the store unchanged")
}

func TestConsolidate_ReingestingSameInterviewIsIdempotent(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	input := Input{
		InterviewID: "i1",
		EntitiesByType: map[model.EntityType][]model.Entity{
			model.EntityTypeSystem:    {{Name: "SAP", Description: "ERP principal."}},
			model.EntityTypePainPoint: {{Name: "Cierre lento", Description: "El sistema sap tarda en cerrar el mes."}},
		},
	}

	first, err := a.Consolidate(context.Background(), input, reg)
	require.NoError(t, err)

	before := store.Snapshot()
	auditsBefore := len(store.Audits())

	second, err := a.Consolidate(context.Background(), input, reg)
	require.NoError(t, err)

	assert.Equal(t, first.ResultingIDsByType, second.ResultingIDsByType)

	sysID := first.ResultingIDsByType[model.EntityTypeSystem][0]
	sys, err := store.GetEntity(context.Background(), model.EntityTypeSystem, sysID)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.SourceCount, "the same interview_id must not be counted twice")

	after := store.Snapshot()
	assert.Equal(t, before, after, "replaying the same interview must not mutate the store further")
	assert.Equal(t, auditsBefore, len(store.Audits()), "no new AuditRecord on a no-op re-ingestion")
}

func TestConsolidateBatch_RunsAllInputsConcurrently(t *testing.T) {
	store := memstore.New()
	a := newTestAgent(store)
	reg := metrics.New(nil)

	inputs := []Input{
		{InterviewID: "i1", EntitiesByType: map[model.EntityType][]model.Entity{model.EntityTypeSystem: {{Name: "SAP"}}}},
		{InterviewID: "i2", EntitiesByType: map[model.EntityType][]model.Entity{model.EntityTypeSystem: {{Name: "Workday"}}}},
		{InterviewID: "i3", EntitiesByType: map[model.EntityType][]model.Entity{model.EntityTypeSystem: {{Name: "Excel"}}}},
	}

	outs, err := a.ConsolidateBatch(context.Background(), inputs, reg)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	for _, o := range outs {
		assert.Len(t, o.ResultingIDsByType[model.EntityTypeSystem], 1)
	}

	all, err := store.GetEntitiesByType(context.Background(), model.EntityTypeSystem, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
