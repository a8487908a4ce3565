package duplicate

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrevista-ai/consolida/internal/embedding"
	"github.com/entrevista-ai/consolida/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultThresholds() Thresholds {
	return Thresholds{
		model.EntityTypeSystem:    0.8,
		model.EntityTypePainPoint: 0.75,
	}
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if f.err != nil {
		return pgvector.Vector{}, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		v = []float32{0, 0, 1}
	}
	return pgvector.NewVector(v), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func TestFindDuplicates_InvalidEntityType(t *testing.T) {
	d := New(DefaultOptions(defaultThresholds()), nil, discardLogger())
	_, err := d.FindDuplicates(context.Background(), model.Entity{}, model.EntityType("bogus"), []model.Entity{{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidEntityType)
}

func TestFindDuplicates_EmptyExistingReturnsNil(t *testing.T) {
	d := New(DefaultOptions(defaultThresholds()), nil, discardLogger())
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP"}, model.EntityTypeSystem, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindDuplicates_BelowThresholdFiltered(t *testing.T) {
	d := New(DefaultOptions(defaultThresholds()), nil, discardLogger())
	existing := []model.Entity{{ID: uuid.New(), Name: "Workday"}}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindDuplicates_DegradedModeNameOnlyWhenEmbedderNil(t *testing.T) {
	d := New(DefaultOptions(defaultThresholds()), nil, discardLogger())
	existing := []model.Entity{{ID: uuid.New(), Name: "SAP ERP"}}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "Sap Erp"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Score) // identical once normalized, name-only score stands
}

func TestFindDuplicates_SkipsSemanticAboveSkipThreshold(t *testing.T) {
	embedder := &fakeEmbedder{err: assert.AnError} // would fail if ever invoked
	d := New(DefaultOptions(defaultThresholds()), embedder, discardLogger())
	existing := []model.Entity{{ID: uuid.New(), Name: "SAP"}}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestFindDuplicates_DegradesOnEmbeddingUnavailableMidway(t *testing.T) {
	embedder := &fakeEmbedder{err: embedding.ErrUnavailable}
	opts := DefaultOptions(defaultThresholds())
	opts.Thresholds[model.EntityTypeSystem] = 0.5 // let a near-miss name through to trigger stage 2
	d := New(opts, embedder, discardLogger())
	existing := []model.Entity{{ID: uuid.New(), Name: "SAP System"}}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP Syztem"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Falls back to name-only combined score since the embedder is unavailable.
	assert.Greater(t, got[0].Score, 0.0)
}

func TestFindDuplicates_MaxCandidatesCap(t *testing.T) {
	opts := DefaultOptions(defaultThresholds())
	opts.Thresholds[model.EntityTypeSystem] = 0.3 // let both near-misses through stage 1
	opts.MaxCandidates = 1
	d := New(opts, nil, discardLogger())

	existing := []model.Entity{
		{ID: uuid.New(), Name: "SAP"},
		{ID: uuid.New(), Name: "SAP ERP"},
	}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindDuplicates_TieBreakBySourceCountThenID(t *testing.T) {
	lowID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	highID := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	d := New(DefaultOptions(defaultThresholds()), nil, discardLogger())
	existing := []model.Entity{
		{ID: highID, Name: "SAP", SourceCount: 1},
		{ID: lowID, Name: "SAP", SourceCount: 3},
	}
	got, err := d.FindDuplicates(context.Background(), model.Entity{Name: "SAP"}, model.EntityTypeSystem, existing)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Equal scores (both exact matches) -> higher SourceCount wins the tie-break.
	assert.Equal(t, lowID, got[0].Entity.ID)
	assert.Equal(t, highID, got[1].Entity.ID)
}
