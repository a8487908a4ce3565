package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrevista-ai/consolida/internal/model"
)

func baseEntity(sourceCount int) model.Entity {
	return model.Entity{
		SourceCount: sourceCount,
		Attributes:  map[string]model.AttributeValue{},
	}
}

func TestConfidence_SingleSourcePenaltyAndNeedsReview(t *testing.T) {
	s := New(DefaultOptions())
	confidence, needsReview := s.Confidence(baseEntity(1), 0)

	// base = 1/5 = 0.2, penalty 0.3 -> clamped to 0.
	assert.Equal(t, 0.0, confidence)
	assert.True(t, needsReview)
}

func TestConfidence_NeedsReviewCutoffExactlyAtBoundary(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(3) // base = 3/5 = 0.6, no penalty, no bonus, no contradictions.
	confidence, needsReview := s.Confidence(e, 0)

	assert.InDelta(t, 0.6, confidence, 1e-9)
	assert.False(t, needsReview, "confidence exactly at 0.6 should not need review (strict < cutoff)")
}

func TestConfidence_JustBelowCutoffNeedsReview(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(2) // base = 2/5 = 0.4
	confidence, needsReview := s.Confidence(e, 0)

	assert.InDelta(t, 0.4, confidence, 1e-9)
	assert.True(t, needsReview)
}

func TestConfidence_ClampsAtOne(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(10) // base would exceed 1.0, clamped.
	e.Attributes = map[string]model.AttributeValue{
		"a": model.StringValue("x"),
		"b": model.StringValue("y"),
	}
	confidence, needsReview := s.Confidence(e, 0)

	assert.Equal(t, 1.0, confidence)
	assert.False(t, needsReview)
}

func TestConfidence_AgreementBonusCappedAtMax(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(1)
	e.Attributes = map[string]model.AttributeValue{
		"a": model.StringValue("1"),
		"b": model.StringValue("2"),
		"c": model.StringValue("3"),
		"d": model.StringValue("4"),
		"e": model.StringValue("5"),
		"f": model.StringValue("6"),
		"g": model.StringValue("7"),
	}
	// base 0.2 - penalty 0.3 + bonus capped at 0.3 = 0.2.
	confidence, _ := s.Confidence(e, 0)
	assert.InDelta(t, 0.2, confidence, 1e-9)
}

func TestConfidence_EmptyAttributeValuesDoNotCountAsAgreement(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(5) // base = 1.0
	e.Attributes = map[string]model.AttributeValue{
		"empty_string": model.StringValue(""),
		"empty_seq":    model.SequenceValue(),
	}
	confidence, _ := s.Confidence(e, 0)
	assert.Equal(t, 1.0, confidence)
}

func TestConfidence_ContradictionPenalty(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(5) // base = 1.0
	e.ContradictionDetails = []model.Contradiction{
		{Attribute: "owner"},
	}
	confidence, _ := s.Confidence(e, 0)
	assert.InDelta(t, 0.75, confidence, 1e-9)
}

func TestConfidence_TotalSourcesHintTightensDivisor(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(2)
	// hint 8 -> hintDivisor = 8/4 = 2, tighter than default divisor 5.
	confidence, _ := s.Confidence(e, 8)
	assert.InDelta(t, 1.0, confidence, 1e-9)
}

func TestConfidence_TotalSourcesHintFloorsAtOne(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(1)
	// hint 2 -> hintDivisor = 2/4 = 0.5, floored to 1.
	confidence, needsReview := s.Confidence(e, 2)
	// base = 1/1 = 1.0, minus single-source penalty 0.3 = 0.7.
	assert.InDelta(t, 0.7, confidence, 1e-9)
	assert.False(t, needsReview)
}

func TestConfidence_TotalSourcesHintNeverLoosensDivisor(t *testing.T) {
	s := New(DefaultOptions())

	e := baseEntity(2)
	// hint 100 -> hintDivisor = 25, larger than default 5, so default stands.
	confidence, _ := s.Confidence(e, 100)
	assert.InDelta(t, 0.4, confidence, 1e-9)
}
