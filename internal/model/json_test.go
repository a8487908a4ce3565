package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeEntity_RoundTrip(t *testing.T) {
	e := Entity{
		ID:          uuid.New(),
		Type:        EntityTypeSystem,
		Name:        "SAP",
		Description: "ERP del area de finanzas",
		Attributes: map[string]AttributeValue{
			"owner":    StringValue("finanzas"),
			"replicas": NumberValue(3),
			"regions":  SequenceValue(StringValue("mx"), StringValue("us")),
		},
		MentionedInInterviews: []string{"i1", "i2"},
		SourceCount:           2,
		FirstMentionedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastMentionedAt:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ContradictionDetails: []Contradiction{
			{Attribute: "owner", Values: []AttributeValue{StringValue("finanzas"), StringValue("operaciones")}, SourceInterviews: []string{"i1", "i2"}, Similarity: 0.4},
		},
	}

	data, err := SerializeEntity(e)
	require.NoError(t, err)

	got, err := DeserializeEntity(data)
	require.NoError(t, err)

	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Attributes["owner"], got.Attributes["owner"])
	assert.Equal(t, e.Attributes["replicas"], got.Attributes["replicas"])
	assert.Equal(t, e.Attributes["regions"], got.Attributes["regions"])
	require.Len(t, got.ContradictionDetails, 1)
	assert.Equal(t, e.ContradictionDetails[0].Attribute, got.ContradictionDetails[0].Attribute)
}

func TestAttributesJSON_RoundTrip(t *testing.T) {
	attrs := map[string]AttributeValue{
		"a": StringValue("x"),
		"b": NumberValue(1.5),
	}
	data, err := AttributesJSON(attrs)
	require.NoError(t, err)

	got, err := ParseAttributesJSON(data)
	require.NoError(t, err)
	assert.Equal(t, attrs["a"], got["a"])
	assert.Equal(t, attrs["b"], got["b"])
}

func TestParseAttributesJSON_EmptyInputProducesEmptyMap(t *testing.T) {
	got, err := ParseAttributesJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContradictionsJSON_RoundTrip(t *testing.T) {
	cs := []Contradiction{
		{Attribute: "owner", Values: []AttributeValue{StringValue("a"), StringValue("b")}, SourceInterviews: []string{"i1"}, Similarity: 0.3},
	}
	data, err := ContradictionsJSON(cs)
	require.NoError(t, err)

	got, err := ParseContradictionsJSON(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cs[0].Attribute, got[0].Attribute)
	assert.Equal(t, cs[0].Similarity, got[0].Similarity)
}

func TestParseContradictionsJSON_EmptyInputProducesNil(t *testing.T) {
	got, err := ParseContradictionsJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
