package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrevista-ai/consolida/internal/model"
)

func TestName_LowercasesAndCollapsesWhitespace(t *testing.T) {
	got, err := Name("  Sistema   de   Facturación  ", model.EntityTypeSystem)
	require.NoError(t, err)
	assert.Equal(t, "de facturación", got)
}

func TestName_PreservesAccents(t *testing.T) {
	got, err := Name("Autenticación", model.EntityTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, "autenticación", got)
	assert.NotEqual(t, "autenticacion", got)
}

func TestName_StripsSystemBoilerplate(t *testing.T) {
	got, err := Name("Plataforma SAP software", model.EntityTypeSystem)
	require.NoError(t, err)
	assert.Equal(t, "sap", got)
}

func TestName_StripsPainPointPrefix(t *testing.T) {
	got, err := Name("Problema de reconciliación manual", model.EntityTypePainPoint)
	require.NoError(t, err)
	assert.Equal(t, "reconciliación manual", got)
}

func TestName_OtherTypesUnaffectedByBoilerplate(t *testing.T) {
	got, err := Name("Sistema Legacy", model.EntityTypeKPI)
	require.NoError(t, err)
	assert.Equal(t, "sistema legacy", got)
}

func TestName_EmptyAfterNormalizationIsInvalid(t *testing.T) {
	_, err := Name("   ", model.EntityTypeSystem)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidEntityName)
}

func TestName_BoilerplateOnlyNormalizesToEmpty(t *testing.T) {
	_, err := Name("sistema", model.EntityTypeSystem)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidEntityName)
}

func TestText_LowercasesWithoutBoilerplateStripping(t *testing.T) {
	got := Text("  El Sistema  de Ventas  ")
	assert.Equal(t, "el sistema de ventas", got)
}
