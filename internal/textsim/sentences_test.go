package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences_Empty(t *testing.T) {
	assert.Nil(t, SplitSentences(""))
}

func TestSplitSentences_SingleSentence(t *testing.T) {
	got := SplitSentences("El cierre mensual toma tres dias.")
	require.Len(t, got, 1)
	assert.Equal(t, "El cierre mensual toma tres dias.", got[0])
}

func TestSplitSentences_MultipleSentences(t *testing.T) {
	got := SplitSentences("El cierre es lento. El equipo esta frustrado. Necesitamos automatizarlo.")
	require.Len(t, got, 3)
	assert.Equal(t, "El cierre es lento.", got[0])
	assert.Equal(t, "El equipo esta frustrado.", got[1])
	assert.Equal(t, "Necesitamos automatizarlo.", got[2])
}

func TestSplitSentences_SpanishInvertedPunctuation(t *testing.T) {
	got := SplitSentences("El reporte fallo otra vez. ¿Por que sigue pasando esto?")
	require.Len(t, got, 2)
	assert.Equal(t, "El reporte fallo otra vez.", got[0])
	assert.Equal(t, "¿Por que sigue pasando esto?", got[1])
}

func TestSplitSentences_ExclamationBoundary(t *testing.T) {
	got := SplitSentences("¡Otra vez se cayo el sistema! Nadie nos avisa.")
	require.Len(t, got, 2)
	assert.Equal(t, "¡Otra vez se cayo el sistema!", got[0])
	assert.Equal(t, "Nadie nos avisa.", got[1])
}

func TestSplitSentences_DecimalNumberIsNotABoundary(t *testing.T) {
	got := SplitSentences("El presupuesto es de 3.5 millones de pesos.")
	require.Len(t, got, 1)
	assert.Equal(t, "El presupuesto es de 3.5 millones de pesos.", got[0])
}

func TestSplitSentences_NoTrailingTerminator(t *testing.T) {
	got := SplitSentences("Un fragmento sin punto final")
	require.Len(t, got, 1)
	assert.Equal(t, "Un fragmento sin punto final", got[0])
}

func TestNormalizeSentence_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "el cierre es lento", NormalizeSentence("  el   cierre  es lento  "))
}
