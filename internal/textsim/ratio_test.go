package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio_IdenticalStrings(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("sistema sap", "sistema sap"))
}

func TestRatio_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
}

func TestRatio_OneEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("", "sap"))
	assert.Equal(t, 0.0, Ratio("sap", ""))
}

func TestRatio_SingleCharSubstitution(t *testing.T) {
	// "cat" -> "bat" is one substitution out of max-length 3.
	got := Ratio("cat", "bat")
	assert.InDelta(t, 2.0/3.0, got, 1e-9)
}

func TestRatio_Symmetric(t *testing.T) {
	a, b := "excel avanzado", "excell avanzado"
	assert.Equal(t, Ratio(a, b), Ratio(b, a))
}

func TestRatio_NeverNegative(t *testing.T) {
	got := Ratio("abc", "xyz")
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestRatio_CompletelyDifferentSameLength(t *testing.T) {
	got := Ratio("abc", "xyz")
	assert.Equal(t, 0.0, got)
}

func TestRatio_SupersetNameVariantsScoreAsIdentical(t *testing.T) {
	// spec.md §8 Scenario A: "Excel", "MS Excel" and "Microsoft Excel" are
	// the same system; every token of "excel" appears in the other two, so
	// the token-set comparison scores each of them at 1.0 against it even
	// though the character-level edit ratio alone would not clear a 0.75
	// per-type threshold. "ms excel" and "microsoft excel" are not subsets
	// of each other: their best token-set pair is core "excel" against
	// "excel ms", an edit ratio of 1 - 3/8.
	assert.Equal(t, 1.0, Ratio("excel", "ms excel"))
	assert.Equal(t, 1.0, Ratio("excel", "microsoft excel"))
	assert.InDelta(t, 0.625, Ratio("ms excel", "microsoft excel"), 1e-9)
}

func TestRatio_UnrelatedNameSharingAPrefixStaysBelowMergeRange(t *testing.T) {
	// spec.md §8 Scenario B: "SAP" and "SAPUI5" must remain distinct
	// systems. They share no whitespace-delimited token, so this falls back
	// to the plain edit ratio and stays well under a 0.75 threshold.
	got := Ratio("sap", "sapui5")
	assert.Less(t, got, 0.75)
}
