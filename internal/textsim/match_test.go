package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWholeTokenMatch_ExactToken(t *testing.T) {
	assert.True(t, WholeTokenMatch("el sistema sap esta caido", "sap"))
}

func TestWholeTokenMatch_RejectsSubstringOfLargerToken(t *testing.T) {
	// "sap" must not match inside "sapphire".
	assert.False(t, WholeTokenMatch("usamos sapphire para reportes", "sap"))
}

func TestWholeTokenMatch_EmptyNeedle(t *testing.T) {
	assert.False(t, WholeTokenMatch("cualquier texto", ""))
}

func TestWholeTokenMatch_NotPresent(t *testing.T) {
	assert.False(t, WholeTokenMatch("el sistema excel", "sap"))
}

func TestWholeTokenMatch_AtStringBoundaries(t *testing.T) {
	assert.True(t, WholeTokenMatch("sap", "sap"))
}

func TestWholeTokenMatch_SkipsFalseStartToFindRealMatch(t *testing.T) {
	// First occurrence of "sap" is inside "sapphire" (rejected); the
	// second, standalone occurrence should still be found.
	assert.True(t, WholeTokenMatch("sapphire y tambien sap por separado", "sap"))
}

func TestPrefixMatch_MatchesWordBoundaryPrefix(t *testing.T) {
	assert.True(t, PrefixMatch("reconciliacion manual en excel", "reconciliaciones", 8))
}

func TestPrefixMatch_NeedleShorterThanMinChars(t *testing.T) {
	assert.False(t, PrefixMatch("algun texto", "sap", 4))
}

func TestPrefixMatch_RejectsSubstringOfLargerToken(t *testing.T) {
	assert.False(t, PrefixMatch("usamos sapphire reports", "sapient", 4))
}

func TestPrefixMatch_NoOccurrence(t *testing.T) {
	assert.False(t, PrefixMatch("el sistema excel", "workday", 4))
}
