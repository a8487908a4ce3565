package model

import "strings"

// normalizeForEquality collapses whitespace and trims for string attribute
// equality checks. It never folds accents — Spanish orthography must
// survive comparisons intact.
func normalizeForEquality(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
