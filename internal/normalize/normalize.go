// Package normalize canonicalizes entity names for comparison (spec.md §4.1).
//
// Canonicalization never folds accented characters to ASCII — Spanish
// orthography must survive normalization and every downstream comparison.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/entrevista-ai/consolida/internal/model"
)

// systemBoilerplate are standalone tokens stripped from system names.
var systemBoilerplate = map[string]bool{
	"sistema":    true,
	"software":   true,
	"herramienta": true,
	"plataforma": true,
}

// painPointPrefixes are leading phrases stripped from pain_point names.
var painPointPrefixes = []string{
	"problema de",
	"dificultad con",
	"issue with",
}

// Name canonicalizes a raw entity name for the given type: lowercases, trims,
// collapses internal whitespace, applies NFC (composed-form) Unicode
// normalization, and strips type-specific boilerplate. Returns
// InvalidEntityName if the result is empty.
func Name(raw string, t model.EntityType) (string, error) {
	s := norm.NFC.String(raw)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")

	switch t {
	case model.EntityTypeSystem:
		s = stripStandaloneTokens(s, systemBoilerplate)
	case model.EntityTypePainPoint:
		s = stripLeadingPhrases(s, painPointPrefixes)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", model.InvalidEntityNameError(raw)
	}
	return s, nil
}

// Text applies the type-independent half of Name's canonicalization
// (lowercase, NFC, whitespace collapse) without the type-specific
// boilerplate stripping, for use on free text such as descriptions where
// stripping a type's boilerplate tokens would be meaningless or harmful.
func Text(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripStandaloneTokens removes whole-word occurrences of any token in drop
// from s, collapsing the resulting whitespace.
func stripStandaloneTokens(s string, drop map[string]bool) string {
	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if drop[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// stripLeadingPhrases removes the first matching phrase from the start of s,
// if present, and trims the remainder.
func stripLeadingPhrases(s string, phrases []string) string {
	for _, p := range phrases {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(strings.TrimPrefix(s, p))
		}
	}
	return s
}
