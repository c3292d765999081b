// Package match proposes source headers for target fields by comparing
// normalized names.
//
// Matching is intentionally permissive: a header qualifies when its
// normalized form equals, contains, or is contained in the field's normalized
// label or column name. A header also qualifies when it abbreviates a
// multi-word label or column name by shortening some words to their initial,
// like "FName" for "First Name". Short headers can over-match; the first
// qualifying header in input order wins and there is no scoring.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
)

// Normalize lower-cases s, folds accents and drops everything outside [a-z0-9].
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoMatch maps field id to the first qualifying header. Fields without a
// match are absent from the result.
func AutoMatch(headers []string, fields []catalog.TargetField) map[string]string {
	normHeaders := make([]string, len(headers))
	for i, h := range headers {
		normHeaders[i] = Normalize(h)
	}

	out := make(map[string]string)
	for _, f := range fields {
		targets := []target{newTarget(f.Label), newTarget(f.ColumnName)}
		for i, h := range normHeaders {
			if qualifies(h, targets) {
				out[f.ID] = headers[i]
				break
			}
		}
	}
	return out
}

// target is one normalized name of a field plus its normalized words.
type target struct {
	norm  string
	words []string
}

func newTarget(s string) target {
	t := target{norm: Normalize(s)}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if n := Normalize(w); n != "" {
			t.words = append(t.words, n)
		}
	}
	return t
}

func qualifies(h string, targets []target) bool {
	if h == "" {
		return false
	}
	for _, t := range targets {
		if t.norm == "" {
			continue
		}
		if h == t.norm || strings.Contains(t.norm, h) || strings.Contains(h, t.norm) || abbreviates(h, t.words) {
			return true
		}
	}
	return false
}

// abbreviates reports whether h spells words in order with each word either
// whole or cut to its first character. Single-word names never qualify.
func abbreviates(h string, words []string) bool {
	if len(h) < 2 || len(words) < 2 {
		return false
	}
	return spells(h, words)
}

func spells(h string, words []string) bool {
	if len(words) == 0 {
		return h == ""
	}
	w := words[0]
	if strings.HasPrefix(h, w) && spells(h[len(w):], words[1:]) {
		return true
	}
	return strings.HasPrefix(h, w[:1]) && spells(h[1:], words[1:])
}

// GroupResult is the outcome of AutoMapGroup. Every schema of the group is
// rebuilt, so TablesTouched is the group's schema count.
type GroupResult struct {
	Sets          map[string]mapping.Set
	MatchedFields int
	TablesTouched int
}

// AutoMapGroup rebuilds every Set of a group from placeholders and applies
// AutoMatch to each schema. The caller swaps the whole result in at once with
// mapping.Group.Replace.
func AutoMapGroup(cat *catalog.Catalog, groupID string, headers []string) (GroupResult, error) {
	schemas, err := cat.GroupSchemas(groupID)
	if err != nil {
		return GroupResult{}, err
	}

	res := GroupResult{Sets: make(map[string]mapping.Set, len(schemas)), TablesTouched: len(schemas)}
	for _, sc := range schemas {
		set := mapping.Placeholders(sc)
		matches := AutoMatch(headers, sc.Fields)
		for i, m := range set.Mappings {
			h, ok := matches[m.TargetFieldID]
			if !ok {
				continue
			}
			set.Mappings[i].SourceHeader = h
			set.Mappings[i].Provenance = mapping.ProvenanceAuto
		}
		res.MatchedFields += len(matches)
		res.Sets[sc.ID] = set
	}
	return res, nil
}
