package suggest

import (
	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
)

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Set mapping.Set `json:"set"`
	// Applied counts suggestions written into Set.
	Applied int `json:"applied"`
	// Pending holds header-bearing suggestions below the threshold.
	Pending []Suggestion `json:"pending"`
}

// Merge folds suggestions into set.
//
// For every field of schema the existing pipeline is kept. The header,
// confidence and reasoning are replaced only when the suggestion names a
// header and its confidence (missing counts as 0) reaches threshold. Fields
// with neither a mapping nor a suggestion become placeholders.
func Merge(set mapping.Set, suggestions []Suggestion, schema catalog.Schema, threshold float64) MergeResult {
	out := set.Normalize(schema)
	res := MergeResult{Pending: []Suggestion{}}

	bySuggestion := make(map[string]Suggestion, len(suggestions))
	for _, sg := range suggestions {
		if _, dup := bySuggestion[sg.TargetFieldID]; !dup {
			bySuggestion[sg.TargetFieldID] = sg
		}
	}

	for i, m := range out.Mappings {
		sg, ok := bySuggestion[m.TargetFieldID]
		if !ok || sg.SourceHeader == "" {
			continue
		}
		if sg.Score() < threshold {
			res.Pending = append(res.Pending, sg)
			continue
		}
		m.SourceHeader = sg.SourceHeader
		m.Confidence = mapping.Confidence(sg.Score())
		m.SemanticReasoning = sg.SemanticReasoning
		m.Provenance = mapping.ProvenanceAI
		out.Mappings[i] = m
		res.Applied++
	}

	res.Set = out
	return res
}
