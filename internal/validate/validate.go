// Package validate compares the inferred type of each mapped source column
// with the type its target field expects. Results are advisory: nothing here
// blocks a preview, save or sync.
package validate

import (
	"fmt"

	"mapsync/internal/catalog"
	"mapsync/internal/dataset"
	"mapsync/internal/mapping"
	"mapsync/internal/transformer"
)

// Status is the outcome of Classify.
type Status string

const (
	StatusUnset         Status = "unset"
	StatusMatch         Status = "match"
	StatusCastRequired  Status = "cast-required"
	StatusParseRequired Status = "parse-required"
	StatusMismatch      Status = "mismatch"
)

var hints = map[Status]string{
	StatusUnset:         "No source column linked.",
	StatusMatch:         "Source and target types agree.",
	StatusCastRequired:  "Text column feeds a numeric field; add a To Number step.",
	StatusParseRequired: "Text column feeds a timestamp field; add a To Date step.",
	StatusMismatch:      "Source type does not fit the target; values may be lost on load.",
}

// Hint returns the operator-facing explanation of s.
func (s Status) Hint() string { return hints[s] }

// Classify checks one mapping against its field. A header missing from
// inferred is treated as TEXT.
func Classify(field catalog.TargetField, m mapping.FieldMapping, inferred map[string]catalog.DataType) Status {
	if !m.Mapped() {
		return StatusUnset
	}
	src, ok := inferred[m.SourceHeader]
	if !ok {
		src = catalog.TypeText
	}
	switch {
	case src == field.Type:
		return StatusMatch
	case field.Type == catalog.TypeNumeric && src == catalog.TypeText:
		return StatusCastRequired
	case field.Type == catalog.TypeTimestamp && src == catalog.TypeText:
		return StatusParseRequired
	default:
		return StatusMismatch
	}
}

// Annotation is the validation result for one target field.
type Annotation struct {
	FieldID      string           `json:"fieldId"`
	SourceHeader string           `json:"sourceHeader,omitempty"`
	SourceType   catalog.DataType `json:"sourceType,omitempty"`
	TargetType   catalog.DataType `json:"targetType"`
	Status       Status           `json:"status"`
	Hint         string           `json:"hint"`
}

// Annotate classifies every field of schema in schema order. The set is
// normalized first, so fields without an entry come back unset.
func Annotate(schema catalog.Schema, set mapping.Set, ds *dataset.Dataset) []Annotation {
	var inferred map[string]catalog.DataType
	if ds != nil {
		inferred = ds.InferredTypes
	}
	norm := set.Normalize(schema)

	out := make([]Annotation, len(schema.Fields))
	for i, f := range schema.Fields {
		m := norm.Mappings[i]
		st := Classify(f, m, inferred)
		a := Annotation{FieldID: f.ID, TargetType: f.Type, Status: st, Hint: st.Hint()}
		if m.Mapped() {
			a.SourceHeader = m.SourceHeader
			if t, ok := inferred[m.SourceHeader]; ok {
				a.SourceType = t
			} else {
				a.SourceType = catalog.TypeText
			}
		}
		out[i] = a
	}
	return out
}

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural problem found by CheckSet.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Path, i.Message)
}

// CheckSet inspects a raw, possibly hand-edited, set before it is normalized.
//
// Errors: target ids unknown to schema, duplicate targets and invalid replace
// patterns. Warnings: headers absent from ds. With a nil ds headers are not
// checked.
func CheckSet(schema catalog.Schema, set mapping.Set, ds *dataset.Dataset) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(set.Mappings))

	for i, m := range set.Mappings {
		path := fmt.Sprintf("mappings[%d]", i)
		if _, ok := schema.Field(m.TargetFieldID); !ok {
			issues = append(issues, Issue{SeverityError, path + ".targetFieldId", fmt.Sprintf("unknown target field %q for schema %s", m.TargetFieldID, schema.ID)})
			continue
		}
		if first, dup := seen[m.TargetFieldID]; dup {
			issues = append(issues, Issue{SeverityError, path + ".targetFieldId", fmt.Sprintf("duplicate target %q, first at mappings[%d]", m.TargetFieldID, first)})
			continue
		}
		seen[m.TargetFieldID] = i

		if ds != nil && m.Mapped() && !ds.HasHeader(m.SourceHeader) {
			issues = append(issues, Issue{SeverityWarning, path + ".sourceHeader", fmt.Sprintf("header %q not in dataset %s", m.SourceHeader, ds.FileName)})
		}
		for j, st := range m.Transformations {
			if err := transformer.ValidateStep(st.Op); err != nil {
				issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.transformations[%d]", path, j), err.Error()})
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
