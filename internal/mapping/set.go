// Package mapping manages the links between target fields and source columns.
//
// A Set holds one FieldMapping per target field of a schema. Set operations
// return a new Set and leave the receiver untouched, so a caller can keep the
// old value when an operation fails.
package mapping

import (
	"errors"
	"fmt"

	"mapsync/internal/catalog"
	"mapsync/internal/transformer"
)

var (
	ErrUnknownField = errors.New("mapping: unknown target field")
	ErrUnknownStep  = errors.New("mapping: unknown step")
	ErrEmptyHeader  = errors.New("mapping: source header is required")
	ErrNameRequired = errors.New("mapping: configuration name is required")
)

// Provenance records how a link was established.
type Provenance string

const (
	ProvenanceManual Provenance = "manual"
	ProvenanceAuto   Provenance = "auto"
	ProvenanceAI     Provenance = "ai"
)

// FieldMapping links one target field to an optional source header and the
// pipeline applied to its values.
type FieldMapping struct {
	TargetFieldID     string             `json:"targetFieldId"`
	SourceHeader      string             `json:"sourceHeader,omitempty"`
	Transformations   []transformer.Step `json:"transformations"`
	SemanticReasoning string             `json:"semanticReasoning,omitempty"`
	Confidence        *float64           `json:"confidence,omitempty"`
	Provenance        Provenance         `json:"provenance,omitempty"`
}

// Mapped reports whether a source header is set.
func (m FieldMapping) Mapped() bool { return m.SourceHeader != "" }

func (m FieldMapping) clone() FieldMapping {
	m.Transformations = append([]transformer.Step(nil), m.Transformations...)
	if m.Transformations == nil {
		m.Transformations = []transformer.Step{}
	}
	if m.Confidence != nil {
		c := *m.Confidence
		m.Confidence = &c
	}
	return m
}

// Confidence returns a pointer to c for FieldMapping.Confidence.
func Confidence(c float64) *float64 { return &c }

// Placeholder is an unmapped entry with an empty pipeline.
func Placeholder(fieldID string) FieldMapping {
	return FieldMapping{TargetFieldID: fieldID, Transformations: []transformer.Step{}}
}

// Set is the mapping list of one schema, in schema field order.
type Set struct {
	SchemaID string         `json:"schemaId"`
	Mappings []FieldMapping `json:"mappings"`
}

// Placeholders returns a Set with an unmapped entry for every field of schema.
func Placeholders(schema catalog.Schema) Set {
	s := Set{SchemaID: schema.ID, Mappings: make([]FieldMapping, len(schema.Fields))}
	for i, f := range schema.Fields {
		s.Mappings[i] = Placeholder(f.ID)
	}
	return s
}

// Normalize builds a Set from loose mappings: one entry per schema field in
// schema order, unknown targets dropped, duplicates collapsed to the first.
func Normalize(schema catalog.Schema, mappings []FieldMapping) Set {
	first := make(map[string]FieldMapping, len(mappings))
	for _, m := range mappings {
		if _, seen := first[m.TargetFieldID]; !seen {
			first[m.TargetFieldID] = m
		}
	}
	s := Set{SchemaID: schema.ID, Mappings: make([]FieldMapping, len(schema.Fields))}
	for i, f := range schema.Fields {
		if m, ok := first[f.ID]; ok {
			s.Mappings[i] = m.clone()
			continue
		}
		s.Mappings[i] = Placeholder(f.ID)
	}
	return s
}

// Normalize re-applies the package-level Normalize to s.
func (s Set) Normalize(schema catalog.Schema) Set {
	return Normalize(schema, s.Mappings)
}

func (s Set) clone() Set {
	out := Set{SchemaID: s.SchemaID, Mappings: make([]FieldMapping, len(s.Mappings))}
	for i, m := range s.Mappings {
		out.Mappings[i] = m.clone()
	}
	return out
}

func (s Set) index(fieldID string) (int, error) {
	for i, m := range s.Mappings {
		if m.TargetFieldID == fieldID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in schema %s", ErrUnknownField, fieldID, s.SchemaID)
}

// Get returns the mapping of fieldID.
func (s Set) Get(fieldID string) (FieldMapping, error) {
	i, err := s.index(fieldID)
	if err != nil {
		return FieldMapping{}, err
	}
	return s.Mappings[i].clone(), nil
}

// Put replaces the whole mapping of m.TargetFieldID.
func (s Set) Put(m FieldMapping) (Set, error) {
	i, err := s.index(m.TargetFieldID)
	if err != nil {
		return s, err
	}
	out := s.clone()
	out.Mappings[i] = m.clone()
	return out, nil
}

// Link sets header as the manual source of fieldID with full confidence.
// The pipeline is kept.
func (s Set) Link(fieldID, header string) (Set, error) {
	if header == "" {
		return s, ErrEmptyHeader
	}
	return s.update(fieldID, func(m *FieldMapping) error {
		m.SourceHeader = header
		m.Confidence = Confidence(1.0)
		m.SemanticReasoning = "Linked to source column [" + header + "]"
		m.Provenance = ProvenanceManual
		return nil
	})
}

// Unlink clears the header, confidence and reasoning of fieldID.
func (s Set) Unlink(fieldID string) (Set, error) {
	return s.update(fieldID, func(m *FieldMapping) error {
		m.SourceHeader = ""
		m.Confidence = nil
		m.SemanticReasoning = ""
		m.Provenance = ""
		return nil
	})
}

// AddStep appends op to fieldID's pipeline under a generated id.
func (s Set) AddStep(fieldID string, op transformer.Op) (Set, transformer.Step, error) {
	if err := transformer.ValidateStep(op); err != nil {
		return s, transformer.Step{}, err
	}
	step := transformer.NewStep(op)
	out, err := s.update(fieldID, func(m *FieldMapping) error {
		m.Transformations = append(m.Transformations, step)
		return nil
	})
	if err != nil {
		return s, transformer.Step{}, err
	}
	return out, step, nil
}

// RemoveStep deletes stepID from fieldID's pipeline.
func (s Set) RemoveStep(fieldID, stepID string) (Set, error) {
	return s.update(fieldID, func(m *FieldMapping) error {
		for i, st := range m.Transformations {
			if st.ID == stepID {
				m.Transformations = append(m.Transformations[:i], m.Transformations[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %q on field %s", ErrUnknownStep, stepID, fieldID)
	})
}

// UpdateStep swaps the operation of stepID, keeping its id and position.
func (s Set) UpdateStep(fieldID, stepID string, op transformer.Op) (Set, error) {
	if err := transformer.ValidateStep(op); err != nil {
		return s, err
	}
	return s.update(fieldID, func(m *FieldMapping) error {
		for i, st := range m.Transformations {
			if st.ID == stepID {
				m.Transformations[i].Op = op
				return nil
			}
		}
		return fmt.Errorf("%w: %q on field %s", ErrUnknownStep, stepID, fieldID)
	})
}

func (s Set) update(fieldID string, fn func(*FieldMapping) error) (Set, error) {
	i, err := s.index(fieldID)
	if err != nil {
		return s, err
	}
	out := s.clone()
	if err := fn(&out.Mappings[i]); err != nil {
		return s, err
	}
	return out, nil
}

// MappedCount is the number of entries with a source header.
func (s Set) MappedCount() int {
	n := 0
	for _, m := range s.Mappings {
		if m.Mapped() {
			n++
		}
	}
	return n
}
