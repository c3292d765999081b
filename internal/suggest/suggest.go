// Package suggest asks an external model for semantic header matches and
// merges its answers into a mapping.Set.
package suggest

import (
	"context"
	"io"
	"log"

	"mapsync/internal/catalog"
)

// Suggestion is one proposed link. A suggestion without SourceHeader means
// the model found no confident match.
type Suggestion struct {
	TargetFieldID     string   `json:"targetFieldId"`
	SourceHeader      string   `json:"sourceHeader,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	SemanticReasoning string   `json:"semanticReasoning"`
}

// Score returns the confidence, treating a missing value as 0.
func (s Suggestion) Score() float64 {
	if s.Confidence == nil {
		return 0
	}
	return *s.Confidence
}

// Suggester proposes matches between headers and the fields of schema.
type Suggester interface {
	Suggest(ctx context.Context, headers []string, schema catalog.Schema) ([]Suggestion, error)
}

// Logger is the minimal logging seam used across mapsync.
type Logger interface {
	Printf(format string, v ...any)
}

// Disabled is used when no model is configured. It never suggests anything.
type Disabled struct{}

func (Disabled) Suggest(context.Context, []string, catalog.Schema) ([]Suggestion, error) {
	return nil, nil
}

// Safe wraps s so that failures become an empty result and answers are
// sanitized: unknown field ids and unknown headers are dropped and only the
// first suggestion per field is kept. Safe never returns an error.
func Safe(s Suggester, logger Logger) Suggester {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &safe{inner: s, logger: logger}
}

type safe struct {
	inner  Suggester
	logger Logger
}

func (s *safe) Suggest(ctx context.Context, headers []string, schema catalog.Schema) ([]Suggestion, error) {
	raw, err := s.inner.Suggest(ctx, headers, schema)
	if err != nil {
		s.logger.Printf("stage=suggest level=warn schema=%s err=%q degraded=empty", schema.ID, err.Error())
		return nil, nil
	}
	out := Sanitize(raw, headers, schema)
	if dropped := len(raw) - len(out); dropped > 0 {
		s.logger.Printf("stage=suggest schema=%s kept=%d dropped=%d", schema.ID, len(out), dropped)
	}
	return out, nil
}

// Sanitize drops suggestions that name an unknown field or an unknown header
// and keeps the first suggestion per field.
func Sanitize(raw []Suggestion, headers []string, schema catalog.Schema) []Suggestion {
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]Suggestion, 0, len(raw))
	for _, sg := range raw {
		if _, ok := schema.Field(sg.TargetFieldID); !ok {
			continue
		}
		if _, dup := seen[sg.TargetFieldID]; dup {
			continue
		}
		if sg.SourceHeader != "" {
			if _, ok := known[sg.SourceHeader]; !ok {
				continue
			}
		}
		seen[sg.TargetFieldID] = struct{}{}
		out = append(out, sg)
	}
	return out
}
