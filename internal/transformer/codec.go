package transformer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wireStep is the persisted and HTTP shape of a Step.
type wireStep struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Value       string      `json:"value,omitempty"`
	ReplaceWith string      `json:"replaceWith,omitempty"`
	Mode        ReplaceMode `json:"mode,omitempty"`
}

func toWire(s Step) wireStep {
	w := wireStep{ID: s.ID}
	if s.Op == nil {
		return w
	}
	w.Type = string(s.Op.Kind())
	w.Value = OpValue(s.Op)
	if r, ok := s.Op.(Replace); ok {
		w.ReplaceWith = r.With
		if r.Mode == ModePattern {
			w.Mode = ModePattern
		}
	}
	return w
}

func (s Step) MarshalJSON() ([]byte, error) {
	if s.Op == nil {
		return nil, fmt.Errorf("transformer: step %q has no operation", s.ID)
	}
	return json.Marshal(toWire(s))
}

// UnmarshalJSON rejects unknown step types with ErrUnknownStepType.
func (s *Step) UnmarshalJSON(b []byte) error {
	var w wireStep
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind, err := ParseKind(w.Type)
	if err != nil {
		return err
	}
	op, err := OpFor(kind, w.Value, w.ReplaceWith, w.Mode)
	if err != nil {
		return err
	}
	*s = Step{ID: w.ID, Op: op}
	return nil
}

// OpValue returns the primary "value" field of op, or "" when the kind has none.
func OpValue(op Op) string {
	switch o := op.(type) {
	case Constant:
		return o.Value
	case DefaultIfNull:
		return o.Value
	case Prefix:
		return o.Value
	case Suffix:
		return o.Value
	case Replace:
		return o.Pattern
	default:
		return ""
	}
}

// Summary renders steps for reports as "TYPE(value)" items joined by " | ".
// Steps without a value render as "TYPE". An empty pipeline renders "".
func Summary(steps []Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Op == nil {
			continue
		}
		name := strings.ToUpper(string(s.Op.Kind()))
		if v := OpValue(s.Op); v != "" {
			name += "(" + v + ")"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " | ")
}
