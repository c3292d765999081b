// Package transformer implements the per-field transformation pipeline: an
// ordered list of steps folded over one source value.
//
// Each step kind is its own Go type implementing Op, and Apply dispatches with
// an exhaustive type switch. Steps never fail; bad input degrades to null or
// passes through unchanged.
package transformer

import (
	"errors"
	"fmt"
	"strings"

	"mapsync/internal/idgen"
)

// Kind is the wire name of a step type.
type Kind string

const (
	KindConstant      Kind = "constant"
	KindUppercase     Kind = "uppercase"
	KindLowercase     Kind = "lowercase"
	KindTrim          Kind = "trim"
	KindDefaultIfNull Kind = "default_if_null"
	KindPrefix        Kind = "prefix"
	KindSuffix        Kind = "suffix"
	KindReplace       Kind = "replace"
	KindToNumber      Kind = "to_number"
	KindToDate        Kind = "to_date"
)

// Kinds lists every step kind in menu order.
var Kinds = []Kind{
	KindConstant, KindUppercase, KindLowercase, KindTrim, KindDefaultIfNull,
	KindPrefix, KindSuffix, KindReplace, KindToNumber, KindToDate,
}

var (
	ErrUnknownStepType = errors.New("transformer: unknown step type")
	ErrInvalidPattern  = errors.New("transformer: invalid replace pattern")
)

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStepType, s)
}

// Op is one step variant.
type Op interface {
	Kind() Kind
	isOp()
}

type (
	Constant      struct{ Value string }
	Uppercase     struct{}
	Lowercase     struct{}
	Trim          struct{}
	DefaultIfNull struct{ Value string }
	Prefix        struct{ Value string }
	Suffix        struct{ Value string }
	ToNumber      struct{}
	ToDate        struct{}
)

// ReplaceMode selects how Replace.Pattern is matched. Literal is the zero
// value; "literal" is accepted on the wire as an alias.
type ReplaceMode string

const (
	ModeLiteral ReplaceMode = ""
	ModePattern ReplaceMode = "pattern"
)

// MaxPatternLen caps pattern-mode expressions.
const MaxPatternLen = 512

// Replace rewrites every occurrence of Pattern with With.
type Replace struct {
	Pattern string
	With    string
	Mode    ReplaceMode
}

func (Constant) Kind() Kind      { return KindConstant }
func (Uppercase) Kind() Kind     { return KindUppercase }
func (Lowercase) Kind() Kind     { return KindLowercase }
func (Trim) Kind() Kind          { return KindTrim }
func (DefaultIfNull) Kind() Kind { return KindDefaultIfNull }
func (Prefix) Kind() Kind        { return KindPrefix }
func (Suffix) Kind() Kind        { return KindSuffix }
func (Replace) Kind() Kind       { return KindReplace }
func (ToNumber) Kind() Kind      { return KindToNumber }
func (ToDate) Kind() Kind        { return KindToDate }

func (Constant) isOp()      {}
func (Uppercase) isOp()     {}
func (Lowercase) isOp()     {}
func (Trim) isOp()          {}
func (DefaultIfNull) isOp() {}
func (Prefix) isOp()        {}
func (Suffix) isOp()        {}
func (Replace) isOp()       {}
func (ToNumber) isOp()      {}
func (ToDate) isOp()        {}

// Step is one identified entry in a pipeline.
type Step struct {
	ID string
	Op Op
}

// NewStep wraps op with a freshly generated id.
func NewStep(op Op) Step {
	return Step{ID: idgen.StepID(), Op: op}
}

// OpFor builds the variant for kind from the loose wire fields. Fields the
// kind does not use are ignored.
func OpFor(kind Kind, val, replaceWith string, mode ReplaceMode) (Op, error) {
	switch kind {
	case KindConstant:
		return Constant{Value: val}, nil
	case KindUppercase:
		return Uppercase{}, nil
	case KindLowercase:
		return Lowercase{}, nil
	case KindTrim:
		return Trim{}, nil
	case KindDefaultIfNull:
		return DefaultIfNull{Value: val}, nil
	case KindPrefix:
		return Prefix{Value: val}, nil
	case KindSuffix:
		return Suffix{Value: val}, nil
	case KindReplace:
		m, err := parseMode(mode)
		if err != nil {
			return nil, err
		}
		return Replace{Pattern: val, With: replaceWith, Mode: m}, nil
	case KindToNumber:
		return ToNumber{}, nil
	case KindToDate:
		return ToDate{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, kind)
	}
}

func parseMode(m ReplaceMode) (ReplaceMode, error) {
	switch ReplaceMode(strings.ToLower(string(m))) {
	case ModeLiteral, "literal":
		return ModeLiteral, nil
	case ModePattern:
		return ModePattern, nil
	default:
		return "", fmt.Errorf("transformer: unknown replace mode %q", m)
	}
}

// ValidateStep reports input problems with op that Apply would silently
// ignore. Only pattern-mode Replace can be invalid.
func ValidateStep(op Op) error {
	r, ok := op.(Replace)
	if !ok || r.Mode != ModePattern || r.Pattern == "" {
		return nil
	}
	if len(r.Pattern) > MaxPatternLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidPattern, MaxPatternLen)
	}
	if _, err := compilePattern(r.Pattern); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}
