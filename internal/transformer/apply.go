package transformer

import (
	"regexp"
	"strings"

	"github.com/umisama/go-regexpcache"

	"mapsync/internal/probe"
	"mapsync/internal/value"
)

// Apply folds steps over raw in order. It is pure and never panics.
func Apply(raw value.Value, steps []Step) value.Value {
	v := raw
	for _, s := range steps {
		v = applyOp(v, s.Op)
	}
	return v
}

func applyOp(v value.Value, op Op) value.Value {
	switch o := op.(type) {
	case Constant:
		return value.Text(o.Value)
	case Uppercase:
		return value.Text(strings.ToUpper(v.String()))
	case Lowercase:
		return value.Text(strings.ToLower(v.String()))
	case Trim:
		return value.Text(strings.TrimSpace(v.String()))
	case DefaultIfNull:
		if v.IsEmpty() {
			return value.Text(o.Value)
		}
		return v
	case Prefix:
		return value.Text(o.Value + v.String())
	case Suffix:
		return value.Text(v.String() + o.Value)
	case Replace:
		return value.Text(replace(v.String(), o))
	case ToNumber:
		return toNumber(v)
	case ToDate:
		return toDate(v)
	default:
		return v
	}
}

func replace(s string, r Replace) string {
	if r.Pattern == "" {
		return s
	}
	if r.Mode != ModePattern {
		return strings.ReplaceAll(s, r.Pattern, r.With)
	}
	if len(r.Pattern) > MaxPatternLen {
		return s
	}
	re, err := compilePattern(r.Pattern)
	if err != nil {
		return s
	}
	return re.ReplaceAllString(s, r.With)
}

// compilePattern returns a shared compiled expression. regexpcache only
// caches successful compiles, so invalid input is reported, not panicked on.
func compilePattern(p string) (*regexp.Regexp, error) {
	return regexpcache.Compile(p)
}

func toNumber(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindNull:
		return value.Null()
	case value.KindNumber:
		return v
	case value.KindBool:
		if b, _ := v.BoolValue(); b {
			return value.Number(1)
		}
		return value.Number(0)
	case value.KindText:
		if f, ok := probe.ParseNumber(v.String()); ok {
			return value.Number(f)
		}
	}
	return value.Null()
}

func toDate(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindNull:
		return value.Null()
	case value.KindTimestamp:
		return v
	}
	if t, _, ok := probe.ParseTimestamp(v.String()); ok {
		return value.Timestamp(t)
	}
	return value.Null()
}
