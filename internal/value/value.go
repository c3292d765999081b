// Package value defines the closed scalar variant carried by parsed rows and
// transformation pipelines.
//
// A Value is one of: null, text, number, boolean, timestamp. Values are small,
// comparable by Equal, and immutable; every constructor returns a new Value.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ISOLayout is the canonical timestamp text form (ISO-8601, UTC, milliseconds).
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Value is a closed scalar variant. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
	t    time.Time
}

func Null() Value                 { return Value{} }
func Text(s string) Value         { return Value{kind: KindText, s: s} }
func Number(f float64) Value      { return Value{kind: KindNumber, n: f} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether v is null or the empty text.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindText && v.s == "")
}

// Float returns the numeric payload. ok is false for non-number kinds.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// BoolValue returns the boolean payload. ok is false for non-boolean kinds.
func (v Value) BoolValue() (b bool, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Time returns the timestamp payload. ok is false for non-timestamp kinds.
func (v Value) Time() (t time.Time, ok bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.t, true
}

// String returns the text form used by string-oriented pipeline steps.
// Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindNumber:
		return FormatNumber(v.n)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTimestamp:
		return v.t.UTC().Format(ISOLayout)
	default:
		return ""
	}
}

// FormatNumber renders f in the shortest decimal form, switching to exponent
// notation only for very large or very small magnitudes.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether a and b hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n || (math.IsNaN(v.n) && math.IsNaN(o.n))
	case KindBool:
		return v.b == o.b
	case KindTimestamp:
		return v.t.Equal(o.t)
	}
	return false
}

// Native returns a database/sql friendly representation:
// nil, string, float64, bool or time.Time.
func (v Value) Native() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	case KindTimestamp:
		return v.t
	default:
		return nil
	}
}

// FromAny converts a loosely typed cell (as produced by decoders and
// spreadsheet readers) into a Value.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case bool:
		return Bool(t)
	case time.Time:
		return Timestamp(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return Text(fmt.Sprint(t))
		}
		return Number(f)
	default:
		s, err := cast.ToStringE(t)
		if err != nil {
			return Text(fmt.Sprint(t))
		}
		return Text(s)
	}
}

// MarshalJSON encodes null as null, numbers and booleans natively and text and
// timestamps as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.String())
	}
}

// UnmarshalJSON accepts any JSON scalar. Timestamps arrive as text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]any, []any:
		return fmt.Errorf("value: expected scalar, got %s", string(data))
	}
	*v = FromAny(raw)
	return nil
}

// Row is one parsed record keyed by header.
type Row map[string]Value

// Get returns the cell for header, or null when the header is absent.
func (r Row) Get(header string) Value {
	if r == nil {
		return Null()
	}
	return r[header]
}
