package value

import (
	"encoding/json"
	"testing"
	"time"
)

func TestString_TextForms(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("CET", 3600))

	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null(), ""},
		{"text", Text(" a "), " a "},
		{"integer", Number(12), "12"},
		{"fraction", Number(7.5), "7.5"},
		{"negative", Number(-0.25), "-0.25"},
		{"huge", Number(1e21), "1e+21"},
		{"bool", Bool(true), "true"},
		{"timestamp utc", Timestamp(ts), "2024-01-02T02:04:05.006Z"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsEmpty_NullAndEmptyTextOnly(t *testing.T) {
	t.Parallel()

	if !Null().IsEmpty() || !Text("").IsEmpty() {
		t.Fatalf("null and empty text must be empty")
	}
	for _, v := range []Value{Text(" "), Number(0), Bool(false)} {
		if v.IsEmpty() {
			t.Fatalf("%v (%s) must not be empty", v, v.Kind())
		}
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{"x", Text("x")},
		{[]byte("y"), Text("y")},
		{true, Bool(true)},
		{3, Number(3)},
		{int64(-4), Number(-4)},
		{float32(1.5), Number(1.5)},
		{json.Number("2.25"), Number(2.25)},
	}
	for _, tt := range tests {
		if got := FromAny(tt.in); !got.Equal(tt.want) {
			t.Fatalf("FromAny(%#v) = %v (%s), want %v (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
		}
	}
}

func TestJSON_NullStaysDistinctFromEmpty(t *testing.T) {
	t.Parallel()

	row := map[string]Value{"a": Null(), "b": Text(""), "c": Number(1), "d": Bool(false)}
	b, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":null,"b":"","c":1,"d":false}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}

	var back map[string]Value
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k, v := range row {
		if !back[k].Equal(v) {
			t.Fatalf("key %s: got %v (%s), want %v (%s)", k, back[k], back[k].Kind(), v, v.Kind())
		}
	}
}

func TestUnmarshal_RejectsComposite(t *testing.T) {
	t.Parallel()

	var v Value
	if err := json.Unmarshal([]byte(`{"x":1}`), &v); err == nil {
		t.Fatalf("expected error for object input")
	}
}
