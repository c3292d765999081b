package probe

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/catalog"
	"mapsync/internal/value"
)

func texts(ss ...string) []value.Value {
	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.Text(s)
	}
	return out
}

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []value.Value
		want catalog.DataType
	}{
		{"nil input", nil, catalog.TypeText},
		{"all empty or null", []value.Value{value.Null(), value.Text(""), value.Null()}, catalog.TypeText},
		{"one-zero is boolean before numeric", texts("1", "0", "1"), catalog.TypeBoolean},
		{"yes/no mixed case", texts("Yes", "NO", "true"), catalog.TypeBoolean},
		{"numeric", texts("12", "7.5", "3"), catalog.TypeNumeric},
		{"numeric with blanks ignored", []value.Value{value.Text("12"), value.Null(), value.Text("")}, catalog.TypeNumeric},
		{"numeric with padding", texts(" 12 ", "3"), catalog.TypeNumeric},
		{"nan is not numeric", texts("NaN", "1.5"), catalog.TypeText},
		{"inf is not numeric", texts("Inf"), catalog.TypeText},
		{"whitespace only is not numeric", texts("   ", "4"), catalog.TypeText},
		{"iso dates", texts("2024-01-01", "2023-12-31"), catalog.TypeTimestamp},
		{"iso timestamps", texts("2024-01-01T10:00:00Z", "2024-01-01T10:00:00.000+02:00"), catalog.TypeTimestamp},
		{"european dates", texts("31.12.2023", "01.01.2024"), catalog.TypeTimestamp},
		{"month name", texts("Jan 2, 2024"), catalog.TypeTimestamp},
		{"text", texts("abc", "def"), catalog.TypeText},
		{"mixed numbers and text", texts("12", "abc"), catalog.TypeText},
		{"native booleans", []value.Value{value.Bool(true), value.Bool(false)}, catalog.TypeBoolean},
		{"native numbers", []value.Value{value.Number(12), value.Number(7.5)}, catalog.TypeNumeric},
		{"native zero-one numbers", []value.Value{value.Number(1), value.Number(0)}, catalog.TypeBoolean},
		{"native timestamps", []value.Value{value.Timestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}, catalog.TypeTimestamp},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferType(tt.in); got != tt.want {
				t.Fatalf("InferType(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferTypeIsPure(t *testing.T) {
	t.Parallel()

	in := texts("2024-01-01", "", "2023-12-31")
	first := InferType(in)
	for i := 0; i < 5; i++ {
		if got := InferType(in); got != first {
			t.Fatalf("InferType run %d = %q, want %q", i, got, first)
		}
	}
	if in[1].String() != "" || in[0].String() != "2024-01-01" {
		t.Fatalf("InferType mutated its input: %v", in)
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{" YES ", true, true},
		{"t", true, true},
		{"1", true, true},
		{"n", false, true},
		{"False", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseBool(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ParseBool(%q) = (%v,%v), want (%v,%v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		want       time.Time
		wantLayout string
		wantOK     bool
	}{
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), LayoutISO8601, true},
		{"2024-03-05T10:20:30+02:00", time.Date(2024, 3, 5, 8, 20, 30, 0, time.UTC), LayoutISO8601, true},
		{"31.12.2023", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), "02.01.2006", true},
		{"Mon, 02 Jan 2006 15:04:05 UTC", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), time.RFC1123, true},
		{"2024", time.Time{}, "", false},
		{"12", time.Time{}, "", false},
		{"not a date", time.Time{}, "", false},
		{"", time.Time{}, "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, lay, ok := ParseTimestamp(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseTimestamp(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if lay != tt.wantLayout {
				t.Fatalf("ParseTimestamp(%q) layout = %q, want %q", tt.in, lay, tt.wantLayout)
			}
		})
	}
}

func TestInferColumns(t *testing.T) {
	t.Parallel()

	headers := []string{"id", "active", "joined", "name", "missing"}
	rows := []value.Row{
		{"id": value.Text("10"), "active": value.Text("yes"), "joined": value.Text("2024-01-01"), "name": value.Text("Ann")},
		{"id": value.Text("11"), "active": value.Text("no"), "joined": value.Text(""), "name": value.Text("Bob")},
	}

	got := InferColumns(headers, rows)
	want := map[string]catalog.DataType{
		"id":      catalog.TypeNumeric,
		"active":  catalog.TypeBoolean,
		"joined":  catalog.TypeTimestamp,
		"name":    catalog.TypeText,
		"missing": catalog.TypeText,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("InferColumns mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeAndRender(t *testing.T) {
	t.Parallel()

	headers := []string{"code", "day"}
	rows := []value.Row{
		{"code": value.Text("A"), "day": value.Text("01.02.2024")},
		{"code": value.Text("A"), "day": value.Text("03.02.2024")},
		{"code": value.Text("B"), "day": value.Text("2024-02-04")},
		{"code": value.Text(""), "day": value.Null()},
	}

	stats := Summarize(headers, rows)
	want := []ColumnStats{
		{Header: "code", Type: catalog.TypeText, NonEmpty: 3, Distinct: 2},
		{Header: "day", Type: catalog.TypeTimestamp, NonEmpty: 3, Distinct: 3, Layout: "02.01.2006"},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("Summarize mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := RenderSummary(&buf, len(rows), stats); err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}
	out := buf.String()
	for _, line := range []string{"sample_rows=4", "code,TEXT,3,2,", "day,TIMESTAMP,3,3,02.01.2006"} {
		if !strings.Contains(out, line) {
			t.Fatalf("summary missing %q:\n%s", line, out)
		}
	}
}
