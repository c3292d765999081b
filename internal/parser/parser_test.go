package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/value"
)

func TestNormalizeHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trimmed", []string{" a ", "b\t"}, []string{"a", "b"}},
		{"empty gets column name", []string{"a", "", "  "}, []string{"a", "Column 2", "Column 3"}},
		{"duplicates suffixed", []string{"x", "x", "x"}, []string{"x", "x_2", "x_3"}},
		{"suffix collision skipped", []string{"x", "x_2", "x"}, []string{"x", "x_2", "x_3"}},
		{"bom stripped", []string{"\uFEFFid", "name"}, []string{"id", "name"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeHeaders(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("NormalizeHeaders(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestBuild_PadsTruncatesAndDropsBlankRows(t *testing.T) {
	t.Parallel()

	tbl := Build([]string{"a", "b"}, [][]value.Value{
		{value.Text("1")},
		{value.Null(), value.Text("")},
		{value.Text("2"), value.Text("3"), value.Text("extra")},
		{value.Text("  ")},
	})

	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if !tbl.Rows[0].Get("b").IsNull() {
		t.Fatalf("short row not padded with null: %v", tbl.Rows[0])
	}
	if len(tbl.Rows[1]) != 2 || tbl.Rows[1].Get("b").String() != "3" {
		t.Fatalf("long row not truncated: %v", tbl.Rows[1])
	}
}

func TestParseFile_CSV(t *testing.T) {
	t.Parallel()

	in := "Name,Age,Name\nAnn,31,x\n,,\nBob,,y\n"
	tbl, err := ParseFile("people.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if diff := cmp.Diff([]string{"Name", "Age", "Name_2"}, tbl.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if got := tbl.Rows[0].Get("Age"); !got.Equal(value.Text("31")) {
		t.Fatalf("Age = %v, want text 31", got)
	}
	if got := tbl.Rows[1].Get("Age"); !got.IsNull() {
		t.Fatalf("empty CSV cell = %v, want null", got)
	}
}

func TestParseFile_JSONKeepsNativeKinds(t *testing.T) {
	t.Parallel()

	in := `[{"id": 1, "ok": true, "name": "a"}, {"id": 2.5, "extra": null}]`
	tbl, err := ParseFile("rows.json", strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if diff := cmp.Diff([]string{"id", "ok", "name", "extra"}, tbl.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if got := tbl.Rows[0].Get("id"); !got.Equal(value.Number(1)) {
		t.Fatalf("id = %v, want number 1", got)
	}
	if got := tbl.Rows[0].Get("ok"); !got.Equal(value.Bool(true)) {
		t.Fatalf("ok = %v, want bool", got)
	}
	if got := tbl.Rows[1].Get("name"); !got.IsNull() {
		t.Fatalf("missing key = %v, want null", got)
	}
}

func TestParseFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		in      string
		wantErr error
	}{
		{"empty csv", "a.csv", "", ErrEmptyFile},
		{"whitespace csv", "a.csv", "  \n\n", ErrEmptyFile},
		{"empty json", "a.json", "", ErrEmptyFile},
		{"html without table", "a.html", "<p>hi</p>", ErrEmptyFile},
		{"unknown extension", "a.pdf", "x", ErrUnsupportedFormat},
		{"no extension", "README", "x", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseFile(tt.file, strings.NewReader(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseFile(%q) err = %v, want %v", tt.file, err, tt.wantErr)
			}
		})
	}
}

func TestParseFile_WrapsReaderErrorsWithName(t *testing.T) {
	t.Parallel()

	_, err := ParseFile("broken.json", strings.NewReader(`[1, 2]`))
	if err == nil {
		t.Fatalf("expected error for non-object array elements")
	}
	if !strings.Contains(err.Error(), "broken.json") {
		t.Fatalf("error %q does not name the file", err)
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := map[string]Format{
		"a.CSV":   FormatCSV,
		"a.txt":   FormatCSV,
		"a.tsv":   FormatTSV,
		"a.jsonl": FormatJSON,
		"a.xlsx":  FormatXLSX,
		"a.htm":   FormatHTML,
	}
	for name, want := range tests {
		got, err := FormatOf(name)
		if err != nil || got != want {
			t.Fatalf("FormatOf(%q) = (%q, %v), want %q", name, got, err, want)
		}
	}
}
