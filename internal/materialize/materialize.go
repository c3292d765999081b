// Package materialize turns source rows into target rows by running every
// field's pipeline.
package materialize

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
	"mapsync/internal/transformer"
	"mapsync/internal/value"
)

// DefaultPreviewLimit is the number of rows shown by a preview.
const DefaultPreviewLimit = 8

// NullMarker stands in for a null cell in rendered previews.
const NullMarker = "NULL"

// KeyBy selects how output rows are keyed.
type KeyBy int

const (
	// KeyByFieldID keys rows by target field id, as previews do.
	KeyByFieldID KeyBy = iota
	// KeyByColumn keys rows by target column name, as loads do.
	KeyByColumn
)

// Options controls Rows.
type Options struct {
	// Limit caps the number of source rows; 0 or less means all rows.
	Limit int
	Key   KeyBy
}

// PreviewOptions is what the preview screen uses.
func PreviewOptions() Options {
	return Options{Limit: DefaultPreviewLimit, Key: KeyByFieldID}
}

// Row is one materialized target row.
type Row map[string]value.Value

// Rows runs the pipeline of every field of schema over rows. A field without
// a header, or whose header is absent from a row, starts from null. Every
// field of schema is present in every output row.
func Rows(schema catalog.Schema, set mapping.Set, rows []value.Row, opt Options) []Row {
	n := len(rows)
	if opt.Limit > 0 && opt.Limit < n {
		n = opt.Limit
	}
	norm := set.Normalize(schema)

	out := make([]Row, n)
	for i := 0; i < n; i++ {
		src := rows[i]
		dst := make(Row, len(schema.Fields))
		for j, f := range schema.Fields {
			m := norm.Mappings[j]
			raw := value.Null()
			if m.Mapped() {
				raw = src.Get(m.SourceHeader)
			}
			key := f.ID
			if opt.Key == KeyByColumn {
				key = f.ColumnName
			}
			dst[key] = transformer.Apply(raw, m.Transformations)
		}
		out[i] = dst
	}
	return out
}

// TableOptions controls Table.
type TableOptions struct {
	// EmptyAsNull sends empty text as NULL.
	EmptyAsNull bool
}

// DefaultTableOptions is what a load uses.
func DefaultTableOptions() TableOptions {
	return TableOptions{EmptyAsNull: true}
}

// Table materializes all rows for a bulk load. Columns follow schema order and
// cells are driver-ready: nil, string, float64, bool or time.Time.
func Table(schema catalog.Schema, set mapping.Set, rows []value.Row, opt TableOptions) ([]string, [][]any) {
	cols := schema.ColumnNames()
	mat := Rows(schema, set, rows, Options{Key: KeyByColumn})

	out := make([][]any, len(mat))
	for i, r := range mat {
		rec := make([]any, len(cols))
		for j, c := range cols {
			v := r[c]
			if opt.EmptyAsNull && v.Kind() == value.KindText && v.String() == "" {
				rec[j] = nil
				continue
			}
			rec[j] = v.Native()
		}
		out[i] = rec
	}
	return cols, out
}

// Cell renders v for display, using NullMarker for null.
func Cell(v value.Value) string {
	if v.IsNull() {
		return NullMarker
	}
	return v.String()
}

// Preview writes rows keyed by field id as an aligned text table headed by
// the field labels.
func Preview(w io.Writer, schema catalog.Schema, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	labels := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		labels[i] = f.Label
	}
	if _, err := fmt.Fprintln(tw, strings.Join(labels, "\t")); err != nil {
		return err
	}

	cells := make([]string, len(schema.Fields))
	for _, r := range rows {
		for i, f := range schema.Fields {
			cells[i] = Cell(r[f.ID])
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
