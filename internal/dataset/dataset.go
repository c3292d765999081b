// Package dataset holds an uploaded source table together with the semantic
// types inferred for its columns.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"mapsync/internal/catalog"
	"mapsync/internal/idgen"
	"mapsync/internal/parser"
	"mapsync/internal/probe"
	"mapsync/internal/value"
)

// DemoFileName is the name reported for the built-in sample.
const DemoFileName = "sample_data.csv"

// Dataset is one parsed upload. It is never mutated after New; a new upload
// replaces it wholesale.
type Dataset struct {
	ID            string
	FileName      string
	Headers       []string
	Rows          []value.Row
	InferredTypes map[string]catalog.DataType
	LoadedAt      time.Time
}

// New infers a type for every header of tbl and stamps a fresh id.
func New(tbl parser.Table, fileName string) *Dataset {
	return &Dataset{
		ID:            idgen.DatasetID(),
		FileName:      fileName,
		Headers:       append([]string(nil), tbl.Headers...),
		Rows:          tbl.Rows,
		InferredTypes: probe.InferColumns(tbl.Headers, tbl.Rows),
		LoadedAt:      time.Now().UTC(),
	}
}

// Demo returns the built-in employee sample.
func Demo() (*Dataset, error) {
	tbl, err := parser.ParseFile(DemoFileName, strings.NewReader(catalog.SampleCSV))
	if err != nil {
		return nil, fmt.Errorf("dataset: demo: %w", err)
	}
	return New(tbl, DemoFileName), nil
}

// HasHeader reports whether h is one of the dataset's headers.
func (d *Dataset) HasHeader(h string) bool {
	for _, x := range d.Headers {
		if x == h {
			return true
		}
	}
	return false
}

// Type returns the inferred type of header h.
func (d *Dataset) Type(h string) (catalog.DataType, bool) {
	t, ok := d.InferredTypes[h]
	return t, ok
}

// Summary is the JSON shape returned after an upload.
type Summary struct {
	ID            string                      `json:"id"`
	FileName      string                      `json:"fileName"`
	Headers       []string                    `json:"headers"`
	InferredTypes map[string]catalog.DataType `json:"inferredTypes"`
	RowCount      int                         `json:"rowCount"`
}

func (d *Dataset) Summary() Summary {
	return Summary{
		ID:            d.ID,
		FileName:      d.FileName,
		Headers:       append([]string(nil), d.Headers...),
		InferredTypes: d.InferredTypes,
		RowCount:      len(d.Rows),
	}
}
