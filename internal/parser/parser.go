// Package parser turns an uploaded tabular file into headers and value rows.
//
// Format readers live in subpackages and return raw header and record slices;
// this package applies the shared rules: trimmed headers, generated names for
// empty headers, de-duplicated names, padded or truncated rows and dropped
// empty rows.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	csvparser "mapsync/internal/parser/csv"
	htmlparser "mapsync/internal/parser/html"
	jsonparser "mapsync/internal/parser/json"
	xlsxparser "mapsync/internal/parser/xlsx"
	"mapsync/internal/value"
)

var (
	ErrEmptyFile         = errors.New("parser: file is empty")
	ErrUnsupportedFormat = errors.New("parser: unsupported file format")
)

// Table is a parsed file.
type Table struct {
	Headers []string
	Rows    []value.Row
}

// Format identifies a reader.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// FormatOf maps a file name to its format by extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// ParseFile reads r using the reader selected by name's extension.
func ParseFile(name string, r io.Reader) (Table, error) {
	format, err := FormatOf(name)
	if err != nil {
		return Table{}, err
	}
	return Parse(format, name, r)
}

// Parse reads r in the given format. name is used in error messages only.
func Parse(format Format, name string, r io.Reader) (Table, error) {
	var (
		headers []string
		records [][]value.Value
		err     error
	)
	switch format {
	case FormatCSV:
		headers, records, err = csvparser.Read(r, csvparser.Options{})
	case FormatTSV:
		headers, records, err = csvparser.Read(r, csvparser.Options{Comma: '\t'})
	case FormatJSON:
		headers, records, err = jsonparser.Read(r)
	case FormatXLSX:
		headers, records, err = xlsxparser.Read(r)
	case FormatHTML:
		headers, records, err = htmlparser.Read(r, htmlparser.Options{})
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Table{}, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(headers) == 0 {
		return Table{}, fmt.Errorf("parse %s: %w", name, ErrEmptyFile)
	}
	return Build(headers, records), nil
}

// Build applies the shared header and row rules to raw reader output.
func Build(rawHeaders []string, records [][]value.Value) Table {
	headers := NormalizeHeaders(rawHeaders)
	rows := make([]value.Row, 0, len(records))
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		row := make(value.Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = value.Null()
			}
		}
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}
}

// NormalizeHeaders trims names, names empty headers "Column N" (1-based) and
// suffixes repeats with _2, _3 and so on.
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]struct{}, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = "Column " + strconv.Itoa(i+1)
		}
		name := h
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}

func isBlank(rec []value.Value) bool {
	for _, v := range rec {
		if !v.IsEmpty() && strings.TrimSpace(v.String()) != "" {
			return false
		}
	}
	return true
}
