// Package csv reads delimited text files into a header row and value records.
package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mapsync/internal/value"
)

// Options tunes Read. The zero value sniffs the delimiter and keeps cells as-is.
type Options struct {
	// Comma is the field delimiter; 0 sniffs it from the header line.
	Comma rune
	// TrimSpace trims leading and trailing whitespace from cells.
	TrimSpace bool
}

// candidate delimiters in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

// Read decodes a whole delimited file.
//
// Input may be UTF-8 (with or without BOM), UTF-16 with a BOM, or Windows-1252
// when the bytes are not valid UTF-8. The first record is returned as headers;
// empty cells become null. An input with no bytes returns nil headers and no
// error so the caller can decide how to report it.
func Read(r io.Reader, opt Options) ([]string, [][]value.Value, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read: %w", err)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	comma := opt.Comma
	if comma == 0 {
		comma = sniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var records [][]value.Value
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		out := make([]value.Value, len(rec))
		for i, v := range rec {
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				out[i] = value.Null()
				continue
			}
			out[i] = value.Text(v)
		}
		records = append(records, out)
	}
	return headers, records, nil
}

// decode normalizes raw bytes to UTF-8 without a BOM.
func decode(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}),
		bytes.HasPrefix(raw, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return nil, fmt.Errorf("csv: decode: %w", err)
		}
		return out, nil
	case !utf8.Valid(raw):
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("csv: decode windows-1252: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// sniffDelimiter counts candidate delimiters outside quotes on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestN := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}
