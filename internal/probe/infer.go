// Package probe infers semantic column types from sampled source values.
package probe

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"mapsync/internal/catalog"
	"mapsync/internal/value"
)

// InferType classifies a column by its raw values.
//
// Null and empty values are ignored. The remaining values must all satisfy a
// predicate for the type to be chosen; predicates are tried in the order
// BOOLEAN, NUMERIC, TIMESTAMP, so a column of "1"/"0" is BOOLEAN.
// Anything else, including a column with no values, is TEXT.
func InferType(values []value.Value) catalog.DataType {
	allBool, allNum, allTS := true, true, true
	seen := false

	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		seen = true
		s := v.String()

		if allBool && !isBoolToken(s) {
			allBool = false
		}
		if allNum && !IsNumeric(s) {
			allNum = false
		}
		if allTS {
			if _, _, ok := ParseTimestamp(s); !ok {
				allTS = false
			}
		}
		if !allBool && !allNum && !allTS {
			return catalog.TypeText
		}
	}

	switch {
	case !seen:
		return catalog.TypeText
	case allBool:
		return catalog.TypeBoolean
	case allNum:
		return catalog.TypeNumeric
	case allTS:
		return catalog.TypeTimestamp
	default:
		return catalog.TypeText
	}
}

// InferColumns runs InferType for every header over rows.
func InferColumns(headers []string, rows []value.Row) map[string]catalog.DataType {
	out := make(map[string]catalog.DataType, len(headers))
	col := make([]value.Value, 0, len(rows))
	for _, h := range headers {
		col = col[:0]
		for _, r := range rows {
			col = append(col, r.Get(h))
		}
		out[h] = InferType(col)
	}
	return out
}

func isBoolToken(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "1", "0":
		return true
	}
	return false
}

// ParseBool accepts the boolean tokens used by inference plus t/f and y/n.
func ParseBool(s string) (b bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// IsNumeric reports whether the trimmed text is a finite decimal number.
func IsNumeric(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// ParseNumber parses trimmed text as a finite float64.
// Blank text and Inf/NaN spellings are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// LayoutISO8601 is reported by ParseTimestamp for values read by the ISO parser.
const LayoutISO8601 = "iso8601"

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	"Mon Jan 2 2006",
	"Jan 2, 2006 15:04:05",
}

// ParseTimestamp parses s as a calendar date or timestamp. It tries ISO-8601
// first, then the fixed date and timestamp layouts, and returns the layout
// that matched. Results are in UTC.
func ParseTimestamp(s string) (t time.Time, layout string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	if looksISO(s) {
		if t, err := iso8601.ParseString(s); err == nil {
			return t.UTC(), LayoutISO8601, true
		}
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.UTC(), lay, true
		}
	}
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.UTC(), lay, true
		}
	}
	return time.Time{}, "", false
}

// looksISO requires a full YYYY-MM-DD prefix so bare years and numbers never
// reach the ISO parser.
func looksISO(s string) bool {
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for _, i := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
