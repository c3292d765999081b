// Package xlsx reads the first worksheet of an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mapsync/internal/probe"
	"mapsync/internal/value"
)

// Read returns the first sheet's header row and records. Numeric and boolean
// cells keep their native kind; date-formatted numbers become timestamps.
// A workbook without sheets or rows returns nil headers and no error.
func Read(r io.Reader) ([]string, [][]value.Value, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	sheet := sheets[0]

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx: read raw sheet %q: %w", sheet, err)
	}
	if len(formatted) == 0 {
		return nil, nil, nil
	}

	headers := append([]string(nil), formatted[0]...)
	records := make([][]value.Value, 0, len(formatted)-1)
	for ri := 1; ri < len(formatted); ri++ {
		row := formatted[ri]
		var rawRow []string
		if ri < len(raw) {
			rawRow = raw[ri]
		}
		rec := make([]value.Value, len(row))
		for ci, text := range row {
			rawText := text
			if ci < len(rawRow) {
				rawText = rawRow[ci]
			}
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, nil, fmt.Errorf("xlsx: cell name: %w", err)
			}
			typ, err := f.GetCellType(sheet, cell)
			if err != nil {
				return nil, nil, fmt.Errorf("xlsx: cell %s type: %w", cell, err)
			}
			rec[ci] = cellValue(typ, text, rawText, func() bool { return isDateStyled(f, sheet, cell) })
		}
		records = append(records, rec)
	}
	return headers, records, nil
}

func cellValue(typ excelize.CellType, text, raw string, dateStyled func() bool) value.Value {
	if text == "" && raw == "" {
		return value.Null()
	}
	switch typ {
	case excelize.CellTypeBool:
		if b, ok := probe.ParseBool(raw); ok {
			return value.Bool(b)
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			break
		}
		if dateStyled() {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return value.Timestamp(t)
			}
		}
		return value.Number(f)
	case excelize.CellTypeDate:
		if t, _, ok := probe.ParseTimestamp(raw); ok {
			return value.Timestamp(t)
		}
	}
	return value.Text(text)
}

// isDateStyled reports whether the cell's number format renders a date:
// the built-in date formats or a custom format with day or year tokens.
func isDateStyled(f *excelize.File, sheet, cell string) bool {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.NumFmt >= 14 && style.NumFmt <= 22 {
		return true
	}
	if style.CustomNumFmt == nil {
		return false
	}
	custom := strings.ToLower(*style.CustomNumFmt)
	return strings.ContainsAny(custom, "dy")
}
