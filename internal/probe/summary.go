package probe

import (
	"fmt"
	"io"
	"sort"

	"mapsync/internal/catalog"
	"mapsync/internal/value"
)

// distinctCap bounds the per-column distinct set.
const distinctCap = 10000

// ColumnStats describes one sampled column.
type ColumnStats struct {
	Header   string
	Type     catalog.DataType
	NonEmpty int
	Distinct int
	Capped   bool
	// Layout is the most common date layout for TIMESTAMP columns.
	Layout string
}

// Summarize computes per-column stats over rows in header order.
func Summarize(headers []string, rows []value.Row) []ColumnStats {
	types := InferColumns(headers, rows)
	out := make([]ColumnStats, 0, len(headers))

	for _, h := range headers {
		st := ColumnStats{Header: h, Type: types[h]}
		set := make(map[string]struct{})
		layouts := map[string]int{}

		for _, r := range rows {
			v := r.Get(h)
			if v.IsEmpty() {
				continue
			}
			st.NonEmpty++
			s := v.String()
			if !st.Capped {
				set[s] = struct{}{}
				if len(set) >= distinctCap {
					st.Capped = true
					set = nil
				}
			}
			if st.Type == catalog.TypeTimestamp {
				if _, lay, ok := ParseTimestamp(s); ok {
					layouts[lay]++
				}
			}
		}

		if st.Capped {
			st.Distinct = distinctCap
		} else {
			st.Distinct = len(set)
		}
		st.Layout = majorityLayout(layouts)
		out = append(out, st)
	}
	return out
}

// majorityLayout picks the most common layout; ties go to the lexically
// smallest so output is stable.
func majorityLayout(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// RenderSummary writes the plain-text summary printed by the CLI.
func RenderSummary(w io.Writer, sampleRows int, stats []ColumnStats) error {
	if _, err := fmt.Fprintf(w, "sample_rows=%d\n", sampleRows); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "header,type,non_empty,distinct,layout"); err != nil {
		return err
	}
	for _, st := range stats {
		distinct := fmt.Sprint(st.Distinct)
		if st.Capped {
			distinct += "+"
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%d,%s,%s\n", st.Header, st.Type, st.NonEmpty, distinct, st.Layout); err != nil {
			return err
		}
	}
	return nil
}
