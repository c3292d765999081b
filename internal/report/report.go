// Package report renders a saved configuration as the CSV integration report
// handed to the teams that own the target tables.
package report

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
	"mapsync/internal/transformer"
)

const (
	title        = "MAPSYNC INTEGRATION REPORT"
	unknownGroup = "Unknown"
	unmapped     = "UNMAPPED"
	noSteps      = "NONE"
)

var columns = []string{"Target Table", "Target Column", "Source Header", "Transformations", "Requirement"}

var whitespace = regexp.MustCompile(`\s+`)

// FileName is the download name for cfg's report.
func FileName(cfg mapping.SavedConfiguration) string {
	return whitespace.ReplaceAllString(cfg.Name, "_") + "_mapping_report.csv"
}

// Write renders cfg. Schema blocks follow the order of the configuration's
// group in cat, then any other catalog schema by id; unknown schemas and
// mappings whose field is not in the schema are skipped. Every cell of the
// table is quoted; the name and domain lines are quoted when they need it.
func Write(w io.Writer, cfg mapping.SavedConfiguration, cat *catalog.Catalog, now time.Time) error {
	bw := bufio.NewWriter(w)

	groupName := unknownGroup
	if g, err := cat.Group(cfg.GroupID); err == nil {
		groupName = g.Name
	}
	bw.WriteString(title + "\n")
	writeLine(bw, "Registry Name: "+cfg.Name)
	writeLine(bw, "Business Domain: "+groupName)
	bw.WriteString("Generated At: " + now.Format(time.RFC1123) + "\n\n")
	bw.WriteString(strings.Join(columns, ",") + "\n")

	for _, sc := range schemaOrder(cfg, cat) {
		for _, m := range cfg.ObjectMappings[sc.ID] {
			f, ok := sc.Field(m.TargetFieldID)
			if !ok {
				continue
			}
			header := m.SourceHeader
			if header == "" {
				header = unmapped
			}
			steps := transformer.Summary(m.Transformations)
			if steps == "" {
				steps = noSteps
			}
			req := "OPTIONAL"
			if f.Required {
				req = "MANDATORY"
			}
			writeRow(bw, sc.TableName, f.ColumnName, header, steps, req)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func schemaOrder(cfg mapping.SavedConfiguration, cat *catalog.Catalog) []catalog.Schema {
	var out []catalog.Schema
	done := make(map[string]bool, len(cfg.ObjectMappings))

	if schemas, err := cat.GroupSchemas(cfg.GroupID); err == nil {
		for _, sc := range schemas {
			if _, ok := cfg.ObjectMappings[sc.ID]; ok {
				out = append(out, sc)
				done[sc.ID] = true
			}
		}
	}

	rest := make([]string, 0, len(cfg.ObjectMappings))
	for id := range cfg.ObjectMappings {
		if !done[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		if sc, err := cat.Schema(id); err == nil {
			out = append(out, sc)
		}
	}
	return out
}

// writeLine writes a one-cell preamble line, quoted only when the text holds
// a comma, quote or line break.
func writeLine(w *bufio.Writer, line string) {
	if strings.ContainsAny(line, ",\"\r\n") {
		writeRow(w, line)
		return
	}
	w.WriteString(line + "\n")
}

func writeRow(w *bufio.Writer, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(c, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
