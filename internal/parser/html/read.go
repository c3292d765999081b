// Package html reads the first HTML table of a document as tabular data.
package html

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mapsync/internal/value"
)

// DefaultTableSelector selects the table that is read.
const DefaultTableSelector = "table"

// Options tunes Read.
type Options struct {
	// TableSelector picks the table; the first match is used.
	TableSelector string
}

// Read parses r and returns the first matching table's header row and
// records. Cell text is trimmed and inner whitespace collapsed; empty cells
// become null. A document without a matching table or rows returns nil
// headers and no error.
func Read(r io.Reader, opt Options) ([]string, [][]value.Value, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("html: parse: %w", err)
	}

	sel := opt.TableSelector
	if strings.TrimSpace(sel) == "" {
		sel = DefaultTableSelector
	}
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, nil, nil
	}

	var headers []string
	var records [][]value.Value

	// Nested tables are not descended into.
	table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	}).Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th,td")
		if headers == nil {
			headers = make([]string, 0, cells.Length())
			cells.Each(func(_ int, c *goquery.Selection) {
				headers = append(headers, cellText(c))
			})
			return
		}
		rec := make([]value.Value, 0, cells.Length())
		cells.Each(func(_ int, c *goquery.Selection) {
			s := cellText(c)
			if s == "" {
				rec = append(rec, value.Null())
				return
			}
			rec = append(rec, value.Text(s))
		})
		records = append(records, rec)
	})

	return headers, records, nil
}

func cellText(c *goquery.Selection) string {
	return strings.Join(strings.Fields(c.Text()), " ")
}
