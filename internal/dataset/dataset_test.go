package dataset

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/catalog"
	"mapsync/internal/parser"
	"mapsync/internal/value"
)

func TestDemo(t *testing.T) {
	t.Parallel()

	d, err := Demo()
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	wantHeaders := []string{"EmployeeNumber", "FName", "LName", "Contact", "Dept", "DateJoined", "Active"}
	if diff := cmp.Diff(wantHeaders, d.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(d.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(d.Rows))
	}
	wantTypes := map[string]catalog.DataType{
		"EmployeeNumber": catalog.TypeText,
		"FName":          catalog.TypeText,
		"LName":          catalog.TypeText,
		"Contact":        catalog.TypeText,
		"Dept":           catalog.TypeText,
		"DateJoined":     catalog.TypeTimestamp,
		"Active":         catalog.TypeBoolean,
	}
	if diff := cmp.Diff(wantTypes, d.InferredTypes); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if d.FileName != DemoFileName || d.ID == "" {
		t.Fatalf("unexpected identity: id=%q file=%q", d.ID, d.FileName)
	}
}

func TestNew_CopiesHeadersAndSummarizes(t *testing.T) {
	t.Parallel()

	tbl := parser.Build([]string{"a", "b"}, [][]value.Value{{value.Text("1"), value.Text("x")}})
	d := New(tbl, "f.csv")
	tbl.Headers[0] = "changed"

	if !d.HasHeader("a") || d.HasHeader("changed") {
		t.Fatalf("dataset shares header slice with its source: %v", d.Headers)
	}
	if typ, ok := d.Type("a"); !ok || typ != catalog.TypeBoolean {
		t.Fatalf("Type(a) = (%q, %v), want BOOLEAN", typ, ok)
	}
	if _, ok := d.Type("zzz"); ok {
		t.Fatalf("Type(zzz) reported ok")
	}

	s := d.Summary()
	if s.RowCount != 1 || s.FileName != "f.csv" || len(s.Headers) != 2 {
		t.Fatalf("Summary = %+v", s)
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	c, err := NewCache(8, time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	d, err := Demo()
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if !c.Put(d) {
		t.Fatalf("Put rejected")
	}
	got, ok := c.Get(d.ID)
	if !ok || got != d {
		t.Fatalf("Get(%q) = (%p, %v), want cached dataset", d.ID, got, ok)
	}

	c.Delete(d.ID)
	if _, ok := c.Get(d.ID); ok {
		t.Fatalf("Get after Delete still found %q", d.ID)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("Get(missing) reported ok")
	}
}

func TestCache_HoldsCapacityDatasets(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int64{8, 16, 64} {
		c, err := NewCache(capacity, time.Minute)
		if err != nil {
			t.Fatalf("NewCache(%d): %v", capacity, err)
		}
		ids := make([]string, 0, capacity)
		for i := int64(0); i < capacity; i++ {
			d, err := Demo()
			if err != nil {
				t.Fatalf("Demo: %v", err)
			}
			if !c.Put(d) {
				t.Fatalf("capacity=%d: Put #%d rejected", capacity, i)
			}
			ids = append(ids, d.ID)
		}
		for _, id := range ids {
			if _, ok := c.Get(id); !ok {
				t.Fatalf("capacity=%d: dataset %q not retrievable", capacity, id)
			}
		}
		c.Close()
	}
}
