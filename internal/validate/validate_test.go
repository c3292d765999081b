package validate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/catalog"
	"mapsync/internal/dataset"
	"mapsync/internal/mapping"
	"mapsync/internal/transformer"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	inferred := map[string]catalog.DataType{
		"name":   catalog.TypeText,
		"amount": catalog.TypeNumeric,
		"when":   catalog.TypeTimestamp,
		"flag":   catalog.TypeBoolean,
	}
	linked := func(h string) mapping.FieldMapping {
		return mapping.FieldMapping{TargetFieldID: "f", SourceHeader: h}
	}

	tests := []struct {
		name   string
		target catalog.DataType
		m      mapping.FieldMapping
		want   Status
	}{
		{"no header", catalog.TypeText, mapping.Placeholder("f"), StatusUnset},
		{"same type", catalog.TypeNumeric, linked("amount"), StatusMatch},
		{"text into numeric", catalog.TypeNumeric, linked("name"), StatusCastRequired},
		{"text into timestamp", catalog.TypeTimestamp, linked("name"), StatusParseRequired},
		{"bool into numeric", catalog.TypeNumeric, linked("flag"), StatusMismatch},
		{"numeric into text", catalog.TypeText, linked("amount"), StatusMismatch},
		{"timestamp into boolean", catalog.TypeBoolean, linked("when"), StatusMismatch},
		{"unknown header counts as text", catalog.TypeText, linked("ghost"), StatusMatch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			field := catalog.TargetField{ID: "f", Type: tt.target}
			got := Classify(field, tt.m, inferred)
			if got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
			if got.Hint() == "" {
				t.Fatalf("status %q has no hint", got)
			}
		})
	}
}

func TestAnnotateDemo(t *testing.T) {
	t.Parallel()

	ds, err := dataset.Demo()
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	sc, err := catalog.Default().Schema("EMPLOYEE_MASTER")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}

	set := mapping.Placeholders(sc)
	for fid, h := range map[string]string{"fld_1": "EmployeeNumber", "fld_4": "Active", "fld_5": "DateJoined"} {
		if set, err = set.Link(fid, h); err != nil {
			t.Fatalf("Link: %v", err)
		}
	}

	got := Annotate(sc, set, ds)
	statuses := make(map[string]Status, len(got))
	for _, a := range got {
		statuses[a.FieldID] = a.Status
	}
	want := map[string]Status{
		"fld_1": StatusMatch,
		"fld_2": StatusUnset,
		"fld_3": StatusUnset,
		"fld_4": StatusMismatch,
		"fld_5": StatusMatch,
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("Annotate statuses (-want +got):\n%s", diff)
	}
	if got[3].SourceType != catalog.TypeBoolean || got[3].TargetType != catalog.TypeText {
		t.Fatalf("fld_4 annotation = %+v", got[3])
	}
}

func TestCheckSet(t *testing.T) {
	t.Parallel()

	ds, err := dataset.Demo()
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	sc, err := catalog.Default().Schema("EMPLOYEE_MASTER")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}

	badPattern := transformer.NewStep(transformer.Replace{Pattern: "(", Mode: transformer.ModePattern})
	set := mapping.Set{SchemaID: sc.ID, Mappings: []mapping.FieldMapping{
		{TargetFieldID: "fld_1", SourceHeader: "EmployeeNumber"},
		{TargetFieldID: "fld_1", SourceHeader: "FName"},
		{TargetFieldID: "fld_77"},
		{TargetFieldID: "fld_2", SourceHeader: "First"},
		{TargetFieldID: "fld_3", SourceHeader: "LName", Transformations: []transformer.Step{badPattern}},
	}}

	issues := CheckSet(sc, set, ds)
	var paths []string
	for _, i := range issues {
		paths = append(paths, string(i.Severity)+" "+i.Path)
	}
	want := []string{
		"error mappings[1].targetFieldId",
		"error mappings[2].targetFieldId",
		"warning mappings[3].sourceHeader",
		"error mappings[4].transformations[0]",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("CheckSet paths (-want +got):\n%s", diff)
	}
	if !HasErrors(issues) {
		t.Fatalf("HasErrors = false")
	}

	if clean := CheckSet(sc, mapping.Placeholders(sc), nil); len(clean) != 0 || HasErrors(clean) {
		t.Fatalf("placeholders produced issues: %v", clean)
	}
}
