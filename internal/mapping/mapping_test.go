package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/catalog"
	"mapsync/internal/transformer"
)

func employeeSchema(t *testing.T) catalog.Schema {
	t.Helper()
	s, err := catalog.Default().Schema("EMPLOYEE_MASTER")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	return s
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	s := Placeholders(employeeSchema(t))
	if s.SchemaID != "EMPLOYEE_MASTER" || len(s.Mappings) != 5 {
		t.Fatalf("Placeholders = %+v", s)
	}
	for i, m := range s.Mappings {
		if m.Mapped() || m.Transformations == nil || len(m.Transformations) != 0 {
			t.Fatalf("mapping %d is not a placeholder: %+v", i, m)
		}
	}
	if s.MappedCount() != 0 {
		t.Fatalf("MappedCount = %d, want 0", s.MappedCount())
	}
}

func TestLinkUnlink(t *testing.T) {
	t.Parallel()

	base := Placeholders(employeeSchema(t))

	linked, err := base.Link("fld_2", "FName")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	m, err := linked.Get("fld_2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.SourceHeader != "FName" || m.Confidence == nil || *m.Confidence != 1.0 ||
		m.SemanticReasoning != "Linked to source column [FName]" || m.Provenance != ProvenanceManual {
		t.Fatalf("linked mapping = %+v", m)
	}
	if base.MappedCount() != 0 {
		t.Fatalf("Link mutated its receiver")
	}
	if linked.MappedCount() != 1 {
		t.Fatalf("MappedCount = %d, want 1", linked.MappedCount())
	}

	unlinked, err := linked.Unlink("fld_2")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	m, _ = unlinked.Get("fld_2")
	if m.Mapped() || m.Confidence != nil || m.SemanticReasoning != "" {
		t.Fatalf("unlinked mapping = %+v", m)
	}
}

func TestSetErrors(t *testing.T) {
	t.Parallel()

	s := Placeholders(employeeSchema(t))

	if _, err := s.Link("nope", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Link(unknown) err = %v", err)
	}
	if _, err := s.Link("fld_1", ""); !errors.Is(err, ErrEmptyHeader) {
		t.Fatalf("Link(empty) err = %v", err)
	}
	if _, err := s.Unlink("nope"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Unlink(unknown) err = %v", err)
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Get(unknown) err = %v", err)
	}
	if _, _, err := s.AddStep("nope", transformer.Trim{}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("AddStep(unknown) err = %v", err)
	}
	if _, err := s.RemoveStep("fld_1", "missing"); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("RemoveStep(missing) err = %v", err)
	}
	if _, err := s.UpdateStep("fld_1", "missing", transformer.Trim{}); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("UpdateStep(missing) err = %v", err)
	}
	bad := transformer.Replace{Pattern: "(", Mode: transformer.ModePattern}
	if _, _, err := s.AddStep("fld_1", bad); !errors.Is(err, transformer.ErrInvalidPattern) {
		t.Fatalf("AddStep(bad pattern) err = %v", err)
	}
}

func TestStepEditing(t *testing.T) {
	t.Parallel()

	s := Placeholders(employeeSchema(t))

	s, a, err := s.AddStep("fld_1", transformer.Trim{})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	s, b, err := s.AddStep("fld_1", transformer.Prefix{Value: "E"})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	s, c, err := s.AddStep("fld_1", transformer.Uppercase{})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}

	before := s
	s, err = s.UpdateStep("fld_1", b.ID, transformer.Suffix{Value: "!"})
	if err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	s, err = s.RemoveStep("fld_1", a.ID)
	if err != nil {
		t.Fatalf("RemoveStep: %v", err)
	}

	m, _ := s.Get("fld_1")
	want := []transformer.Step{
		{ID: b.ID, Op: transformer.Suffix{Value: "!"}},
		{ID: c.ID, Op: transformer.Uppercase{}},
	}
	if diff := cmp.Diff(want, m.Transformations); diff != "" {
		t.Fatalf("pipeline mismatch (-want +got):\n%s", diff)
	}

	old, _ := before.Get("fld_1")
	if len(old.Transformations) != 3 || old.Transformations[1].Op != (transformer.Prefix{Value: "E"}) {
		t.Fatalf("edits leaked into earlier value: %+v", old.Transformations)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	sc := employeeSchema(t)
	got := Normalize(sc, []FieldMapping{
		{TargetFieldID: "fld_3", SourceHeader: "LName"},
		{TargetFieldID: "ghost", SourceHeader: "X"},
		{TargetFieldID: "fld_3", SourceHeader: "Other"},
		{TargetFieldID: "fld_1", SourceHeader: "EmployeeNumber"},
	})

	ids := make([]string, len(got.Mappings))
	for i, m := range got.Mappings {
		ids[i] = m.TargetFieldID
	}
	if diff := cmp.Diff([]string{"fld_1", "fld_2", "fld_3", "fld_4", "fld_5"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if m, _ := got.Get("fld_3"); m.SourceHeader != "LName" {
		t.Fatalf("duplicate did not collapse to first: %+v", m)
	}
	if got.MappedCount() != 2 {
		t.Fatalf("MappedCount = %d, want 2", got.MappedCount())
	}
}

func TestGroup(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()
	g, err := NewGroup(cat, "workforce")
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if len(g.Sets()) != 3 {
		t.Fatalf("sets = %d, want 3", len(g.Sets()))
	}

	emp, _ := g.Set("EMPLOYEE_MASTER")
	emp, _ = emp.Link("fld_1", "EmployeeNumber")
	pay, _ := g.Set("PAYROLL")
	pay, _ = pay.Link("fld_11", "Salary")

	if err := g.Replace(map[string]Set{"EMPLOYEE_MASTER": emp, "PAYROLL": pay}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if g.MappedCount() != 2 {
		t.Fatalf("MappedCount = %d, want 2", g.MappedCount())
	}

	inv := Placeholders(mustSchema(t, cat, "INVOICE_HEADER"))
	if err := g.Replace(map[string]Set{"EMPLOYEE_MASTER": Placeholders(mustSchema(t, cat, "EMPLOYEE_MASTER")), "INVOICE_HEADER": inv}); !errors.Is(err, catalog.ErrUnknownSchema) {
		t.Fatalf("Replace(foreign) err = %v", err)
	}
	if g.MappedCount() != 2 {
		t.Fatalf("failed Replace changed the group: MappedCount = %d", g.MappedCount())
	}

	if err := g.Reset("PAYROLL"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if g.MappedCount() != 1 {
		t.Fatalf("MappedCount after Reset(PAYROLL) = %d, want 1", g.MappedCount())
	}
	if err := g.Reset(); err != nil || g.MappedCount() != 0 {
		t.Fatalf("Reset() = %v, MappedCount = %d", err, g.MappedCount())
	}

	if _, err := NewGroup(cat, "nope"); !errors.Is(err, catalog.ErrUnknownGroup) {
		t.Fatalf("NewGroup(unknown) err = %v", err)
	}
}

func mustSchema(t *testing.T, cat *catalog.Catalog, id string) catalog.Schema {
	t.Helper()
	s, err := cat.Schema(id)
	if err != nil {
		t.Fatalf("Schema(%s): %v", id, err)
	}
	return s
}

func TestSavedConfiguration_RoundTripPreservesPipelines(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()
	g, err := NewGroup(cat, "workforce")
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	emp, _ := g.Set("EMPLOYEE_MASTER")
	emp, _ = emp.Link("fld_4", "Contact")
	emp, _, _ = emp.AddStep("fld_4", transformer.Trim{})
	emp, _, _ = emp.AddStep("fld_4", transformer.Lowercase{})
	emp, _, _ = emp.AddStep("fld_4", transformer.Replace{Pattern: "@old", With: "@new"})
	emp, _, _ = emp.AddStep("fld_5", transformer.ToDate{})
	if err := g.Update(emp); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := FromGroup("  ", g); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("FromGroup(blank) err = %v", err)
	}
	cfg, err := FromGroup("HR load", g)
	if err != nil {
		t.Fatalf("FromGroup: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteConfiguration(&buf, cfg); err != nil {
		t.Fatalf("WriteConfiguration: %v", err)
	}
	back, err := ReadConfiguration(&buf)
	if err != nil {
		t.Fatalf("ReadConfiguration: %v", err)
	}
	g2, err := back.ToGroup(cat)
	if err != nil {
		t.Fatalf("ToGroup: %v", err)
	}

	for _, sc := range g.Schemas() {
		want, _ := g.Set(sc.ID)
		got, _ := g2.Set(sc.ID)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("set %s mismatch after reload (-want +got):\n%s", sc.ID, diff)
		}
	}
}

func TestSavedConfiguration_JSONShape(t *testing.T) {
	t.Parallel()

	raw := `{"name":"x","groupId":"workforce","objectMappings":{"EMPLOYEE_MASTER":[
		{"targetFieldId":"fld_1","sourceHeader":"EmployeeNumber","transformations":[{"id":"a","type":"trim"}],"confidence":0.8}
	]}}`
	cfg, err := ReadConfiguration(bytes.NewBufferString(raw))
	if err != nil {
		t.Fatalf("ReadConfiguration: %v", err)
	}
	m := cfg.ObjectMappings["EMPLOYEE_MASTER"][0]
	if m.Confidence == nil || *m.Confidence != 0.8 || m.Transformations[0].Op != (transformer.Trim{}) {
		t.Fatalf("decoded mapping = %+v", m)
	}
	if cfg.MappedCount() != 1 {
		t.Fatalf("MappedCount = %d", cfg.MappedCount())
	}

	b, err := json.Marshal(Placeholder("fld_9"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"targetFieldId":"fld_9","transformations":[]}` {
		t.Fatalf("placeholder JSON = %s", b)
	}

	bad := `{"name":"x","groupId":"g","objectMappings":{"A":[{"targetFieldId":"f","transformations":[{"id":"a","type":"melt"}]}]}}`
	if _, err := ReadConfiguration(bytes.NewBufferString(bad)); !errors.Is(err, transformer.ErrUnknownStepType) {
		t.Fatalf("unknown step type err = %v", err)
	}
}

func TestSavedConfiguration_Validate(t *testing.T) {
	t.Parallel()

	if err := (SavedConfiguration{GroupID: "g"}).Validate(); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("Validate(no name) = %v", err)
	}
	if err := (SavedConfiguration{Name: "n"}).Validate(); !errors.Is(err, catalog.ErrUnknownGroup) {
		t.Fatalf("Validate(no group) = %v", err)
	}
	if err := (SavedConfiguration{Name: "n", GroupID: "g"}).Validate(); err != nil {
		t.Fatalf("Validate(ok) = %v", err)
	}
}

func TestSavedConfiguration_Normalized(t *testing.T) {
	t.Parallel()

	in := SavedConfiguration{
		ID:      "reg-1",
		Name:    " Onboarding ",
		GroupID: "workforce",
		Version: 4,
		ObjectMappings: map[string][]FieldMapping{
			"EMPLOYEE_MASTER": {{TargetFieldID: "fld_3", SourceHeader: "LName"}},
			"INVOICE_HEADER":  {{TargetFieldID: "fld_13", SourceHeader: "Invoice"}},
		},
	}
	out, err := in.Normalized(catalog.Default())
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	if out.ID != "reg-1" || out.Version != 4 || out.Name != "Onboarding" {
		t.Fatalf("header fields not kept: %+v", out)
	}
	if len(out.ObjectMappings) != 3 {
		t.Fatalf("schemas = %d, want the 3 workforce schemas", len(out.ObjectMappings))
	}
	if _, ok := out.ObjectMappings["INVOICE_HEADER"]; ok {
		t.Fatalf("schema outside the group was kept")
	}
	emp := out.ObjectMappings["EMPLOYEE_MASTER"]
	if len(emp) != 5 || emp[0].TargetFieldID != "fld_1" || emp[2].SourceHeader != "LName" {
		t.Fatalf("EMPLOYEE_MASTER = %+v", emp)
	}
	if out.MappedCount() != 1 {
		t.Fatalf("MappedCount = %d, want 1", out.MappedCount())
	}

	if _, err := (SavedConfiguration{Name: "x", GroupID: "marketing"}).Normalized(catalog.Default()); !errors.Is(err, catalog.ErrUnknownGroup) {
		t.Fatalf("unknown group err = %v", err)
	}
	if _, err := (SavedConfiguration{GroupID: "workforce"}).Normalized(catalog.Default()); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("missing name err = %v", err)
	}
}
