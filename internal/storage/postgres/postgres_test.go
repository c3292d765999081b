package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mapsync/internal/storage"
)

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		spec       storage.TableSpec
		wantSchema string
		wantBase   string
	}{
		{
			name: "unqualified",
			spec: storage.TableSpec{
				Name: "ap_invoice_headers",
				Columns: []storage.ColumnSpec{
					{Name: "invoice_id", Type: storage.ColumnText, Nullable: true},
					{Name: "invoice_ts", Type: storage.ColumnTimestamp, Nullable: true},
					{Name: "amount_total", Type: storage.ColumnNumeric, Nullable: true},
				},
			},
			wantBase: `CREATE TABLE IF NOT EXISTS "ap_invoice_headers" ("invoice_id" TEXT, "invoice_ts" TIMESTAMPTZ, "amount_total" NUMERIC);`,
		},
		{
			name: "schema qualified",
			spec: storage.TableSpec{
				Name:        "staging.runs",
				Columns:     []storage.ColumnSpec{{Name: "id", Type: storage.ColumnKey}, {Name: "n", Type: storage.ColumnInteger}, {Name: "ok", Type: storage.ColumnBoolean}, {Name: "score", Type: storage.ColumnFloat, Nullable: true}},
				PrimaryKey:  []string{"id"},
				Constraints: []storage.ConstraintSpec{{Kind: "UNIQUE", Columns: []string{"n"}}},
			},
			wantSchema: `CREATE SCHEMA IF NOT EXISTS "staging";`,
			wantBase:   `CREATE TABLE IF NOT EXISTS "staging"."runs" ("id" TEXT NOT NULL, "n" BIGINT NOT NULL, "ok" BOOLEAN NOT NULL, "score" DOUBLE PRECISION, PRIMARY KEY ("id"), UNIQUE ("n"));`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			schemaSQL, baseSQL, err := buildCreateSQL(tt.spec)
			if err != nil {
				t.Fatalf("buildCreateSQL: %v", err)
			}
			if schemaSQL != tt.wantSchema {
				t.Fatalf("schema sql=%q want %q", schemaSQL, tt.wantSchema)
			}
			if diff := cmp.Diff(tt.wantBase, baseSQL); diff != "" {
				t.Fatalf("base sql (-want +got):\n%s", diff)
			}

			stmts, err := Dialect{}.CreateTableSQL(tt.spec)
			if err != nil {
				t.Fatalf("CreateTableSQL: %v", err)
			}
			wantN := 1
			if tt.wantSchema != "" {
				wantN = 2
			}
			if len(stmts) != wantN {
				t.Fatalf("CreateTableSQL returned %d statements, want %d", len(stmts), wantN)
			}
		})
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	for _, spec := range []storage.TableSpec{
		{Name: "", Columns: []storage.ColumnSpec{{Name: "a", Type: storage.ColumnText}}},
		{Name: "t"},
		{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: "jsonb"}}},
		{Name: "t", Columns: []storage.ColumnSpec{{Name: " ", Type: storage.ColumnText}}},
	} {
		if _, _, err := buildCreateSQL(spec); err == nil {
			t.Fatalf("buildCreateSQL(%+v) expected error", spec)
		}
	}
}

func TestBuildInsertSQL_PlaceholdersAndArgsMatch(t *testing.T) {
	t.Parallel()

	rows := [][]any{{"a", 1}, {"b", 2}, {"c", nil}}
	q, args := buildInsertSQL("public.t", []string{"k", "v"}, rows)

	want := `INSERT INTO "public"."t" ("k", "v") VALUES ($1, $2), ($3, $4), ($5, $6)`
	if q != want {
		t.Fatalf("sql=%q\nwant %q", q, want)
	}
	if strings.Count(q, "$") != len(args) {
		t.Fatalf("placeholders and args differ: %q %v", q, args)
	}
	if diff := cmp.Diff([]any{"a", 1, "b", 2, "c", nil}, args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
}

func TestDialectQuoting(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	if got := d.Ident(`we"ird`); got != `"we""ird"` {
		t.Fatalf("Ident=%s", got)
	}
	if got := d.Table(" a.b.c "); got != `"a.b.c"` {
		t.Fatalf("Table of three-part name=%s", got)
	}
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("x", -7200))
	if got, ok := d.TimeArg(ts).(time.Time); !ok || got.Location() != time.UTC || !got.Equal(ts) {
		t.Fatalf("TimeArg=%v", d.TimeArg(ts))
	}
}
