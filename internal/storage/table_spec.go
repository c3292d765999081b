package storage

import (
	"mapsync/internal/catalog"
)

// ColumnType is a portable column type. Each backend maps it to its own DDL.
type ColumnType string

const (
	// ColumnKey is short, indexable text (ids, names).
	ColumnKey       ColumnType = "key"
	ColumnText      ColumnType = "text"
	ColumnNumeric   ColumnType = "numeric"
	ColumnInteger   ColumnType = "integer"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnBoolean   ColumnType = "boolean"
	ColumnFloat     ColumnType = "float"
)

// TableSpec describes a table for EnsureTables and EnsureRegistry.
type TableSpec struct {
	Name            string           `json:"name"`
	AutoCreateTable bool             `json:"auto_create_table"`
	Columns         []ColumnSpec     `json:"columns"`
	PrimaryKey      []string         `json:"primary_key,omitempty"`
	Constraints     []ConstraintSpec `json:"constraints,omitempty"`
}

type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

type ConstraintSpec struct {
	Kind    string   `json:"kind"` // "unique"
	Columns []string `json:"columns"`
}

// ColumnTypeFor maps a catalog data type to a column type.
func ColumnTypeFor(t catalog.DataType) ColumnType {
	switch t {
	case catalog.TypeNumeric:
		return ColumnNumeric
	case catalog.TypeTimestamp:
		return ColumnTimestamp
	case catalog.TypeBoolean:
		return ColumnBoolean
	default:
		return ColumnText
	}
}

// TableSpecFor derives an auto-created, all-nullable table from schema.
// Required fields stay nullable so a partial mapping can still load.
func TableSpecFor(schema catalog.Schema) TableSpec {
	t := TableSpec{Name: schema.TableName, AutoCreateTable: true, Columns: make([]ColumnSpec, len(schema.Fields))}
	for i, f := range schema.Fields {
		t.Columns[i] = ColumnSpec{Name: f.ColumnName, Type: ColumnTypeFor(f.Type), Nullable: true}
	}
	return t
}

// Registry table names.
const (
	RegistryTable        = "mapsync_registry"
	ModuleObjectsTable   = "mapsync_module_objects"
	MappingMetadataTable = "mapsync_mapping_metadata"
)

// RegistryTables returns the three registry tables in creation order.
func RegistryTables() []TableSpec {
	return []TableSpec{
		{
			Name:            RegistryTable,
			AutoCreateTable: true,
			Columns: []ColumnSpec{
				{Name: "registry_id", Type: ColumnKey},
				{Name: "registry_name", Type: ColumnKey},
				{Name: "group_id", Type: ColumnKey},
				{Name: "module_name", Type: ColumnKey, Nullable: true},
				{Name: "version", Type: ColumnInteger},
				{Name: "created_at", Type: ColumnTimestamp},
				{Name: "updated_at", Type: ColumnTimestamp},
			},
			PrimaryKey:  []string{"registry_id"},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"registry_name", "group_id"}}},
		},
		{
			Name:            ModuleObjectsTable,
			AutoCreateTable: true,
			Columns: []ColumnSpec{
				{Name: "registry_id", Type: ColumnKey},
				{Name: "object_name", Type: ColumnKey},
				{Name: "target_table", Type: ColumnKey},
				{Name: "position", Type: ColumnInteger},
			},
			PrimaryKey: []string{"registry_id", "object_name"},
		},
		{
			Name:            MappingMetadataTable,
			AutoCreateTable: true,
			Columns: []ColumnSpec{
				{Name: "registry_id", Type: ColumnKey},
				{Name: "object_name", Type: ColumnKey},
				{Name: "position", Type: ColumnInteger},
				{Name: "target_field_id", Type: ColumnKey},
				{Name: "target_column", Type: ColumnKey},
				{Name: "source_header", Type: ColumnText, Nullable: true},
				{Name: "transformations", Type: ColumnText},
				{Name: "semantic_reasoning", Type: ColumnText, Nullable: true},
				{Name: "confidence", Type: ColumnFloat, Nullable: true},
				{Name: "provenance", Type: ColumnKey, Nullable: true},
			},
			PrimaryKey: []string{"registry_id", "object_name", "position"},
		},
	}
}
