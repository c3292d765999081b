// Package catalog holds the fixed set of target schemas an operator can map
// source columns onto.
//
// A Catalog is built once (New, Default or Load), validated at construction and
// never mutated afterwards. Accessors hand out copies so callers cannot alter the
// shared definition.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DataType is the declared type of a target column and also the semantic type
// inferred for a source column.
type DataType string

const (
	TypeText      DataType = "TEXT"
	TypeNumeric   DataType = "NUMERIC"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeBoolean   DataType = "BOOLEAN"
)

// ParseDataType accepts the canonical names plus VARCHAR as an alias for TEXT.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TEXT", "VARCHAR", "STRING":
		return TypeText, nil
	case "NUMERIC", "NUMBER":
		return TypeNumeric, nil
	case "TIMESTAMP", "DATE", "DATETIME":
		return TypeTimestamp, nil
	case "BOOLEAN", "BOOL":
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("catalog: unknown data type %q", s)
	}
}

// UnmarshalJSON normalizes aliases on decode.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// TargetField is one column definition in a destination schema.
type TargetField struct {
	ID          string   `json:"id"`
	ColumnName  string   `json:"column_name"`
	Label       string   `json:"label"`
	Type        DataType `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description"`
}

// Schema is the ordered set of target fields for one destination table.
type Schema struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Icon      string        `json:"icon,omitempty"`
	TableName string        `json:"table_name"`
	Fields    []TargetField `json:"fields"`
}

// Field returns the target field with the given id.
func (s Schema) Field(id string) (TargetField, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return TargetField{}, false
}

// ColumnNames returns the physical column names in field order.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.ColumnName
	}
	return out
}

// DataGroup clusters related schemas under one business domain.
type DataGroup struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Icon    string   `json:"icon,omitempty"`
	Objects []string `json:"objects"`
}

var (
	ErrUnknownGroup  = errors.New("catalog: unknown group")
	ErrUnknownSchema = errors.New("catalog: unknown schema")
)

// Catalog is the immutable set of groups and schemas.
type Catalog struct {
	groups  []DataGroup
	schemas map[string]Schema
	groupOf map[string]string
}

// New validates groups and schemas and returns a Catalog.
//
// Errors:
//   - duplicate group, schema or field ids
//   - a group object that has no schema, or a schema claimed by two groups
//   - empty table or column names, unknown field types
func New(groups []DataGroup, schemas []Schema) (*Catalog, error) {
	c := &Catalog{
		schemas: make(map[string]Schema, len(schemas)),
		groupOf: make(map[string]string, len(schemas)),
	}

	for _, s := range schemas {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("catalog: schema with empty id")
		}
		if _, dup := c.schemas[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate schema id %q", s.ID)
		}
		if strings.TrimSpace(s.TableName) == "" {
			return nil, fmt.Errorf("catalog: schema %s: empty table_name", s.ID)
		}
		s = cloneSchema(s)
		seen := make(map[string]struct{}, len(s.Fields))
		for i, f := range s.Fields {
			if f.ID == "" || strings.TrimSpace(f.ColumnName) == "" {
				return nil, fmt.Errorf("catalog: schema %s: field id and column_name are required", s.ID)
			}
			if _, dup := seen[f.ID]; dup {
				return nil, fmt.Errorf("catalog: schema %s: duplicate field id %q", s.ID, f.ID)
			}
			seen[f.ID] = struct{}{}
			dt, err := ParseDataType(string(f.Type))
			if err != nil {
				return nil, fmt.Errorf("catalog: schema %s field %s: %w", s.ID, f.ID, err)
			}
			s.Fields[i].Type = dt
		}
		c.schemas[s.ID] = s
	}

	groupIDs := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if strings.TrimSpace(g.ID) == "" {
			return nil, fmt.Errorf("catalog: group with empty id")
		}
		if _, dup := groupIDs[g.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate group id %q", g.ID)
		}
		groupIDs[g.ID] = struct{}{}
		for _, obj := range g.Objects {
			if _, ok := c.schemas[obj]; !ok {
				return nil, fmt.Errorf("catalog: group %s references unknown schema %q", g.ID, obj)
			}
			if prev, taken := c.groupOf[obj]; taken {
				return nil, fmt.Errorf("catalog: schema %s belongs to both %s and %s", obj, prev, g.ID)
			}
			c.groupOf[obj] = g.ID
		}
		g.Objects = append([]string(nil), g.Objects...)
		c.groups = append(c.groups, g)
	}

	return c, nil
}

// Load decodes a JSON document of the form {"groups":[...],"schemas":[...]}.
func Load(r io.Reader) (*Catalog, error) {
	var doc struct {
		Groups  []DataGroup `json:"groups"`
		Schemas []Schema    `json:"schemas"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc.Groups, doc.Schemas)
}

// Groups returns the groups in declaration order.
func (c *Catalog) Groups() []DataGroup {
	out := make([]DataGroup, len(c.groups))
	for i, g := range c.groups {
		g.Objects = append([]string(nil), g.Objects...)
		out[i] = g
	}
	return out
}

// Group returns one group by id.
func (c *Catalog) Group(id string) (DataGroup, error) {
	for _, g := range c.groups {
		if g.ID == id {
			g.Objects = append([]string(nil), g.Objects...)
			return g, nil
		}
	}
	return DataGroup{}, fmt.Errorf("%w: %q", ErrUnknownGroup, id)
}

// Schema returns one schema by id.
func (c *Catalog) Schema(id string) (Schema, error) {
	s, ok := c.schemas[id]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, id)
	}
	return cloneSchema(s), nil
}

// GroupSchemas returns the schemas of a group in group order.
func (c *Catalog) GroupSchemas(groupID string) ([]Schema, error) {
	g, err := c.Group(groupID)
	if err != nil {
		return nil, err
	}
	out := make([]Schema, 0, len(g.Objects))
	for _, id := range g.Objects {
		out = append(out, cloneSchema(c.schemas[id]))
	}
	return out, nil
}

// GroupOf returns the id of the group that owns schemaID.
func (c *Catalog) GroupOf(schemaID string) (string, bool) {
	g, ok := c.groupOf[schemaID]
	return g, ok
}

func cloneSchema(s Schema) Schema {
	s.Fields = append([]TargetField(nil), s.Fields...)
	return s
}
