package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mapsync/internal/mapping"
	"mapsync/internal/storage"
	"mapsync/internal/transformer"
)

var headerColumns = []string{"registry_id", "registry_name", "group_id", "version", "created_at", "updated_at"}

var objectColumns = []string{"registry_id", "object_name", "target_table", "position"}

var metadataColumns = []string{
	"registry_id", "object_name", "position", "target_field_id", "target_column",
	"source_header", "transformations", "semantic_reasoning", "confidence", "provenance",
}

type header struct {
	id, name, group  string
	version          int64
	created, updated time.Time
}

// querier is satisfied by Conn and Tx.
type querier interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

func (s *Store) selectHeaders(ctx context.Context, q querier, where string, args ...any) ([]header, error) {
	query := "SELECT " + s.columns(headerColumns...) + " FROM " + s.dialect.Table(storage.RegistryTable)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + s.columns("registry_name", "registry_id")

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []header
	for rows.Next() {
		var h header
		var created, updated any
		if err := rows.Scan(&h.id, &h.name, &h.group, &h.version, &created, &updated); err != nil {
			return nil, err
		}
		if h.created, err = scanTime(created); err != nil {
			return nil, fmt.Errorf("registry %s created_at: %w", h.id, err)
		}
		if h.updated, err = scanTime(updated); err != nil {
			return nil, fmt.Errorf("registry %s updated_at: %w", h.id, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) findHeader(ctx context.Context, q querier, cfg mapping.SavedConfiguration) (*header, error) {
	if cfg.ID != "" {
		hs, err := s.selectHeaders(ctx, q, s.where(1, "registry_id"), cfg.ID)
		if err != nil {
			return nil, err
		}
		if len(hs) > 0 {
			return &hs[0], nil
		}
	}
	hs, err := s.selectHeaders(ctx, q, s.where(1, "registry_name", "group_id"), cfg.Name, cfg.GroupID)
	if err != nil {
		return nil, err
	}
	if len(hs) > 0 {
		return &hs[0], nil
	}
	return nil, nil
}

// SaveConfiguration implements storage.Registry.
func (s *Store) SaveConfiguration(ctx context.Context, cfg mapping.SavedConfiguration) (mapping.SavedConfiguration, error) {
	if err := cfg.Validate(); err != nil {
		return mapping.SavedConfiguration{}, err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: begin: %w", s.Kind(), err)
	}
	defer tx.Rollback(ctx)

	existing, err := s.findHeader(ctx, tx, cfg)
	if err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: lookup: %w", s.Kind(), err)
	}

	now := s.now()
	out := cfg
	out.UpdatedAt = now
	moduleName := s.moduleName(cfg.GroupID)

	if existing == nil {
		if cfg.Version > 0 {
			return mapping.SavedConfiguration{}, fmt.Errorf("%w: %q has version %d but is not stored", storage.ErrVersionConflict, cfg.Name, cfg.Version)
		}
		if out.ID == "" {
			out.ID = uuid.NewString()
		}
		out.CreatedAt = now
		out.Version = 1
		q, args := s.dialect.InsertSQL(storage.RegistryTable,
			[]string{"registry_id", "registry_name", "group_id", "module_name", "version", "created_at", "updated_at"},
			[][]any{{out.ID, out.Name, out.GroupID, moduleName, out.Version, s.dialect.TimeArg(now), s.dialect.TimeArg(now)}})
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: insert registry: %w", s.Kind(), err)
		}
	} else {
		if cfg.Version > 0 && cfg.Version != existing.version {
			return mapping.SavedConfiguration{}, fmt.Errorf("%w: %q is at version %d, got %d", storage.ErrVersionConflict, existing.name, existing.version, cfg.Version)
		}
		out.ID = existing.id
		out.CreatedAt = existing.created
		out.Version = existing.version + 1

		d := s.dialect
		q := "UPDATE " + d.Table(storage.RegistryTable) + " SET " +
			d.Ident("registry_name") + " = " + d.Placeholder(1) + ", " +
			d.Ident("group_id") + " = " + d.Placeholder(2) + ", " +
			d.Ident("module_name") + " = " + d.Placeholder(3) + ", " +
			d.Ident("version") + " = " + d.Placeholder(4) + ", " +
			d.Ident("updated_at") + " = " + d.Placeholder(5) +
			" WHERE " + s.where(6, "registry_id", "version")
		n, err := tx.Exec(ctx, q, out.Name, out.GroupID, moduleName, out.Version, d.TimeArg(now), out.ID, existing.version)
		if err != nil {
			return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: update registry: %w", s.Kind(), err)
		}
		if n == 0 {
			return mapping.SavedConfiguration{}, fmt.Errorf("%w: %q changed during save", storage.ErrVersionConflict, out.Name)
		}
		if err := s.deleteDetails(ctx, tx, out.ID); err != nil {
			return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: clear details: %w", s.Kind(), err)
		}
	}

	if err := s.insertDetails(ctx, tx, out); err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: details: %w", s.Kind(), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: save: commit: %w", s.Kind(), err)
	}
	return out, nil
}

func (s *Store) moduleName(groupID string) any {
	if s.cat == nil {
		return nil
	}
	g, err := s.cat.Group(groupID)
	if err != nil {
		return nil
	}
	return g.Name
}

func (s *Store) deleteDetails(ctx context.Context, tx Tx, id string) error {
	for _, table := range []string{storage.MappingMetadataTable, storage.ModuleObjectsTable} {
		q := "DELETE FROM " + s.dialect.Table(table) + " WHERE " + s.where(1, "registry_id")
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// objectOrder returns the schema ids of cfg: group order first when the
// catalog knows the group, then the rest sorted.
func (s *Store) objectOrder(cfg mapping.SavedConfiguration) []string {
	out := make([]string, 0, len(cfg.ObjectMappings))
	done := make(map[string]bool, len(cfg.ObjectMappings))
	if s.cat != nil {
		if g, err := s.cat.Group(cfg.GroupID); err == nil {
			for _, id := range g.Objects {
				if _, ok := cfg.ObjectMappings[id]; ok {
					out = append(out, id)
					done[id] = true
				}
			}
		}
	}
	rest := make([]string, 0)
	for id := range cfg.ObjectMappings {
		if !done[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (s *Store) insertDetails(ctx context.Context, tx Tx, cfg mapping.SavedConfiguration) error {
	var objects, meta [][]any
	for pos, schemaID := range s.objectOrder(cfg) {
		var tableName, columnOf = "", map[string]string{}
		if s.cat != nil {
			if sc, err := s.cat.Schema(schemaID); err == nil {
				tableName = sc.TableName
				for _, f := range sc.Fields {
					columnOf[f.ID] = f.ColumnName
				}
			}
		}
		objects = append(objects, []any{cfg.ID, schemaID, tableName, pos})

		for i, m := range cfg.ObjectMappings[schemaID] {
			steps := m.Transformations
			if steps == nil {
				steps = []transformer.Step{}
			}
			raw, err := json.Marshal(steps)
			if err != nil {
				return fmt.Errorf("encode steps of %s.%s: %w", schemaID, m.TargetFieldID, err)
			}
			var conf any
			if m.Confidence != nil {
				conf = *m.Confidence
			}
			meta = append(meta, []any{
				cfg.ID, schemaID, i, m.TargetFieldID, columnOf[m.TargetFieldID],
				nullString(m.SourceHeader), string(raw), nullString(m.SemanticReasoning), conf, nullString(string(m.Provenance)),
			})
		}
	}
	if err := s.insertChunked(ctx, tx, storage.ModuleObjectsTable, objectColumns, objects); err != nil {
		return err
	}
	return s.insertChunked(ctx, tx, storage.MappingMetadataTable, metadataColumns, meta)
}

func (s *Store) insertChunked(ctx context.Context, tx Tx, table string, columns []string, rows [][]any) error {
	step := s.chunkSize(len(columns))
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		q, args := s.dialect.InsertSQL(table, columns, rows[start:end])
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListConfigurations implements storage.Registry.
func (s *Store) ListConfigurations(ctx context.Context, groupID string) ([]mapping.SavedConfiguration, error) {
	var (
		hs  []header
		err error
	)
	if groupID == "" {
		hs, err = s.selectHeaders(ctx, s.conn, "")
	} else {
		hs, err = s.selectHeaders(ctx, s.conn, s.where(1, "group_id"), groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", s.Kind(), err)
	}

	out := make([]mapping.SavedConfiguration, 0, len(hs))
	for _, h := range hs {
		cfg, err := s.loadDetails(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("%s: list: %w", s.Kind(), err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// GetConfiguration implements storage.Registry.
func (s *Store) GetConfiguration(ctx context.Context, id string) (mapping.SavedConfiguration, error) {
	hs, err := s.selectHeaders(ctx, s.conn, s.where(1, "registry_id"), id)
	if err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: get %s: %w", s.Kind(), id, err)
	}
	if len(hs) == 0 {
		return mapping.SavedConfiguration{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cfg, err := s.loadDetails(ctx, hs[0])
	if err != nil {
		return mapping.SavedConfiguration{}, fmt.Errorf("%s: get %s: %w", s.Kind(), id, err)
	}
	return cfg, nil
}

func (s *Store) loadDetails(ctx context.Context, h header) (mapping.SavedConfiguration, error) {
	cfg := mapping.SavedConfiguration{
		ID:             h.id,
		Name:           h.name,
		GroupID:        h.group,
		CreatedAt:      h.created,
		UpdatedAt:      h.updated,
		Version:        h.version,
		ObjectMappings: map[string][]mapping.FieldMapping{},
	}

	objQ := "SELECT " + s.columns("object_name") + " FROM " + s.dialect.Table(storage.ModuleObjectsTable) +
		" WHERE " + s.where(1, "registry_id") + " ORDER BY " + s.columns("position")
	rows, err := s.conn.Query(ctx, objQ, h.id)
	if err != nil {
		return cfg, err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return cfg, err
		}
		cfg.ObjectMappings[name] = []mapping.FieldMapping{}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return cfg, err
	}

	metaQ := "SELECT " + s.columns("object_name", "target_field_id", "source_header", "transformations", "semantic_reasoning", "confidence", "provenance") +
		" FROM " + s.dialect.Table(storage.MappingMetadataTable) +
		" WHERE " + s.where(1, "registry_id") + " ORDER BY " + s.columns("object_name", "position")
	rows, err = s.conn.Query(ctx, metaQ, h.id)
	if err != nil {
		return cfg, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			object, fieldID, steps string
			src, reasoning, prov   sql.NullString
			conf                   sql.NullFloat64
		)
		if err := rows.Scan(&object, &fieldID, &src, &steps, &reasoning, &conf, &prov); err != nil {
			return cfg, err
		}
		m := mapping.FieldMapping{
			TargetFieldID:     fieldID,
			SourceHeader:      src.String,
			SemanticReasoning: reasoning.String,
			Provenance:        mapping.Provenance(prov.String),
			Transformations:   []transformer.Step{},
		}
		if conf.Valid {
			m.Confidence = mapping.Confidence(conf.Float64)
		}
		if err := json.Unmarshal([]byte(steps), &m.Transformations); err != nil {
			return cfg, fmt.Errorf("decode steps of %s.%s: %w", object, fieldID, err)
		}
		cfg.ObjectMappings[object] = append(cfg.ObjectMappings[object], m)
	}
	return cfg, rows.Err()
}

// DeleteConfiguration implements storage.Registry.
func (s *Store) DeleteConfiguration(ctx context.Context, id string) (bool, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: delete %s: %w", s.Kind(), id, err)
	}
	defer tx.Rollback(ctx)

	if err := s.deleteDetails(ctx, tx, id); err != nil {
		return false, fmt.Errorf("%s: delete %s: %w", s.Kind(), id, err)
	}
	n, err := tx.Exec(ctx, "DELETE FROM "+s.dialect.Table(storage.RegistryTable)+" WHERE "+s.where(1, "registry_id"), id)
	if err != nil {
		return false, fmt.Errorf("%s: delete %s: %w", s.Kind(), id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%s: delete %s: %w", s.Kind(), id, err)
	}
	return n > 0, nil
}
