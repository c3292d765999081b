package mapping

import (
	"fmt"

	"mapsync/internal/catalog"
)

// Group holds the Set of every schema in one data group. A Group is owned by
// one session and is not safe for concurrent mutation.
type Group struct {
	groupID string
	schemas []catalog.Schema
	sets    map[string]Set
}

// NewGroup returns a Group with placeholder Sets for every schema of groupID.
func NewGroup(cat *catalog.Catalog, groupID string) (*Group, error) {
	schemas, err := cat.GroupSchemas(groupID)
	if err != nil {
		return nil, err
	}
	g := &Group{groupID: groupID, schemas: schemas, sets: make(map[string]Set, len(schemas))}
	for _, s := range schemas {
		g.sets[s.ID] = Placeholders(s)
	}
	return g, nil
}

func (g *Group) ID() string { return g.groupID }

// Schemas returns the group's schemas in catalog order.
func (g *Group) Schemas() []catalog.Schema {
	return append([]catalog.Schema(nil), g.schemas...)
}

func (g *Group) schema(id string) (catalog.Schema, bool) {
	for _, s := range g.schemas {
		if s.ID == id {
			return s, true
		}
	}
	return catalog.Schema{}, false
}

// Set returns the Set of schemaID.
func (g *Group) Set(schemaID string) (Set, error) {
	s, ok := g.sets[schemaID]
	if !ok {
		return Set{}, fmt.Errorf("%w: %q not in group %s", catalog.ErrUnknownSchema, schemaID, g.groupID)
	}
	return s.clone(), nil
}

// Update replaces the Set of set.SchemaID after normalizing it.
func (g *Group) Update(set Set) error {
	sc, ok := g.schema(set.SchemaID)
	if !ok {
		return fmt.Errorf("%w: %q not in group %s", catalog.ErrUnknownSchema, set.SchemaID, g.groupID)
	}
	g.sets[set.SchemaID] = set.Normalize(sc)
	return nil
}

// Replace swaps in sets for the schemas they name. Every key must belong to
// the group; on error nothing changes.
func (g *Group) Replace(sets map[string]Set) error {
	next := make(map[string]Set, len(g.sets))
	for id, s := range g.sets {
		next[id] = s
	}
	for id, s := range sets {
		sc, ok := g.schema(id)
		if !ok {
			return fmt.Errorf("%w: %q not in group %s", catalog.ErrUnknownSchema, id, g.groupID)
		}
		s.SchemaID = id
		next[id] = s.Normalize(sc)
	}
	g.sets = next
	return nil
}

// Reset puts placeholder Sets back for schemaIDs, or for every schema when
// none are given.
func (g *Group) Reset(schemaIDs ...string) error {
	if len(schemaIDs) == 0 {
		for _, s := range g.schemas {
			schemaIDs = append(schemaIDs, s.ID)
		}
	}
	fresh := make(map[string]Set, len(schemaIDs))
	for _, id := range schemaIDs {
		sc, ok := g.schema(id)
		if !ok {
			return fmt.Errorf("%w: %q not in group %s", catalog.ErrUnknownSchema, id, g.groupID)
		}
		fresh[id] = Placeholders(sc)
	}
	for id, s := range fresh {
		g.sets[id] = s
	}
	return nil
}

// MappedCount sums MappedCount over all sets.
func (g *Group) MappedCount() int {
	n := 0
	for _, s := range g.sets {
		n += s.MappedCount()
	}
	return n
}

// Sets returns every Set in schema order.
func (g *Group) Sets() []Set {
	out := make([]Set, 0, len(g.schemas))
	for _, s := range g.schemas {
		out = append(out, g.sets[s.ID].clone())
	}
	return out
}
