package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"mapsync/internal/catalog"
)

// SavedConfiguration is a named, persisted Group. Ids and versions are
// assigned by the storage layer.
type SavedConfiguration struct {
	ID             string                    `json:"id,omitempty"`
	Name           string                    `json:"name"`
	GroupID        string                    `json:"groupId"`
	ObjectMappings map[string][]FieldMapping `json:"objectMappings"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
	Version        int64                     `json:"version"`
}

// Validate checks the fields a save needs.
func (c SavedConfiguration) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(c.GroupID) == "" {
		return fmt.Errorf("%w: empty group id", catalog.ErrUnknownGroup)
	}
	return nil
}

// FromGroup snapshots g under name.
func FromGroup(name string, g *Group) (SavedConfiguration, error) {
	if strings.TrimSpace(name) == "" {
		return SavedConfiguration{}, ErrNameRequired
	}
	cfg := SavedConfiguration{
		Name:           strings.TrimSpace(name),
		GroupID:        g.ID(),
		ObjectMappings: make(map[string][]FieldMapping, len(g.schemas)),
	}
	for _, s := range g.Sets() {
		cfg.ObjectMappings[s.SchemaID] = s.Mappings
	}
	return cfg, nil
}

// ToGroup rebuilds a Group against cat. Mappings for schemas outside the
// group are ignored; each Set is normalized to its schema.
func (c SavedConfiguration) ToGroup(cat *catalog.Catalog) (*Group, error) {
	g, err := NewGroup(cat, c.GroupID)
	if err != nil {
		return nil, err
	}
	for _, sc := range g.schemas {
		if ms, ok := c.ObjectMappings[sc.ID]; ok {
			g.sets[sc.ID] = Normalize(sc, ms)
		}
	}
	return g, nil
}

// Normalized returns c with one Set per schema of its group, each holding an
// entry for every target field in schema order. Id, version and timestamps
// are kept.
func (c SavedConfiguration) Normalized(cat *catalog.Catalog) (SavedConfiguration, error) {
	if err := c.Validate(); err != nil {
		return SavedConfiguration{}, err
	}
	g, err := c.ToGroup(cat)
	if err != nil {
		return SavedConfiguration{}, err
	}
	out, err := FromGroup(c.Name, g)
	if err != nil {
		return SavedConfiguration{}, err
	}
	out.ID, out.Version = c.ID, c.Version
	out.CreatedAt, out.UpdatedAt = c.CreatedAt, c.UpdatedAt
	return out, nil
}

// MappedCount counts mapped entries across all schemas.
func (c SavedConfiguration) MappedCount() int {
	n := 0
	for _, ms := range c.ObjectMappings {
		for _, m := range ms {
			if m.Mapped() {
				n++
			}
		}
	}
	return n
}

// ReadConfiguration decodes a configuration document.
func ReadConfiguration(r io.Reader) (SavedConfiguration, error) {
	var c SavedConfiguration
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return SavedConfiguration{}, fmt.Errorf("mapping: decode configuration: %w", err)
	}
	return c, nil
}

// WriteConfiguration encodes c as indented JSON.
func WriteConfiguration(w io.Writer, c SavedConfiguration) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("mapping: encode configuration: %w", err)
	}
	return nil
}
