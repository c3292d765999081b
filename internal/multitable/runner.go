package multitable

import (
	"context"
	"errors"
	"fmt"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
	"mapsync/internal/storage"
	"mapsync/internal/value"
)

// ErrGroupMismatch is returned when a saved configuration belongs to a
// different data group than the one being synced.
var ErrGroupMismatch = errors.New("multitable: configuration belongs to another group")

// Runner resolves a saved configuration against the catalog and hands it to
// an Engine. The CLI sync command and the HTTP sync route both go through it.
type Runner struct {
	Catalog  *catalog.Catalog
	Registry storage.Registry
	Engine   *Engine
}

// RunSaved loads registry id and syncs rows through it. When groupID is not
// empty the configuration must belong to that group.
//
// Errors:
//   - storage.ErrNotFound for an unknown id.
//   - ErrGroupMismatch when groupID disagrees with the stored group.
func (r *Runner) RunSaved(ctx context.Context, id, groupID string, rows []value.Row) (SyncResult, error) {
	if r.Registry == nil {
		return SyncResult{}, fmt.Errorf("multitable: Registry is required")
	}
	cfg, err := r.Registry.GetConfiguration(ctx, id)
	if err != nil {
		return SyncResult{}, err
	}
	if groupID != "" && cfg.GroupID != groupID {
		return SyncResult{}, fmt.Errorf("%w: %s is in %s, not %s", ErrGroupMismatch, id, cfg.GroupID, groupID)
	}
	return r.Run(ctx, cfg, rows)
}

// Run syncs rows through an unsaved configuration.
func (r *Runner) Run(ctx context.Context, cfg mapping.SavedConfiguration, rows []value.Row) (SyncResult, error) {
	if r.Engine == nil {
		return SyncResult{}, fmt.Errorf("multitable: Engine is required")
	}
	cat := r.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	g, err := cfg.ToGroup(cat)
	if err != nil {
		return SyncResult{}, err
	}
	return r.Engine.SyncGroup(ctx, g, rows)
}
