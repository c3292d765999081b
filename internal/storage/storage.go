// Package storage defines the persistence collaborators of mapsync: the
// registry of saved configurations and the bulk loader that writes
// materialized rows into target tables.
//
// Backends live in sub-packages and register themselves from init(); import
// mapsync/internal/storage/all to link every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
)

var (
	// ErrNotFound is returned when a configuration id does not exist.
	ErrNotFound = errors.New("storage: configuration not found")
	// ErrVersionConflict is returned when a save carries a stale version.
	ErrVersionConflict = errors.New("storage: version conflict")
	// ErrInvalidLoad is returned for malformed bulk-load input.
	ErrInvalidLoad = errors.New("storage: invalid load request")
)

// Config selects and configures a backend.
//
// Edge cases:
//   - Kind must match a registered backend ("postgres", "mssql", "sqlite").
//   - DSN is passed through to the backend; validation is backend-specific.
//   - Catalog resolves target tables and columns recorded next to each saved
//     mapping. With a nil Catalog those columns are stored empty.
type Config struct {
	Kind    string
	DSN     string
	Catalog *catalog.Catalog
}

// Registry persists SavedConfigurations.
type Registry interface {
	// EnsureRegistry creates the registry tables if they are missing.
	EnsureRegistry(ctx context.Context) error

	// SaveConfiguration upserts cfg in one transaction and returns the stored
	// record with its id, timestamps and new version.
	//
	// Resolution order:
	//   - cfg.ID set and present: update that record.
	//   - otherwise a record with the same name and group: update it, reusing its id.
	//   - otherwise insert, under cfg.ID when set or a fresh UUID.
	//
	// When cfg.Version > 0 it must equal the stored version, otherwise
	// ErrVersionConflict. Version 0 means last write wins.
	SaveConfiguration(ctx context.Context, cfg mapping.SavedConfiguration) (mapping.SavedConfiguration, error)

	// ListConfigurations returns configurations of groupID, or all of them
	// when groupID is empty, ordered by name.
	ListConfigurations(ctx context.Context, groupID string) ([]mapping.SavedConfiguration, error)

	// GetConfiguration returns ErrNotFound for an unknown id.
	GetConfiguration(ctx context.Context, id string) (mapping.SavedConfiguration, error)

	// DeleteConfiguration removes id and its details. It reports whether
	// anything was deleted.
	DeleteConfiguration(ctx context.Context, id string) (bool, error)
}

// LoadResult reports one bulk load.
type LoadResult struct {
	Success      bool   `json:"success"`
	RowsAffected int64  `json:"rowsAffected"`
	Message      string `json:"message"`
}

// Loader bulk-inserts rows into a target table.
type Loader interface {
	// EnsureTables creates tables with AutoCreateTable set. It is idempotent.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Load inserts rows in one transaction, chunked under the driver's
	// parameter limit. Every row must have len(columns) cells.
	Load(ctx context.Context, table string, columns []string, rows [][]any) (LoadResult, error)
}

// Store is what a backend provides.
type Store interface {
	Registry
	Loader
	Kind() string
	Ping(ctx context.Context) error
	Close()
}

// Factory opens a Store for cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Call it from init().
//
// Panics:
//   - If kind is empty or f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs a Store with the registered factory for cfg.Kind.
//
// Errors:
//   - cfg.Kind empty or not registered.
//   - whatever the factory returns.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// ValidateLoad checks the shape of a bulk-load request.
func ValidateLoad(table string, columns []string, rows [][]any) error {
	if table == "" {
		return fmt.Errorf("%w: empty table name", ErrInvalidLoad)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidLoad)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidLoad)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidLoad, c)
		}
		seen[c] = true
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidLoad, i, len(r), len(columns))
		}
	}
	return nil
}
