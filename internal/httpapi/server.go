// Package httpapi exposes the mapping engine, the registry and group sync
// over JSON/HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"mapsync/internal/catalog"
	"mapsync/internal/dataset"
	"mapsync/internal/multitable"
	"mapsync/internal/storage"
	"mapsync/internal/suggest"
)

// Logger is the minimal logging interface used by the server.
type Logger interface {
	Printf(format string, v ...any)
}

// DefaultMaxUploadBytes caps multipart uploads and JSON bodies.
const DefaultMaxUploadBytes = 32 << 20

// Options wires a Server.
type Options struct {
	Catalog  *catalog.Catalog
	Store    storage.Store
	Datasets *dataset.Cache

	// Suggester defaults to suggest.Disabled. It is always wrapped with
	// suggest.Safe.
	Suggester     suggest.Suggester
	MinConfidence float64

	// Engine carries the sync settings (publisher, create-tables). Its
	// Loader defaults to Store.
	Engine *multitable.Engine

	CORSOrigin     string
	MaxUploadBytes int64
	Logger         Logger
}

// Server holds the collaborators shared by every request. Apart from the
// dataset cache and the storage pool it keeps no state between requests.
type Server struct {
	cat       *catalog.Catalog
	store     storage.Store
	datasets  *dataset.Cache
	suggester suggest.Suggester
	minConf   float64
	runner    *multitable.Runner

	corsOrigin string
	maxBytes   int64
	logf       func(format string, v ...any)
	validate   *validator.Validate

	// now is overridden in tests.
	now func() time.Time
}

// New builds a Server. Catalog defaults to catalog.Default().
func New(o Options) *Server {
	s := &Server{
		cat:        o.Catalog,
		store:      o.Store,
		datasets:   o.Datasets,
		minConf:    o.MinConfidence,
		corsOrigin: o.CORSOrigin,
		maxBytes:   o.MaxUploadBytes,
		validate:   newValidator(),
		now:        time.Now,
		logf:       func(string, ...any) {},
	}
	if s.cat == nil {
		s.cat = catalog.Default()
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxUploadBytes
	}
	if o.Logger != nil {
		s.logf = o.Logger.Printf
	}

	sg := o.Suggester
	if sg == nil {
		sg = suggest.Disabled{}
	}
	s.suggester = suggest.Safe(sg, o.Logger)

	engine := o.Engine
	if engine == nil {
		engine = &multitable.Engine{}
	}
	if engine.Loader == nil {
		engine.Loader = o.Store
	}
	if engine.Logger == nil && o.Logger != nil {
		engine.Logger = o.Logger
	}
	s.runner = &multitable.Runner{Catalog: s.cat, Registry: o.Store, Engine: engine}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.instrumentMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/db-check", s.handleDBCheck).Methods(http.MethodGet)

	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/schemas/{id}", s.handleGetSchema).Methods(http.MethodGet)

	api.HandleFunc("/datasets", s.handleUploadDataset).Methods(http.MethodPost)
	api.HandleFunc("/datasets/demo", s.handleDemoDataset).Methods(http.MethodPost)

	api.HandleFunc("/groups/{id}/automap", s.handleAutomap).Methods(http.MethodPost)
	api.HandleFunc("/schemas/{id}/suggest", s.handleSuggest).Methods(http.MethodPost)
	api.HandleFunc("/schemas/{id}/preview", s.handlePreview).Methods(http.MethodPost)

	api.HandleFunc("/registry", s.handleListRegistry).Methods(http.MethodGet)
	api.HandleFunc("/registry", s.handleSaveRegistry).Methods(http.MethodPost)
	api.HandleFunc("/registry/{id}", s.handleGetRegistry).Methods(http.MethodGet)
	api.HandleFunc("/registry/{id}", s.handleDeleteRegistry).Methods(http.MethodDelete)
	api.HandleFunc("/registry/{id}/export", s.handleExportRegistry).Methods(http.MethodGet)

	api.HandleFunc("/sync-data", s.handleSyncData).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id}/sync", s.handleGroupSync).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests never need a route.
	return s.corsMiddleware(r)
}
