package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mapsync/internal/dataset"
	"mapsync/internal/metrics"
	"mapsync/internal/parser"
)

var errNoDatasetCache = errors.New("dataset cache is not configured")

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		writeError(w, badRequest(fmt.Errorf("invalid multipart upload: %w", err)))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, badRequest(fmt.Errorf("form field %q: %w", "file", err)))
		return
	}
	defer file.Close()

	start := s.now()
	tbl, err := parser.ParseFile(hdr.Filename, file)
	metrics.RecordStep("parse", err, s.now().Sub(start))
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	s.storeDataset(w, dataset.New(tbl, hdr.Filename))
}

func (s *Server) handleDemoDataset(w http.ResponseWriter, _ *http.Request) {
	ds, err := dataset.Demo()
	if err != nil {
		writeError(w, err)
		return
	}
	s.storeDataset(w, ds)
}

func (s *Server) storeDataset(w http.ResponseWriter, ds *dataset.Dataset) {
	if s.datasets == nil {
		writeError(w, errNoDatasetCache)
		return
	}
	if !s.datasets.Put(ds) {
		writeError(w, fmt.Errorf("dataset %s was not admitted to the cache", ds.ID))
		return
	}
	s.logf("stage=dataset id=%s file=%q rows=%d columns=%d", ds.ID, ds.FileName, len(ds.Rows), len(ds.Headers))
	writeJSON(w, http.StatusCreated, ds.Summary())
}

// dataset resolves a cached upload. Expired and unknown ids are both 404.
func (s *Server) dataset(id string) (*dataset.Dataset, error) {
	if s.datasets == nil {
		return nil, errNoDatasetCache
	}
	id = strings.TrimSpace(id)
	ds, ok := s.datasets.Get(id)
	if !ok {
		return nil, notFound(fmt.Errorf("dataset %q not found or expired", id))
	}
	return ds, nil
}
