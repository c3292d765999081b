package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mapsync/internal/mapping"
	"mapsync/internal/report"
	"mapsync/internal/storage"
)

func (s *Server) handleListRegistry(w http.ResponseWriter, r *http.Request) {
	groupID := strings.TrimSpace(r.URL.Query().Get("groupId"))
	configs, err := s.store.ListConfigurations(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if configs == nil {
		configs = []mapping.SavedConfiguration{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfiguration(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type saveResponse struct {
	Success       bool                       `json:"success"`
	Message       string                     `json:"message"`
	Configuration mapping.SavedConfiguration `json:"configuration"`
}

func (s *Server) handleSaveRegistry(w http.ResponseWriter, r *http.Request) {
	var cfg mapping.SavedConfiguration
	if err := s.decodeJSON(w, r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := cfg.Normalized(s.cat)
	if err != nil {
		writeError(w, badRequest(err))
		return
	}

	saved, err := s.store.SaveConfiguration(r.Context(), cfg)
	if err != nil {
		s.logf("stage=registry_save level=error name=%q group=%s err=%v", cfg.Name, cfg.GroupID, err)
		writeError(w, err)
		return
	}
	s.logf("stage=registry_save id=%s name=%q group=%s version=%d mapped=%d",
		saved.ID, saved.Name, saved.GroupID, saved.Version, saved.MappedCount())
	writeJSON(w, http.StatusOK, saveResponse{Success: true, Message: "Registry saved successfully", Configuration: saved})
}

func (s *Server) handleDeleteRegistry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.store.DeleteConfiguration(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, fmt.Errorf("%w: %s", storage.ErrNotFound, id))
		return
	}
	s.logf("stage=registry_delete id=%s", id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExportRegistry(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfiguration(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	// Render first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := report.Write(&buf, cfg, s.cat, s.now()); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(cfg)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
