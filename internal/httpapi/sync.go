package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mapsync/internal/mapping"
	"mapsync/internal/multitable"
)

type syncDataRequest struct {
	TableName string   `json:"tableName" validate:"required"`
	Columns   []string `json:"columns" validate:"required,min=1,dive,required"`
	Rows      [][]any  `json:"rows" validate:"required"`
}

type syncDataResponse struct {
	Success      bool   `json:"success"`
	RowsAffected int64  `json:"rowsAffected"`
	Message      string `json:"message"`
}

// handleSyncData bulk-loads rows that the caller has already materialized.
func (s *Server) handleSyncData(w http.ResponseWriter, r *http.Request) {
	var req syncDataRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := s.now()
	res, err := s.store.Load(r.Context(), strings.TrimSpace(req.TableName), req.Columns, req.Rows)
	if err != nil {
		s.logf("stage=sync_data level=error table=%s rows=%d err=%v", req.TableName, len(req.Rows), err)
		writeError(w, err)
		return
	}
	s.logf("stage=sync_data table=%s rows=%d duration=%s", req.TableName, res.RowsAffected, s.now().Sub(start))
	writeJSON(w, http.StatusOK, syncDataResponse{Success: res.Success, RowsAffected: res.RowsAffected, Message: res.Message})
}

type groupSyncRequest struct {
	DatasetID      string                            `json:"datasetId" validate:"required"`
	RegistryID     string                            `json:"registryId" validate:"required_without=ObjectMappings"`
	ObjectMappings map[string][]mapping.FieldMapping `json:"objectMappings"`
}

// handleGroupSync replays either a saved registry or posted mappings against
// every table of the group. Per-table failures are reported in the body with
// status 200; only failures before the first table are HTTP errors.
func (s *Server) handleGroupSync(w http.ResponseWriter, r *http.Request) {
	var req groupSyncRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ds, err := s.dataset(req.DatasetID)
	if err != nil {
		writeError(w, err)
		return
	}

	groupID := mux.Vars(r)["id"]
	var res multitable.SyncResult
	if id := strings.TrimSpace(req.RegistryID); id != "" {
		res, err = s.runner.RunSaved(r.Context(), id, groupID, ds.Rows)
	} else {
		res, err = s.runner.Run(r.Context(), mapping.SavedConfiguration{
			Name:           "ad hoc",
			GroupID:        groupID,
			ObjectMappings: req.ObjectMappings,
		}, ds.Rows)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
