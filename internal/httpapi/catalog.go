package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"datetime": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDBCheck(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "no storage configured"})
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		s.logf("stage=db_check level=error kind=%s err=%v", s.store.Kind(), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "database": s.store.Kind()})
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cat.Groups())
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := s.cat.Schema(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
