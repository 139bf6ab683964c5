package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secdash/secdash/pkg/policy"
)

// queryFromRequest decodes the collection filter from the URL query.
func queryFromRequest(r *http.Request) policy.Query {
	return policy.Query{
		Search: r.URL.Query().Get("search"),
		Mode:   policy.EnforcementMode(r.URL.Query().Get("mode")),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}

// writeError sends the error envelope the client decodes into failure
// messages.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListWAF(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.fixtures.ListWAF(queryFromRequest(r)))
}

func (s *Server) handleCreateWAF(w http.ResponseWriter, r *http.Request) {
	var p policy.WAFPolicy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := s.fixtures.CreateWAF(p)
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.logger.Info("waf policy created", "id", stored.ID, "name", stored.Name)
	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUpdateWAF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch policy.WAFPolicy
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := s.fixtures.UpdateWAF(id, patch)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Info("waf policy updated", "id", id)
	s.writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteWAF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.fixtures.DeleteWAF(id); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Info("waf policy deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIPS(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.fixtures.ListIPS(queryFromRequest(r)))
}

func (s *Server) handleListSCM(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.fixtures.ListSCM(queryFromRequest(r)))
}
