package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	skip := q.Int("skip", 0, 0, 1<<30)
	limit := q.Int("limit", 100, 1, 500)
	if err := q.Err(); err != nil {
		s.respondError(w, r, err)
		return
	}
	templates, err := s.svc.Recurring.List(r.Context(), skip, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if templates == nil {
		templates = []core.RecurringTemplate{}
	}
	respondJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var rt core.RecurringTemplate
	if err := DecodeJSON(w, r, &rt, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.svc.Recurring.Create(r.Context(), rt)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := s.svc.Recurring.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rt)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var patch services.RecurringPatch
	if err := DecodeJSON(w, r, &patch, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	rt, err := s.svc.Recurring.Update(r.Context(), urlParam(r, "id"), patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rt)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Recurring.Delete(r.Context(), urlParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
