package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(NewQueryParser(r).String("type"))
	if typ != "" && !typ.Valid() {
		s.respondError(w, r, core.Invalid("type", "must be income or expense"))
		return
	}
	cats, err := s.svc.Categories.List(r.Context(), typ)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	respondJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := DecodeJSON(w, r, &c, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.svc.Categories.Create(r.Context(), c)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Categories.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch services.CategoryPatch
	if err := DecodeJSON(w, r, &patch, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Update(r.Context(), urlParam(r, "id"), patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.Delete(r.Context(), urlParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
