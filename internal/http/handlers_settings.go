package http

import (
	"net/http"
)

type settingUpdate struct {
	Value *string `json:"value"`
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Settings.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := s.svc.Settings.Get(r.Context(), urlParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setting)
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var body settingUpdate
	if err := DecodeJSON(w, r, &body, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	if body.Value == nil {
		UnprocessableEntityError("value: field required").Write(w)
		return
	}
	setting, err := s.svc.Settings.Update(r.Context(), urlParam(r, "key"), *body.Value)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setting)
}
