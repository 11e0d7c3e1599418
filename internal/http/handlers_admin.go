package http

import (
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type runRecurringResponse struct {
	Status string    `json:"status"`
	Date   core.Date `json:"date"`
	core.ProcessResult
}

// handleRunRecurring materializes every template due on target_date
// (default today). Running it twice for the same day creates nothing new.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	target := q.Date("target_date")
	if err := q.Err(); err != nil {
		s.respondError(w, r, err)
		return
	}
	date := core.DateOf(s.opts.Now())
	if target != nil {
		date = *target
	}

	result, err := s.svc.Processor.ProcessDue(r.Context(), date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring run triggered",
		applog.FieldOperation, applog.OpProcess,
		"date", date.String(),
		"created", result.CreatedCount,
		"errors", result.ErrorCount)
	if result.Errors == nil {
		result.Errors = []core.ProcessError{}
	}
	respondJSON(w, http.StatusOK, runRecurringResponse{Status: "completed", Date: date, ProcessResult: result})
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	base := NewQueryParser(r).String("base")
	if base == "" {
		base = s.opts.RateBase
	}
	result, err := s.svc.Rates.RefreshRates(r.Context(), base)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
