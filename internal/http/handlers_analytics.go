package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// analyticsRange reads the mandatory start_date and end_date parameters.
func analyticsRange(q *QueryParser) (core.Date, core.Date, error) {
	start := q.RequiredDate("start_date")
	end := q.RequiredDate("end_date")
	if err := q.Err(); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if end.Before(start) {
		return core.Date{}, core.Date{}, core.Invalid("end_date", "must not be before start_date")
	}
	return start, end, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	start, end, err := analyticsRange(q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	summary, err := s.svc.Analytics.Summary(r.Context(), start, end, q.String("currency"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	start, end, err := analyticsRange(q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	period := services.TrendPeriod(q.String("period"))
	switch period {
	case "":
		period = services.PeriodMonth
	case services.PeriodDay, services.PeriodWeek, services.PeriodMonth, services.PeriodYear:
	default:
		s.respondError(w, r, core.Invalid("period", "must be one of day, week, month, year"))
		return
	}
	trends, err := s.svc.Analytics.Trends(r.Context(), start, end, period, q.String("currency"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, trends)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	start, end, err := analyticsRange(q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	breakdown, err := s.svc.Analytics.ByCategory(r.Context(), start, end, q.String("currency"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	limit := q.Int("limit", 5, 1, 20)
	start, end, err := analyticsRange(q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	top, err := s.svc.Analytics.TopCategories(r.Context(), start, end, limit, q.String("currency"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, top)
}
