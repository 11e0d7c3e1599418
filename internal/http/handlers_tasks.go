package http

import (
	"bytes"
	"fmt"
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.Status(r.Context(), urlParam(r, "task_id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	var req services.CSVImportRequest
	if err := DecodeJSON(w, r, &req, maxCSVImportBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.svc.CSV.Import(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.TaskID != "sync" {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}

// handleExportCSV renders into a buffer so that failures still produce a
// JSON error instead of a truncated file.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	opts := services.ExportOptions{
		StartDate:  q.Date("start_date"),
		EndDate:    q.Date("end_date"),
		CategoryID: q.String("category_id"),
		DateFormat: q.String("date_format"),
	}
	if err := q.Err(); err != nil {
		s.respondError(w, r, err)
		return
	}
	cols, err := services.ParseColumns(q.String("columns"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts.Columns = cols

	var buf bytes.Buffer
	if err := s.svc.CSV.Export(r.Context(), opts, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("transactions_%s.csv", s.opts.Now().UTC().Format("2006-01-02"))
	NewResponse().
		Header("Content-Disposition", "attachment; filename="+filename).
		Raw("text/csv; charset=utf-8", buf.Bytes()).
		Write(w)
}
