package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// transactionFilter reads the listing filters from the query string.
func transactionFilter(r *http.Request) (core.TransactionFilter, error) {
	q := NewQueryParser(r)
	f := core.TransactionFilter{
		StartDate:  q.Date("start_date"),
		EndDate:    q.Date("end_date"),
		CategoryID: q.String("category_id"),
		Type:       core.TransactionType(q.String("transaction_type")),
		MinAmount:  q.Money("min_amount"),
		MaxAmount:  q.Money("max_amount"),
		Page:       q.Int("page", 1, 1, 1<<30),
		PageSize:   q.Int("page_size", services.DefaultPageSize, 1, services.MaxPageSize),
	}
	if err := q.Err(); err != nil {
		return core.TransactionFilter{}, err
	}
	if f.Type != "" && !f.Type.Valid() {
		return core.TransactionFilter{}, core.Invalid("transaction_type", "must be income or expense")
	}
	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page, err := s.svc.Transactions.List(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := DecodeJSON(w, r, &t, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.svc.Transactions.Create(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.structured.LogTransactionCreated(r.Context(), created.ID, created.Amount.Cents, created.Currency, created.CategoryID)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Transactions.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch services.TransactionPatch
	if err := DecodeJSON(w, r, &patch, maxJSONBodyBytes); err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := s.svc.Transactions.Update(r.Context(), urlParam(r, "id"), patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.Delete(r.Context(), urlParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
