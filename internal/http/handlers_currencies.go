package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.svc.Rates.Currencies(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if currencies == nil {
		currencies = []core.Currency{}
	}
	respondJSON(w, http.StatusOK, currencies)
}

func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	from := core.NormalizeCurrency(q.String("from_currency"))
	to := core.NormalizeCurrency(q.String("to_currency"))
	date := q.RequiredDate("rate_date")
	if err := q.Err(); err != nil {
		s.respondError(w, r, err)
		return
	}
	for field, code := range map[string]string{"from_currency": from, "to_currency": to} {
		if len(code) != 3 {
			s.respondError(w, r, core.Invalid(field, "must be a 3-letter currency code"))
			return
		}
	}

	rate, err := s.svc.Rates.GetRate(r.Context(), from, to, date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, core.ExchangeRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		Date:         date,
	})
}
