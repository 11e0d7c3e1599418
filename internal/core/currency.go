package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// supportedCurrencies lists the ISO 4217 codes accepted on transactions,
// templates and budgets.
var supportedCurrencies = map[string]struct{}{}

// ImportCurrencies is the narrower set accepted by CSV import; it matches the
// currencies seeded in the currencies table.
var ImportCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CNY", "RUB", "INR", "BRL", "CAD", "AUD"}

func init() {
	codes := strings.Fields(`
		USD EUR GBP JPY CNY RUB INR BRL CAD AUD CHF SEK NOK DKK PLN CZK HUF RON BGN HRK
		TRY ILS ZAR MXN ARS CLP COP PEN VES KRW THB IDR MYR SGD PHP VND NZD AED SAR QAR
		KWD BHD OMR JOD EGP MAD DZD TND LYD NGN KES GHS UGX TZS ZMW BWP MUR SCR MGA XOF
		XAF KMF DJF SOS ETB ERN SDG SSP UZS KZT GEL AMD AZN BYN UAH MDL TJS TMT KGS MNT
		AFN PKR BDT LKR NPR BTN MVR MMK LAK KHR`)
	for _, c := range codes {
		supportedCurrencies[c] = struct{}{}
	}
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}

func IsImportCurrency(code string) bool {
	for _, c := range ImportCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

type (
	Currency struct {
		Code      string    `json:"code"`
		Name      string    `json:"name"`
		Symbol    string    `json:"symbol"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}

	ExchangeRate struct {
		ID           string          `json:"id"`
		FromCurrency string          `json:"from_currency"`
		ToCurrency   string          `json:"to_currency"`
		Rate         decimal.Decimal `json:"rate"`
		Date         Date            `json:"date"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	// RatesRefreshResult is returned by an exchange-rate refresh run.
	RatesRefreshResult struct {
		Success      bool   `json:"success"`
		UpdatedCount int    `json:"updated_count"`
		Date         Date   `json:"date"`
		Base         string `json:"base"`
	}
)
