package core

import "github.com/shopspring/decimal"

// CurrencyTotals aggregates amounts in a single, unconverted currency.
type CurrencyTotals struct {
	Currency string `json:"currency"`
	Income   Money  `json:"income"`
	Expense  Money  `json:"expense"`
	Balance  Money  `json:"balance"`
}

// Summary is the converted income/expense overview for a date range.
type Summary struct {
	TotalIncome     Money                      `json:"total_income"`
	TotalExpense    Money                      `json:"total_expense"`
	Balance         Money                      `json:"balance"`
	DisplayCurrency string                     `json:"display_currency"`
	ByCurrency      []CurrencyTotals           `json:"by_currency"`
	CurrencyRates   map[string]decimal.Decimal `json:"currency_rates"`
	MissingRates    []string                   `json:"missing_rates"`
	StartDate       Date                       `json:"start_date"`
	EndDate         Date                       `json:"end_date"`
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Period  string `json:"period"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Balance Money  `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string   `json:"category_id"`
	Name       string   `json:"category_name"`
	Amount     Money    `json:"amount"`
	Percentage *float64 `json:"percentage,omitempty"`
}

type BudgetProgress struct {
	BudgetID     string   `json:"budget_id"`
	Amount       Money    `json:"amount"`
	Spent        Money    `json:"spent"`
	Remaining    Money    `json:"remaining"`
	Percentage   float64  `json:"percentage"`
	Currency     string   `json:"currency"`
	MissingRates []string `json:"missing_rates,omitempty"`
}

// ProcessError records why one template could not be materialized.
type ProcessError struct {
	RecurringID string `json:"recurring_id"`
	Error       string `json:"error"`
}

// ProcessResult is the outcome of one due-processing batch.
type ProcessResult struct {
	CreatedCount int            `json:"created_count"`
	ErrorCount   int            `json:"error_count"`
	Errors       []ProcessError `json:"errors"`
}

// TransactionFilter narrows a transaction listing. Zero values mean "no filter";
// PageSize 0 returns every match.
type TransactionFilter struct {
	StartDate  *Date
	EndDate    *Date
	CategoryID string
	Type       TransactionType
	MinAmount  *Money
	MaxAmount  *Money
	Page       int
	PageSize   int
}

type TransactionPage struct {
	Items    []Transaction `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Pages    int           `json:"pages"`
}
