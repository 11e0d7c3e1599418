package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ncruces/go-strftime"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// TrendPeriod is the bucket size of a trend series.
type TrendPeriod string

const (
	PeriodDay   TrendPeriod = "day"
	PeriodWeek  TrendPeriod = "week"
	PeriodMonth TrendPeriod = "month"
	PeriodYear  TrendPeriod = "year"
)

// Bucket keys are strftime patterns; %W is the Monday-based week of the year.
var periodFormats = map[TrendPeriod]string{
	PeriodDay:   "%Y-%m-%d",
	PeriodWeek:  "%Y-W%W",
	PeriodMonth: "%Y-%m",
	PeriodYear:  "%Y",
}

// PeriodKey returns the bucket label of d. Unknown periods bucket by month.
func PeriodKey(d core.Date, period TrendPeriod) string {
	layout, ok := periodFormats[period]
	if !ok {
		layout = periodFormats[PeriodMonth]
	}
	return strftime.Format(layout, d.Time)
}

type AnalyticsStore interface {
	TransactionsInRange(ctx context.Context, start, end core.Date) ([]core.Transaction, error)
}

type Trends struct {
	Trends          []core.TrendPoint `json:"trends"`
	DisplayCurrency string            `json:"display_currency"`
	MissingRates    []string          `json:"missing_rates,omitempty"`
}

type CategoryBreakdown struct {
	Breakdown       []core.CategoryAmount `json:"breakdown"`
	DisplayCurrency string                `json:"display_currency"`
	MissingRates    []string              `json:"missing_rates,omitempty"`
}

type TopCategories struct {
	TopCategories   []core.CategoryAmount `json:"top_categories"`
	DisplayCurrency string                `json:"display_currency"`
	MissingRates    []string              `json:"missing_rates,omitempty"`
}

// AnalyticsService computes reports over a date range. Amounts in other
// currencies are converted at each transaction's own date.
type AnalyticsService struct {
	store           AnalyticsStore
	rates           Converter
	defaultCurrency string
}

func NewAnalyticsService(store AnalyticsStore, rates Converter, defaultCurrency string) *AnalyticsService {
	defaultCurrency = core.NormalizeCurrency(defaultCurrency)
	if defaultCurrency == "" {
		defaultCurrency = core.DefaultCurrency
	}
	return &AnalyticsService{store: store, rates: rates, defaultCurrency: defaultCurrency}
}

func (s *AnalyticsService) load(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	if end.Before(start) {
		return nil, core.Invalid("end_date", "must not be before start_date")
	}
	txns, err := s.store.TransactionsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txns, nil
}

// displayCurrency picks the requested currency, else the only currency in
// use, else the configured default.
func (s *AnalyticsService) displayCurrency(requested string, txns []core.Transaction) (string, error) {
	if requested = core.NormalizeCurrency(requested); requested != "" {
		if !core.IsSupportedCurrency(requested) {
			return "", core.Invalid("currency", "unsupported currency %q", requested)
		}
		return requested, nil
	}
	used := map[string]struct{}{}
	for _, t := range txns {
		used[t.Currency] = struct{}{}
	}
	if len(used) == 1 {
		for c := range used {
			return c, nil
		}
	}
	return s.defaultCurrency, nil
}

// converter accumulates currencies without a usable rate.
type converter struct {
	rates   Converter
	to      string
	missing map[string]struct{}
}

func (c *converter) convert(ctx context.Context, t core.Transaction) (core.Money, bool, error) {
	amount, err := convertAmount(ctx, c.rates, t, c.to)
	if errors.Is(err, core.ErrNotFound) {
		c.missing[t.Currency] = struct{}{}
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, err
	}
	return amount, true, nil
}

func (s *AnalyticsService) newConverter(to string) *converter {
	return &converter{rates: s.rates, to: to, missing: map[string]struct{}{}}
}

// Summary reports income, expense and balance in one display currency plus
// unconverted totals per currency.
func (s *AnalyticsService) Summary(ctx context.Context, start, end core.Date, currency string) (core.Summary, error) {
	txns, err := s.load(ctx, start, end)
	if err != nil {
		return core.Summary{}, err
	}
	display, err := s.displayCurrency(currency, txns)
	if err != nil {
		return core.Summary{}, err
	}

	conv := s.newConverter(display)
	perCurrency := map[string]*core.CurrencyTotals{}
	var income, expense core.Money
	for _, t := range txns {
		ct, ok := perCurrency[t.Currency]
		if !ok {
			ct = &core.CurrencyTotals{Currency: t.Currency}
			perCurrency[t.Currency] = ct
		}
		if t.Type == core.Income {
			ct.Income = ct.Income.Add(t.Amount)
		} else {
			ct.Expense = ct.Expense.Add(t.Amount)
		}

		amount, ok, err := conv.convert(ctx, t)
		if err != nil {
			return core.Summary{}, err
		}
		if !ok {
			continue
		}
		if t.Type == core.Income {
			income = income.Add(amount)
		} else {
			expense = expense.Add(amount)
		}
	}

	byCurrency := make([]core.CurrencyTotals, 0, len(perCurrency))
	for _, ct := range perCurrency {
		ct.Balance = ct.Income.Sub(ct.Expense)
		byCurrency = append(byCurrency, *ct)
	}
	sort.Slice(byCurrency, func(i, j int) bool { return byCurrency[i].Currency < byCurrency[j].Currency })

	rates := map[string]decimal.Decimal{display: decimal.NewFromInt(1)}
	if rs, ok := s.rates.(interface {
		GetRate(ctx context.Context, from, to string, date core.Date) (decimal.Decimal, error)
	}); ok {
		for _, ct := range byCurrency {
			if ct.Currency == display {
				continue
			}
			if r, err := rs.GetRate(ctx, ct.Currency, display, end); err == nil {
				rates[ct.Currency] = r
			}
		}
	}

	missing := sortedKeys(conv.missing)
	if missing == nil {
		missing = []string{}
	}
	return core.Summary{
		TotalIncome:     income,
		TotalExpense:    expense,
		Balance:         income.Sub(expense),
		DisplayCurrency: display,
		ByCurrency:      byCurrency,
		CurrencyRates:   rates,
		MissingRates:    missing,
		StartDate:       start,
		EndDate:         end,
	}, nil
}

// Trends buckets income and expense by period, oldest bucket first.
func (s *AnalyticsService) Trends(ctx context.Context, start, end core.Date, period TrendPeriod, currency string) (Trends, error) {
	if _, ok := periodFormats[period]; !ok {
		period = PeriodMonth
	}
	txns, err := s.load(ctx, start, end)
	if err != nil {
		return Trends{}, err
	}
	display, err := s.displayCurrency(currency, txns)
	if err != nil {
		return Trends{}, err
	}

	conv := s.newConverter(display)
	buckets := map[string]*core.TrendPoint{}
	for _, t := range txns {
		amount, ok, err := conv.convert(ctx, t)
		if err != nil {
			return Trends{}, err
		}
		if !ok {
			continue
		}
		key := PeriodKey(t.TransactionDate, period)
		b, exists := buckets[key]
		if !exists {
			b = &core.TrendPoint{Period: key}
			buckets[key] = b
		}
		if t.Type == core.Income {
			b.Income = b.Income.Add(amount)
		} else {
			b.Expense = b.Expense.Add(amount)
		}
	}

	points := make([]core.TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		b.Balance = b.Income.Sub(b.Expense)
		points = append(points, *b)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })

	return Trends{Trends: points, DisplayCurrency: display, MissingRates: sortedKeys(conv.missing)}, nil
}

func (s *AnalyticsService) expenseTotals(ctx context.Context, start, end core.Date, currency string) ([]core.CategoryAmount, string, []string, error) {
	txns, err := s.load(ctx, start, end)
	if err != nil {
		return nil, "", nil, err
	}
	display, err := s.displayCurrency(currency, txns)
	if err != nil {
		return nil, "", nil, err
	}

	conv := s.newConverter(display)
	totals := map[string]*core.CategoryAmount{}
	for _, t := range txns {
		if t.Type != core.Expense {
			continue
		}
		amount, ok, err := conv.convert(ctx, t)
		if err != nil {
			return nil, "", nil, err
		}
		if !ok {
			continue
		}
		ca, exists := totals[t.CategoryID]
		if !exists {
			ca = &core.CategoryAmount{CategoryID: t.CategoryID, Name: t.CategoryName}
			totals[t.CategoryID] = ca
		}
		ca.Amount = ca.Amount.Add(amount)
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for _, ca := range totals {
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out, display, sortedKeys(conv.missing), nil
}

// ByCategory returns expense totals per category, largest first.
func (s *AnalyticsService) ByCategory(ctx context.Context, start, end core.Date, currency string) (CategoryBreakdown, error) {
	items, display, missing, err := s.expenseTotals(ctx, start, end, currency)
	if err != nil {
		return CategoryBreakdown{}, err
	}
	return CategoryBreakdown{Breakdown: items, DisplayCurrency: display, MissingRates: missing}, nil
}

// TopCategories returns the limit largest expense categories with their share
// of all expenses in the range.
func (s *AnalyticsService) TopCategories(ctx context.Context, start, end core.Date, limit int, currency string) (TopCategories, error) {
	if limit < 1 || limit > 20 {
		return TopCategories{}, core.Invalid("limit", "must be between 1 and 20")
	}
	items, display, missing, err := s.expenseTotals(ctx, start, end, currency)
	if err != nil {
		return TopCategories{}, err
	}

	var total int64
	for _, ca := range items {
		total += ca.Amount.Cents
	}
	if len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		p := percentage(items[i].Amount.Cents, total)
		items[i].Percentage = &p
	}
	return TopCategories{TopCategories: items, DisplayCurrency: display, MissingRates: missing}, nil
}
