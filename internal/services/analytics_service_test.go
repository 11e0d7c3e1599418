package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

type sliceStore []core.Transaction

func (s sliceStore) TransactionsInRange(_ context.Context, start, end core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range s {
		if !t.TransactionDate.Before(start) && !t.TransactionDate.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func txnAt(typ core.TransactionType, catID, catName, currency string, cents int64, date core.Date) core.Transaction {
	return core.Transaction{
		Amount:          core.Money{Cents: cents},
		Currency:        currency,
		CategoryID:      catID,
		CategoryName:    catName,
		TransactionDate: date,
		Type:            typ,
	}
}

func analyticsFixture() sliceStore {
	return sliceStore{
		txnAt(core.Income, "sal", "Salary", "USD", 300000, core.NewDate(2026, 1, 31)),
		txnAt(core.Expense, "food", "Food", "USD", 20000, core.NewDate(2026, 1, 5)),
		txnAt(core.Expense, "food", "Food", "EUR", 10000, core.NewDate(2026, 2, 6)),
		txnAt(core.Expense, "rent", "Rent", "USD", 100000, core.NewDate(2026, 2, 1)),
		txnAt(core.Expense, "fun", "Fun", "JPY", 500000, core.NewDate(2026, 2, 7)),
		txnAt(core.Expense, "old", "Old", "USD", 999, core.NewDate(2025, 12, 31)),
	}
}

func TestAnalyticsService_Summary(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), staticConverter{"EUR": 1.5}, "usd")

	s, err := svc.Summary(context.Background(), core.NewDate(2026, 1, 1), core.NewDate(2026, 2, 28), "")
	require.NoError(t, err)

	assert.Equal(t, "USD", s.DisplayCurrency)
	assert.Equal(t, int64(300000), s.TotalIncome.Cents)
	assert.Equal(t, int64(135000), s.TotalExpense.Cents)
	assert.Equal(t, int64(165000), s.Balance.Cents)
	assert.Equal(t, []string{"JPY"}, s.MissingRates)

	require.Len(t, s.ByCurrency, 3)
	assert.Equal(t, "EUR", s.ByCurrency[0].Currency)
	assert.Equal(t, int64(10000), s.ByCurrency[0].Expense.Cents)
	assert.Equal(t, "JPY", s.ByCurrency[1].Currency)
	assert.Equal(t, "USD", s.ByCurrency[2].Currency)
	assert.Equal(t, int64(180000), s.ByCurrency[2].Balance.Cents)

	assert.Contains(t, s.CurrencyRates, "USD")
}

func TestAnalyticsService_DisplayCurrency(t *testing.T) {
	ctx := context.Background()
	single := sliceStore{txnAt(core.Expense, "food", "Food", "EUR", 100, core.NewDate(2026, 1, 5))}

	s, err := NewAnalyticsService(single, nil, "USD").Summary(ctx, core.NewDate(2026, 1, 1), core.NewDate(2026, 1, 31), "")
	require.NoError(t, err)
	assert.Equal(t, "EUR", s.DisplayCurrency)
	assert.Empty(t, s.MissingRates)
	assert.NotNil(t, s.MissingRates)

	_, err = NewAnalyticsService(single, nil, "USD").Summary(ctx, core.NewDate(2026, 1, 1), core.NewDate(2026, 1, 31), "ZZZ")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NewAnalyticsService(single, nil, "USD").Summary(ctx, core.NewDate(2026, 2, 1), core.NewDate(2026, 1, 1), "")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAnalyticsService_Trends(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), staticConverter{"EUR": 1.5}, "USD")

	tr, err := svc.Trends(context.Background(), core.NewDate(2026, 1, 1), core.NewDate(2026, 2, 28), PeriodMonth, "USD")
	require.NoError(t, err)
	require.Len(t, tr.Trends, 2)
	assert.Equal(t, "2026-01", tr.Trends[0].Period)
	assert.Equal(t, int64(300000), tr.Trends[0].Income.Cents)
	assert.Equal(t, int64(280000), tr.Trends[0].Balance.Cents)
	assert.Equal(t, "2026-02", tr.Trends[1].Period)
	assert.Equal(t, int64(115000), tr.Trends[1].Expense.Cents)
	assert.Equal(t, []string{"JPY"}, tr.MissingRates)

	// Unknown periods fall back to months.
	tr, err = svc.Trends(context.Background(), core.NewDate(2026, 1, 1), core.NewDate(2026, 2, 28), "quarter", "USD")
	require.NoError(t, err)
	assert.Len(t, tr.Trends, 2)
}

func TestPeriodKey(t *testing.T) {
	d := core.NewDate(2026, 1, 5)
	tests := []struct {
		period TrendPeriod
		want   string
	}{
		{PeriodDay, "2026-01-05"},
		{PeriodWeek, "2026-W01"},
		{PeriodMonth, "2026-01"},
		{PeriodYear, "2026"},
		{"bogus", "2026-01"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodKey(d, tt.period))
		})
	}
	// Days before the first Monday belong to week 00.
	assert.Equal(t, "2026-W00", PeriodKey(core.NewDate(2026, 1, 1), PeriodWeek))
}

func TestAnalyticsService_Categories(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), staticConverter{"EUR": 1.5}, "USD")
	ctx := context.Background()
	start, end := core.NewDate(2026, 1, 1), core.NewDate(2026, 2, 28)

	br, err := svc.ByCategory(ctx, start, end, "USD")
	require.NoError(t, err)
	require.Len(t, br.Breakdown, 2)
	assert.Equal(t, "rent", br.Breakdown[0].CategoryID)
	assert.Equal(t, "Food", br.Breakdown[1].Name)
	assert.Equal(t, int64(35000), br.Breakdown[1].Amount.Cents)
	assert.Nil(t, br.Breakdown[0].Percentage)

	top, err := svc.TopCategories(ctx, start, end, 1, "USD")
	require.NoError(t, err)
	require.Len(t, top.TopCategories, 1)
	require.NotNil(t, top.TopCategories[0].Percentage)
	assert.Equal(t, 74.07, *top.TopCategories[0].Percentage)

	_, err = svc.TopCategories(ctx, start, end, 0, "USD")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.TopCategories(ctx, start, end, 21, "USD")
	assert.ErrorIs(t, err, core.ErrValidation)
}
