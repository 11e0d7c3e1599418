package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

// staticConverter converts with fixed per-currency multipliers into any
// target currency. Unknown currencies have no rate.
type staticConverter map[string]float64

func (c staticConverter) Convert(_ context.Context, amount core.Money, from, to string, _ core.Date) (core.Money, error) {
	factor, ok := c[from]
	if !ok {
		return core.Money{}, fmt.Errorf("rate %s->%s: %w", from, to, core.ErrNotFound)
	}
	return core.Money{Cents: int64(float64(amount.Cents)*factor + 0.5)}, nil
}

func TestBudgetService_Progress(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	food := mustCategory(t, repo, "Food", core.Expense)
	travel := mustCategory(t, repo, "Travel", core.Expense)

	txns := NewTransactionService(repo, nil, nil)
	add := func(categoryID, currency string, cents int64, date core.Date) {
		txn := expense(categoryID, date, cents)
		txn.Currency = currency
		_, err := txns.Create(ctx, txn)
		require.NoError(t, err)
	}
	add(food.ID, "USD", 10000, core.NewDate(2026, 3, 2))
	add(food.ID, "EUR", 5000, core.NewDate(2026, 3, 3))
	add(food.ID, "JPY", 90000, core.NewDate(2026, 3, 4))
	add(food.ID, "USD", 7777, core.NewDate(2026, 4, 2))
	add(travel.ID, "USD", 40000, core.NewDate(2026, 3, 2))

	svc := NewBudgetService(repo, staticConverter{"EUR": 1.1})
	b, err := svc.Create(ctx, core.Budget{
		CategoryID: food.ID,
		Amount:     core.Money{Cents: 50000},
		Currency:   "usd",
		Period:     core.BudgetMonthly,
		StartDate:  core.NewDate(2026, 3, 1),
		EndDate:    core.NewDate(2026, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency)

	p, err := svc.Progress(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15500), p.Spent.Cents)
	assert.Equal(t, int64(34500), p.Remaining.Cents)
	assert.Equal(t, 31.0, p.Percentage)
	assert.Equal(t, []string{"JPY"}, p.MissingRates)
}

func TestBudgetService_Validation(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	cat := mustCategory(t, repo, "Food", core.Expense)
	svc := NewBudgetService(repo, nil)

	valid := core.Budget{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: 100},
		Period:     core.BudgetMonthly,
		StartDate:  core.NewDate(2026, 3, 1),
		EndDate:    core.NewDate(2026, 3, 31),
	}

	bad := valid
	bad.EndDate = valid.StartDate
	_, err := svc.Create(ctx, bad)
	assert.ErrorIs(t, err, core.ErrValidation)

	bad = valid
	bad.Period = "weekly"
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, core.ErrValidation)

	bad = valid
	bad.CategoryID = "missing"
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, core.ErrNotFound)

	created, err := svc.Create(ctx, valid)
	require.NoError(t, err)

	_, err = svc.Create(ctx, valid)
	assert.ErrorIs(t, err, core.ErrConflict)

	amount := core.Money{Cents: 250}
	updated, err := svc.Update(ctx, created.ID, BudgetPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.Amount.Cents)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(5, 0))
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 150.0, percentage(3, 2))
}
