package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"fintrack/internal/core"
)

// BudgetStore is the storage used by BudgetService.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error)
}

type BudgetPatch struct {
	CategoryID *string            `json:"category_id"`
	Amount     *core.Money        `json:"amount"`
	Currency   *string            `json:"currency"`
	Period     *core.BudgetPeriod `json:"period"`
	StartDate  *core.Date         `json:"start_date"`
	EndDate    *core.Date         `json:"end_date"`
}

type BudgetService struct {
	store BudgetStore
	rates Converter
}

func NewBudgetService(store BudgetStore, rates Converter) *BudgetService {
	return &BudgetService{store: store, rates: rates}
}

func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = ""
	b.Currency = core.NormalizeCurrency(b.Currency)
	if b.Currency == "" {
		b.Currency = core.DefaultCurrency
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

func (s *BudgetService) Get(ctx context.Context, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *BudgetService) List(ctx context.Context) ([]core.Budget, error) {
	items, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if items == nil {
		items = []core.Budget{}
	}
	return items, nil
}

func (s *BudgetService) Update(ctx context.Context, id string, patch BudgetPatch) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if patch.CategoryID != nil {
		b.CategoryID = *patch.CategoryID
	}
	if patch.Amount != nil {
		b.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		b.Currency = core.NormalizeCurrency(*patch.Currency)
	}
	if patch.Period != nil {
		b.Period = *patch.Period
	}
	if patch.StartDate != nil {
		b.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		b.EndDate = *patch.EndDate
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	updated, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", id, err)
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteBudget(ctx, id)
}

// Progress sums the category's expenses inside the budget window, converted
// into the budget currency at each transaction's date. Transactions whose
// currency has no known rate are left out and their currency is reported.
func (s *BudgetService) Progress(ctx context.Context, id string) (core.BudgetProgress, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.BudgetProgress{}, err
	}

	txns, _, err := s.store.ListTransactions(ctx, core.TransactionFilter{
		StartDate:  &b.StartDate,
		EndDate:    &b.EndDate,
		CategoryID: b.CategoryID,
		Type:       core.Expense,
	})
	if err != nil {
		return core.BudgetProgress{}, fmt.Errorf("load budget transactions: %w", err)
	}

	var spent core.Money
	missing := map[string]struct{}{}
	for _, t := range txns {
		amount, err := convertAmount(ctx, s.rates, t, b.Currency)
		if errors.Is(err, core.ErrNotFound) {
			missing[t.Currency] = struct{}{}
			continue
		}
		if err != nil {
			return core.BudgetProgress{}, err
		}
		spent = spent.Add(amount)
	}

	progress := core.BudgetProgress{
		BudgetID:     b.ID,
		Amount:       b.Amount,
		Spent:        spent,
		Remaining:    b.Amount.Sub(spent),
		Currency:     b.Currency,
		MissingRates: sortedKeys(missing),
	}
	if b.Amount.Cents > 0 {
		progress.Percentage = percentage(spent.Cents, b.Amount.Cents)
	}
	return progress, nil
}

// convertAmount converts t.Amount into currency. Without a converter only
// same-currency amounts can be used.
func convertAmount(ctx context.Context, rates Converter, t core.Transaction, currency string) (core.Money, error) {
	if t.Currency == currency {
		return t.Amount, nil
	}
	if rates == nil {
		return core.Money{}, fmt.Errorf("exchange rate %s->%s: %w", t.Currency, currency, core.ErrNotFound)
	}
	return rates.Convert(ctx, t.Amount, t.Currency, currency, t.TransactionDate)
}

// percentage returns part/total*100 rounded to two decimals.
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	v := float64(part) * 10000 / float64(total)
	return float64(int64(v+0.5)) / 100
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
