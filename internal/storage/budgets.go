package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

const budgetColumns = `id, category_id, amount_cents, currency, period, start_date, end_date, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                    core.Budget
		period, start, end   string
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.CategoryID, &b.Amount.Cents, &b.Currency, &period, &start, &end, &createdAt, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	if b.StartDate, err = parseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseDate(end); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// CreateBudget fails with ErrConflict when a budget already exists for the
// same category, period and start date.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCategory(ctx, tx, b.CategoryID); err != nil {
			return err
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		ts := utcNow()
		b.CreatedAt, b.UpdatedAt = ts, ts
		_, err := tx.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.CategoryID, b.Amount.Cents, b.Currency, string(b.Period), b.StartDate.String(), b.EndDate.String(),
			formatTime(ts), formatTime(ts))
		return wrapErr("create budget", err)
	})
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return core.Budget{}, wrapErr(fmt.Sprintf("get budget %s", id), err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY start_date DESC, id`)
	if err != nil {
		return nil, wrapErr("list budgets", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, wrapErr("scan budget", err)
		}
		out = append(out, b)
	}
	return out, wrapErr("list budgets", rows.Err())
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCategory(ctx, tx, b.CategoryID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE budgets SET category_id = ?, amount_cents = ?, currency = ?, period = ?, start_date = ?,
				end_date = ?, updated_at = ?
			WHERE id = ?`,
			b.CategoryID, b.Amount.Cents, b.Currency, string(b.Period), b.StartDate.String(), b.EndDate.String(),
			formatTime(utcNow()), b.ID)
		if err != nil {
			return wrapErr("update budget", err)
		}
		return expectOneRow(res, "update budget", b.ID)
	})
	if err != nil {
		return core.Budget{}, err
	}
	return r.GetBudget(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete budget", err)
	}
	return expectOneRow(res, "delete budget", id)
}
