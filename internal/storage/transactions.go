package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

const transactionSelect = `
	SELECT t.id, t.amount_cents, t.currency, t.category_id, COALESCE(c.name, ''), t.description,
	       t.transaction_date, t.type, t.is_recurring, t.recurring_frequency, t.recurring_interval,
	       t.recurring_template_id, t.created_at, t.updated_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ, date            string
		freq, templateID     sql.NullString
		interval             sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Amount.Cents, &t.Currency, &t.CategoryID, &t.CategoryName, &t.Description,
		&date, &typ, &t.IsRecurring, &freq, &interval, &templateID, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.TransactionDate, err = parseDate(date); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	if freq.Valid {
		t.RecurringPattern = &core.RecurringPattern{Frequency: core.Frequency(freq.String), Interval: int(interval.Int64)}
	}
	t.RecurringTemplateID = stringPtr(templateID)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func patternColumns(p *core.RecurringPattern) (sql.NullString, sql.NullInt64) {
	if p == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: string(p.Frequency), Valid: true}, sql.NullInt64{Int64: int64(p.Interval), Valid: true}
}

// CreateTransaction persists t. It fails with ErrNotFound when the category
// does not exist.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = insertTransaction(ctx, tx, t)
		return err
	})
	return out, err
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) (core.Transaction, error) {
	cat, err := getCategory(ctx, tx, t.CategoryID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	ts := utcNow()
	t.CreatedAt, t.UpdatedAt = ts, ts
	t.CategoryName = cat.Name
	freq, interval := patternColumns(t.RecurringPattern)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, amount_cents, currency, category_id, description, transaction_date, type,
			is_recurring, recurring_frequency, recurring_interval, recurring_template_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.Cents, t.Currency, t.CategoryID, t.Description, t.TransactionDate.String(), string(t.Type),
		boolToInt(t.IsRecurring), freq, interval, nullableString(t.RecurringTemplateID), formatTime(ts), formatTime(ts))
	if err != nil {
		return core.Transaction{}, wrapErr("insert transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return getTransaction(ctx, r.db, id)
}

func getTransaction(ctx context.Context, q queryer, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return core.Transaction{}, wrapErr(fmt.Sprintf("get transaction %s", id), err)
	}
	return t, nil
}

func transactionWhere(f core.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.StartDate != nil {
		conds = append(conds, "t.transaction_date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		conds = append(conds, "t.transaction_date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.CategoryID != "" {
		conds = append(conds, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.MinAmount != nil {
		conds = append(conds, "t.amount_cents >= ?")
		args = append(args, f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		conds = append(conds, "t.amount_cents <= ?")
		args = append(args, f.MaxAmount.Cents)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns the page of transactions matching f and the total
// number of matches. A zero PageSize returns all matches.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error) {
	where, args := transactionWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("count transactions", err)
	}

	query := transactionSelect + where + ` ORDER BY t.transaction_date DESC, t.created_at DESC`
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapErr("list transactions", err)
	}
	defer rows.Close()

	items := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, wrapErr("scan transaction", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapErr("list transactions", err)
	}
	return items, total, nil
}

// TransactionsInRange returns every transaction dated within [start, end].
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	items, _, err := r.ListTransactions(ctx, core.TransactionFilter{StartDate: &start, EndDate: &end})
	return items, err
}

// UpdateTransaction overwrites the mutable fields of t.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = updateTransaction(ctx, tx, t)
		return err
	})
	return out, err
}

func updateTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) (core.Transaction, error) {
	if _, err := getCategory(ctx, tx, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	freq, interval := patternColumns(t.RecurringPattern)
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET amount_cents = ?, currency = ?, category_id = ?, description = ?,
			transaction_date = ?, type = ?, is_recurring = ?, recurring_frequency = ?, recurring_interval = ?,
			recurring_template_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Amount.Cents, t.Currency, t.CategoryID, t.Description, t.TransactionDate.String(), string(t.Type),
		boolToInt(t.IsRecurring), freq, interval, nullableString(t.RecurringTemplateID), formatTime(utcNow()), t.ID)
	if err != nil {
		return core.Transaction{}, wrapErr("update transaction", err)
	}
	if err := expectOneRow(res, "update transaction", t.ID); err != nil {
		return core.Transaction{}, err
	}
	return getTransaction(ctx, tx, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete transaction", err)
	}
	return expectOneRow(res, "delete transaction", id)
}
