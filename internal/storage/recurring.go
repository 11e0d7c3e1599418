package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

const templateColumns = `id, name, amount_cents, currency, category_id, description, type, frequency, interval,
	start_date, end_date, next_occurrence, is_active, source_transaction_id, version, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (core.RecurringTemplate, error) {
	var (
		rt                         core.RecurringTemplate
		description, endDate       sql.NullString
		source                     sql.NullString
		typ, freq, startDate, next string
		createdAt, updatedAt       string
	)
	err := row.Scan(&rt.ID, &rt.Name, &rt.Amount.Cents, &rt.Currency, &rt.CategoryID, &description, &typ, &freq,
		&rt.Interval, &startDate, &endDate, &next, &rt.IsActive, &source, &rt.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	rt.Description = stringPtr(description)
	rt.SourceTransactionID = stringPtr(source)
	rt.Type = core.TransactionType(typ)
	rt.Frequency = core.Frequency(freq)
	if rt.StartDate, err = parseDate(startDate); err != nil {
		return core.RecurringTemplate{}, err
	}
	if rt.NextOccurrence, err = parseDate(next); err != nil {
		return core.RecurringTemplate{}, err
	}
	if endDate.Valid {
		end, err := parseDate(endDate.String)
		if err != nil {
			return core.RecurringTemplate{}, err
		}
		rt.EndDate = &end
	}
	rt.CreatedAt = parseTime(createdAt)
	rt.UpdatedAt = parseTime(updatedAt)
	return rt, nil
}

func queryTemplates(ctx context.Context, q queryer, query string, args ...any) ([]core.RecurringTemplate, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query recurring transactions", err)
	}
	defer rows.Close()

	out := []core.RecurringTemplate{}
	for rows.Next() {
		rt, err := scanTemplate(rows)
		if err != nil {
			return nil, wrapErr("scan recurring transaction", err)
		}
		out = append(out, rt)
	}
	return out, wrapErr("query recurring transactions", rows.Err())
}

func insertTemplate(ctx context.Context, tx *sql.Tx, rt core.RecurringTemplate) (core.RecurringTemplate, error) {
	if _, err := getCategory(ctx, tx, rt.CategoryID); err != nil {
		return core.RecurringTemplate{}, err
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	ts := utcNow()
	rt.CreatedAt, rt.UpdatedAt = ts, ts
	rt.Version = 1
	_, err := tx.ExecContext(ctx, `INSERT INTO recurring_transactions (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.Name, rt.Amount.Cents, rt.Currency, rt.CategoryID, nullableString(rt.Description), string(rt.Type),
		string(rt.Frequency), rt.Interval, rt.StartDate.String(), nullableDate(rt.EndDate), rt.NextOccurrence.String(),
		boolToInt(rt.IsActive), nullableString(rt.SourceTransactionID), rt.Version, formatTime(ts), formatTime(ts))
	if err != nil {
		return core.RecurringTemplate{}, wrapErr("insert recurring transaction", err)
	}
	return rt, nil
}

// CreateRecurringTemplate persists a new template. The category must exist.
func (r *SQLiteRepository) CreateRecurringTemplate(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error) {
	var out core.RecurringTemplate
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = insertTemplate(ctx, tx, rt)
		return err
	})
	return out, err
}

// CreateTemplateForTransaction inserts rt as the template backing
// transaction txnID and points the transaction at it in one unit of work.
// A previous link, such as the template that produced the transaction, is
// replaced. A transaction backs at most one template; a second attempt fails
// with ErrConflict.
func (r *SQLiteRepository) CreateTemplateForTransaction(ctx context.Context, rt core.RecurringTemplate, txnID string) (core.RecurringTemplate, error) {
	var out core.RecurringTemplate
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = insertBackingTemplate(ctx, tx, rt, txnID)
		return err
	})
	return out, err
}

// CreateRecurringTransaction inserts a transaction together with the template
// backing it.
func (r *SQLiteRepository) CreateRecurringTransaction(ctx context.Context, t core.Transaction, rt core.RecurringTemplate) (core.Transaction, core.RecurringTemplate, error) {
	var (
		created  core.Transaction
		template core.RecurringTemplate
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t.RecurringTemplateID = nil
		if created, err = insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		if template, err = insertBackingTemplate(ctx, tx, rt, created.ID); err != nil {
			return err
		}
		created.RecurringTemplateID = &template.ID
		return nil
	})
	if err != nil {
		return core.Transaction{}, core.RecurringTemplate{}, err
	}
	return created, template, nil
}

func insertBackingTemplate(ctx context.Context, tx *sql.Tx, rt core.RecurringTemplate, txnID string) (core.RecurringTemplate, error) {
	rt.SourceTransactionID = &txnID
	out, err := insertTemplate(ctx, tx, rt)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.RecurringTemplate{}, fmt.Errorf("transaction %s already backs a template: %w", txnID, core.ErrConflict)
		}
		return core.RecurringTemplate{}, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET recurring_template_id = ?, updated_at = ? WHERE id = ?`,
		out.ID, formatTime(utcNow()), txnID)
	if err != nil {
		return core.RecurringTemplate{}, wrapErr("link transaction to template", err)
	}
	if err := expectOneRow(res, "link transaction to template", txnID); err != nil {
		return core.RecurringTemplate{}, err
	}
	return out, nil
}

// GetTemplateForTransaction returns the template backing transaction txnID.
func (r *SQLiteRepository) GetTemplateForTransaction(ctx context.Context, txnID string) (core.RecurringTemplate, error) {
	rt, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM recurring_transactions WHERE source_transaction_id = ?`, txnID))
	if err != nil {
		return core.RecurringTemplate{}, wrapErr(fmt.Sprintf("get template for transaction %s", txnID), err)
	}
	return rt, nil
}

func (r *SQLiteRepository) GetRecurringTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	rt, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM recurring_transactions WHERE id = ?`, id))
	if err != nil {
		return core.RecurringTemplate{}, wrapErr(fmt.Sprintf("get recurring transaction %s", id), err)
	}
	return rt, nil
}

func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context, skip, limit int) ([]core.RecurringTemplate, error) {
	return queryTemplates(ctx, r.db,
		`SELECT `+templateColumns+` FROM recurring_transactions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, skip)
}

// UpdateRecurringTemplate writes every mutable field and bumps the version.
// It fails with ErrConcurrentUpdate when rt.Version is stale.
func (r *SQLiteRepository) UpdateRecurringTemplate(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCategory(ctx, tx, rt.CategoryID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE recurring_transactions SET name = ?, amount_cents = ?, currency = ?, category_id = ?,
				description = ?, type = ?, frequency = ?, interval = ?, start_date = ?, end_date = ?,
				next_occurrence = ?, is_active = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			rt.Name, rt.Amount.Cents, rt.Currency, rt.CategoryID, nullableString(rt.Description), string(rt.Type),
			string(rt.Frequency), rt.Interval, rt.StartDate.String(), nullableDate(rt.EndDate),
			rt.NextOccurrence.String(), boolToInt(rt.IsActive), formatTime(utcNow()), rt.ID, rt.Version)
		if err != nil {
			return wrapErr("update recurring transaction", err)
		}
		return expectVersionMatch(ctx, tx, res, rt.ID)
	})
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	return r.GetRecurringTemplate(ctx, rt.ID)
}

// expectVersionMatch tells a missing template apart from a stale version.
func expectVersionMatch(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("rows affected", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM recurring_transactions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return wrapErr("check recurring transaction", err)
	}
	if !exists {
		return fmt.Errorf("recurring transaction %s: %w", id, core.ErrNotFound)
	}
	return fmt.Errorf("recurring transaction %s: %w", id, core.ErrConcurrentUpdate)
}

// DeleteRecurringTemplate removes a template. Materialized transactions keep
// their rows; the foreign key sets their reference to NULL.
func (r *SQLiteRepository) DeleteRecurringTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete recurring transaction", err)
	}
	return expectOneRow(res, "delete recurring transaction", id)
}

// FindActiveDue returns the templates due on date: active, cursor on or
// before date, and either open-ended or ending on or after date.
func (r *SQLiteRepository) FindActiveDue(ctx context.Context, date core.Date) ([]core.RecurringTemplate, error) {
	d := date.String()
	return queryTemplates(ctx, r.db, `
		SELECT `+templateColumns+` FROM recurring_transactions
		WHERE is_active = 1 AND next_occurrence <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY next_occurrence, id`, d, d)
}

// MaterializeOccurrence atomically inserts the transaction produced by rt at
// its current cursor and advances the cursor to next. The cursor moves only
// if the template is unchanged since it was read (same version and cursor).
func (r *SQLiteRepository) MaterializeOccurrence(ctx context.Context, rt core.RecurringTemplate, txn core.Transaction, next core.Date) (core.Transaction, error) {
	var created core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE recurring_transactions SET next_occurrence = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND next_occurrence = ? AND is_active = 1`,
			next.String(), formatTime(utcNow()), rt.ID, rt.Version, rt.NextOccurrence.String())
		if err != nil {
			return wrapErr("advance cursor", err)
		}
		if err := expectVersionMatch(ctx, tx, res, rt.ID); err != nil {
			return err
		}
		created, err = insertTransaction(ctx, tx, txn)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Materialized recurring occurrence",
		"recurring_id", rt.ID,
		"transaction_id", created.ID,
		"transaction_date", created.TransactionDate.String(),
		"next_occurrence", next.String())
	return created, nil
}
