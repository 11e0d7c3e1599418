package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

const categoryColumns = `id, name, icon, color, type, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c                    core.Category
		typ                  string
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &typ, &createdAt, &updatedAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	ts := utcNow()
	c.CreatedAt, c.UpdatedAt = ts, ts
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Icon, c.Color, string(c.Type), formatTime(ts), formatTime(ts))
	if err != nil {
		return core.Category{}, wrapErr("create category", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return getCategory(ctx, r.db, id)
}

func getCategory(ctx context.Context, q queryer, id string) (core.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, wrapErr(fmt.Sprintf("get category %s", id), err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategoryByName(ctx context.Context, name string, typ core.TransactionType) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? AND type = ?`, name, string(typ)))
	if err != nil {
		return core.Category{}, wrapErr(fmt.Sprintf("get category %q", name), err)
	}
	return c, nil
}

// ListCategories returns every category, optionally restricted to one type.
func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrapErr("scan category", err)
		}
		out = append(out, c)
	}
	return out, wrapErr("list categories", rows.Err())
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.UpdatedAt = utcNow()
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, icon = ?, color = ?, type = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Icon, c.Color, string(c.Type), formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return core.Category{}, wrapErr("update category", err)
	}
	if err := expectOneRow(res, "update category", c.ID); err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, c.ID)
}

// DeleteCategory removes a category. It fails with ErrConflict while
// transactions or templates still reference it.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	var inUse bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE category_id = ?)
		     OR EXISTS (SELECT 1 FROM recurring_transactions WHERE category_id = ?)`, id, id).Scan(&inUse)
	if err != nil {
		return wrapErr("check category usage", err)
	}
	if inUse {
		return fmt.Errorf("delete category %s: %w: category has transactions", id, core.ErrConflict)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete category", err)
	}
	return expectOneRow(res, "delete category", id)
}

func expectOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return nil
}
