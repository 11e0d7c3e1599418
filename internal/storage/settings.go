package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

const settingColumns = `key, value, description, created_at, updated_at`

func scanSetting(row interface{ Scan(...any) error }) (core.Setting, error) {
	var (
		s                    core.Setting
		createdAt, updatedAt string
	)
	if err := row.Scan(&s.Key, &s.Value, &s.Description, &createdAt, &updatedAt); err != nil {
		return core.Setting{}, err
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

func (r *SQLiteRepository) ListSettings(ctx context.Context) ([]core.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+settingColumns+` FROM app_settings ORDER BY key`)
	if err != nil {
		return nil, wrapErr("list settings", err)
	}
	defer rows.Close()

	out := []core.Setting{}
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, wrapErr("scan setting", err)
		}
		out = append(out, s)
	}
	return out, wrapErr("list settings", rows.Err())
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (core.Setting, error) {
	s, err := scanSetting(r.db.QueryRowContext(ctx, `SELECT `+settingColumns+` FROM app_settings WHERE key = ?`, key))
	if err != nil {
		return core.Setting{}, wrapErr(fmt.Sprintf("get setting %q", key), err)
	}
	return s, nil
}

// UpdateSetting changes the value of an existing key.
func (r *SQLiteRepository) UpdateSetting(ctx context.Context, key, value string) (core.Setting, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE app_settings SET value = ?, updated_at = ? WHERE key = ?`, value, formatTime(utcNow()), key)
	if err != nil {
		return core.Setting{}, wrapErr("update setting", err)
	}
	if err := expectOneRow(res, "update setting", key); err != nil {
		return core.Setting{}, err
	}
	return r.GetSetting(ctx, key)
}
