package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (r *SQLiteRepository) ListActiveCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, name, symbol, is_active, created_at FROM currencies WHERE is_active = 1 ORDER BY code`)
	if err != nil {
		return nil, wrapErr("list currencies", err)
	}
	defer rows.Close()

	out := []core.Currency{}
	for rows.Next() {
		var (
			c         core.Currency
			createdAt string
		)
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.IsActive, &createdAt); err != nil {
			return nil, wrapErr("scan currency", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, wrapErr("list currencies", rows.Err())
}

const rateColumns = `id, from_currency, to_currency, rate, date, created_at`

func scanRate(row interface{ Scan(...any) error }) (core.ExchangeRate, error) {
	var (
		er                    core.ExchangeRate
		rate, date, createdAt string
	)
	if err := row.Scan(&er.ID, &er.FromCurrency, &er.ToCurrency, &rate, &date, &createdAt); err != nil {
		return core.ExchangeRate{}, err
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("%w: corrupt rate %q", core.ErrPersistence, rate)
	}
	er.Rate = d
	if er.Date, err = parseDate(date); err != nil {
		return core.ExchangeRate{}, err
	}
	er.CreatedAt = parseTime(createdAt)
	return er, nil
}

// SaveExchangeRates upserts rates keyed by (from, to, date) in one transaction.
func (r *SQLiteRepository) SaveExchangeRates(ctx context.Context, rates []core.ExchangeRate) (int, error) {
	saved := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, er := range rates {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO exchange_rates (`+rateColumns+`) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (from_currency, to_currency, date) DO UPDATE SET rate = excluded.rate`,
				uuid.NewString(), er.FromCurrency, er.ToCurrency, er.Rate.String(), er.Date.String(), formatTime(utcNow()))
			if err != nil {
				return wrapErr(fmt.Sprintf("save rate %s/%s", er.FromCurrency, er.ToCurrency), err)
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// GetExchangeRate returns the rate stored for exactly date.
func (r *SQLiteRepository) GetExchangeRate(ctx context.Context, from, to string, date core.Date) (core.ExchangeRate, error) {
	er, err := scanRate(r.db.QueryRowContext(ctx,
		`SELECT `+rateColumns+` FROM exchange_rates WHERE from_currency = ? AND to_currency = ? AND date = ?`,
		from, to, date.String()))
	if err != nil {
		return core.ExchangeRate{}, wrapErr(fmt.Sprintf("get rate %s/%s", from, to), err)
	}
	return er, nil
}

// LatestExchangeRate returns the most recent rate for the pair. When onOrBefore
// is set, only rates dated on or before it are considered.
func (r *SQLiteRepository) LatestExchangeRate(ctx context.Context, from, to string, onOrBefore *core.Date) (core.ExchangeRate, error) {
	query := `SELECT ` + rateColumns + ` FROM exchange_rates WHERE from_currency = ? AND to_currency = ?`
	args := []any{from, to}
	if onOrBefore != nil {
		query += ` AND date <= ?`
		args = append(args, onOrBefore.String())
	}
	query += ` ORDER BY date DESC LIMIT 1`

	er, err := scanRate(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.ExchangeRate{}, wrapErr(fmt.Sprintf("latest rate %s/%s", from, to), err)
	}
	return er, nil
}
