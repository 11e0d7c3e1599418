package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
)

// RateStore is the exchange-rate storage used by RateService.
type RateStore interface {
	ListActiveCurrencies(ctx context.Context) ([]core.Currency, error)
	SaveExchangeRates(ctx context.Context, rates []core.ExchangeRate) (int, error)
	GetExchangeRate(ctx context.Context, from, to string, date core.Date) (core.ExchangeRate, error)
	LatestExchangeRate(ctx context.Context, from, to string, onOrBefore *core.Date) (core.ExchangeRate, error)
}

// RateProvider fetches current rates quoted against base.
type RateProvider interface {
	Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// RateService answers "what was FROM worth in TO on this day" from stored
// rates, and refreshes them from an external provider.
type RateService struct {
	store    RateStore
	provider RateProvider
	cache    *cache.Cache
	group    singleflight.Group
	now      Clock
}

// NewRateService wires the service. provider may be nil, in which case
// RefreshRates fails.
func NewRateService(store RateStore, provider RateProvider, ttl time.Duration) *RateService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RateService{
		store:    store,
		provider: provider,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (s *RateService) WithClock(c Clock) *RateService {
	s.now = c
	return s
}

func rateKey(from, to string, date core.Date) string {
	return fmt.Sprintf("rate-%s-%s-%s", from, to, date)
}

// GetRate returns the multiplier converting from into to on date.
//
// Lookup order: cache, the exact day, the latest rate on or before the day,
// the latest rate overall, then the same three against the inverse pair.
// Concurrent misses for the same key share one database lookup.
func (s *RateService) GetRate(ctx context.Context, from, to string, date core.Date) (decimal.Decimal, error) {
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := rateKey(from, to, date)
	if v, found := s.cache.Get(key); found {
		return v.(decimal.Decimal), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		rate, err := s.lookup(ctx, from, to, date)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, rate)
		return rate, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

func (s *RateService) lookup(ctx context.Context, from, to string, date core.Date) (decimal.Decimal, error) {
	rate, err := s.lookupDirect(ctx, from, to, date)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return decimal.Decimal{}, err
	}

	inverse, err := s.lookupDirect(ctx, to, from, date)
	if err == nil && inverse.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse, 10), nil
	}
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return decimal.Decimal{}, err
	}
	return decimal.Decimal{}, fmt.Errorf("exchange rate %s->%s on %s: %w", from, to, date, core.ErrNotFound)
}

func (s *RateService) lookupDirect(ctx context.Context, from, to string, date core.Date) (decimal.Decimal, error) {
	steps := []func() (core.ExchangeRate, error){
		func() (core.ExchangeRate, error) { return s.store.GetExchangeRate(ctx, from, to, date) },
		func() (core.ExchangeRate, error) { return s.store.LatestExchangeRate(ctx, from, to, &date) },
		func() (core.ExchangeRate, error) { return s.store.LatestExchangeRate(ctx, from, to, nil) },
	}
	for _, step := range steps {
		r, err := step()
		if err == nil {
			return r.Rate, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return decimal.Decimal{}, err
		}
	}
	return decimal.Decimal{}, core.ErrNotFound
}

// Convert converts amount at the rate valid on date, rounding half away from
// zero to whole cents.
func (s *RateService) Convert(ctx context.Context, amount core.Money, from, to string, date core.Date) (core.Money, error) {
	rate, err := s.GetRate(ctx, from, to, date)
	if err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromDecimal(amount.Decimal().Mul(rate)), nil
}

func (s *RateService) Currencies(ctx context.Context) ([]core.Currency, error) {
	return s.store.ListActiveCurrencies(ctx)
}

// RefreshRates pulls the latest rates for base and stores one rate per active
// currency for today. The lookup cache is flushed afterwards.
func (s *RateService) RefreshRates(ctx context.Context, base string) (core.RatesRefreshResult, error) {
	base = core.NormalizeCurrency(base)
	if base == "" {
		base = core.DefaultCurrency
	}
	if !core.IsSupportedCurrency(base) {
		return core.RatesRefreshResult{}, core.Invalid("base", "unsupported currency %q", base)
	}
	if s.provider == nil {
		return core.RatesRefreshResult{}, errors.New("no exchange rate provider configured")
	}

	quoted, err := s.provider.Latest(ctx, base)
	if err != nil {
		return core.RatesRefreshResult{}, fmt.Errorf("fetch latest rates: %w", err)
	}

	currencies, err := s.store.ListActiveCurrencies(ctx)
	if err != nil {
		return core.RatesRefreshResult{}, fmt.Errorf("list currencies: %w", err)
	}

	today := s.now.today()
	var rates []core.ExchangeRate
	for _, c := range currencies {
		if c.Code == base {
			continue
		}
		r, ok := quoted[c.Code]
		if !ok || !r.IsPositive() {
			continue
		}
		rates = append(rates, core.ExchangeRate{FromCurrency: base, ToCurrency: c.Code, Rate: r, Date: today})
	}

	updated, err := s.store.SaveExchangeRates(ctx, rates)
	if err != nil {
		return core.RatesRefreshResult{}, fmt.Errorf("save exchange rates: %w", err)
	}
	s.cache.Flush()

	slog.InfoContext(ctx, "Refreshed exchange rates",
		"base", base,
		"quoted", len(quoted),
		"updated", updated,
		"date", today.String())

	return core.RatesRefreshResult{Success: true, UpdatedCount: updated, Date: today, Base: base}, nil
}
