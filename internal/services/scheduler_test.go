package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestScheduler_RunsOncePerDayAfterConfiguredTime(t *testing.T) {
	settings := NewSettingsService(newRepo(t))
	ctx := context.Background()
	_, err := settings.Update(ctx, SettingRecurringHour, "6")
	require.NoError(t, err)
	_, err = settings.Update(ctx, SettingRecurringMinute, "30")
	require.NoError(t, err)

	var dates []core.Date
	job := ScheduledJob{
		Name:      "recurring",
		HourKey:   SettingRecurringHour,
		MinuteKey: SettingRecurringMinute,
		Run: func(_ context.Context, date core.Date) error {
			dates = append(dates, date)
			return nil
		},
	}
	clock := &stepClock{now: time.Date(2026, 3, 10, 6, 29, 0, 0, time.UTC)}
	s := NewScheduler(settings, time.Minute, time.Minute, job).WithClock(clock.Now)

	assert.Equal(t, 0, s.Tick(ctx))

	clock.now = time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, s.Tick(ctx))

	clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, s.Tick(ctx))

	clock.now = time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, s.Tick(ctx))

	assert.Equal(t, []core.Date{core.NewDate(2026, 3, 10), core.NewDate(2026, 3, 11)}, dates)
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	settings := NewSettingsService(newRepo(t))
	ctx := context.Background()

	attempts := 0
	job := ScheduledJob{
		Name:      "rates",
		HourKey:   SettingExchangeRateHour,
		MinuteKey: SettingExchangeRateMinute,
		Run: func(context.Context, core.Date) error {
			attempts++
			if attempts == 1 {
				return errors.New("provider down")
			}
			return nil
		},
	}
	s := NewScheduler(settings, time.Minute, time.Minute, job).WithClock(fixedClock(2026, 3, 10))

	assert.Equal(t, 0, s.Tick(ctx))
	assert.Equal(t, 1, s.Tick(ctx))
	assert.Equal(t, 0, s.Tick(ctx))
	assert.Equal(t, 2, attempts)
}

func TestScheduler_RecurringJob(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	cat := mustCategory(t, repo, "Apartment", core.Expense)
	_, err := NewRecurringService(repo).Create(ctx, rentTemplate(cat.ID, core.NewDate(2026, 3, 1)))
	require.NoError(t, err)

	s := NewScheduler(NewSettingsService(repo), time.Minute, time.Minute,
		RecurringJob(NewRecurringProcessor(repo, nil))).WithClock(fixedClock(2026, 3, 10))
	assert.Equal(t, 1, s.Tick(ctx))

	_, total, err := repo.ListTransactions(ctx, core.TransactionFilter{CategoryID: cat.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := NewScheduler(NewSettingsService(newRepo(t)), 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
