package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
)

// ScheduledJob runs once a day at a time of day read from app_settings.
type ScheduledJob struct {
	Name          string
	HourKey       string
	MinuteKey     string
	DefaultHour   int
	DefaultMinute int
	Run           func(ctx context.Context, date core.Date) error
}

// Scheduler fires daily jobs. It checks every tick whether a job's time has
// passed today and it has not run yet; a failed run is retried on the next
// tick. Last-run state is kept in memory, so a restart may re-run a job the
// same day. Jobs are expected to be idempotent.
type Scheduler struct {
	settings *SettingsService
	jobs     []ScheduledJob
	tick     time.Duration
	timeout  time.Duration
	now      Clock

	mu      sync.Mutex
	lastRun map[string]core.Date
}

func NewScheduler(settings *SettingsService, tick, timeout time.Duration, jobs ...ScheduledJob) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		settings: settings,
		jobs:     jobs,
		tick:     tick,
		timeout:  timeout,
		lastRun:  make(map[string]core.Date),
	}
}

func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.now = c
	return s
}

func (s *Scheduler) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Scheduler started", "tick", s.tick, "jobs", len(s.jobs))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job that is due and returns how many ran successfully.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock()
	today := core.DateOf(now)

	ran := 0
	for _, job := range s.jobs {
		if s.ranOn(job.Name, today) {
			continue
		}
		hour, minute := s.settings.TimeOfDay(ctx, job.HourKey, job.MinuteKey, job.DefaultHour, job.DefaultMinute)
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if now.Before(at) {
			continue
		}

		if s.runJob(ctx, job, today) {
			s.markRun(job.Name, today)
			ran++
		}
	}
	return ran
}

func (s *Scheduler) runJob(ctx context.Context, job ScheduledJob, today core.Date) bool {
	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	slog.InfoContext(ctx, "Running scheduled job", "job", job.Name, "date", today.String())
	if err := job.Run(jobCtx, today); err != nil {
		slog.ErrorContext(ctx, "Scheduled job failed, will retry",
			"job", job.Name,
			"error", err,
			"duration", time.Since(started))
		return false
	}
	slog.InfoContext(ctx, "Scheduled job finished", "job", job.Name, "duration", time.Since(started))
	return true
}

func (s *Scheduler) ranOn(name string, day core.Date) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[name]
	return ok && !last.Before(day)
}

func (s *Scheduler) markRun(name string, day core.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[name] = day
}

// RecurringJob materializes due recurring transactions.
func RecurringJob(p *RecurringProcessor) ScheduledJob {
	return ScheduledJob{
		Name:      "recurring_transactions",
		HourKey:   SettingRecurringHour,
		MinuteKey: SettingRecurringMinute,
		Run: func(ctx context.Context, date core.Date) error {
			_, err := p.ProcessDue(ctx, date)
			return err
		},
	}
}

// ExchangeRateJob refreshes exchange rates for base.
func ExchangeRateJob(r *RateService, base string) ScheduledJob {
	return ScheduledJob{
		Name:        "exchange_rates",
		HourKey:     SettingExchangeRateHour,
		MinuteKey:   SettingExchangeRateMinute,
		DefaultHour: 1,
		Run: func(ctx context.Context, _ core.Date) error {
			_, err := r.RefreshRates(ctx, base)
			return err
		},
	}
}
