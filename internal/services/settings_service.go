package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// Setting keys read by the scheduler.
const (
	SettingRecurringHour      = "recurring_task_hour"
	SettingRecurringMinute    = "recurring_task_minute"
	SettingExchangeRateHour   = "exchange_rate_task_hour"
	SettingExchangeRateMinute = "exchange_rate_task_minute"
)

type SettingsStore interface {
	ListSettings(ctx context.Context) ([]core.Setting, error)
	GetSetting(ctx context.Context, key string) (core.Setting, error)
	UpdateSetting(ctx context.Context, key, value string) (core.Setting, error)
}

type SettingsService struct {
	store SettingsStore
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) List(ctx context.Context) ([]core.Setting, error) {
	items, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	if items == nil {
		items = []core.Setting{}
	}
	return items, nil
}

func (s *SettingsService) Get(ctx context.Context, key string) (core.Setting, error) {
	return s.store.GetSetting(ctx, key)
}

// Update stores value for an existing key. Schedule keys must hold a valid
// hour (0-23) or minute (0-59).
func (s *SettingsService) Update(ctx context.Context, key, value string) (core.Setting, error) {
	value = strings.TrimSpace(value)
	if err := validateSetting(key, value); err != nil {
		return core.Setting{}, err
	}
	updated, err := s.store.UpdateSetting(ctx, key, value)
	if err != nil {
		return core.Setting{}, err
	}
	slog.InfoContext(ctx, "Updated setting", "key", key, "value", value)
	return updated, nil
}

func validateSetting(key, value string) error {
	limit := -1
	switch {
	case strings.HasSuffix(key, "_hour"):
		limit = 23
	case strings.HasSuffix(key, "_minute"):
		limit = 59
	}
	if limit < 0 {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > limit {
		return core.Invalid("value", "%s must be an integer between 0 and %d", key, limit)
	}
	return nil
}

// TimeOfDay reads an hour/minute pair, falling back to the given defaults
// when a key is missing or malformed.
func (s *SettingsService) TimeOfDay(ctx context.Context, hourKey, minuteKey string, defHour, defMinute int) (int, int) {
	return s.intSetting(ctx, hourKey, defHour, 23), s.intSetting(ctx, minuteKey, defMinute, 59)
}

func (s *SettingsService) intSetting(ctx context.Context, key string, def, limit int) int {
	st, err := s.store.GetSetting(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Setting not available, using default", "key", key, "default", def, "error", err)
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(st.Value))
	if err != nil || n < 0 || n > limit {
		slog.WarnContext(ctx, "Invalid setting value, using default", "key", key, "value", st.Value, "default", def)
		return def
	}
	return n
}
