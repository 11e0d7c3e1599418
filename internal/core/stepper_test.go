package core

import (
	"errors"
	"testing"
)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		from     Date
		freq     Frequency
		interval int
		want     Date
	}{
		{"monthly clamps to non-leap february", NewDate(2026, 1, 31), Monthly, 1, NewDate(2026, 2, 28)},
		{"monthly clamps to leap february", NewDate(2024, 1, 31), Monthly, 1, NewDate(2024, 2, 29)},
		{"monthly plain", NewDate(2026, 2, 19), Monthly, 1, NewDate(2026, 3, 19)},
		{"monthly across year", NewDate(2026, 11, 30), Monthly, 3, NewDate(2027, 2, 28)},
		{"monthly thirty first to thirtieth", NewDate(2026, 3, 31), Monthly, 1, NewDate(2026, 4, 30)},
		{"daily", NewDate(2026, 1, 15), Daily, 3, NewDate(2026, 1, 18)},
		{"daily across month", NewDate(2026, 1, 30), Daily, 5, NewDate(2026, 2, 4)},
		{"weekly", NewDate(2026, 1, 15), Weekly, 2, NewDate(2026, 1, 29)},
		{"yearly leap day", NewDate(2024, 2, 29), Yearly, 1, NewDate(2025, 2, 28)},
		{"yearly leap to leap", NewDate(2024, 2, 29), Yearly, 4, NewDate(2028, 2, 29)},
		{"yearly plain", NewDate(2026, 7, 4), Yearly, 2, NewDate(2028, 7, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.from, tt.freq, tt.interval)
			if err != nil {
				t.Fatalf("NextOccurrence() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%s, %s, %d) = %s, want %s", tt.from, tt.freq, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceAlwaysAdvances(t *testing.T) {
	freqs := []Frequency{Daily, Weekly, Monthly, Yearly}
	start := NewDate(2023, 1, 1)
	for _, f := range freqs {
		for interval := 1; interval <= 13; interval++ {
			for i := 0; i < 800; i++ {
				d := start.AddDays(i)
				got, err := NextOccurrence(d, f, interval)
				if err != nil {
					t.Fatalf("NextOccurrence(%s, %s, %d) error = %v", d, f, interval, err)
				}
				if !got.After(d) {
					t.Fatalf("NextOccurrence(%s, %s, %d) = %s, not after input", d, f, interval, got)
				}
			}
		}
	}
}

func TestNextOccurrenceErrors(t *testing.T) {
	if _, err := NextOccurrence(NewDate(2026, 1, 1), Frequency("hourly"), 1); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("NextOccurrence(hourly) error = %v, want ErrInvalidFrequency", err)
	}
	if _, err := NextOccurrence(NewDate(2026, 1, 1), Monthly, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("NextOccurrence(interval 0) error = %v, want ErrInvalidInterval", err)
	}
}

func TestOccurrenceAfter(t *testing.T) {
	tests := []struct {
		name      string
		start     Date
		freq      Frequency
		interval  int
		reference Date
		want      Date
	}{
		{"start in future is kept", NewDate(2026, 5, 1), Monthly, 1, NewDate(2026, 4, 10), NewDate(2026, 5, 1)},
		{"start equal to reference steps once", NewDate(2026, 4, 10), Monthly, 1, NewDate(2026, 4, 10), NewDate(2026, 5, 10)},
		{"monthly catches up past today", NewDate(2025, 1, 15), Monthly, 1, NewDate(2026, 4, 20), NewDate(2026, 5, 15)},
		{"monthly keeps month-end anchor", NewDate(2026, 1, 31), Monthly, 1, NewDate(2026, 3, 1), NewDate(2026, 3, 31)},
		{"daily large gap", NewDate(2020, 1, 1), Daily, 1, NewDate(2026, 4, 20), NewDate(2026, 4, 21)},
		{"weekly with interval", NewDate(2026, 1, 1), Weekly, 2, NewDate(2026, 1, 29), NewDate(2026, 2, 12)},
		{"yearly", NewDate(2020, 2, 29), Yearly, 1, NewDate(2026, 6, 1), NewDate(2027, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OccurrenceAfter(tt.start, tt.freq, tt.interval, tt.reference)
			if err != nil {
				t.Fatalf("OccurrenceAfter() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("OccurrenceAfter() = %s, want %s", got, tt.want)
			}
			if !got.After(tt.reference) {
				t.Errorf("OccurrenceAfter() = %s, not after %s", got, tt.reference)
			}
		})
	}
}

type fortnightStepper struct{}

func (fortnightStepper) Step(d Date, n int) Date { return d.AddDays(14 * n) }

func TestRegisterStepper(t *testing.T) {
	const fortnightly Frequency = "fortnightly"
	if fortnightly.Valid() {
		t.Fatalf("%s should not be valid before registration", fortnightly)
	}
	RegisterStepper(fortnightly, fortnightStepper{})
	defer unregisterStepper(fortnightly)

	if !fortnightly.Valid() {
		t.Errorf("%s should be valid once registered", fortnightly)
	}
	pattern := RecurringPattern{Frequency: fortnightly, Interval: 1}
	if err := pattern.Validate(); err != nil {
		t.Errorf("RecurringPattern.Validate() error = %v", err)
	}

	got, err := NextOccurrence(NewDate(2026, 1, 1), fortnightly, 1)
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	if want := NewDate(2026, 1, 15); !got.Equal(want) {
		t.Errorf("NextOccurrence() = %s, want %s", got, want)
	}
}
