package core

import (
	"fmt"
	"sync"
	"time"
)

// Stepper is the strategy interface for advancing a recurrence cursor.
// Each implementation encapsulates the calendar arithmetic for one frequency.
type Stepper interface {
	// Step returns the date n units after d. n is always >= 1.
	Step(d Date, n int) Date
}

type DailyStepper struct{}

func (DailyStepper) Step(d Date, n int) Date { return d.AddDays(n) }

type WeeklyStepper struct{}

func (WeeklyStepper) Step(d Date, n int) Date { return d.AddDays(7 * n) }

// MonthlyStepper shifts by calendar months, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 28 or Feb 29).
type MonthlyStepper struct{}

func (MonthlyStepper) Step(d Date, n int) Date { return addMonthsClamped(d, n) }

// YearlyStepper shifts by calendar years; Feb 29 becomes Feb 28 in non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Step(d Date, n int) Date { return addMonthsClamped(d, 12*n) }

// steppers maps frequencies to their strategies.
var (
	steppersMu sync.RWMutex
	steppers   = map[Frequency]Stepper{
		Daily:   DailyStepper{},
		Weekly:  WeeklyStepper{},
		Monthly: MonthlyStepper{},
		Yearly:  YearlyStepper{},
	}
)

// GetStepper returns the stepper registered for a frequency.
func GetStepper(f Frequency) (Stepper, error) {
	steppersMu.RLock()
	s, ok := steppers[f]
	steppersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	return s, nil
}

// RegisterStepper registers a stepper for a custom frequency. Once
// registered, the frequency is accepted by template and pattern validation.
func RegisterStepper(f Frequency, s Stepper) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	steppers[f] = s
}

func unregisterStepper(f Frequency) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	delete(steppers, f)
}

// NextOccurrence returns the date one period of interval units after d.
// The result is always strictly after d.
func NextOccurrence(d Date, f Frequency, interval int) (Date, error) {
	s, err := GetStepper(f)
	if err != nil {
		return Date{}, err
	}
	if interval < 1 {
		return Date{}, ErrInvalidInterval
	}
	return s.Step(d, interval), nil
}

// OccurrenceAfter returns the first date of the series start, start+1 period,
// start+2 periods, ... that is strictly after reference. Every candidate is
// computed from start so month-end anchors do not drift.
func OccurrenceAfter(start Date, f Frequency, interval int, reference Date) (Date, error) {
	s, err := GetStepper(f)
	if err != nil {
		return Date{}, err
	}
	if interval < 1 {
		return Date{}, ErrInvalidInterval
	}
	if start.After(reference) {
		return start, nil
	}
	// Skip most of the gap for fixed-length frequencies.
	k := 1
	switch f {
	case Daily, Weekly:
		unit := interval
		if f == Weekly {
			unit = 7 * interval
		}
		days := int(reference.Sub(start.Time).Hours() / 24)
		if days/unit > 1 {
			k = days / unit
		}
	}
	for {
		next := s.Step(start, k*interval)
		if next.After(reference) {
			return next, nil
		}
		k++
	}
}

// addMonthsClamped adds n calendar months to d. Unlike time.AddDate it never
// overflows into the following month.
func addMonthsClamped(d Date, n int) Date {
	y, m, day := d.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := total % 12
	if tm < 0 {
		tm += 12
		ty--
	}
	target := time.Month(tm + 1)
	if last := daysIn(ty, target); day > last {
		day = last
	}
	return NewDate(ty, int(target), day)
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
