package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (allocations have no time component)
// =============================================================================

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsWorkday() bool { return !d.IsWeekend() }
func (d Date) IsZero() bool    { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// Key returns the canonical map key for this date.
func (d Date) Key() string { return d.String() }

// =============================================================================
// DATE RANGES - Inclusive on both ends
// =============================================================================

// Covers reports whether d falls inside [start, end] inclusive.
func (d Date) Covers(start, end Date) bool {
	return start.BeforeOrEqual(d) && d.BeforeOrEqual(end)
}

// DaysBetween returns the number of calendar days from 'from' to 'to'.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// WorkdaysIn returns every working day in [from, to], weekends excluded.
// Saturday/Sunday are non-working unconditionally; there is no
// tenant-configurable workweek at this layer.
func WorkdaysIn(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	var days []Date
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.IsWorkday() {
			days = append(days, d)
		}
	}
	return days
}

// MinDate and MaxDate pick range bounds when building batch query windows.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}
