package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/planner/engine"
)

func TestDate_ParseAndString(t *testing.T) {
	d, err := engine.ParseDate("2026-06-03")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-03", d.String())
	assert.True(t, d.Equal(date(2026, time.June, 3)))

	_, err = engine.ParseDate("03.06.2026")
	assert.Error(t, err)
}

func TestDate_ComparisonIgnoresTimeOfDay(t *testing.T) {
	morning := engine.DateOf(time.Date(2026, time.June, 3, 8, 15, 0, 0, time.UTC))
	evening := engine.DateOf(time.Date(2026, time.June, 3, 22, 45, 0, 0, time.UTC))

	assert.True(t, morning.Equal(evening))
	assert.False(t, morning.Before(evening))
	assert.False(t, morning.After(evening))
	assert.True(t, morning.BeforeOrEqual(evening))
	assert.True(t, morning.AfterOrEqual(evening))
}

func TestDate_Covers(t *testing.T) {
	start := date(2026, time.June, 1)
	end := date(2026, time.June, 5)

	assert.True(t, date(2026, time.June, 1).Covers(start, end), "inclusive start")
	assert.True(t, date(2026, time.June, 5).Covers(start, end), "inclusive end")
	assert.True(t, date(2026, time.June, 3).Covers(start, end))
	assert.False(t, date(2026, time.May, 31).Covers(start, end))
	assert.False(t, date(2026, time.June, 6).Covers(start, end))
}

func TestDate_Weekend(t *testing.T) {
	assert.False(t, date(2026, time.June, 5).IsWeekend()) // Friday
	assert.True(t, date(2026, time.June, 6).IsWeekend())  // Saturday
	assert.True(t, date(2026, time.June, 7).IsWeekend())  // Sunday
	assert.True(t, date(2026, time.June, 8).IsWorkday())  // Monday
}

func TestWorkdaysIn(t *testing.T) {
	// Mon Jun 1 through Sun Jun 14: two full weeks, ten workdays.
	days := engine.WorkdaysIn(date(2026, time.June, 1), date(2026, time.June, 14))
	require.Len(t, days, 10)
	assert.True(t, days[0].Equal(date(2026, time.June, 1)))
	assert.True(t, days[4].Equal(date(2026, time.June, 5)))
	assert.True(t, days[5].Equal(date(2026, time.June, 8)), "weekend skipped")
	assert.True(t, days[9].Equal(date(2026, time.June, 12)))

	assert.Empty(t, engine.WorkdaysIn(date(2026, time.June, 6), date(2026, time.June, 7)))
	assert.Empty(t, engine.WorkdaysIn(date(2026, time.June, 5), date(2026, time.June, 1)), "inverted range")
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, engine.DaysBetween(date(2026, time.June, 1), date(2026, time.June, 1)))
	assert.Equal(t, 4, engine.DaysBetween(date(2026, time.June, 1), date(2026, time.June, 5)))
	assert.Equal(t, -4, engine.DaysBetween(date(2026, time.June, 5), date(2026, time.June, 1)))
}

func TestMinMaxDate(t *testing.T) {
	a := date(2026, time.June, 1)
	b := date(2026, time.June, 5)

	assert.True(t, engine.MinDate(a, b).Equal(a))
	assert.True(t, engine.MinDate(b, a).Equal(a))
	assert.True(t, engine.MaxDate(a, b).Equal(b))
	assert.True(t, engine.MaxDate(a, a).Equal(a))
}
