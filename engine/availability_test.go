package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/planner/engine"
)

// rawAllocation seeds an allocation straight into the store, bypassing the
// scheduler so planned hours stay exactly as given.
func (f *fixture) rawAllocation(t *testing.T, user engine.UserID, phase engine.PhaseID, d engine.Date, hours float64) engine.Allocation {
	t.Helper()
	a, err := f.mem.Allocations().Create(context.Background(), engine.Allocation{
		TenantID:     testTenant,
		UserID:       &user,
		PhaseID:      phase,
		Date:         d,
		PlannedHours: engine.HoursPtr(hours),
	})
	require.NoError(t, err)
	return a
}

// June 1-5 2026 is a Monday-to-Friday week: 5 workdays, 40 nominal hours.
func juneWeek() (engine.Date, engine.Date) {
	return date(2026, time.June, 1), date(2026, time.June, 5)
}

// =============================================================================
// SHORT-CIRCUITS
// =============================================================================

func TestAnalyzer_EmptyTenant_NoWindowQueries(t *testing.T) {
	// GIVEN: A tenant with no active employees
	// WHEN: Computing the availability context
	// THEN: The empty context comes back and neither date-window query runs

	f := newFixture(t)
	from, to := juneWeek()

	allocBefore := f.allocations.tenantRangeCalls
	absBefore := f.absences.usersRangeCalls

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	assert.Empty(t, tctx.AvailableUsers)
	assert.Empty(t, tctx.OverloadedUsers)
	assert.Empty(t, tctx.Users)
	assert.NotNil(t, tctx.AllocationsByUser)
	assert.NotNil(t, tctx.AbsencesByUser)

	assert.Equal(t, allocBefore, f.allocations.tenantRangeCalls)
	assert.Equal(t, absBefore, f.absences.usersRangeCalls)
}

func TestAnalyzer_WeekendOnlyWindow_NoWindowQueries(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "u1", 40, true)

	allocBefore := f.allocations.tenantRangeCalls
	absBefore := f.absences.usersRangeCalls

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant,
		date(2026, time.June, 6), date(2026, time.June, 7), engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	assert.Empty(t, tctx.Users)
	assert.Empty(t, tctx.AvailableUsers)
	assert.Equal(t, allocBefore, f.allocations.tenantRangeCalls)
	assert.Equal(t, absBefore, f.absences.usersRangeCalls)
}

func TestAnalyzer_InactiveEmployeesExcluded(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "u1", 40, true)
	f.addEmployee(t, "u2", 40, false)
	from, to := juneWeek()

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	require.Len(t, tctx.Users, 1)
	assert.Equal(t, engine.UserID("u1"), tctx.Users[0].ID)
}

// =============================================================================
// BATCHING
// =============================================================================

func TestAnalyzer_TwoQueriesRegardlessOfHeadcount(t *testing.T) {
	// Five employees, still exactly one allocation query and one absence
	// query for the whole tenant.

	f := newFixture(t)
	phase := f.addPhase(t, "p1", date(2026, time.June, 1), date(2026, time.June, 30))
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		user := f.addEmployee(t, id, 40, true)
		f.rawAllocation(t, user, phase, date(2026, time.June, 2), 8)
	}
	from, to := juneWeek()

	allocBefore := f.allocations.tenantRangeCalls
	absBefore := f.absences.usersRangeCalls

	_, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	assert.Equal(t, allocBefore+1, f.allocations.tenantRangeCalls)
	assert.Equal(t, absBefore+1, f.absences.usersRangeCalls)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAnalyzer_OverloadedAt125Percent(t *testing.T) {
	// GIVEN: 50 planned hours against a 40-hour week
	// WHEN: Computing the context
	// THEN: The employee shows 125% utilization, overloaded, with no free
	//       hours left

	f := newFixture(t)
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.June, 1), date(2026, time.June, 30))
	from, to := juneWeek()

	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		f.rawAllocation(t, user, phase, d, 6)
		f.rawAllocation(t, user, phase, d, 4)
	}

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	require.Len(t, tctx.OverloadedUsers, 1)
	ua := tctx.OverloadedUsers[0]
	assert.Equal(t, 125, ua.UtilizationPct)
	assert.True(t, ua.AllocatedHours.Equal(engine.Hours(50)))
	assert.True(t, ua.FreeHours.IsZero())
	assert.Empty(t, ua.AvailableDays)
	assert.Empty(t, tctx.AvailableUsers)
}

func TestAnalyzer_AvailableSortedByFreeHoursDesc(t *testing.T) {
	// u1 is fully free (40h), u2 has three full days booked (16h free),
	// u3 is booked solid (0h free, 100% utilized, not overloaded).

	f := newFixture(t)
	u1 := f.addEmployee(t, "u1", 40, true)
	u2 := f.addEmployee(t, "u2", 40, true)
	u3 := f.addEmployee(t, "u3", 40, true)
	_ = u1
	phase := f.addPhase(t, "p1", date(2026, time.June, 1), date(2026, time.June, 30))
	from, to := juneWeek()

	for _, d := range []engine.Date{date(2026, time.June, 1), date(2026, time.June, 2), date(2026, time.June, 3)} {
		f.rawAllocation(t, u2, phase, d, 8)
	}
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		f.rawAllocation(t, u3, phase, d, 8)
	}

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	require.Len(t, tctx.AvailableUsers, 2)
	assert.Equal(t, engine.UserID("u1"), tctx.AvailableUsers[0].User.ID)
	assert.True(t, tctx.AvailableUsers[0].FreeHours.Equal(engine.Hours(40)))
	assert.Equal(t, engine.UserID("u2"), tctx.AvailableUsers[1].User.ID)
	assert.True(t, tctx.AvailableUsers[1].FreeHours.Equal(engine.Hours(16)))
	assert.Len(t, tctx.AvailableUsers[1].AvailableDays, 2)

	assert.Empty(t, tctx.OverloadedUsers, "100% utilization is not overloaded")
}

func TestAnalyzer_AbsentDaysYieldNoFreeHours(t *testing.T) {
	// An absence covering Monday and Tuesday leaves only three free days.

	f := newFixture(t)
	user := f.addEmployee(t, "u1", 40, true)
	from, to := juneWeek()
	f.addAbsence(t, user, date(2026, time.June, 1), date(2026, time.June, 2), engine.AbsenceVacation)

	tctx, err := f.analyzer.TenantAvailabilityContext(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)

	require.Len(t, tctx.AvailableUsers, 1)
	ua := tctx.AvailableUsers[0]
	assert.True(t, ua.FreeHours.Equal(engine.Hours(24)))
	require.Len(t, ua.AvailableDays, 3)
	assert.True(t, ua.AvailableDays[0].Equal(date(2026, time.June, 3)))
}

func TestAnalyzer_MinAvailableHoursThreshold(t *testing.T) {
	// With a 30-hour threshold an employee holding 24 free hours drops out
	// of the available list but is otherwise unremarkable.

	f := newFixture(t)
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.June, 1), date(2026, time.June, 30))
	from, to := juneWeek()
	f.rawAllocation(t, user, phase, date(2026, time.June, 1), 8)
	f.rawAllocation(t, user, phase, date(2026, time.June, 2), 8)

	available, err := f.analyzer.FindAvailableUsers(context.Background(), testTenant, from, to, engine.Hours(30))
	require.NoError(t, err)
	assert.Empty(t, available)

	available, err = f.analyzer.FindAvailableUsers(context.Background(), testTenant, from, to, engine.DefaultMinAvailableHours)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.True(t, available[0].FreeHours.Equal(engine.Hours(24)))
}

// =============================================================================
// SINGLE-EMPLOYEE VIEW
// =============================================================================

func TestAnalyzer_UserAvailability(t *testing.T) {
	f := newFixture(t)
	user := f.addEmployee(t, "u1", 40, true)
	phase := f.addPhase(t, "p1", date(2026, time.June, 1), date(2026, time.June, 30))
	from, to := juneWeek()
	f.rawAllocation(t, user, phase, date(2026, time.June, 1), 8)
	f.addAbsence(t, user, date(2026, time.June, 5), date(2026, time.June, 5), engine.AbsenceSick)

	ua, err := f.analyzer.UserAvailability(context.Background(), testTenant, user, from, to)
	require.NoError(t, err)

	assert.True(t, ua.AllocatedHours.Equal(engine.Hours(8)))
	// Tue-Thu free; Monday is booked, Friday is absent.
	assert.True(t, ua.FreeHours.Equal(engine.Hours(24)))
	assert.Len(t, ua.AvailableDays, 3)
	assert.Equal(t, 20, ua.UtilizationPct)
}

func TestAnalyzer_UserAvailability_UnknownEmployee(t *testing.T) {
	f := newFixture(t)
	from, to := juneWeek()

	_, err := f.analyzer.UserAvailability(context.Background(), testTenant, "ghost", from, to)
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}
