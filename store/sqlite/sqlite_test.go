/*
sqlite_test.go - SQLite adapter tests against an in-memory database

Tests for:
- Allocation round-trip and inclusive date-range predicates
- Tenant isolation
- Conflict uniqueness backstop and single-shot resolution
- Absence deletion cascading to open conflicts
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/planner/engine"
)

const testTenant = engine.TenantID("tenant-1")

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func userAllocation(user engine.UserID, phase engine.PhaseID, d engine.Date) engine.Allocation {
	return engine.Allocation{
		TenantID: testTenant,
		UserID:   &user,
		PhaseID:  phase,
		Date:     d,
	}
}

func mustCreate(t *testing.T, s *Store, a engine.Allocation) engine.Allocation {
	t.Helper()
	created, err := s.Allocations().Create(context.Background(), a)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	return created
}

func TestSQLite_AllocationRoundTrip(t *testing.T) {
	// GIVEN: A stored allocation with planned hours and a note
	s := newTestStore(t)
	ctx := context.Background()

	in := userAllocation("u1", "phase-1", engine.NewDate(2026, time.March, 2))
	in.PlannedHours = engine.HoursPtr(6.5)
	in.Note = "pour section B"
	created := mustCreate(t, s, in)

	// WHEN: Reading it back by id
	got, err := s.Allocations().FindByID(ctx, testTenant, created.ID)

	// THEN: Every field survives, hours exactly
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.UserID)
	assert.Equal(t, engine.UserID("u1"), *got.UserID)
	assert.Equal(t, engine.PhaseID("phase-1"), got.PhaseID)
	assert.Equal(t, "2026-03-02", got.Date.String())
	require.NotNil(t, got.PlannedHours)
	assert.True(t, got.PlannedHours.Equal(engine.Hours(6.5)))
	assert.Equal(t, "pour section B", got.Note)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_DateRangeIsInclusive(t *testing.T) {
	// GIVEN: Allocations on the 1st, 5th, and 6th
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 1)))
	mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 5)))
	mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 6)))

	// WHEN: Querying [1st, 5th]
	got, err := s.Allocations().FindByUserAndDateRange(ctx, testTenant, "u1",
		engine.NewDate(2026, time.March, 1), engine.NewDate(2026, time.March, 5))

	// THEN: Both endpoints are included, the 6th is not
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-01", got[0].Date.String())
	assert.Equal(t, "2026-03-05", got[1].Date.String())
}

func TestSQLite_TenantIsolation(t *testing.T) {
	// GIVEN: The same employee id in two tenants
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 2)))
	other := userAllocation("u1", "p", engine.NewDate(2026, time.March, 2))
	other.TenantID = "tenant-2"
	foreign := mustCreate(t, s, other)

	// WHEN: Querying tenant-1
	got, err := s.Allocations().FindByTenantAndDateRange(ctx, testTenant,
		engine.NewDate(2026, time.March, 1), engine.NewDate(2026, time.March, 31))

	// THEN: Only tenant-1 rows come back, and the foreign id is invisible
	require.NoError(t, err)
	require.Len(t, got, 1)

	missing, err := s.Allocations().FindByID(ctx, testTenant, foreign.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_ConflictPairUniqueness(t *testing.T) {
	// GIVEN: A recorded conflict for one (allocation, absence) pair
	s := newTestStore(t)
	ctx := context.Background()

	alloc := mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 2)))
	conflict := engine.AbsenceConflict{
		TenantID:     testTenant,
		AllocationID: alloc.ID,
		AbsenceID:    "abs-1",
		UserID:       "u1",
		Date:         alloc.Date,
		Category:     engine.AbsenceSick,
	}
	saved, err := s.Conflicts().SaveMany(ctx, []engine.AbsenceConflict{conflict})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	// WHEN: Inserting the same pair again
	_, err = s.Conflicts().SaveMany(ctx, []engine.AbsenceConflict{conflict})

	// THEN: The unique index rejects it and no second row exists
	require.Error(t, err)
	open, err := s.Conflicts().FindOpenByTenant(ctx, testTenant)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSQLite_ResolveIsSingleShot(t *testing.T) {
	// GIVEN: One open conflict
	s := newTestStore(t)
	ctx := context.Background()

	alloc := mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 2)))
	saved, err := s.Conflicts().SaveMany(ctx, []engine.AbsenceConflict{{
		TenantID:     testTenant,
		AllocationID: alloc.ID,
		AbsenceID:    "abs-1",
		UserID:       "u1",
		Date:         alloc.Date,
		Category:     engine.AbsenceVacation,
	}})
	require.NoError(t, err)
	id := saved[0].ID

	// WHEN: Resolving it
	resolved, err := s.Conflicts().Resolve(ctx, testTenant, id, engine.ResolutionIgnored, "planner-1")

	// THEN: The record carries the resolution metadata and leaves the inbox
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, engine.ResolutionIgnored, resolved.Resolution)
	assert.Equal(t, "planner-1", resolved.ResolvedBy)

	open, err := s.Conflicts().FindOpenByTenant(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, open)

	// WHEN: Resolving again
	_, err = s.Conflicts().Resolve(ctx, testTenant, id, engine.ResolutionDeleted, "planner-2")

	// THEN: ALREADY_RESOLVED, and unknown ids are NOT_FOUND instead
	require.Error(t, err)
	assert.Equal(t, engine.CodeAlreadyResolved, engine.CodeOf(err))

	_, err = s.Conflicts().Resolve(ctx, testTenant, "nope", engine.ResolutionIgnored, "planner-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSQLite_DeleteByAbsenceCascades(t *testing.T) {
	// GIVEN: Two conflicts from different absences
	s := newTestStore(t)
	ctx := context.Background()

	a1 := mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 2)))
	a2 := mustCreate(t, s, userAllocation("u1", "p", engine.NewDate(2026, time.March, 3)))
	_, err := s.Conflicts().SaveMany(ctx, []engine.AbsenceConflict{
		{TenantID: testTenant, AllocationID: a1.ID, AbsenceID: "abs-1", UserID: "u1", Date: a1.Date, Category: engine.AbsenceSick},
		{TenantID: testTenant, AllocationID: a2.ID, AbsenceID: "abs-2", UserID: "u1", Date: a2.Date, Category: engine.AbsenceVacation},
	})
	require.NoError(t, err)

	// WHEN: Cascading the first absence away
	require.NoError(t, s.Conflicts().DeleteByAbsenceID(ctx, testTenant, "abs-1"))

	// THEN: Only the second absence's conflict remains
	open, err := s.Conflicts().FindOpenByTenant(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, engine.AbsenceID("abs-2"), open[0].AbsenceID)
}

func TestSQLite_EmployeeUpsertAndListing(t *testing.T) {
	// GIVEN: A saved employee
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveEmployee(ctx, engine.Employee{
		TenantID:    testTenant,
		Name:        "Marek Nowak",
		WeeklyHours: engine.Hours(40),
		Active:      true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	// WHEN: Saving again with the same id but changed hours
	saved.WeeklyHours = engine.Hours(30)
	_, err = s.SaveEmployee(ctx, saved)
	require.NoError(t, err)

	// THEN: The listing holds one row with the updated hours
	list, err := s.ListEmployees(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].WeeklyHours.Equal(engine.Hours(30)))
}
