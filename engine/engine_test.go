package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/planner/engine"
	"github.com/sitecrew/planner/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = engine.TenantID("tenant-1")

// fixture wires the full engine against the in-memory store, with counting
// decorators on the repositories whose call volume the engine guarantees.
type fixture struct {
	mem         *store.Memory
	allocations *countingAllocations
	absences    *countingAbsences
	checker     *engine.ConflictChecker
	conflicts   *engine.ConflictService
	scheduler   *engine.Scheduler
	resolver    *engine.ConflictResolver
	analyzer    *engine.AvailabilityAnalyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	allocations := &countingAllocations{AllocationRepository: mem.Allocations()}
	absences := &countingAbsences{AbsenceRepository: mem.Absences()}

	checker := engine.NewConflictChecker(absences)
	conflicts := engine.NewConflictService(mem.Conflicts(), allocations)

	return &fixture{
		mem:         mem,
		allocations: allocations,
		absences:    absences,
		checker:     checker,
		conflicts:   conflicts,
		scheduler:   engine.NewScheduler(allocations, mem.Users(), mem.Phases(), checker, conflicts),
		resolver:    engine.NewConflictResolver(mem.Conflicts(), allocations),
		analyzer:    engine.NewAvailabilityAnalyzer(mem.Users(), allocations, absences),
	}
}

func (f *fixture) addEmployee(t *testing.T, id string, weeklyHours float64, active bool) engine.UserID {
	t.Helper()
	emp, err := f.mem.SaveEmployee(context.Background(), engine.Employee{
		ID:          engine.UserID(id),
		TenantID:    testTenant,
		Name:        "Employee " + id,
		WeeklyHours: decimal.NewFromFloat(weeklyHours),
		Active:      active,
	})
	require.NoError(t, err)
	return emp.ID
}

func (f *fixture) addPhase(t *testing.T, id string, start, end engine.Date) engine.PhaseID {
	t.Helper()
	phase, err := f.mem.SavePhase(context.Background(), engine.ProjectPhase{
		ID:        engine.PhaseID(id),
		TenantID:  testTenant,
		Name:      "Phase " + id,
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)
	return phase.ID
}

func (f *fixture) addAbsence(t *testing.T, user engine.UserID, start, end engine.Date, category engine.AbsenceCategory) engine.Absence {
	t.Helper()
	ab, err := f.mem.SaveAbsence(context.Background(), engine.Absence{
		TenantID:  testTenant,
		UserID:    user,
		StartDate: start,
		EndDate:   end,
		Category:  category,
	})
	require.NoError(t, err)
	return ab
}

func (f *fixture) createAllocation(t *testing.T, user engine.UserID, phase engine.PhaseID, date engine.Date) engine.Allocation {
	t.Helper()
	res, err := f.scheduler.Create(context.Background(), engine.CreateAllocationInput{
		TenantID: testTenant,
		UserID:   &user,
		PhaseID:  phase,
		Date:     date,
	})
	require.NoError(t, err)
	return res.Allocation
}

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func userPtr(id engine.UserID) *engine.UserID             { return &id }
func resourcePtr(id engine.ResourceID) *engine.ResourceID { return &id }

// =============================================================================
// COUNTING DECORATORS - Verify the engine's batching guarantees
// =============================================================================

type countingAbsences struct {
	engine.AbsenceRepository
	userRangeCalls  int
	usersRangeCalls int
}

func (c *countingAbsences) FindByUserAndDateRange(ctx context.Context, tenant engine.TenantID, user engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	c.userRangeCalls++
	return c.AbsenceRepository.FindByUserAndDateRange(ctx, tenant, user, from, to)
}

func (c *countingAbsences) FindByUsersAndDateRange(ctx context.Context, tenant engine.TenantID, users []engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	c.usersRangeCalls++
	return c.AbsenceRepository.FindByUsersAndDateRange(ctx, tenant, users, from, to)
}

type countingAllocations struct {
	engine.AllocationRepository
	tenantRangeCalls int
}

func (c *countingAllocations) FindByTenantAndDateRange(ctx context.Context, tenant engine.TenantID, from, to engine.Date) ([]engine.Allocation, error) {
	c.tenantRangeCalls++
	return c.AllocationRepository.FindByTenantAndDateRange(ctx, tenant, from, to)
}
