/*
availability.go - Tenant-wide capacity aggregation

PURPOSE:
  Pure aggregation over batch-loaded data: per-employee free hours and
  over-allocation percentage for a tenant and date window. No mutation.

BATCHING:
  One allocation query for the entire tenant, one absence query for the set
  of employee ids. Everything else is in-memory grouping. Loading the two is
  an explicit concurrent fan-out; neither depends on the other and results
  are merged only after both complete. Explicit N+1 avoidance: callers must
  not loop the convenience views over employees.

NUMERIC SEMANTICS:
  Nominal daily capacity is 8 hours. Utilization and free-hour figures round
  to the nearest integer percentage (standard rounding, not truncation).
  Day counts exclude Saturday/Sunday unconditionally.

SEE ALSO:
  - repository.go: the three repositories this reads from
  - workflow.go: the mutation-side counterpart
*/
package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultMinAvailableHours classifies an employee as available when their
// accumulated free hours reach a full nominal day.
var DefaultMinAvailableHours = NominalDailyHours

// AvailabilityAnalyzer computes tenant availability from batch-loaded data.
type AvailabilityAnalyzer struct {
	users       UserRepository
	allocations AllocationRepository
	absences    AbsenceRepository
}

func NewAvailabilityAnalyzer(users UserRepository, allocations AllocationRepository, absences AbsenceRepository) *AvailabilityAnalyzer {
	return &AvailabilityAnalyzer{users: users, allocations: allocations, absences: absences}
}

// UserAvailability is the per-employee aggregation result.
type UserAvailability struct {
	User           Employee
	FreeHours      decimal.Decimal
	AllocatedHours decimal.Decimal
	AvailableDays  []Date
	UtilizationPct int
}

// TenantAvailabilityContext is the canonical whole-tenant result.
type TenantAvailabilityContext struct {
	AvailableUsers    []UserAvailability
	OverloadedUsers   []UserAvailability
	AllocationsByUser map[UserID][]Allocation
	AbsencesByUser    map[UserID][]Absence
	Users             []Employee
}

func emptyContext() *TenantAvailabilityContext {
	return &TenantAvailabilityContext{
		AvailableUsers:    []UserAvailability{},
		OverloadedUsers:   []UserAvailability{},
		AllocationsByUser: map[UserID][]Allocation{},
		AbsencesByUser:    map[UserID][]Absence{},
		Users:             []Employee{},
	}
}

// TenantAvailabilityContext computes availability for every active employee
// of the tenant over [from, to]. minAvailableHours classifies availability;
// pass DefaultMinAvailableHours for the standard full-day threshold.
//
// With no active employees or no working days in the window, the empty
// context is returned without issuing any date-window queries.
func (az *AvailabilityAnalyzer) TenantAvailabilityContext(ctx context.Context, tenant TenantID, from, to Date, minAvailableHours decimal.Decimal) (*TenantAvailabilityContext, error) {
	employees, err := az.users.FindActiveByTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	workdays := WorkdaysIn(from, to)
	if len(employees) == 0 || len(workdays) == 0 {
		return emptyContext(), nil
	}

	userIDs := make([]UserID, len(employees))
	for i, e := range employees {
		userIDs[i] = e.ID
	}

	// Concurrent fan-out: the two loads have no ordering dependency.
	var allocations []Allocation
	var absences []Absence
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allocations, err = az.allocations.FindByTenantAndDateRange(gctx, tenant, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		absences, err = az.absences.FindByUsersAndDateRange(gctx, tenant, userIDs, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := emptyContext()
	result.Users = employees
	result.AllocationsByUser = groupAllocationsByUser(allocations)
	result.AbsencesByUser = groupAbsencesByUser(absences)
	absentDays := absentDayKeys(absences, from, to)

	for _, emp := range employees {
		ua := aggregateUser(emp, result.AllocationsByUser[emp.ID], absentDays[emp.ID], workdays)
		if ua.FreeHours.GreaterThanOrEqual(minAvailableHours) {
			result.AvailableUsers = append(result.AvailableUsers, ua)
		}
		if ua.UtilizationPct > 100 {
			result.OverloadedUsers = append(result.OverloadedUsers, ua)
		}
	}

	sort.SliceStable(result.AvailableUsers, func(i, j int) bool {
		return result.AvailableUsers[i].FreeHours.GreaterThan(result.AvailableUsers[j].FreeHours)
	})
	sort.SliceStable(result.OverloadedUsers, func(i, j int) bool {
		return result.OverloadedUsers[i].UtilizationPct > result.OverloadedUsers[j].UtilizationPct
	})
	return result, nil
}

// FindAvailableUsers is a convenience view: employees with at least
// minAvailableHours free, sorted by free hours descending.
func (az *AvailabilityAnalyzer) FindAvailableUsers(ctx context.Context, tenant TenantID, from, to Date, minAvailableHours decimal.Decimal) ([]UserAvailability, error) {
	tctx, err := az.TenantAvailabilityContext(ctx, tenant, from, to, minAvailableHours)
	if err != nil {
		return nil, err
	}
	return tctx.AvailableUsers, nil
}

// FindOverloadedUsers is a convenience view: employees over 100% utilization,
// sorted by utilization descending.
func (az *AvailabilityAnalyzer) FindOverloadedUsers(ctx context.Context, tenant TenantID, from, to Date) ([]UserAvailability, error) {
	tctx, err := az.TenantAvailabilityContext(ctx, tenant, from, to, DefaultMinAvailableHours)
	if err != nil {
		return nil, err
	}
	return tctx.OverloadedUsers, nil
}

// UserAvailability narrows the computation to one employee, still batching
// its own queries (one allocation lookup, one absence lookup).
func (az *AvailabilityAnalyzer) UserAvailability(ctx context.Context, tenant TenantID, user UserID, from, to Date) (*UserAvailability, error) {
	emp, err := az.users.FindByID(ctx, tenant, user)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, notFoundError("employee %s not found", user)
	}
	workdays := WorkdaysIn(from, to)
	if len(workdays) == 0 {
		ua := aggregateUser(*emp, nil, nil, nil)
		return &ua, nil
	}

	var allocations []Allocation
	var absences []Absence
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allocations, err = az.allocations.FindByUserAndDateRange(gctx, tenant, user, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		absences, err = az.absences.FindByUserAndDateRange(gctx, tenant, user, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ua := aggregateUser(*emp, allocations, absentDayKeys(absences, from, to)[user], workdays)
	return &ua, nil
}

// =============================================================================
// IN-MEMORY GROUPING
// =============================================================================

func groupAllocationsByUser(allocations []Allocation) map[UserID][]Allocation {
	grouped := make(map[UserID][]Allocation)
	for _, a := range allocations {
		if !a.IsEmployeeBacked() {
			continue
		}
		grouped[*a.UserID] = append(grouped[*a.UserID], a)
	}
	return grouped
}

func groupAbsencesByUser(absences []Absence) map[UserID][]Absence {
	grouped := make(map[UserID][]Absence)
	for _, ab := range absences {
		grouped[ab.UserID] = append(grouped[ab.UserID], ab)
	}
	return grouped
}

// absentDayKeys maps each employee to the set of covered working-day keys
// (absence ∩ queried range, weekends excluded).
func absentDayKeys(absences []Absence, from, to Date) map[UserID]map[string]bool {
	covered := make(map[UserID]map[string]bool)
	for _, ab := range absences {
		start := MaxDate(ab.StartDate, from)
		end := MinDate(ab.EndDate, to)
		for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
			if d.IsWeekend() {
				continue
			}
			if covered[ab.UserID] == nil {
				covered[ab.UserID] = make(map[string]bool)
			}
			covered[ab.UserID][d.Key()] = true
		}
	}
	return covered
}

func aggregateUser(emp Employee, allocations []Allocation, absentDays map[string]bool, workdays []Date) UserAvailability {
	allocatedByDay := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, a := range allocations {
		hours := a.HoursOrNominal()
		allocatedByDay[a.Date.Key()] = allocatedByDay[a.Date.Key()].Add(hours)
		if a.Date.IsWorkday() {
			total = total.Add(hours)
		}
	}

	free := decimal.Zero
	var availableDays []Date
	for _, day := range workdays {
		if absentDays[day.Key()] {
			continue
		}
		dayFree := NominalDailyHours.Sub(allocatedByDay[day.Key()])
		if dayFree.IsPositive() {
			free = free.Add(dayFree)
			availableDays = append(availableDays, day)
		}
	}

	utilization := 0
	if len(workdays) > 0 {
		capacity := NominalDailyHours.Mul(decimal.NewFromInt(int64(len(workdays))))
		utilization = int(total.Div(capacity).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}

	return UserAvailability{
		User:           emp,
		FreeHours:      free,
		AllocatedHours: total,
		AvailableDays:  availableDays,
		UtilizationPct: utilization,
	}
}
