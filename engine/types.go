/*
Package engine provides the allocation scheduling and absence conflict core.

PURPOSE:
  This package contains the tenant-scoped rules that govern how crew and
  equipment allocations are created, moved and deleted; how allocations
  interact with recorded employee absences; how capacity and overload are
  computed across a tenant; and how detected conflicts are persisted and
  resolved over time.

KEY CONCEPTS IN THIS FILE (types.go):
  - Allocation: one employee-or-equipment assignment to a phase on a date
  - Absence: an inclusive date range during which an employee is unavailable
  - AbsenceConflict: a persisted "allocation inside an absence" fact
  - ProjectPhase: the date-bounded unit of work an allocation belongs to
  - Warning: advisory outcome of a mutation, never blocking

DESIGN PRINCIPLES:
  1. Non-blocking: absence overlap is a warning, never an error
  2. Precision: hours use decimal.Decimal, never float64
  3. Type Safety: strong typing for ids prevents mixing tenants/entities
  4. Tenant isolation: every entity carries its tenant id; no cross-tenant
     reference is ever valid

SEE ALSO:
  - repository.go: persistence contracts the engine depends on
  - workflow.go: the create/move/delete mutation workflow
  - conflicts.go: the persisted conflict lifecycle
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type UserID string
type ResourceID string
type PhaseID string
type AllocationID string
type AbsenceID string
type ConflictID string

// =============================================================================
// HOURS - Capacity and planned-hour quantities
// =============================================================================

// NominalDailyHours is the nominal working-day capacity used by availability
// aggregation and as the fallback per-day capacity.
var NominalDailyHours = decimal.NewFromInt(8)

// workdaysPerWeek derives a per-day capacity from contracted weekly hours.
var workdaysPerWeek = decimal.NewFromInt(5)

func Hours(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// HoursPtr is a convenience for nullable planned hours.
func HoursPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// =============================================================================
// ALLOCATION - One assignment of an employee or equipment resource
// =============================================================================

// Allocation assigns exactly one of {employee, equipment resource} to a
// project phase on one calendar date. Invariant: (UserID == nil) != (ResourceID == nil).
type Allocation struct {
	ID       AllocationID
	TenantID TenantID

	// Exactly one of the two is set.
	UserID     *UserID
	ResourceID *ResourceID

	PhaseID PhaseID
	Date    Date

	// PlannedHours is nil until defaulted via redistribution.
	PlannedHours *decimal.Decimal
	Note         string

	CreatedAt time.Time
}

// IsEmployeeBacked reports whether the allocation targets an employee.
// Conflicts and redistribution are employee-only concepts.
func (a Allocation) IsEmployeeBacked() bool { return a.UserID != nil }

// HoursOrNominal returns the planned hours, or the nominal day when unset.
func (a Allocation) HoursOrNominal() decimal.Decimal {
	if a.PlannedHours != nil {
		return *a.PlannedHours
	}
	return NominalDailyHours
}

// =============================================================================
// ABSENCE - Contiguous unavailability of one employee
// =============================================================================

type AbsenceCategory string

const (
	AbsenceVacation AbsenceCategory = "vacation"
	AbsenceSick     AbsenceCategory = "sick"
	AbsenceHoliday  AbsenceCategory = "holiday"
	AbsenceTraining AbsenceCategory = "training"
	AbsenceOther    AbsenceCategory = "other"
)

// Absence is an inclusive date range during which an employee is unavailable.
type Absence struct {
	ID        AbsenceID
	TenantID  TenantID
	UserID    UserID
	StartDate Date
	EndDate   Date
	Category  AbsenceCategory
	Note      string
}

// CoversDate reports whether date falls inside the absence, inclusive.
func (ab Absence) CoversDate(d Date) bool {
	return d.Covers(ab.StartDate, ab.EndDate)
}

// =============================================================================
// ABSENCE CONFLICT - Persisted, resolvable overlap fact
// =============================================================================

type Resolution string

const (
	ResolutionMoved   Resolution = "moved"
	ResolutionDeleted Resolution = "deleted"
	ResolutionIgnored Resolution = "ignored"
)

// Valid reports whether r is a recognized resolution kind.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionMoved, ResolutionDeleted, ResolutionIgnored:
		return true
	}
	return false
}

// AbsenceConflict records that an allocation occurs on a date covered by an
// absence for the same employee. At most one record exists per
// (allocation, absence) pair; re-detection must not duplicate.
type AbsenceConflict struct {
	ID           ConflictID
	TenantID     TenantID
	AllocationID AllocationID
	AbsenceID    AbsenceID
	UserID       UserID
	Date         Date

	// Category is denormalized from the absence at creation time.
	Category AbsenceCategory

	// Resolution metadata; nil ResolvedAt means the conflict is open.
	ResolvedAt *time.Time
	ResolvedBy string
	Resolution Resolution

	CreatedAt time.Time
}

// IsResolved reports whether the conflict has reached its terminal state.
func (c AbsenceConflict) IsResolved() bool { return c.ResolvedAt != nil }

// =============================================================================
// PROJECT PHASE - Date-bounded unit of work
// =============================================================================

// ProjectPhase exposes a start/end window that the mutation workflow may
// extend or pre-pone but never shrinks implicitly.
type ProjectPhase struct {
	ID        PhaseID
	TenantID  TenantID
	ProjectID string
	Name      string
	StartDate Date
	EndDate   Date
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID       UserID
	TenantID TenantID
	Name     string

	// WeeklyHours is the contracted weekly workload; zero means unknown.
	WeeklyHours decimal.Decimal
	Active      bool
}

// DailyCapacity derives the per-day capacity from contracted weekly hours,
// falling back to the nominal 8-hour day when no contract hours are recorded.
func (e Employee) DailyCapacity() decimal.Decimal {
	if e.WeeklyHours.IsPositive() {
		return e.WeeklyHours.Div(workdaysPerWeek)
	}
	return NominalDailyHours
}

// =============================================================================
// WARNINGS - Advisory mutation outcomes (never blocking)
// =============================================================================

type WarningKind string

const (
	// WarnAbsenceConflict: the target employee has an absence covering the
	// allocation date. Carries the absence category.
	WarnAbsenceConflict WarningKind = "absence_conflict"

	// WarnMultiAllocation: the employee now holds more than one allocation on
	// the date; planned hours were redistributed. Carries the new count.
	WarnMultiAllocation WarningKind = "multi_allocation"

	// WarnPhaseExtended: the allocation fell after the phase end; the phase
	// end was advanced to the allocation date.
	WarnPhaseExtended WarningKind = "phase_extended"

	// WarnPhasePreponed: the allocation fell before the phase start; the
	// phase start was pulled back to the allocation date.
	WarnPhasePreponed WarningKind = "phase_preponed"
)

// Warning describes one advisory outcome of an allocation mutation.
// A single mutation may emit several.
type Warning struct {
	Kind    WarningKind
	Message string

	// Kind-specific payloads.
	AbsenceCategory AbsenceCategory // absence_conflict
	AllocationCount int             // multi_allocation
	PhaseStart      *Date           // phase_preponed
	PhaseEnd        *Date           // phase_extended
}

// MutationResult pairs a mutated allocation with the warnings it raised.
type MutationResult struct {
	Allocation Allocation
	Warnings   []Warning
}
