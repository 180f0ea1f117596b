/*
workflow.go - Allocation mutation workflow (create / move / delete)

PURPOSE:
  The transactional core of the engine. Validates inputs, consults the
  conflict checker, applies same-day hour redistribution when an employee
  gains or loses allocations on one date, and auto-adjusts the owning phase's
  date bounds when an allocation falls outside them. Every mutation returns
  the mutated allocation alongside a list of typed warnings.

NON-BLOCKING MODEL:
  A planner's intent is never hard-blocked. Overlapping an absence, stacking
  multiple allocations on one day, or placing work outside the phase window
  all succeed and are reported as warnings. Only structural contract
  violations (neither/both of employee+resource, missing move target,
  inactive employee, unknown ids) produce errors.

REDISTRIBUTION RULE:
  When an employee holds n allocations on one date, each receives
  capacity / n rounded down to 2 decimal places; the most recently created
  allocation absorbs the remainder so the day total equals the capacity
  exactly. The capacity is the employee's contracted daily capacity
  (weekly hours / 5, else 8). Resource-backed allocations never participate.

SEE ALSO:
  - checker.go: advisory absence lookup
  - conflicts.go: persisted conflict cascade on delete
  - types.go: warning taxonomy
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// hoursPlaces is the rounding precision of redistributed planned hours.
const hoursPlaces = 2

// Scheduler executes allocation mutations against the repositories.
type Scheduler struct {
	allocations AllocationRepository
	users       UserRepository
	phases      PhaseRepository
	checker     *ConflictChecker
	conflicts   *ConflictService
}

func NewScheduler(
	allocations AllocationRepository,
	users UserRepository,
	phases PhaseRepository,
	checker *ConflictChecker,
	conflicts *ConflictService,
) *Scheduler {
	return &Scheduler{
		allocations: allocations,
		users:       users,
		phases:      phases,
		checker:     checker,
		conflicts:   conflicts,
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateAllocationInput carries a planner's create intent. Exactly one of
// UserID/ResourceID must be set.
type CreateAllocationInput struct {
	TenantID     TenantID
	UserID       *UserID
	ResourceID   *ResourceID
	PhaseID      PhaseID
	Date         Date
	PlannedHours *decimal.Decimal
	Note         string
}

// Create validates and persists a new allocation, then applies same-day
// redistribution and phase bound adjustment. Warnings never block.
func (s *Scheduler) Create(ctx context.Context, in CreateAllocationInput) (*MutationResult, error) {
	if err := s.validateCreate(ctx, in); err != nil {
		return nil, err
	}

	phase, err := s.phases.FindByID(ctx, in.TenantID, in.PhaseID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, notFoundError("phase %s not found", in.PhaseID)
	}

	created, err := s.allocations.Create(ctx, Allocation{
		TenantID:     in.TenantID,
		UserID:       in.UserID,
		ResourceID:   in.ResourceID,
		PhaseID:      in.PhaseID,
		Date:         in.Date,
		PlannedHours: in.PlannedHours,
		Note:         in.Note,
	})
	if err != nil {
		return nil, err
	}

	var warnings []Warning

	if in.UserID != nil {
		w, err := s.absenceWarning(ctx, in.TenantID, *in.UserID, in.Date)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)

		count, err := s.redistributeDay(ctx, in.TenantID, *in.UserID, in.Date, true)
		if err != nil {
			return nil, err
		}
		if count > 1 {
			warnings = append(warnings, multiAllocationWarning(in.Date, count))
		}
	} else if created.PlannedHours == nil {
		// Equipment gets the nominal day when the planner left hours open.
		if err := s.allocations.UpdateHours(ctx, in.TenantID, created.ID, NominalDailyHours); err != nil {
			return nil, err
		}
	}

	phaseWarnings, err := s.adjustPhaseBounds(ctx, *phase, in.Date)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, phaseWarnings...)

	final, err := s.allocations.FindByID(ctx, in.TenantID, created.ID)
	if err != nil {
		return nil, err
	}
	if final == nil {
		return nil, notFoundError("allocation %s not found after create", created.ID)
	}
	return &MutationResult{Allocation: *final, Warnings: warnings}, nil
}

func (s *Scheduler) validateCreate(ctx context.Context, in CreateAllocationInput) error {
	if in.TenantID == "" {
		return validationError("tenant id is required")
	}
	if (in.UserID == nil) == (in.ResourceID == nil) {
		return validationError("exactly one of employee or resource must be set")
	}
	if in.PhaseID == "" {
		return validationError("phase id is required")
	}
	if in.Date.IsZero() {
		return validationError("date is required")
	}
	if in.UserID != nil {
		user, err := s.users.FindByID(ctx, in.TenantID, *in.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return notFoundError("employee %s not found", *in.UserID)
		}
		if !user.Active {
			return validationError("employee %s is inactive and cannot receive allocations", *in.UserID)
		}
	}
	return nil
}

// =============================================================================
// MOVE
// =============================================================================

// MoveAllocationInput carries a move intent; at least one of NewDate and
// NewPhaseID is required.
type MoveAllocationInput struct {
	TenantID     TenantID
	AllocationID AllocationID
	NewDate      *Date
	NewPhaseID   *PhaseID
}

// Move reschedules an allocation to a new date and/or reassigns it to a new
// phase. Warnings are re-evaluated against the new date, not the old one.
func (s *Scheduler) Move(ctx context.Context, in MoveAllocationInput) (*MutationResult, error) {
	if in.NewDate == nil && in.NewPhaseID == nil {
		return nil, validationError("move requires a new date or a new phase")
	}

	alloc, err := s.allocations.FindByID(ctx, in.TenantID, in.AllocationID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, notFoundError("allocation %s not found", in.AllocationID)
	}

	targetPhaseID := alloc.PhaseID
	if in.NewPhaseID != nil {
		targetPhaseID = *in.NewPhaseID
	}
	phase, err := s.phases.FindByID(ctx, in.TenantID, targetPhaseID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, notFoundError("phase %s not found", targetPhaseID)
	}

	if in.NewPhaseID != nil && *in.NewPhaseID != alloc.PhaseID {
		if err := s.allocations.MoveToPhase(ctx, in.TenantID, alloc.ID, *in.NewPhaseID); err != nil {
			return nil, err
		}
	}

	targetDate := alloc.Date
	var warnings []Warning
	if in.NewDate != nil && !in.NewDate.Equal(alloc.Date) {
		targetDate = *in.NewDate
		if err := s.allocations.MoveToDate(ctx, in.TenantID, alloc.ID, targetDate); err != nil {
			return nil, err
		}
		if alloc.IsEmployeeBacked() {
			// The vacated day re-balances among whoever remains there.
			if _, err := s.redistributeDay(ctx, in.TenantID, *alloc.UserID, alloc.Date, false); err != nil {
				return nil, err
			}
			count, err := s.redistributeDay(ctx, in.TenantID, *alloc.UserID, targetDate, true)
			if err != nil {
				return nil, err
			}
			if count > 1 {
				warnings = append(warnings, multiAllocationWarning(targetDate, count))
			}
		}
	}

	if alloc.IsEmployeeBacked() {
		w, err := s.absenceWarning(ctx, in.TenantID, *alloc.UserID, targetDate)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)
	}

	phaseWarnings, err := s.adjustPhaseBounds(ctx, *phase, targetDate)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, phaseWarnings...)

	final, err := s.allocations.FindByID(ctx, in.TenantID, alloc.ID)
	if err != nil {
		return nil, err
	}
	if final == nil {
		return nil, notFoundError("allocation %s not found after move", alloc.ID)
	}
	return &MutationResult{Allocation: *final, Warnings: warnings}, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes an allocation, cascades its persisted conflicts, and
// redistributes hours among the employee's remaining same-day allocations
// (symmetric to create).
func (s *Scheduler) Delete(ctx context.Context, tenant TenantID, id AllocationID) ([]Warning, error) {
	alloc, err := s.allocations.FindByID(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, notFoundError("allocation %s not found", id)
	}

	if err := s.allocations.Delete(ctx, tenant, id); err != nil {
		return nil, err
	}
	if err := s.conflicts.RemoveConflictsForAllocation(ctx, tenant, id); err != nil {
		return nil, err
	}

	var warnings []Warning
	if alloc.IsEmployeeBacked() {
		count, err := s.redistributeDay(ctx, tenant, *alloc.UserID, alloc.Date, false)
		if err != nil {
			return nil, err
		}
		if count > 1 {
			warnings = append(warnings, multiAllocationWarning(alloc.Date, count))
		}
	}
	return warnings, nil
}

// =============================================================================
// SHARED STEPS
// =============================================================================

func (s *Scheduler) absenceWarning(ctx context.Context, tenant TenantID, user UserID, date Date) ([]Warning, error) {
	absence, err := s.checker.ConflictingAbsence(ctx, tenant, user, date)
	if err != nil {
		return nil, err
	}
	if absence == nil {
		return nil, nil
	}
	return []Warning{{
		Kind:            WarnAbsenceConflict,
		Message:         fmt.Sprintf("employee is absent (%s) on %s", absence.Category, date),
		AbsenceCategory: absence.Category,
	}}, nil
}

// redistributeDay splits the employee's daily capacity evenly across all of
// their allocations on the date and returns the allocation count. Each
// allocation gets capacity/n floored to 2 decimals; the newest absorbs the
// remainder so the day total equals the capacity.
//
// With preserveSingle set, a day holding exactly one allocation keeps any
// planner-supplied hours and is only defaulted when hours are unset. Create
// and move targets preserve; the vacated day after a move and the day of a
// delete re-balance unconditionally.
func (s *Scheduler) redistributeDay(ctx context.Context, tenant TenantID, user UserID, date Date, preserveSingle bool) (int, error) {
	allocs, err := s.allocations.FindByUserAndDate(ctx, tenant, user, date)
	if err != nil {
		return 0, err
	}
	n := len(allocs)
	if n == 0 {
		return 0, nil
	}

	employee, err := s.users.FindByID(ctx, tenant, user)
	if err != nil {
		return 0, err
	}
	capacity := NominalDailyHours
	if employee != nil {
		capacity = employee.DailyCapacity()
	}

	if n == 1 && preserveSingle {
		if allocs[0].PlannedHours == nil {
			if err := s.allocations.UpdateHours(ctx, tenant, allocs[0].ID, capacity); err != nil {
				return 0, err
			}
		}
		return 1, nil
	}

	share := capacity.Div(decimal.NewFromInt(int64(n))).RoundFloor(hoursPlaces)
	remainder := capacity.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))

	// Repository order is creation time ascending; the last entry is newest.
	for i, a := range allocs {
		hours := share
		if i == n-1 {
			hours = remainder
		}
		if a.PlannedHours != nil && a.PlannedHours.Equal(hours) {
			continue
		}
		if err := s.allocations.UpdateHours(ctx, tenant, a.ID, hours); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *Scheduler) adjustPhaseBounds(ctx context.Context, phase ProjectPhase, date Date) ([]Warning, error) {
	var warnings []Warning
	start, end := phase.StartDate, phase.EndDate

	if date.After(end) {
		end = date
		warnings = append(warnings, Warning{
			Kind:     WarnPhaseExtended,
			Message:  fmt.Sprintf("phase %q end moved to %s", phase.Name, date),
			PhaseEnd: &end,
		})
	}
	if date.Before(start) {
		start = date
		warnings = append(warnings, Warning{
			Kind:       WarnPhasePreponed,
			Message:    fmt.Sprintf("phase %q start moved to %s", phase.Name, date),
			PhaseStart: &start,
		})
	}
	if len(warnings) == 0 {
		return nil, nil
	}
	if err := s.phases.UpdateDates(ctx, phase.TenantID, phase.ID, start, end); err != nil {
		return nil, err
	}
	return warnings, nil
}

func multiAllocationWarning(date Date, count int) Warning {
	return Warning{
		Kind:            WarnMultiAllocation,
		Message:         fmt.Sprintf("%d allocations share %s; planned hours were redistributed", count, date),
		AllocationCount: count,
	}
}
