/*
checker.go - Ephemeral, read-only absence conflict lookup

PURPOSE:
  Answers "does this employee have a recorded absence covering this date?"
  at allocation-mutation time. Answers are advisory and never blocking; the
  workflow turns them into warnings, not errors.

BATCHING INVARIANT:
  ConflictsForAllocations groups allocations by employee and issues exactly
  one absence lookup per distinct employee, using that employee's min/max
  allocation date as the query window. For N allocations across K employees,
  exactly K lookups are issued, never N.

SEE ALSO:
  - workflow.go: consumes point lookups during create/move
  - conflicts.go: the persisted counterpart of this ephemeral check
*/
package engine

import "context"

// ConflictChecker performs read-only absence overlap lookups.
type ConflictChecker struct {
	absences AbsenceRepository
}

func NewConflictChecker(absences AbsenceRepository) *ConflictChecker {
	return &ConflictChecker{absences: absences}
}

// HasConflict reports whether an absence for the employee includes the date.
func (c *ConflictChecker) HasConflict(ctx context.Context, tenant TenantID, user UserID, date Date) (bool, error) {
	ab, err := c.ConflictingAbsence(ctx, tenant, user, date)
	if err != nil {
		return false, err
	}
	return ab != nil, nil
}

// ConflictingAbsence returns the first absence (by repository order) covering
// the date, or nil when no absence covers it. An absence elsewhere in time is
// not a conflict.
func (c *ConflictChecker) ConflictingAbsence(ctx context.Context, tenant TenantID, user UserID, date Date) (*Absence, error) {
	absences, err := c.absences.FindByUserAndDateRange(ctx, tenant, user, date, date)
	if err != nil {
		return nil, err
	}
	for _, ab := range absences {
		if ab.CoversDate(date) {
			found := ab
			return &found, nil
		}
	}
	return nil, nil
}

// ConflictsForAllocations is the batch form: the result maps each conflicting
// allocation id to the covering absence. Resource-backed allocations are
// skipped entirely; conflicts are an employee-only concept.
func (c *ConflictChecker) ConflictsForAllocations(ctx context.Context, tenant TenantID, allocations []Allocation) (map[AllocationID]Absence, error) {
	byUser := make(map[UserID][]Allocation)
	for _, a := range allocations {
		if !a.IsEmployeeBacked() {
			continue
		}
		byUser[*a.UserID] = append(byUser[*a.UserID], a)
	}

	result := make(map[AllocationID]Absence)
	for user, allocs := range byUser {
		// One lookup per employee over the min/max allocation window.
		window := dateWindow(allocs)
		absences, err := c.absences.FindByUserAndDateRange(ctx, tenant, user, window.from, window.to)
		if err != nil {
			return nil, err
		}
		if len(absences) == 0 {
			continue
		}
		for _, a := range allocs {
			for _, ab := range absences {
				if ab.CoversDate(a.Date) {
					result[a.ID] = ab
					break
				}
			}
		}
	}
	return result, nil
}

type window struct {
	from, to Date
}

func dateWindow(allocs []Allocation) window {
	w := window{from: allocs[0].Date, to: allocs[0].Date}
	for _, a := range allocs[1:] {
		w.from = MinDate(w.from, a.Date)
		w.to = MaxDate(w.to, a.Date)
	}
	return w
}
