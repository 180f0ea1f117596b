/*
conflicts.go - Persisted absence conflict lifecycle

PURPOSE:
  Whenever an absence is created or materially changed, scans for allocations
  that overlap it and materializes conflict records. Exposes resolution
  delegation and cascade cleanup.

IDEMPOTENCY:
  DetectAndRecordConflicts checks, per allocation, whether a record already
  exists for the (allocation, absence) pair before inserting; only genuinely
  new pairs are batched into a single insert, and only those are returned.
  Re-running on an unchanged absence yields an empty list.

  The existence check is read-then-write. Under concurrent absence edits the
  store-level uniqueness constraint on (allocation_id, absence_id) is the
  actual duplicate preventer; this service must not assume single-writer
  isolation.

MATERIAL CHANGE RULE:
  An absence whose employee, start date, or end date changed is treated as a
  materially different absence: conflicts are dropped and fully re-derived.
  A metadata-only change (e.g. category) triggers no recomputation at all.

SEE ALSO:
  - resolve.go: orchestrates the allocation-side effect of a resolution
  - repository.go: AbsenceConflictRepository contract
*/
package engine

import "context"

// ConflictService owns the persisted conflict lifecycle.
type ConflictService struct {
	conflicts   AbsenceConflictRepository
	allocations AllocationRepository
}

func NewConflictService(conflicts AbsenceConflictRepository, allocations AllocationRepository) *ConflictService {
	return &ConflictService{conflicts: conflicts, allocations: allocations}
}

// DetectAndRecordConflicts scans the absence's inclusive date range for
// allocations of the same employee and persists a conflict record for every
// pair that does not already have one. Returns only the newly created records.
func (s *ConflictService) DetectAndRecordConflicts(ctx context.Context, absence Absence) ([]AbsenceConflict, error) {
	allocations, err := s.allocations.FindByUserAndDateRange(ctx, absence.TenantID, absence.UserID, absence.StartDate, absence.EndDate)
	if err != nil {
		return nil, err
	}

	var fresh []AbsenceConflict
	for _, a := range allocations {
		existing, err := s.conflicts.FindByAllocationAndAbsence(ctx, absence.TenantID, a.ID, absence.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		fresh = append(fresh, AbsenceConflict{
			TenantID:     absence.TenantID,
			AllocationID: a.ID,
			AbsenceID:    absence.ID,
			UserID:       absence.UserID,
			Date:         a.Date,
			Category:     absence.Category,
		})
	}

	if len(fresh) == 0 {
		return nil, nil
	}
	return s.conflicts.SaveMany(ctx, fresh)
}

// UpdateConflictsForAbsence reconciles persisted conflicts after an absence
// edit. Material changes (employee, start, end) drop all existing conflicts
// for the old absence and re-derive against the new one; metadata-only
// changes return an empty list without touching the store. The skip is a
// deliberate optimization, not an oversight.
func (s *ConflictService) UpdateConflictsForAbsence(ctx context.Context, oldAbsence, newAbsence Absence) ([]AbsenceConflict, error) {
	if !materiallyChanged(oldAbsence, newAbsence) {
		return nil, nil
	}
	if err := s.conflicts.DeleteByAbsenceID(ctx, oldAbsence.TenantID, oldAbsence.ID); err != nil {
		return nil, err
	}
	return s.DetectAndRecordConflicts(ctx, newAbsence)
}

func materiallyChanged(old, updated Absence) bool {
	return old.UserID != updated.UserID ||
		!old.StartDate.Equal(updated.StartDate) ||
		!old.EndDate.Equal(updated.EndDate)
}

// ResolveConflict is a thin delegation to the persisted resolve operation.
// It does not mutate the allocation; use ConflictResolver when the
// allocation-side effect has not already happened.
func (s *ConflictService) ResolveConflict(ctx context.Context, tenant TenantID, id ConflictID, resolution Resolution, resolvedBy string) (*AbsenceConflict, error) {
	if !resolution.Valid() {
		return nil, &Error{Code: CodeInvalidResolution, Message: "unknown resolution kind: " + string(resolution)}
	}
	return s.conflicts.Resolve(ctx, tenant, id, resolution, resolvedBy)
}

// RemoveConflictsForAbsence cascades conflict deletion after an absence is
// removed. The store may mirror this with its own cascade; this call is the
// authoritative contract.
func (s *ConflictService) RemoveConflictsForAbsence(ctx context.Context, tenant TenantID, absence AbsenceID) error {
	return s.conflicts.DeleteByAbsenceID(ctx, tenant, absence)
}

// RemoveConflictsForAllocation cascades conflict deletion after an allocation
// is removed.
func (s *ConflictService) RemoveConflictsForAllocation(ctx context.Context, tenant TenantID, allocation AllocationID) error {
	return s.conflicts.DeleteByAllocationID(ctx, tenant, allocation)
}

// OpenConflicts lists unresolved conflicts for planner review.
func (s *ConflictService) OpenConflicts(ctx context.Context, tenant TenantID) ([]AbsenceConflict, error) {
	return s.conflicts.FindOpenByTenant(ctx, tenant)
}
