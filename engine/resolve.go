/*
resolve.go - End-to-end resolution of one absence conflict

PURPOSE:
  Orchestrates a single conflict's resolution: mutates the underlying
  allocation per the chosen resolution kind, then marks the conflict record
  resolved. The allocation-side mutation goes through the same repository the
  mutation workflow uses.

STATE MACHINE:
  unresolved -> resolved. Terminal once resolved; resolving an already
  resolved conflict fails with ALREADY_RESOLVED and performs no further
  mutation. Unknown resolution kinds fail validation before any mutation
  occurs: either the one allocation-side effect plus the resolve-mark both
  happen, or neither does for that step.

SEE ALSO:
  - conflicts.go: ResolveConflict, the thin delegation used when the
    allocation-side effect is already known to have happened
*/
package engine

import "context"

// ConflictResolver executes one conflict resolution end-to-end.
type ConflictResolver struct {
	conflicts   AbsenceConflictRepository
	allocations AllocationRepository
}

func NewConflictResolver(conflicts AbsenceConflictRepository, allocations AllocationRepository) *ConflictResolver {
	return &ConflictResolver{conflicts: conflicts, allocations: allocations}
}

// ResolveConflictInput carries a planner's resolution choice. NewDate is
// required when Resolution is "moved".
type ResolveConflictInput struct {
	TenantID   TenantID
	ConflictID ConflictID
	Resolution Resolution
	ResolvedBy string
	NewDate    *Date
}

// Execute applies the resolution and returns the resolved conflict record.
func (r *ConflictResolver) Execute(ctx context.Context, in ResolveConflictInput) (*AbsenceConflict, error) {
	if !in.Resolution.Valid() {
		return nil, &Error{Code: CodeInvalidResolution, Message: "unknown resolution kind: " + string(in.Resolution)}
	}
	if in.Resolution == ResolutionMoved && in.NewDate == nil {
		return nil, &Error{Code: CodeNewDateRequired, Message: "resolution 'moved' requires a new date"}
	}

	conflict, err := r.conflicts.FindByID(ctx, in.TenantID, in.ConflictID)
	if err != nil {
		return nil, err
	}
	if conflict == nil {
		return nil, notFoundError("conflict %s not found", in.ConflictID)
	}
	if conflict.IsResolved() {
		return nil, &Error{Code: CodeAlreadyResolved, Message: "conflict " + string(in.ConflictID) + " is already resolved"}
	}

	switch in.Resolution {
	case ResolutionDeleted:
		allocation, err := r.allocations.FindByID(ctx, in.TenantID, conflict.AllocationID)
		if err != nil {
			return nil, err
		}
		if allocation == nil {
			return nil, notFoundError("allocation %s not found", conflict.AllocationID)
		}
		if err := r.allocations.Delete(ctx, in.TenantID, conflict.AllocationID); err != nil {
			return nil, err
		}
	case ResolutionMoved:
		if err := r.allocations.MoveToDate(ctx, in.TenantID, conflict.AllocationID, *in.NewDate); err != nil {
			return nil, err
		}
	case ResolutionIgnored:
		// No allocation-side effect.
	}

	return r.conflicts.Resolve(ctx, in.TenantID, in.ConflictID, in.Resolution, in.ResolvedBy)
}
