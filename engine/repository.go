/*
repository.go - Persistence contracts the engine depends on

PURPOSE:
  Defines the interface between the scheduling rules and the database.
  The engine depends on these repository-shaped contracts only, never on a
  specific store. Different implementations can use SQLite, PostgreSQL, or
  in-memory storage.

KEY INTERFACES:
  AllocationRepository:      allocation persistence and date/phase moves
  AbsenceRepository:         read-only absence lookups (HR flows own writes)
  AbsenceConflictRepository: persisted conflict lifecycle
  UserRepository:            active-employee lookups
  PhaseRepository:           phase date-bound adjustment

TENANCY:
  Every query is tenant-scoped. Implementations must never return rows from
  another tenant.

UNIQUENESS BACKSTOP:
  Conflict detection is read-then-write and must not assume single-writer
  isolation. Implementations enforce a uniqueness constraint on
  (allocation_id, absence_id); that constraint, not application ordering, is
  the actual invariant enforcer under concurrent absence edits.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - engine/store/memory.go: in-memory for tests and dev mode

SEE ALSO:
  - checker.go, conflicts.go, workflow.go, availability.go: consumers
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATION REPOSITORY
// =============================================================================

type AllocationRepository interface {
	// Create persists a new allocation and returns it with its generated id.
	Create(ctx context.Context, a Allocation) (Allocation, error)

	// FindByID returns nil without error when the id is unknown.
	FindByID(ctx context.Context, tenant TenantID, id AllocationID) (*Allocation, error)

	// FindByUserAndDate returns the employee's allocations on one date,
	// ordered by creation time ascending.
	FindByUserAndDate(ctx context.Context, tenant TenantID, user UserID, date Date) ([]Allocation, error)

	// FindByUserAndDateRange returns the employee's allocations with
	// date in [from, to] inclusive.
	FindByUserAndDateRange(ctx context.Context, tenant TenantID, user UserID, from, to Date) ([]Allocation, error)

	// FindByTenantAndDateRange returns every allocation of the tenant with
	// date in [from, to] inclusive, employee- and resource-backed alike.
	FindByTenantAndDateRange(ctx context.Context, tenant TenantID, from, to Date) ([]Allocation, error)

	// UpdateHours overwrites the planned hours of one allocation.
	UpdateHours(ctx context.Context, tenant TenantID, id AllocationID, hours decimal.Decimal) error

	// MoveToDate reschedules the allocation to a new date.
	MoveToDate(ctx context.Context, tenant TenantID, id AllocationID, date Date) error

	// MoveToPhase reassigns the allocation to another phase.
	MoveToPhase(ctx context.Context, tenant TenantID, id AllocationID, phase PhaseID) error

	Delete(ctx context.Context, tenant TenantID, id AllocationID) error
}

// =============================================================================
// ABSENCE REPOSITORY - Read-only from the engine's perspective
// =============================================================================

type AbsenceRepository interface {
	// FindByUserAndDateRange returns absences of one employee overlapping
	// [from, to] inclusive, in repository order.
	FindByUserAndDateRange(ctx context.Context, tenant TenantID, user UserID, from, to Date) ([]Absence, error)

	// FindByUsersAndDateRange is the batch form over a set of employees.
	FindByUsersAndDateRange(ctx context.Context, tenant TenantID, users []UserID, from, to Date) ([]Absence, error)
}

// =============================================================================
// ABSENCE CONFLICT REPOSITORY
// =============================================================================

type AbsenceConflictRepository interface {
	FindByID(ctx context.Context, tenant TenantID, id ConflictID) (*AbsenceConflict, error)

	// FindByAllocationAndAbsence returns nil when no record exists for the pair.
	FindByAllocationAndAbsence(ctx context.Context, tenant TenantID, allocation AllocationID, absence AbsenceID) (*AbsenceConflict, error)

	// FindOpenByTenant returns unresolved conflicts for planner review.
	FindOpenByTenant(ctx context.Context, tenant TenantID) ([]AbsenceConflict, error)

	// SaveMany persists new conflict records in a single batched insert and
	// returns them with generated ids.
	SaveMany(ctx context.Context, conflicts []AbsenceConflict) ([]AbsenceConflict, error)

	// Resolve marks a conflict resolved exactly once and returns the updated
	// record.
	Resolve(ctx context.Context, tenant TenantID, id ConflictID, resolution Resolution, resolvedBy string) (*AbsenceConflict, error)

	// Cascade deletes; mirrored by a store-level cascade for defense in depth.
	DeleteByAbsenceID(ctx context.Context, tenant TenantID, absence AbsenceID) error
	DeleteByAllocationID(ctx context.Context, tenant TenantID, allocation AllocationID) error
}

// =============================================================================
// USER & PHASE REPOSITORIES
// =============================================================================

type UserRepository interface {
	// FindActiveByTenant excludes inactive employees.
	FindActiveByTenant(ctx context.Context, tenant TenantID) ([]Employee, error)

	// FindByID returns nil without error when the id is unknown; the
	// returned employee may be inactive.
	FindByID(ctx context.Context, tenant TenantID, id UserID) (*Employee, error)
}

type PhaseRepository interface {
	FindByID(ctx context.Context, tenant TenantID, id PhaseID) (*ProjectPhase, error)

	// UpdateDates widens the phase window; the engine never shrinks it.
	UpdateDates(ctx context.Context, tenant TenantID, id PhaseID, start, end Date) error
}
