/*
Package sqlite provides the SQLite-backed implementation of the engine's
repository contracts.

PURPOSE:
  Implements AllocationRepository, AbsenceRepository,
  AbsenceConflictRepository, UserRepository and PhaseRepository on a single
  SQLite database, plus the entity CRUD the HTTP surface needs (absences,
  employees, phases). In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  allocations:        one employee-or-equipment assignment per row
  absences:           inclusive unavailability ranges per employee
  absence_conflicts:  persisted allocation-inside-absence facts
  employees:          crew records with contracted weekly hours
  phases:             date-bounded project phases

UNIQUENESS BACKSTOP:
  idx_conflicts_pair is UNIQUE on (allocation_id, absence_id). Conflict
  detection is read-then-write; under concurrent absence edits this index,
  not application ordering, is what actually prevents duplicate records.

CASCADE SEMANTICS:
  Conflict rows are NOT foreign-keyed to allocations: resolving a conflict
  with "deleted" removes the allocation but must keep the resolved record as
  history. The workflow's delete path cascades open conflicts explicitly via
  DeleteByAllocationID.

DATES AND HOURS:
  Dates are stored as ISO text (YYYY-MM-DD) so range predicates are plain
  lexicographic comparisons. Hour quantities are stored as decimal text and
  round-trip through shopspring/decimal without float drift.

WAL MODE:
  The database opens with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/planner.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  scheduler := engine.NewScheduler(store.Allocations(), store.Users(), ...)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/repository.go: interface definitions
  - engine/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sitecrew/planner/engine"
)

// Store implements every repository contract using SQLite. The per-contract
// views returned by Allocations() etc. share this one connection and lock.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Repository views. Each contract gets its own receiver so overlapping
// method names (FindByID, FindByUserAndDateRange) stay unambiguous.
func (s *Store) Allocations() engine.AllocationRepository    { return &sqlAllocations{s} }
func (s *Store) Absences() engine.AbsenceRepository          { return &sqlAbsences{s} }
func (s *Store) Conflicts() engine.AbsenceConflictRepository { return &sqlConflicts{s} }
func (s *Store) Users() engine.UserRepository                { return &sqlUsers{s} }
func (s *Store) Phases() engine.PhaseRepository              { return &sqlPhases{s} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Allocations: exactly one of user_id / resource_id is set
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT,
		resource_id TEXT,
		phase_id TEXT NOT NULL,
		date TEXT NOT NULL,
		planned_hours TEXT,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		CHECK ((user_id IS NULL) != (resource_id IS NULL))
	);

	-- Same-day redistribution (hot path) and window scans
	CREATE INDEX IF NOT EXISTS idx_allocations_user_date
		ON allocations(tenant_id, user_id, date);
	CREATE INDEX IF NOT EXISTS idx_allocations_tenant_date
		ON allocations(tenant_id, date);
	CREATE INDEX IF NOT EXISTS idx_allocations_phase
		ON allocations(tenant_id, phase_id);

	-- Absences
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		category TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_user_range
		ON absences(tenant_id, user_id, start_date, end_date);

	-- Absence conflicts. No FK to allocations: a conflict resolved with
	-- "deleted" outlives its allocation as history.
	CREATE TABLE IF NOT EXISTS absence_conflicts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		allocation_id TEXT NOT NULL,
		absence_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		category TEXT NOT NULL,
		resolved_at TEXT,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolution TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the concurrency backstop. Re-detection racing an absence
	-- edit must not produce two records for the same pair.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_pair
		ON absence_conflicts(allocation_id, absence_id);

	CREATE INDEX IF NOT EXISTS idx_conflicts_open
		ON absence_conflicts(tenant_id, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_conflicts_absence
		ON absence_conflicts(tenant_id, absence_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_allocation
		ON absence_conflicts(tenant_id, allocation_id);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		weekly_hours TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_active
		ON employees(tenant_id, active);

	-- Project phases
	CREATE TABLE IF NOT EXISTS phases (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ALLOCATION REPOSITORY
// =============================================================================

type sqlAllocations struct{ s *Store }

const allocationColumns = `id, tenant_id, user_id, resource_id, phase_id, date, planned_hours, note, created_at`

func (r *sqlAllocations) Create(ctx context.Context, a engine.Allocation) (engine.Allocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a.ID == "" {
		a.ID = engine.AllocationID(uuid.NewString())
	}
	a.CreatedAt = time.Now().UTC()

	var hours *string
	if a.PlannedHours != nil {
		h := a.PlannedHours.String()
		hours = &h
	}
	var userID, resourceID *string
	if a.UserID != nil {
		u := string(*a.UserID)
		userID = &u
	}
	if a.ResourceID != nil {
		res := string(*a.ResourceID)
		resourceID = &res
	}

	query := `
		INSERT INTO allocations (` + allocationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.s.db.ExecContext(ctx, query,
		a.ID, a.TenantID, userID, resourceID, a.PhaseID,
		a.Date.String(), hours, a.Note,
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return engine.Allocation{}, fmt.Errorf("failed to insert allocation: %w", err)
	}
	return a, nil
}

func (r *sqlAllocations) FindByID(ctx context.Context, tenant engine.TenantID, id engine.AllocationID) (*engine.Allocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE tenant_id = ? AND id = ?`
	allocs, err := r.s.queryAllocations(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, nil
	}
	return &allocs[0], nil
}

func (r *sqlAllocations) FindByUserAndDate(ctx context.Context, tenant engine.TenantID, user engine.UserID, date engine.Date) ([]engine.Allocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `
		SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = ? AND user_id = ? AND date = ?
		ORDER BY created_at ASC
	`
	return r.s.queryAllocations(ctx, query, tenant, user, date.String())
}

func (r *sqlAllocations) FindByUserAndDateRange(ctx context.Context, tenant engine.TenantID, user engine.UserID, from, to engine.Date) ([]engine.Allocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `
		SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = ? AND user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`
	return r.s.queryAllocations(ctx, query, tenant, user, from.String(), to.String())
}

func (r *sqlAllocations) FindByTenantAndDateRange(ctx context.Context, tenant engine.TenantID, from, to engine.Date) ([]engine.Allocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `
		SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`
	return r.s.queryAllocations(ctx, query, tenant, from.String(), to.String())
}

func (r *sqlAllocations) UpdateHours(ctx context.Context, tenant engine.TenantID, id engine.AllocationID, hours decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.execOne(ctx,
		`UPDATE allocations SET planned_hours = ? WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("allocation %s", id),
		hours.String(), tenant, id)
}

func (r *sqlAllocations) MoveToDate(ctx context.Context, tenant engine.TenantID, id engine.AllocationID, date engine.Date) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.execOne(ctx,
		`UPDATE allocations SET date = ? WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("allocation %s", id),
		date.String(), tenant, id)
}

func (r *sqlAllocations) MoveToPhase(ctx context.Context, tenant engine.TenantID, id engine.AllocationID, phase engine.PhaseID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.execOne(ctx,
		`UPDATE allocations SET phase_id = ? WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("allocation %s", id),
		phase, tenant, id)
}

func (r *sqlAllocations) Delete(ctx context.Context, tenant engine.TenantID, id engine.AllocationID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.execOne(ctx,
		`DELETE FROM allocations WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("allocation %s", id),
		tenant, id)
}

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]engine.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocations []engine.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func scanAllocation(rows *sql.Rows) (engine.Allocation, error) {
	var (
		a          engine.Allocation
		userID     sql.NullString
		resourceID sql.NullString
		dateStr    string
		hours      sql.NullString
		createdAt  string
	)

	err := rows.Scan(&a.ID, &a.TenantID, &userID, &resourceID, &a.PhaseID,
		&dateStr, &hours, &a.Note, &createdAt)
	if err != nil {
		return a, fmt.Errorf("failed to scan allocation: %w", err)
	}

	if userID.Valid {
		u := engine.UserID(userID.String)
		a.UserID = &u
	}
	if resourceID.Valid {
		res := engine.ResourceID(resourceID.String)
		a.ResourceID = &res
	}
	a.Date, err = engine.ParseDate(dateStr)
	if err != nil {
		return a, err
	}
	if hours.Valid {
		h, err := decimal.NewFromString(hours.String)
		if err != nil {
			return a, fmt.Errorf("failed to parse planned hours %q: %w", hours.String, err)
		}
		a.PlannedHours = &h
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, nil
}

// =============================================================================
// ABSENCE REPOSITORY
// =============================================================================

type sqlAbsences struct{ s *Store }

const absenceColumns = `id, tenant_id, user_id, start_date, end_date, category, note`

func (r *sqlAbsences) FindByUserAndDateRange(ctx context.Context, tenant engine.TenantID, user engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// Overlap: the absence range intersects [from, to].
	query := `
		SELECT ` + absenceColumns + ` FROM absences
		WHERE tenant_id = ? AND user_id = ? AND end_date >= ? AND start_date <= ?
		ORDER BY start_date ASC, created_at ASC
	`
	return r.s.queryAbsences(ctx, query, tenant, user, from.String(), to.String())
}

func (r *sqlAbsences) FindByUsersAndDateRange(ctx context.Context, tenant engine.TenantID, users []engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	if len(users) == 0 {
		return nil, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(users)), ", ")
	query := `
		SELECT ` + absenceColumns + ` FROM absences
		WHERE tenant_id = ? AND user_id IN (` + placeholders + `)
		  AND end_date >= ? AND start_date <= ?
		ORDER BY start_date ASC, created_at ASC
	`

	args := make([]any, 0, len(users)+3)
	args = append(args, tenant)
	for _, u := range users {
		args = append(args, u)
	}
	args = append(args, from.String(), to.String())

	return r.s.queryAbsences(ctx, query, args...)
}

func (s *Store) queryAbsences(ctx context.Context, query string, args ...any) ([]engine.Absence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []engine.Absence
	for rows.Next() {
		ab, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		absences = append(absences, ab)
	}
	return absences, rows.Err()
}

func scanAbsence(rows *sql.Rows) (engine.Absence, error) {
	var (
		ab       engine.Absence
		startStr string
		endStr   string
	)

	err := rows.Scan(&ab.ID, &ab.TenantID, &ab.UserID, &startStr, &endStr, &ab.Category, &ab.Note)
	if err != nil {
		return ab, fmt.Errorf("failed to scan absence: %w", err)
	}

	if ab.StartDate, err = engine.ParseDate(startStr); err != nil {
		return ab, err
	}
	if ab.EndDate, err = engine.ParseDate(endStr); err != nil {
		return ab, err
	}
	return ab, nil
}

// =============================================================================
// ABSENCE CONFLICT REPOSITORY
// =============================================================================

type sqlConflicts struct{ s *Store }

const conflictColumns = `id, tenant_id, allocation_id, absence_id, user_id, date, category, resolved_at, resolved_by, resolution, created_at`

func (r *sqlConflicts) FindByID(ctx context.Context, tenant engine.TenantID, id engine.ConflictID) (*engine.AbsenceConflict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `SELECT ` + conflictColumns + ` FROM absence_conflicts WHERE tenant_id = ? AND id = ?`
	conflicts, err := r.s.queryConflicts(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

func (r *sqlConflicts) FindByAllocationAndAbsence(ctx context.Context, tenant engine.TenantID, allocation engine.AllocationID, absence engine.AbsenceID) (*engine.AbsenceConflict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `
		SELECT ` + conflictColumns + ` FROM absence_conflicts
		WHERE tenant_id = ? AND allocation_id = ? AND absence_id = ?
	`
	conflicts, err := r.s.queryConflicts(ctx, query, tenant, allocation, absence)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

func (r *sqlConflicts) FindOpenByTenant(ctx context.Context, tenant engine.TenantID) ([]engine.AbsenceConflict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `
		SELECT ` + conflictColumns + ` FROM absence_conflicts
		WHERE tenant_id = ? AND resolved_at IS NULL
		ORDER BY created_at ASC
	`
	return r.s.queryConflicts(ctx, query, tenant)
}

func (r *sqlConflicts) SaveMany(ctx context.Context, conflicts []engine.AbsenceConflict) ([]engine.AbsenceConflict, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO absence_conflicts (` + conflictColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, '', '', ?)
	`

	saved := make([]engine.AbsenceConflict, len(conflicts))
	for i, c := range conflicts {
		if c.ID == "" {
			c.ID = engine.ConflictID(uuid.NewString())
		}
		c.CreatedAt = time.Now().UTC()

		_, err := tx.ExecContext(ctx, query,
			c.ID, c.TenantID, c.AllocationID, c.AbsenceID, c.UserID,
			c.Date.String(), c.Category,
			c.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				// The batch is atomic: one duplicate pair rejects it all.
				return nil, fmt.Errorf("conflict for allocation %s and absence %s already recorded", c.AllocationID, c.AbsenceID)
			}
			return nil, fmt.Errorf("failed to insert conflict: %w", err)
		}
		saved[i] = c
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conflicts: %w", err)
	}
	return saved, nil
}

func (r *sqlConflicts) Resolve(ctx context.Context, tenant engine.TenantID, id engine.ConflictID, resolution engine.Resolution, resolvedBy string) (*engine.AbsenceConflict, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	result, err := r.s.db.ExecContext(ctx, `
		UPDATE absence_conflicts
		SET resolved_at = ?, resolved_by = ?, resolution = ?
		WHERE tenant_id = ? AND id = ? AND resolved_at IS NULL
	`, now.Format(time.RFC3339Nano), resolvedBy, resolution, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish unknown from already-resolved.
		existing, err := r.findByIDLocked(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("conflict %s: %w", id, engine.ErrNotFound)
		}
		return nil, &engine.Error{Code: engine.CodeAlreadyResolved, Message: "conflict " + string(id) + " is already resolved"}
	}

	return r.findByIDLocked(ctx, tenant, id)
}

func (r *sqlConflicts) findByIDLocked(ctx context.Context, tenant engine.TenantID, id engine.ConflictID) (*engine.AbsenceConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM absence_conflicts WHERE tenant_id = ? AND id = ?`
	conflicts, err := r.s.queryConflicts(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

func (r *sqlConflicts) DeleteByAbsenceID(ctx context.Context, tenant engine.TenantID, absence engine.AbsenceID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, err := r.s.db.ExecContext(ctx,
		`DELETE FROM absence_conflicts WHERE tenant_id = ? AND absence_id = ?`,
		tenant, absence)
	return err
}

func (r *sqlConflicts) DeleteByAllocationID(ctx context.Context, tenant engine.TenantID, allocation engine.AllocationID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, err := r.s.db.ExecContext(ctx,
		`DELETE FROM absence_conflicts WHERE tenant_id = ? AND allocation_id = ?`,
		tenant, allocation)
	return err
}

func (s *Store) queryConflicts(ctx context.Context, query string, args ...any) ([]engine.AbsenceConflict, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []engine.AbsenceConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func scanConflict(rows *sql.Rows) (engine.AbsenceConflict, error) {
	var (
		c          engine.AbsenceConflict
		dateStr    string
		resolvedAt sql.NullString
		resolution string
		createdAt  string
	)

	err := rows.Scan(&c.ID, &c.TenantID, &c.AllocationID, &c.AbsenceID, &c.UserID,
		&dateStr, &c.Category, &resolvedAt, &c.ResolvedBy, &resolution, &createdAt)
	if err != nil {
		return c, fmt.Errorf("failed to scan conflict: %w", err)
	}

	if c.Date, err = engine.ParseDate(dateStr); err != nil {
		return c, err
	}
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAt.String)
		c.ResolvedAt = &t
	}
	c.Resolution = engine.Resolution(resolution)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return c, nil
}

// =============================================================================
// USER REPOSITORY
// =============================================================================

type sqlUsers struct{ s *Store }

const employeeColumns = `id, tenant_id, name, weekly_hours, active`

func (r *sqlUsers) FindActiveByTenant(ctx context.Context, tenant engine.TenantID) ([]engine.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE tenant_id = ? AND active = 1 ORDER BY id`
	return r.s.queryEmployees(ctx, query, tenant)
}

func (r *sqlUsers) FindByID(ctx context.Context, tenant engine.TenantID, id engine.UserID) (*engine.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE tenant_id = ? AND id = ?`
	employees, err := r.s.queryEmployees(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, nil
	}
	return &employees[0], nil
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]engine.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []engine.Employee
	for rows.Next() {
		var e engine.Employee
		var weeklyHours string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &weeklyHours, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if e.WeeklyHours, err = decimal.NewFromString(weeklyHours); err != nil {
			return nil, fmt.Errorf("failed to parse weekly hours %q: %w", weeklyHours, err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// PHASE REPOSITORY
// =============================================================================

type sqlPhases struct{ s *Store }

const phaseColumns = `id, tenant_id, project_id, name, start_date, end_date`

func (r *sqlPhases) FindByID(ctx context.Context, tenant engine.TenantID, id engine.PhaseID) (*engine.ProjectPhase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := `SELECT ` + phaseColumns + ` FROM phases WHERE tenant_id = ? AND id = ?`
	phases, err := r.s.queryPhases(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, nil
	}
	return &phases[0], nil
}

func (r *sqlPhases) UpdateDates(ctx context.Context, tenant engine.TenantID, id engine.PhaseID, start, end engine.Date) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.execOne(ctx,
		`UPDATE phases SET start_date = ?, end_date = ? WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("phase %s", id),
		start.String(), end.String(), tenant, id)
}

func (s *Store) queryPhases(ctx context.Context, query string, args ...any) ([]engine.ProjectPhase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var phases []engine.ProjectPhase
	for rows.Next() {
		var p engine.ProjectPhase
		var startStr, endStr string
		if err := rows.Scan(&p.ID, &p.TenantID, &p.ProjectID, &p.Name, &startStr, &endStr); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		if p.StartDate, err = engine.ParseDate(startStr); err != nil {
			return nil, err
		}
		if p.EndDate, err = engine.ParseDate(endStr); err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// =============================================================================
// ENTITY MANAGEMENT - CRUD the HTTP surface needs beyond the contracts
// =============================================================================

// SaveAbsence inserts or updates an absence, generating an id when absent.
func (s *Store) SaveAbsence(ctx context.Context, ab engine.Absence) (engine.Absence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ab.ID == "" {
		ab.ID = engine.AbsenceID(uuid.NewString())
	}

	query := `
		INSERT INTO absences (id, tenant_id, user_id, start_date, end_date, category, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			category = excluded.category,
			note = excluded.note
	`

	_, err := s.db.ExecContext(ctx, query,
		ab.ID, ab.TenantID, ab.UserID,
		ab.StartDate.String(), ab.EndDate.String(),
		ab.Category, ab.Note,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return engine.Absence{}, fmt.Errorf("failed to save absence: %w", err)
	}
	return ab, nil
}

// FindAbsenceByID returns nil without error when the id is unknown.
func (s *Store) FindAbsenceByID(ctx context.Context, tenant engine.TenantID, id engine.AbsenceID) (*engine.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + absenceColumns + ` FROM absences WHERE tenant_id = ? AND id = ?`
	absences, err := s.queryAbsences(ctx, query, tenant, id)
	if err != nil {
		return nil, err
	}
	if len(absences) == 0 {
		return nil, nil
	}
	return &absences[0], nil
}

// DeleteAbsence removes an absence row. Conflict cascade stays with the
// caller (ConflictService.RemoveConflictsForAbsence).
func (s *Store) DeleteAbsence(ctx context.Context, tenant engine.TenantID, id engine.AbsenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execOne(ctx,
		`DELETE FROM absences WHERE tenant_id = ? AND id = ?`,
		fmt.Sprintf("absence %s", id),
		tenant, id)
}

// SaveEmployee inserts or updates an employee, generating an id when absent.
func (s *Store) SaveEmployee(ctx context.Context, e engine.Employee) (engine.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = engine.UserID(uuid.NewString())
	}

	query := `
		INSERT INTO employees (id, tenant_id, name, weekly_hours, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			weekly_hours = excluded.weekly_hours,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.TenantID, e.Name, e.WeeklyHours.String(), e.Active,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return engine.Employee{}, fmt.Errorf("failed to save employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns every employee of the tenant, inactive included.
func (s *Store) ListEmployees(ctx context.Context, tenant engine.TenantID) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE tenant_id = ? ORDER BY name, id`
	return s.queryEmployees(ctx, query, tenant)
}

// SavePhase inserts or updates a phase, generating an id when absent.
func (s *Store) SavePhase(ctx context.Context, p engine.ProjectPhase) (engine.ProjectPhase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = engine.PhaseID(uuid.NewString())
	}

	query := `
		INSERT INTO phases (id, tenant_id, project_id, name, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.ProjectID, p.Name,
		p.StartDate.String(), p.EndDate.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return engine.ProjectPhase{}, fmt.Errorf("failed to save phase: %w", err)
	}
	return p, nil
}

// ListPhases returns every phase of the tenant ordered by start date.
func (s *Store) ListPhases(ctx context.Context, tenant engine.TenantID) ([]engine.ProjectPhase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + phaseColumns + ` FROM phases WHERE tenant_id = ? ORDER BY start_date, id`
	return s.queryPhases(ctx, query, tenant)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"absence_conflicts", "allocations", "absences", "employees", "phases"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// execOne runs a single-row mutation and maps zero affected rows to
// ErrNotFound.
func (s *Store) execOne(ctx context.Context, query, subject string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", subject, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", subject, engine.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
