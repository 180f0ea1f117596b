// Package store provides in-memory repository implementations for tests and
// dev mode.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitecrew/planner/engine"
)

// =============================================================================
// MEMORY - One shared state exposing every repository contract as a view
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	seq         int
	allocations map[engine.AllocationID]engine.Allocation
	absences    map[engine.AbsenceID]engine.Absence
	conflicts   map[engine.ConflictID]engine.AbsenceConflict
	employees   map[engine.UserID]engine.Employee
	phases      map[engine.PhaseID]engine.ProjectPhase

	// clock advances per write so creation order stays strict even when
	// several writes land in the same wall-clock instant.
	clock time.Time
}

func NewMemory() *Memory {
	return &Memory{
		allocations: make(map[engine.AllocationID]engine.Allocation),
		absences:    make(map[engine.AbsenceID]engine.Absence),
		conflicts:   make(map[engine.ConflictID]engine.AbsenceConflict),
		employees:   make(map[engine.UserID]engine.Employee),
		phases:      make(map[engine.PhaseID]engine.ProjectPhase),
		clock:       time.Now().UTC(),
	}
}

// Repository views. The contracts share method names (FindByID,
// FindByUserAndDateRange), so each view is its own type over the shared state.
func (m *Memory) Allocations() engine.AllocationRepository    { return &memoryAllocations{m} }
func (m *Memory) Absences() engine.AbsenceRepository          { return &memoryAbsences{m} }
func (m *Memory) Conflicts() engine.AbsenceConflictRepository { return &memoryConflicts{m} }
func (m *Memory) Users() engine.UserRepository                { return &memoryUsers{m} }
func (m *Memory) Phases() engine.PhaseRepository              { return &memoryPhases{m} }

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// Reset drops all data across all tenants.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations = make(map[engine.AllocationID]engine.Allocation)
	m.absences = make(map[engine.AbsenceID]engine.Absence)
	m.conflicts = make(map[engine.ConflictID]engine.AbsenceConflict)
	m.employees = make(map[engine.UserID]engine.Employee)
	m.phases = make(map[engine.PhaseID]engine.ProjectPhase)
	return nil
}

// =============================================================================
// ALLOCATION REPOSITORY
// =============================================================================

type memoryAllocations struct{ m *Memory }

func (r *memoryAllocations) Create(_ context.Context, a engine.Allocation) (engine.Allocation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if a.ID == "" {
		a.ID = engine.AllocationID(r.m.nextID("alloc"))
	}
	a.CreatedAt = r.m.tick()
	r.m.allocations[a.ID] = a
	return a, nil
}

func (r *memoryAllocations) FindByID(_ context.Context, tenant engine.TenantID, id engine.AllocationID) (*engine.Allocation, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	a, ok := r.m.allocations[id]
	if !ok || a.TenantID != tenant {
		return nil, nil
	}
	return &a, nil
}

func (r *memoryAllocations) FindByUserAndDate(ctx context.Context, tenant engine.TenantID, user engine.UserID, date engine.Date) ([]engine.Allocation, error) {
	return r.FindByUserAndDateRange(ctx, tenant, user, date, date)
}

func (r *memoryAllocations) FindByUserAndDateRange(_ context.Context, tenant engine.TenantID, user engine.UserID, from, to engine.Date) ([]engine.Allocation, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var result []engine.Allocation
	for _, a := range r.m.allocations {
		if a.TenantID != tenant || a.UserID == nil || *a.UserID != user {
			continue
		}
		if a.Date.Covers(from, to) {
			result = append(result, a)
		}
	}
	sortByCreation(result)
	return result, nil
}

func (r *memoryAllocations) FindByTenantAndDateRange(_ context.Context, tenant engine.TenantID, from, to engine.Date) ([]engine.Allocation, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var result []engine.Allocation
	for _, a := range r.m.allocations {
		if a.TenantID == tenant && a.Date.Covers(from, to) {
			result = append(result, a)
		}
	}
	sortByCreation(result)
	return result, nil
}

func (r *memoryAllocations) UpdateHours(_ context.Context, tenant engine.TenantID, id engine.AllocationID, hours decimal.Decimal) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.allocations[id]
	if !ok || a.TenantID != tenant {
		return fmt.Errorf("allocation %s: %w", id, engine.ErrNotFound)
	}
	a.PlannedHours = &hours
	r.m.allocations[id] = a
	return nil
}

func (r *memoryAllocations) MoveToDate(_ context.Context, tenant engine.TenantID, id engine.AllocationID, date engine.Date) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.allocations[id]
	if !ok || a.TenantID != tenant {
		return fmt.Errorf("allocation %s: %w", id, engine.ErrNotFound)
	}
	a.Date = date
	r.m.allocations[id] = a
	return nil
}

func (r *memoryAllocations) MoveToPhase(_ context.Context, tenant engine.TenantID, id engine.AllocationID, phase engine.PhaseID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.allocations[id]
	if !ok || a.TenantID != tenant {
		return fmt.Errorf("allocation %s: %w", id, engine.ErrNotFound)
	}
	a.PhaseID = phase
	r.m.allocations[id] = a
	return nil
}

func (r *memoryAllocations) Delete(_ context.Context, tenant engine.TenantID, id engine.AllocationID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.allocations[id]
	if !ok || a.TenantID != tenant {
		return fmt.Errorf("allocation %s: %w", id, engine.ErrNotFound)
	}
	delete(r.m.allocations, id)
	return nil
}

func sortByCreation(allocs []engine.Allocation) {
	sort.Slice(allocs, func(i, j int) bool {
		return allocs[i].CreatedAt.Before(allocs[j].CreatedAt)
	})
}

// =============================================================================
// ABSENCE REPOSITORY
// =============================================================================

type memoryAbsences struct{ m *Memory }

func (r *memoryAbsences) FindByUserAndDateRange(ctx context.Context, tenant engine.TenantID, user engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	return r.FindByUsersAndDateRange(ctx, tenant, []engine.UserID{user}, from, to)
}

func (r *memoryAbsences) FindByUsersAndDateRange(_ context.Context, tenant engine.TenantID, users []engine.UserID, from, to engine.Date) ([]engine.Absence, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	wanted := make(map[engine.UserID]bool, len(users))
	for _, u := range users {
		wanted[u] = true
	}

	var result []engine.Absence
	for _, ab := range r.m.absences {
		if ab.TenantID != tenant || !wanted[ab.UserID] {
			continue
		}
		// Overlap with [from, to], both ranges inclusive.
		if !ab.EndDate.Before(from) && !ab.StartDate.After(to) {
			result = append(result, ab)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Absence writes sit outside the engine contracts; HR-facing callers (API,
// scenarios) use these helpers directly.

func (m *Memory) SaveAbsence(_ context.Context, ab engine.Absence) (engine.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ab.ID == "" {
		ab.ID = engine.AbsenceID(m.nextID("absence"))
	}
	m.absences[ab.ID] = ab
	return ab, nil
}

func (m *Memory) FindAbsenceByID(_ context.Context, tenant engine.TenantID, id engine.AbsenceID) (*engine.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ab, ok := m.absences[id]
	if !ok || ab.TenantID != tenant {
		return nil, nil
	}
	return &ab, nil
}

func (m *Memory) DeleteAbsence(_ context.Context, tenant engine.TenantID, id engine.AbsenceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ab, ok := m.absences[id]
	if !ok || ab.TenantID != tenant {
		return fmt.Errorf("absence %s: %w", id, engine.ErrNotFound)
	}
	delete(m.absences, id)
	return nil
}

// =============================================================================
// ABSENCE CONFLICT REPOSITORY
// =============================================================================

type memoryConflicts struct{ m *Memory }

func (r *memoryConflicts) FindByID(_ context.Context, tenant engine.TenantID, id engine.ConflictID) (*engine.AbsenceConflict, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	c, ok := r.m.conflicts[id]
	if !ok || c.TenantID != tenant {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryConflicts) FindByAllocationAndAbsence(_ context.Context, tenant engine.TenantID, allocation engine.AllocationID, absence engine.AbsenceID) (*engine.AbsenceConflict, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, c := range r.m.conflicts {
		if c.TenantID == tenant && c.AllocationID == allocation && c.AbsenceID == absence {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryConflicts) FindOpenByTenant(_ context.Context, tenant engine.TenantID) ([]engine.AbsenceConflict, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var result []engine.AbsenceConflict
	for _, c := range r.m.conflicts {
		if c.TenantID == tenant && !c.IsResolved() {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memoryConflicts) SaveMany(_ context.Context, conflicts []engine.AbsenceConflict) ([]engine.AbsenceConflict, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	// Uniqueness backstop on (allocation, absence), mirroring the database
	// constraint. The whole batch is rejected, matching the atomicity of a
	// single batched insert.
	for _, c := range conflicts {
		for _, existing := range r.m.conflicts {
			if existing.TenantID == c.TenantID && existing.AllocationID == c.AllocationID && existing.AbsenceID == c.AbsenceID {
				return nil, fmt.Errorf("conflict for allocation %s and absence %s already recorded", c.AllocationID, c.AbsenceID)
			}
		}
	}

	saved := make([]engine.AbsenceConflict, len(conflicts))
	for i, c := range conflicts {
		if c.ID == "" {
			c.ID = engine.ConflictID(r.m.nextID("conflict"))
		}
		c.CreatedAt = r.m.tick()
		r.m.conflicts[c.ID] = c
		saved[i] = c
	}
	return saved, nil
}

func (r *memoryConflicts) Resolve(_ context.Context, tenant engine.TenantID, id engine.ConflictID, resolution engine.Resolution, resolvedBy string) (*engine.AbsenceConflict, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	c, ok := r.m.conflicts[id]
	if !ok || c.TenantID != tenant {
		return nil, fmt.Errorf("conflict %s: %w", id, engine.ErrNotFound)
	}
	if c.IsResolved() {
		return nil, &engine.Error{Code: engine.CodeAlreadyResolved, Message: "conflict " + string(id) + " is already resolved"}
	}
	now := r.m.tick()
	c.ResolvedAt = &now
	c.ResolvedBy = resolvedBy
	c.Resolution = resolution
	r.m.conflicts[id] = c
	return &c, nil
}

func (r *memoryConflicts) DeleteByAbsenceID(_ context.Context, tenant engine.TenantID, absence engine.AbsenceID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, c := range r.m.conflicts {
		if c.TenantID == tenant && c.AbsenceID == absence {
			delete(r.m.conflicts, id)
		}
	}
	return nil
}

func (r *memoryConflicts) DeleteByAllocationID(_ context.Context, tenant engine.TenantID, allocation engine.AllocationID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, c := range r.m.conflicts {
		if c.TenantID == tenant && c.AllocationID == allocation {
			delete(r.m.conflicts, id)
		}
	}
	return nil
}

// =============================================================================
// USER REPOSITORY
// =============================================================================

type memoryUsers struct{ m *Memory }

func (r *memoryUsers) FindActiveByTenant(_ context.Context, tenant engine.TenantID) ([]engine.Employee, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var result []engine.Employee
	for _, e := range r.m.employees {
		if e.TenantID == tenant && e.Active {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memoryUsers) FindByID(_ context.Context, tenant engine.TenantID, id engine.UserID) (*engine.Employee, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	e, ok := r.m.employees[id]
	if !ok || e.TenantID != tenant {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e engine.Employee) (engine.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = engine.UserID(m.nextID("user"))
	}
	m.employees[e.ID] = e
	return e, nil
}

// ListEmployees returns every employee of the tenant, inactive included.
func (m *Memory) ListEmployees(_ context.Context, tenant engine.TenantID) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Employee
	for _, e := range m.employees {
		if e.TenantID == tenant {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// PHASE REPOSITORY
// =============================================================================

type memoryPhases struct{ m *Memory }

func (r *memoryPhases) FindByID(_ context.Context, tenant engine.TenantID, id engine.PhaseID) (*engine.ProjectPhase, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	p, ok := r.m.phases[id]
	if !ok || p.TenantID != tenant {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryPhases) UpdateDates(_ context.Context, tenant engine.TenantID, id engine.PhaseID, start, end engine.Date) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.phases[id]
	if !ok || p.TenantID != tenant {
		return fmt.Errorf("phase %s: %w", id, engine.ErrNotFound)
	}
	p.StartDate = start
	p.EndDate = end
	r.m.phases[id] = p
	return nil
}

func (m *Memory) SavePhase(_ context.Context, p engine.ProjectPhase) (engine.ProjectPhase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = engine.PhaseID(m.nextID("phase"))
	}
	m.phases[p.ID] = p
	return p, nil
}

// ListPhases returns every phase of the tenant ordered by start date.
func (m *Memory) ListPhases(_ context.Context, tenant engine.TenantID) ([]engine.ProjectPhase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.ProjectPhase
	for _, p := range m.phases {
		if p.TenantID == tenant {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
