/*
scenarios.go - Demo scenario loader for testing and demonstrations

PURPOSE:

	Populates the store with a realistic construction site: a crew,
	project phases, a planned week of allocations, and absences that
	collide with some of them so the conflict inbox has content.

HOW THE SCENARIO WORKS:
 1. Reset the store (clears ALL tenants)
 2. Create crew members and project phases
 3. Create allocations through the scheduler so planned hours are
    derived the same way real planner input would be
 4. Create absences and run conflict detection over them

USAGE VIA API:

	POST /api/scenarios/load
	X-Tenant-ID: demo-site

NOTE:

	Loading resets the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: request plumbing and engine wiring
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/sitecrew/planner/engine"
)

// LoadScenario resets the store and loads the demo construction site
// into the requesting tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	if err := h.loadConstructionScenario(ctx, tenant); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	log.WithField("tenant", tenant).Info("Demo scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": "construction-site"})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

// loadConstructionScenario builds a two-week window around the current
// date: three active crew members (one part-time), one former employee,
// three phases of the same project, a fully planned first week, and
// absences that overlap two of the allocations.
func (h *Handler) loadConstructionScenario(ctx context.Context, tenant engine.TenantID) error {
	// Anchor on the Monday of the current week so the demo window is
	// always in view.
	now := time.Now().UTC()
	monday := engine.NewDate(now.Year(), now.Month(), now.Day())
	for monday.Weekday() != time.Monday {
		monday = monday.AddDays(-1)
	}

	employees := []engine.Employee{
		{ID: "emp-marek", TenantID: tenant, Name: "Marek Nowak", WeeklyHours: decimal.NewFromInt(40), Active: true},
		{ID: "emp-lena", TenantID: tenant, Name: "Lena Fischer", WeeklyHours: decimal.NewFromInt(40), Active: true},
		{ID: "emp-tomasz", TenantID: tenant, Name: "Tomasz Kowal", WeeklyHours: decimal.NewFromInt(30), Active: true},
		{ID: "emp-jan", TenantID: tenant, Name: "Jan Berg", WeeklyHours: decimal.NewFromInt(40), Active: false},
	}
	for _, e := range employees {
		if _, err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("failed to seed employee %s: %w", e.ID, err)
		}
	}

	phases := []engine.ProjectPhase{
		{ID: "phase-foundation", TenantID: tenant, ProjectID: "riverside-office", Name: "Foundation", StartDate: monday.AddDays(-14), EndDate: monday.AddDays(1)},
		{ID: "phase-framing", TenantID: tenant, ProjectID: "riverside-office", Name: "Framing", StartDate: monday, EndDate: monday.AddDays(11)},
		{ID: "phase-electrical", TenantID: tenant, ProjectID: "riverside-office", Name: "Electrical Rough-In", StartDate: monday.AddDays(7), EndDate: monday.AddDays(25)},
	}
	for _, p := range phases {
		if _, err := h.Store.SavePhase(ctx, p); err != nil {
			return fmt.Errorf("failed to seed phase %s: %w", p.ID, err)
		}
	}

	// Plan the first week through the scheduler. Marek splits Wednesday
	// between two phases, which exercises same-day redistribution.
	type plan struct {
		user  engine.UserID
		phase engine.PhaseID
		day   int
	}
	week := []plan{
		{"emp-marek", "phase-foundation", 0},
		{"emp-marek", "phase-foundation", 1},
		{"emp-marek", "phase-framing", 2},
		{"emp-marek", "phase-foundation", 2},
		{"emp-marek", "phase-framing", 3},
		{"emp-marek", "phase-framing", 4},
		{"emp-lena", "phase-framing", 0},
		{"emp-lena", "phase-framing", 1},
		{"emp-lena", "phase-framing", 3},
		{"emp-tomasz", "phase-foundation", 0},
		{"emp-tomasz", "phase-foundation", 2},
		{"emp-tomasz", "phase-framing", 4},
	}
	for _, p := range week {
		user := p.user
		if _, err := h.Scheduler.Create(ctx, engine.CreateAllocationInput{
			TenantID: tenant,
			UserID:   &user,
			PhaseID:  p.phase,
			Date:     monday.AddDays(p.day),
		}); err != nil {
			return fmt.Errorf("failed to seed allocation for %s: %w", p.user, err)
		}
	}

	// A rented crane on the framing phase; resources skip employee checks.
	crane := engine.ResourceID("res-crane")
	if _, err := h.Scheduler.Create(ctx, engine.CreateAllocationInput{
		TenantID:   tenant,
		ResourceID: &crane,
		PhaseID:    "phase-framing",
		Date:       monday.AddDays(3),
		Note:       "mobile crane rental",
	}); err != nil {
		return fmt.Errorf("failed to seed crane allocation: %w", err)
	}

	// Absences: Lena's vacation collides with her Monday and Tuesday
	// allocations, Tomasz falls sick over his Wednesday shift.
	absences := []engine.Absence{
		{TenantID: tenant, UserID: "emp-lena", StartDate: monday, EndDate: monday.AddDays(1), Category: engine.AbsenceVacation, Note: "approved before project start"},
		{TenantID: tenant, UserID: "emp-tomasz", StartDate: monday.AddDays(2), EndDate: monday.AddDays(2), Category: engine.AbsenceSick},
	}
	for _, ab := range absences {
		saved, err := h.Store.SaveAbsence(ctx, ab)
		if err != nil {
			return fmt.Errorf("failed to seed absence for %s: %w", ab.UserID, err)
		}
		if _, err := h.Conflicts.DetectAndRecordConflicts(ctx, saved); err != nil {
			return fmt.Errorf("failed to detect conflicts for %s: %w", ab.UserID, err)
		}
	}

	return nil
}
