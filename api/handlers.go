/*
handlers.go - HTTP API handlers for the crew scheduling engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Allocations:
    POST   /api/allocations             Create allocation (returns warnings)
    GET    /api/allocations             List allocations in a date range
    POST   /api/allocations/{id}/move   Move to a new date and/or phase
    DELETE /api/allocations/{id}        Delete allocation

  Absences:
    POST   /api/absences                Create absence, detect conflicts
    PUT    /api/absences/{id}           Update absence, reconcile conflicts
    DELETE /api/absences/{id}           Delete absence, cascade conflicts

  Conflicts:
    GET    /api/conflicts               List open conflicts
    POST   /api/conflicts/{id}/resolve  Resolve one conflict

  Availability:
    GET    /api/availability            Whole-tenant availability context
    GET    /api/availability/available  Employees with free capacity
    GET    /api/availability/overloaded Employees over 100% utilization
    GET    /api/availability/users/{id} One employee's availability

  Entities:
    GET/POST /api/employees, /api/phases

  Scenarios:
    POST   /api/scenarios/load          Load the demo scenario

TENANCY:
  Every request carries an X-Tenant-ID header. Tenant resolution
  (authentication, mapping) happens upstream; the header is the
  already-established tenant context. Requests without it are rejected.

ERROR HANDLING:
  Engine errors carry machine-readable codes; they map to HTTP status as:
  - VALIDATION, INVALID_RESOLUTION, NEW_DATE_REQUIRED: 400
  - NOT_FOUND: 404
  - ALREADY_RESOLVED: 409
  - anything else: 500
  The code is echoed in the JSON envelope so clients can branch without
  parsing messages.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sitecrew/planner/engine"
)

// tenantHeader carries the already-resolved tenant context.
const tenantHeader = "X-Tenant-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence surface the HTTP layer needs: the engine's
// repository views plus the entity CRUD that sits outside them. Both
// *sqlite.Store and the in-memory store satisfy it.
type Store interface {
	Allocations() engine.AllocationRepository
	Absences() engine.AbsenceRepository
	Conflicts() engine.AbsenceConflictRepository
	Users() engine.UserRepository
	Phases() engine.PhaseRepository

	SaveAbsence(ctx context.Context, ab engine.Absence) (engine.Absence, error)
	FindAbsenceByID(ctx context.Context, tenant engine.TenantID, id engine.AbsenceID) (*engine.Absence, error)
	DeleteAbsence(ctx context.Context, tenant engine.TenantID, id engine.AbsenceID) error

	SaveEmployee(ctx context.Context, e engine.Employee) (engine.Employee, error)
	ListEmployees(ctx context.Context, tenant engine.TenantID) ([]engine.Employee, error)

	SavePhase(ctx context.Context, p engine.ProjectPhase) (engine.ProjectPhase, error)
	ListPhases(ctx context.Context, tenant engine.TenantID) ([]engine.ProjectPhase, error)

	// Reset drops all data. Used by the demo scenario loader.
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Scheduler *engine.Scheduler
	Conflicts *engine.ConflictService
	Resolver  *engine.ConflictResolver
	Analyzer  *engine.AvailabilityAnalyzer
}

// NewHandler wires the engine on top of the given store.
func NewHandler(store Store) *Handler {
	checker := engine.NewConflictChecker(store.Absences())
	conflicts := engine.NewConflictService(store.Conflicts(), store.Allocations())

	return &Handler{
		Store:     store,
		Scheduler: engine.NewScheduler(store.Allocations(), store.Users(), store.Phases(), checker, conflicts),
		Conflicts: conflicts,
		Resolver:  engine.NewConflictResolver(store.Conflicts(), store.Allocations()),
		Analyzer:  engine.NewAvailabilityAnalyzer(store.Users(), store.Allocations(), store.Absences()),
	}
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// CreateAllocation creates an allocation and returns it with its warnings.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	in := engine.CreateAllocationInput{
		TenantID: tenant,
		PhaseID:  engine.PhaseID(req.PhaseID),
		Date:     date,
		Note:     req.Note,
	}
	if req.UserID != nil {
		u := engine.UserID(*req.UserID)
		in.UserID = &u
	}
	if req.ResourceID != nil {
		res := engine.ResourceID(*req.ResourceID)
		in.ResourceID = &res
	}
	if req.PlannedHours != nil {
		hours := decimal.NewFromFloat(*req.PlannedHours)
		in.PlannedHours = &hours
	}

	result, err := h.Scheduler.Create(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to create allocation", err)
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{
		Allocation: toAllocationDTO(result.Allocation),
		Warnings:   toWarningDTOs(result.Warnings),
	})
}

// ListAllocations returns every allocation of the tenant in [from, to].
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	allocations, err := h.Store.Allocations().FindByTenantAndDateRange(r.Context(), tenant, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MoveAllocation moves an allocation to a new date and/or phase.
func (h *Handler) MoveAllocation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req MoveAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := engine.MoveAllocationInput{
		TenantID:     tenant,
		AllocationID: engine.AllocationID(chi.URLParam(r, "id")),
	}
	if req.NewDate != nil {
		date, err := engine.ParseDate(*req.NewDate)
		if err != nil {
			writeValidation(w, err.Error())
			return
		}
		in.NewDate = &date
	}
	if req.NewPhaseID != nil {
		phase := engine.PhaseID(*req.NewPhaseID)
		in.NewPhaseID = &phase
	}

	result, err := h.Scheduler.Move(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to move allocation", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{
		Allocation: toAllocationDTO(result.Allocation),
		Warnings:   toWarningDTOs(result.Warnings),
	})
}

// DeleteAllocation deletes an allocation and reports remaining-day warnings.
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	warnings, err := h.Scheduler.Delete(r.Context(), tenant, engine.AllocationID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, "Failed to delete allocation", err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Warnings: toWarningDTOs(warnings)})
}

// =============================================================================
// ABSENCE HANDLERS - writes drive the conflict lifecycle
// =============================================================================

// CreateAbsence persists an absence and records any conflicts it causes.
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	absence, ok := h.decodeAbsence(w, r, tenant, "")
	if !ok {
		return
	}

	saved, err := h.Store.SaveAbsence(r.Context(), absence)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save absence", err)
		return
	}

	conflicts, err := h.Conflicts.DetectAndRecordConflicts(r.Context(), saved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to detect conflicts", err)
		return
	}

	writeJSON(w, http.StatusCreated, AbsenceResponse{
		Absence:   toAbsenceDTO(saved),
		Conflicts: toConflictDTOs(conflicts),
	})
}

// UpdateAbsence updates an absence and reconciles its recorded conflicts.
func (h *Handler) UpdateAbsence(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	id := engine.AbsenceID(chi.URLParam(r, "id"))
	old, err := h.Store.FindAbsenceByID(r.Context(), tenant, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load absence", err)
		return
	}
	if old == nil {
		writeError(w, http.StatusNotFound, "Absence not found", nil)
		return
	}

	updated, ok := h.decodeAbsence(w, r, tenant, id)
	if !ok {
		return
	}

	saved, err := h.Store.SaveAbsence(r.Context(), updated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save absence", err)
		return
	}

	conflicts, err := h.Conflicts.UpdateConflictsForAbsence(r.Context(), *old, saved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile conflicts", err)
		return
	}

	writeJSON(w, http.StatusOK, AbsenceResponse{
		Absence:   toAbsenceDTO(saved),
		Conflicts: toConflictDTOs(conflicts),
	})
}

// DeleteAbsence removes an absence and cascades its conflicts.
func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	id := engine.AbsenceID(chi.URLParam(r, "id"))
	if err := h.Conflicts.RemoveConflictsForAbsence(r.Context(), tenant, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cascade conflicts", err)
		return
	}
	if err := h.Store.DeleteAbsence(r.Context(), tenant, id); err != nil {
		writeEngineError(w, "Failed to delete absence", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// decodeAbsence parses and validates an absence body. id is empty on create.
func (h *Handler) decodeAbsence(w http.ResponseWriter, r *http.Request, tenant engine.TenantID, id engine.AbsenceID) (engine.Absence, bool) {
	var req SaveAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return engine.Absence{}, false
	}

	if req.UserID == "" {
		writeValidation(w, "user_id is required")
		return engine.Absence{}, false
	}
	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeValidation(w, err.Error())
		return engine.Absence{}, false
	}
	end, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeValidation(w, err.Error())
		return engine.Absence{}, false
	}
	if end.Before(start) {
		writeValidation(w, "end_date must not precede start_date")
		return engine.Absence{}, false
	}
	category := engine.AbsenceCategory(req.Category)
	switch category {
	case engine.AbsenceVacation, engine.AbsenceSick, engine.AbsenceHoliday, engine.AbsenceTraining, engine.AbsenceOther:
	default:
		writeValidation(w, "unknown absence category: "+req.Category)
		return engine.Absence{}, false
	}

	user, err := h.Store.Users().FindByID(r.Context(), tenant, engine.UserID(req.UserID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load employee", err)
		return engine.Absence{}, false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return engine.Absence{}, false
	}

	return engine.Absence{
		ID:        id,
		TenantID:  tenant,
		UserID:    engine.UserID(req.UserID),
		StartDate: start,
		EndDate:   end,
		Category:  category,
		Note:      req.Note,
	}, true
}

// =============================================================================
// CONFLICT HANDLERS
// =============================================================================

// ListConflicts returns the tenant's open conflicts, oldest first.
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	conflicts, err := h.Conflicts.OpenConflicts(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(conflicts))
}

// ResolveConflict applies a planner's resolution choice end-to-end.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := engine.ResolveConflictInput{
		TenantID:   tenant,
		ConflictID: engine.ConflictID(chi.URLParam(r, "id")),
		Resolution: engine.Resolution(req.Resolution),
		ResolvedBy: req.ResolvedBy,
	}
	if req.NewDate != nil {
		date, err := engine.ParseDate(*req.NewDate)
		if err != nil {
			writeValidation(w, err.Error())
			return
		}
		in.NewDate = &date
	}

	resolved, err := h.Resolver.Execute(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to resolve conflict", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTO(*resolved))
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// GetAvailability returns the whole-tenant availability context.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	tctx, err := h.Analyzer.TenantAvailabilityContext(r.Context(), tenant, from, to, minHours(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute availability", err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityContextDTO{
		From:            from.String(),
		To:              to.String(),
		AvailableUsers:  toUserAvailabilityDTOs(tctx.AvailableUsers),
		OverloadedUsers: toUserAvailabilityDTOs(tctx.OverloadedUsers),
	})
}

// GetAvailableUsers returns employees with free capacity, most free first.
func (h *Handler) GetAvailableUsers(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	users, err := h.Analyzer.FindAvailableUsers(r.Context(), tenant, from, to, minHours(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserAvailabilityDTOs(users))
}

// GetOverloadedUsers returns employees over 100% utilization, worst first.
func (h *Handler) GetOverloadedUsers(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	users, err := h.Analyzer.FindOverloadedUsers(r.Context(), tenant, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserAvailabilityDTOs(users))
}

// GetUserAvailability narrows availability to one employee.
func (h *Handler) GetUserAvailability(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	ua, err := h.Analyzer.UserAvailability(r.Context(), tenant, engine.UserID(chi.URLParam(r, "id")), from, to)
	if err != nil {
		writeEngineError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserAvailabilityDTO(*ua))
}

// =============================================================================
// EMPLOYEE & PHASE HANDLERS
// =============================================================================

// ListEmployees returns all employees of the tenant.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	employees, err := h.Store.ListEmployees(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveEmployee creates or updates an employee.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	saved, err := h.Store.SaveEmployee(r.Context(), engine.Employee{
		ID:          engine.UserID(req.ID),
		TenantID:    tenant,
		Name:        req.Name,
		WeeklyHours: decimal.NewFromFloat(req.WeeklyHours),
		Active:      active,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(saved))
}

// ListPhases returns all phases of the tenant.
func (h *Handler) ListPhases(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	phases, err := h.Store.ListPhases(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list phases", err)
		return
	}

	dtos := make([]PhaseDTO, len(phases))
	for i, p := range phases {
		dtos[i] = toPhaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SavePhase creates or updates a phase.
func (h *Handler) SavePhase(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req SavePhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}
	end, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}
	if end.Before(start) {
		writeValidation(w, "end_date must not precede start_date")
		return
	}

	saved, err := h.Store.SavePhase(r.Context(), engine.ProjectPhase{
		ID:        engine.PhaseID(req.ID),
		TenantID:  tenant,
		ProjectID: req.ProjectID,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save phase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPhaseDTO(saved))
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func requireTenant(w http.ResponseWriter, r *http.Request) (engine.TenantID, bool) {
	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		writeValidation(w, tenantHeader+" header is required")
		return "", false
	}
	return engine.TenantID(tenant), true
}

// requireRange parses mandatory from/to query parameters.
func requireRange(w http.ResponseWriter, r *http.Request) (engine.Date, engine.Date, bool) {
	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeValidation(w, "from: "+err.Error())
		return engine.Date{}, engine.Date{}, false
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeValidation(w, "to: "+err.Error())
		return engine.Date{}, engine.Date{}, false
	}
	if to.Before(from) {
		writeValidation(w, "to must not precede from")
		return engine.Date{}, engine.Date{}, false
	}
	return from, to, true
}

// minHours reads the optional min_hours threshold, defaulting to a full day.
func minHours(r *http.Request) decimal.Decimal {
	raw := r.URL.Query().Get("min_hours")
	if raw == "" {
		return engine.DefaultMinAvailableHours
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return engine.DefaultMinAvailableHours
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeValidation(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: message,
		Code:  string(engine.CodeValidation),
	})
}

// writeEngineError maps engine error codes to HTTP status and echoes the
// code for client-side branching.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	code := engine.CodeOf(err)

	// Repository-layer errors wrap the category sentinel without a
	// structured code, so status mapping goes by sentinel.
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
		if code == "" {
			code = engine.CodeNotFound
		}
	case code == engine.CodeAlreadyResolved:
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    string(code),
		Details: err.Error(),
	})
}
