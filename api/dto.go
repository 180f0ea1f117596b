/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

CONVENTIONS:
  Dates travel as ISO strings (YYYY-MM-DD). Hour quantities travel as JSON
  numbers; precision is preserved internally with decimal and only converted
  at the boundary.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/sitecrew/planner/engine"
)

// =============================================================================
// ERROR ENVELOPE
// =============================================================================

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AllocationDTO represents an allocation in API responses.
type AllocationDTO struct {
	ID           string   `json:"id"`
	UserID       *string  `json:"user_id,omitempty"`
	ResourceID   *string  `json:"resource_id,omitempty"`
	PhaseID      string   `json:"phase_id"`
	Date         string   `json:"date"`
	PlannedHours *float64 `json:"planned_hours,omitempty"`
	Note         string   `json:"note,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// CreateAllocationRequest is the request to create an allocation. Exactly
// one of user_id / resource_id must be set.
type CreateAllocationRequest struct {
	UserID       *string  `json:"user_id,omitempty"`
	ResourceID   *string  `json:"resource_id,omitempty"`
	PhaseID      string   `json:"phase_id"`
	Date         string   `json:"date"`
	PlannedHours *float64 `json:"planned_hours,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// MoveAllocationRequest carries a move intent; at least one field required.
type MoveAllocationRequest struct {
	NewDate    *string `json:"new_date,omitempty"`
	NewPhaseID *string `json:"new_phase_id,omitempty"`
}

// WarningDTO is one advisory mutation outcome.
type WarningDTO struct {
	Kind            string  `json:"kind"`
	Message         string  `json:"message"`
	AbsenceCategory string  `json:"absence_category,omitempty"`
	AllocationCount int     `json:"allocation_count,omitempty"`
	PhaseStart      *string `json:"phase_start,omitempty"`
	PhaseEnd        *string `json:"phase_end,omitempty"`
}

// MutationResponse pairs the mutated allocation with its warnings.
type MutationResponse struct {
	Allocation AllocationDTO `json:"allocation"`
	Warnings   []WarningDTO  `json:"warnings"`
}

// DeleteResponse reports the warnings a delete raised.
type DeleteResponse struct {
	Warnings []WarningDTO `json:"warnings"`
}

// =============================================================================
// ABSENCES & CONFLICTS
// =============================================================================

// AbsenceDTO represents an absence in API responses.
type AbsenceDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Category  string `json:"category"`
	Note      string `json:"note,omitempty"`
}

// SaveAbsenceRequest creates or updates an absence.
type SaveAbsenceRequest struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Category  string `json:"category"`
	Note      string `json:"note,omitempty"`
}

// ConflictDTO represents a persisted absence conflict.
type ConflictDTO struct {
	ID           string  `json:"id"`
	AllocationID string  `json:"allocation_id"`
	AbsenceID    string  `json:"absence_id"`
	UserID       string  `json:"user_id"`
	Date         string  `json:"date"`
	Category     string  `json:"category"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
	ResolvedBy   string  `json:"resolved_by,omitempty"`
	Resolution   string  `json:"resolution,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// AbsenceResponse pairs an absence write with the conflicts it produced.
type AbsenceResponse struct {
	Absence   AbsenceDTO    `json:"absence"`
	Conflicts []ConflictDTO `json:"conflicts"`
}

// ResolveConflictRequest chooses a resolution for one conflict.
type ResolveConflictRequest struct {
	Resolution string  `json:"resolution"`
	ResolvedBy string  `json:"resolved_by"`
	NewDate    *string `json:"new_date,omitempty"`
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// UserAvailabilityDTO is one employee's aggregated availability.
type UserAvailabilityDTO struct {
	User           EmployeeDTO `json:"user"`
	FreeHours      float64     `json:"free_hours"`
	AllocatedHours float64     `json:"allocated_hours"`
	AvailableDays  []string    `json:"available_days"`
	UtilizationPct int         `json:"utilization_pct"`
}

// AvailabilityContextDTO is the whole-tenant availability view.
type AvailabilityContextDTO struct {
	From            string                `json:"from"`
	To              string                `json:"to"`
	AvailableUsers  []UserAvailabilityDTO `json:"available_users"`
	OverloadedUsers []UserAvailabilityDTO `json:"overloaded_users"`
}

// =============================================================================
// EMPLOYEES & PHASES
// =============================================================================

// EmployeeDTO represents a crew member in API responses.
type EmployeeDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	WeeklyHours float64 `json:"weekly_hours"`
	Active      bool    `json:"active"`
}

// SaveEmployeeRequest creates or updates an employee.
type SaveEmployeeRequest struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	WeeklyHours float64 `json:"weekly_hours"`
	Active      *bool   `json:"active,omitempty"`
}

// PhaseDTO represents a project phase in API responses.
type PhaseDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SavePhaseRequest creates or updates a phase.
type SavePhaseRequest struct {
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func toAllocationDTO(a engine.Allocation) AllocationDTO {
	dto := AllocationDTO{
		ID:      string(a.ID),
		PhaseID: string(a.PhaseID),
		Date:    a.Date.String(),
		Note:    a.Note,
	}
	if a.UserID != nil {
		u := string(*a.UserID)
		dto.UserID = &u
	}
	if a.ResourceID != nil {
		r := string(*a.ResourceID)
		dto.ResourceID = &r
	}
	if a.PlannedHours != nil {
		h := a.PlannedHours.InexactFloat64()
		dto.PlannedHours = &h
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toWarningDTOs(warnings []engine.Warning) []WarningDTO {
	dtos := make([]WarningDTO, len(warnings))
	for i, w := range warnings {
		dto := WarningDTO{
			Kind:            string(w.Kind),
			Message:         w.Message,
			AbsenceCategory: string(w.AbsenceCategory),
			AllocationCount: w.AllocationCount,
		}
		if w.PhaseStart != nil {
			s := w.PhaseStart.String()
			dto.PhaseStart = &s
		}
		if w.PhaseEnd != nil {
			e := w.PhaseEnd.String()
			dto.PhaseEnd = &e
		}
		dtos[i] = dto
	}
	return dtos
}

func toAbsenceDTO(ab engine.Absence) AbsenceDTO {
	return AbsenceDTO{
		ID:        string(ab.ID),
		UserID:    string(ab.UserID),
		StartDate: ab.StartDate.String(),
		EndDate:   ab.EndDate.String(),
		Category:  string(ab.Category),
		Note:      ab.Note,
	}
}

func toConflictDTO(c engine.AbsenceConflict) ConflictDTO {
	dto := ConflictDTO{
		ID:           string(c.ID),
		AllocationID: string(c.AllocationID),
		AbsenceID:    string(c.AbsenceID),
		UserID:       string(c.UserID),
		Date:         c.Date.String(),
		Category:     string(c.Category),
		ResolvedBy:   c.ResolvedBy,
		Resolution:   string(c.Resolution),
	}
	if c.ResolvedAt != nil {
		t := c.ResolvedAt.Format(time.RFC3339)
		dto.ResolvedAt = &t
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toConflictDTOs(conflicts []engine.AbsenceConflict) []ConflictDTO {
	dtos := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		dtos[i] = toConflictDTO(c)
	}
	return dtos
}

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:          string(e.ID),
		Name:        e.Name,
		WeeklyHours: e.WeeklyHours.InexactFloat64(),
		Active:      e.Active,
	}
}

func toPhaseDTO(p engine.ProjectPhase) PhaseDTO {
	return PhaseDTO{
		ID:        string(p.ID),
		ProjectID: p.ProjectID,
		Name:      p.Name,
		StartDate: p.StartDate.String(),
		EndDate:   p.EndDate.String(),
	}
}

func toUserAvailabilityDTO(ua engine.UserAvailability) UserAvailabilityDTO {
	days := make([]string, len(ua.AvailableDays))
	for i, d := range ua.AvailableDays {
		days[i] = d.String()
	}
	return UserAvailabilityDTO{
		User:           toEmployeeDTO(ua.User),
		FreeHours:      ua.FreeHours.InexactFloat64(),
		AllocatedHours: ua.AllocatedHours.InexactFloat64(),
		AvailableDays:  days,
		UtilizationPct: ua.UtilizationPct,
	}
}

func toUserAvailabilityDTOs(uas []engine.UserAvailability) []UserAvailabilityDTO {
	dtos := make([]UserAvailabilityDTO, len(uas))
	for i, ua := range uas {
		dtos[i] = toUserAvailabilityDTO(ua)
	}
	return dtos
}
