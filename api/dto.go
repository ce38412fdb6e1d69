/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the attendance records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENCODING:
  Dates are "YYYY-MM-DD" (generic.Date text form). Hours are decimal strings
  such as "7.5"; requests accept a number or a string. Timestamps are
  RFC 3339 in UTC.

VALIDATION:
  Validation is done by attendance.Service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// =============================================================================
// PROFILES
// =============================================================================

// ProfileDTO represents a user profile in API responses.
type ProfileDTO struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	GivenName           string          `json:"given_name"`
	FamilyName          string          `json:"family_name"`
	FullName            string          `json:"full_name"`
	JobTitle            string          `json:"job_title,omitempty"`
	Role                attendance.Role `json:"role"`
	ManagerID           string          `json:"manager_id,omitempty"`
	VacationDaysTotal   int             `json:"vacation_days_total"`
	Active              bool            `json:"active"`
	Locked              bool            `json:"locked"`
	FailedLoginAttempts int             `json:"failed_login_attempts"`
	CreatedAt           time.Time       `json:"created_at"`
}

func toProfileDTO(p attendance.UserProfile) ProfileDTO {
	return ProfileDTO{
		ID:                  p.ID,
		Email:               p.Email,
		GivenName:           p.GivenName,
		FamilyName:          p.FamilyName,
		FullName:            p.FullName(),
		JobTitle:            p.JobTitle,
		Role:                p.Role,
		ManagerID:           p.ManagerID,
		VacationDaysTotal:   p.VacationDaysTotal,
		Active:              p.Active,
		Locked:              p.Locked,
		FailedLoginAttempts: p.FailedLoginAttempts,
		CreatedAt:           p.CreatedAt,
	}
}

// InviteRequest is the request to create a profile.
type InviteRequest struct {
	Email             string `json:"email"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	JobTitle          string `json:"job_title"`
	Role              string `json:"role"`
	ManagerID         string `json:"manager_id"`
	VacationDaysTotal *int   `json:"vacation_days_total"`
}

func (r InviteRequest) toInvitation() (attendance.Invitation, error) {
	inv := attendance.Invitation{
		Email:             r.Email,
		GivenName:         r.GivenName,
		FamilyName:        r.FamilyName,
		JobTitle:          r.JobTitle,
		ManagerID:         r.ManagerID,
		VacationDaysTotal: r.VacationDaysTotal,
	}
	if r.Role != "" {
		role, err := attendance.ParseRole(r.Role)
		if err != nil {
			return attendance.Invitation{}, err
		}
		inv.Role = role
	}
	return inv, nil
}

// ProfilePatchRequest changes the present fields of a profile.
type ProfilePatchRequest struct {
	GivenName         *string `json:"given_name"`
	FamilyName        *string `json:"family_name"`
	JobTitle          *string `json:"job_title"`
	Role              *string `json:"role"`
	ManagerID         *string `json:"manager_id"`
	VacationDaysTotal *int    `json:"vacation_days_total"`
	Active            *bool   `json:"active"`
	Locked            *bool   `json:"locked"`
}

func (r ProfilePatchRequest) toPatch() (attendance.ProfilePatch, error) {
	patch := attendance.ProfilePatch{
		GivenName:         r.GivenName,
		FamilyName:        r.FamilyName,
		JobTitle:          r.JobTitle,
		ManagerID:         r.ManagerID,
		VacationDaysTotal: r.VacationDaysTotal,
		Active:            r.Active,
		Locked:            r.Locked,
	}
	if r.Role != nil {
		role, err := attendance.ParseRole(*r.Role)
		if err != nil {
			return attendance.ProfilePatch{}, err
		}
		patch.Role = &role
	}
	return patch, nil
}

// LockoutRequest identifies an account for the lockout endpoints.
type LockoutRequest struct {
	Email string `json:"email"`
}

// LoginStatusDTO is the lockout state of an account.
type LoginStatusDTO struct {
	FailedAttempts    int  `json:"failed_attempts"`
	Locked            bool `json:"locked"`
	RemainingAttempts int  `json:"remaining_attempts"`
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

// TimeEntryDTO represents a time entry in API responses.
type TimeEntryDTO struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Date      generic.Date    `json:"date"`
	Hours     decimal.Decimal `json:"hours"`
	Type      string          `json:"entry_type"`
	Location  string          `json:"location,omitempty"`
	Comment   string          `json:"comment,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toTimeEntryDTO(e attendance.TimeEntry) TimeEntryDTO {
	return TimeEntryDTO{
		ID:        e.ID,
		UserID:    e.UserID,
		Date:      e.Date,
		Hours:     e.Hours,
		Type:      string(e.Type),
		Location:  string(e.Location),
		Comment:   e.Comment,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// CreateTimeEntryRequest is the request to record hours. An empty
// entry_type records work.
type CreateTimeEntryRequest struct {
	Date     generic.Date    `json:"date"`
	Hours    decimal.Decimal `json:"hours"`
	Type     string          `json:"entry_type"`
	Location string          `json:"location"`
	Comment  string          `json:"comment"`
}

// TimeEntryPatchRequest edits the present fields of an entry.
type TimeEntryPatchRequest struct {
	Hours    *decimal.Decimal `json:"hours"`
	Location *string          `json:"location"`
	Comment  *string          `json:"comment"`
}

func (r TimeEntryPatchRequest) toPatch() attendance.TimeEntryPatch {
	patch := attendance.TimeEntryPatch{Hours: r.Hours, Comment: r.Comment}
	if r.Location != nil {
		loc := attendance.WorkLocation(*r.Location)
		patch.Location = &loc
	}
	return patch
}

// =============================================================================
// SICK LEAVES
// =============================================================================

// SickLeaveDTO represents a sick leave in API responses.
type SickLeaveDTO struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	StartDate    generic.Date `json:"start_date"`
	EndDate      generic.Date `json:"end_date"`
	BusinessDays int          `json:"business_days"`
	Comment      string       `json:"comment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func toSickLeaveDTO(l attendance.SickLeave) SickLeaveDTO {
	return SickLeaveDTO{
		ID:           l.ID,
		UserID:       l.UserID,
		StartDate:    l.Start,
		EndDate:      l.End,
		BusinessDays: l.Period().BusinessDays(),
		Comment:      l.Comment,
		CreatedAt:    l.CreatedAt,
	}
}

// DateRangeRequest is the body of sick leave and vacation submissions.
type DateRangeRequest struct {
	StartDate generic.Date `json:"start_date"`
	EndDate   generic.Date `json:"end_date"`
	Comment   string       `json:"comment"`
}

// =============================================================================
// VACATION REQUESTS
// =============================================================================

// VacationRequestDTO represents a vacation request in API responses.
type VacationRequestDTO struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	StartDate       generic.Date `json:"start_date"`
	EndDate         generic.Date `json:"end_date"`
	BusinessDays    int          `json:"business_days"`
	Comment         string       `json:"comment,omitempty"`
	Status          string       `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	ReviewedBy      string       `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toVacationDTO(v attendance.VacationRequest) VacationRequestDTO {
	return VacationRequestDTO{
		ID:              v.ID,
		UserID:          v.UserID,
		StartDate:       v.Start,
		EndDate:         v.End,
		BusinessDays:    v.BusinessDays,
		Comment:         v.Comment,
		Status:          string(v.Status),
		RejectionReason: v.RejectionReason,
		ReviewedBy:      v.ReviewedBy,
		ReviewedAt:      v.ReviewedAt,
		CreatedAt:       v.CreatedAt,
	}
}

// VacationSubmissionDTO is returned after submitting a request. Warning is
// set when the request exceeds the remaining allowance.
type VacationSubmissionDTO struct {
	Request       VacationRequestDTO `json:"request"`
	Balance       VacationBalanceDTO `json:"balance"`
	OverAllocated bool               `json:"over_allocated"`
	Warning       string             `json:"warning,omitempty"`
}

// ReviewRequest is the body of a review.
type ReviewRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ReviewItemDTO is one entry of a reviewer's queue.
type ReviewItemDTO struct {
	Request       VacationRequestDTO `json:"request"`
	RequesterName string             `json:"requester_name"`
	RequesterID   string             `json:"requester_id"`
}

// =============================================================================
// DASHBOARDS
// =============================================================================

// VacationBalanceDTO is a user's vacation allowance for one year.
type VacationBalanceDTO struct {
	UserID      string `json:"user_id"`
	Year        int    `json:"year"`
	Entitlement int    `json:"entitlement"`
	Approved    int    `json:"approved"`
	Pending     int    `json:"pending"`
	Remaining   int    `json:"remaining"`
	UsedPercent int    `json:"used_percent"`
}

func toBalanceDTO(b attendance.VacationBalance) VacationBalanceDTO {
	return VacationBalanceDTO{
		UserID:      b.UserID,
		Year:        b.Year,
		Entitlement: b.Entitlement,
		Approved:    b.Approved,
		Pending:     b.Pending,
		Remaining:   b.Remaining,
		UsedPercent: b.UsedPercent,
	}
}

// MonthSummaryDTO is the monthly attendance dashboard.
type MonthSummaryDTO struct {
	Month                string          `json:"month"`
	ExpectedHours        decimal.Decimal `json:"expected_hours"`
	WorkedHours          decimal.Decimal `json:"worked_hours"`
	CompletionPercent    int             `json:"completion_percent"`
	SickDays             decimal.Decimal `json:"sick_days"`
	SickDaysFromEntries  decimal.Decimal `json:"sick_days_from_entries"`
	SickDaysFromLeaves   int             `json:"sick_days_from_leaves"`
	VacationDaysApproved int             `json:"vacation_days_approved"`
	VacationDaysPending  int             `json:"vacation_days_pending"`
}

func toMonthSummaryDTO(s attendance.MonthSummary) MonthSummaryDTO {
	return MonthSummaryDTO{
		Month:                fmt.Sprintf("%04d-%02d", s.Year, int(s.Month)),
		ExpectedHours:        s.ExpectedHours,
		WorkedHours:          s.WorkedHours,
		CompletionPercent:    s.CompletionPercent,
		SickDays:             s.SickDays,
		SickDaysFromEntries:  s.SickDaysFromEntries,
		SickDaysFromLeaves:   s.SickDaysFromLeaves,
		VacationDaysApproved: s.VacationDaysApproved,
		VacationDaysPending:  s.VacationDaysPending,
	}
}

// SickStatsDTO is the admin sick-leave overview.
type SickStatsDTO struct {
	Today              generic.Date `json:"today"`
	PopulationSize     int          `json:"population_size"`
	CurrentlySick      int          `json:"currently_sick"`
	MonthSickDays      int          `json:"month_sick_days"`
	AffectedEmployees  int          `json:"affected_employees"`
	AveragePerAffected float64      `json:"average_per_affected"`
	SickRatePercent    float64      `json:"sick_rate_percent"`
}

func toSickStatsDTO(s attendance.SickStats) SickStatsDTO {
	return SickStatsDTO{
		Today:              s.Today,
		PopulationSize:     s.PopulationSize,
		CurrentlySick:      s.CurrentlySick,
		MonthSickDays:      s.MonthSickDays,
		AffectedEmployees:  s.AffectedEmployees,
		AveragePerAffected: s.AveragePerAffected,
		SickRatePercent:    s.SickRatePercent,
	}
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo organisation.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ConflictDetails names the record a rejected write collided with.
type ConflictDetails struct {
	Kind       string        `json:"kind"`
	ExistingID string        `json:"existing_id,omitempty"`
	StartDate  *generic.Date `json:"start_date,omitempty"`
	EndDate    *generic.Date `json:"end_date,omitempty"`
}
