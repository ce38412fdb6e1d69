// Package attendance implements employee time and absence tracking on top of
// the generic date engine: the record shapes, the accounting aggregators, the
// vacation approval workflow and the service that guards every mutation.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// ROLE - Closed set of permission levels
// =============================================================================

// Role is the permission level of a profile. The zero value is not a valid
// role.
type Role uint8

const (
	RoleEmployee Role = iota + 1
	RoleManager
	RoleAdmin
)

// ParseRole parses the stored/wire form of a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employee":
		return RoleEmployee, nil
	case "manager":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, generic.NewValidationError("role", fmt.Sprintf("unknown role %q", s))
	}
}

func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return "employee"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// =============================================================================
// USER PROFILE
// =============================================================================

// UserProfile is an employee account. Profiles are never deleted; they are
// deactivated through Active.
type UserProfile struct {
	ID                  string
	Email               string
	GivenName           string
	FamilyName          string
	JobTitle            string
	Role                Role
	ManagerID           string // empty when the profile has no manager
	VacationDaysTotal   int
	Active              bool
	FailedLoginAttempts int
	Locked              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName returns "Given Family", falling back to the email address.
func (p UserProfile) FullName() string {
	name := strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	if name == "" {
		return p.Email
	}
	return name
}

// =============================================================================
// TIME ENTRY
// =============================================================================

// EntryType classifies a time entry.
type EntryType string

const (
	EntryWork EntryType = "work"
	EntrySick EntryType = "sick"
	// EntryVacation only exists on legacy rows. Vacation is recorded through
	// VacationRequest; new entries of this type are refused.
	EntryVacation EntryType = "vacation"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryWork, EntrySick, EntryVacation:
		return true
	default:
		return false
	}
}

// WorkLocation is where work hours were spent.
type WorkLocation string

const (
	LocationOffice     WorkLocation = "office"
	LocationHomeOffice WorkLocation = "home-office"
	LocationRemote     WorkLocation = "remote"
	LocationClient     WorkLocation = "client"
)

// Valid reports whether l is a known location.
func (l WorkLocation) Valid() bool {
	switch l {
	case LocationOffice, LocationHomeOffice, LocationRemote, LocationClient:
		return true
	default:
		return false
	}
}

// TimeEntry records hours for one user on one day.
type TimeEntry struct {
	ID        string
	UserID    string
	Date      generic.Date
	Hours     decimal.Decimal
	Type      EntryType
	Location  WorkLocation // empty unless Type is EntryWork
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SICK LEAVE
// =============================================================================

// SickLeave is an inclusive range of days a user was unable to work.
type SickLeave struct {
	ID        string
	UserID    string
	Start     generic.Date
	End       generic.Date
	Comment   string
	CreatedAt time.Time
}

// Period returns the leave as a date range.
func (s SickLeave) Period() generic.Period {
	return generic.Period{Start: s.Start, End: s.End}
}

// =============================================================================
// VACATION REQUEST
// =============================================================================

// VacationStatus is the approval state of a vacation request.
type VacationStatus string

const (
	StatusRequested VacationStatus = "requested"
	StatusApproved  VacationStatus = "approved"
	StatusRejected  VacationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s VacationStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s VacationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// BlocksOverlap reports whether a request in this status prevents a new
// overlapping request.
func (s VacationStatus) BlocksOverlap() bool {
	return s == StatusRequested || s == StatusApproved
}

// VacationRequest asks for an inclusive range of days off.
type VacationRequest struct {
	ID              string
	UserID          string
	Start           generic.Date
	End             generic.Date
	BusinessDays    int // fixed at submission time
	Comment         string
	Status          VacationStatus
	RejectionReason string
	ReviewedBy      string
	ReviewedAt      *time.Time
	CreatedAt       time.Time
}

// Period returns the request as a date range.
func (v VacationRequest) Period() generic.Period {
	return generic.Period{Start: v.Start, End: v.End}
}
