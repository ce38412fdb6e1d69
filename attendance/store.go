/*
store.go - Persistence boundary of the attendance service

PURPOSE:
  The service never talks to a database directly. It reads and writes the
  four record kinds through Records, and groups the conflict check and the
  write of a mutation into one Store.WithTx call so the check runs against
  the same snapshot the write lands in.

FILTERS:
  A zero Date in a filter means "unbounded" on that side. Range filters keep
  records that overlap [From, To], not only those contained in it.

ERRORS:
  Implementations return generic.NotFoundError for missing ids and wrap
  every other failure with generic.WrapStore so callers see ErrUnavailable.

IMPLEMENTATIONS:
  - store/memory: maps behind a mutex, for tests and demos
  - store/sqlite: single-file database, the default
  - store/postgres: pgx connection pool for shared deployments
*/
package attendance

import (
	"context"
	"slices"

	"github.com/warp/timetrack/generic"
)

// ProfileFilter selects profiles. Zero fields do not filter.
type ProfileFilter struct {
	ManagerID  string
	Role       Role
	ActiveOnly bool
}

// EntryFilter selects time entries of one user.
type EntryFilter struct {
	UserID string
	From   generic.Date
	To     generic.Date
	Type   EntryType
}

// LeaveFilter selects sick leaves. UserIDs, when non-nil, restricts the
// result to those users; an empty non-nil slice matches nothing.
type LeaveFilter struct {
	UserIDs []string
	From    generic.Date
	To      generic.Date
}

// VacationFilter selects vacation requests.
type VacationFilter struct {
	UserIDs  []string
	Statuses []VacationStatus
	From     generic.Date
	To       generic.Date
}

// Records is the CRUD surface over the four record kinds.
type Records interface {
	GetProfile(ctx context.Context, id string) (UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (UserProfile, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]UserProfile, error)
	CreateProfile(ctx context.Context, p UserProfile) error
	UpdateProfile(ctx context.Context, p UserProfile) error

	GetTimeEntry(ctx context.Context, id string) (TimeEntry, error)
	ListTimeEntries(ctx context.Context, f EntryFilter) ([]TimeEntry, error)
	CreateTimeEntry(ctx context.Context, e TimeEntry) error
	UpdateTimeEntry(ctx context.Context, e TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error

	GetSickLeave(ctx context.Context, id string) (SickLeave, error)
	ListSickLeaves(ctx context.Context, f LeaveFilter) ([]SickLeave, error)
	CreateSickLeave(ctx context.Context, l SickLeave) error
	DeleteSickLeave(ctx context.Context, id string) error

	GetVacationRequest(ctx context.Context, id string) (VacationRequest, error)
	ListVacationRequests(ctx context.Context, f VacationFilter) ([]VacationRequest, error)
	CreateVacationRequest(ctx context.Context, v VacationRequest) error
	UpdateVacationRequest(ctx context.Context, v VacationRequest) error
	DeleteVacationRequest(ctx context.Context, id string) error
}

// Store is a Records implementation that can run a group of operations
// atomically. If fn returns an error nothing it wrote is kept.
type Store interface {
	Records
	WithTx(ctx context.Context, fn func(tx Records) error) error
	Close() error
}

// Resetter is implemented by stores that can drop all records. Only the
// demo scenario loader uses it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// FILTER MATCHING - Shared by in-process implementations
// =============================================================================

// Match reports whether p passes f.
func (f ProfileFilter) Match(p UserProfile) bool {
	if f.ManagerID != "" && p.ManagerID != f.ManagerID {
		return false
	}
	if f.Role != 0 && p.Role != f.Role {
		return false
	}
	if f.ActiveOnly && !p.Active {
		return false
	}
	return true
}

// Match reports whether e passes f.
func (f EntryFilter) Match(e TimeEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return inWindow(generic.Period{Start: e.Date, End: e.Date}, f.From, f.To)
}

// Match reports whether l passes f.
func (f LeaveFilter) Match(l SickLeave) bool {
	if f.UserIDs != nil && !slices.Contains(f.UserIDs, l.UserID) {
		return false
	}
	return inWindow(l.Period(), f.From, f.To)
}

// Match reports whether v passes f.
func (f VacationFilter) Match(v VacationRequest) bool {
	if f.UserIDs != nil && !slices.Contains(f.UserIDs, v.UserID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, v.Status) {
		return false
	}
	return inWindow(v.Period(), f.From, f.To)
}

func inWindow(p generic.Period, from, to generic.Date) bool {
	if !from.IsZero() && p.End.Before(from) {
		return false
	}
	if !to.IsZero() && p.Start.After(to) {
		return false
	}
	return true
}
