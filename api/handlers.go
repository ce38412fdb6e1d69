/*
handlers.go - HTTP API handlers for the attendance tracker

PURPOSE:
  Exposes attendance.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to the service.

ENDPOINTS:
  Profiles:
    GET    /api/profile                       Acting user's profile
    GET    /api/profiles                      List visible profiles
    POST   /api/profiles                      Invite a user (admin)
    PATCH  /api/profiles/{id}                 Edit a profile (admin)

  Lockout (called by the login front end):
    POST   /api/lockout/check                 Is the account locked? (no actor)
    POST   /api/lockout/failed                Count a failed login (no actor)
    POST   /api/lockout/reset                 Clear the actor's counter after success

  Time entries:
    GET    /api/time-entries?from&to          Own entries
    POST   /api/time-entries                  Record hours
    PATCH  /api/time-entries/{id}             Edit hours, location, comment
    DELETE /api/time-entries/{id}

  Sick leaves:
    GET    /api/sick-leaves?from&to&user_id&manager_id&for_team
    POST   /api/sick-leaves
    DELETE /api/sick-leaves/{id}

  Vacation:
    GET    /api/vacation-requests?year&from&to
    POST   /api/vacation-requests             Submit (may warn on over-allocation)
    DELETE /api/vacation-requests/{id}        Cancel while requested
    GET    /api/vacation-requests/review?status
    PATCH  /api/vacation-requests/{id}/review {"action":"approve|reject","reason":""}

  Dashboards:
    GET    /api/dashboard/month?month=YYYY-MM&user_id
    GET    /api/dashboard/vacation?year&user_id
    GET    /api/admin/sick-stats?manager_id

  Scenarios (when enabled):
    GET    /api/scenarios
    GET    /api/scenarios/current
    POST   /api/scenarios/load

REQUEST FLOW:
  1. RequireActor resolves X-User-ID to a profile
  2. Parse path, query and body
  3. Call attendance.Service
  4. Serialize response or map the error (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc *attendance.Service
	log logrus.FieldLogger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler backed by svc.
func NewHandler(svc *attendance.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// GetProfile returns the acting user's profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// ListProfiles returns the profiles visible to the actor.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := attendance.ProfileFilter{ManagerID: q.Get("manager_id")}
	if v := q.Get("role"); v != "" {
		role, err := attendance.ParseRole(v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Role = role
	}
	active, err := queryBool(r, "active")
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	filter.ActiveOnly = active

	profiles, err := h.svc.ListProfiles(r.Context(), actorFrom(r.Context()), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]ProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// InviteUser creates a profile.
func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	inv, err := req.toInvitation()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.InviteUser(r.Context(), actorFrom(r.Context()), inv)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p))
}

// UpdateProfile applies an admin edit.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfilePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// =============================================================================
// LOCKOUT HANDLERS
// =============================================================================

// CheckLockout reports the lockout state for an email address.
func (h *Handler) CheckLockout(w http.ResponseWriter, r *http.Request) {
	h.lockout(w, r, h.svc.CheckLocked)
}

// RecordFailedLogin counts a failed login attempt.
func (h *Handler) RecordFailedLogin(w http.ResponseWriter, r *http.Request) {
	h.lockout(w, r, h.svc.RecordFailedLogin)
}

func (h *Handler) lockout(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, email string) (attendance.LoginStatus, error)) {
	var req LockoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	status, err := op(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginStatusDTO{
		FailedAttempts:    status.FailedAttempts,
		Locked:            status.Locked,
		RemainingAttempts: status.RemainingAttempts,
	})
}

// ResetFailedLogins clears the acting user's counter after a successful
// login. The request body is ignored.
func (h *Handler) ResetFailedLogins(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetFailedLogins(r.Context(), actorFrom(r.Context()).ID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TIME ENTRY HANDLERS
// =============================================================================

// ListTimeEntries returns the actor's entries in an optional date window.
func (h *Handler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	entries, err := h.svc.ListTimeEntries(r.Context(), actorFrom(r.Context()), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]TimeEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTimeEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTimeEntry records hours for the actor.
func (h *Handler) CreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateTimeEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	e, err := h.svc.CreateTimeEntry(r.Context(), actorFrom(r.Context()), attendance.TimeEntryInput{
		Date:     req.Date,
		Hours:    req.Hours,
		Type:     attendance.EntryType(req.Type),
		Location: attendance.WorkLocation(req.Location),
		Comment:  req.Comment,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeEntryDTO(e))
}

// UpdateTimeEntry edits one of the actor's entries.
func (h *Handler) UpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req TimeEntryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	e, err := h.svc.UpdateTimeEntry(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(e))
}

// DeleteTimeEntry removes one of the actor's entries.
func (h *Handler) DeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTimeEntry(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SICK LEAVE HANDLERS
// =============================================================================

// ListSickLeaves returns the leaves visible to the actor.
func (h *Handler) ListSickLeaves(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	forTeam, err := queryBool(r, "for_team")
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	q := r.URL.Query()
	leaves, err := h.svc.ListSickLeaves(r.Context(), actorFrom(r.Context()), attendance.SickLeaveQuery{
		UserID:    q.Get("user_id"),
		ManagerID: q.Get("manager_id"),
		ForTeam:   forTeam,
		From:      from,
		To:        to,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]SickLeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = toSickLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSickLeave records a sick leave for the actor.
func (h *Handler) CreateSickLeave(w http.ResponseWriter, r *http.Request) {
	var req DateRangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	l, err := h.svc.CreateSickLeave(r.Context(), actorFrom(r.Context()), attendance.SickLeaveInput{
		Start:   req.StartDate,
		End:     req.EndDate,
		Comment: req.Comment,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSickLeaveDTO(l))
}

// DeleteSickLeave removes one of the actor's leaves.
func (h *Handler) DeleteSickLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSickLeave(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VACATION HANDLERS
// =============================================================================

// ListVacationRequests returns the actor's own requests.
func (h *Handler) ListVacationRequests(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	requests, err := h.svc.ListVacationRequests(r.Context(), actorFrom(r.Context()), attendance.VacationQuery{Year: year, From: from, To: to})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVacationDTOs(requests))
}

// SubmitVacationRequest stores a new request. Over-allocation is reported
// as a warning in a successful response.
func (h *Handler) SubmitVacationRequest(w http.ResponseWriter, r *http.Request) {
	var req DateRangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	sub, err := h.svc.SubmitVacationRequest(r.Context(), actorFrom(r.Context()), attendance.VacationInput{
		Start:   req.StartDate,
		End:     req.EndDate,
		Comment: req.Comment,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := VacationSubmissionDTO{
		Request:       toVacationDTO(sub.Request),
		Balance:       toBalanceDTO(sub.Balance),
		OverAllocated: sub.OverAllocated,
	}
	if sub.OverAllocated {
		resp.Warning = fmt.Sprintf("request exceeds the remaining %d allowance by %d days", sub.Balance.Year, -sub.Balance.Remaining)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CancelVacationRequest withdraws one of the actor's pending requests.
func (h *Handler) CancelVacationRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelVacationRequest(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReviewQueue returns the requests the actor may review.
func (h *Handler) ListReviewQueue(w http.ResponseWriter, r *http.Request) {
	status := attendance.VacationStatus(r.URL.Query().Get("status"))
	items, err := h.svc.ListReviewQueue(r.Context(), actorFrom(r.Context()), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]ReviewItemDTO, len(items))
	for i, it := range items {
		dtos[i] = ReviewItemDTO{
			Request:       toVacationDTO(it.Request),
			RequesterID:   it.Requester.ID,
			RequesterName: it.Requester.FullName(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReviewVacationRequest approves or rejects a request.
func (h *Handler) ReviewVacationRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body", err)
		return
	}
	action, err := attendance.ParseReviewAction(req.Action, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	v, err := h.svc.ReviewVacationRequest(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), action)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVacationDTO(v))
}

func toVacationDTOs(requests []attendance.VacationRequest) []VacationRequestDTO {
	dtos := make([]VacationRequestDTO, len(requests))
	for i, v := range requests {
		dtos[i] = toVacationDTO(v)
	}
	return dtos
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetMonthSummary returns the monthly dashboard. month defaults to the
// current month, user_id to the actor.
func (h *Handler) GetMonthSummary(w http.ResponseWriter, r *http.Request) {
	today := h.svc.Today()
	year, month := today.Year(), today.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		t, err := time.Parse("2006-01", v)
		if err != nil {
			badRequest(w, "invalid query parameter", fmt.Errorf("month: expected YYYY-MM, got %q", v))
			return
		}
		year, month = t.Year(), t.Month()
	}
	s, err := h.svc.MonthSummary(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("user_id"), year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthSummaryDTO(s))
}

// GetVacationBalance returns the vacation balance for a year (default: the
// current one).
func (h *Handler) GetVacationBalance(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", h.svc.Today().Year())
	if err != nil {
		badRequest(w, "invalid query parameter", err)
		return
	}
	b, err := h.svc.VacationBalance(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("user_id"), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// GetSickStatistics returns the sick-leave overview for the current month.
func (h *Handler) GetSickStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.SickStatistics(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("manager_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSickStatsDTO(stats))
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func queryDate(r *http.Request, name string) (generic.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return generic.Date{}, nil
	}
	d, err := generic.ParseDate(v)
	if err != nil {
		return generic.Date{}, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// queryWindow reads the optional from/to parameters.
func queryWindow(r *http.Request) (from, to generic.Date, err error) {
	if from, err = queryDate(r, "from"); err != nil {
		return
	}
	to, err = queryDate(r, "to")
	return
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected an integer, got %q", name, v)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: expected true or false, got %q", name, v)
	}
	return b, nil
}
