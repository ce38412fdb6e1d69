/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built organisations that populate the record store with
  realistic data for demos. Every date is relative to the service's today,
  so a scenario looks current whenever it is loaded.

AVAILABLE SCENARIOS:
  small-team:       One manager, three reports, a month of logged hours
  sick-season:      small-team plus overlapping sick leaves for statistics
  over-allocation:  A report whose requests exceed the yearly allowance

DEMO USERS:
  Use these ids in the X-User-ID header:
    admin   Alex Admin (admin)
    mgr-1   Maria Keller (manager)
    emp-1   Jonas Weber, emp-2 Lena Fischer, emp-3 Tom Becker (report to mgr-1)

HOW SCENARIOS WORK:
 1. Reset the store (clear all records)
 2. Write the records in one transaction, bypassing the service checks

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "sick-season"}

NOTE:
  Scenarios wipe the store. The routes are only mounted when
  server.scenarios is enabled.

SEE ALSO:
  - handlers.go: Handler
  - server.go: RouterOptions.Scenarios
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "One manager with three reports, hours logged for the current month, one approved and one pending vacation",
	},
	{
		ID:          "sick-season",
		Name:        "Sick Season",
		Description: "Small team with several overlapping sick leaves this month",
	},
	{
		ID:          "over-allocation",
		Name:        "Over-Allocation",
		Description: "Small team where one report has requested more vacation than allowed",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scenario, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	var load func(*seeder)
	switch scenario.ID {
	case "small-team":
		load = loadSmallTeamScenario
	case "sick-season":
		load = loadSickSeasonScenario
	case "over-allocation":
		load = loadOverAllocationScenario
	}

	if err := h.loadScenario(r.Context(), load); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = scenario.ID
	h.mu.Unlock()
	h.log.WithField("scenario", scenario.ID).Info("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": scenario,
	})
}

func (h *Handler) loadScenario(ctx context.Context, load func(*seeder)) error {
	store := h.svc.Store()
	resetter, ok := store.(attendance.Resetter)
	if !ok {
		return errors.New("record store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return generic.WrapStore("reset store", err)
	}

	today := h.svc.Today()
	err := store.WithTx(ctx, func(tx attendance.Records) error {
		s := &seeder{ctx: ctx, tx: tx, today: today, now: time.Now().UTC()}
		load(s)
		return s.err
	})
	return generic.WrapStore("load scenario", err)
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSmallTeamScenario(s *seeder) {
	s.profile("admin", "Alex", "Admin", "People Operations", attendance.RoleAdmin, "", 30)
	s.profile("mgr-1", "Maria", "Keller", "Engineering Manager", attendance.RoleManager, "", 30)
	s.profile("emp-1", "Jonas", "Weber", "Backend Engineer", attendance.RoleEmployee, "mgr-1", 30)
	s.profile("emp-2", "Lena", "Fischer", "Frontend Engineer", attendance.RoleEmployee, "mgr-1", 28)
	s.profile("emp-3", "Tom", "Becker", "Working Student", attendance.RoleEmployee, "mgr-1", 20)

	monthStart := s.today.StartOfMonth()
	yesterday := s.today.AddDays(-1)
	for _, id := range []string{"mgr-1", "emp-1", "emp-2"} {
		s.workdays(id, monthStart, yesterday, "8")
	}
	s.workdays("emp-3", monthStart, yesterday, "4")

	next := nextMonday(s.today.EndOfMonth().AddDays(1))
	s.vacation("emp-1", next, next.AddDays(4), attendance.StatusApproved, "mgr-1", "")
	later := nextMonday(next.AddMonths(1))
	s.vacation("emp-2", later, later.AddDays(2), attendance.StatusRequested, "", "")
}

func loadSickSeasonScenario(s *seeder) {
	loadSmallTeamScenario(s)

	monthStart := s.today.StartOfMonth()
	s.sickLeave("emp-1", generic.MaxDate(monthStart, s.today.AddDays(-2)), s.today.AddDays(2))
	s.sickLeave("emp-3", monthStart, monthStart.AddDays(3))
	s.sickLeave("mgr-1", s.today, s.today)
	if d := s.today.AddDays(-1); d.IsBusinessDay() && d.AfterOrEqual(monthStart) {
		s.sickEntry("emp-2", d, "4")
	}
}

func loadOverAllocationScenario(s *seeder) {
	loadSmallTeamScenario(s)

	// emp-3 has 20 days; 15 approved plus 10 requested.
	start := nextMonday(generic.StartOfYear(s.today.Year()).AddMonths(7))
	s.vacation("emp-3", start, start.AddDays(18), attendance.StatusApproved, "mgr-1", "")
	second := nextMonday(start.AddMonths(2))
	s.vacation("emp-3", second, second.AddDays(11), attendance.StatusRequested, "", "")
	s.vacation("emp-3", second.AddMonths(1), second.AddMonths(1).AddDays(1), attendance.StatusRejected, "mgr-1", "team offsite")
}

// =============================================================================
// SEEDER - Writes records directly, first error wins
// =============================================================================

type seeder struct {
	ctx   context.Context
	tx    attendance.Records
	today generic.Date
	now   time.Time
	seq   int
	err   error
}

func (s *seeder) id(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

func (s *seeder) profile(id, given, family, title string, role attendance.Role, managerID string, days int) {
	if s.err != nil {
		return
	}
	s.err = s.tx.CreateProfile(s.ctx, attendance.UserProfile{
		ID:                id,
		Email:             fmt.Sprintf("%s.%s@example.com", strings.ToLower(given), strings.ToLower(family)),
		GivenName:         given,
		FamilyName:        family,
		JobTitle:          title,
		Role:              role,
		ManagerID:         managerID,
		VacationDaysTotal: days,
		Active:            true,
		CreatedAt:         s.now,
		UpdatedAt:         s.now,
	})
}

// workdays logs hours on every business day in [from, to]. Fridays are
// spent in the home office. Nothing is logged when to is before from.
func (s *seeder) workdays(userID string, from, to generic.Date, hours string) {
	if to.Before(from) {
		return
	}
	for _, d := range (generic.Period{Start: from, End: to}).Days() {
		if !d.IsBusinessDay() {
			continue
		}
		loc := attendance.LocationOffice
		if d.Weekday() == time.Friday {
			loc = attendance.LocationHomeOffice
		}
		s.entry(userID, d, hours, attendance.EntryWork, loc)
	}
}

func (s *seeder) sickEntry(userID string, d generic.Date, hours string) {
	s.entry(userID, d, hours, attendance.EntrySick, "")
}

func (s *seeder) entry(userID string, d generic.Date, hours string, typ attendance.EntryType, loc attendance.WorkLocation) {
	if s.err != nil {
		return
	}
	s.err = s.tx.CreateTimeEntry(s.ctx, attendance.TimeEntry{
		ID:        s.id("entry"),
		UserID:    userID,
		Date:      d,
		Hours:     decimal.RequireFromString(hours),
		Type:      typ,
		Location:  loc,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	})
}

func (s *seeder) sickLeave(userID string, start, end generic.Date) {
	if s.err != nil {
		return
	}
	s.err = s.tx.CreateSickLeave(s.ctx, attendance.SickLeave{
		ID:        s.id("sick"),
		UserID:    userID,
		Start:     start,
		End:       end,
		CreatedAt: s.now,
	})
}

func (s *seeder) vacation(userID string, start, end generic.Date, status attendance.VacationStatus, reviewer, reason string) {
	if s.err != nil {
		return
	}
	v := attendance.VacationRequest{
		ID:              s.id("vacation"),
		UserID:          userID,
		Start:           start,
		End:             end,
		BusinessDays:    generic.CountBusinessDays(start, end),
		Status:          status,
		RejectionReason: reason,
		CreatedAt:       s.now,
	}
	if status.Terminal() {
		at := s.now
		v.ReviewedBy = reviewer
		v.ReviewedAt = &at
	}
	s.err = s.tx.CreateVacationRequest(s.ctx, v)
}

func nextMonday(d generic.Date) generic.Date {
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}
