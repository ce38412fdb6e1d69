/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Actor resolution (401/403)
- Error mapping (400/403/404/409/503)
- Time entry, vacation and dashboard round trips through the router
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/store/memory"
)

// fixedNow is Tuesday 2026-03-10, noon UTC.
var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	t      *testing.T
	store  *memory.Store
	hook   *test.Hook
	router http.Handler
}

// newAPI seeds admin a1, manager m1 with reports u1 and u2, and u3 with no
// manager and 2 vacation days.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.New()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	seq := 0
	svc := attendance.NewService(store, logger, attendance.Options{
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	f := &apiFixture{
		t:      t,
		store:  store,
		hook:   hook,
		router: NewRouter(NewHandler(svc, logger), RouterOptions{CORSOrigins: []string{"*"}, Scenarios: true}),
	}

	f.seed("a1", "admin@example.com", "Admin", attendance.RoleAdmin, "", 30)
	f.seed("m1", "mona@example.com", "Manager", attendance.RoleManager, "", 30)
	f.seed("u1", "ada@example.com", "Lovelace", attendance.RoleEmployee, "m1", 30)
	f.seed("u2", "grace@example.com", "Hopper", attendance.RoleEmployee, "m1", 30)
	f.seed("u3", "solo@example.com", "Solo", attendance.RoleEmployee, "", 2)
	return f
}

func (f *apiFixture) seed(id, email, family string, role attendance.Role, managerID string, days int) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateProfile(context.Background(), attendance.UserProfile{
		ID:                id,
		Email:             email,
		GivenName:         "Test",
		FamilyName:        family,
		Role:              role,
		ManagerID:         managerID,
		VacationDaysTotal: days,
		Active:            true,
		CreatedAt:         fixedNow,
		UpdatedAt:         fixedNow,
	}))
}

// do sends a request as actor (no header when empty). body may be a string
// of raw JSON or a value to encode.
func (f *apiFixture) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// =============================================================================
// ACTOR AND ERRORS
// =============================================================================

func TestRequireActor(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/profile", "ghost", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[ErrorResponse](t, rec).Code)
}

func TestGetProfile(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodGet, "/api/profile", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[ProfileDTO](t, rec)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Test Lovelace", p.FullName)
	assert.Equal(t, attendance.RoleEmployee, p.Role)
	assert.Contains(t, rec.Body.String(), `"role":"employee"`)
}

func TestStoreOutage_Returns503WithoutDetails(t *testing.T) {
	// GIVEN: the store fails every operation
	f := newAPI(t)
	f.store.FailWith(errors.New("disk on fire"))

	// WHEN
	rec := f.do(http.MethodGet, "/api/time-entries", "u1", nil)

	// THEN: a generic retryable error, the cause only in the log
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "unavailable", resp.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	require.NotEmpty(t, f.hook.AllEntries())
}

func TestInvalidBody_Returns400(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/time-entries", "u1", `{"date":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, rec).Code)
}

func TestUnknownRecord_Returns404(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodDelete, "/api/sick-leaves/nope", "u1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func TestTimeEntries_CreateListAndConflict(t *testing.T) {
	f := newAPI(t)
	body := map[string]any{"date": "2026-03-09", "hours": "7.5", "entry_type": "work", "location": "office"}

	// WHEN: an entry is created
	rec := f.do(http.MethodPost, "/api/time-entries", "u1", body)

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[TimeEntryDTO](t, rec)
	assert.Equal(t, "2026-03-09", created.Date.String())
	assert.True(t, created.Hours.Equal(decimal.RequireFromString("7.5")))

	// AND: it is listed in its window
	rec = f.do(http.MethodGet, "/api/time-entries?from=2026-03-01&to=2026-03-31", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TimeEntryDTO](t, rec), 1)

	// AND: a second work entry on the same day conflicts
	rec = f.do(http.MethodPost, "/api/time-entries", "u1", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Code)
}

func TestTimeEntries_DefaultTypeIsWork(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/time-entries", "u1",
		map[string]any{"date": "2026-03-09", "hours": "8", "location": "office"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "work", decode[TimeEntryDTO](t, rec).Type)
}

func TestTimeEntries_Validation(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/time-entries", "u1",
		map[string]any{"date": "2026-03-11", "hours": 8, "entry_type": "work", "location": "office"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "future dates are refused")
	assert.Equal(t, "validation", decode[ErrorResponse](t, rec).Code)

	rec = f.do(http.MethodGet, "/api/time-entries?from=yesterday", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeEntries_OwnerOnly(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/time-entries", "u1",
		map[string]any{"date": "2026-03-09", "hours": "8", "entry_type": "sick"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[TimeEntryDTO](t, rec).ID

	rec = f.do(http.MethodPatch, "/api/time-entries/"+id, "u2", map[string]any{"hours": "4"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPatch, "/api/time-entries/"+id, "u1", map[string]any{"hours": "4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[TimeEntryDTO](t, rec).Hours.Equal(decimal.NewFromInt(4)))

	rec = f.do(http.MethodDelete, "/api/time-entries/"+id, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// VACATION WORKFLOW
// =============================================================================

func TestVacationWorkflow(t *testing.T) {
	f := newAPI(t)

	// GIVEN: u1 asks for Mon 16 - Fri 20 March
	rec := f.do(http.MethodPost, "/api/vacation-requests", "u1",
		map[string]any{"start_date": "2026-03-16", "end_date": "2026-03-20"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[VacationSubmissionDTO](t, rec)
	assert.Equal(t, 5, sub.Request.BusinessDays)
	assert.Equal(t, "requested", sub.Request.Status)
	assert.False(t, sub.OverAllocated)
	assert.Empty(t, sub.Warning)
	id := sub.Request.ID

	// WHEN: the manager opens the queue
	rec = f.do(http.MethodGet, "/api/vacation-requests/review", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[[]ReviewItemDTO](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, "Test Lovelace", queue[0].RequesterName)

	// THEN: rejection needs a reason, employees cannot review
	rec = f.do(http.MethodPatch, "/api/vacation-requests/"+id+"/review", "m1", map[string]string{"action": "reject"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPatch, "/api/vacation-requests/"+id+"/review", "u2", map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// AND: the manager approves
	rec = f.do(http.MethodPatch, "/api/vacation-requests/"+id+"/review", "m1", map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[VacationRequestDTO](t, rec)
	assert.Equal(t, "approved", reviewed.Status)
	assert.Equal(t, "m1", reviewed.ReviewedBy)

	// AND: overlapping requests conflict with the approved one
	rec = f.do(http.MethodPost, "/api/vacation-requests", "u1",
		map[string]any{"start_date": "2026-03-18", "end_date": "2026-03-19"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		Details ConflictDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, "vacation_request", conflict.Details.Kind)
	assert.Equal(t, id, conflict.Details.ExistingID)

	// AND: the balance counts the approved days
	rec = f.do(http.MethodGet, "/api/dashboard/vacation?year=2026", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[VacationBalanceDTO](t, rec)
	assert.Equal(t, 5, b.Approved)
	assert.Equal(t, 25, b.Remaining)
}

func TestSubmitVacation_OverAllocationWarns(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/vacation-requests", "u3",
		map[string]any{"start_date": "2026-03-16", "end_date": "2026-03-20"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[VacationSubmissionDTO](t, rec)
	assert.True(t, sub.OverAllocated)
	assert.Equal(t, -3, sub.Balance.Remaining)
	assert.NotEmpty(t, sub.Warning)
}

func TestCancelVacation(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/vacation-requests", "u1",
		map[string]any{"start_date": "2026-04-06", "end_date": "2026-04-07"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[VacationSubmissionDTO](t, rec).Request.ID

	rec = f.do(http.MethodDelete, "/api/vacation-requests/"+id, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/api/vacation-requests?year=2026", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]VacationRequestDTO](t, rec))
}

// =============================================================================
// SICK LEAVES AND DASHBOARDS
// =============================================================================

func TestSickLeaves_TeamView(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/sick-leaves", "u1",
		map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-04", "comment": "flu"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[SickLeaveDTO](t, rec).BusinessDays)

	rec = f.do(http.MethodGet, "/api/sick-leaves?for_team=true", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SickLeaveDTO](t, rec), 1)

	rec = f.do(http.MethodGet, "/api/sick-leaves?user_id=u1", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMonthSummary(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/time-entries", "u1",
		map[string]any{"date": "2026-03-09", "hours": "8", "entry_type": "work", "location": "home-office"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: the manager views the report's March
	rec = f.do(http.MethodGet, "/api/dashboard/month?month=2026-03&user_id=u1", "m1", nil)

	// THEN: 22 weekdays, 8 of 176 hours
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decode[MonthSummaryDTO](t, rec)
	assert.Equal(t, "2026-03", s.Month)
	assert.True(t, s.ExpectedHours.Equal(decimal.NewFromInt(176)), "expected %s", s.ExpectedHours)
	assert.True(t, s.WorkedHours.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, 5, s.CompletionPercent, "8 of 176 hours rounds up to 5")

	rec = f.do(http.MethodGet, "/api/dashboard/month?month=03-2026", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSickStatistics_AdminOnlyScope(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodGet, "/api/admin/sick-stats", "a1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[SickStatsDTO](t, rec)
	assert.Equal(t, "2026-03-10", stats.Today.String())

	rec = f.do(http.MethodGet, "/api/admin/sick-stats", "u1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// PROFILES AND LOCKOUT
// =============================================================================

func TestInviteAndUpdateProfile(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/profiles", "a1", map[string]any{
		"email": "new@example.com", "given_name": "New", "family_name": "Hire", "role": "employee", "manager_id": "m1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ProfileDTO](t, rec)
	assert.Equal(t, 30, created.VacationDaysTotal)

	rec = f.do(http.MethodPatch, "/api/profiles/"+created.ID, "a1", map[string]any{"vacation_days_total": 25})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, decode[ProfileDTO](t, rec).VacationDaysTotal)

	rec = f.do(http.MethodPost, "/api/profiles", "m1", map[string]any{"email": "x@example.com", "given_name": "X", "family_name": "Y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPatch, "/api/profiles/"+created.ID, "a1", map[string]any{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLockout(t *testing.T) {
	f := newAPI(t)
	body := map[string]string{"email": "ADA@example.com"}

	var status LoginStatusDTO
	for i := 0; i < attendance.DefaultMaxFailedLogins; i++ {
		rec := f.do(http.MethodPost, "/api/lockout/failed", "", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		status = decode[LoginStatusDTO](t, rec)
	}
	assert.True(t, status.Locked)
	assert.Zero(t, status.RemainingAttempts)

	rec := f.do(http.MethodPost, "/api/lockout/check", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[LoginStatusDTO](t, rec).Locked)

}

func TestLockoutReset_OnlyForTheActingUser(t *testing.T) {
	// GIVEN: two failed logins for grace
	f := newAPI(t)
	grace := map[string]string{"email": "grace@example.com"}
	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodPost, "/api/lockout/failed", "", grace)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// WHEN: an anonymous caller tries to clear the counter
	rec := f.do(http.MethodPost, "/api/lockout/reset", "", map[string]string{"user_id": "u2"})

	// THEN: refused, the counter stands
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(http.MethodPost, "/api/lockout/check", "", grace)
	assert.Equal(t, 2, decode[LoginStatusDTO](t, rec).FailedAttempts)

	// AND: another user naming grace in the body resets only their own
	rec = f.do(http.MethodPost, "/api/lockout/reset", "u1", map[string]string{"user_id": "u2"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodPost, "/api/lockout/check", "", grace)
	assert.Equal(t, 2, decode[LoginStatusDTO](t, rec).FailedAttempts)

	// AND: grace clears the counter after signing in
	rec = f.do(http.MethodPost, "/api/lockout/reset", "u2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodPost, "/api/lockout/check", "", grace)
	assert.Zero(t, decode[LoginStatusDTO](t, rec).FailedAttempts)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/time-entries", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
