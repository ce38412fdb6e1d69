package attendance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func hours(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func vacation(id, user string, start, end generic.Date, status attendance.VacationStatus) attendance.VacationRequest {
	return attendance.VacationRequest{
		ID:           id,
		UserID:       user,
		Start:        start,
		End:          end,
		BusinessDays: generic.CountBusinessDays(start, end),
		Status:       status,
	}
}

func leave(id, user string, start, end generic.Date) attendance.SickLeave {
	return attendance.SickLeave{ID: id, UserID: user, Start: start, End: end}
}

func workEntries(user string, days ...generic.Date) []attendance.TimeEntry {
	out := make([]attendance.TimeEntry, 0, len(days))
	for _, d := range days {
		out = append(out, attendance.TimeEntry{UserID: user, Date: d, Hours: hours("8"), Type: attendance.EntryWork, Location: attendance.LocationOffice})
	}
	return out
}

// =============================================================================
// VACATION BALANCE
// =============================================================================

func TestRemainingVacationDays(t *testing.T) {
	assert.Equal(t, 15, attendance.RemainingVacationDays(30, 10, 5))
	assert.Equal(t, -3, attendance.RemainingVacationDays(0, 0, 3), "over-allocation is reported, not clamped")
}

func TestVacationUsageForYear_BucketsByStatusAndStartYear(t *testing.T) {
	// GIVEN: requests across two years in every status
	requests := []attendance.VacationRequest{
		vacation("a", "u1", date(2026, 3, 2), date(2026, 3, 6), attendance.StatusApproved),   // 5
		vacation("b", "u1", date(2026, 6, 1), date(2026, 6, 2), attendance.StatusRequested),  // 2
		vacation("c", "u1", date(2026, 8, 3), date(2026, 8, 7), attendance.StatusRejected),   // 5, ignored
		vacation("d", "u1", date(2025, 12, 29), date(2026, 1, 2), attendance.StatusApproved), // starts 2025
	}

	// WHEN: usage is computed for 2026
	approved, pending := attendance.VacationUsageForYear(requests, 2026)

	// THEN: rejected and previous-year requests do not count
	assert.Equal(t, 5, approved)
	assert.Equal(t, 2, pending)
}

func TestComputeVacationBalance(t *testing.T) {
	profile := attendance.UserProfile{ID: "u1", VacationDaysTotal: 30}
	requests := []attendance.VacationRequest{
		vacation("a", "u1", date(2026, 3, 2), date(2026, 3, 13), attendance.StatusApproved), // 10
		vacation("b", "u1", date(2026, 6, 1), date(2026, 6, 5), attendance.StatusRequested), // 5
	}

	b := attendance.ComputeVacationBalance(profile, requests, 2026)

	assert.Equal(t, 10, b.Approved)
	assert.Equal(t, 5, b.Pending)
	assert.Equal(t, 15, b.Remaining)
	assert.Equal(t, 33, b.UsedPercent)
	assert.False(t, b.OverAllocated())
	assert.True(t, b.WouldOverAllocate(16))
	assert.False(t, b.WouldOverAllocate(15))
}

func TestComputeVacationBalance_ZeroEntitlement(t *testing.T) {
	b := attendance.ComputeVacationBalance(attendance.UserProfile{ID: "u1"}, nil, 2026)
	assert.Equal(t, 0, b.UsedPercent)
	assert.Equal(t, 0, b.Remaining)
}

// =============================================================================
// MONTH SUMMARY
// =============================================================================

func TestSummarizeMonth_WorkedHours(t *testing.T) {
	// GIVEN: May 2026 has 21 weekdays and 10 full work days are recorded
	var days []generic.Date
	for d := date(2026, 5, 4); len(days) < 10; d = d.AddDays(1) {
		if d.IsBusinessDay() {
			days = append(days, d)
		}
	}
	entries := workEntries("u1", days...)

	// WHEN: the month is summarized
	s := attendance.SummarizeMonth(2026, time.May, entries, nil, nil)

	// THEN: 80 of 168 expected hours, 48%
	assert.True(t, s.WorkedHours.Equal(hours("80")), "worked %s", s.WorkedHours)
	assert.True(t, s.ExpectedHours.Equal(hours("168")), "expected %s", s.ExpectedHours)
	assert.Equal(t, 48, s.CompletionPercent)
}

func TestSummarizeMonth_SickEntriesCountHalfDays(t *testing.T) {
	entries := []attendance.TimeEntry{
		{UserID: "u1", Date: date(2026, 5, 4), Hours: hours("8"), Type: attendance.EntrySick},
		{UserID: "u1", Date: date(2026, 5, 5), Hours: hours("4"), Type: attendance.EntrySick},
		{UserID: "u1", Date: date(2026, 5, 6), Hours: hours("8"), Type: attendance.EntryVacation},
		{UserID: "u1", Date: date(2026, 6, 1), Hours: hours("8"), Type: attendance.EntrySick}, // other month
	}

	s := attendance.SummarizeMonth(2026, time.May, entries, nil, nil)

	assert.True(t, s.SickDaysFromEntries.Equal(hours("1.5")))
	assert.True(t, s.SickDays.Equal(hours("1.5")), "no leave in the month, entries decide")
	assert.True(t, s.WorkedHours.IsZero(), "legacy vacation entries are not work")
}

func TestSummarizeMonth_LeavesWinOverEntries(t *testing.T) {
	// GIVEN: a leave crossing into May and an unrelated sick entry
	leaves := []attendance.SickLeave{leave("l1", "u1", date(2026, 4, 29), date(2026, 5, 5))}
	entries := []attendance.TimeEntry{
		{UserID: "u1", Date: date(2026, 5, 20), Hours: hours("8"), Type: attendance.EntrySick},
	}

	// WHEN
	s := attendance.SummarizeMonth(2026, time.May, entries, nil, leaves)

	// THEN: only May 1, 4 and 5 are business days of the leave inside May
	assert.Equal(t, 3, s.SickDaysFromLeaves)
	assert.True(t, s.SickDays.Equal(decimal.NewFromInt(3)))
}

func TestSummarizeMonth_VacationClampedToMonth(t *testing.T) {
	vacations := []attendance.VacationRequest{
		vacation("a", "u1", date(2026, 4, 27), date(2026, 5, 8), attendance.StatusApproved),  // May 1, 4-8
		vacation("b", "u1", date(2026, 5, 28), date(2026, 6, 3), attendance.StatusRequested), // May 28, 29
		vacation("c", "u1", date(2026, 5, 11), date(2026, 5, 12), attendance.StatusRejected),
	}

	s := attendance.SummarizeMonth(2026, time.May, nil, vacations, nil)

	assert.Equal(t, 6, s.VacationDaysApproved)
	assert.Equal(t, 2, s.VacationDaysPending)
}

// =============================================================================
// SICK STATISTICS
// =============================================================================

func TestComputeSickStats(t *testing.T) {
	// GIVEN: three employees, one sick Feb 10-14, today Feb 12
	population := []attendance.UserProfile{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}
	leaves := []attendance.SickLeave{leave("l1", "u1", date(2026, 2, 10), date(2026, 2, 14))}

	// WHEN
	stats := attendance.ComputeSickStats(population, leaves, date(2026, 2, 12))

	// THEN
	assert.Equal(t, 3, stats.PopulationSize)
	assert.Equal(t, 1, stats.CurrentlySick)
	assert.Equal(t, 5, stats.MonthSickDays)
	assert.Equal(t, 1, stats.AffectedEmployees)
	assert.InDelta(t, 5.0, stats.AveragePerAffected, 1e-9)
	assert.InDelta(t, 7.6, stats.SickRatePercent, 1e-9)
}

func TestComputeSickStats_IgnoresOutsidersAndCountsUsersOnce(t *testing.T) {
	population := []attendance.UserProfile{{ID: "u1"}, {ID: "u2"}}
	leaves := []attendance.SickLeave{
		leave("l1", "u1", date(2026, 2, 11), date(2026, 2, 12)),
		leave("l2", "u1", date(2026, 2, 12), date(2026, 2, 13)),
		leave("l3", "stranger", date(2026, 2, 12), date(2026, 2, 12)),
		leave("l4", "u2", date(2026, 1, 26), date(2026, 2, 2)),
	}

	stats := attendance.ComputeSickStats(population, leaves, date(2026, 2, 12))

	assert.Equal(t, 1, stats.CurrentlySick)
	assert.Equal(t, 6, stats.MonthSickDays, "2 + 2 + Feb 1-2")
	assert.Equal(t, 2, stats.AffectedEmployees)
	assert.InDelta(t, 3.0, stats.AveragePerAffected, 1e-9)
}

func TestComputeSickStats_EmptyPopulation(t *testing.T) {
	stats := attendance.ComputeSickStats(nil, nil, date(2026, 2, 12))
	assert.Zero(t, stats.SickRatePercent)
	assert.Zero(t, stats.AveragePerAffected)
}

// =============================================================================
// REPEATABILITY
// =============================================================================

func TestAccounting_RepeatableAndLeavesInputsAlone(t *testing.T) {
	// GIVEN: one snapshot used by all three computations
	population := []attendance.UserProfile{{ID: "u1", VacationDaysTotal: 30}, {ID: "u2", VacationDaysTotal: 25}}
	entries := append(workEntries("u1", date(2026, 2, 2), date(2026, 2, 3)),
		attendance.TimeEntry{UserID: "u1", Date: date(2026, 2, 4), Hours: hours("4"), Type: attendance.EntrySick})
	vacations := []attendance.VacationRequest{
		vacation("a", "u1", date(2026, 1, 26), date(2026, 2, 6), attendance.StatusApproved),
		vacation("b", "u1", date(2026, 2, 23), date(2026, 2, 27), attendance.StatusRequested),
	}
	leaves := []attendance.SickLeave{
		leave("l1", "u1", date(2026, 2, 10), date(2026, 2, 13)),
		leave("l2", "u2", date(2026, 2, 11), date(2026, 2, 12)),
	}
	today := date(2026, 2, 12)

	populationBefore := append([]attendance.UserProfile(nil), population...)
	entriesBefore := append([]attendance.TimeEntry(nil), entries...)
	vacationsBefore := append([]attendance.VacationRequest(nil), vacations...)
	leavesBefore := append([]attendance.SickLeave(nil), leaves...)

	// WHEN: each computation runs twice
	summary1 := attendance.SummarizeMonth(2026, time.February, entries, vacations, leaves)
	summary2 := attendance.SummarizeMonth(2026, time.February, entries, vacations, leaves)
	stats1 := attendance.ComputeSickStats(population, leaves, today)
	stats2 := attendance.ComputeSickStats(population, leaves, today)
	balance1 := attendance.ComputeVacationBalance(population[0], vacations, 2026)
	balance2 := attendance.ComputeVacationBalance(population[0], vacations, 2026)

	// THEN: identical results
	assert.Equal(t, summary1, summary2)
	assert.Equal(t, stats1, stats2)
	assert.Equal(t, balance1, balance2)

	// AND: the snapshot is untouched
	assert.Equal(t, populationBefore, population)
	assert.Equal(t, entriesBefore, entries)
	assert.Equal(t, vacationsBefore, vacations)
	assert.Equal(t, leavesBefore, leaves)
}

// =============================================================================
// REVIEW WORKFLOW
// =============================================================================

func TestApplyReview_Transitions(t *testing.T) {
	manager := attendance.UserProfile{ID: "m1", Role: attendance.RoleManager}
	req := vacation("v1", "u1", date(2026, 3, 3), date(2026, 3, 4), attendance.StatusRequested)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	approved, err := attendance.ApplyReview(req, manager, attendance.Approve(), at)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusApproved, approved.Status)
	assert.Equal(t, "m1", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)
	assert.True(t, approved.ReviewedAt.Equal(at))
	assert.Equal(t, attendance.StatusRequested, req.Status, "input is not modified")

	rejected, err := attendance.ApplyReview(req, manager, attendance.Reject("  busy season "), at)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusRejected, rejected.Status)
	assert.Equal(t, "busy season", rejected.RejectionReason)
}

func TestApplyReview_Refusals(t *testing.T) {
	manager := attendance.UserProfile{ID: "m1", Role: attendance.RoleManager}
	employee := attendance.UserProfile{ID: "u2", Role: attendance.RoleEmployee}
	req := vacation("v1", "u1", date(2026, 3, 3), date(2026, 3, 4), attendance.StatusRequested)
	at := time.Now()

	_, err := attendance.ApplyReview(req, employee, attendance.Approve(), at)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = attendance.ApplyReview(req, manager, attendance.Reject(""), at)
	assert.ErrorIs(t, err, generic.ErrValidation, "rejection needs a reason")

	for _, status := range []attendance.VacationStatus{attendance.StatusApproved, attendance.StatusRejected} {
		done := req
		done.Status = status
		_, err = attendance.ApplyReview(done, manager, attendance.Approve(), at)
		assert.ErrorIs(t, err, generic.ErrValidation, "no transition out of %s", status)
	}
}

func TestParseReviewAction(t *testing.T) {
	a, err := attendance.ParseReviewAction(" Approve ", "")
	require.NoError(t, err)
	assert.Equal(t, attendance.VerbApprove, a.Verb)

	_, err = attendance.ParseReviewAction("reject", "   ")
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = attendance.ParseReviewAction("escalate", "")
	assert.ErrorIs(t, err, generic.ErrValidation)
}
