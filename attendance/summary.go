package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// MONTH SUMMARY - Hours and absence days of one user in one month
// =============================================================================

var halfDay = decimal.NewFromFloat(0.5)

// MonthSummary is the calendar widget aggregate for one user and month.
type MonthSummary struct {
	Year  int
	Month time.Month

	ExpectedHours decimal.Decimal
	WorkedHours   decimal.Decimal

	// SickDaysFromEntries is the legacy half/full-day count from sick-typed
	// time entries. SickDaysFromLeaves counts business days of sick leaves.
	SickDaysFromEntries decimal.Decimal
	SickDaysFromLeaves  int
	// SickDays is SickDaysFromLeaves when any sick leave touches the month,
	// SickDaysFromEntries otherwise.
	SickDays decimal.Decimal

	VacationDaysApproved int
	VacationDaysPending  int

	CompletionPercent int
}

// SummarizeMonth aggregates the records of one user for the given month.
// Records outside the month are ignored, so callers may pass wider
// collections. The inputs are not modified.
func SummarizeMonth(
	year int,
	month time.Month,
	entries []TimeEntry,
	vacations []VacationRequest,
	sickLeaves []SickLeave,
) MonthSummary {
	window := generic.MonthPeriod(year, month)

	s := MonthSummary{
		Year:                year,
		Month:               month,
		ExpectedHours:       decimal.NewFromInt(int64(generic.WeekdaysInMonth(year, month))).Mul(generic.StandardDayHours),
		WorkedHours:         decimal.Zero,
		SickDaysFromEntries: decimal.Zero,
	}

	for _, e := range entries {
		if !window.Contains(e.Date) {
			continue
		}
		switch e.Type {
		case EntryWork:
			s.WorkedHours = s.WorkedHours.Add(e.Hours)
		case EntrySick:
			if e.Hours.GreaterThanOrEqual(generic.StandardDayHours) {
				s.SickDaysFromEntries = s.SickDaysFromEntries.Add(decimal.NewFromInt(1))
			} else {
				s.SickDaysFromEntries = s.SickDaysFromEntries.Add(halfDay)
			}
		case EntryVacation:
			// legacy rows; vacation is counted from requests below
		}
	}

	leavesInMonth := false
	for _, l := range sickLeaves {
		clamped, ok := window.Intersect(l.Period())
		if !ok {
			continue
		}
		leavesInMonth = true
		s.SickDaysFromLeaves += clamped.BusinessDays()
	}
	if leavesInMonth {
		s.SickDays = decimal.NewFromInt(int64(s.SickDaysFromLeaves))
	} else {
		s.SickDays = s.SickDaysFromEntries
	}

	for _, v := range vacations {
		clamped, ok := window.Intersect(v.Period())
		if !ok {
			continue
		}
		switch v.Status {
		case StatusApproved:
			s.VacationDaysApproved += clamped.BusinessDays()
		case StatusRequested:
			s.VacationDaysPending += clamped.BusinessDays()
		case StatusRejected:
		}
	}

	s.CompletionPercent = generic.Percent(s.WorkedHours, s.ExpectedHours)
	return s
}
