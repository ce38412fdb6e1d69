package attendance

import (
	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// LEAVE BALANCE - Remaining vacation allowance for a year
// =============================================================================

// RemainingVacationDays returns entitlement - approved - pending. The result
// is negative when more days were granted or requested than the entitlement
// allows; that is an over-allocation signal, not an error.
func RemainingVacationDays(entitlement, approved, pending int) int {
	return entitlement - approved - pending
}

// VacationUsageForYear sums the business days of the requests whose start
// date lies in year, split into approved and still-requested days. Rejected
// requests are ignored. The stored BusinessDays value is used as-is; it is
// never re-derived from the dates.
func VacationUsageForYear(requests []VacationRequest, year int) (approved, pending int) {
	for _, r := range requests {
		if r.Start.Year() != year {
			continue
		}
		switch r.Status {
		case StatusApproved:
			approved += r.BusinessDays
		case StatusRequested:
			pending += r.BusinessDays
		case StatusRejected:
		}
	}
	return approved, pending
}

// VacationBalance is the vacation allowance of one user for one year.
type VacationBalance struct {
	UserID      string
	Year        int
	Entitlement int
	Approved    int
	Pending     int
	Remaining   int
	// UsedPercent is approved / entitlement, rounded; 0 without entitlement.
	UsedPercent int
}

// ComputeVacationBalance builds the balance of a user for year from their
// requests.
func ComputeVacationBalance(profile UserProfile, requests []VacationRequest, year int) VacationBalance {
	approved, pending := VacationUsageForYear(requests, year)
	return VacationBalance{
		UserID:      profile.ID,
		Year:        year,
		Entitlement: profile.VacationDaysTotal,
		Approved:    approved,
		Pending:     pending,
		Remaining:   RemainingVacationDays(profile.VacationDaysTotal, approved, pending),
		UsedPercent: generic.Percent(decimal.NewFromInt(int64(approved)), decimal.NewFromInt(int64(profile.VacationDaysTotal))),
	}
}

// WouldOverAllocate reports whether requesting days more would push the
// remaining balance below zero. Callers surface this as a warning only.
func (b VacationBalance) WouldOverAllocate(days int) bool {
	return b.Remaining-days < 0
}

// OverAllocated reports whether the balance is already below zero.
func (b VacationBalance) OverAllocated() bool {
	return b.Remaining < 0
}
