package attendance

import (
	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// SICK STATISTICS - Organisation or team view for admins and managers
// =============================================================================

// ApproxWorkdaysPerMonth is the fixed divisor of the sick rate. It is not the
// exact weekday count of the month that MonthSummary uses.
const ApproxWorkdaysPerMonth = 22

// SickStats is the sick-leave overview of a population for the month that
// contains Today.
type SickStats struct {
	Today              generic.Date
	PopulationSize     int
	CurrentlySick      int
	MonthSickDays      int
	AffectedEmployees  int
	AveragePerAffected float64
	SickRatePercent    float64
}

// ComputeSickStats aggregates sickLeaves of the given population. Leaves of
// users outside the population are ignored. Month sick days are inclusive
// calendar days of each leave clamped to the current month.
func ComputeSickStats(population []UserProfile, sickLeaves []SickLeave, today generic.Date) SickStats {
	members := make(map[string]struct{}, len(population))
	for _, p := range population {
		members[p.ID] = struct{}{}
	}

	window := generic.MonthPeriod(today.Year(), today.Month())
	sickToday := make(map[string]struct{})
	affected := make(map[string]struct{})
	monthDays := 0

	for _, l := range sickLeaves {
		if _, ok := members[l.UserID]; !ok {
			continue
		}
		if l.Period().Contains(today) {
			sickToday[l.UserID] = struct{}{}
		}
		clamped, ok := window.Intersect(l.Period())
		if !ok {
			continue
		}
		monthDays += clamped.Len()
		affected[l.UserID] = struct{}{}
	}

	days := decimal.NewFromInt(int64(monthDays))
	return SickStats{
		Today:              today,
		PopulationSize:     len(members),
		CurrentlySick:      len(sickToday),
		MonthSickDays:      monthDays,
		AffectedEmployees:  len(affected),
		AveragePerAffected: generic.RoundTenth(days, decimal.NewFromInt(int64(len(affected)))),
		SickRatePercent: generic.RoundTenth(
			days.Mul(decimal.NewFromInt(100)),
			decimal.NewFromInt(int64(ApproxWorkdaysPerMonth*len(members))),
		),
	}
}
