package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// DASHBOARDS - Load a visible snapshot, then aggregate
// =============================================================================

// MonthSummary summarizes userID's month (the actor when empty). Managers may
// view their direct reports; admins anyone.
func (s *Service) MonthSummary(ctx context.Context, actor UserProfile, userID string, year int, month time.Month) (MonthSummary, error) {
	const action = "view month summary"
	if err := checkActor(actor, action); err != nil {
		return MonthSummary{}, err
	}
	if month < time.January || month > time.December {
		return MonthSummary{}, generic.NewValidationError("month", fmt.Sprintf("invalid month %d", month))
	}
	target, err := visibleProfile(ctx, s.store, actor, userID)
	if err != nil {
		return MonthSummary{}, s.storeFailure(action, err)
	}

	window := generic.MonthPeriod(year, month)
	entries, err := s.store.ListTimeEntries(ctx, EntryFilter{UserID: target.ID, From: window.Start, To: window.End})
	if err != nil {
		return MonthSummary{}, s.storeFailure(action, err)
	}
	vacations, err := s.store.ListVacationRequests(ctx, VacationFilter{UserIDs: []string{target.ID}, From: window.Start, To: window.End})
	if err != nil {
		return MonthSummary{}, s.storeFailure(action, err)
	}
	leaves, err := s.store.ListSickLeaves(ctx, LeaveFilter{UserIDs: []string{target.ID}, From: window.Start, To: window.End})
	if err != nil {
		return MonthSummary{}, s.storeFailure(action, err)
	}
	return SummarizeMonth(year, month, entries, vacations, leaves), nil
}

// VacationBalance returns userID's balance for year (the actor when empty).
func (s *Service) VacationBalance(ctx context.Context, actor UserProfile, userID string, year int) (VacationBalance, error) {
	const action = "view vacation balance"
	if err := checkActor(actor, action); err != nil {
		return VacationBalance{}, err
	}
	target, err := visibleProfile(ctx, s.store, actor, userID)
	if err != nil {
		return VacationBalance{}, s.storeFailure(action, err)
	}
	window := generic.YearPeriod(year)
	requests, err := s.store.ListVacationRequests(ctx, VacationFilter{UserIDs: []string{target.ID}, From: window.Start, To: window.End})
	if err != nil {
		return VacationBalance{}, s.storeFailure(action, err)
	}
	return ComputeVacationBalance(target, requests, year), nil
}

// SickStatistics computes the sick-leave overview for today's month. Admins
// see the whole organisation or, with managerID, one team; managers see
// their own team.
func (s *Service) SickStatistics(ctx context.Context, actor UserProfile, managerID string) (SickStats, error) {
	const action = "view sick statistics"
	if err := checkActor(actor, action); err != nil {
		return SickStats{}, err
	}
	scope, err := teamScope(actor, managerID)
	if err != nil {
		return SickStats{}, err
	}
	population, err := s.store.ListProfiles(ctx, scope)
	if err != nil {
		return SickStats{}, s.storeFailure(action, err)
	}

	today := s.Today()
	window := generic.MonthPeriod(today.Year(), today.Month())
	leaves, err := s.store.ListSickLeaves(ctx, LeaveFilter{
		UserIDs: profileIDs(population),
		From:    window.Start,
		To:      window.End,
	})
	if err != nil {
		return SickStats{}, s.storeFailure(action, err)
	}
	return ComputeSickStats(population, leaves, today), nil
}
