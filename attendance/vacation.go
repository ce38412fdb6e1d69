package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// VACATION REQUESTS - Submission, cancellation and review
// =============================================================================

// VacationInput is the input of SubmitVacationRequest.
type VacationInput struct {
	Start   generic.Date
	End     generic.Date
	Comment string
}

// VacationQuery narrows ListVacationRequests. Year selects requests that
// start in that year; From/To select requests overlapping the range.
type VacationQuery struct {
	Year int
	From generic.Date
	To   generic.Date
}

// Submission is the result of SubmitVacationRequest. OverAllocated is an
// advisory flag: the request was stored, but the year's balance is now
// negative.
type Submission struct {
	Request       VacationRequest
	Balance       VacationBalance
	OverAllocated bool
}

// ReviewItem is a request in a reviewer's queue together with its owner.
type ReviewItem struct {
	Request   VacationRequest
	Requester UserProfile
}

// ListVacationRequests returns the actor's own requests ordered by start
// date.
func (s *Service) ListVacationRequests(ctx context.Context, actor UserProfile, q VacationQuery) ([]VacationRequest, error) {
	const action = "list vacation requests"
	if err := checkActor(actor, action); err != nil {
		return nil, err
	}
	f := VacationFilter{UserIDs: []string{actor.ID}, From: q.From, To: q.To}
	if q.Year != 0 {
		year := generic.YearPeriod(q.Year)
		f.From, f.To = generic.MaxDate(f.From, year.Start), year.End
		if !q.To.IsZero() {
			f.To = generic.MinDate(q.To, year.End)
		}
	}
	requests, err := s.store.ListVacationRequests(ctx, f)
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	if q.Year != 0 {
		kept := requests[:0]
		for _, r := range requests {
			if r.Start.Year() == q.Year {
				kept = append(kept, r)
			}
		}
		requests = kept
	}
	sort.SliceStable(requests, func(i, j int) bool { return requests[i].Start.Before(requests[j].Start) })
	return requests, nil
}

// ListReviewQueue returns the requests actor may review in the given status
// (requested when empty): a manager's direct reports, or everyone for an
// admin. Ordered by start date.
func (s *Service) ListReviewQueue(ctx context.Context, actor UserProfile, status VacationStatus) ([]ReviewItem, error) {
	const action = "list review queue"
	if err := checkActor(actor, action); err != nil {
		return nil, err
	}
	if err := requireReviewer(actor, action); err != nil {
		return nil, err
	}
	if status == "" {
		status = StatusRequested
	}
	if !status.Valid() {
		return nil, generic.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	scope, err := teamScope(actor, "")
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.ListProfiles(ctx, scope)
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	byID := make(map[string]UserProfile, len(profiles))
	for _, p := range profiles {
		if p.ID == actor.ID {
			continue
		}
		byID[p.ID] = p
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	requests, err := s.store.ListVacationRequests(ctx, VacationFilter{UserIDs: ids, Statuses: []VacationStatus{status}})
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	items := make([]ReviewItem, 0, len(requests))
	for _, r := range requests {
		items = append(items, ReviewItem{Request: r, Requester: byID[r.UserID]})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Request.Start.Before(items[j].Request.Start) })
	return items, nil
}

// SubmitVacationRequest stores a new request for the actor in status
// requested. The business-day count is computed here and frozen.
func (s *Service) SubmitVacationRequest(ctx context.Context, actor UserProfile, in VacationInput) (Submission, error) {
	const action = "submit vacation request"
	if err := checkActor(actor, action); err != nil {
		return Submission{}, err
	}
	if err := validateRange(in.Start, in.End); err != nil {
		return Submission{}, err
	}
	if err := validateComment(in.Comment); err != nil {
		return Submission{}, err
	}
	days := generic.CountBusinessDays(in.Start, in.End)
	if days < 1 {
		return Submission{}, generic.NewValidationError("end_date", "the range contains no business days")
	}

	req := VacationRequest{
		ID:           s.newID(),
		UserID:       actor.ID,
		Start:        in.Start,
		End:          in.End,
		BusinessDays: days,
		Comment:      in.Comment,
		Status:       StatusRequested,
		CreatedAt:    s.timestamp(),
	}

	var sub Submission
	err := s.store.WithTx(ctx, func(tx Records) error {
		overlapping, err := tx.ListVacationRequests(ctx, VacationFilter{
			UserIDs:  []string{actor.ID},
			Statuses: []VacationStatus{StatusRequested, StatusApproved},
			From:     req.Start,
			To:       req.End,
		})
		if err != nil {
			return err
		}
		if conflict := findVacationOverlap(overlapping, req.Period()); conflict != nil {
			return conflict
		}

		year := req.Start.Year()
		sameYear, err := tx.ListVacationRequests(ctx, VacationFilter{
			UserIDs: []string{actor.ID},
			From:    generic.StartOfYear(year),
			To:      generic.EndOfYear(year),
		})
		if err != nil {
			return err
		}
		before := ComputeVacationBalance(actor, sameYear, year)

		if err := tx.CreateVacationRequest(ctx, req); err != nil {
			return err
		}
		sub = Submission{
			Request:       req,
			Balance:       ComputeVacationBalance(actor, append(sameYear, req), year),
			OverAllocated: before.WouldOverAllocate(days),
		}
		return nil
	})
	if err != nil {
		return Submission{}, s.storeFailure(action, err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"user_id":       actor.ID,
		"request_id":    req.ID,
		"business_days": days,
	})
	if sub.OverAllocated {
		entry.WithField("remaining", sub.Balance.Remaining).Warn("vacation request exceeds remaining allowance")
	} else {
		entry.Info("vacation request submitted")
	}
	return sub, nil
}

// CancelVacationRequest deletes one of the actor's requests while it is
// still requested.
func (s *Service) CancelVacationRequest(ctx context.Context, actor UserProfile, id string) error {
	const action = "cancel vacation request"
	if err := checkActor(actor, action); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx Records) error {
		req, err := tx.GetVacationRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.UserID != actor.ID {
			return generic.Forbidden(actor.ID, action, "requests can only be cancelled by their owner")
		}
		if req.Status != StatusRequested {
			return generic.NewValidationError("status", fmt.Sprintf("only requested vacations can be cancelled; this one is %s", req.Status))
		}
		return tx.DeleteVacationRequest(ctx, id)
	})
	if err != nil {
		return s.storeFailure(action, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": actor.ID, "request_id": id}).Info("vacation request cancelled")
	return nil
}

// ReviewVacationRequest approves or rejects a request.
func (s *Service) ReviewVacationRequest(ctx context.Context, actor UserProfile, id string, act ReviewAction) (VacationRequest, error) {
	const action = "review vacation request"
	if err := checkActor(actor, action); err != nil {
		return VacationRequest{}, err
	}
	if err := requireReviewer(actor, action); err != nil {
		return VacationRequest{}, err
	}
	if err := act.Validate(); err != nil {
		return VacationRequest{}, err
	}

	var reviewed VacationRequest
	err := s.store.WithTx(ctx, func(tx Records) error {
		req, err := tx.GetVacationRequest(ctx, id)
		if err != nil {
			return err
		}
		owner, err := tx.GetProfile(ctx, req.UserID)
		if err != nil {
			return err
		}
		if err := checkReviewScope(actor, owner); err != nil {
			return err
		}
		next, err := ApplyReview(req, actor, act, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateVacationRequest(ctx, next); err != nil {
			return err
		}
		reviewed = next
		return nil
	})
	if err != nil {
		return VacationRequest{}, s.storeFailure(action, err)
	}

	s.log.WithFields(logrus.Fields{
		"reviewer_id": actor.ID,
		"request_id":  id,
		"status":      string(reviewed.Status),
	}).Info("vacation request reviewed")
	return reviewed, nil
}
