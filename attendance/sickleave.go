package attendance

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// SICK LEAVES - Owner-created ranges, role-scoped reads
// =============================================================================

// SickLeaveInput is the input of CreateSickLeave.
type SickLeaveInput struct {
	Start   generic.Date
	End     generic.Date
	Comment string
}

// SickLeaveQuery narrows ListSickLeaves. Which fields an actor may use
// depends on the role:
//   - employee: own leaves only; the other fields must be empty
//   - manager: own leaves, or ForTeam for direct reports (UserID narrows to
//     one report)
//   - admin: everything, one UserID, or one ManagerID's team
type SickLeaveQuery struct {
	UserID    string
	ManagerID string
	ForTeam   bool
	From      generic.Date
	To        generic.Date
}

// ListSickLeaves returns the leaves visible to actor that overlap
// [From, To], newest first.
func (s *Service) ListSickLeaves(ctx context.Context, actor UserProfile, q SickLeaveQuery) ([]SickLeave, error) {
	const action = "list sick leaves"
	if err := checkActor(actor, action); err != nil {
		return nil, err
	}
	userIDs, err := s.leaveScope(ctx, actor, q)
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	leaves, err := s.store.ListSickLeaves(ctx, LeaveFilter{UserIDs: userIDs, From: q.From, To: q.To})
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].Start.After(leaves[j].Start) })
	return leaves, nil
}

// leaveScope resolves the user ids a sick-leave query may cover. A nil
// result means every user.
func (s *Service) leaveScope(ctx context.Context, actor UserProfile, q SickLeaveQuery) ([]string, error) {
	const action = "list sick leaves"
	switch actor.Role {
	case RoleEmployee:
		if (q.UserID != "" && q.UserID != actor.ID) || q.ManagerID != "" || q.ForTeam {
			return nil, generic.Forbidden(actor.ID, action, "employees can only view their own sick leaves")
		}
		return []string{actor.ID}, nil

	case RoleManager:
		if q.ManagerID != "" && q.ManagerID != actor.ID {
			return nil, generic.Forbidden(actor.ID, action, "managers can only view their own team")
		}
		if q.UserID == actor.ID || (q.UserID == "" && !q.ForTeam && q.ManagerID == "") {
			return []string{actor.ID}, nil
		}
		if q.UserID != "" {
			if _, err := visibleProfile(ctx, s.store, actor, q.UserID); err != nil {
				return nil, err
			}
			return []string{q.UserID}, nil
		}
		team, err := s.store.ListProfiles(ctx, ProfileFilter{ManagerID: actor.ID})
		if err != nil {
			return nil, err
		}
		return profileIDs(team), nil

	case RoleAdmin:
		if q.UserID != "" {
			return []string{q.UserID}, nil
		}
		if q.ManagerID != "" {
			team, err := s.store.ListProfiles(ctx, ProfileFilter{ManagerID: q.ManagerID})
			if err != nil {
				return nil, err
			}
			return profileIDs(team), nil
		}
		return nil, nil

	default:
		return nil, generic.Forbidden(actor.ID, action, "unknown role")
	}
}

// CreateSickLeave records a sick leave for the actor. It must not start in
// the future and must not overlap another of the actor's leaves.
func (s *Service) CreateSickLeave(ctx context.Context, actor UserProfile, in SickLeaveInput) (SickLeave, error) {
	const action = "create sick leave"
	if err := checkActor(actor, action); err != nil {
		return SickLeave{}, err
	}
	if err := validateRange(in.Start, in.End); err != nil {
		return SickLeave{}, err
	}
	if err := validateNotFuture("start_date", in.Start, s.Today()); err != nil {
		return SickLeave{}, err
	}
	if err := validateComment(in.Comment); err != nil {
		return SickLeave{}, err
	}

	l := SickLeave{
		ID:        s.newID(),
		UserID:    actor.ID,
		Start:     in.Start,
		End:       in.End,
		Comment:   in.Comment,
		CreatedAt: s.timestamp(),
	}
	err := s.store.WithTx(ctx, func(tx Records) error {
		existing, err := tx.ListSickLeaves(ctx, LeaveFilter{UserIDs: []string{actor.ID}, From: l.Start, To: l.End})
		if err != nil {
			return err
		}
		if conflict := findLeaveOverlap(existing, l.Period()); conflict != nil {
			return conflict
		}
		return tx.CreateSickLeave(ctx, l)
	})
	if err != nil {
		return SickLeave{}, s.storeFailure(action, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"period":  l.Period().String(),
	}).Info("sick leave recorded")
	return l, nil
}

// DeleteSickLeave removes one of the actor's own leaves.
func (s *Service) DeleteSickLeave(ctx context.Context, actor UserProfile, id string) error {
	const action = "delete sick leave"
	if err := checkActor(actor, action); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx Records) error {
		l, err := tx.GetSickLeave(ctx, id)
		if err != nil {
			return err
		}
		if l.UserID != actor.ID {
			return generic.Forbidden(actor.ID, action, "sick leaves can only be deleted by their owner")
		}
		return tx.DeleteSickLeave(ctx, id)
	})
	return s.storeFailure(action, err)
}

// =============================================================================
// OVERLAP CHECKS
// =============================================================================

func findLeaveOverlap(existing []SickLeave, p generic.Period) *generic.ConflictError {
	for _, l := range existing {
		if l.Period().Overlaps(p) {
			return &generic.ConflictError{
				Kind:       "sick_leave",
				ExistingID: l.ID,
				Existing:   l.Period(),
				Reason:     "the dates overlap an existing sick leave",
			}
		}
	}
	return nil
}

func findVacationOverlap(existing []VacationRequest, p generic.Period) *generic.ConflictError {
	for _, v := range existing {
		if !v.Status.BlocksOverlap() {
			continue
		}
		if v.Period().Overlaps(p) {
			return &generic.ConflictError{
				Kind:       "vacation_request",
				ExistingID: v.ID,
				Existing:   v.Period(),
				Reason:     "the dates overlap an existing " + string(v.Status) + " vacation request",
			}
		}
	}
	return nil
}
