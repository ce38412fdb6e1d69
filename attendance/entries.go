package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// TIME ENTRIES - Owner-only hour logging
// =============================================================================

// TimeEntryInput is the input of CreateTimeEntry.
type TimeEntryInput struct {
	Date     generic.Date
	Hours    decimal.Decimal
	Type     EntryType
	Location WorkLocation
	Comment  string
}

// TimeEntryPatch changes the non-nil fields of an entry. Date and type are
// fixed once created.
type TimeEntryPatch struct {
	Hours    *decimal.Decimal
	Location *WorkLocation
	Comment  *string
}

// ListTimeEntries returns the actor's entries dated in [from, to], ordered
// by date. Zero bounds are open.
func (s *Service) ListTimeEntries(ctx context.Context, actor UserProfile, from, to generic.Date) ([]TimeEntry, error) {
	const action = "list time entries"
	if err := checkActor(actor, action); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeEntries(ctx, EntryFilter{UserID: actor.ID, From: from, To: to})
	if err != nil {
		return nil, s.storeFailure(action, err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries, nil
}

// CreateTimeEntry records hours for the actor. There is at most one entry
// per user, date and type.
func (s *Service) CreateTimeEntry(ctx context.Context, actor UserProfile, in TimeEntryInput) (TimeEntry, error) {
	const action = "create time entry"
	if err := checkActor(actor, action); err != nil {
		return TimeEntry{}, err
	}

	now := s.timestamp()
	e := TimeEntry{
		ID:        s.newID(),
		UserID:    actor.ID,
		Date:      in.Date,
		Hours:     in.Hours,
		Type:      in.Type,
		Location:  in.Location,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateEntryShape(&e, s.Today()); err != nil {
		return TimeEntry{}, err
	}

	err := s.store.WithTx(ctx, func(tx Records) error {
		existing, err := tx.ListTimeEntries(ctx, EntryFilter{UserID: actor.ID, From: e.Date, To: e.Date, Type: e.Type})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &generic.ConflictError{
				Kind:       "time_entry",
				ExistingID: existing[0].ID,
				Reason:     fmt.Sprintf("a %s entry for %s already exists", e.Type, e.Date),
			}
		}
		return tx.CreateTimeEntry(ctx, e)
	})
	if err != nil {
		return TimeEntry{}, s.storeFailure(action, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"date":    e.Date.String(),
		"type":    string(e.Type),
	}).Debug("time entry created")
	return e, nil
}

// UpdateTimeEntry edits one of the actor's own entries.
func (s *Service) UpdateTimeEntry(ctx context.Context, actor UserProfile, id string, patch TimeEntryPatch) (TimeEntry, error) {
	const action = "update time entry"
	if err := checkActor(actor, action); err != nil {
		return TimeEntry{}, err
	}

	var updated TimeEntry
	err := s.store.WithTx(ctx, func(tx Records) error {
		e, err := tx.GetTimeEntry(ctx, id)
		if err != nil {
			return err
		}
		if e.UserID != actor.ID {
			return generic.Forbidden(actor.ID, action, "entries can only be edited by their owner")
		}
		if patch.Hours != nil {
			e.Hours = *patch.Hours
		}
		if patch.Location != nil {
			e.Location = *patch.Location
		}
		if patch.Comment != nil {
			e.Comment = *patch.Comment
		}
		// the date was accepted when created; only re-check the edited fields
		if err := validateEntryShape(&e, generic.MaxDate(e.Date, s.Today())); err != nil {
			return err
		}
		e.UpdatedAt = s.timestamp()
		if err := tx.UpdateTimeEntry(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return TimeEntry{}, s.storeFailure(action, err)
	}
	return updated, nil
}

// DeleteTimeEntry removes one of the actor's own entries.
func (s *Service) DeleteTimeEntry(ctx context.Context, actor UserProfile, id string) error {
	const action = "delete time entry"
	if err := checkActor(actor, action); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx Records) error {
		e, err := tx.GetTimeEntry(ctx, id)
		if err != nil {
			return err
		}
		if e.UserID != actor.ID {
			return generic.Forbidden(actor.ID, action, "entries can only be deleted by their owner")
		}
		return tx.DeleteTimeEntry(ctx, id)
	})
	return s.storeFailure(action, err)
}
