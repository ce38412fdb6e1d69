// Package storetest holds the behaviour every attendance.Store
// implementation must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// Factory returns an empty store. Run closes it when the subtest ends.
type Factory func(t *testing.T) attendance.Store

var stamp = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s attendance.Store)
	}{
		{"Profiles", testProfiles},
		{"ProfileEmailUnique", testProfileEmailUnique},
		{"TimeEntries", testTimeEntries},
		{"TimeEntryUniquePerDayAndType", testTimeEntryUnique},
		{"SickLeaveRangeFilter", testSickLeaveRange},
		{"VacationRequests", testVacationRequests},
		{"MissingRecords", testMissingRecords},
		{"WithTxRollback", testWithTxRollback},
		{"WithTxCommit", testWithTxCommit},
		{"Reset", testReset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func profile(id, email, family string, role attendance.Role, managerID string) attendance.UserProfile {
	return attendance.UserProfile{
		ID:                id,
		Email:             email,
		GivenName:         "Test",
		FamilyName:        family,
		Role:              role,
		ManagerID:         managerID,
		VacationDaysTotal: 30,
		Active:            true,
		CreatedAt:         stamp,
		UpdatedAt:         stamp,
	}
}

// seed creates a manager m1 with two reports u1 and u2.
func seed(t *testing.T, s attendance.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile("m1", "mona@example.com", "Manager", attendance.RoleManager, "")))
	require.NoError(t, s.CreateProfile(ctx, profile("u1", "ada@example.com", "Lovelace", attendance.RoleEmployee, "m1")))
	require.NoError(t, s.CreateProfile(ctx, profile("u2", "grace@example.com", "Hopper", attendance.RoleEmployee, "m1")))
}

func testProfiles(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, attendance.RoleEmployee, got.Role)
	assert.Equal(t, "m1", got.ManagerID)
	assert.True(t, got.CreatedAt.Equal(stamp))

	byEmail, err := s.GetProfileByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	team, err := s.ListProfiles(ctx, attendance.ProfileFilter{ManagerID: "m1"})
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "u2", team[0].ID, "ordered by family name")
	assert.Equal(t, "u1", team[1].ID)

	got.Locked = true
	got.FailedLoginAttempts = 5
	got.UpdatedAt = stamp.Add(time.Hour)
	require.NoError(t, s.UpdateProfile(ctx, got))

	again, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again.Locked)
	assert.Equal(t, 5, again.FailedLoginAttempts)

	managers, err := s.ListProfiles(ctx, attendance.ProfileFilter{Role: attendance.RoleManager})
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, "", managers[0].ManagerID)
}

func testProfileEmailUnique(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	err := s.CreateProfile(ctx, profile("u3", "Ada@Example.com", "Other", attendance.RoleEmployee, ""))
	assert.ErrorIs(t, err, generic.ErrConflict)
}

func testTimeEntries(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	entries := []attendance.TimeEntry{
		{ID: "e1", UserID: "u1", Date: generic.NewDate(2026, 5, 4), Hours: decimal.RequireFromString("7.5"), Type: attendance.EntryWork, Location: attendance.LocationOffice},
		{ID: "e2", UserID: "u1", Date: generic.NewDate(2026, 5, 5), Hours: decimal.NewFromInt(8), Type: attendance.EntrySick, Comment: "flu"},
		{ID: "e3", UserID: "u1", Date: generic.NewDate(2026, 6, 1), Hours: decimal.NewFromInt(8), Type: attendance.EntryWork, Location: attendance.LocationRemote},
		{ID: "e4", UserID: "u2", Date: generic.NewDate(2026, 5, 4), Hours: decimal.NewFromInt(6), Type: attendance.EntryWork, Location: attendance.LocationClient},
	}
	for _, e := range entries {
		e.CreatedAt, e.UpdatedAt = stamp, stamp
		require.NoError(t, s.CreateTimeEntry(ctx, e))
	}

	got, err := s.GetTimeEntry(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Hours.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, generic.NewDate(2026, 5, 4), got.Date)
	assert.Equal(t, attendance.LocationOffice, got.Location)

	may, err := s.ListTimeEntries(ctx, attendance.EntryFilter{
		UserID: "u1",
		From:   generic.NewDate(2026, 5, 1),
		To:     generic.NewDate(2026, 5, 31),
	})
	require.NoError(t, err)
	require.Len(t, may, 2)
	assert.Equal(t, "e1", may[0].ID)
	assert.Equal(t, "e2", may[1].ID)
	assert.Equal(t, "flu", may[1].Comment)

	sick, err := s.ListTimeEntries(ctx, attendance.EntryFilter{UserID: "u1", Type: attendance.EntrySick})
	require.NoError(t, err)
	require.Len(t, sick, 1)

	got.Hours = decimal.NewFromInt(4)
	got.Comment = "half day"
	require.NoError(t, s.UpdateTimeEntry(ctx, got))
	updated, err := s.GetTimeEntry(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, updated.Hours.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "half day", updated.Comment)

	require.NoError(t, s.DeleteTimeEntry(ctx, "e1"))
	_, err = s.GetTimeEntry(ctx, "e1")
	assert.True(t, generic.IsNotFound(err))
}

func testTimeEntryUnique(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	day := generic.NewDate(2026, 5, 4)
	work := attendance.TimeEntry{ID: "e1", UserID: "u1", Date: day, Hours: decimal.NewFromInt(8), Type: attendance.EntryWork, Location: attendance.LocationOffice, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, s.CreateTimeEntry(ctx, work))

	dup := work
	dup.ID = "e2"
	assert.ErrorIs(t, s.CreateTimeEntry(ctx, dup), generic.ErrConflict)

	sick := work
	sick.ID, sick.Type, sick.Location = "e3", attendance.EntrySick, ""
	assert.NoError(t, s.CreateTimeEntry(ctx, sick), "a different type on the same day is allowed")
}

func testSickLeaveRange(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	leaves := []attendance.SickLeave{
		{ID: "l1", UserID: "u1", Start: generic.NewDate(2026, 1, 28), End: generic.NewDate(2026, 2, 3)},
		{ID: "l2", UserID: "u1", Start: generic.NewDate(2026, 2, 10), End: generic.NewDate(2026, 2, 14)},
		{ID: "l3", UserID: "u2", Start: generic.NewDate(2026, 3, 2), End: generic.NewDate(2026, 3, 2)},
	}
	for _, l := range leaves {
		l.CreatedAt = stamp
		require.NoError(t, s.CreateSickLeave(ctx, l))
	}

	feb, err := s.ListSickLeaves(ctx, attendance.LeaveFilter{From: generic.NewDate(2026, 2, 1), To: generic.NewDate(2026, 2, 28)})
	require.NoError(t, err)
	require.Len(t, feb, 2, "a leave starting in January still overlaps February")
	assert.Equal(t, "l1", feb[0].ID)
	assert.Equal(t, "l2", feb[1].ID)

	u2, err := s.ListSickLeaves(ctx, attendance.LeaveFilter{UserIDs: []string{"u2"}})
	require.NoError(t, err)
	require.Len(t, u2, 1)
	assert.Equal(t, generic.NewDate(2026, 3, 2), u2[0].End)

	none, err := s.ListSickLeaves(ctx, attendance.LeaveFilter{UserIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteSickLeave(ctx, "l3"))
	_, err = s.GetSickLeave(ctx, "l3")
	assert.True(t, generic.IsNotFound(err))
}

func testVacationRequests(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	requests := []attendance.VacationRequest{
		{ID: "v1", UserID: "u1", Start: generic.NewDate(2026, 3, 3), End: generic.NewDate(2026, 3, 4), BusinessDays: 2, Status: attendance.StatusRequested},
		{ID: "v2", UserID: "u2", Start: generic.NewDate(2026, 4, 6), End: generic.NewDate(2026, 4, 10), BusinessDays: 5, Status: attendance.StatusApproved},
		{ID: "v3", UserID: "u1", Start: generic.NewDate(2026, 7, 1), End: generic.NewDate(2026, 7, 3), BusinessDays: 3, Status: attendance.StatusRejected, RejectionReason: "busy"},
	}
	for _, v := range requests {
		v.CreatedAt = stamp
		require.NoError(t, s.CreateVacationRequest(ctx, v))
	}

	open, err := s.ListVacationRequests(ctx, attendance.VacationFilter{
		UserIDs:  []string{"u1", "u2"},
		Statuses: []attendance.VacationStatus{attendance.StatusRequested, attendance.StatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "v1", open[0].ID)
	assert.Equal(t, "v2", open[1].ID)

	rejected, err := s.GetVacationRequest(ctx, "v3")
	require.NoError(t, err)
	assert.Equal(t, "busy", rejected.RejectionReason)
	assert.Nil(t, rejected.ReviewedAt)

	reviewedAt := stamp.Add(24 * time.Hour)
	v1 := open[0]
	v1.Status = attendance.StatusApproved
	v1.ReviewedBy = "m1"
	v1.ReviewedAt = &reviewedAt
	require.NoError(t, s.UpdateVacationRequest(ctx, v1))

	got, err := s.GetVacationRequest(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusApproved, got.Status)
	assert.Equal(t, "m1", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, got.ReviewedAt.Equal(reviewedAt))
	assert.Equal(t, 2, got.BusinessDays)

	spring, err := s.ListVacationRequests(ctx, attendance.VacationFilter{From: generic.NewDate(2026, 4, 1), To: generic.NewDate(2026, 6, 30)})
	require.NoError(t, err)
	require.Len(t, spring, 1)
	assert.Equal(t, "v2", spring[0].ID)

	require.NoError(t, s.DeleteVacationRequest(ctx, "v3"))
	_, err = s.GetVacationRequest(ctx, "v3")
	assert.True(t, generic.IsNotFound(err))
}

func testMissingRecords(t *testing.T, s attendance.Store) {
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "nobody")
	assert.True(t, generic.IsNotFound(err))
	_, err = s.GetProfileByEmail(ctx, "nobody@example.com")
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(s.UpdateProfile(ctx, profile("nobody", "n@example.com", "N", attendance.RoleEmployee, ""))))
	assert.True(t, generic.IsNotFound(s.DeleteTimeEntry(ctx, "e404")))
	assert.True(t, generic.IsNotFound(s.DeleteSickLeave(ctx, "l404")))
	assert.True(t, generic.IsNotFound(s.DeleteVacationRequest(ctx, "v404")))
	assert.True(t, generic.IsNotFound(s.UpdateVacationRequest(ctx, attendance.VacationRequest{ID: "v404", Status: attendance.StatusApproved})))
}

func testWithTxRollback(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx attendance.Records) error {
		l := attendance.SickLeave{ID: "l1", UserID: "u1", Start: generic.NewDate(2026, 2, 2), End: generic.NewDate(2026, 2, 3), CreatedAt: stamp}
		if err := tx.CreateSickLeave(ctx, l); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetSickLeave(ctx, "l1")
	assert.True(t, generic.IsNotFound(err), "writes inside a failed transaction are discarded")
}

func testWithTxCommit(t *testing.T, s attendance.Store) {
	ctx := context.Background()
	seed(t, s)

	err := s.WithTx(ctx, func(tx attendance.Records) error {
		p, err := tx.GetProfile(ctx, "u1")
		if err != nil {
			return err
		}
		p.VacationDaysTotal = 25
		if err := tx.UpdateProfile(ctx, p); err != nil {
			return err
		}
		// reads inside the transaction see its own writes
		again, err := tx.GetProfile(ctx, "u1")
		if err != nil {
			return err
		}
		assert.Equal(t, 25, again.VacationDaysTotal)
		return nil
	})
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, p.VacationDaysTotal)
}

func testReset(t *testing.T, s attendance.Store) {
	r, ok := s.(attendance.Resetter)
	if !ok {
		t.Skip("store does not implement Resetter")
	}
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.CreateSickLeave(ctx, attendance.SickLeave{ID: "l1", UserID: "u1", Start: generic.NewDate(2026, 2, 2), End: generic.NewDate(2026, 2, 2), CreatedAt: stamp}))

	require.NoError(t, r.Reset(ctx))

	profiles, err := s.ListProfiles(ctx, attendance.ProfileFilter{})
	require.NoError(t, err)
	assert.Empty(t, profiles)
	leaves, err := s.ListSickLeaves(ctx, attendance.LeaveFilter{})
	require.NoError(t, err)
	assert.Empty(t, leaves)
}
