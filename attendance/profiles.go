package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// PROFILES - Invitation and admin edits
// =============================================================================

// Invitation is the input of InviteUser. A nil VacationDaysTotal takes the
// configured default; a zero Role means employee.
type Invitation struct {
	Email             string
	GivenName         string
	FamilyName        string
	JobTitle          string
	Role              Role
	ManagerID         string
	VacationDaysTotal *int
}

// ProfilePatch changes the non-nil fields of a profile. Setting Locked to
// false unlocks the account and clears the failed-attempt counter.
type ProfilePatch struct {
	GivenName         *string
	FamilyName        *string
	JobTitle          *string
	Role              *Role
	ManagerID         *string
	VacationDaysTotal *int
	Active            *bool
	Locked            *bool
}

// Profile returns the actor's own profile.
func (s *Service) Profile(ctx context.Context, actor UserProfile) (UserProfile, error) {
	if err := checkActor(actor, "view profile"); err != nil {
		return UserProfile{}, err
	}
	p, err := s.store.GetProfile(ctx, actor.ID)
	return p, s.storeFailure("get profile", err)
}

// ListProfiles lists profiles for managers and admins, ordered by family
// name. Managers only see themselves and their direct reports.
func (s *Service) ListProfiles(ctx context.Context, actor UserProfile, f ProfileFilter) ([]UserProfile, error) {
	const action = "list profiles"
	if err := checkActor(actor, action); err != nil {
		return nil, err
	}
	if err := requireReviewer(actor, action); err != nil {
		return nil, err
	}
	profiles, err := s.store.ListProfiles(ctx, f)
	if err != nil {
		return nil, s.storeFailure(action, err)
	}

	visible := profiles[:0]
	for _, p := range profiles {
		if canView(actor, p) {
			visible = append(visible, p)
		}
	}
	sortProfiles(visible)
	return visible, nil
}

func sortProfiles(profiles []UserProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := strings.ToLower(profiles[i].FamilyName), strings.ToLower(profiles[j].FamilyName)
		if a != b {
			return a < b
		}
		return strings.ToLower(profiles[i].GivenName) < strings.ToLower(profiles[j].GivenName)
	})
}

// InviteUser creates a profile. Sending the invitation email is left to the
// caller.
func (s *Service) InviteUser(ctx context.Context, actor UserProfile, in Invitation) (UserProfile, error) {
	const action = "invite user"
	if err := checkActor(actor, action); err != nil {
		return UserProfile{}, err
	}
	if err := requireAdmin(actor, action); err != nil {
		return UserProfile{}, err
	}

	now := s.timestamp()
	p := UserProfile{
		ID:                s.newID(),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		GivenName:         strings.TrimSpace(in.GivenName),
		FamilyName:        strings.TrimSpace(in.FamilyName),
		JobTitle:          strings.TrimSpace(in.JobTitle),
		Role:              in.Role,
		ManagerID:         strings.TrimSpace(in.ManagerID),
		VacationDaysTotal: s.defaultVacationDays,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.Role == 0 {
		p.Role = RoleEmployee
	}
	if in.VacationDaysTotal != nil {
		p.VacationDaysTotal = *in.VacationDaysTotal
	}
	if err := validateProfileFields(p); err != nil {
		return UserProfile{}, err
	}

	err := s.store.WithTx(ctx, func(tx Records) error {
		existing, err := tx.GetProfileByEmail(ctx, p.Email)
		switch {
		case err == nil:
			return &generic.ConflictError{Kind: "profile", ExistingID: existing.ID, Reason: fmt.Sprintf("%s is already registered", p.Email)}
		case !generic.IsNotFound(err):
			return err
		}
		if err := checkManagerRef(ctx, tx, p); err != nil {
			return err
		}
		return tx.CreateProfile(ctx, p)
	})
	if err != nil {
		return UserProfile{}, s.storeFailure(action, err)
	}

	s.log.WithFields(logrus.Fields{
		"actor_id": actor.ID,
		"user_id":  p.ID,
		"role":     p.Role.String(),
	}).Info("user invited")
	return p, nil
}

// UpdateProfile applies an admin edit. The last active admin can be neither
// demoted nor deactivated.
func (s *Service) UpdateProfile(ctx context.Context, actor UserProfile, id string, patch ProfilePatch) (UserProfile, error) {
	const action = "update profile"
	if err := checkActor(actor, action); err != nil {
		return UserProfile{}, err
	}
	if err := requireAdmin(actor, action); err != nil {
		return UserProfile{}, err
	}

	var updated UserProfile
	err := s.store.WithTx(ctx, func(tx Records) error {
		current, err := tx.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		next := applyProfilePatch(current, patch)
		next.UpdatedAt = s.timestamp()

		if err := validateProfileFields(next); err != nil {
			return err
		}
		if err := checkManagerRef(ctx, tx, next); err != nil {
			return err
		}
		if err := checkLastAdmin(ctx, tx, actor, current, next); err != nil {
			return err
		}
		if err := checkTeamOnDemotion(ctx, tx, current, next); err != nil {
			return err
		}
		if err := tx.UpdateProfile(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return UserProfile{}, s.storeFailure(action, err)
	}

	s.log.WithFields(logrus.Fields{
		"actor_id": actor.ID,
		"user_id":  id,
	}).Info("profile updated")
	return updated, nil
}

func applyProfilePatch(p UserProfile, patch ProfilePatch) UserProfile {
	if patch.GivenName != nil {
		p.GivenName = strings.TrimSpace(*patch.GivenName)
	}
	if patch.FamilyName != nil {
		p.FamilyName = strings.TrimSpace(*patch.FamilyName)
	}
	if patch.JobTitle != nil {
		p.JobTitle = strings.TrimSpace(*patch.JobTitle)
	}
	if patch.Role != nil {
		p.Role = *patch.Role
		// promoted profiles leave their team unless a manager is set explicitly
		if p.Role != RoleEmployee && patch.ManagerID == nil {
			p.ManagerID = ""
		}
	}
	if patch.ManagerID != nil {
		p.ManagerID = strings.TrimSpace(*patch.ManagerID)
	}
	if patch.VacationDaysTotal != nil {
		p.VacationDaysTotal = *patch.VacationDaysTotal
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.Locked != nil {
		p.Locked = *patch.Locked
		if !p.Locked {
			p.FailedLoginAttempts = 0
		}
	}
	return p
}

func validateProfileFields(p UserProfile) error {
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if err := validateName("given_name", p.GivenName); err != nil {
		return err
	}
	if err := validateName("family_name", p.FamilyName); err != nil {
		return err
	}
	if !p.Role.Valid() {
		return generic.NewValidationError("role", "must be employee, manager or admin")
	}
	if err := validateEntitlement(p.VacationDaysTotal); err != nil {
		return err
	}
	if p.ManagerID == p.ID && p.ManagerID != "" {
		return generic.NewValidationError("manager_id", "a profile cannot manage itself")
	}
	return nil
}

// checkManagerRef enforces the one-level team hierarchy: only employees have
// a manager, and it must be an existing manager.
func checkManagerRef(ctx context.Context, r Records, p UserProfile) error {
	if p.ManagerID == "" {
		return nil
	}
	switch p.Role {
	case RoleEmployee:
	case RoleManager, RoleAdmin:
		return generic.NewValidationError("manager_id", fmt.Sprintf("a %s cannot have a manager", p.Role))
	default:
		return generic.NewValidationError("role", "unknown role")
	}
	m, err := r.GetProfile(ctx, p.ManagerID)
	if generic.IsNotFound(err) {
		return generic.NewValidationError("manager_id", fmt.Sprintf("manager %s does not exist", p.ManagerID))
	}
	if err != nil {
		return err
	}
	if m.Role != RoleManager {
		return generic.NewValidationError("manager_id", fmt.Sprintf("%s is not a manager", m.FullName()))
	}
	return nil
}

func isActiveAdmin(p UserProfile) bool {
	return p.Role == RoleAdmin && p.Active
}

func checkLastAdmin(ctx context.Context, r Records, actor, current, next UserProfile) error {
	if !isActiveAdmin(current) || isActiveAdmin(next) {
		return nil
	}
	admins, err := r.ListProfiles(ctx, ProfileFilter{Role: RoleAdmin, ActiveOnly: true})
	if err != nil {
		return err
	}
	if len(admins) <= 1 {
		return generic.Forbidden(actor.ID, "update profile", "the last active admin cannot be demoted or deactivated")
	}
	return nil
}

// checkTeamOnDemotion refuses to take the manager role away from someone who
// still has direct reports.
func checkTeamOnDemotion(ctx context.Context, r Records, current, next UserProfile) error {
	if current.Role != RoleManager || next.Role == RoleManager {
		return nil
	}
	reports, err := r.ListProfiles(ctx, ProfileFilter{ManagerID: current.ID})
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		return generic.NewValidationError("role", fmt.Sprintf("%s still manages %d employees; reassign them first", current.FullName(), len(reports)))
	}
	return nil
}

// =============================================================================
// LOCKOUT - Failed login bookkeeping for the external auth layer
// =============================================================================

// LoginStatus is the lockout state of an account.
type LoginStatus struct {
	FailedAttempts    int
	Locked            bool
	RemainingAttempts int
}

func (s *Service) loginStatus(p UserProfile) LoginStatus {
	remaining := s.maxFailedLogins - p.FailedLoginAttempts
	if remaining < 0 || p.Locked {
		remaining = 0
	}
	return LoginStatus{FailedAttempts: p.FailedLoginAttempts, Locked: p.Locked, RemainingAttempts: remaining}
}

// CheckLocked reports whether the account of email is locked. Unknown
// addresses are reported as not locked.
func (s *Service) CheckLocked(ctx context.Context, email string) (LoginStatus, error) {
	p, err := s.store.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if generic.IsNotFound(err) {
		return LoginStatus{RemainingAttempts: s.maxFailedLogins}, nil
	}
	if err != nil {
		return LoginStatus{}, s.storeFailure("check lockout", err)
	}
	return s.loginStatus(p), nil
}

// RecordFailedLogin counts a failed login for email and locks the account
// once MaxFailedLogins is reached.
func (s *Service) RecordFailedLogin(ctx context.Context, email string) (LoginStatus, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var status LoginStatus
	found := true
	err := s.store.WithTx(ctx, func(tx Records) error {
		p, err := tx.GetProfileByEmail(ctx, email)
		if generic.IsNotFound(err) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		if !p.Locked {
			p.FailedLoginAttempts++
			if p.FailedLoginAttempts >= s.maxFailedLogins {
				p.Locked = true
			}
			p.UpdatedAt = s.timestamp()
			if err := tx.UpdateProfile(ctx, p); err != nil {
				return err
			}
			if p.Locked {
				s.log.WithField("user_id", p.ID).Warn("account locked after failed logins")
			}
		}
		status = s.loginStatus(p)
		return nil
	})
	if err != nil {
		return LoginStatus{}, s.storeFailure("record failed login", err)
	}
	if !found {
		return LoginStatus{RemainingAttempts: s.maxFailedLogins}, nil
	}
	return status, nil
}

// ResetFailedLogins clears the counter after a successful login. It does not
// unlock a locked account; only an admin edit does.
func (s *Service) ResetFailedLogins(ctx context.Context, userID string) error {
	err := s.store.WithTx(ctx, func(tx Records) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if p.FailedLoginAttempts == 0 {
			return nil
		}
		p.FailedLoginAttempts = 0
		p.UpdatedAt = s.timestamp()
		return tx.UpdateProfile(ctx, p)
	})
	return s.storeFailure("reset failed logins", err)
}
