package attendance

import (
	"github.com/warp/timetrack/generic"
)

// =============================================================================
// ACCESS RULES - One exhaustive switch over Role per decision
// =============================================================================

// checkActor refuses actors that may not use the system at all.
func checkActor(actor UserProfile, action string) error {
	if actor.ID == "" {
		return generic.Forbidden("", action, "no acting user")
	}
	if !actor.Active {
		return generic.Forbidden(actor.ID, action, "account is deactivated")
	}
	if actor.Locked {
		return generic.Forbidden(actor.ID, action, "account is locked")
	}
	if !actor.Role.Valid() {
		return generic.Forbidden(actor.ID, action, "unknown role")
	}
	return nil
}

func requireAdmin(actor UserProfile, action string) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleEmployee, RoleManager:
		return generic.Forbidden(actor.ID, action, "admin role required")
	default:
		return generic.Forbidden(actor.ID, action, "unknown role")
	}
}

func requireReviewer(actor UserProfile, action string) error {
	switch actor.Role {
	case RoleManager, RoleAdmin:
		return nil
	case RoleEmployee:
		return generic.Forbidden(actor.ID, action, "manager or admin role required")
	default:
		return generic.Forbidden(actor.ID, action, "unknown role")
	}
}

// canView reports whether actor may read the records of target.
func canView(actor, target UserProfile) bool {
	if actor.ID == target.ID {
		return true
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return target.ManagerID == actor.ID
	case RoleEmployee:
		return false
	default:
		return false
	}
}

// checkReviewScope decides whether reviewer may act on a request owned by
// owner. Nobody reviews their own request; managers only their reports.
func checkReviewScope(reviewer, owner UserProfile) error {
	const action = "review vacation request"
	if reviewer.ID == owner.ID {
		return generic.Forbidden(reviewer.ID, action, "you cannot review your own request")
	}
	switch reviewer.Role {
	case RoleAdmin:
		return nil
	case RoleManager:
		if owner.ManagerID != reviewer.ID {
			return generic.Forbidden(reviewer.ID, action, "request belongs to someone outside your team")
		}
		return nil
	case RoleEmployee:
		return generic.Forbidden(reviewer.ID, action, "only managers and admins may review vacation requests")
	default:
		return generic.Forbidden(reviewer.ID, action, "unknown role")
	}
}

// teamScope returns the profile filter for actor's team-wide reads, narrowed
// to managerID when given. Employees have no team scope.
func teamScope(actor UserProfile, managerID string) (ProfileFilter, error) {
	const action = "view team records"
	switch actor.Role {
	case RoleAdmin:
		return ProfileFilter{ManagerID: managerID}, nil
	case RoleManager:
		if managerID != "" && managerID != actor.ID {
			return ProfileFilter{}, generic.Forbidden(actor.ID, action, "managers can only view their own team")
		}
		return ProfileFilter{ManagerID: actor.ID}, nil
	case RoleEmployee:
		return ProfileFilter{}, generic.Forbidden(actor.ID, action, "manager or admin role required")
	default:
		return ProfileFilter{}, generic.Forbidden(actor.ID, action, "unknown role")
	}
}
