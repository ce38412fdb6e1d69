/*
workflow.go - Vacation request approval state machine

STATES:
  requested --approve--> approved   (terminal)
  requested --reject---> rejected   (terminal, reason required)

  No transition leaves a terminal state. Cancelling is not a transition:
  the owner deletes a request while it is still requested.

WHO:
  Only managers and admins review. Whether a given manager may review a given
  request (direct report, not their own) is decided by the service in
  access.go before ApplyReview runs.

SEE ALSO:
  - vacation.go: Submission, cancellation and the review operation
  - access.go: Reviewer scope checks
*/
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/timetrack/generic"
)

// ReviewVerb discriminates a ReviewAction.
type ReviewVerb string

const (
	VerbApprove ReviewVerb = "approve"
	VerbReject  ReviewVerb = "reject"
)

// ReviewAction is a reviewer's decision on a vacation request. Reason is
// only meaningful for rejections, where it is mandatory.
type ReviewAction struct {
	Verb   ReviewVerb
	Reason string
}

// Approve returns an approval action.
func Approve() ReviewAction { return ReviewAction{Verb: VerbApprove} }

// Reject returns a rejection action with the given reason.
func Reject(reason string) ReviewAction { return ReviewAction{Verb: VerbReject, Reason: reason} }

// ParseReviewAction builds an action from its wire form.
func ParseReviewAction(verb, reason string) (ReviewAction, error) {
	a := ReviewAction{Verb: ReviewVerb(strings.ToLower(strings.TrimSpace(verb))), Reason: strings.TrimSpace(reason)}
	if err := a.Validate(); err != nil {
		return ReviewAction{}, err
	}
	return a, nil
}

// Validate checks the action on its own, independent of any request.
func (a ReviewAction) Validate() error {
	switch a.Verb {
	case VerbApprove:
		return nil
	case VerbReject:
		if strings.TrimSpace(a.Reason) == "" {
			return generic.NewValidationError("reason", "a rejection reason is required")
		}
		return nil
	default:
		return generic.NewValidationError("action", fmt.Sprintf("unknown review action %q (use approve or reject)", a.Verb))
	}
}

// target returns the status the action moves a request to.
func (a ReviewAction) target() VacationStatus {
	if a.Verb == VerbApprove {
		return StatusApproved
	}
	return StatusRejected
}

// ApplyReview returns req transitioned by action on behalf of reviewer at
// the given instant. req itself is not modified.
//
// Errors:
//   - AuthorizationError when the reviewer is neither manager nor admin
//   - ValidationError when the action is malformed or req is already terminal
func ApplyReview(req VacationRequest, reviewer UserProfile, action ReviewAction, at time.Time) (VacationRequest, error) {
	switch reviewer.Role {
	case RoleManager, RoleAdmin:
	case RoleEmployee:
		return VacationRequest{}, generic.Forbidden(reviewer.ID, "review vacation request", "only managers and admins may review vacation requests")
	default:
		return VacationRequest{}, generic.Forbidden(reviewer.ID, "review vacation request", "unknown role")
	}

	if err := action.Validate(); err != nil {
		return VacationRequest{}, err
	}

	if req.Status.Terminal() {
		return VacationRequest{}, generic.NewValidationError("status",
			fmt.Sprintf("request %s is already %s", req.ID, req.Status))
	}

	out := req
	out.Status = action.target()
	out.ReviewedBy = reviewer.ID
	reviewedAt := at.UTC()
	out.ReviewedAt = &reviewedAt
	if out.Status == StatusRejected {
		out.RejectionReason = strings.TrimSpace(action.Reason)
	} else {
		out.RejectionReason = ""
	}
	return out, nil
}
