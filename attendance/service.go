/*
service.go - Guarded record operations for the attendance tracker

PURPOSE:
  Service is the only writer of records. Every operation follows the same
  order so that a failure never leaves a partial write behind:

    1. check the actor (active, not locked, role permits the action)
    2. validate the input on its own
    3. inside Store.WithTx: load what the rule needs, check ownership and
       overlaps, then write

  The aggregators (summary.go, stats.go, balance.go) are pure; the service
  only feeds them records it loaded for the actor's visible scope.

TIME:
  "Today" is the calendar day in the configured location, never the
  server's local zone. Tests inject a fixed clock through Options.Now.

SEE ALSO:
  - access.go: Role rules
  - validate.go: Field rules
  - store.go: The persistence boundary
*/
package attendance

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// Defaults applied by NewService when an option is left zero.
const (
	DefaultVacationDays    = 30
	DefaultMaxFailedLogins = 5
)

// Options tunes a Service.
type Options struct {
	// Location decides which calendar day "today" is. Nil means UTC.
	Location *time.Location
	// Now returns the current instant. Nil means time.Now.
	Now func() time.Time
	// NewID generates record ids. Nil means random UUIDs.
	NewID func() string

	DefaultVacationDays int
	MaxFailedLogins     int
}

// Service implements the record operations on top of a Store.
type Service struct {
	store Store
	log   logrus.FieldLogger

	loc   *time.Location
	now   func() time.Time
	newID func() string

	defaultVacationDays int
	maxFailedLogins     int
}

// NewService creates a service. A nil logger discards log output.
func NewService(store Store, log logrus.FieldLogger, opts Options) *Service {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	s := &Service{
		store:               store,
		log:                 log,
		loc:                 opts.Location,
		now:                 opts.Now,
		newID:               opts.NewID,
		defaultVacationDays: opts.DefaultVacationDays,
		maxFailedLogins:     opts.MaxFailedLogins,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.defaultVacationDays <= 0 {
		s.defaultVacationDays = DefaultVacationDays
	}
	if s.maxFailedLogins <= 0 {
		s.maxFailedLogins = DefaultMaxFailedLogins
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// Today returns the current calendar day in the configured location.
func (s *Service) Today() generic.Date {
	return generic.DateOf(s.now().In(s.loc))
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// Actor loads the profile of id and checks that it may act at all.
func (s *Service) Actor(ctx context.Context, id string) (UserProfile, error) {
	if id == "" {
		return UserProfile{}, generic.Forbidden("", "authenticate", "no acting user")
	}
	p, err := s.store.GetProfile(ctx, id)
	if generic.IsNotFound(err) {
		return UserProfile{}, generic.Forbidden(id, "authenticate", "unknown user")
	}
	if err != nil {
		return UserProfile{}, s.storeFailure("load actor", err)
	}
	if err := checkActor(p, "authenticate"); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// storeFailure logs infrastructure failures; domain errors pass silently.
func (s *Service) storeFailure(op string, err error) error {
	if err != nil && generic.IsRetryable(err) {
		s.log.WithError(err).WithField("op", op).Error("record store failure")
	}
	return err
}

// visibleProfile loads target and checks that actor may read its records.
// An empty targetID means the actor.
func visibleProfile(ctx context.Context, r Records, actor UserProfile, targetID string) (UserProfile, error) {
	if targetID == "" || targetID == actor.ID {
		return actor, nil
	}
	target, err := r.GetProfile(ctx, targetID)
	if err != nil {
		return UserProfile{}, err
	}
	if !canView(actor, target) {
		return UserProfile{}, generic.Forbidden(actor.ID, "view records", "user is outside your scope")
	}
	return target, nil
}

func profileIDs(profiles []UserProfile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}
