package attendance

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/warp/timetrack/generic"
)

// MaxCommentLength is the longest free-text comment accepted on any record.
const MaxCommentLength = 500

// MaxVacationEntitlement bounds the annual entitlement of a profile.
const MaxVacationEntitlement = 365

// =============================================================================
// FIELD VALIDATION - Every rule runs before anything is written
// =============================================================================

func validateComment(comment string) error {
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return generic.NewValidationError("comment", fmt.Sprintf("must be at most %d characters", MaxCommentLength))
	}
	return nil
}

func validateHours(h decimal.Decimal) error {
	if h.IsNegative() || h.GreaterThan(generic.MaxDayHours) {
		return generic.NewValidationError("hours", "must be between 0 and 24")
	}
	return nil
}

func validateRange(start, end generic.Date) error {
	if start.IsZero() {
		return generic.NewValidationError("start_date", "is required")
	}
	if end.IsZero() {
		return generic.NewValidationError("end_date", "is required")
	}
	if end.Before(start) {
		return generic.NewValidationError("end_date", "must not be before the start date")
	}
	return nil
}

func validateNotFuture(field string, d, today generic.Date) error {
	if d.After(today) {
		return generic.NewValidationError(field, fmt.Sprintf("%s is in the future", d))
	}
	return nil
}

func validateEntitlement(days int) error {
	if days < 0 || days > MaxVacationEntitlement {
		return generic.NewValidationError("vacation_days_total", fmt.Sprintf("must be between 0 and %d", MaxVacationEntitlement))
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return generic.NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return generic.NewValidationError("email", fmt.Sprintf("%q is not a valid address", email))
	}
	return nil
}

func validateName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return generic.NewValidationError(field, "is required")
	}
	return nil
}

// validateEntryShape checks a time entry independent of other records and
// normalizes it. A missing type means work. Location is required for work
// and cleared otherwise. Hours keep two fractional digits.
func validateEntryShape(e *TimeEntry, today generic.Date) error {
	if e.Date.IsZero() {
		return generic.NewValidationError("date", "is required")
	}
	if e.Type == "" {
		e.Type = EntryWork
	}
	if !e.Type.Valid() {
		return generic.NewValidationError("type", fmt.Sprintf("unknown entry type %q", e.Type))
	}
	switch e.Type {
	case EntryWork:
		if e.Location == "" {
			return generic.NewValidationError("location", "is required for work entries")
		}
		if !e.Location.Valid() {
			return generic.NewValidationError("location", fmt.Sprintf("unknown location %q", e.Location))
		}
	case EntrySick:
		e.Location = ""
	case EntryVacation:
		return generic.NewValidationError("type", "vacation is recorded through vacation requests")
	}
	e.Hours = generic.RoundHours(e.Hours)
	if err := validateHours(e.Hours); err != nil {
		return err
	}
	if err := validateNotFuture("date", e.Date, today); err != nil {
		return err
	}
	return validateComment(e.Comment)
}
