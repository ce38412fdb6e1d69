/*
time.go - Calendar dates for attendance accounting

PURPOSE:
  Every record in this system (time entries, sick leaves, vacation requests)
  is keyed by a calendar day. Date is a day-granular value with no time of
  day and no zone: two dates compare exactly like their ISO "YYYY-MM-DD"
  strings do, so "today" computed in Berlin and a date stored in SQLite can
  never drift by one.

KEY CONCEPTS:
  - Date: a calendar day (UTC midnight internally)
  - Business day: Monday to Friday; weekends never count
  - Today(loc): the calendar day of "now" in the configured location

WIRE FORMAT:
  Date marshals to and from JSON/text as "YYYY-MM-DD". The zero Date
  marshals as an empty string. In SQL it is stored as the same ISO text
  (driver.Valuer / sql.Scanner).

SEE ALSO:
  - period.go: Inclusive ranges of dates and range arithmetic
  - attendance/summary.go: Month-scoped aggregation built on these helpers
*/
package generic

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used everywhere on the wire.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE - Day-granular calendar value
// =============================================================================

// Date is a calendar day without a time of day.
type Date struct {
	t time.Time
}

// NewDate returns the date for the given year, month and day. Out-of-range
// values are normalized the way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as observed in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in loc. A nil loc means UTC.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }
func (d Date) IsBusinessDay() bool   { return !d.IsWeekend() }
func (d Date) StartOfMonth() Date    { return NewDate(d.Year(), d.Month(), 1) }
func (d Date) EndOfMonth() Date      { return EndOfMonth(d.Year(), d.Month()) }

// IsWeekend reports whether d is a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// String returns the ISO form, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer; dates are stored as ISO text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for ISO text and DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

func StartOfYear(year int) Date                    { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date                      { return NewDate(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

// EndOfMonth returns the last calendar day of the month.
func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month+1, 1).AddDays(-1)
}

// MinDate returns the earlier of a and b.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of a and b.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// ordered returns (a, b) such that the first is never after the second.
func ordered(a, b Date) (Date, Date) {
	if b.Before(a) {
		return b, a
	}
	return a, b
}

// CountBusinessDays counts the Monday-to-Friday days in the inclusive range
// [start, end]. The bounds are swapped when end is before start.
func CountBusinessDays(start, end Date) int {
	start, end = ordered(start, end)
	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsBusinessDay() {
			count++
		}
	}
	return count
}

// DateRange returns every calendar day in [a, b] in ascending order. The
// bounds are swapped when b is before a.
func DateRange(a, b Date) []Date {
	a, b = ordered(a, b)
	days := make([]Date, 0, DaysBetween(a, b)+1)
	for d := a; d.BeforeOrEqual(b); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// RangesOverlap reports whether the closed ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func RangesOverlap(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.BeforeOrEqual(bEnd) && bStart.BeforeOrEqual(aEnd)
}

// ClampRangeToMonth intersects [start, end] with [monthStart, monthEnd].
// ok is false when the two ranges are disjoint.
func ClampRangeToMonth(start, end, monthStart, monthEnd Date) (clamped Period, ok bool) {
	return Period{Start: start, End: end}.Intersect(Period{Start: monthStart, End: monthEnd})
}

// DaysBetween returns the number of calendar days from a to b (negative when
// b is before a).
func DaysBetween(a, b Date) int {
	return int(b.t.Sub(a.t).Hours() / 24)
}

// WeekdaysInMonth counts the business days of a calendar month.
func WeekdaysInMonth(year int, month time.Month) int {
	return CountBusinessDays(StartOfMonth(year, month), EndOfMonth(year, month))
}
