package generic

import "time"

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is the inclusive range [Start, End]. Sick leaves and vacation
// requests are periods; so are the month and year windows used for
// reporting.
//
// Examples:
//   - February 2026: 2026-02-01 .. 2026-02-28
//   - A one-day sick leave: 2026-03-04 .. 2026-03-04
type Period struct {
	Start Date
	End   Date
}

// NewPeriod builds a period, swapping the bounds when end is before start.
func NewPeriod(start, end Date) Period {
	start, end = ordered(start, end)
	return Period{Start: start, End: end}
}

// MonthPeriod returns the calendar month as a period.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// YearPeriod returns the calendar year as a period.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps reports whether p and other share at least one day.
func (p Period) Overlaps(other Period) bool {
	return RangesOverlap(p.Start, p.End, other.Start, other.End)
}

// Intersect returns the days shared by p and other. ok is false when the
// periods are disjoint.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	return Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}, true
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	return DateRange(p.Start, p.End)
}

// Len returns the inclusive number of calendar days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// BusinessDays returns the number of Monday-to-Friday days in the period.
func (p Period) BusinessDays() int {
	return CountBusinessDays(p.Start, p.End)
}

// Valid reports whether both bounds are set and End is not before Start.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
