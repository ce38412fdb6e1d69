/*
Package generic provides the domain-agnostic building blocks shared by the
attendance engine and its stores.

PURPOSE:
  Calendar dates, inclusive periods, business-day arithmetic, decimal hour
  quantities and the error taxonomy. Nothing in this package knows about
  users, roles or leave types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: fractional working hours as decimal.Decimal (7.5h + 0.1h stays exact)
  - Percent / RoundTenth: the rounding rules used by every report

DESIGN PRINCIPLES:
  1. Precision: hours use decimal.Decimal to avoid floating-point drift in sums
  2. Day granularity: dates never carry a time of day (see time.go)
  3. Purity: every function here is deterministic and side-effect free

SEE ALSO:
  - time.go: Date and business-day helpers
  - period.go: Period range arithmetic
  - errors.go: Error kinds
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Decimal quantities of working time
// =============================================================================

// StandardDayHours is the length of a full working day.
var StandardDayHours = decimal.NewFromInt(8)

// MaxDayHours is the most a single time entry may record.
var MaxDayHours = decimal.NewFromInt(24)

// HoursPlaces is the number of fractional digits stored for hours. It
// matches the NUMERIC(4,2) column of the postgres store.
const HoursPlaces = 2

// RoundHours rounds h half away from zero to HoursPlaces digits.
func RoundHours(h decimal.Decimal) decimal.Decimal {
	return h.Round(HoursPlaces)
}

// =============================================================================
// ROUNDING
// =============================================================================

// Percent returns round(part / whole * 100). It returns 0 when whole is zero.
func Percent(part, whole decimal.Decimal) int {
	if whole.IsZero() {
		return 0
	}
	return int(part.Mul(decimal.NewFromInt(100)).Div(whole).Round(0).IntPart())
}

// RoundTenth returns num / den rounded to one decimal place, or 0 when den
// is zero.
func RoundTenth(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	f, _ := num.Div(den).Round(1).Float64()
	return f
}
