package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/generic"
)

func d(s string) generic.Date { return generic.MustParseDate(s) }

// =============================================================================
// BUSINESS DAYS
// =============================================================================

func TestCountBusinessDays_SingleDay(t *testing.T) {
	// 2026-02-12 is a Thursday, 2026-02-14 a Saturday.
	assert.Equal(t, 1, generic.CountBusinessDays(d("2026-02-12"), d("2026-02-12")))
	assert.Equal(t, 0, generic.CountBusinessDays(d("2026-02-14"), d("2026-02-14")))
	assert.Equal(t, 0, generic.CountBusinessDays(d("2026-02-15"), d("2026-02-15")))
}

func TestCountBusinessDays_FullWeek(t *testing.T) {
	monday, sunday := d("2026-02-09"), d("2026-02-15")
	require.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, 5, generic.CountBusinessDays(monday, sunday))
}

func TestCountBusinessDays_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"2026-01-01", "2026-01-31"},
		{"2026-02-27", "2026-03-02"},
		{"2025-12-20", "2026-01-06"},
		{"2026-03-07", "2026-03-08"},
	}
	for _, p := range pairs {
		a, b := d(p[0]), d(p[1])
		assert.Equal(t, generic.CountBusinessDays(a, b), generic.CountBusinessDays(b, a), "%s..%s", p[0], p[1])
	}
}

func TestCountBusinessDays_AcrossMonthBoundary(t *testing.T) {
	// Fri 2026-02-27 .. Mon 2026-03-02
	assert.Equal(t, 2, generic.CountBusinessDays(d("2026-02-27"), d("2026-03-02")))
}

func TestWeekdaysInMonth(t *testing.T) {
	assert.Equal(t, 20, generic.WeekdaysInMonth(2026, time.February))
	assert.Equal(t, 22, generic.WeekdaysInMonth(2026, time.March))
	assert.Equal(t, 22, generic.WeekdaysInMonth(2026, time.April))
	assert.Equal(t, 21, generic.WeekdaysInMonth(2026, time.May))
}

// =============================================================================
// RANGES
// =============================================================================

func TestDateRange_SwapsReversedBounds(t *testing.T) {
	days := generic.DateRange(d("2026-03-03"), d("2026-03-01"))
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-01", days[0].String())
	assert.Equal(t, "2026-03-03", days[2].String())
}

func TestRangesOverlap(t *testing.T) {
	tests := []struct {
		name                   string
		aStart, aEnd, bStart, bEnd string
		want                   bool
	}{
		{"contained", "2026-03-01", "2026-03-05", "2026-03-03", "2026-03-04", true},
		{"touching end", "2026-03-01", "2026-03-05", "2026-03-05", "2026-03-09", true},
		{"adjacent", "2026-03-01", "2026-03-05", "2026-03-06", "2026-03-10", false},
		{"before", "2026-03-06", "2026-03-10", "2026-03-01", "2026-03-05", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generic.RangesOverlap(d(tt.aStart), d(tt.aEnd), d(tt.bStart), d(tt.bEnd))
			assert.Equal(t, tt.want, got)
			// commutative
			assert.Equal(t, got, generic.RangesOverlap(d(tt.bStart), d(tt.bEnd), d(tt.aStart), d(tt.aEnd)))
		})
	}
}

func TestRangesOverlap_SingleDays(t *testing.T) {
	a, b := d("2026-03-01"), d("2026-03-02")
	assert.True(t, generic.RangesOverlap(a, a, a, a))
	assert.False(t, generic.RangesOverlap(a, a, b, b))
}

func TestClampRangeToMonth(t *testing.T) {
	feb := generic.MonthPeriod(2026, time.February)

	clamped, ok := generic.ClampRangeToMonth(d("2026-01-28"), d("2026-02-03"), feb.Start, feb.End)
	require.True(t, ok)
	assert.Equal(t, "[2026-02-01, 2026-02-03]", clamped.String())
	assert.Equal(t, 3, clamped.Len())

	_, ok = generic.ClampRangeToMonth(d("2026-03-01"), d("2026-03-03"), feb.Start, feb.End)
	assert.False(t, ok)
}

func TestPeriod_LenAndBusinessDays(t *testing.T) {
	p := generic.NewPeriod(d("2026-02-14"), d("2026-02-10"))
	assert.Equal(t, "2026-02-10", p.Start.String())
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 4, p.BusinessDays())
	assert.True(t, p.Contains(d("2026-02-12")))
	assert.False(t, p.Contains(d("2026-02-15")))

	days := p.Days()
	require.Len(t, days, 5)
	assert.Equal(t, "2026-02-14", days[4].String())
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

func TestDate_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Day generic.Date `json:"day"`
	}
	b, err := json.Marshal(payload{Day: d("2026-02-12")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2026-02-12"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2026-03-01"}`), &p))
	assert.True(t, p.Day.Equal(d("2026-03-01")))

	assert.Error(t, json.Unmarshal([]byte(`{"day":"01.03.2026"}`), &p))
}

func TestDateOf_UsesLocalCalendarDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 23:30 UTC on Feb 11 is already Feb 12 in Berlin.
	ts := time.Date(2026, 2, 11, 23, 30, 0, 0, time.UTC).In(berlin)
	assert.Equal(t, "2026-02-12", generic.DateOf(ts).String())
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestPercent(t *testing.T) {
	assert.Equal(t, 48, generic.Percent(decimal.NewFromInt(80), decimal.NewFromInt(168)))
	assert.Equal(t, 0, generic.Percent(decimal.NewFromInt(80), decimal.Zero))
}

func TestRoundHours(t *testing.T) {
	assert.Equal(t, "7.33", generic.RoundHours(decimal.RequireFromString("7.333")).String())
	assert.Equal(t, "7.67", generic.RoundHours(decimal.RequireFromString("7.665")).String())
	assert.Equal(t, "8", generic.RoundHours(decimal.NewFromInt(8)).String())
}

func TestRoundTenth(t *testing.T) {
	assert.Equal(t, 7.6, generic.RoundTenth(decimal.NewFromInt(5), decimal.NewFromInt(66).Div(decimal.NewFromInt(100))))
	assert.Equal(t, 0.0, generic.RoundTenth(decimal.NewFromInt(5), decimal.Zero))
}
