/*
Package generic provides the domain-agnostic primitives of the attendance engine.

PURPOSE:
  This package contains identifiers, durations and calendar types shared by
  the reconciliation, overtime and compliance packages. It has no knowledge
  of clock events or labor rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Minutes: Integer minutes, the only unit the engine computes in
  - Identifiers: Type-safe user, location, org and event IDs

DESIGN PRINCIPLES:
  1. Integer arithmetic: All totals are whole minutes; no float drift
  2. Precision at the edge: Hours for reports use decimal.Decimal
  3. Type Safety: Strong typing prevents mixing user and location IDs

USAGE:
  worked := generic.Minutes(510)
  worked.Hours()          // 8.5
  worked.HoursRounded(2)  // "8.5"

SEE ALSO:
  - time.go: TimePoint (calendar day) and timezone helpers
  - period.go: Period and week windows
  - errors.go: Error taxonomy
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MINUTES - Whole-minute durations
// =============================================================================

// Minutes is a duration in whole minutes.
type Minutes int

const (
	MinutesPerHour Minutes = 60
	MinutesPerDay  Minutes = 24 * MinutesPerHour
)

var sixty = decimal.NewFromInt(60)

// FloorMinutes converts a duration to whole minutes, truncating seconds.
// Negative durations floor toward negative infinity.
func FloorMinutes(d time.Duration) Minutes {
	m := d / time.Minute
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return Minutes(m)
}

func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }
func (m Minutes) Int() int                { return int(m) }

// Hours returns the exact hour value (e.g. 90 minutes -> 1.5).
func (m Minutes) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(sixty)
}

// HoursRounded returns hours rounded half-up to the given number of places.
func (m Minutes) HoursRounded(places int32) decimal.Decimal {
	return m.Hours().Round(places)
}

// MaxMinutes returns the larger of a and b.
func MaxMinutes(a, b Minutes) Minutes {
	if a > b {
		return a
	}
	return b
}

// MinMinutes returns the smaller of a and b.
func MinMinutes(a, b Minutes) Minutes {
	if a < b {
		return a
	}
	return b
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type LocationID string
type OrgID string
type EventID string
