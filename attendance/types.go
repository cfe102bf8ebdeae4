// Package attendance turns raw clock events into daily WorkDay aggregates
// and evaluates weekly in-person compliance over them.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// RAW EVENTS
// =============================================================================

// EventType is the kind of clock punch.
type EventType string

const (
	EventClockIn    EventType = "CLOCK_IN"
	EventClockOut   EventType = "CLOCK_OUT"
	EventBreakStart EventType = "BREAK_START"
	EventBreakEnd   EventType = "BREAK_END"
)

// ParseEventType accepts the canonical names case-insensitively.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &generic.InvalidInputError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", s)}
	}
	return t, nil
}

func (t EventType) Valid() bool {
	switch t {
	case EventClockIn, EventClockOut, EventBreakStart, EventBreakEnd:
		return true
	}
	return false
}

// rank orders punches that share a timestamp so that sorting is total.
// Closing punches come first, so a shift or break that ends at the same
// instant the next one starts still pairs with its own opener.
func (t EventType) rank() int {
	switch t {
	case EventBreakEnd:
		return 0
	case EventClockOut:
		return 1
	case EventClockIn:
		return 2
	case EventBreakStart:
		return 3
	}
	return 4
}

// RawEvent is an immutable clock punch.
type RawEvent struct {
	ID         generic.EventID    `json:"id"`
	UserID     generic.UserID     `json:"user_id"`
	LocationID generic.LocationID `json:"location_id"`
	Type       EventType          `json:"type"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Key returns the aggregate key this event contributes to, with the date
// taken in loc.
func (e RawEvent) Key(loc *time.Location) DayKey {
	return DayKey{UserID: e.UserID, LocationID: e.LocationID, Date: generic.DayOf(e.Timestamp, loc)}
}

// =============================================================================
// DAILY AGGREGATE
// =============================================================================

// DayKey identifies one WorkDay.
type DayKey struct {
	UserID     generic.UserID     `json:"user_id"`
	LocationID generic.LocationID `json:"location_id"`
	Date       generic.TimePoint  `json:"date"`
}

func (k DayKey) String() string {
	return string(k.UserID) + "/" + string(k.LocationID) + "/" + k.Date.String()
}

// WorkDay is the derived aggregate of one DayKey. It is always recomputed
// from the full event set and never edited by hand.
type WorkDay struct {
	DayKey
	TotalMinutes generic.Minutes `json:"total_minutes"`
	BreakMinutes generic.Minutes `json:"break_minutes"`
	MeetsPolicy  bool            `json:"meets_policy"`
	FirstClockIn *time.Time      `json:"first_clock_in,omitempty"`
	LastClockOut *time.Time      `json:"last_clock_out,omitempty"`
}

// =============================================================================
// POLICIES
// =============================================================================

// CompliancePolicy is an org's in-person attendance requirement.
type CompliancePolicy struct {
	RequiredDaysPerWeek  int             `json:"required_days_per_week"`
	MinimumMinutesPerDay generic.Minutes `json:"minimum_minutes_per_day"`
}

// Meets reports whether a day's worked minutes satisfy the per-day floor.
// With no floor configured, any positive day counts.
func (p CompliancePolicy) Meets(total generic.Minutes) bool {
	if p.MinimumMinutesPerDay <= 0 {
		return total > 0
	}
	return total >= p.MinimumMinutesPerDay
}

// =============================================================================
// LOCATIONS
// =============================================================================

// LocationCategory classifies a work location.
type LocationCategory string

const (
	CategoryOffice LocationCategory = "OFFICE"
	CategoryHome   LocationCategory = "HOME"
	CategoryField  LocationCategory = "FIELD"
)

// IsRemote reports whether days at this category are excluded from
// in-person compliance.
func (c LocationCategory) IsRemote() bool {
	return strings.EqualFold(string(c), string(CategoryHome))
}

// Location is a place users clock in at.
type Location struct {
	ID       generic.LocationID `json:"id"`
	OrgID    generic.OrgID      `json:"org_id"`
	Name     string             `json:"name"`
	Category LocationCategory   `json:"category"`
}
