/*
reconcile.go - Raw clock events -> one WorkDay

PURPOSE:
  Derives the canonical daily aggregate for one (user, location, date) from
  the complete set of raw punches for that key. Called after every event
  insert or delete; the result replaces the stored aggregate wholesale.

ALGORITHM:
  1. Validate every event belongs to the key (user, location, local date).
  2. Sort a copy by (timestamp, type rank, id). Caller order is never trusted.
  3. Single forward pass:
       CLOCK_IN     open a work interval (an already open one is dropped)
       CLOCK_OUT    close the open work interval, if any;
                    LastClockOut always advances
       BREAK_START  open a break (an already open one is dropped)
       BREAK_END    close the open break, if any
  4. Intervals still open at the end contribute nothing.
  5. Total = max(0, floor((work - break) / 1m)), Break = floor(break / 1m).

ANOMALIES:
  Dropped opens, unmatched closes and trailing open intervals are reported
  as Anomaly values. They never change the totals; callers log and count
  them so data-quality problems are visible instead of silent.

IDEMPOTENCE:
  The output depends only on the set of events, never on their order or on
  a previous aggregate.

SEE ALSO:
  - service.go: Loads events, reconciles, persists
  - compliance.go: Consumes WorkDays
*/
package attendance

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ANOMALIES
// =============================================================================

// AnomalyKind names a data-quality problem found while reconciling.
type AnomalyKind string

const (
	AnomalyOverwrittenClockIn    AnomalyKind = "overwritten_clock_in"
	AnomalyOverwrittenBreakStart AnomalyKind = "overwritten_break_start"
	AnomalyUnmatchedClockOut     AnomalyKind = "unmatched_clock_out"
	AnomalyUnmatchedBreakEnd     AnomalyKind = "unmatched_break_end"
	AnomalyOpenClockIn           AnomalyKind = "open_clock_in"
	AnomalyOpenBreakStart        AnomalyKind = "open_break_start"
)

// Anomaly points at the event that caused a data-quality signal.
type Anomaly struct {
	Kind    AnomalyKind     `json:"kind"`
	EventID generic.EventID `json:"event_id"`
	At      time.Time       `json:"at"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileInput is everything one reconciliation needs. Location is the
// timezone the key's date is observed in; nil means UTC.
type ReconcileInput struct {
	Key      DayKey
	Events   []RawEvent
	Policy   CompliancePolicy
	Location *time.Location
}

// ReconcileOutput carries the new aggregate. A nil WorkDay means the key has
// no events left and its stored aggregate must be removed.
type ReconcileOutput struct {
	WorkDay   *WorkDay
	Anomalies []Anomaly
}

// ReconcileDay is the convenience form of Reconcile.
func ReconcileDay(key DayKey, events []RawEvent, policy CompliancePolicy, loc *time.Location) (*ReconcileOutput, error) {
	return Reconcile(ReconcileInput{Key: key, Events: events, Policy: policy, Location: loc})
}

// Reconcile derives the WorkDay for input.Key from input.Events.
func Reconcile(input ReconcileInput) (*ReconcileOutput, error) {
	if len(input.Events) == 0 {
		return &ReconcileOutput{}, nil
	}
	if err := validateEvents(input); err != nil {
		return nil, err
	}

	events := SortEvents(input.Events)
	out := &ReconcileOutput{}

	var (
		openClockIn    *RawEvent
		openBreakStart *RawEvent
		work, brk      time.Duration
		firstClockIn   *time.Time
		lastClockOut   *time.Time
	)

	for i := range events {
		ev := &events[i]
		switch ev.Type {
		case EventClockIn:
			if openClockIn != nil {
				out.Anomalies = append(out.Anomalies, anomaly(AnomalyOverwrittenClockIn, openClockIn))
			}
			openClockIn = ev
			if firstClockIn == nil || ev.Timestamp.Before(*firstClockIn) {
				firstClockIn = timePtr(ev.Timestamp)
			}

		case EventClockOut:
			if openClockIn != nil {
				work += ev.Timestamp.Sub(openClockIn.Timestamp)
				openClockIn = nil
			} else {
				out.Anomalies = append(out.Anomalies, anomaly(AnomalyUnmatchedClockOut, ev))
			}
			if lastClockOut == nil || ev.Timestamp.After(*lastClockOut) {
				lastClockOut = timePtr(ev.Timestamp)
			}

		case EventBreakStart:
			if openBreakStart != nil {
				out.Anomalies = append(out.Anomalies, anomaly(AnomalyOverwrittenBreakStart, openBreakStart))
			}
			openBreakStart = ev

		case EventBreakEnd:
			if openBreakStart != nil {
				brk += ev.Timestamp.Sub(openBreakStart.Timestamp)
				openBreakStart = nil
			} else {
				out.Anomalies = append(out.Anomalies, anomaly(AnomalyUnmatchedBreakEnd, ev))
			}
		}
	}

	if openClockIn != nil {
		out.Anomalies = append(out.Anomalies, anomaly(AnomalyOpenClockIn, openClockIn))
	}
	if openBreakStart != nil {
		out.Anomalies = append(out.Anomalies, anomaly(AnomalyOpenBreakStart, openBreakStart))
	}

	total := generic.MaxMinutes(0, generic.FloorMinutes(work-brk))
	out.WorkDay = &WorkDay{
		DayKey:       input.Key,
		TotalMinutes: total,
		BreakMinutes: generic.MaxMinutes(0, generic.FloorMinutes(brk)),
		MeetsPolicy:  input.Policy.Meets(total),
		FirstClockIn: firstClockIn,
		LastClockOut: lastClockOut,
	}
	return out, nil
}

// SortEvents returns a copy of events in reconciliation order.
func SortEvents(events []RawEvent) []RawEvent {
	sorted := make([]RawEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Type.rank() != b.Type.rank() {
			return a.Type.rank() < b.Type.rank()
		}
		return a.ID < b.ID
	})
	return sorted
}

func validateEvents(input ReconcileInput) error {
	key := input.Key
	if key.UserID == "" || key.LocationID == "" || key.Date.IsZero() {
		return &generic.InvalidInputError{Field: "key", Reason: "user, location and date are required"}
	}
	for _, ev := range input.Events {
		switch {
		case !ev.Type.Valid():
			return &generic.InvalidInputError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", ev.Type), EventID: ev.ID}
		case ev.Timestamp.IsZero():
			return &generic.InvalidInputError{Field: "timestamp", Reason: "missing", EventID: ev.ID}
		case ev.UserID != key.UserID:
			return &generic.InvalidInputError{Field: "user_id", Reason: fmt.Sprintf("event for %s in reconciliation of %s", ev.UserID, key.UserID), EventID: ev.ID}
		case ev.LocationID != key.LocationID:
			return &generic.InvalidInputError{Field: "location_id", Reason: fmt.Sprintf("event for %s in reconciliation of %s", ev.LocationID, key.LocationID), EventID: ev.ID}
		}
		if day := generic.DayOf(ev.Timestamp, input.Location); !day.Equal(key.Date) {
			return &generic.InvalidInputError{Field: "timestamp", Reason: fmt.Sprintf("event on %s in reconciliation of %s", day, key.Date), EventID: ev.ID}
		}
	}
	return nil
}

func anomaly(kind AnomalyKind, ev *RawEvent) Anomaly {
	return Anomaly{Kind: kind, EventID: ev.ID, At: ev.Timestamp}
}

func timePtr(t time.Time) *time.Time { return &t }
