/*
store.go - Persistence interfaces consumed by the attendance service

PURPOSE:
  Defines the boundary between reconciliation logic and the database.
  The service never talks SQL; it depends only on these interfaces.

KEY INTERFACES:
  EventStore:        Raw punches (append, delete by id, load a time range)
  WorkDayStore:      Derived aggregates (upsert, delete, load a date range)
  LocationDirectory: Location categories for compliance
  PendingQueue:      Optional. Keys marked before reconciling, cleared after

EVENTS ARE FACTS:
  Events are appended and, through an explicit correction workflow, deleted.
  They are never updated in place; a correction is delete + append.

AGGREGATES ARE DERIVED:
  WorkDayStore.UpsertWorkDay is last-writer-wins per DayKey. The service
  always writes a value computed from the full current event set, so a
  lost race only wastes work.

PENDING KEYS:
  A store that also implements PendingQueue gets every key marked before
  its reconciliation starts and cleared once the WorkDay is written. A
  crash or lock timeout in between leaves the mark for the sweeper.
  Clearing only removes marks set at or before the moment the events were
  loaded; a writer that marks the key later keeps its mark.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - store/memory: In-memory for tests
*/
package attendance

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// EventStore persists raw clock events.
type EventStore interface {
	// AppendEvent stores a new event. Returns ErrDuplicateEvent if the ID exists.
	AppendEvent(ctx context.Context, ev RawEvent) error

	// DeleteEvent removes an event and returns it. Returns ErrEventNotFound.
	DeleteEvent(ctx context.Context, id generic.EventID) (RawEvent, error)

	// GetEvent returns one event. Returns ErrEventNotFound.
	GetEvent(ctx context.Context, id generic.EventID) (RawEvent, error)

	// LoadEvents returns the events of user at location with
	// from <= timestamp < to, ordered by timestamp.
	LoadEvents(ctx context.Context, userID generic.UserID, locationID generic.LocationID, from, to time.Time) ([]RawEvent, error)
}

// WorkDayStore persists derived daily aggregates.
type WorkDayStore interface {
	// UpsertWorkDay replaces the aggregate for wd.DayKey.
	UpsertWorkDay(ctx context.Context, wd WorkDay) error

	// DeleteWorkDay removes the aggregate for key. Missing keys are not an error.
	DeleteWorkDay(ctx context.Context, key DayKey) error

	// LoadWorkDays returns all of a user's aggregates in period, any location.
	LoadWorkDays(ctx context.Context, userID generic.UserID, period generic.Period) ([]WorkDay, error)
}

// LocationDirectory resolves locations.
type LocationDirectory interface {
	GetLocation(ctx context.Context, id generic.LocationID) (Location, error)
}

// Store bundles what the service needs.
type Store interface {
	EventStore
	WorkDayStore
	LocationDirectory
}

// PendingQueue tracks keys whose WorkDay may be stale.
type PendingQueue interface {
	MarkPending(ctx context.Context, key DayKey) error
	// ClearPending removes the mark for key unless it was set after
	// markedBy.
	ClearPending(ctx context.Context, key DayKey, markedBy time.Time) error

	// ListPending returns up to limit keys, oldest mark first.
	ListPending(ctx context.Context, limit int) ([]DayKey, error)
}
