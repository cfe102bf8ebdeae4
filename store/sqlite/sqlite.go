/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements attendance.Store (events, work days, locations), the pending
  reconciliation queue, and org policy documents using SQLite. In
  production the same patterns apply to PostgreSQL with minor dialect
  differences.

INTERFACES IMPLEMENTED:
  attendance.EventStore:        Raw clock punches
  attendance.WorkDayStore:      Derived daily aggregates (UPSERT per key)
  attendance.LocationDirectory: Location categories
  attendance.PendingQueue:      Keys awaiting reconciliation
  factory.Store:                Org policy documents

KEY TABLES:
  raw_events:    Clock punches. Inserted and deleted, never updated
  work_days:     One row per (user, location, date)
  pending_days:  Keys marked before reconciliation, cleared after
  locations:     Location category (HOME, OFFICE, ...)
  org_policies:  Org policy documents, versioned by effective date

TIMESTAMPS:
  Instants are stored as fixed-width UTC text (nanosecond precision) so
  that string comparison in SQL matches chronological order. Dates are
  stored as YYYY-MM-DD.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// timestampLayout is fixed width so lexical order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var (
	_ attendance.Store        = (*Store)(nil)
	_ attendance.PendingQueue = (*Store)(nil)
	_ factory.Store           = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock overrides the clock used for created_at / reconciled_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Raw clock punches
	CREATE TABLE IF NOT EXISTS raw_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: load one key's day
	CREATE INDEX IF NOT EXISTS idx_raw_events_stream
		ON raw_events(user_id, location_id, occurred_at);

	-- Derived daily aggregates
	CREATE TABLE IF NOT EXISTS work_days (
		user_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		total_minutes INTEGER NOT NULL,
		break_minutes INTEGER NOT NULL,
		meets_policy BOOLEAN NOT NULL,
		first_clock_in TEXT,
		last_clock_out TEXT,
		reconciled_at TEXT NOT NULL,
		PRIMARY KEY (user_id, location_id, work_date)
	);

	CREATE INDEX IF NOT EXISTS idx_work_days_user_date
		ON work_days(user_id, work_date);

	-- Keys awaiting reconciliation
	CREATE TABLE IF NOT EXISTS pending_days (
		user_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		marked_at TEXT NOT NULL,
		PRIMARY KEY (user_id, location_id, work_date)
	);

	-- Locations
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locations_org
		ON locations(org_id);

	-- Org policy documents
	CREATE TABLE IF NOT EXISTS org_policies (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_org_policies_effective
		ON org_policies(org_id, effective_from DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (attendance.EventStore)
// =============================================================================

// AppendEvent inserts a raw event.
func (s *Store) AppendEvent(ctx context.Context, ev attendance.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_events (id, user_id, location_id, event_type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.UserID, ev.LocationID, ev.Type,
		formatTimestamp(ev.Timestamp),
		formatTimestamp(s.now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event and returns what was deleted.
func (s *Store) DeleteEvent(ctx context.Context, id generic.EventID) (attendance.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.RawEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ev, err := scanEvent(tx.QueryRowContext(ctx, selectEvent+" WHERE id = ?", id))
	if err != nil {
		return attendance.RawEvent{}, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM raw_events WHERE id = ?", id); err != nil {
		return attendance.RawEvent{}, fmt.Errorf("failed to delete event: %w", err)
	}
	return ev, tx.Commit()
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (attendance.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanEvent(s.db.QueryRowContext(ctx, selectEvent+" WHERE id = ?", id))
}

// LoadEvents returns a key's events with from <= occurred_at < to.
func (s *Store) LoadEvents(ctx context.Context, userID generic.UserID, locationID generic.LocationID, from, to time.Time) ([]attendance.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectEvent+`
		WHERE user_id = ? AND location_id = ?
		  AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, id ASC
	`, userID, locationID, formatTimestamp(from), formatTimestamp(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []attendance.RawEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

const selectEvent = `SELECT id, user_id, location_id, event_type, occurred_at FROM raw_events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (attendance.RawEvent, error) {
	var ev attendance.RawEvent
	var eventType, occurredAt string
	err := row.Scan(&ev.ID, &ev.UserID, &ev.LocationID, &eventType, &occurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.RawEvent{}, generic.ErrEventNotFound
	}
	if err != nil {
		return attendance.RawEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}
	ev.Type = attendance.EventType(eventType)
	if ev.Timestamp, err = parseTimestamp(occurredAt); err != nil {
		return attendance.RawEvent{}, err
	}
	return ev, nil
}

// =============================================================================
// WORK DAY STORE (attendance.WorkDayStore)
// =============================================================================

// UpsertWorkDay writes the aggregate for its key, replacing any previous row.
func (s *Store) UpsertWorkDay(ctx context.Context, wd attendance.WorkDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_days (user_id, location_id, work_date, total_minutes, break_minutes,
			meets_policy, first_clock_in, last_clock_out, reconciled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, location_id, work_date) DO UPDATE SET
			total_minutes = excluded.total_minutes,
			break_minutes = excluded.break_minutes,
			meets_policy = excluded.meets_policy,
			first_clock_in = excluded.first_clock_in,
			last_clock_out = excluded.last_clock_out,
			reconciled_at = excluded.reconciled_at
	`,
		wd.UserID, wd.LocationID, wd.Date.String(),
		wd.TotalMinutes.Int(), wd.BreakMinutes.Int(), wd.MeetsPolicy,
		nullTimestamp(wd.FirstClockIn), nullTimestamp(wd.LastClockOut),
		formatTimestamp(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert work day: %w", err)
	}
	return nil
}

// DeleteWorkDay removes the aggregate for key.
func (s *Store) DeleteWorkDay(ctx context.Context, key attendance.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM work_days WHERE user_id = ? AND location_id = ? AND work_date = ?",
		key.UserID, key.LocationID, key.Date.String(),
	)
	return err
}

// LoadWorkDays returns a user's aggregates within period, all locations.
func (s *Store) LoadWorkDays(ctx context.Context, userID generic.UserID, period generic.Period) ([]attendance.WorkDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, location_id, work_date, total_minutes, break_minutes,
			meets_policy, first_clock_in, last_clock_out
		FROM work_days
		WHERE user_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date ASC, location_id ASC
	`, userID, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query work days: %w", err)
	}
	defer rows.Close()

	var days []attendance.WorkDay
	for rows.Next() {
		var wd attendance.WorkDay
		var workDate string
		var total, brk int
		var firstIn, lastOut sql.NullString
		if err := rows.Scan(&wd.UserID, &wd.LocationID, &workDate, &total, &brk,
			&wd.MeetsPolicy, &firstIn, &lastOut); err != nil {
			return nil, err
		}
		if wd.Date, err = generic.ParseTimePoint(workDate); err != nil {
			return nil, err
		}
		wd.TotalMinutes = generic.Minutes(total)
		wd.BreakMinutes = generic.Minutes(brk)
		if wd.FirstClockIn, err = parseNullTimestamp(firstIn); err != nil {
			return nil, err
		}
		if wd.LastClockOut, err = parseNullTimestamp(lastOut); err != nil {
			return nil, err
		}
		days = append(days, wd)
	}
	return days, rows.Err()
}

// =============================================================================
// PENDING QUEUE (attendance.PendingQueue)
// =============================================================================

// MarkPending records that key must be reconciled.
func (s *Store) MarkPending(ctx context.Context, key attendance.DayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_days (user_id, location_id, work_date, marked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, location_id, work_date) DO UPDATE SET marked_at = excluded.marked_at
	`, key.UserID, key.LocationID, key.Date.String(), formatTimestamp(s.now()))
	return err
}

// ClearPending removes the mark for key if it was set at or before markedBy.
// marked_at uses the fixed-width layout, so the string compare is a time compare.
func (s *Store) ClearPending(ctx context.Context, key attendance.DayKey, markedBy time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_days
		WHERE user_id = ? AND location_id = ? AND work_date = ? AND marked_at <= ?
	`, key.UserID, key.LocationID, key.Date.String(), formatTimestamp(markedBy))
	return err
}

// ListPending returns up to limit keys, oldest mark first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]attendance.DayKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, location_id, work_date FROM pending_days
		ORDER BY marked_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []attendance.DayKey
	for rows.Next() {
		var k attendance.DayKey
		var workDate string
		if err := rows.Scan(&k.UserID, &k.LocationID, &workDate); err != nil {
			return nil, err
		}
		if k.Date, err = generic.ParseTimePoint(workDate); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// =============================================================================
// LOCATIONS (attendance.LocationDirectory)
// =============================================================================

// SaveLocation creates or updates a location.
func (s *Store) SaveLocation(ctx context.Context, loc attendance.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, org_id, name, category, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			name = excluded.name,
			category = excluded.category
	`, loc.ID, loc.OrgID, loc.Name, strings.ToUpper(string(loc.Category)), formatTimestamp(s.now()))
	return err
}

// GetLocation retrieves a location by ID.
func (s *Store) GetLocation(ctx context.Context, id generic.LocationID) (attendance.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loc attendance.Location
	var category string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, org_id, name, category FROM locations WHERE id = ?", id,
	).Scan(&loc.ID, &loc.OrgID, &loc.Name, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Location{}, generic.ErrLocationNotFound
	}
	if err != nil {
		return attendance.Location{}, err
	}
	loc.Category = attendance.LocationCategory(category)
	return loc, nil
}

// ListLocations returns an org's locations; an empty org lists all.
func (s *Store) ListLocations(ctx context.Context, orgID generic.OrgID) ([]attendance.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, org_id, name, category FROM locations"
	var args []any
	if orgID != "" {
		query += " WHERE org_id = ?"
		args = append(args, orgID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []attendance.Location
	for rows.Next() {
		var loc attendance.Location
		var category string
		if err := rows.Scan(&loc.ID, &loc.OrgID, &loc.Name, &category); err != nil {
			return nil, err
		}
		loc.Category = attendance.LocationCategory(category)
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// =============================================================================
// ORG POLICY STORE
// =============================================================================

// SavePolicy saves a policy document.
func (s *Store) SavePolicy(ctx context.Context, policy factory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_policies (id, org_id, effective_from, config_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			effective_from = excluded.effective_from,
			config_json = excluded.config_json
	`, policy.ID, policy.OrgID, policy.EffectiveFrom.String(), policy.ConfigJSON, formatTimestamp(s.now()))
	return err
}

// ListPolicies returns an org's policy documents, most recent effective date first.
func (s *Store) ListPolicies(ctx context.Context, orgID generic.OrgID) ([]factory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, effective_from, config_json, created_at
		FROM org_policies
		WHERE org_id = ?
		ORDER BY effective_from DESC, created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []factory.Record
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// EffectivePolicy returns the document in force for org on asOf.
func (s *Store) EffectivePolicy(ctx context.Context, orgID generic.OrgID, asOf generic.TimePoint) (factory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, effective_from, config_json, created_at
		FROM org_policies
		WHERE org_id = ? AND effective_from <= ?
		ORDER BY effective_from DESC, created_at DESC
		LIMIT 1
	`, orgID, asOf.String())
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return factory.Record{}, generic.ErrPolicyNotFound
	}
	return p, err
}

func scanPolicy(row rowScanner) (factory.Record, error) {
	var p factory.Record
	var effectiveFrom, createdAt string
	if err := row.Scan(&p.ID, &p.OrgID, &effectiveFrom, &p.ConfigJSON, &createdAt); err != nil {
		return factory.Record{}, err
	}
	var err error
	if p.EffectiveFrom, err = generic.ParseTimePoint(effectiveFrom); err != nil {
		return factory.Record{}, err
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return factory.Record{}, err
	}
	return p, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all rows (demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"raw_events", "work_days", "pending_days", "locations", "org_policies"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseNullTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
