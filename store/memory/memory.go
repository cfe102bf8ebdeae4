// Package memory provides an in-memory attendance.Store (for testing/dev).
// It also implements attendance.PendingQueue and factory.Store so the
// service, the sweeper and the policy resolver can run without SQLite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	events    map[streamKey][]attendance.RawEvent
	byID      map[generic.EventID]streamKey
	workDays  map[attendance.DayKey]attendance.WorkDay
	pending   map[attendance.DayKey]pendingMark
	pendSeq   uint64
	locations map[generic.LocationID]attendance.Location
	policies  map[string]factory.Record
	now       func() time.Time
}

type pendingMark struct {
	seq uint64
	at  time.Time
}

type streamKey struct {
	UserID     generic.UserID
	LocationID generic.LocationID
}

var (
	_ attendance.Store        = (*Memory)(nil)
	_ attendance.PendingQueue = (*Memory)(nil)
	_ factory.Store           = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{
		events:    make(map[streamKey][]attendance.RawEvent),
		byID:      make(map[generic.EventID]streamKey),
		workDays:  make(map[attendance.DayKey]attendance.WorkDay),
		pending:   make(map[attendance.DayKey]pendingMark),
		locations: make(map[generic.LocationID]attendance.Location),
		policies:  make(map[string]factory.Record),
		now:       time.Now,
	}
}

// SetClock overrides the clock used for pending marks and created_at.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AppendEvent inserts ev keeping each (user, location) stream ordered by time.
func (m *Memory) AppendEvent(_ context.Context, ev attendance.RawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[ev.ID]; exists {
		return generic.ErrDuplicateEvent
	}

	k := streamKey{UserID: ev.UserID, LocationID: ev.LocationID}
	evs := m.events[k]

	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].Timestamp.After(ev.Timestamp)
	})
	evs = append(evs, attendance.RawEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	m.events[k] = evs
	m.byID[ev.ID] = k
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, id generic.EventID) (attendance.RawEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.byID[id]
	if !ok {
		return attendance.RawEvent{}, generic.ErrEventNotFound
	}
	evs := m.events[k]
	for i, ev := range evs {
		if ev.ID == id {
			m.events[k] = append(evs[:i:i], evs[i+1:]...)
			delete(m.byID, id)
			return ev, nil
		}
	}
	return attendance.RawEvent{}, generic.ErrEventNotFound
}

func (m *Memory) GetEvent(_ context.Context, id generic.EventID) (attendance.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.byID[id]
	if !ok {
		return attendance.RawEvent{}, generic.ErrEventNotFound
	}
	for _, ev := range m.events[k] {
		if ev.ID == id {
			return ev, nil
		}
	}
	return attendance.RawEvent{}, generic.ErrEventNotFound
}

func (m *Memory) LoadEvents(_ context.Context, userID generic.UserID, locationID generic.LocationID, from, to time.Time) ([]attendance.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.RawEvent
	for _, ev := range m.events[streamKey{UserID: userID, LocationID: locationID}] {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// =============================================================================
// WORK DAYS
// =============================================================================

func (m *Memory) UpsertWorkDay(_ context.Context, wd attendance.WorkDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workDays[wd.DayKey] = wd
	return nil
}

func (m *Memory) DeleteWorkDay(_ context.Context, key attendance.DayKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workDays, key)
	return nil
}

func (m *Memory) LoadWorkDays(_ context.Context, userID generic.UserID, period generic.Period) ([]attendance.WorkDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.WorkDay
	for k, wd := range m.workDays {
		if k.UserID == userID && period.Contains(k.Date) {
			result = append(result, wd)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].LocationID < result[j].LocationID
	})
	return result, nil
}

// =============================================================================
// LOCATIONS
// =============================================================================

func (m *Memory) SaveLocation(_ context.Context, loc attendance.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.ID] = loc
	return nil
}

func (m *Memory) GetLocation(_ context.Context, id generic.LocationID) (attendance.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[id]
	if !ok {
		return attendance.Location{}, generic.ErrLocationNotFound
	}
	return loc, nil
}

func (m *Memory) ListLocations(_ context.Context, orgID generic.OrgID) ([]attendance.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.Location
	for _, loc := range m.locations {
		if orgID == "" || loc.OrgID == orgID {
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// PENDING QUEUE
// =============================================================================

func (m *Memory) MarkPending(_ context.Context, key attendance.DayKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendSeq++
	m.pending[key] = pendingMark{seq: m.pendSeq, at: m.now()}
	return nil
}

// ClearPending keeps a mark set after markedBy.
func (m *Memory) ClearPending(_ context.Context, key attendance.DayKey, markedBy time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mark, ok := m.pending[key]; ok && !mark.at.After(markedBy) {
		delete(m.pending, key)
	}
	return nil
}

func (m *Memory) ListPending(_ context.Context, limit int) ([]attendance.DayKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]attendance.DayKey, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m.pending[keys[i]].seq < m.pending[keys[j]].seq })
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// =============================================================================
// ORG POLICIES
// =============================================================================

func (m *Memory) SavePolicy(_ context.Context, rec factory.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.policies[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = m.now()
	}
	m.policies[rec.ID] = rec
	return nil
}

func (m *Memory) ListPolicies(_ context.Context, orgID generic.OrgID) ([]factory.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []factory.Record
	for _, rec := range m.policies {
		if rec.OrgID == orgID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveFrom.Equal(result[j].EffectiveFrom) {
			return result[i].EffectiveFrom.After(result[j].EffectiveFrom)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) EffectivePolicy(ctx context.Context, orgID generic.OrgID, asOf generic.TimePoint) (factory.Record, error) {
	recs, _ := m.ListPolicies(ctx, orgID)
	for _, rec := range recs {
		if rec.EffectiveFrom.BeforeOrEqual(asOf) {
			return rec, nil
		}
	}
	return factory.Record{}, generic.ErrPolicyNotFound
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[streamKey][]attendance.RawEvent)
	m.byID = make(map[generic.EventID]streamKey)
	m.workDays = make(map[attendance.DayKey]attendance.WorkDay)
	m.pending = make(map[attendance.DayKey]pendingMark)
	m.locations = make(map[generic.LocationID]attendance.Location)
	m.policies = make(map[string]factory.Record)
	return nil
}
