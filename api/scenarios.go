/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	punches for demos. Each scenario creates locations and org policy
	documents, then records events through the same path as POST
	/api/events, so every WorkDay is produced by the real reconciler.

AVAILABLE SCENARIOS:

	california-overtime-week:  Seven consecutive days in US-CA, including a
	                           13h day (double-time) and a seventh day
	hybrid-compliance-week:    US-CO org requiring 3 office days; one user
	                           falls short, one complies

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Store org policy documents via the factory
 3. Create locations
 4. Record punches (week of Monday 2025-03-10)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "california-overtime-week"}

	GET /api/users/alice/weekly?org=acme&date=2025-03-12

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to loadScenario

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: recordEvent (shared with POST /api/events)
  - factory/policy.go: Policy JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioCaliforniaOvertime = "california-overtime-week"
	ScenarioHybridCompliance   = "hybrid-compliance-week"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioCaliforniaOvertime,
		Name:        "California Overtime Week",
		Description: "Seven consecutive days in US-CA: daily overtime, a 13h double-time day, seventh-day premium, weekly overtime",
		Category:    "overtime",
	},
	{
		ID:          ScenarioHybridCompliance,
		Name:        "Hybrid Compliance Week",
		Description: "US-CO org requiring 3 office days of 6h+: home days and short office days do not count",
		Category:    "compliance",
	},
}

// scenarioWeek is the Monday all scenarios start on.
var scenarioWeek = generic.NewTimePoint(2025, time.March, 10)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if generic.IsClientError(err) {
			writeServiceError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var loader func(context.Context) error
	switch id {
	case ScenarioCaliforniaOvertime:
		loader = h.loadCaliforniaOvertimeScenario
	case ScenarioHybridCompliance:
		loader = h.loadHybridComplianceScenario
	default:
		return &generic.InvalidInputError{Field: "scenario_id", Reason: fmt.Sprintf("unknown scenario %q", id)}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := loader(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadCaliforniaOvertimeScenario: alice, acme (US-CA, America/Los_Angeles).
//
//	Mon  09:00-17:30, 30m lunch          8h
//	Tue  08:00 (re-punched 08:05)-17:05  9h   overwritten_clock_in anomaly
//	Wed  07:00-20:30, 30m lunch          13h  4h overtime, 1h double-time
//	Thu  09:00-17:00                     8h
//	Fri  09:00-17:00                     8h
//	Sat  10:00-16:00                     6h
//	Sun  10:00-14:00                     4h   seventh consecutive day
//
// Expected week: 2400 regular, 900 overtime, 60 double-time (56h).
func (h *Handler) loadCaliforniaOvertimeScenario(ctx context.Context) error {
	sc := newScenarioBuilder(ctx, h, "ca")

	sc.policy(factory.CaliforniaHybridJSON("acme-2025", "acme", "2025-01-01", 3, 240))
	sc.location("acme-sf", "acme", "San Francisco HQ", attendance.CategoryOffice)

	la, err := generic.LoadLocation("America/Los_Angeles")
	if err != nil {
		return err
	}
	day := func(offset int) generic.TimePoint { return scenarioWeek.AddDays(offset) }

	sc.shift("alice", "acme-sf", la, day(0), "09:00", "17:30", "12:00", "12:30")
	sc.punch("alice", "acme-sf", attendance.EventClockIn, la, day(1), "08:00")
	sc.shift("alice", "acme-sf", la, day(1), "08:05", "17:05", "", "")
	sc.shift("alice", "acme-sf", la, day(2), "07:00", "20:30", "12:00", "12:30")
	sc.shift("alice", "acme-sf", la, day(3), "09:00", "17:00", "", "")
	sc.shift("alice", "acme-sf", la, day(4), "09:00", "17:00", "", "")
	sc.shift("alice", "acme-sf", la, day(5), "10:00", "16:00", "", "")
	sc.shift("alice", "acme-sf", la, day(6), "10:00", "14:00", "", "")

	return sc.err
}

// hybridComplianceJSON is globex's document: Colorado overtime, three
// office days of at least six hours.
const hybridComplianceJSON = `{
	"id": "globex-2025",
	"org_id": "globex",
	"effective_from": "2025-01-01",
	"jurisdiction": "US-CO",
	"timezone": "America/Denver",
	"week_start": "monday",
	"compliance": {
		"required_days_per_week": 3,
		"minimum_minutes_per_day": 360
	}
}`

// loadHybridComplianceScenario: globex (US-CO, America/Denver).
//
//	bob:    Mon office 8h, Tue home 8h, Wed office 3h + home 5h,
//	        Thu office 7h, Fri home 8h       -> 2 office days, NOT compliant
//	carol:  Mon-Wed office 8h (1h lunch), Thu clock-in only
//	                                        -> 3 office days, compliant
func (h *Handler) loadHybridComplianceScenario(ctx context.Context) error {
	sc := newScenarioBuilder(ctx, h, "hy")

	sc.policy(hybridComplianceJSON)
	sc.location("globex-den", "globex", "Denver Office", attendance.CategoryOffice)
	sc.location("globex-home", "globex", "Remote (home)", attendance.CategoryHome)

	den, err := generic.LoadLocation("America/Denver")
	if err != nil {
		return err
	}
	day := func(offset int) generic.TimePoint { return scenarioWeek.AddDays(offset) }

	sc.shift("bob", "globex-den", den, day(0), "09:00", "17:00", "", "")
	sc.shift("bob", "globex-home", den, day(1), "09:00", "17:00", "", "")
	sc.shift("bob", "globex-den", den, day(2), "09:00", "12:00", "", "")
	sc.shift("bob", "globex-home", den, day(2), "13:00", "18:00", "", "")
	sc.shift("bob", "globex-den", den, day(3), "09:00", "16:00", "", "")
	sc.shift("bob", "globex-home", den, day(4), "09:00", "17:00", "", "")

	for i := 0; i < 3; i++ {
		sc.shift("carol", "globex-den", den, day(i), "08:00", "17:00", "12:00", "13:00")
	}
	sc.punch("carol", "globex-den", attendance.EventClockIn, den, day(3), "09:00")

	return sc.err
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

// scenarioBuilder records the first error and turns later calls into no-ops.
type scenarioBuilder struct {
	h      *Handler
	ctx    context.Context
	prefix string
	seq    int
	err    error
}

func newScenarioBuilder(ctx context.Context, h *Handler, prefix string) *scenarioBuilder {
	return &scenarioBuilder{h: h, ctx: ctx, prefix: prefix}
}

func (b *scenarioBuilder) policy(jsonStr string) {
	if b.err != nil {
		return
	}
	if _, err := b.h.Policies.Save(b.ctx, jsonStr); err != nil {
		b.err = fmt.Errorf("save policy: %w", err)
	}
}

func (b *scenarioBuilder) location(id, orgID, name string, category attendance.LocationCategory) {
	if b.err != nil {
		return
	}
	loc := attendance.Location{
		ID:       generic.LocationID(id),
		OrgID:    generic.OrgID(orgID),
		Name:     name,
		Category: category,
	}
	if err := b.h.Store.SaveLocation(b.ctx, loc); err != nil {
		b.err = fmt.Errorf("save location %s: %w", id, err)
	}
}

// shift records a clock-in/clock-out pair with an optional break.
func (b *scenarioBuilder) shift(user, location string, tz *time.Location, date generic.TimePoint, in, out, breakStart, breakEnd string) {
	b.punch(user, location, attendance.EventClockIn, tz, date, in)
	if breakStart != "" {
		b.punch(user, location, attendance.EventBreakStart, tz, date, breakStart)
		b.punch(user, location, attendance.EventBreakEnd, tz, date, breakEnd)
	}
	b.punch(user, location, attendance.EventClockOut, tz, date, out)
}

func (b *scenarioBuilder) punch(user, location string, typ attendance.EventType, tz *time.Location, date generic.TimePoint, clock string) {
	if b.err != nil {
		return
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		b.err = err
		return
	}
	b.seq++
	ev := attendance.RawEvent{
		ID:         generic.EventID(fmt.Sprintf("%s-%03d", b.prefix, b.seq)),
		UserID:     generic.UserID(user),
		LocationID: generic.LocationID(location),
		Type:       typ,
		Timestamp:  time.Date(date.Year(), date.Month(), date.Day(), hm.Hour(), hm.Minute(), 0, 0, tz),
	}
	if _, _, err := b.h.recordEvent(b.ctx, ev); err != nil {
		b.err = fmt.Errorf("record %s: %w", ev.ID, err)
	}
}
