/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Recording and deleting punches (status codes, reconciled WorkDay)
- Settings resolution through location -> org -> effective policy
- WorkDay listing and weekly reports
- Org policy documents, jurisdictions, locations
- Manual pending sweep, metrics and health endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/metrics"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fixedNow is Wednesday 2025-03-12, inside the scenario week.
var fixedNow = time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	h := NewHandler(store, HandlerConfig{
		Defaults: factory.Defaults{Timezone: time.UTC, WeekStart: time.Monday},
		Metrics:  rec,
		Now:      func() time.Time { return fixedNow },
	})
	return &testServer{
		handler: h,
		router:  NewRouter(h, RouterConfig{Gatherer: reg}),
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// seedAcme stores the US-CA policy and an office location for acme.
func (s *testServer) seedAcme(t *testing.T) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/orgs/acme/policies",
		factory.CaliforniaHybridJSON("acme-2025", "acme", "2025-01-01", 3, 240))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/locations", CreateLocationRequest{
		ID: "acme-sf", OrgID: "acme", Name: "San Francisco HQ", Category: "office",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func (s *testServer) punch(t *testing.T, id, typ, ts string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/events", RecordEventRequest{
		ID: id, UserID: "alice", LocationID: "acme-sf", Type: typ, Timestamp: ts,
	})
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestRecordEvent_ReconcilesDay(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	// GIVEN: A clock-in (Los Angeles 09:00)
	rr := s.punch(t, "e1", "CLOCK_IN", "2025-03-10T09:00:00-07:00")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[EventResultResponse](t, rr)
	require.NotNil(t, first.WorkDay)
	assert.Equal(t, 0, first.WorkDay.TotalMinutes)
	require.Len(t, first.Anomalies, 1)
	assert.Equal(t, "open_clock_in", first.Anomalies[0].Kind)

	// WHEN: The clock-out arrives
	rr = s.punch(t, "e2", "clock_out", "2025-03-10T17:30:00-07:00")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// THEN: The day is 8h30, stored in UTC
	res := decode[EventResultResponse](t, rr)
	assert.Equal(t, "CLOCK_OUT", res.Event.Type)
	assert.Equal(t, "2025-03-11T00:30:00Z", res.Event.Timestamp)
	require.NotNil(t, res.WorkDay)
	assert.Equal(t, "2025-03-10", res.WorkDay.Date)
	assert.Equal(t, 510, res.WorkDay.TotalMinutes)
	assert.Equal(t, "8.5", res.WorkDay.TotalHours.String())
	assert.True(t, res.WorkDay.MeetsPolicy)
	assert.Empty(t, res.Anomalies)
}

func TestRecordEvent_LocalDateFromOrgTimezone(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	// 23:30 in Los Angeles is already the next day in UTC
	rr := s.punch(t, "late", "CLOCK_IN", "2025-03-11T06:30:00Z")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	res := decode[EventResultResponse](t, rr)
	assert.Equal(t, "2025-03-10", res.WorkDay.Date)
}

func TestRecordEvent_GeneratesID(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	rr := s.punch(t, "", "CLOCK_IN", "2025-03-10T09:00:00-07:00")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	res := decode[EventResultResponse](t, rr)
	assert.NotEmpty(t, res.Event.ID)

	rr = s.do(t, http.MethodGet, "/api/events/"+res.Event.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecordEvent_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)
	require.Equal(t, http.StatusCreated, s.punch(t, "e1", "CLOCK_IN", "2025-03-10T09:00:00Z").Code)

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"duplicate id", RecordEventRequest{ID: "e1", UserID: "alice", LocationID: "acme-sf", Type: "CLOCK_IN", Timestamp: "2025-03-10T10:00:00Z"}, http.StatusConflict, ""},
		{"unknown location", RecordEventRequest{UserID: "alice", LocationID: "mars", Type: "CLOCK_IN", Timestamp: "2025-03-10T10:00:00Z"}, http.StatusNotFound, ""},
		{"unknown type", RecordEventRequest{UserID: "alice", LocationID: "acme-sf", Type: "LUNCH", Timestamp: "2025-03-10T10:00:00Z"}, http.StatusBadRequest, "type"},
		{"bad timestamp", RecordEventRequest{UserID: "alice", LocationID: "acme-sf", Type: "CLOCK_IN", Timestamp: "yesterday"}, http.StatusBadRequest, "timestamp"},
		{"missing user", RecordEventRequest{LocationID: "acme-sf", Type: "CLOCK_IN", Timestamp: "2025-03-10T10:00:00Z"}, http.StatusBadRequest, "user_id"},
		{"missing location", RecordEventRequest{UserID: "alice", Type: "CLOCK_IN", Timestamp: "2025-03-10T10:00:00Z"}, http.StatusBadRequest, "location_id"},
		{"malformed body", `{"user_id":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/api/events", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			resp := decode[ErrorResponse](t, rr)
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Equal(t, tt.field, resp.Field)
			}
		})
	}
}

func TestDeleteEvent_RebuildsDay(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	// GIVEN: A mistaken 07:00 punch before the real day
	s.punch(t, "wrong", "CLOCK_IN", "2025-03-10T07:00:00-07:00")
	s.punch(t, "in", "CLOCK_IN", "2025-03-10T09:00:00-07:00")
	rr := s.punch(t, "out", "CLOCK_OUT", "2025-03-10T17:00:00-07:00")
	require.Len(t, decode[EventResultResponse](t, rr).Anomalies, 1)

	// WHEN: The wrong punch is deleted
	rr = s.do(t, http.MethodDelete, "/api/events/wrong", nil)

	// THEN: The day no longer reports the overwritten clock-in
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[EventResultResponse](t, rr)
	assert.Equal(t, "wrong", res.Event.ID)
	require.NotNil(t, res.WorkDay)
	assert.Equal(t, 480, res.WorkDay.TotalMinutes)
	assert.Equal(t, "2025-03-10T16:00:00Z", *res.WorkDay.FirstClockIn)
	assert.Empty(t, res.Anomalies)

	rr = s.do(t, http.MethodGet, "/api/events/wrong", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = s.do(t, http.MethodDelete, "/api/events/wrong", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteEvent_LastEventRemovesWorkDay(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)
	s.punch(t, "only", "CLOCK_IN", "2025-03-10T09:00:00-07:00")

	rr := s.do(t, http.MethodDelete, "/api/events/only", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[EventResultResponse](t, rr).WorkDay)

	rr = s.do(t, http.MethodGet, "/api/users/alice/workdays?from=2025-03-10&to=2025-03-16", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]WorkDayDTO](t, rr))
}

// =============================================================================
// USER TESTS
// =============================================================================

func TestGetWorkDays(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)
	s.punch(t, "m-in", "CLOCK_IN", "2025-03-10T09:00:00-07:00")
	s.punch(t, "m-out", "CLOCK_OUT", "2025-03-10T17:00:00-07:00")
	s.punch(t, "w-in", "CLOCK_IN", "2025-03-12T09:00:00-07:00")
	s.punch(t, "w-out", "CLOCK_OUT", "2025-03-12T12:00:00-07:00")

	rr := s.do(t, http.MethodGet, "/api/users/alice/workdays?from=2025-03-10&to=2025-03-11", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	days := decode[[]WorkDayDTO](t, rr)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-03-10", days[0].Date)

	// Default: the current week of the handler clock
	rr = s.do(t, http.MethodGet, "/api/users/alice/workdays", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	days = decode[[]WorkDayDTO](t, rr)
	require.Len(t, days, 2)
	assert.Equal(t, 180, days[1].TotalMinutes)
	assert.False(t, days[1].MeetsPolicy)

	rr = s.do(t, http.MethodGet, "/api/users/alice/workdays?from=2025-03-12&to=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = s.do(t, http.MethodGet, "/api/users/alice/workdays?from=tuesday", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetWeeklyReport(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	// GIVEN: One 13h day (4h overtime, 1h double-time)
	s.punch(t, "in", "CLOCK_IN", "2025-03-11T07:00:00-07:00")
	s.punch(t, "out", "CLOCK_OUT", "2025-03-11T20:00:00-07:00")

	rr := s.do(t, http.MethodGet, "/api/users/alice/weekly?org=acme&date=2025-03-12", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rep := decode[WeeklyReportDTO](t, rr)
	assert.Equal(t, "2025-03-10", rep.WeekStart)
	assert.Equal(t, "2025-03-16", rep.WeekEnd)
	assert.Equal(t, "acme-2025", rep.PolicyID)
	assert.Equal(t, "US-CA", rep.Jurisdiction)
	assert.Equal(t, 480, rep.Overtime.RegularMinutes)
	assert.Equal(t, 240, rep.Overtime.OvertimeMinutes)
	assert.Equal(t, 60, rep.Overtime.DoubleTimeMinutes)
	assert.Equal(t, 780, rep.Overtime.TotalMinutes)
	assert.Equal(t, "13", rep.Overtime.Hours.Total.String())
	require.Len(t, rep.Days, 7)
	assert.Equal(t, 780, rep.Days[1].TotalMinutes)
	assert.Equal(t, 1, rep.Attendance.DaysWorked)
	assert.False(t, rep.Attendance.IsCompliant)

	rr = s.do(t, http.MethodGet, "/api/users/alice/weekly", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "org", decode[ErrorResponse](t, rr).Field)

	rr = s.do(t, http.MethodGet, "/api/users/alice/weekly?org=acme&date=12-03-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// POLICY TESTS
// =============================================================================

func TestPolicies(t *testing.T) {
	s := newTestServer(t)

	// Org from the path fills a missing org_id
	rr := s.do(t, http.MethodPost, "/api/orgs/globex/policies", `{"effective_from": "2025-01-01", "jurisdiction": "us-co"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[PolicyDTO](t, rr)
	assert.Equal(t, "globex", created.OrgID)
	assert.Equal(t, "US-CO", created.Config.Jurisdiction)

	rr = s.do(t, http.MethodPost, "/api/orgs/globex/policies", `{"org_id": "globex", "effective_from": "2025-07-01", "compliance": {"required_days_per_week": 2}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/orgs/globex/policies", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]PolicyDTO](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-07-01", list[0].EffectiveFrom)

	rr = s.do(t, http.MethodGet, "/api/orgs/globex/policies/effective?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2025-01-01", decode[PolicyDTO](t, rr).EffectiveFrom)

	rr = s.do(t, http.MethodGet, "/api/orgs/initech/policies/effective", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "initech-default", decode[PolicyDTO](t, rr).ID)
}

func TestCreatePolicy_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"org mismatch", `{"org_id": "acme", "effective_from": "2025-01-01"}`, "org_id"},
		{"missing effective date", `{}`, "effective_from"},
		{"bad timezone", `{"effective_from": "2025-01-01", "timezone": "Nowhere/City"}`, "timezone"},
		{"negative override", `{"effective_from": "2025-01-01", "overtime_override": {"weekly_threshold_minutes": -1}}`, "overtime_override.weekly_threshold_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/api/orgs/globex/policies", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rr).Field)
		})
	}
}

func TestListJurisdictions(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/jurisdictions", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	byCode := map[string]JurisdictionDTO{}
	for _, j := range decode[[]JurisdictionDTO](t, rr) {
		byCode[j.Code] = j
	}
	require.Contains(t, byCode, "US-CA")
	assert.True(t, byCode["US-CA"].Policy.SeventhDayRule)
	assert.Equal(t, generic.Minutes(720), byCode["US-CO"].Policy.DailyThresholdMinutes)
}

func TestConfiguredJurisdiction_DrivesWeeklyReport(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// GIVEN: A registry with an extra 10h-daily jurisdiction
	reg := overtime.NewRegistry().WithJurisdiction("us-xx", overtime.OvertimePolicy{
		DailyThresholdMinutes:  600,
		WeeklyThresholdMinutes: 2400,
	})
	h := NewHandler(store, HandlerConfig{
		Defaults: factory.Defaults{Timezone: time.UTC, WeekStart: time.Monday},
		Registry: reg,
		Now:      func() time.Time { return fixedNow },
	})
	s := &testServer{handler: h, router: NewRouter(h, RouterConfig{}), store: store}

	rr := s.do(t, http.MethodGet, "/api/jurisdictions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	codes := map[string]bool{}
	for _, j := range decode[[]JurisdictionDTO](t, rr) {
		codes[j.Code] = true
	}
	assert.True(t, codes["US-XX"])

	// AND: An org on that jurisdiction with an 11h day
	rr = s.do(t, http.MethodPost, "/api/orgs/initech/policies", `{
		"id": "initech-2025",
		"org_id": "initech",
		"effective_from": "2025-01-01",
		"jurisdiction": "US-XX",
		"timezone": "UTC"
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = s.do(t, http.MethodPost, "/api/locations", CreateLocationRequest{ID: "initech-hq", OrgID: "initech", Category: "office"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	for _, p := range []RecordEventRequest{
		{ID: "in", UserID: "peter", LocationID: "initech-hq", Type: "CLOCK_IN", Timestamp: "2025-03-11T08:00:00Z"},
		{ID: "out", UserID: "peter", LocationID: "initech-hq", Type: "CLOCK_OUT", Timestamp: "2025-03-11T19:00:00Z"},
	} {
		rr = s.do(t, http.MethodPost, "/api/events", p)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	// WHEN: Reporting the week
	rr = s.do(t, http.MethodGet, "/api/users/peter/weekly?org=initech&date=2025-03-12", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rep := decode[WeeklyReportDTO](t, rr)

	// THEN: The configured daily threshold applies
	assert.Equal(t, "US-XX", rep.Jurisdiction)
	assert.Equal(t, 600, rep.Overtime.RegularMinutes)
	assert.Equal(t, 60, rep.Overtime.OvertimeMinutes)
}

// =============================================================================
// LOCATION TESTS
// =============================================================================

func TestLocations(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	rr := s.do(t, http.MethodPost, "/api/locations", CreateLocationRequest{ID: "alice-home", OrgID: "acme", Category: "home"})
	require.Equal(t, http.StatusCreated, rr.Code)
	loc := decode[LocationDTO](t, rr)
	assert.Equal(t, "HOME", loc.Category)
	assert.True(t, loc.Remote)
	assert.Equal(t, "alice-home", loc.Name)

	rr = s.do(t, http.MethodPost, "/api/locations", CreateLocationRequest{ID: "x", OrgID: "acme"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "category", decode[ErrorResponse](t, rr).Field)

	rr = s.do(t, http.MethodGet, "/api/locations?org=acme", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]LocationDTO](t, rr), 2)

	rr = s.do(t, http.MethodGet, "/api/locations?org=globex", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]LocationDTO](t, rr))
}

// =============================================================================
// ADMIN / OPS TESTS
// =============================================================================

func TestTriggerReconcile_DrainsPendingDays(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)
	ctx := context.Background()

	// GIVEN: Events written straight to the store, their days marked pending
	date := generic.NewTimePoint(2025, time.March, 10)
	key := attendance.DayKey{UserID: "alice", LocationID: "acme-sf", Date: date}
	require.NoError(t, s.store.MarkPending(ctx, key))
	require.NoError(t, s.store.AppendEvent(ctx, attendance.RawEvent{
		ID: "raw-in", UserID: "alice", LocationID: "acme-sf", Type: attendance.EventClockIn,
		Timestamp: time.Date(2025, time.March, 10, 16, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.store.AppendEvent(ctx, attendance.RawEvent{
		ID: "raw-out", UserID: "alice", LocationID: "acme-sf", Type: attendance.EventClockOut,
		Timestamp: time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC),
	}))

	// WHEN: A manual sweep runs
	rr := s.do(t, http.MethodPost, "/api/admin/reconcile", nil)

	// THEN: The day exists and nothing is pending
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ReconcileResponse](t, rr)
	assert.Equal(t, 1, resp.Reconciled)
	assert.Empty(t, resp.Error)

	days, err := s.store.LoadWorkDays(ctx, "alice", generic.Period{Start: date, End: date})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, generic.Minutes(480), days[0].TotalMinutes)

	pending, err := s.store.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTriggerReconcile_ReportsFailures(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	key := attendance.DayKey{UserID: "alice", LocationID: "deleted-site", Date: generic.NewTimePoint(2025, time.March, 10)}
	require.NoError(t, s.store.MarkPending(ctx, key))

	rr := s.do(t, http.MethodPost, "/api/admin/reconcile", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ReconcileResponse](t, rr)
	assert.Equal(t, 0, resp.Reconciled)
	assert.Contains(t, resp.Error, "location not found")
}

func TestResetDatabase(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)

	rr := s.do(t, http.MethodPost, "/api/admin/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/locations", nil)
	assert.Empty(t, decode[[]LocationDTO](t, rr))
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t)
	s.seedAcme(t)
	s.punch(t, "in", "CLOCK_IN", "2025-03-10T09:00:00-07:00")

	rr := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `attendance_reconciliations_total{outcome="upserted"} 1`), body)
	assert.True(t, strings.Contains(body, `attendance_reconcile_anomalies_total{kind="open_clock_in"} 1`), body)

	rr = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
