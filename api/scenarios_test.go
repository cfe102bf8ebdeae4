package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/memory"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scenarioStores runs each scenario against both store implementations.
func scenarioStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"memory": memory.New(),
		"sqlite": db,
	}
}

func scenarioServer(store Store) *testServer {
	h := NewHandler(store, HandlerConfig{
		Defaults: factory.Defaults{Timezone: time.UTC, WeekStart: time.Monday},
		Now:      func() time.Time { return fixedNow },
	})
	return &testServer{handler: h, router: NewRouter(h, RouterConfig{})}
}

func loadScenario(t *testing.T, s *testServer, id string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func weekly(t *testing.T, s *testServer, user, org string) WeeklyReportDTO {
	t.Helper()
	rr := s.do(t, http.MethodGet, "/api/users/"+user+"/weekly?org="+org+"&date=2025-03-12", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[WeeklyReportDTO](t, rr)
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestScenario_CaliforniaOvertimeWeek(t *testing.T) {
	for name, store := range scenarioStores(t) {
		t.Run(name, func(t *testing.T) {
			s := scenarioServer(store)

			// GIVEN: Seven consecutive days in US-CA
			loadScenario(t, s, ScenarioCaliforniaOvertime)

			// WHEN: Reporting the week
			rep := weekly(t, s, "alice", "acme")

			// THEN: Daily, double-time, seventh-day and weekly rules all apply
			assert.Equal(t, "US-CA", rep.Jurisdiction)
			assert.Equal(t, 2400, rep.Overtime.RegularMinutes)
			assert.Equal(t, 900, rep.Overtime.OvertimeMinutes)
			assert.Equal(t, 60, rep.Overtime.DoubleTimeMinutes)
			assert.Equal(t, 3360, rep.Overtime.TotalMinutes)
			assert.Equal(t, "56", rep.Overtime.Hours.Total.String())

			require.Len(t, rep.Days, 7)
			assert.Equal(t, 780, rep.Days[2].TotalMinutes)
			assert.Equal(t, 60, rep.Days[2].DoubleTimeMinutes)
			assert.True(t, rep.Days[6].SeventhDay)
			assert.Equal(t, 240, rep.Days[6].OvertimeMinutes)

			assert.Equal(t, 7, rep.Attendance.DaysWorked)
			assert.True(t, rep.Attendance.IsCompliant)

			// Tuesday's re-punch: the later clock-in opens the interval,
			// the earlier one is still the first clock-in of the day.
			require.Len(t, rep.WorkDays, 7)
			tue := rep.WorkDays[1]
			assert.Equal(t, "2025-03-11", tue.Date)
			assert.Equal(t, 540, tue.TotalMinutes)
			require.NotNil(t, tue.FirstClockIn)
			assert.Equal(t, "2025-03-11T15:00:00Z", *tue.FirstClockIn)
		})
	}
}

func TestScenario_HybridComplianceWeek(t *testing.T) {
	for name, store := range scenarioStores(t) {
		t.Run(name, func(t *testing.T) {
			s := scenarioServer(store)
			loadScenario(t, s, ScenarioHybridCompliance)

			// bob: home days and a 3h office day do not count
			bob := weekly(t, s, "bob", "globex")
			assert.Equal(t, 2, bob.Attendance.DaysWorked)
			assert.Equal(t, 3, bob.Attendance.RequiredDays)
			assert.False(t, bob.Attendance.IsCompliant)
			assert.Equal(t, 2340, bob.Overtime.TotalMinutes)
			assert.Equal(t, 0, bob.Overtime.OvertimeMinutes)

			// carol: three full office days, Thursday left open
			carol := weekly(t, s, "carol", "globex")
			assert.Equal(t, 3, carol.Attendance.DaysWorked)
			assert.True(t, carol.Attendance.IsCompliant)
			assert.Equal(t, 1440, carol.Overtime.TotalMinutes)

			require.Len(t, carol.WorkDays, 4)
			thu := carol.WorkDays[3]
			assert.Equal(t, "2025-03-13", thu.Date)
			assert.Equal(t, 0, thu.TotalMinutes)
			assert.False(t, thu.MeetsPolicy)
			assert.Nil(t, thu.LastClockOut)
		})
	}
}

func TestScenario_LoadReplacesPreviousData(t *testing.T) {
	s := scenarioServer(memory.New())

	loadScenario(t, s, ScenarioCaliforniaOvertime)
	loadScenario(t, s, ScenarioHybridCompliance)

	rr := s.do(t, http.MethodGet, "/api/locations?org=acme", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]LocationDTO](t, rr))

	rr = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ScenarioHybridCompliance, decode[ScenarioDTO](t, rr).ID)
}

func TestScenario_ListAndCurrent(t *testing.T) {
	s := scenarioServer(memory.New())

	rr := s.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rr), 2)

	// Nothing loaded yet
	rr = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))

	// Reset clears the current scenario
	loadScenario(t, s, ScenarioCaliforniaOvertime)
	s.do(t, http.MethodPost, "/api/admin/reset", nil)
	rr = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestScenario_UnknownID(t *testing.T) {
	s := scenarioServer(memory.New())

	rr := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "mystery"})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "scenario_id", decode[ErrorResponse](t, rr).Field)
}
