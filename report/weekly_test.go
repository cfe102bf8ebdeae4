package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var monday = generic.NewTimePoint(2025, time.March, 10)

type fixture struct {
	store    *memory.Memory
	resolver *factory.Resolver
	reporter *report.Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	resolver := factory.NewResolver(store, factory.NewPolicyFactory(factory.Defaults{WeekStart: time.Monday}), store)
	return &fixture{
		store:    store,
		resolver: resolver,
		reporter: report.NewReporter(store, store, resolver, nil, nil),
	}
}

func (f *fixture) workDay(t *testing.T, user, loc string, offset, minutes int, meets bool) {
	t.Helper()
	require.NoError(t, f.store.UpsertWorkDay(context.Background(), attendance.WorkDay{
		DayKey:       attendance.DayKey{UserID: generic.UserID(user), LocationID: generic.LocationID(loc), Date: monday.AddDays(offset)},
		TotalMinutes: generic.Minutes(minutes),
		MeetsPolicy:  meets,
	}))
}

func (f *fixture) location(t *testing.T, id, org string, category attendance.LocationCategory) {
	t.Helper()
	require.NoError(t, f.store.SaveLocation(context.Background(), attendance.Location{
		ID: generic.LocationID(id), OrgID: generic.OrgID(org), Name: id, Category: category,
	}))
}

// =============================================================================
// WEEKLY REPORT
// =============================================================================

func TestWeekly_CaliforniaWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.resolver.Save(ctx, factory.CaliforniaHybridJSON("acme-2025", "acme", "2025-01-01", 3, 240))
	require.NoError(t, err)
	f.location(t, "hq", "acme", attendance.CategoryOffice)
	f.location(t, "home", "acme", attendance.CategoryHome)

	// GIVEN: 10h Monday at HQ, 6h+3h Tuesday split across HQ and home,
	// 8h Wednesday at home
	f.workDay(t, "alice", "hq", 0, 600, true)
	f.workDay(t, "alice", "hq", 1, 360, true)
	f.workDay(t, "alice", "home", 1, 180, false)
	f.workDay(t, "alice", "home", 2, 480, true)
	f.workDay(t, "alice", "hq", 7, 480, true) // next week

	// WHEN: Asking for the week containing Wednesday
	rep, err := f.reporter.Weekly(ctx, "alice", monday.AddDays(2), "acme")
	require.NoError(t, err)

	// THEN: Daily totals sum locations per date
	assert.Equal(t, generic.Period{Start: monday, End: monday.AddDays(6)}, rep.Week)
	require.Len(t, rep.DailyTotals, 7)
	assert.Equal(t, generic.Minutes(600), rep.DailyTotals[0].TotalMinutes)
	assert.Equal(t, generic.Minutes(540), rep.DailyTotals[1].TotalMinutes)
	assert.Equal(t, generic.Minutes(480), rep.DailyTotals[2].TotalMinutes)
	assert.Equal(t, generic.Minutes(0), rep.DailyTotals[6].TotalMinutes)

	// Overtime: Monday 2h OT, Tuesday 1h OT (summed day, not per location)
	assert.Equal(t, generic.Minutes(1440), rep.Overtime.RegularMinutes)
	assert.Equal(t, generic.Minutes(180), rep.Overtime.OvertimeMinutes)
	assert.Equal(t, generic.Minutes(0), rep.Overtime.DoubleTimeMinutes)
	assert.Equal(t, generic.Minutes(1620), rep.Overtime.TotalMinutes)

	// Compliance: Monday and Tuesday at HQ, Wednesday at home does not count
	assert.Equal(t, 2, rep.Attendance.DaysWorked)
	assert.Equal(t, 3, rep.Attendance.RequiredDays)
	assert.False(t, rep.Attendance.IsCompliant)

	assert.Equal(t, "acme-2025", rep.PolicyID)
	assert.Equal(t, "US-CA", rep.Jurisdiction)
	assert.Len(t, rep.WorkDays, 4)

	hours := rep.Hours()
	assert.True(t, decimal.NewFromInt(24).Equal(hours.Regular), hours.Regular.String())
	assert.True(t, decimal.NewFromInt(3).Equal(hours.Overtime), hours.Overtime.String())
	assert.True(t, decimal.NewFromInt(27).Equal(hours.Total), hours.Total.String())
}

func TestWeekly_OrgWithoutPolicyUsesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: 45h over five days, no document stored
	for i := 0; i < 5; i++ {
		f.workDay(t, "bob", "hq", i, 540, true)
	}

	rep, err := f.reporter.Weekly(ctx, "bob", monday, "initech")
	require.NoError(t, err)

	// THEN: Federal weekly rule only, nothing required for compliance
	assert.Equal(t, "initech-default", rep.PolicyID)
	assert.Equal(t, generic.Minutes(2400), rep.Overtime.RegularMinutes)
	assert.Equal(t, generic.Minutes(300), rep.Overtime.OvertimeMinutes)
	assert.True(t, rep.Attendance.IsCompliant)
	assert.Equal(t, 5, rep.Attendance.DaysWorked, "unregistered locations count as in-person")
}

func TestWeekly_EmptyWeek(t *testing.T) {
	f := newFixture(t)

	rep, err := f.reporter.Weekly(context.Background(), "nobody", monday, "acme")

	require.NoError(t, err)
	assert.NotNil(t, rep.WorkDays)
	assert.Empty(t, rep.WorkDays)
	assert.Len(t, rep.DailyTotals, 7)
	assert.Equal(t, generic.Minutes(0), rep.Overtime.TotalMinutes)
}

func TestWeekly_SundayWeekStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.resolver.Save(ctx, factory.FederalOfficeJSON("gov-2025", "gov", "2025-01-01", "America/New_York"))
	require.NoError(t, err)

	f.workDay(t, "carol", "dc", -1, 480, true) // Sunday 2025-03-09

	rep, err := f.reporter.Weekly(ctx, "carol", monday, "gov")
	require.NoError(t, err)

	assert.Equal(t, monday.AddDays(-1), rep.Week.Start)
	assert.Equal(t, generic.Minutes(480), rep.DailyTotals[0].TotalMinutes)
	assert.Equal(t, 1, rep.Attendance.DaysWorked)
	assert.False(t, rep.Attendance.IsCompliant)
}

func TestWeekly_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reporter.Weekly(ctx, "", monday, "acme")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.reporter.Weekly(ctx, "alice", generic.TimePoint{}, "acme")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
