package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParsePolicy_FullDocument(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{})

	policy, err := f.ParsePolicy(`{
		"id": "acme-2025",
		"org_id": "acme",
		"effective_from": "2025-01-01",
		"jurisdiction": " us-ca ",
		"timezone": "America/Los_Angeles",
		"week_start": "Sun",
		"compliance": {"required_days_per_week": 3, "minimum_minutes_per_day": 240},
		"overtime_override": {"weekly_threshold_minutes": 2280, "seventh_day_rule": false}
	}`)

	require.NoError(t, err)
	assert.Equal(t, "acme-2025", policy.ID)
	assert.Equal(t, generic.OrgID("acme"), policy.OrgID)
	assert.Equal(t, generic.NewTimePoint(2025, time.January, 1), policy.EffectiveFrom)
	assert.Equal(t, "US-CA", policy.Jurisdiction)
	assert.Equal(t, "America/Los_Angeles", policy.Timezone.String())
	assert.Equal(t, time.Sunday, policy.WeekStart)
	assert.Equal(t, 3, policy.Compliance.RequiredDaysPerWeek)
	assert.Equal(t, generic.Minutes(240), policy.Compliance.MinimumMinutesPerDay)

	// Overtime: California with the weekly threshold and seventh-day rule overridden
	ot := policy.OvertimePolicy(overtime.NewRegistry())
	assert.Equal(t, generic.Minutes(480), ot.DailyThresholdMinutes)
	assert.Equal(t, generic.Minutes(720), ot.DailyDoubleTimeMinutes)
	assert.Equal(t, generic.Minutes(2280), ot.WeeklyThresholdMinutes)
	assert.False(t, ot.SeventhDayRule)

	settings := policy.Settings()
	assert.Equal(t, policy.Timezone, settings.Timezone)
	assert.Equal(t, policy.Compliance, settings.Compliance)
}

func TestParsePolicy_DefaultsApplied(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f := factory.NewPolicyFactory(factory.Defaults{Timezone: ny, WeekStart: time.Monday})

	policy, err := f.ParsePolicy(`{"org_id": "acme", "effective_from": "2025-01-01"}`)

	require.NoError(t, err)
	assert.Equal(t, "acme-2025-01-01", policy.ID)
	assert.Equal(t, ny, policy.Timezone)
	assert.Equal(t, time.Monday, policy.WeekStart)
	assert.Equal(t, 0, policy.Compliance.RequiredDaysPerWeek)
	assert.Nil(t, policy.Override)
	assert.Equal(t, overtime.DefaultPolicy(), policy.OvertimePolicy(nil))
}

func TestParsePolicy_Rejections(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{})

	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"malformed", `{"org_id": `, "policy"},
		{"missing org", `{"effective_from": "2025-01-01"}`, "org_id"},
		{"missing effective date", `{"org_id": "acme"}`, "effective_from"},
		{"bad effective date", `{"org_id": "acme", "effective_from": "01/01/2025"}`, "effective_from"},
		{"bad timezone", `{"org_id": "acme", "effective_from": "2025-01-01", "timezone": "Mars/Olympus"}`, "timezone"},
		{"bad weekday", `{"org_id": "acme", "effective_from": "2025-01-01", "week_start": "someday"}`, "week_start"},
		{"too many days", `{"org_id": "acme", "effective_from": "2025-01-01", "compliance": {"required_days_per_week": 8}}`, "compliance.required_days_per_week"},
		{"negative days", `{"org_id": "acme", "effective_from": "2025-01-01", "compliance": {"required_days_per_week": -1}}`, "compliance.required_days_per_week"},
		{"floor over a day", `{"org_id": "acme", "effective_from": "2025-01-01", "compliance": {"minimum_minutes_per_day": 1441}}`, "compliance.minimum_minutes_per_day"},
		{"negative override", `{"org_id": "acme", "effective_from": "2025-01-01", "overtime_override": {"daily_threshold_minutes": -60}}`, "overtime_override.daily_threshold_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParsePolicy(tt.json)
			var inputErr *generic.InvalidInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}
}

func TestParsePolicy_EmptyOverrideDropped(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{})

	policy, err := f.ParsePolicy(`{"org_id": "acme", "effective_from": "2025-01-01", "jurisdiction": "US-CO", "overtime_override": {}}`)

	require.NoError(t, err)
	assert.Nil(t, policy.Override)
	assert.Equal(t, overtime.ResolvePolicy("US-CO", nil), policy.OvertimePolicy(nil))
}

func TestOrgPolicy_JSONRoundTrip(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{})
	original, err := f.ParsePolicy(factory.CaliforniaHybridJSON("acme-2025", "acme", "2025-01-01", 3, 240))
	require.NoError(t, err)

	again, err := f.FromJSON(original.JSON())

	require.NoError(t, err)
	assert.Equal(t, original.ID, again.ID)
	assert.Equal(t, original.EffectiveFrom, again.EffectiveFrom)
	assert.Equal(t, original.Timezone.String(), again.Timezone.String())
	assert.Equal(t, original.WeekStart, again.WeekStart)
	assert.Equal(t, original.Compliance, again.Compliance)
	assert.Equal(t, original.Jurisdiction, again.Jurisdiction)
}

// =============================================================================
// WEEKS AND DAYS
// =============================================================================

func TestOrgPolicy_WeekAndToday(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{})
	policy, err := f.ParsePolicy(factory.FederalOfficeJSON("fed", "gov", "2025-01-01", "America/New_York"))
	require.NoError(t, err)

	// Wednesday 2025-03-12 in a Sunday-start week
	week := policy.Week(generic.NewTimePoint(2025, time.March, 12))
	assert.Equal(t, generic.NewTimePoint(2025, time.March, 9), week.Start)
	assert.Equal(t, generic.NewTimePoint(2025, time.March, 15), week.End)

	// 02:00 UTC on the 12th is still the 11th in New York
	today := policy.Today(time.Date(2025, time.March, 12, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, generic.NewTimePoint(2025, time.March, 11), today)
}

func TestDefault(t *testing.T) {
	f := factory.NewPolicyFactory(factory.Defaults{WeekStart: time.Monday})

	policy := f.Default("acme")

	assert.Equal(t, "acme-default", policy.ID)
	assert.Equal(t, time.UTC, policy.Timezone)
	assert.Equal(t, time.Monday, policy.WeekStart)
	assert.Equal(t, 0, policy.Compliance.RequiredDaysPerWeek)
	assert.Equal(t, "", policy.Jurisdiction)
}

// =============================================================================
// EFFECTIVE DATING
// =============================================================================

func TestSelectEffective(t *testing.T) {
	p := func(id string, y int, m time.Month, d int) *factory.OrgPolicy {
		return &factory.OrgPolicy{ID: id, EffectiveFrom: generic.NewTimePoint(y, m, d)}
	}
	policies := []*factory.OrgPolicy{
		p("2025-h2", 2025, time.July, 1),
		p("2024", 2024, time.January, 1),
		p("2025", 2025, time.January, 1),
		p("2025-fix", 2025, time.January, 1),
	}

	tests := []struct {
		asOf generic.TimePoint
		want string
	}{
		{generic.NewTimePoint(2024, time.March, 1), "2024"},
		{generic.NewTimePoint(2025, time.January, 1), "2025-fix"},
		{generic.NewTimePoint(2025, time.June, 30), "2025-fix"},
		{generic.NewTimePoint(2025, time.July, 1), "2025-h2"},
	}
	for _, tt := range tests {
		got, err := factory.SelectEffective(policies, tt.asOf)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.ID, tt.asOf.String())
	}

	_, err := factory.SelectEffective(policies, generic.NewTimePoint(2023, time.December, 31))
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
	_, err = factory.SelectEffective(nil, generic.NewTimePoint(2025, time.January, 1))
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)

	factory.SortByEffective(policies)
	assert.Equal(t, "2025-h2", policies[0].ID)
	assert.Equal(t, "2024", policies[3].ID)
}
