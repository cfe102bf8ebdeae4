/*
Package factory provides JSON to Go org policy conversion.

PURPOSE:
  Converts JSON org policy documents into OrgPolicy values: the compliance
  policy, the overtime jurisdiction plus org override, and the timezone and
  week start that decide which calendar day and week a punch belongs to.
  HR can change an org's rules by storing a new document with a later
  effective date. No code changes, no redeploy.

JSON SCHEMA:
  {
    "id": "acme-2025",
    "org_id": "acme",
    "effective_from": "2025-01-01",
    "jurisdiction": "US-CA",
    "timezone": "America/Los_Angeles",
    "week_start": "monday",
    "compliance": {
      "required_days_per_week": 3,
      "minimum_minutes_per_day": 240
    },
    "overtime_override": {
      "weekly_threshold_minutes": 2280
    }
  }

VERSIONING:
  An org has many documents. The one in force on a date is the one with
  the latest effective_from on or before that date (SelectEffective).

KEY FEATURES:
  - Validates JSON structure, dates, timezone and weekday names
  - Rejects negative minutes and day counts
  - Sets defaults (UTC, Monday, no compliance requirement)
  - Normalizes jurisdiction codes

USAGE:
  f := factory.NewPolicyFactory(factory.Defaults{})
  jsonStr := factory.CaliforniaHybridJSON("acme-2025", "acme", "2025-01-01", 3, 240)
  policy, err := f.ParsePolicy(jsonStr)

  settings := policy.Settings()                     // for attendance.Service
  ot := policy.OvertimePolicy(overtime.NewRegistry()) // for the weekly split

SEE ALSO:
  - overtime/policy.go: Jurisdiction registry and PolicyPatch
  - attendance/types.go: CompliancePolicy
  - resolver.go: Loading the effective document from storage
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// OrgPolicyJSON is the JSON representation of an org policy document.
type OrgPolicyJSON struct {
	ID               string                `json:"id"`
	OrgID            string                `json:"org_id"`
	EffectiveFrom    string                `json:"effective_from"`
	Jurisdiction     string                `json:"jurisdiction,omitempty"`
	Timezone         string                `json:"timezone,omitempty"`
	WeekStart        string                `json:"week_start,omitempty"`
	Compliance       *ComplianceJSON       `json:"compliance,omitempty"`
	OvertimeOverride *overtime.PolicyPatch `json:"overtime_override,omitempty"`
}

// ComplianceJSON represents the in-person attendance requirement.
type ComplianceJSON struct {
	RequiredDaysPerWeek  int `json:"required_days_per_week"`
	MinimumMinutesPerDay int `json:"minimum_minutes_per_day"`
}

// =============================================================================
// ORG POLICY
// =============================================================================

// OrgPolicy is a validated org policy document.
type OrgPolicy struct {
	ID            string
	OrgID         generic.OrgID
	EffectiveFrom generic.TimePoint
	Jurisdiction  string
	Timezone      *time.Location
	WeekStart     time.Weekday
	Compliance    attendance.CompliancePolicy
	Override      *overtime.PolicyPatch
}

// Settings returns what attendance.Service needs to reconcile a day.
func (p *OrgPolicy) Settings() attendance.Settings {
	return attendance.Settings{
		Compliance: p.Compliance,
		Timezone:   p.Timezone,
	}
}

// OvertimePolicy resolves the jurisdiction through reg and applies the override.
func (p *OrgPolicy) OvertimePolicy(reg *overtime.Registry) overtime.OvertimePolicy {
	if reg == nil {
		return overtime.ResolvePolicy(p.Jurisdiction, p.Override)
	}
	return reg.Resolve(p.Jurisdiction, p.Override)
}

// Week returns the org week containing date.
func (p *OrgPolicy) Week(date generic.TimePoint) generic.Period {
	return generic.WeekOf(date, p.WeekStart)
}

// Today returns the current local date in the org timezone.
func (p *OrgPolicy) Today(now time.Time) generic.TimePoint {
	return generic.DayOf(now, p.Timezone)
}

// JSON converts the policy back to its document form.
func (p *OrgPolicy) JSON() OrgPolicyJSON {
	pj := OrgPolicyJSON{
		ID:            p.ID,
		OrgID:         string(p.OrgID),
		EffectiveFrom: p.EffectiveFrom.String(),
		Jurisdiction:  p.Jurisdiction,
		Timezone:      p.Timezone.String(),
		WeekStart:     strings.ToLower(p.WeekStart.String()),
		Compliance: &ComplianceJSON{
			RequiredDaysPerWeek:  p.Compliance.RequiredDaysPerWeek,
			MinimumMinutesPerDay: p.Compliance.MinimumMinutesPerDay.Int(),
		},
	}
	if !p.Override.IsEmpty() {
		pj.OvertimeOverride = p.Override
	}
	return pj
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// Defaults fill fields a document leaves out.
type Defaults struct {
	Timezone  *time.Location
	WeekStart time.Weekday
}

// PolicyFactory converts JSON documents to OrgPolicy values.
type PolicyFactory struct {
	defaults Defaults
}

// NewPolicyFactory creates a policy factory. A nil timezone means UTC.
func NewPolicyFactory(defaults Defaults) *PolicyFactory {
	if defaults.Timezone == nil {
		defaults.Timezone = time.UTC
	}
	return &PolicyFactory{defaults: defaults}
}

// ParsePolicy parses a JSON string into an OrgPolicy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*OrgPolicy, error) {
	var pj OrgPolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, &generic.InvalidInputError{Field: "policy", Reason: fmt.Sprintf("failed to parse policy JSON: %v", err)}
	}
	return f.FromJSON(pj)
}

// FromJSON validates pj and converts it.
func (f *PolicyFactory) FromJSON(pj OrgPolicyJSON) (*OrgPolicy, error) {
	if strings.TrimSpace(pj.OrgID) == "" {
		return nil, &generic.InvalidInputError{Field: "org_id", Reason: "required"}
	}

	policy := &OrgPolicy{
		ID:           pj.ID,
		OrgID:        generic.OrgID(pj.OrgID),
		Jurisdiction: overtime.NormalizeJurisdiction(pj.Jurisdiction),
		Timezone:     f.defaults.Timezone,
		WeekStart:    f.defaults.WeekStart,
	}
	if policy.ID == "" {
		policy.ID = pj.OrgID + "-" + pj.EffectiveFrom
	}

	if pj.EffectiveFrom == "" {
		return nil, &generic.InvalidInputError{Field: "effective_from", Reason: "required"}
	}
	effective, err := generic.ParseTimePoint(pj.EffectiveFrom)
	if err != nil {
		return nil, &generic.InvalidInputError{Field: "effective_from", Reason: err.Error()}
	}
	policy.EffectiveFrom = effective

	if pj.Timezone != "" {
		loc, err := generic.LoadLocation(pj.Timezone)
		if err != nil {
			return nil, &generic.InvalidInputError{Field: "timezone", Reason: err.Error()}
		}
		policy.Timezone = loc
	}

	if pj.WeekStart != "" {
		wd, err := generic.ParseWeekday(pj.WeekStart)
		if err != nil {
			return nil, &generic.InvalidInputError{Field: "week_start", Reason: err.Error()}
		}
		policy.WeekStart = wd
	}

	if pj.Compliance != nil {
		if pj.Compliance.RequiredDaysPerWeek < 0 || pj.Compliance.RequiredDaysPerWeek > 7 {
			return nil, &generic.InvalidInputError{Field: "compliance.required_days_per_week", Reason: "must be between 0 and 7"}
		}
		if pj.Compliance.MinimumMinutesPerDay < 0 || pj.Compliance.MinimumMinutesPerDay > int(generic.MinutesPerDay) {
			return nil, &generic.InvalidInputError{Field: "compliance.minimum_minutes_per_day", Reason: "must be between 0 and 1440"}
		}
		policy.Compliance = attendance.CompliancePolicy{
			RequiredDaysPerWeek:  pj.Compliance.RequiredDaysPerWeek,
			MinimumMinutesPerDay: generic.Minutes(pj.Compliance.MinimumMinutesPerDay),
		}
	}

	if o := pj.OvertimeOverride; o != nil {
		if err := validatePatch(o); err != nil {
			return nil, err
		}
		if !o.IsEmpty() {
			policy.Override = o
		}
	}

	return policy, nil
}

// Default returns the policy used for an org with no stored document.
func (f *PolicyFactory) Default(orgID generic.OrgID) *OrgPolicy {
	return &OrgPolicy{
		ID:        string(orgID) + "-default",
		OrgID:     orgID,
		Timezone:  f.defaults.Timezone,
		WeekStart: f.defaults.WeekStart,
	}
}

func validatePatch(p *overtime.PolicyPatch) error {
	check := func(field string, v *generic.Minutes) error {
		if v != nil && *v < 0 {
			return &generic.InvalidInputError{Field: "overtime_override." + field, Reason: "must not be negative"}
		}
		return nil
	}
	if err := check("daily_threshold_minutes", p.DailyThresholdMinutes); err != nil {
		return err
	}
	if err := check("daily_double_time_minutes", p.DailyDoubleTimeMinutes); err != nil {
		return err
	}
	return check("weekly_threshold_minutes", p.WeeklyThresholdMinutes)
}

// =============================================================================
// EFFECTIVE DATING
// =============================================================================

// SelectEffective returns the policy in force on asOf: the latest
// EffectiveFrom on or before asOf. Later entries in the slice win ties.
func SelectEffective(policies []*OrgPolicy, asOf generic.TimePoint) (*OrgPolicy, error) {
	var best *OrgPolicy
	for _, p := range policies {
		if p == nil || p.EffectiveFrom.After(asOf) {
			continue
		}
		if best == nil || !p.EffectiveFrom.Before(best.EffectiveFrom) {
			best = p
		}
	}
	if best == nil {
		return nil, generic.ErrPolicyNotFound
	}
	return best, nil
}

// SortByEffective orders policies most-recent-effective first.
func SortByEffective(policies []*OrgPolicy) {
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].EffectiveFrom.After(policies[j].EffectiveFrom)
	})
}

// =============================================================================
// PRESETS
// =============================================================================

// CaliforniaHybridJSON returns a US-CA document with an in-office requirement.
func CaliforniaHybridJSON(id, orgID, effectiveFrom string, requiredDays, minimumMinutes int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"org_id": %q,
		"effective_from": %q,
		"jurisdiction": "US-CA",
		"timezone": "America/Los_Angeles",
		"week_start": "monday",
		"compliance": {
			"required_days_per_week": %d,
			"minimum_minutes_per_day": %d
		}
	}`, id, orgID, effectiveFrom, requiredDays, minimumMinutes)
}

// FederalOfficeJSON returns a US-FED document for a fully in-office org.
func FederalOfficeJSON(id, orgID, effectiveFrom, timezone string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"org_id": %q,
		"effective_from": %q,
		"jurisdiction": "US-FED",
		"timezone": %q,
		"week_start": "sunday",
		"compliance": {
			"required_days_per_week": 5,
			"minimum_minutes_per_day": 1
		}
	}`, id, orgID, effectiveFrom, timezone)
}
