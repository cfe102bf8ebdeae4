/*
policy.go - Jurisdiction overtime policies and org overrides

PURPOSE:
  Maps a labor jurisdiction code to the overtime thresholds that apply
  there, and merges an organization's partial override on top.

PRECEDENCE:
  org override field  >  jurisdiction default  >  global default

  The global default is the US federal rule: overtime after 40 hours in a
  week, no daily rules, no seventh-day rule.

ZERO MEANS OFF:
  A zero threshold disables the rule. DailyThresholdMinutes = 0 means no
  daily overtime; WeeklyThresholdMinutes = 0 means no weekly overtime.

UNKNOWN CODES:
  Never an error. An absent or unrecognized jurisdiction resolves to the
  global default so payroll keeps running on a misconfigured org.

EXAMPLE:
  weekly := generic.Minutes(38 * 60)
  policy := overtime.ResolvePolicy("US-CA", &overtime.PolicyPatch{
      WeeklyThresholdMinutes: &weekly,
  })

SEE ALSO:
  - calculator.go: Applies a resolved policy to a week
  - factory/policy.go: Parses org override documents
*/
package overtime

import (
	"sort"
	"strings"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// OVERTIME POLICY
// =============================================================================

// OvertimePolicy is the resolved set of overtime thresholds.
type OvertimePolicy struct {
	DailyThresholdMinutes  generic.Minutes `json:"daily_threshold_minutes"`
	DailyDoubleTimeMinutes generic.Minutes `json:"daily_double_time_minutes"`
	WeeklyThresholdMinutes generic.Minutes `json:"weekly_threshold_minutes"`
	SeventhDayRule         bool            `json:"seventh_day_rule"`
}

// DefaultPolicy is applied when no jurisdiction matches.
func DefaultPolicy() OvertimePolicy {
	return OvertimePolicy{WeeklyThresholdMinutes: 40 * generic.MinutesPerHour}
}

// PolicyPatch is a partial policy. Nil fields keep the base value.
type PolicyPatch struct {
	DailyThresholdMinutes  *generic.Minutes `json:"daily_threshold_minutes,omitempty"`
	DailyDoubleTimeMinutes *generic.Minutes `json:"daily_double_time_minutes,omitempty"`
	WeeklyThresholdMinutes *generic.Minutes `json:"weekly_threshold_minutes,omitempty"`
	SeventhDayRule         *bool            `json:"seventh_day_rule,omitempty"`
}

// IsEmpty reports whether the patch overrides nothing.
func (p *PolicyPatch) IsEmpty() bool {
	return p == nil || (p.DailyThresholdMinutes == nil &&
		p.DailyDoubleTimeMinutes == nil &&
		p.WeeklyThresholdMinutes == nil &&
		p.SeventhDayRule == nil)
}

// Apply returns base with every present patch field replaced.
// Negative minutes are clamped to zero (rule off).
func (p *PolicyPatch) Apply(base OvertimePolicy) OvertimePolicy {
	if p == nil {
		return base
	}
	out := base
	if p.DailyThresholdMinutes != nil {
		out.DailyThresholdMinutes = generic.MaxMinutes(0, *p.DailyThresholdMinutes)
	}
	if p.DailyDoubleTimeMinutes != nil {
		out.DailyDoubleTimeMinutes = generic.MaxMinutes(0, *p.DailyDoubleTimeMinutes)
	}
	if p.WeeklyThresholdMinutes != nil {
		out.WeeklyThresholdMinutes = generic.MaxMinutes(0, *p.WeeklyThresholdMinutes)
	}
	if p.SeventhDayRule != nil {
		out.SeventhDayRule = *p.SeventhDayRule
	}
	return out
}

// =============================================================================
// JURISDICTIONS
// =============================================================================

// Jurisdiction codes with built-in policies.
const (
	JurisdictionFederal    = "US-FED"
	JurisdictionCalifornia = "US-CA"
	JurisdictionAlaska     = "US-AK"
	JurisdictionNevada     = "US-NV"
	JurisdictionColorado   = "US-CO"
)

const (
	eightHours  = 8 * generic.MinutesPerHour
	twelveHours = 12 * generic.MinutesPerHour
	fortyHours  = 40 * generic.MinutesPerHour
)

func builtinPolicies() map[string]OvertimePolicy {
	return map[string]OvertimePolicy{
		JurisdictionFederal: {WeeklyThresholdMinutes: fortyHours},
		JurisdictionCalifornia: {
			DailyThresholdMinutes:  eightHours,
			DailyDoubleTimeMinutes: twelveHours,
			WeeklyThresholdMinutes: fortyHours,
			SeventhDayRule:         true,
		},
		JurisdictionAlaska:   {DailyThresholdMinutes: eightHours, WeeklyThresholdMinutes: fortyHours},
		JurisdictionNevada:   {DailyThresholdMinutes: eightHours, WeeklyThresholdMinutes: fortyHours},
		JurisdictionColorado: {DailyThresholdMinutes: twelveHours, WeeklyThresholdMinutes: fortyHours},
	}
}

// NormalizeJurisdiction canonicalizes a code ("us-ca " -> "US-CA").
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is an immutable jurisdiction -> policy table.
// The zero value behaves like an empty table (everything resolves to default).
type Registry struct {
	policies map[string]OvertimePolicy
}

// NewRegistry returns a registry preloaded with the built-in jurisdictions.
func NewRegistry() *Registry {
	return &Registry{policies: builtinPolicies()}
}

// WithJurisdiction returns a copy of the registry with code bound to policy.
func (r *Registry) WithJurisdiction(code string, policy OvertimePolicy) *Registry {
	next := &Registry{policies: make(map[string]OvertimePolicy, len(r.policies)+1)}
	for k, v := range r.policies {
		next.policies[k] = v
	}
	next.policies[NormalizeJurisdiction(code)] = policy
	return next
}

// Lookup returns the built-in policy for code and whether it was recognized.
func (r *Registry) Lookup(code string) (OvertimePolicy, bool) {
	p, ok := r.policies[NormalizeJurisdiction(code)]
	return p, ok
}

// Resolve returns the effective policy for a jurisdiction plus org override.
func (r *Registry) Resolve(jurisdiction string, override *PolicyPatch) OvertimePolicy {
	base, ok := r.Lookup(jurisdiction)
	if !ok {
		base = DefaultPolicy()
	}
	return override.Apply(base)
}

// Codes lists the registered jurisdiction codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.policies))
	for code := range r.policies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ResolvePolicy resolves against the built-in jurisdictions.
func ResolvePolicy(jurisdiction string, override *PolicyPatch) OvertimePolicy {
	return NewRegistry().Resolve(jurisdiction, override)
}
