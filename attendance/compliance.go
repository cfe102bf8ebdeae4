package attendance

import "github.com/warp/attendance-engine/generic"

// =============================================================================
// WEEKLY COMPLIANCE
// =============================================================================

// WeeklyComplianceResult says whether a user came in often enough.
type WeeklyComplianceResult struct {
	DaysWorked   int  `json:"days_worked"`
	RequiredDays int  `json:"required_days"`
	IsCompliant  bool `json:"is_compliant"`
}

// CategoryLookup resolves the category of a location. Unknown locations
// return "" and count as in-person.
type CategoryLookup interface {
	CategoryOf(id generic.LocationID) LocationCategory
}

// LocationCategories is a static CategoryLookup.
type LocationCategories map[generic.LocationID]LocationCategory

func (m LocationCategories) CategoryOf(id generic.LocationID) LocationCategory { return m[id] }

// EvaluateWeeklyCompliance counts the distinct dates on which the user had
// a WorkDay meeting policy at a non-home location. Several locations on the
// same date count once.
func EvaluateWeeklyCompliance(days []WorkDay, categories CategoryLookup, policy CompliancePolicy) WeeklyComplianceResult {
	dates := make(map[string]struct{}, len(days))
	for _, d := range days {
		if !d.MeetsPolicy {
			continue
		}
		if categories != nil && categories.CategoryOf(d.LocationID).IsRemote() {
			continue
		}
		dates[d.Date.String()] = struct{}{}
	}

	required := policy.RequiredDaysPerWeek
	if required < 0 {
		required = 0
	}
	return WeeklyComplianceResult{
		DaysWorked:   len(dates),
		RequiredDays: required,
		IsCompliant:  len(dates) >= required,
	}
}
