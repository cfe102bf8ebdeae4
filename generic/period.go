package generic

import "time"

// =============================================================================
// PERIOD - An inclusive range of calendar days
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// Examples:
//   - Workweek Mon 2025-03-03 .. Sun 2025-03-09
//   - Payroll fortnight
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// WEEKS
// =============================================================================

// WeekOf returns the seven-day period containing date, starting on weekStart.
func WeekOf(date TimePoint, weekStart time.Weekday) Period {
	offset := (int(date.Weekday()) - int(weekStart) + 7) % 7
	start := date.AddDays(-offset)
	return Period{Start: start, End: start.AddDays(6)}
}
