/*
calculator.go - Weekly regular / overtime / double-time split

PURPOSE:
  Classifies a week of daily worked minutes under one resolved
  OvertimePolicy. The result feeds payroll mapping and dashboards; it is
  computed on demand and never stored.

ALGORITHM:
  1. Per day (independently), split the day's minutes:
       - daily rules off:   everything is tentatively regular
       - daily rules on:    regular up to DailyThreshold, overtime beyond,
                            double-time beyond DailyDoubleTime (if set)
       - seventh day:       when SeventhDayRule is on and this day is the
                            seventh (or later) day of a run of consecutive
                            worked days, the first 8h are overtime and the
                            rest double-time
  2. Sum daily regular minutes into a weekly pool.
  3. If the pool exceeds WeeklyThreshold, move the excess to overtime.
     Minutes already classified as daily overtime never enter the pool, so
     nothing is counted twice.

INVARIANTS:
  - Regular + Overtime + DoubleTime == Total
  - No field is ever negative
  - Adding minutes to any one day never lowers Overtime + DoubleTime

BREAKDOWN:
  DailyBreakdown holds the per-day split before weekly reclassification.
  It is diagnostic; the top-level totals are authoritative.

EXAMPLE:
  result := overtime.CalculateWeeklyOvertime(days, overtime.ResolvePolicy("US-CA", nil))
  result.OvertimeMinutes.Hours()

SEE ALSO:
  - policy.go: Resolves the policy applied here
  - report/weekly.go: Builds the daily totals from stored WorkDays
*/
package overtime

import "github.com/warp/attendance-engine/generic"

// seventhDayOvertimeCap is the overtime allotment of a seventh consecutive
// worked day before double-time starts.
const seventhDayOvertimeCap = 8 * generic.MinutesPerHour

// consecutiveDaysForPremium is the streak length that triggers the
// seventh-day rule.
const consecutiveDaysForPremium = 7

// =============================================================================
// TYPES
// =============================================================================

// DailyTotal is the worked minutes of one user on one date, all locations.
type DailyTotal struct {
	Date         generic.TimePoint `json:"date"`
	TotalMinutes generic.Minutes   `json:"total_minutes"`
}

// DaySplit is the classification of one day before weekly reclassification.
type DaySplit struct {
	Date              generic.TimePoint `json:"date"`
	RegularMinutes    generic.Minutes   `json:"regular_minutes"`
	OvertimeMinutes   generic.Minutes   `json:"overtime_minutes"`
	DoubleTimeMinutes generic.Minutes   `json:"double_time_minutes"`
	SeventhDay        bool              `json:"seventh_day,omitempty"`
}

// WeeklyOvertimeResult is the classification of a whole week.
type WeeklyOvertimeResult struct {
	RegularMinutes    generic.Minutes `json:"regular_minutes"`
	OvertimeMinutes   generic.Minutes `json:"overtime_minutes"`
	DoubleTimeMinutes generic.Minutes `json:"double_time_minutes"`
	TotalMinutes      generic.Minutes `json:"total_minutes"`
	DailyBreakdown    []DaySplit      `json:"daily_breakdown"`
}

// PremiumMinutes is overtime plus double-time.
func (r WeeklyOvertimeResult) PremiumMinutes() generic.Minutes {
	return r.OvertimeMinutes + r.DoubleTimeMinutes
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateWeeklyOvertime classifies days (chronological order) under policy.
// Any number of days is accepted; a normal call passes seven.
func CalculateWeeklyOvertime(days []DailyTotal, policy OvertimePolicy) WeeklyOvertimeResult {
	result := WeeklyOvertimeResult{DailyBreakdown: make([]DaySplit, 0, len(days))}

	streak := 0
	for _, day := range days {
		total := generic.MaxMinutes(0, day.TotalMinutes)
		if total > 0 {
			streak++
		} else {
			streak = 0
		}

		var split DaySplit
		if policy.SeventhDayRule && streak >= consecutiveDaysForPremium {
			split = splitSeventhDay(total)
		} else {
			split = splitDay(total, policy)
		}
		split.Date = day.Date

		result.RegularMinutes += split.RegularMinutes
		result.OvertimeMinutes += split.OvertimeMinutes
		result.DoubleTimeMinutes += split.DoubleTimeMinutes
		result.TotalMinutes += total
		result.DailyBreakdown = append(result.DailyBreakdown, split)
	}

	if policy.WeeklyThresholdMinutes > 0 && result.RegularMinutes > policy.WeeklyThresholdMinutes {
		excess := result.RegularMinutes - policy.WeeklyThresholdMinutes
		result.RegularMinutes -= excess
		result.OvertimeMinutes += excess
	}

	return result
}

func splitDay(total generic.Minutes, policy OvertimePolicy) DaySplit {
	threshold := policy.DailyThresholdMinutes
	if threshold <= 0 {
		return DaySplit{RegularMinutes: total}
	}

	split := DaySplit{RegularMinutes: generic.MinMinutes(total, threshold)}
	excess := total - split.RegularMinutes

	// A double-time threshold below the overtime threshold behaves as equal to it.
	doubleAt := policy.DailyDoubleTimeMinutes
	if doubleAt > 0 && doubleAt < threshold {
		doubleAt = threshold
	}

	if doubleAt > 0 && total > doubleAt {
		split.OvertimeMinutes = doubleAt - threshold
		split.DoubleTimeMinutes = total - doubleAt
		return split
	}
	split.OvertimeMinutes = excess
	return split
}

func splitSeventhDay(total generic.Minutes) DaySplit {
	ot := generic.MinMinutes(total, seventhDayOvertimeCap)
	return DaySplit{
		OvertimeMinutes:   ot,
		DoubleTimeMinutes: total - ot,
		SeventhDay:        true,
	}
}

// =============================================================================
// DAILY TOTALS
// =============================================================================

// DayMinutes is one (date, minutes) contribution, typically one location's
// WorkDay. Several entries for the same date are summed.
type DayMinutes struct {
	Date    generic.TimePoint
	Minutes generic.Minutes
}

// DailyTotalsForPeriod folds contributions into one DailyTotal per day of
// period, in chronological order. Days without contributions are zero;
// contributions outside the period are ignored.
func DailyTotalsForPeriod(period generic.Period, contributions []DayMinutes) []DailyTotal {
	byDate := make(map[string]generic.Minutes, len(contributions))
	for _, c := range contributions {
		if !period.Contains(c.Date) {
			continue
		}
		byDate[c.Date.String()] += generic.MaxMinutes(0, c.Minutes)
	}

	days := period.Days()
	totals := make([]DailyTotal, len(days))
	for i, d := range days {
		totals[i] = DailyTotal{Date: d, TotalMinutes: byDate[d.String()]}
	}
	return totals
}
