/*
Package report composes the weekly view consumed by dashboards and payroll.

PURPOSE:
  Joins the pieces that the core keeps apart: stored WorkDays, the org
  policy in force, location categories, the overtime split and the
  compliance check. Nothing here is persisted; a report is recomputed from
  the current aggregates on every request.

FLOW (Weekly):
  1. Resolve the org policy effective on the requested date
  2. Compute the org week containing that date (org week start)
  3. Load the user's WorkDays for the week, all locations
  4. Fold them into one DailyTotal per date -> overtime split
  5. Look up location categories -> compliance evaluation

HOURS:
  Minutes stay integers throughout. Hours are derived with decimal
  arithmetic only at the edge (HoursSummary), so 2400 minutes is exactly
  40.00 hours.

SEE ALSO:
  - overtime/calculator.go: The weekly split
  - attendance/compliance.go: The in-person day count
  - factory/resolver.go: Effective-dated org policies
*/
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
	"go.uber.org/zap"
)

// PolicySource returns the org policy in force on a date.
type PolicySource interface {
	ForOrg(ctx context.Context, orgID generic.OrgID, asOf generic.TimePoint) (*factory.OrgPolicy, error)
}

// Reporter builds weekly reports.
type Reporter struct {
	workDays  attendance.WorkDayStore
	locations attendance.LocationDirectory
	policies  PolicySource
	registry  *overtime.Registry
	logger    *zap.Logger
}

// NewReporter creates a reporter. A nil registry uses the built-in jurisdictions.
func NewReporter(workDays attendance.WorkDayStore, locations attendance.LocationDirectory, policies PolicySource, registry *overtime.Registry, logger *zap.Logger) *Reporter {
	if registry == nil {
		registry = overtime.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		workDays:  workDays,
		locations: locations,
		policies:  policies,
		registry:  registry,
		logger:    logger,
	}
}

// WeeklyReport is one user's week under one org policy.
type WeeklyReport struct {
	UserID         generic.UserID                    `json:"user_id"`
	OrgID          generic.OrgID                     `json:"org_id"`
	Week           generic.Period                    `json:"week"`
	PolicyID       string                            `json:"policy_id"`
	Jurisdiction   string                            `json:"jurisdiction"`
	OvertimePolicy overtime.OvertimePolicy           `json:"overtime_policy"`
	Compliance     attendance.CompliancePolicy       `json:"compliance_policy"`
	WorkDays       []attendance.WorkDay              `json:"work_days"`
	DailyTotals    []overtime.DailyTotal             `json:"daily_totals"`
	Overtime       overtime.WeeklyOvertimeResult     `json:"overtime"`
	Attendance     attendance.WeeklyComplianceResult `json:"attendance"`
}

// HoursSummary is the overtime split in decimal hours.
type HoursSummary struct {
	Regular    decimal.Decimal `json:"regular"`
	Overtime   decimal.Decimal `json:"overtime"`
	DoubleTime decimal.Decimal `json:"double_time"`
	Total      decimal.Decimal `json:"total"`
}

// Hours converts the week's split to hours rounded to two places.
func (r *WeeklyReport) Hours() HoursSummary {
	return HoursSummary{
		Regular:    r.Overtime.RegularMinutes.HoursRounded(2),
		Overtime:   r.Overtime.OvertimeMinutes.HoursRounded(2),
		DoubleTime: r.Overtime.DoubleTimeMinutes.HoursRounded(2),
		Total:      r.Overtime.TotalMinutes.HoursRounded(2),
	}
}

// Weekly builds the report for the org week containing date.
func (r *Reporter) Weekly(ctx context.Context, userID generic.UserID, date generic.TimePoint, orgID generic.OrgID) (*WeeklyReport, error) {
	if userID == "" {
		return nil, &generic.InvalidInputError{Field: "user_id", Reason: "required"}
	}
	if date.IsZero() {
		return nil, &generic.InvalidInputError{Field: "date", Reason: "required"}
	}

	policy, err := r.policies.ForOrg(ctx, orgID, date)
	if err != nil {
		return nil, fmt.Errorf("resolve policy for %s: %w", orgID, err)
	}
	week := policy.Week(date)

	days, err := r.workDays.LoadWorkDays(ctx, userID, week)
	if err != nil {
		return nil, fmt.Errorf("load work days %s %s: %w", userID, week, err)
	}

	contributions := make([]overtime.DayMinutes, len(days))
	for i, d := range days {
		contributions[i] = overtime.DayMinutes{Date: d.Date, Minutes: d.TotalMinutes}
	}
	totals := overtime.DailyTotalsForPeriod(week, contributions)
	otPolicy := policy.OvertimePolicy(r.registry)

	categories, err := r.categories(ctx, days)
	if err != nil {
		return nil, err
	}

	if days == nil {
		days = []attendance.WorkDay{}
	}
	report := &WeeklyReport{
		UserID:         userID,
		OrgID:          policy.OrgID,
		Week:           week,
		PolicyID:       policy.ID,
		Jurisdiction:   policy.Jurisdiction,
		OvertimePolicy: otPolicy,
		Compliance:     policy.Compliance,
		WorkDays:       days,
		DailyTotals:    totals,
		Overtime:       overtime.CalculateWeeklyOvertime(totals, otPolicy),
		Attendance:     attendance.EvaluateWeeklyCompliance(days, categories, policy.Compliance),
	}

	r.logger.Debug("weekly report built",
		zap.String("user_id", string(userID)),
		zap.String("org_id", string(policy.OrgID)),
		zap.Stringer("week", week),
		zap.Int("total_minutes", report.Overtime.TotalMinutes.Int()),
		zap.Int("premium_minutes", report.Overtime.PremiumMinutes().Int()),
		zap.Bool("compliant", report.Attendance.IsCompliant))
	return report, nil
}

// categories looks up every location referenced by days. Locations missing
// from the directory stay unset and count as in-person.
func (r *Reporter) categories(ctx context.Context, days []attendance.WorkDay) (attendance.LocationCategories, error) {
	cats := make(attendance.LocationCategories)
	for _, d := range days {
		if _, seen := cats[d.LocationID]; seen {
			continue
		}
		loc, err := r.locations.GetLocation(ctx, d.LocationID)
		if errors.Is(err, generic.ErrLocationNotFound) {
			r.logger.Warn("work day at unknown location", zap.String("location_id", string(d.LocationID)))
			cats[d.LocationID] = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup location %s: %w", d.LocationID, err)
		}
		cats[d.LocationID] = loc.Category
	}
	return cats, nil
}
