/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - Hours rendered as decimals next to the integer minutes
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Events:
    RecordEventRequest, EventDTO, EventResultResponse, AnomalyDTO

  Work days:
    WorkDayDTO

  Weekly:
    WeeklyReportDTO, DaySplitDTO, OvertimeTotalsDTO

  Policies:
    PolicyDTO (wraps factory.OrgPolicyJSON), JurisdictionDTO

  Locations:
    LocationDTO, CreateLocationRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: OrgPolicyJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// EVENTS
// =============================================================================

// RecordEventRequest is the request to record a clock punch.
type RecordEventRequest struct {
	ID         string `json:"id,omitempty"`
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"` // RFC3339, any offset
}

// EventDTO represents a raw event in API responses.
type EventDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
}

// AnomalyDTO is a data-quality signal raised while reconciling.
type AnomalyDTO struct {
	Kind    string `json:"kind"`
	EventID string `json:"event_id"`
	At      string `json:"at"`
}

// EventResultResponse is returned after an event is recorded or deleted.
// WorkDay is null when the day has no events left.
type EventResultResponse struct {
	Event     EventDTO     `json:"event"`
	WorkDay   *WorkDayDTO  `json:"work_day"`
	Anomalies []AnomalyDTO `json:"anomalies"`
}

// =============================================================================
// WORK DAYS
// =============================================================================

// WorkDayDTO represents a daily aggregate.
type WorkDayDTO struct {
	UserID       string          `json:"user_id"`
	LocationID   string          `json:"location_id"`
	Date         string          `json:"date"`
	TotalMinutes int             `json:"total_minutes"`
	BreakMinutes int             `json:"break_minutes"`
	TotalHours   decimal.Decimal `json:"total_hours"`
	MeetsPolicy  bool            `json:"meets_policy"`
	FirstClockIn *string         `json:"first_clock_in,omitempty"`
	LastClockOut *string         `json:"last_clock_out,omitempty"`
}

// =============================================================================
// WEEKLY REPORT
// =============================================================================

// DaySplitDTO is one day of the overtime breakdown.
type DaySplitDTO struct {
	Date              string `json:"date"`
	TotalMinutes      int    `json:"total_minutes"`
	RegularMinutes    int    `json:"regular_minutes"`
	OvertimeMinutes   int    `json:"overtime_minutes"`
	DoubleTimeMinutes int    `json:"double_time_minutes"`
	SeventhDay        bool   `json:"seventh_day,omitempty"`
}

// OvertimeTotalsDTO is the authoritative weekly split.
type OvertimeTotalsDTO struct {
	RegularMinutes    int                 `json:"regular_minutes"`
	OvertimeMinutes   int                 `json:"overtime_minutes"`
	DoubleTimeMinutes int                 `json:"double_time_minutes"`
	TotalMinutes      int                 `json:"total_minutes"`
	Hours             report.HoursSummary `json:"hours"`
}

// WeeklyReportDTO is a user's week.
type WeeklyReportDTO struct {
	UserID         string                            `json:"user_id"`
	OrgID          string                            `json:"org_id"`
	WeekStart      string                            `json:"week_start"`
	WeekEnd        string                            `json:"week_end"`
	PolicyID       string                            `json:"policy_id"`
	Jurisdiction   string                            `json:"jurisdiction"`
	OvertimePolicy overtime.OvertimePolicy           `json:"overtime_policy"`
	Compliance     attendance.CompliancePolicy       `json:"compliance_policy"`
	Overtime       OvertimeTotalsDTO                 `json:"overtime"`
	Days           []DaySplitDTO                     `json:"days"`
	Attendance     attendance.WeeklyComplianceResult `json:"attendance"`
	WorkDays       []WorkDayDTO                      `json:"work_days"`
}

// =============================================================================
// POLICIES / LOCATIONS
// =============================================================================

// PolicyDTO represents an org policy document in API responses.
type PolicyDTO struct {
	ID            string                `json:"id"`
	OrgID         string                `json:"org_id"`
	EffectiveFrom string                `json:"effective_from"`
	Config        factory.OrgPolicyJSON `json:"config"`
}

// JurisdictionDTO is a registered overtime policy.
type JurisdictionDTO struct {
	Code   string                  `json:"code"`
	Policy overtime.OvertimePolicy `json:"policy"`
}

// CreateLocationRequest is the request to create or update a location.
type CreateLocationRequest struct {
	ID       string `json:"id"`
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// LocationDTO represents a location.
type LocationDTO struct {
	ID       string `json:"id"`
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Remote   bool   `json:"remote"`
}

// =============================================================================
// SCENARIOS / MISC
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ReconcileResponse reports a manual sweep.
type ReconcileResponse struct {
	Reconciled int    `json:"reconciled"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEventDTO(ev attendance.RawEvent) EventDTO {
	return EventDTO{
		ID:         string(ev.ID),
		UserID:     string(ev.UserID),
		LocationID: string(ev.LocationID),
		Type:       string(ev.Type),
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
	}
}

func toEventResult(ev attendance.RawEvent, out *attendance.ReconcileOutput) EventResultResponse {
	resp := EventResultResponse{Event: toEventDTO(ev), Anomalies: []AnomalyDTO{}}
	if out == nil {
		return resp
	}
	if out.WorkDay != nil {
		dto := toWorkDayDTO(*out.WorkDay)
		resp.WorkDay = &dto
	}
	for _, a := range out.Anomalies {
		resp.Anomalies = append(resp.Anomalies, AnomalyDTO{
			Kind:    string(a.Kind),
			EventID: string(a.EventID),
			At:      a.At.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

func toWorkDayDTO(wd attendance.WorkDay) WorkDayDTO {
	return WorkDayDTO{
		UserID:       string(wd.UserID),
		LocationID:   string(wd.LocationID),
		Date:         wd.Date.String(),
		TotalMinutes: wd.TotalMinutes.Int(),
		BreakMinutes: wd.BreakMinutes.Int(),
		TotalHours:   wd.TotalMinutes.HoursRounded(2),
		MeetsPolicy:  wd.MeetsPolicy,
		FirstClockIn: formatOptional(wd.FirstClockIn),
		LastClockOut: formatOptional(wd.LastClockOut),
	}
}

func toWorkDayDTOs(days []attendance.WorkDay) []WorkDayDTO {
	dtos := make([]WorkDayDTO, len(days))
	for i, d := range days {
		dtos[i] = toWorkDayDTO(d)
	}
	return dtos
}

func toWeeklyReportDTO(r *report.WeeklyReport) WeeklyReportDTO {
	totals := make(map[string]generic.Minutes, len(r.DailyTotals))
	for _, t := range r.DailyTotals {
		totals[t.Date.String()] = t.TotalMinutes
	}
	days := make([]DaySplitDTO, len(r.Overtime.DailyBreakdown))
	for i, d := range r.Overtime.DailyBreakdown {
		days[i] = DaySplitDTO{
			Date:              d.Date.String(),
			TotalMinutes:      totals[d.Date.String()].Int(),
			RegularMinutes:    d.RegularMinutes.Int(),
			OvertimeMinutes:   d.OvertimeMinutes.Int(),
			DoubleTimeMinutes: d.DoubleTimeMinutes.Int(),
			SeventhDay:        d.SeventhDay,
		}
	}

	return WeeklyReportDTO{
		UserID:         string(r.UserID),
		OrgID:          string(r.OrgID),
		WeekStart:      r.Week.Start.String(),
		WeekEnd:        r.Week.End.String(),
		PolicyID:       r.PolicyID,
		Jurisdiction:   r.Jurisdiction,
		OvertimePolicy: r.OvertimePolicy,
		Compliance:     r.Compliance,
		Overtime: OvertimeTotalsDTO{
			RegularMinutes:    r.Overtime.RegularMinutes.Int(),
			OvertimeMinutes:   r.Overtime.OvertimeMinutes.Int(),
			DoubleTimeMinutes: r.Overtime.DoubleTimeMinutes.Int(),
			TotalMinutes:      r.Overtime.TotalMinutes.Int(),
			Hours:             r.Hours(),
		},
		Days:       days,
		Attendance: r.Attendance,
		WorkDays:   toWorkDayDTOs(r.WorkDays),
	}
}

func toPolicyDTO(p *factory.OrgPolicy) PolicyDTO {
	return PolicyDTO{
		ID:            p.ID,
		OrgID:         string(p.OrgID),
		EffectiveFrom: p.EffectiveFrom.String(),
		Config:        p.JSON(),
	}
}

func toLocationDTO(loc attendance.Location) LocationDTO {
	return LocationDTO{
		ID:       string(loc.ID),
		OrgID:    string(loc.OrgID),
		Name:     loc.Name,
		Category: string(loc.Category),
		Remote:   loc.Category.IsRemote(),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
