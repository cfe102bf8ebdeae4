/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes reconciliation, weekly reporting and org policy management via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the domain packages.

ENDPOINTS:
  Events:
    POST   /api/events                  Record a clock punch, reconcile its day
    GET    /api/events/{id}             Get one raw event
    DELETE /api/events/{id}             Delete a punch (correction), reconcile

  Users:
    GET    /api/users/{id}/workdays     WorkDays in [from, to]
    GET    /api/users/{id}/weekly       Overtime + compliance for one week

  Policies:
    GET    /api/orgs/{org}/policies            All documents, newest first
    POST   /api/orgs/{org}/policies            Store a document
    GET    /api/orgs/{org}/policies/effective  Document in force on ?date=
    GET    /api/jurisdictions                  Built-in overtime policies

  Locations:
    GET    /api/locations               List (?org= filter)
    POST   /api/locations               Create or update

  Admin:
    POST   /api/admin/reconcile         Reconcile pending days now
    POST   /api/admin/reset             Clear all data

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (sqlite in production, memory in tests)
  - Service: Event recording and per-day reconciliation
  - Policies: Effective-dated org policy lookup
  - Reporter: Weekly overtime and compliance

SETTINGS RESOLUTION:
  A punch carries only user and location. The location names the org, the
  org's document effective on the punch date gives timezone and
  compliance policy. Unregistered locations are rejected (404).

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Event, location or policy not found
  - 409: Duplicate event ID
  - 503: Per-day lock not acquired (retry)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/lock"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/metrics"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/report"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the HTTP layer persists.
type Store interface {
	attendance.Store
	attendance.PendingQueue
	factory.Store
	SaveLocation(ctx context.Context, loc attendance.Location) error
	ListLocations(ctx context.Context, orgID generic.OrgID) ([]attendance.Location, error)
	Reset(ctx context.Context) error
}

// HandlerConfig carries optional collaborators. Zero values are usable.
type HandlerConfig struct {
	Defaults       factory.Defaults
	Registry       *overtime.Registry
	Logger         *zap.Logger
	Metrics        *metrics.Recorder
	Locker         lock.Locker
	SweepBatchSize int
	Now            func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Service  *attendance.Service
	Policies *factory.Resolver
	Reporter *report.Reporter
	Registry *overtime.Registry

	logger    *zap.Logger
	metrics   *metrics.Recorder
	defaults  factory.Defaults
	batchSize int
	now       func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, cfg HandlerConfig) *Handler {
	logger := logging.OrNop(cfg.Logger)
	registry := cfg.Registry
	if registry == nil {
		registry = overtime.NewRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 500
	}

	pf := factory.NewPolicyFactory(cfg.Defaults)
	resolver := factory.NewResolver(store, pf, store)

	opts := []attendance.Option{
		attendance.WithLogger(logger.Named("attendance")),
		attendance.WithMetrics(cfg.Metrics),
	}
	if cfg.Locker != nil {
		opts = append(opts, attendance.WithLocker(cfg.Locker))
	}

	d := pf.Default("")

	return &Handler{
		Store:     store,
		Service:   attendance.NewService(store, opts...),
		Policies:  resolver,
		Reporter:  report.NewReporter(store, store, resolver, registry, logger.Named("report")),
		Registry:  registry,
		logger:    logger,
		metrics:   cfg.Metrics,
		defaults:  factory.Defaults{Timezone: d.Timezone, WeekStart: d.WeekStart},
		batchSize: cfg.SweepBatchSize,
		now:       cfg.Now,
	}
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// RecordEvent records a clock punch and returns the reconciled day.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	eventType, err := attendance.ParseEventType(req.Type)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeServiceError(w, &generic.InvalidInputError{Field: "timestamp", Reason: "must be RFC3339"})
		return
	}

	ev := attendance.RawEvent{
		ID:         generic.EventID(req.ID),
		UserID:     generic.UserID(strings.TrimSpace(req.UserID)),
		LocationID: generic.LocationID(strings.TrimSpace(req.LocationID)),
		Type:       eventType,
		Timestamp:  ts,
	}

	recorded, out, err := h.recordEvent(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResult(recorded, out))
}

// GetEvent returns one raw event.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Store.GetEvent(r.Context(), generic.EventID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(ev))
}

// DeleteEvent deletes a punch and returns the reconciled day.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.EventID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetEvent(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	settings, err := h.settingsFor(ctx, existing)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	deleted, out, err := h.Service.DeleteEvent(ctx, id, settings)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResult(deleted, out))
}

// recordEvent resolves the org settings for ev and records it.
func (h *Handler) recordEvent(ctx context.Context, ev attendance.RawEvent) (attendance.RawEvent, *attendance.ReconcileOutput, error) {
	if ev.LocationID == "" {
		return attendance.RawEvent{}, nil, &generic.InvalidInputError{Field: "location_id", Reason: "required"}
	}
	settings, err := h.settingsFor(ctx, ev)
	if err != nil {
		return attendance.RawEvent{}, nil, err
	}
	return h.Service.RecordEvent(ctx, ev, settings)
}

func (h *Handler) settingsFor(ctx context.Context, ev attendance.RawEvent) (attendance.Settings, error) {
	asOf := generic.DayOf(ev.Timestamp, h.defaults.Timezone)
	policy, err := h.Policies.ForLocation(ctx, ev.LocationID, asOf)
	if err != nil {
		return attendance.Settings{}, err
	}
	return policy.Settings(), nil
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

// GetWorkDays returns a user's WorkDays for ?from=&to= (inclusive dates).
// Without parameters the current default week is returned.
func (h *Handler) GetWorkDays(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	period := generic.WeekOf(generic.DayOf(h.now(), h.defaults.Timezone), h.defaults.WeekStart)
	if from := r.URL.Query().Get("from"); from != "" {
		start, err := generic.ParseTimePoint(from)
		if err != nil {
			writeServiceError(w, &generic.InvalidInputError{Field: "from", Reason: err.Error()})
			return
		}
		period.Start = start
		period.End = start.AddDays(6)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		end, err := generic.ParseTimePoint(to)
		if err != nil {
			writeServiceError(w, &generic.InvalidInputError{Field: "to", Reason: err.Error()})
			return
		}
		period.End = end
	}

	days, err := h.Service.WorkDays(r.Context(), userID, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkDayDTOs(days))
}

// GetWeeklyReport returns the overtime split and compliance result for the
// org week containing ?date= (default: today).
func (h *Handler) GetWeeklyReport(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))
	orgID := generic.OrgID(r.URL.Query().Get("org"))
	if orgID == "" {
		writeServiceError(w, &generic.InvalidInputError{Field: "org", Reason: "required"})
		return
	}

	date := generic.DayOf(h.now(), h.defaults.Timezone)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := generic.ParseTimePoint(raw)
		if err != nil {
			writeServiceError(w, &generic.InvalidInputError{Field: "date", Reason: err.Error()})
			return
		}
		date = parsed
	}

	rep, err := h.Reporter.Weekly(r.Context(), userID, date, orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(rep))
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

// ListPolicies returns an org's policy documents, newest effective first.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Policies.List(r.Context(), generic.OrgID(chi.URLParam(r, "org")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = toPolicyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy stores an org policy document.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	var pj factory.OrgPolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if pj.OrgID == "" {
		pj.OrgID = orgID
	}
	if pj.OrgID != orgID {
		writeServiceError(w, &generic.InvalidInputError{Field: "org_id", Reason: "does not match path"})
		return
	}

	raw, err := json.Marshal(pj)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode policy", err)
		return
	}
	policy, err := h.Policies.Save(r.Context(), string(raw))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info("org policy saved",
		zap.String("org_id", orgID),
		zap.String("policy_id", policy.ID),
		zap.Stringer("effective_from", policy.EffectiveFrom))
	writeJSON(w, http.StatusCreated, toPolicyDTO(policy))
}

// GetEffectivePolicy returns the document in force on ?date= (default today).
func (h *Handler) GetEffectivePolicy(w http.ResponseWriter, r *http.Request) {
	orgID := generic.OrgID(chi.URLParam(r, "org"))
	date := generic.DayOf(h.now(), h.defaults.Timezone)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := generic.ParseTimePoint(raw)
		if err != nil {
			writeServiceError(w, &generic.InvalidInputError{Field: "date", Reason: err.Error()})
			return
		}
		date = parsed
	}

	policy, err := h.Policies.ForOrg(r.Context(), orgID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

// ListJurisdictions returns the registered overtime policies.
func (h *Handler) ListJurisdictions(w http.ResponseWriter, r *http.Request) {
	codes := h.Registry.Codes()
	dtos := make([]JurisdictionDTO, 0, len(codes))
	for _, code := range codes {
		p, _ := h.Registry.Lookup(code)
		dtos = append(dtos, JurisdictionDTO{Code: code, Policy: p})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LOCATION ENDPOINTS
// =============================================================================

// ListLocations returns locations, optionally filtered by ?org=.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Store.ListLocations(r.Context(), generic.OrgID(r.URL.Query().Get("org")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]LocationDTO, len(locs))
	for i, l := range locs {
		dtos[i] = toLocationDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLocation creates or updates a location.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loc, err := validateLocation(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Store.SaveLocation(r.Context(), loc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(loc))
}

func validateLocation(req CreateLocationRequest) (attendance.Location, error) {
	switch {
	case strings.TrimSpace(req.ID) == "":
		return attendance.Location{}, &generic.InvalidInputError{Field: "id", Reason: "required"}
	case strings.TrimSpace(req.OrgID) == "":
		return attendance.Location{}, &generic.InvalidInputError{Field: "org_id", Reason: "required"}
	case strings.TrimSpace(req.Category) == "":
		return attendance.Location{}, &generic.InvalidInputError{Field: "category", Reason: "required"}
	}
	name := req.Name
	if name == "" {
		name = req.ID
	}
	return attendance.Location{
		ID:       generic.LocationID(strings.TrimSpace(req.ID)),
		OrgID:    generic.OrgID(strings.TrimSpace(req.OrgID)),
		Name:     name,
		Category: attendance.LocationCategory(strings.ToUpper(strings.TrimSpace(req.Category))),
	}, nil
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerReconcile reconciles every pending day now.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.SweepPending(r.Context())
	resp := ReconcileResponse{Reconciled: n}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SweepPending drains the pending queue in batches. It stops at the first
// batch that leaves failures behind so a poisoned key cannot spin forever.
func (h *Handler) SweepPending(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := h.Service.ReconcilePending(ctx, h.batchSize, h.Policies.SettingsFor)
		total += n
		if err != nil {
			h.metrics.SweepCompleted()
			return total, err
		}
		if n < h.batchSize {
			h.metrics.SweepCompleted()
			return total, nil
		}
	}
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var inputErr *generic.InvalidInputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid input",
			Field:   inputErr.Field,
			Details: inputErr.Reason,
		})
	case errors.Is(err, generic.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, "Duplicate event", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Day is being reconciled, retry", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
