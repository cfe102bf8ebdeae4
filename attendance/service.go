/*
service.go - Record punches and keep WorkDays in step with them

PURPOSE:
  Wraps the pure reconciler with the I/O around it: append or delete the
  raw event, then rebuild the affected WorkDay from the complete current
  event set and persist (or remove) it.

FLOW (ReconcileKey):
  1. Lock the DayKey (single writer per key; other keys run in parallel)
  2. Load all events of the key's local day
  3. Reconcile (pure)
  4. Upsert the WorkDay, or delete it when no events remain
  5. Clear the pending mark, log anomalies, record metrics

  The pending mark is cleared only if it is no newer than step 2, so a
  concurrent writer's mark survives until its own reconciliation.

PENDING KEYS:
  When the store implements PendingQueue the key is marked before the
  event write, so a failure anywhere after it leaves work for
  ReconcilePending.

SETTINGS:
  Timezone and compliance policy are explicit per call. Nothing about the
  org is cached in the service.

SEE ALSO:
  - reconcile.go: The pure derivation
  - lock/lock.go: Per-key serialization
  - store.go: Persistence interfaces
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/lock"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/metrics"
	"go.uber.org/zap"
)

// Settings are the org parameters a reconciliation depends on.
type Settings struct {
	Compliance CompliancePolicy
	Timezone   *time.Location
}

func (s Settings) location() *time.Location {
	if s.Timezone == nil {
		return time.UTC
	}
	return s.Timezone
}

// Service records events and maintains WorkDays.
type Service struct {
	store   Store
	pending PendingQueue
	locker  lock.Locker
	logger  *zap.Logger
	metrics *metrics.Recorder
	newID   func() string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = logging.OrNop(l) } }
func WithMetrics(m *metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// WithClock sets the clock compared against pending marks. It must agree
// with the clock the store stamps marks with.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a Service with an in-process locker and no-op logging.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: lock.NewKeyedMutex(),
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	if q, ok := store.(PendingQueue); ok {
		s.pending = q
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordEvent appends ev and reconciles its day. An empty ID is generated.
func (s *Service) RecordEvent(ctx context.Context, ev RawEvent, settings Settings) (RawEvent, *ReconcileOutput, error) {
	if err := validateNewEvent(ev); err != nil {
		return RawEvent{}, nil, err
	}
	if ev.ID == "" {
		ev.ID = generic.EventID(s.newID())
	}
	ev.Timestamp = ev.Timestamp.UTC()
	key := ev.Key(settings.location())

	if err := s.markPending(ctx, key); err != nil {
		return RawEvent{}, nil, err
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return RawEvent{}, nil, fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	s.logger.Debug("event recorded",
		zap.String("event_id", string(ev.ID)),
		zap.String("user_id", string(ev.UserID)),
		zap.String("location_id", string(ev.LocationID)),
		zap.String("type", string(ev.Type)),
		zap.Time("timestamp", ev.Timestamp))

	out, err := s.ReconcileKey(ctx, key, settings)
	if err != nil {
		return ev, nil, err
	}
	return ev, out, nil
}

// DeleteEvent removes an event (correction workflow) and reconciles its day.
func (s *Service) DeleteEvent(ctx context.Context, id generic.EventID, settings Settings) (RawEvent, *ReconcileOutput, error) {
	existing, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return RawEvent{}, nil, fmt.Errorf("delete event %s: %w", id, err)
	}
	if err := s.markPending(ctx, existing.Key(settings.location())); err != nil {
		return RawEvent{}, nil, err
	}

	ev, err := s.store.DeleteEvent(ctx, id)
	if err != nil {
		return RawEvent{}, nil, fmt.Errorf("delete event %s: %w", id, err)
	}
	s.logger.Info("event deleted",
		zap.String("event_id", string(id)),
		zap.String("user_id", string(ev.UserID)))

	out, err := s.ReconcileKey(ctx, ev.Key(settings.location()), settings)
	if err != nil {
		return ev, nil, err
	}
	return ev, out, nil
}

// ReconcileKey rebuilds the WorkDay of key from the stored events.
func (s *Service) ReconcileKey(ctx context.Context, key DayKey, settings Settings) (*ReconcileOutput, error) {
	start := time.Now()
	log := s.logger.With(zap.String("day_key", key.String()))

	unlock, err := s.locker.Lock(ctx, key.String())
	if err != nil {
		s.metrics.ObserveReconcile(metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	loc := settings.location()
	loadedAt := s.now()
	events, err := s.store.LoadEvents(ctx, key.UserID, key.LocationID, key.Date.StartIn(loc), key.Date.EndIn(loc))
	if err != nil {
		s.metrics.ObserveReconcile(metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("load events for %s: %w", key, err)
	}

	out, err := ReconcileDay(key, events, settings.Compliance, loc)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, generic.ErrInvalidInput) {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.ObserveReconcile(outcome, time.Since(start))
		log.Error("reconciliation rejected", zap.Error(err))
		return nil, err
	}

	for _, a := range out.Anomalies {
		s.metrics.Anomaly(string(a.Kind))
		log.Warn("clock event anomaly",
			zap.String("kind", string(a.Kind)),
			zap.String("event_id", string(a.EventID)),
			zap.Time("at", a.At))
	}

	if out.WorkDay == nil {
		if err := s.store.DeleteWorkDay(ctx, key); err != nil {
			s.metrics.ObserveReconcile(metrics.OutcomeFailed, time.Since(start))
			return nil, fmt.Errorf("delete workday %s: %w", key, err)
		}
		s.clearPending(ctx, key, loadedAt, log)
		s.metrics.ObserveReconcile(metrics.OutcomeDeleted, time.Since(start))
		log.Info("workday removed")
		return out, nil
	}

	if err := s.store.UpsertWorkDay(ctx, *out.WorkDay); err != nil {
		s.metrics.ObserveReconcile(metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("upsert workday %s: %w", key, err)
	}
	s.clearPending(ctx, key, loadedAt, log)
	s.metrics.ObserveReconcile(metrics.OutcomeUpserted, time.Since(start))
	log.Debug("workday reconciled",
		zap.Int("total_minutes", out.WorkDay.TotalMinutes.Int()),
		zap.Int("break_minutes", out.WorkDay.BreakMinutes.Int()),
		zap.Bool("meets_policy", out.WorkDay.MeetsPolicy),
		zap.Int("events", len(events)))
	return out, nil
}

// SettingsResolver returns the settings in force for key.
type SettingsResolver func(ctx context.Context, key DayKey) (Settings, error)

// ReconcilePending reconciles up to limit marked keys and returns how many
// succeeded. A key that fails keeps its mark; the first error is returned
// after the whole batch has been attempted.
func (s *Service) ReconcilePending(ctx context.Context, limit int, resolve SettingsResolver) (int, error) {
	if s.pending == nil {
		return 0, nil
	}
	keys, err := s.pending.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	var firstErr error
	done := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		settings, err := resolve(ctx, key)
		if err == nil {
			_, err = s.ReconcileKey(ctx, key, settings)
		}
		if err != nil {
			s.logger.Warn("pending reconciliation failed",
				zap.String("day_key", key.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

func (s *Service) markPending(ctx context.Context, key DayKey) error {
	if s.pending == nil {
		return nil
	}
	if err := s.pending.MarkPending(ctx, key); err != nil {
		return fmt.Errorf("mark %s pending: %w", key, err)
	}
	return nil
}

// clearPending failures only cost a redundant sweep.
func (s *Service) clearPending(ctx context.Context, key DayKey, loadedAt time.Time, log *zap.Logger) {
	if s.pending == nil {
		return
	}
	if err := s.pending.ClearPending(ctx, key, loadedAt); err != nil {
		log.Warn("clear pending mark failed", zap.Error(err))
	}
}

// WorkDays returns a user's stored aggregates for period.
func (s *Service) WorkDays(ctx context.Context, userID generic.UserID, period generic.Period) ([]WorkDay, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return s.store.LoadWorkDays(ctx, userID, period)
}

func validateNewEvent(ev RawEvent) error {
	switch {
	case ev.UserID == "":
		return &generic.InvalidInputError{Field: "user_id", Reason: "required"}
	case ev.LocationID == "":
		return &generic.InvalidInputError{Field: "location_id", Reason: "required"}
	case !ev.Type.Valid():
		return &generic.InvalidInputError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", ev.Type)}
	case ev.Timestamp.IsZero():
		return &generic.InvalidInputError{Field: "timestamp", Reason: "required"}
	}
	return nil
}
