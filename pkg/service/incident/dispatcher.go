// Package incident turns scored threats into alerts and applies the analyst
// action chosen for each of them.
package incident

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/metrics"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

const (
	defaultTimeoutDuration = time.Hour
	defaultBanDeleteDays   = 1
	defaultRetention       = 24 * time.Hour
)

type Dispatcher struct {
	platform  interfaces.Platform
	repo      interfaces.Repository
	store     interfaces.CounterStore
	notifiers []interfaces.AlertNotifier

	timeoutDuration time.Duration
	banDeleteDays   int
	retention       time.Duration

	mu      sync.Mutex
	alerts  map[types.AlertID]*incident.Alert
	claimed map[types.AlertID]struct{}
}

type Option func(*Dispatcher)

func WithRepository(repo interfaces.Repository) Option {
	return func(d *Dispatcher) { d.repo = repo }
}

// WithCounterStore enables the cross-process claim on analyst actions.
func WithCounterStore(store interfaces.CounterStore) Option {
	return func(d *Dispatcher) { d.store = store }
}

func WithNotifiers(notifiers ...interfaces.AlertNotifier) Option {
	return func(d *Dispatcher) { d.notifiers = append(d.notifiers, notifiers...) }
}

// WithTimeoutDuration sets how long the timeout action mutes a member.
func WithTimeoutDuration(dur time.Duration) Option {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.timeoutDuration = dur
		}
	}
}

// WithBanDeleteDays sets how many days of messages a ban removes.
func WithBanDeleteDays(days int) Option {
	return func(d *Dispatcher) {
		if days >= 0 {
			d.banDeleteDays = days
		}
	}
}

// WithRetention sets how long alerts stay in the in-flight registry and how
// long cross-process claims live.
func WithRetention(dur time.Duration) Option {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.retention = dur
		}
	}
}

func New(platform interfaces.Platform, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		platform:        platform,
		timeoutDuration: defaultTimeoutDuration,
		banDeleteDays:   defaultBanDeleteDays,
		retention:       defaultRetention,
		alerts:          map[types.AlertID]*incident.Alert{},
		claimed:         map[types.AlertID]struct{}{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func claimKey(id types.AlertID) string   { return "incident:claim:" + id.String() }
func outcomeKey(id types.AlertID) string { return "incident:outcome:" + id.String() }

// Raise registers an open alert, posts it to every notifier and persists it.
// Only an invalid alert is an error; delivery and persistence failures are
// logged.
func (x *Dispatcher) Raise(ctx context.Context, alert *incident.Alert) error {
	if err := alert.Validate(); err != nil {
		return goerr.Wrap(err, "invalid alert", goerr.T(errs.TagValidation))
	}

	x.mu.Lock()
	x.evictLocked(clock.Now(ctx))
	x.alerts[alert.ID] = alert
	posted := snapshotLocked(alert)
	x.mu.Unlock()
	logger := logging.From(ctx).With(slog.Any("alert", posted))

	var refs []incident.NotificationRef
	for _, n := range x.notifiers {
		ref, err := n.NotifyAlert(ctx, posted)
		if err != nil {
			logger.Warn("failed to notify alert", logging.ErrAttr(err), slog.String("sink", n.Name()))
			continue
		}
		if ref != nil {
			refs = append(refs, *ref)
		}
	}

	x.mu.Lock()
	alert.Notifications = append(alert.Notifications, refs...)
	snapshot := snapshotLocked(alert)
	x.mu.Unlock()

	// A click can resolve the alert while it is still being posted. Those
	// posts missed the resolution update, so send it now.
	if snapshot.Resolution != nil {
		x.notifyResolution(ctx, refs, snapshot, *snapshot.Resolution)
	}

	if x.repo != nil {
		if err := x.repo.PutAlert(ctx, snapshot); err != nil {
			errs.Handle(ctx, goerr.Wrap(err, "failed to persist alert", goerr.TV(errs.AlertIDKey, alert.ID)))
		}
	}

	metrics.RecordAlert(alert.ThreatType.String())
	logger.Info("alert raised", slog.Int("notifications", len(refs)))
	return nil
}

// HandleAction applies an analyst action to an open alert and resolves it.
// Only the first action on an alert is applied; later ones, from this or
// any other process, get an "already handled" outcome without touching the
// platform. The returned outcome always carries a message for the analyst.
func (x *Dispatcher) HandleAction(ctx context.Context, alertID types.AlertID, action types.AnalystAction, analystID string) incident.Outcome {
	now := clock.Now(ctx)
	outcome := incident.Outcome{
		AlertID:    alertID,
		Action:     action,
		AnalystID:  analystID,
		ExecutedAt: now,
	}
	logger := logging.From(ctx).With(
		slog.String("alert_id", alertID.String()),
		slog.String("action", action.String()),
		slog.String("analyst_id", analystID),
	)

	if err := action.Validate(); err != nil {
		outcome.Message = "Unknown action."
		logger.Warn("invalid analyst action", logging.ErrAttr(err))
		return outcome
	}
	if err := alertID.Validate(); err != nil {
		outcome.Message = "Unknown alert."
		logger.Warn("invalid alert id", logging.ErrAttr(err))
		return outcome
	}

	if !x.claimLocal(alertID) {
		return x.alreadyHandled(ctx, outcome, nil)
	}
	defer x.releaseLocal(alertID)

	alert, err := x.lookup(ctx, alertID)
	if err != nil {
		logger.Error("failed to load alert", logging.ErrAttr(err))
	}
	if alert == nil {
		if prior, ok := x.storedOutcome(ctx, alertID); ok {
			return x.alreadyHandled(ctx, outcome, prior)
		}
		outcome.Message = "Alert not found or expired."
		metrics.RecordAnalystAction(action.String(), false, false)
		return outcome
	}
	x.mu.Lock()
	prior := alert.Resolution
	x.mu.Unlock()
	if prior != nil {
		return x.alreadyHandled(ctx, outcome, prior)
	}

	if !x.claimShared(ctx, alertID, analystID, action) {
		prior, _ := x.storedOutcome(ctx, alertID)
		return x.alreadyHandled(ctx, outcome, prior)
	}

	outcome.Success, outcome.Message = x.remediate(ctx, alert, action)
	outcome.ExecutedAt = clock.Now(ctx)

	x.mu.Lock()
	alert.Resolve(outcome)
	x.alerts[alert.ID] = alert
	snapshot := snapshotLocked(alert)
	x.mu.Unlock()

	x.record(ctx, snapshot, outcome)
	x.notifyResolution(ctx, snapshot.Notifications, snapshot, outcome)

	metrics.RecordAnalystAction(action.String(), outcome.Success, false)
	logger.Info("alert resolved", slog.Bool("success", outcome.Success), slog.String("message", outcome.Message))
	return outcome
}

// Get returns an alert from the in-flight registry or the repository.
func (x *Dispatcher) Get(ctx context.Context, id types.AlertID) (*incident.Alert, error) {
	return x.lookup(ctx, id)
}

func (x *Dispatcher) lookup(ctx context.Context, id types.AlertID) (*incident.Alert, error) {
	x.mu.Lock()
	alert, ok := x.alerts[id]
	x.mu.Unlock()
	if ok {
		return alert, nil
	}
	if x.repo == nil {
		return nil, nil
	}

	alert, err := x.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get alert", goerr.TV(errs.AlertIDKey, id))
	}
	if alert != nil {
		x.mu.Lock()
		if cached, ok := x.alerts[id]; ok {
			alert = cached
		} else {
			x.alerts[id] = alert
		}
		x.mu.Unlock()
	}
	return alert, nil
}

func (x *Dispatcher) claimLocal(id types.AlertID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, busy := x.claimed[id]; busy {
		return false
	}
	x.claimed[id] = struct{}{}
	return true
}

func (x *Dispatcher) releaseLocal(id types.AlertID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.claimed, id)
}

// claimShared takes the cross-process claim. Without a store, or when the
// store fails, the local claim is all there is.
func (x *Dispatcher) claimShared(ctx context.Context, id types.AlertID, analystID string, action types.AnalystAction) bool {
	if x.store == nil {
		return true
	}
	ok, err := x.store.SetNX(ctx, claimKey(id), analystID+":"+action.String(), x.retention)
	if err != nil {
		logging.From(ctx).Warn("failed to take shared alert claim, continuing", logging.ErrAttr(err))
		return true
	}
	return ok
}

// storedOutcome finds the outcome another process recorded: the shared store
// first, then the repository's outcome history.
func (x *Dispatcher) storedOutcome(ctx context.Context, id types.AlertID) (*incident.Outcome, bool) {
	if x.store != nil {
		raw, ok, err := x.store.Get(ctx, outcomeKey(id))
		if err == nil && ok {
			var outcome incident.Outcome
			if err := json.Unmarshal([]byte(raw), &outcome); err == nil {
				return &outcome, true
			}
		}
	}

	if x.repo == nil {
		return nil, false
	}
	outcomes, err := x.repo.ListOutcomes(ctx, id)
	if err != nil {
		logging.From(ctx).Warn("failed to list recorded outcomes", logging.ErrAttr(err))
		return nil, false
	}
	if len(outcomes) == 0 {
		return nil, false
	}
	return &outcomes[0], true
}

func (x *Dispatcher) alreadyHandled(ctx context.Context, outcome incident.Outcome, prior *incident.Outcome) incident.Outcome {
	outcome.AlreadyHandled = true
	outcome.Message = "This alert has already been handled."
	if prior != nil {
		outcome.Message = "This alert has already been handled: " + prior.Action.String() + " by " + prior.AnalystID + "."
	}
	metrics.RecordAnalystAction(outcome.Action.String(), false, true)
	logging.From(ctx).Info("alert already handled",
		slog.String("alert_id", outcome.AlertID.String()),
		slog.String("analyst_id", outcome.AnalystID))
	return outcome
}

// record persists the resolution. Failures are reported, never retried.
func (x *Dispatcher) record(ctx context.Context, alert *incident.Alert, outcome incident.Outcome) {
	if x.repo != nil {
		if err := x.repo.PutAlert(ctx, alert); err != nil {
			errs.Handle(ctx, goerr.Wrap(err, "failed to persist resolved alert", goerr.TV(errs.AlertIDKey, alert.ID)))
		}
		if err := x.repo.RecordOutcome(ctx, outcome); err != nil {
			errs.Handle(ctx, goerr.Wrap(err, "failed to record outcome", goerr.TV(errs.AlertIDKey, alert.ID)))
		}
	}

	if x.store != nil {
		raw, err := json.Marshal(outcome)
		if err != nil {
			errs.Handle(ctx, goerr.Wrap(err, "failed to marshal outcome"))
			return
		}
		if err := x.store.Set(ctx, outcomeKey(alert.ID), string(raw), x.retention); err != nil {
			logging.From(ctx).Warn("failed to share outcome", logging.ErrAttr(err))
		}
	}
}

func (x *Dispatcher) notifyResolution(ctx context.Context, refs []incident.NotificationRef, alert *incident.Alert, outcome incident.Outcome) {
	for _, ref := range refs {
		for _, n := range x.notifiers {
			if n.Name() != ref.Sink {
				continue
			}
			if err := n.NotifyResolution(ctx, alert, ref, outcome); err != nil {
				logging.From(ctx).Warn("failed to update alert notification",
					logging.ErrAttr(err), slog.String("sink", ref.Sink))
			}
		}
	}
}

// snapshotLocked copies alert for use after mu is released. mu must be held.
func snapshotLocked(alert *incident.Alert) *incident.Alert {
	cp := *alert
	cp.Notifications = slices.Clone(alert.Notifications)
	return &cp
}

// evictLocked drops resolved alerts older than the retention period. mu must
// be held.
func (x *Dispatcher) evictLocked(now time.Time) {
	for id, alert := range x.alerts {
		if alert.Resolved() && now.Sub(alert.CreatedAt) > x.retention {
			delete(x.alerts, id)
		}
	}
}
