// Package daemon implements the window watcher daemon.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
	"github.com/eliteGoblin/focusd/win_mon/internal/usecase"
)

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	PollInterval      time.Duration // How often the focused window is sampled
	QueryTimeout      time.Duration // Bound on each display server query
	HeartbeatInterval time.Duration // How often the status file is refreshed
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval:      1 * time.Second,
		QueryTimeout:      2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Watcher is the poll loop. It samples the focused window, times it against
// its rule and hands exceeded budgets to the enforcer. It owns all tracking
// state; nothing else touches it.
type Watcher struct {
	config   WatcherConfig
	source   domain.WindowSource
	enforcer *usecase.Enforcer
	sweeper  *usecase.Sweeper
	activity domain.ActivitySink
	status   domain.StatusRegistry // optional
	logger   *zap.Logger

	state *usecase.State
	table *policy.Table
	clock func() time.Time

	info          domain.DaemonStatus
	lastHeartbeat time.Time
	sourceDown    bool
}

// NewWatcher creates a new watcher daemon.
// info carries the static part of the published status (PID, session, mode).
func NewWatcher(
	config WatcherConfig,
	source domain.WindowSource,
	enforcer *usecase.Enforcer,
	sweeper *usecase.Sweeper,
	activity domain.ActivitySink,
	status domain.StatusRegistry,
	table *policy.Table,
	info domain.DaemonStatus,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:   config,
		source:   source,
		enforcer: enforcer,
		sweeper:  sweeper,
		activity: activity,
		status:   status,
		logger:   logger,
		state:    usecase.NewState(),
		table:    table,
		clock:    time.Now,
		info:     info,
	}
}

// SetClock replaces the wall clock (for tests).
func (w *Watcher) SetClock(clock func() time.Time) {
	w.clock = clock
}

// State returns the tracking state.
func (w *Watcher) State() *usecase.State {
	return w.state
}

// Table returns the active rule table.
func (w *Watcher) Table() *policy.Table {
	return w.table
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher daemon started",
		zap.Int("pid", w.info.PID),
		zap.String("session_id", w.info.SessionID),
		zap.Int("rules", w.table.Len()),
		zap.Bool("dry_run", w.info.DryRun),
		zap.Duration("poll_interval", w.config.PollInterval))

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			if w.status != nil {
				if err := w.status.Clear(); err != nil {
					w.logger.Warn("failed to clear status", zap.Error(err))
				}
			}
			return ctx.Err()

		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one poll iteration.
func (w *Watcher) Tick(ctx context.Context) {
	now := w.clock().UTC()

	w.track(ctx, now)
	w.sweep(now)
	w.heartbeat(now)
}

// track observes the focused window and enforces its budget.
func (w *Watcher) track(ctx context.Context, now time.Time) {
	attrs, ok := w.focusedWindow(ctx)
	if !ok {
		return
	}

	key, err := w.state.Cache.Resolve(attrs, w.table)
	if err != nil {
		var ambiguous *domain.AmbiguousRuleError
		if errors.As(err, &ambiguous) {
			w.logger.Error("window matches several rules, not tracking it",
				zap.String("short_name", ambiguous.ShortName),
				zap.Strings("patterns", ambiguous.Patterns),
				zap.Error(err))
			return
		}
		w.logger.Error("failed to resolve window", zap.Error(err))
		return
	}

	obs := w.state.Timer.Observe(key, now)
	w.activity.Record(domain.ActivityEntry{
		Observation: obs,
		Attributes:  attrs,
		SessionID:   w.info.SessionID,
	})

	event, err := w.enforcer.Enforce(ctx, w.state, w.table, obs, attrs)
	if err != nil {
		var missing *domain.MissingProcessIDError
		if errors.As(err, &missing) {
			w.logger.Error("timeout exceeded but window has no PID", zap.Error(err))
			return
		}
		w.logger.Warn("enforcement failed, retrying next poll", zap.Error(err))
		return
	}
	if event != nil {
		w.logger.Debug("forgot key after enforcement",
			zap.Stringer("key", obs.Key),
			zap.String("outcome", string(event.Outcome)))
	}
}

// focusedWindow queries the display server for the focused window.
// Failures are reported once per outage.
func (w *Watcher) focusedWindow(ctx context.Context) (domain.WindowAttributes, bool) {
	qctx, cancel := context.WithTimeout(ctx, w.config.QueryTimeout)
	defer cancel()

	id, found, err := w.source.ActiveWindow(qctx)
	if err == nil && found {
		var attrs map[domain.WindowID]domain.WindowAttributes
		attrs, err = w.source.Attributes(qctx, id)
		if err == nil {
			w.sourceRecovered()
			a, ok := attrs[id]
			return a, ok
		}
	}
	if err != nil {
		w.sourceFailed(err)
		return domain.WindowAttributes{}, false
	}
	w.sourceRecovered()
	return domain.WindowAttributes{}, false
}

func (w *Watcher) sourceFailed(err error) {
	if !w.sourceDown {
		w.logger.Warn("display server query failed", zap.Error(err))
		w.sourceDown = true
		return
	}
	w.logger.Debug("display server still unavailable", zap.Error(err))
}

func (w *Watcher) sourceRecovered() {
	if w.sourceDown {
		w.logger.Info("display server available again")
		w.sourceDown = false
	}
}

// sweep evicts stale keys and swaps in reloaded rules.
func (w *Watcher) sweep(now time.Time) {
	result, err := w.sweeper.Check(now, w.state)
	if err != nil {
		w.logger.Error("failed to reload rules, keeping previous rules", zap.Error(err))
	}
	if result == nil || result.Table == nil {
		return
	}
	w.table = result.Table
	w.logger.Debug("rules reloaded",
		zap.Int("rules", w.table.Len()),
		zap.Int("evicted", len(result.Evicted)),
		zap.Int("tracked", w.state.Timer.Len()))
}

// heartbeat publishes the daemon status every HeartbeatInterval.
func (w *Watcher) heartbeat(now time.Time) {
	if w.status == nil {
		return
	}
	if !w.lastHeartbeat.IsZero() {
		elapsed := now.Sub(w.lastHeartbeat)
		if elapsed >= 0 && elapsed < w.config.HeartbeatInterval {
			return
		}
	}
	w.lastHeartbeat = now

	status := w.info
	status.LastPoll = now
	status.LastSweep = w.sweeper.LastSweep()
	status.Rules = w.table.Len()
	status.TrackedKeys = w.state.Timer.Len()
	if err := w.status.Write(status); err != nil {
		w.logger.Warn("failed to update status", zap.Error(err))
	}
}
