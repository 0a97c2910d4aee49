package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
)

// EnforcerConfig controls how exceeded budgets are acted on.
type EnforcerConfig struct {
	DryRun    bool   // log terminations without sending signals
	SessionID string // stamped on every TerminationEvent
}

// Enforcer terminates the owner of a window whose rule budget is exhausted.
type Enforcer struct {
	processManager domain.ProcessManager
	store          domain.TerminationStore
	config         EnforcerConfig
	logger         *zap.Logger
}

// NewEnforcer creates a new timeout enforcer.
func NewEnforcer(pm domain.ProcessManager, config EnforcerConfig, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		processManager: pm,
		store:          nil, // Set via NewEnforcerWithStore
		config:         config,
		logger:         logger,
	}
}

// NewEnforcerWithStore creates an enforcer that also persists every decision.
func NewEnforcerWithStore(
	pm domain.ProcessManager,
	store domain.TerminationStore,
	config EnforcerConfig,
	logger *zap.Logger,
) *Enforcer {
	return &Enforcer{
		processManager: pm,
		store:          store,
		config:         config,
		logger:         logger,
	}
}

// Enforce compares the observed duration with the rule budget.
//
// It returns nil when nothing had to be done. When the budget is exceeded it
// terminates (or, in dry-run mode, pretends to terminate) the window owner,
// forgets the key and returns the event. A missing PID yields
// *domain.MissingProcessIDError and a failed signal an error; in both cases the
// state is kept so the next poll retries.
func (e *Enforcer) Enforce(
	ctx context.Context,
	state *State,
	table *policy.Table,
	obs domain.Observation,
	attrs domain.WindowAttributes,
) (*domain.TerminationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !obs.Key.Matched {
		return nil, nil
	}

	timeout, ok := table.Timeout(obs.Key.Rule)
	if !ok || timeout == domain.Unlimited || obs.Duration <= int(timeout) {
		return nil, nil
	}

	if !attrs.HasPID || attrs.PID <= 0 {
		return nil, &domain.MissingProcessIDError{
			Key:       obs.Key,
			Window:    attrs.Window,
			ShortName: attrs.ShortName(),
		}
	}

	event := &domain.TerminationEvent{
		At:         obs.Now,
		SessionID:  e.config.SessionID,
		Rule:       obs.Key.Rule,
		PID:        attrs.PID,
		WindowName: attrs.Name,
		Duration:   obs.Duration,
		Timeout:    timeout,
	}
	if name, err := e.processManager.Name(attrs.PID); err == nil {
		event.ProcessName = name
	}

	fields := []zap.Field{
		zap.String("rule", event.Rule),
		zap.Int("pid", event.PID),
		zap.String("process", event.ProcessName),
		zap.String("window_name", event.WindowName),
		zap.Int("duration", event.Duration),
		zap.Int("timeout", int(event.Timeout)),
	}

	switch {
	case attrs.PID <= domain.PIDFloor:
		event.Outcome = domain.OutcomeRefused
		e.logger.Warn("refusing to terminate low PID", fields...)

	case e.config.DryRun:
		event.Outcome = domain.OutcomeDryRun
		e.logger.Info("timeout exceeded (dry run, process left running)", fields...)

	default:
		if err := e.processManager.Terminate(attrs.PID); err != nil {
			e.logger.Warn("failed to terminate process", append(fields, zap.Error(err))...)
			return nil, fmt.Errorf("failed to terminate pid %d: %w", attrs.PID, err)
		}
		event.Outcome = domain.OutcomeTerminated
		e.logger.Info("terminated process", fields...)
	}

	state.Forget(obs.Key)
	e.persist(event)

	return event, nil
}

func (e *Enforcer) persist(event *domain.TerminationEvent) {
	if e.store == nil {
		return
	}
	if err := e.store.Record(*event); err != nil {
		e.logger.Warn("failed to record termination", zap.String("rule", event.Rule), zap.Error(err))
	}
}
