package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
)

// Default sweep timing.
const (
	DefaultSweepInterval = 300 * time.Second
	DefaultRecordsTTL    = 24 * time.Hour
)

// SweepResult describes one sweep.
type SweepResult struct {
	At      time.Time
	Evicted []domain.TrackingKey
	Table   *policy.Table // nil when the reload failed
}

// Sweeper evicts stale tracking state and reloads the rules on a slow cadence.
type Sweeper struct {
	interval  time.Duration
	ttl       time.Duration
	rules     domain.RuleSource
	lastSweep time.Time
	logger    *zap.Logger
}

// NewSweeper creates a sweeper. The first Check arms the interval.
func NewSweeper(interval, ttl time.Duration, rules domain.RuleSource, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		ttl:      ttl,
		rules:    rules,
		logger:   logger,
	}
}

// LastSweep returns when the last sweep ran (zero before the first one).
func (s *Sweeper) LastSweep() time.Time {
	return s.lastSweep
}

// Check runs a sweep when more than the interval has passed since the last one.
// It returns nil, nil when no sweep was due.
//
// A failed reload returns the result (with a nil Table) together with a
// *domain.ConfigReloadError; evictions have still been applied and the
// caller keeps its current table.
func (s *Sweeper) Check(now time.Time, state *State) (*SweepResult, error) {
	// A clock stepped back re-arms the interval.
	if s.lastSweep.IsZero() || now.Before(s.lastSweep) {
		s.lastSweep = now
		return nil, nil
	}
	if now.Sub(s.lastSweep) <= s.interval {
		return nil, nil
	}
	s.lastSweep = now

	result := &SweepResult{At: now}
	for _, key := range state.Timer.Expired(now, s.ttl) {
		s.logger.Debug("removing inactive window", zap.Stringer("key", key))
		state.Forget(key)
		result.Evicted = append(result.Evicted, key)
	}

	s.logger.Debug("reloading rules")
	rules, err := s.rules.LoadRules()
	if err != nil {
		return result, &domain.ConfigReloadError{Err: err}
	}
	result.Table = policy.Compile(rules)
	state.Cache.Invalidate()

	return result, nil
}
