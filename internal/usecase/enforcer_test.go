package usecase

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	names         map[int]string
	terminateErr  error
	terminatedPID []int
}

func (m *mockProcessManager) Terminate(pid int) error {
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminatedPID = append(m.terminatedPID, pid)
	return nil
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	if name, ok := m.names[pid]; ok {
		return name, nil
	}
	return "", errors.New("no such process")
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

// mockTerminationStore implements domain.TerminationStore for testing
type mockTerminationStore struct {
	events    []domain.TerminationEvent
	recordErr error
}

func (m *mockTerminationStore) Record(event domain.TerminationEvent) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockTerminationStore) Recent(limit int) ([]domain.TerminationEvent, error) {
	return m.events, nil
}

func (m *mockTerminationStore) Close() error {
	return nil
}

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func firefoxAttrs(pid int) domain.WindowAttributes {
	return domain.WindowAttributes{
		Window:  0x3a00007,
		Classes: []string{"Navigator", "firefox"},
		PID:     pid,
		HasPID:  pid != 0,
		Name:    "Firefox",
		HasName: true,
		Machine: "laptop",
	}
}

// observeFor drives the state through continuous polls for the given seconds
// and returns the last observation.
func observeFor(state *State, key domain.TrackingKey, seconds int) domain.Observation {
	var obs domain.Observation
	for s := 0; s <= seconds; s++ {
		obs = state.Timer.Observe(key, t0.Add(time.Duration(s)*time.Second))
	}
	return obs
}

func TestNewEnforcer(t *testing.T) {
	pm := &mockProcessManager{}
	enforcer := NewEnforcer(pm, EnforcerConfig{DryRun: true}, zap.NewNop())

	assert.NotNil(t, enforcer)
	assert.Equal(t, pm, enforcer.processManager)
	assert.Nil(t, enforcer.store)
	assert.True(t, enforcer.config.DryRun)
}

func TestNewEnforcerWithStore(t *testing.T) {
	store := &mockTerminationStore{}
	enforcer := NewEnforcerWithStore(&mockProcessManager{}, store, EnforcerConfig{}, zap.NewNop())

	assert.Equal(t, store, enforcer.store)
}

func TestEnforce_WithinBudget(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 30})
	state := NewState()
	key := domain.RuleKey("Firefox")
	obs := observeFor(state, key, 30)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))

	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Empty(t, pm.terminatedPID)
	_, tracked := state.Timer.Record(key)
	assert.True(t, tracked)
}

func TestEnforce_TerminatesOnceWhenExceeded(t *testing.T) {
	pm := &mockProcessManager{names: map[int]string{4242: "firefox"}}
	store := &mockTerminationStore{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 30})
	state := NewState()
	key := domain.RuleKey("Firefox")
	enforcer := NewEnforcerWithStore(pm, store, EnforcerConfig{SessionID: "s1"}, zap.NewNop())

	var events []*domain.TerminationEvent
	for s := 0; s <= 40; s++ {
		obs := state.Timer.Observe(key, t0.Add(time.Duration(s)*time.Second))
		event, err := enforcer.Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))
		require.NoError(t, err)
		if event != nil {
			events = append(events, event)
			assert.Equal(t, 31, s, "terminated at the first poll past the budget")
			_, tracked := state.Timer.Record(key)
			assert.False(t, tracked, "record removed after termination")
			break
		}
	}

	require.Len(t, events, 1)
	assert.Equal(t, []int{4242}, pm.terminatedPID)
	assert.Equal(t, domain.OutcomeTerminated, events[0].Outcome)
	assert.Equal(t, 31, events[0].Duration)
	assert.Equal(t, domain.Timeout(30), events[0].Timeout)
	assert.Equal(t, "firefox", events[0].ProcessName)
	assert.Equal(t, "s1", events[0].SessionID)
	require.Len(t, store.events, 1)
	assert.Equal(t, "Firefox", store.events[0].Rule)
}

func TestEnforce_UnlimitedNeverTerminates(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Terminal": domain.Unlimited})
	state := NewState()
	obs := observeFor(state, domain.RuleKey("Terminal"), 10000)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))

	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Empty(t, pm.terminatedPID)
}

func TestEnforce_UnclassifiedKeyIgnored(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 1})
	state := NewState()
	attrs := firefoxAttrs(4242)
	obs := observeFor(state, domain.FallbackKey(attrs.Fingerprint()), 100)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, attrs)

	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestEnforce_MissingPID(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	key := domain.RuleKey("Firefox")
	obs := observeFor(state, key, 10)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(0))

	assert.Nil(t, event)
	var missing *domain.MissingProcessIDError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, key, missing.Key)
	assert.Empty(t, pm.terminatedPID)
	_, tracked := state.Timer.Record(key)
	assert.True(t, tracked, "state kept so the next poll retries")
}

func TestEnforce_PIDFloorRefused(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	key := domain.RuleKey("Firefox")
	obs := observeFor(state, key, 10)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(domain.PIDFloor))

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.OutcomeRefused, event.Outcome)
	assert.Empty(t, pm.terminatedPID)
	_, tracked := state.Timer.Record(key)
	assert.False(t, tracked)
}

func TestEnforce_DryRun(t *testing.T) {
	pm := &mockProcessManager{}
	store := &mockTerminationStore{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	obs := observeFor(state, domain.RuleKey("Firefox"), 6)

	event, err := NewEnforcerWithStore(pm, store, EnforcerConfig{DryRun: true}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.OutcomeDryRun, event.Outcome)
	assert.Empty(t, pm.terminatedPID)
	assert.Len(t, store.events, 1, "dry-run decisions are still recorded")
}

func TestEnforce_TerminateFailureKeepsState(t *testing.T) {
	pm := &mockProcessManager{terminateErr: errors.New("permission denied")}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	key := domain.RuleKey("Firefox")
	obs := observeFor(state, key, 6)

	event, err := NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))

	assert.Error(t, err)
	assert.Nil(t, event)
	_, tracked := state.Timer.Record(key)
	assert.True(t, tracked)
}

func TestEnforce_ForgetsCacheEntries(t *testing.T) {
	pm := &mockProcessManager{}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	attrs := firefoxAttrs(4242)

	key, err := state.Cache.Resolve(attrs, table)
	require.NoError(t, err)
	require.Equal(t, 1, state.Cache.Len())
	obs := observeFor(state, key, 6)

	_, err = NewEnforcer(pm, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, attrs)

	require.NoError(t, err)
	assert.Equal(t, 0, state.Cache.Len())
}

func TestEnforce_StoreFailureIsNotFatal(t *testing.T) {
	pm := &mockProcessManager{}
	store := &mockTerminationStore{recordErr: errors.New("disk full")}
	table := policy.Compile(map[string]domain.Timeout{"Firefox": 5})
	state := NewState()
	obs := observeFor(state, domain.RuleKey("Firefox"), 6)

	event, err := NewEnforcerWithStore(pm, store, EnforcerConfig{}, zap.NewNop()).
		Enforce(context.Background(), state, table, obs, firefoxAttrs(4242))

	require.NoError(t, err)
	assert.NotNil(t, event)
	assert.Equal(t, []int{4242}, pm.terminatedPID)
}

func TestEnforce_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnforcer(&mockProcessManager{}, EnforcerConfig{}, zap.NewNop()).
		Enforce(ctx, NewState(), policy.Compile(nil), domain.Observation{}, domain.WindowAttributes{})

	assert.ErrorIs(t, err, context.Canceled)
}
