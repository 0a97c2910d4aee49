// Package fixtures provides test doubles for the daemon's collaborators.
package fixtures

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// ErrDisplayDown is returned by FakeDesktop while the display is down.
var ErrDisplayDown = errors.New("display unavailable")

// FakeDesktop is an in-memory domain.WindowSource with a settable focus.
type FakeDesktop struct {
	mu      sync.Mutex
	windows map[domain.WindowID]domain.WindowAttributes
	focused domain.WindowID
	down    bool
	queries int
}

// NewFakeDesktop creates an empty desktop with nothing focused.
func NewFakeDesktop() *FakeDesktop {
	return &FakeDesktop{windows: make(map[domain.WindowID]domain.WindowAttributes)}
}

// Open adds (or replaces) a window.
func (d *FakeDesktop) Open(attrs domain.WindowAttributes) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[attrs.Window] = attrs
}

// CloseWindow removes a window, unfocusing it when focused.
func (d *FakeDesktop) CloseWindow(id domain.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, id)
	if d.focused == id {
		d.focused = 0
	}
}

// Focus gives focus to id; 0 focuses nothing.
func (d *FakeDesktop) Focus(id domain.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = id
}

// SetDown makes every query fail until called with false.
func (d *FakeDesktop) SetDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

// Queries returns how many ActiveWindow calls were made.
func (d *FakeDesktop) Queries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

// ActiveWindow implements domain.WindowSource.
func (d *FakeDesktop) ActiveWindow(ctx context.Context) (domain.WindowID, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries++
	if d.down {
		return 0, false, &domain.CollaboratorUnavailableError{Op: "active window", Err: ErrDisplayDown}
	}
	return d.focused, d.focused != 0, nil
}

// Attributes implements domain.WindowSource.
func (d *FakeDesktop) Attributes(ctx context.Context, ids ...domain.WindowID) (map[domain.WindowID]domain.WindowAttributes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return nil, &domain.CollaboratorUnavailableError{Op: "window attributes", Err: ErrDisplayDown}
	}
	out := make(map[domain.WindowID]domain.WindowAttributes, len(ids))
	for _, id := range ids {
		if attrs, ok := d.windows[id]; ok {
			out[id] = attrs
		}
	}
	return out, nil
}

// Close implements domain.WindowSource.
func (d *FakeDesktop) Close() error { return nil }

// FakeProcesses is an in-memory domain.ProcessManager.
type FakeProcesses struct {
	mu         sync.Mutex
	names      map[int]string
	terminated []int
	failNext   error
}

// NewFakeProcesses creates a process table.
func NewFakeProcesses() *FakeProcesses {
	return &FakeProcesses{names: make(map[int]string)}
}

// Spawn registers a running process.
func (p *FakeProcesses) Spawn(pid int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[pid] = name
}

// FailNextTerminate makes the next Terminate return err.
func (p *FakeProcesses) FailNextTerminate(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Terminated returns the PIDs terminated so far, in order.
func (p *FakeProcesses) Terminated() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.terminated...)
}

// Terminate implements domain.ProcessManager.
func (p *FakeProcesses) Terminate(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failNext; err != nil {
		p.failNext = nil
		return err
	}
	if _, ok := p.names[pid]; !ok {
		return errors.New("no such process")
	}
	delete(p.names, pid)
	p.terminated = append(p.terminated, pid)
	return nil
}

// Name implements domain.ProcessManager.
func (p *FakeProcesses) Name(pid int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.names[pid]
	if !ok {
		return "", errors.New("no such process")
	}
	return name, nil
}

// IsRunning implements domain.ProcessManager.
func (p *FakeProcesses) IsRunning(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.names[pid]
	return ok
}

// GetCurrentPID implements domain.ProcessManager.
func (p *FakeProcesses) GetCurrentPID() int { return 1 }

// ManualClock is a clock advanced by hand.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts the clock at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock by d (which may be negative).
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingSink is a domain.ActivitySink that keeps every entry.
type RecordingSink struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

// Record implements domain.ActivitySink.
func (s *RecordingSink) Record(entry domain.ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (s *RecordingSink) Entries() []domain.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActivityEntry(nil), s.entries...)
}

// Last returns the latest entry, or false when none was recorded.
func (s *RecordingSink) Last() (domain.ActivityEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return domain.ActivityEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// StaticRules is a domain.RuleSource whose rules can be swapped.
type StaticRules struct {
	mu    sync.Mutex
	rules map[string]domain.Timeout
	err   error
}

// NewStaticRules creates a rule source returning rules.
func NewStaticRules(rules map[string]domain.Timeout) *StaticRules {
	return &StaticRules{rules: rules}
}

// Set replaces the rules and clears any error.
func (r *StaticRules) Set(rules map[string]domain.Timeout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules, r.err = rules, nil
}

// Break makes LoadRules fail with err.
func (r *StaticRules) Break(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// LoadRules implements domain.RuleSource.
func (r *StaticRules) LoadRules() (map[string]domain.Timeout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.rules, nil
}

// MemoryStatus is an in-memory domain.StatusRegistry.
type MemoryStatus struct {
	mu     sync.Mutex
	status *domain.DaemonStatus
	writes int
}

// Write implements domain.StatusRegistry.
func (m *MemoryStatus) Write(status domain.DaemonStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = &status
	m.writes++
	return nil
}

// Read implements domain.StatusRegistry.
func (m *MemoryStatus) Read() (*domain.DaemonStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return nil, nil
	}
	s := *m.status
	return &s, nil
}

// Clear implements domain.StatusRegistry.
func (m *MemoryStatus) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = nil
	return nil
}

// GetPath implements domain.StatusRegistry.
func (m *MemoryStatus) GetPath() string { return "memory" }

// Writes returns the number of Write calls.
func (m *MemoryStatus) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
