// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"time"
)

// Timeout is a per-rule focus budget in seconds.
type Timeout int

// Unlimited marks a rule whose windows are tracked but never terminated.
const Unlimited Timeout = -1

// FocusChangeThreshold separates a genuine refocus from poll jitter on a
// continuously focused window.
const FocusChangeThreshold = 1500 * time.Millisecond

// PIDFloor is the highest PID the enforcer refuses to terminate.
// Low PIDs belong to system processes.
const PIDFloor = 1000

// WindowID is an opaque X11 window handle.
type WindowID uint32

// WindowAttributes holds the properties read for a single window.
type WindowAttributes struct {
	Window  WindowID
	Classes []string // WM_CLASS, instance first
	PID     int
	HasPID  bool
	Name    string
	HasName bool
	Machine string // WM_CLIENT_MACHINE
}

// ShortName returns the first WM_CLASS entry, or "" when the window has none.
func (a WindowAttributes) ShortName() string {
	if len(a.Classes) == 0 {
		return ""
	}
	return a.Classes[0]
}

// FullName returns the window title, or nil when the window has no title.
func (a WindowAttributes) FullName() *string {
	if !a.HasName {
		return nil
	}
	name := a.Name
	return &name
}

// Fingerprint returns the per-poll identity of the window.
func (a WindowAttributes) Fingerprint() Fingerprint {
	return Fingerprint{
		Window:   a.Window,
		PID:      a.PID,
		HasPID:   a.HasPID,
		Title:    a.Name,
		HasTitle: a.HasName,
	}
}

// Fingerprint identifies one window instance as seen by a single poll.
// A retitled window produces a new fingerprint.
type Fingerprint struct {
	Window   WindowID
	PID      int
	HasPID   bool
	Title    string
	HasTitle bool
}

func (f Fingerprint) String() string {
	pid, title := "none", "none"
	if f.HasPID {
		pid = fmt.Sprintf("%d", f.PID)
	}
	if f.HasTitle {
		title = fmt.Sprintf("%q", f.Title)
	}
	return fmt.Sprintf("0x%x/%s/%s", uint32(f.Window), pid, title)
}

// TrackingKey is the unit of timing and eviction.
// Classified windows share the key of their rule; unclassified windows are
// keyed by their own fingerprint.
type TrackingKey struct {
	Matched bool
	Rule    string
	Window  Fingerprint
}

// RuleKey returns the tracking key of a matched rule.
func RuleKey(rule string) TrackingKey {
	return TrackingKey{Matched: true, Rule: rule}
}

// FallbackKey returns the tracking key of an unclassified window.
func FallbackKey(fp Fingerprint) TrackingKey {
	return TrackingKey{Window: fp}
}

func (k TrackingKey) String() string {
	if k.Matched {
		return "rule:" + k.Rule
	}
	return "window:" + k.Window.String()
}

// ActivityRecord holds the focus session of one tracking key.
type ActivityRecord struct {
	FocusStart time.Time
	LastSeen   time.Time
}

// Observation is the outcome of one poll for one tracking key.
type Observation struct {
	Key          TrackingKey
	FocusStart   time.Time
	Now          time.Time
	PrevLastSeen time.Time // equals Now on first sight
	Duration     int       // whole seconds since FocusStart
	Refocused    bool
}

// ActivityEntry is the structured record emitted for every poll.
type ActivityEntry struct {
	Observation
	Attributes WindowAttributes
	SessionID  string
}

// TerminationOutcome describes what the enforcer did about an exceeded budget.
type TerminationOutcome string

const (
	OutcomeTerminated TerminationOutcome = "terminated"
	OutcomeDryRun     TerminationOutcome = "dry_run"
	OutcomeRefused    TerminationOutcome = "refused" // PID at or below PIDFloor
)

// TerminationEvent captures one enforcement decision.
type TerminationEvent struct {
	At          time.Time
	SessionID   string
	Rule        string
	PID         int
	ProcessName string
	WindowName  string
	Duration    int
	Timeout     Timeout
	Outcome     TerminationOutcome
}

// DaemonStatus is the heartbeat the running daemon publishes for the status command.
type DaemonStatus struct {
	PID         int       `json:"pid"`
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	LastPoll    time.Time `json:"last_poll"`
	LastSweep   time.Time `json:"last_sweep"`
	Rules       int       `json:"rules"`
	TrackedKeys int       `json:"tracked_keys"`
	DryRun      bool      `json:"dry_run"`
	Display     string    `json:"display,omitempty"`
	AppVersion  string    `json:"app_version,omitempty"`
}
