package domain

import "context"

// WindowSource queries the display server.
// Implementation: X11 protocol via xgb.
type WindowSource interface {
	// ActiveWindow returns the focused window, or false when nothing has focus.
	ActiveWindow(ctx context.Context) (WindowID, bool, error)

	// Attributes reads class, PID, title and client machine for each window.
	Attributes(ctx context.Context, ids ...WindowID) (map[WindowID]WindowAttributes, error)

	// Close releases the display connection.
	Close() error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// Name returns the executable name of a process.
	Name(pid int) (string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// RuleSource supplies the rule table on startup and on every sweep.
type RuleSource interface {
	// LoadRules returns rule key -> timeout seconds (Unlimited for never).
	LoadRules() (map[string]Timeout, error)
}

// ActivitySink receives one structured entry per poll.
type ActivitySink interface {
	Record(entry ActivityEntry)
}

// TerminationStore keeps the history of enforcement decisions.
// Implementation: SQLCipher encrypted database.
type TerminationStore interface {
	// Record appends an event.
	Record(event TerminationEvent) error

	// Recent returns up to limit events, newest first.
	Recent(limit int) ([]TerminationEvent, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// StatusRegistry publishes the daemon heartbeat for the status command.
// Implementation: JSON file in /var/tmp/.
type StatusRegistry interface {
	// Write replaces the stored status.
	Write(status DaemonStatus) error

	// Read returns the stored status, or nil when none was written.
	Read() (*DaemonStatus, error)

	// Clear removes the status file.
	Clear() error

	// GetPath returns the status file path (for tests).
	GetPath() string
}

// KeyProvider supplies the encryption key of the termination history.
// Implementation: key file in the data directory.
type KeyProvider interface {
	// GetKey returns the encryption key.
	GetKey() ([]byte, error)

	// StoreKey persists a new key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been stored.
	KeyExists() bool
}
