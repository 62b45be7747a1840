package domain

import (
	"context"
	"time"
)

// PrefsStore is the persisted key-value store holding user preferences.
// Implementations: SQLCipher file (default) or Redis hash.
type PrefsStore interface {
	// Get returns the stored value; found is false when the key was never set.
	Get(key string) (value string, found bool, err error)

	// Set stores a value, replacing any previous one.
	Set(key, value string) error

	// Close releases resources (e.g., database connection).
	Close() error
}

// KickHistory stores a record of every kick attempt.
type KickHistory interface {
	// RecordKick appends a record.
	RecordKick(rec KickRecord) error

	// RecentKicks returns up to limit records, newest first.
	RecentKicks(limit int) ([]KickRecord, error)
}

// Handle identifies one scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler runs delayed single-shot callbacks on the serialized dispatcher.
type Scheduler interface {
	// ScheduleOnce registers fn to run once after d and returns immediately.
	ScheduleOnce(d time.Duration, fn func()) Handle

	// Cancel prevents a pending callback from running. Once Cancel returns,
	// the callback is guaranteed never to run. Cancelling an unknown, fired
	// or already cancelled handle is a no-op.
	Cancel(h Handle)

	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}

// HomeAction forcibly returns the user to the home screen.
type HomeAction interface {
	// ReturnToHomeScreen navigates away from appID. A non-nil error wraps
	// ErrHomeActionFailed.
	ReturnToHomeScreen(ctx context.Context, appID string) error
}

// EventSource delivers foreground events from the platform.
type EventSource interface {
	// Name identifies the source in logs and status output.
	Name() string

	// Events starts delivery. The channel is closed when ctx is done or the
	// source is exhausted.
	Events(ctx context.Context) (<-chan ForegroundEvent, error)
}

// Notifier shows status notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ServiceRegistry provides discovery of the running service.
// Implementation: hidden JSON file in the data directory.
type ServiceRegistry interface {
	// Register saves the current service PID and start time.
	Register(entry ServiceEntry) error

	// UpdateHeartbeat refreshes the liveness timestamp and tracked app.
	UpdateHeartbeat(trackingApp string) error

	// Get returns the registry state, or nil if nothing is registered.
	Get() (*ServiceEntry, error)

	// Clear removes the registry (on clean shutdown).
	Clear() error

	// Path returns the registry file path (for tests).
	Path() string
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID.
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// CurrentName returns the executable name of the current process.
	CurrentName() (string, error)
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
