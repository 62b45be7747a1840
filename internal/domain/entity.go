// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrHomeActionFailed is wrapped by HomeAction implementations when the
	// device did not confirm the return to the home screen.
	ErrHomeActionFailed = errors.New("home action failed")

	// ErrConfigReadFailed is wrapped when the prefs store could not be read.
	// Callers on the event path fall back to built-in defaults.
	ErrConfigReadFailed = errors.New("config read failed")
)

// BlockedSet is a set of app identifiers (package names).
type BlockedSet map[string]struct{}

// NewBlockedSet builds a set from a list of identifiers.
func NewBlockedSet(ids ...string) BlockedSet {
	s := make(BlockedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s BlockedSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in lexical order.
func (s BlockedSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy.
func (s BlockedSet) Clone() BlockedSet {
	c := make(BlockedSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// StateKind tags a WatchdogState.
type StateKind int

const (
	StateIdle StateKind = iota
	StateTracking
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// WatchdogState is either Idle or Tracking an app since ArmedAt.
// It is replaced as a whole on every transition.
type WatchdogState struct {
	Kind    StateKind
	AppID   string
	ArmedAt time.Time
}

// Idle returns the idle state.
func Idle() WatchdogState {
	return WatchdogState{Kind: StateIdle}
}

// Tracking returns the state for an armed kick timer.
func Tracking(appID string, armedAt time.Time) WatchdogState {
	return WatchdogState{Kind: StateTracking, AppID: appID, ArmedAt: armedAt}
}

// IsTracking reports whether the state tracks appID.
func (s WatchdogState) IsTracking(appID string) bool {
	return s.Kind == StateTracking && s.AppID == appID
}

// EventType mirrors the platform's accessibility event types that matter here.
type EventType string

const (
	// EventWindowStateChanged means a new window (and so possibly a new app)
	// came to the foreground. It is the only type the watchdog acts on.
	EventWindowStateChanged   EventType = "window_state_changed"
	EventWindowContentChanged EventType = "window_content_changed"
	EventViewClicked          EventType = "view_clicked"
)

// ForegroundEvent is delivered by an EventSource.
type ForegroundEvent struct {
	Type  EventType `json:"type"`
	AppID string    `json:"app_id"`
	At    time.Time `json:"at,omitempty"`
}

// KickRecord captures a single timer fire.
type KickRecord struct {
	ID         string
	AppID      string
	TrackedFor time.Duration
	Success    bool
	Error      string
	At         time.Time
}

// ServiceEntry is the persisted state of the running service, used by the
// status command to discover it.
type ServiceEntry struct {
	Version       int    `json:"version"`
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	Source        string `json:"source,omitempty"`
	TrackingApp   string `json:"tracking_app,omitempty"`
	AppVersion    string `json:"app_version,omitempty"`
}

// Notification is a short status message for the user.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
}
