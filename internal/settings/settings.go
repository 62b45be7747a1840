// Package settings exposes typed user preferences on top of a PrefsStore.
// Reads never leave the caller without a value: when the store is empty the
// built-in default is returned, and when it fails the default is returned
// together with an error wrapping domain.ErrConfigReadFailed.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
)

// Keys in the prefs store.
const (
	KeyBlockedApps = "blocked_apps"
	KeyKickDelay   = "kick_delay"
	KeyUserGoals   = "user_goals"
)

// ErrInvalidDelay is returned when setting a non-positive kick delay.
var ErrInvalidDelay = errors.New("kick delay must be positive")

// Settings is the accessor for blocked apps, kick delay and goals.
type Settings struct {
	store domain.PrefsStore
}

// New wraps a prefs store.
func New(store domain.PrefsStore) *Settings {
	return &Settings{store: store}
}

// BlockedApps returns the saved blocked set, or the starter set on first run.
func (s *Settings) BlockedApps() (domain.BlockedSet, error) {
	raw, found, err := s.store.Get(KeyBlockedApps)
	if err != nil {
		return policy.DefaultBlockedApps(), fmt.Errorf("%w: %s: %v", domain.ErrConfigReadFailed, KeyBlockedApps, err)
	}
	if !found {
		return policy.DefaultBlockedApps(), nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return policy.DefaultBlockedApps(), fmt.Errorf("%w: %s: %v", domain.ErrConfigReadFailed, KeyBlockedApps, err)
	}
	return domain.NewBlockedSet(ids...), nil
}

// SetBlockedApps replaces the blocked set.
func (s *Settings) SetBlockedApps(blocked domain.BlockedSet) error {
	data, err := json.Marshal(blocked.Sorted())
	if err != nil {
		return fmt.Errorf("failed to encode blocked apps: %w", err)
	}
	if err := s.store.Set(KeyBlockedApps, string(data)); err != nil {
		return fmt.Errorf("failed to save blocked apps: %w", err)
	}
	return nil
}

// AddBlockedApp adds id to the blocked set.
func (s *Settings) AddBlockedApp(id string) error {
	blocked, err := s.BlockedApps()
	if err != nil {
		return err
	}
	blocked[id] = struct{}{}
	return s.SetBlockedApps(blocked)
}

// RemoveBlockedApp removes id from the blocked set.
func (s *Settings) RemoveBlockedApp(id string) error {
	blocked, err := s.BlockedApps()
	if err != nil {
		return err
	}
	delete(blocked, id)
	return s.SetBlockedApps(blocked)
}

// ResetToDefaults saves the starter set.
func (s *Settings) ResetToDefaults() error {
	return s.SetBlockedApps(policy.DefaultBlockedApps())
}

// KickDelay returns the saved delay, or policy.DefaultKickDelay.
func (s *Settings) KickDelay() (time.Duration, error) {
	raw, found, err := s.store.Get(KeyKickDelay)
	if err != nil {
		return policy.DefaultKickDelay, fmt.Errorf("%w: %s: %v", domain.ErrConfigReadFailed, KeyKickDelay, err)
	}
	if !found {
		return policy.DefaultKickDelay, nil
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return policy.DefaultKickDelay, fmt.Errorf("%w: %s: invalid value %q", domain.ErrConfigReadFailed, KeyKickDelay, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SetKickDelay saves the delay with millisecond precision.
func (s *Settings) SetKickDelay(d time.Duration) error {
	if d.Milliseconds() <= 0 {
		return ErrInvalidDelay
	}
	if err := s.store.Set(KeyKickDelay, strconv.FormatInt(d.Milliseconds(), 10)); err != nil {
		return fmt.Errorf("failed to save kick delay: %w", err)
	}
	return nil
}

// Goals returns the user's free-text goals ("" if never saved).
func (s *Settings) Goals() (string, error) {
	raw, _, err := s.store.Get(KeyUserGoals)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrConfigReadFailed, KeyUserGoals, err)
	}
	return raw, nil
}

// SetGoals saves the user's goals.
func (s *Settings) SetGoals(goals string) error {
	if err := s.store.Set(KeyUserGoals, goals); err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}
