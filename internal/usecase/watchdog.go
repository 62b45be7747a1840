// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
)

// Status messages shown through the Notifier.
const (
	notificationTitle = "Focus Lock"
	messageActive     = "Focus Lock Active"
)

// SettingsReader is the subset of settings the watchdog reads before acting.
type SettingsReader interface {
	BlockedApps() (domain.BlockedSet, error)
	KickDelay() (time.Duration, error)
}

// WatchdogConfig holds watchdog configuration.
type WatchdogConfig struct {
	SelfAppID        string        // Events for this app cancel tracking unconditionally
	KickTimeout      time.Duration // Upper bound for one home action
	NotifyResetAfter time.Duration // How long "Kicked out" stays before the idle message returns
}

// DefaultWatchdogConfig returns default watchdog configuration.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		SelfAppID:        policy.DefaultSelfAppID,
		KickTimeout:      5 * time.Second,
		NotifyResetAfter: 3 * time.Second,
	}
}

// Watchdog tracks the foreground app and kicks blocked apps that stay too long.
//
// Every method must run on the scheduler's dispatcher goroutine; the
// watchdog holds no lock of its own.
type Watchdog struct {
	config    WatchdogConfig
	settings  SettingsReader
	scheduler domain.Scheduler
	home      domain.HomeAction
	notifier  domain.Notifier
	history   domain.KickHistory
	catalog   *policy.Catalog
	metrics   metrics.Metrics
	logger    *zap.Logger

	state      domain.WatchdogState
	kickTimer  domain.Handle
	resetTimer domain.Handle
}

// WatchdogOption customises optional collaborators.
type WatchdogOption func(*Watchdog)

// WithNotifier sets the status notifier.
func WithNotifier(n domain.Notifier) WatchdogOption {
	return func(w *Watchdog) { w.notifier = n }
}

// WithHistory records every kick.
func WithHistory(h domain.KickHistory) WatchdogOption {
	return func(w *Watchdog) { w.history = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) WatchdogOption {
	return func(w *Watchdog) { w.metrics = m }
}

// WithCatalog sets the display-name catalog used in notifications.
func WithCatalog(c *policy.Catalog) WatchdogOption {
	return func(w *Watchdog) { w.catalog = c }
}

// NewWatchdog creates a watchdog in the Idle state.
func NewWatchdog(
	config WatchdogConfig,
	settings SettingsReader,
	scheduler domain.Scheduler,
	home domain.HomeAction,
	logger *zap.Logger,
	opts ...WatchdogOption,
) *Watchdog {
	w := &Watchdog{
		config:    config,
		settings:  settings,
		scheduler: scheduler,
		home:      home,
		catalog:   policy.NewCatalog(),
		metrics:   metrics.Noop{},
		logger:    logger,
		state:     domain.Idle(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state.
func (w *Watchdog) State() domain.WatchdogState {
	return w.state
}

// HandleEvent filters platform events down to foreground changes.
func (w *Watchdog) HandleEvent(ev domain.ForegroundEvent) {
	w.metrics.IncEvents(string(ev.Type))

	if ev.Type != domain.EventWindowStateChanged || ev.AppID == "" {
		return
	}
	w.OnForegroundChanged(ev.AppID)
}

// OnForegroundChanged reacts to appID coming to the foreground.
func (w *Watchdog) OnForegroundChanged(appID string) {
	if appID == w.config.SelfAppID {
		w.cancelKick("self in foreground")
		return
	}

	w.logger.Debug("app in foreground", zap.String("app", appID))

	blocked, err := w.settings.BlockedApps()
	if err != nil {
		w.logger.Warn("using default blocked apps", zap.Error(err))
	}

	if !policy.IsBlocked(appID, blocked) {
		w.cancelKick("non-blocked app in foreground")
		return
	}

	// Re-observing the tracked app must not restart the delay window.
	if w.state.IsTracking(appID) {
		w.logger.Debug("already tracking", zap.String("app", appID))
		return
	}

	w.cancelKick("switched to another blocked app")
	w.arm(appID)
}

// Stop cancels any pending kick and returns to Idle.
func (w *Watchdog) Stop() {
	w.cancelKick("watchdog stopping")
	w.cancelReset()
}

func (w *Watchdog) arm(appID string) {
	delay, err := w.settings.KickDelay()
	if err != nil {
		w.logger.Warn("using default kick delay", zap.Error(err))
	}

	armedAt := w.scheduler.Now()
	w.kickTimer = w.scheduler.ScheduleOnce(delay, func() {
		w.fire(appID, armedAt)
	})
	w.state = domain.Tracking(appID, armedAt)
	w.metrics.IncTimersArmed()
	w.metrics.SetTracking(true)

	w.logger.Info("started timer for blocked app",
		zap.String("app", appID),
		zap.Duration("delay", delay))

	w.cancelReset()
	w.notify(fmt.Sprintf("Monitoring: %s (%ds)", w.catalog.DisplayName(appID), int(delay/time.Second)))
}

// cancelKick is idempotent: with no pending timer it only resets the state.
func (w *Watchdog) cancelKick(reason string) {
	if w.kickTimer != 0 {
		w.scheduler.Cancel(w.kickTimer)
		w.metrics.IncTimersCancelled()
		w.logger.Debug("cancelled kick timer",
			zap.String("app", w.state.AppID),
			zap.String("reason", reason))
	}
	w.kickTimer = 0
	w.state = domain.Idle()
	w.metrics.SetTracking(false)
}

// fire runs when the delay elapsed without the app leaving the foreground.
func (w *Watchdog) fire(appID string, armedAt time.Time) {
	w.kickTimer = 0
	w.state = domain.Idle()
	w.metrics.SetTracking(false)

	w.logger.Info("kicking out app", zap.String("app", appID))

	ctx, cancel := context.WithTimeout(context.Background(), w.config.KickTimeout)
	defer cancel()

	now := w.scheduler.Now()
	rec := domain.KickRecord{
		ID:         uuid.NewString(),
		AppID:      appID,
		TrackedFor: now.Sub(armedAt),
		At:         now,
	}

	// Best effort: no retry, the watchdog is Idle either way.
	if err := w.home.ReturnToHomeScreen(ctx, appID); err != nil {
		w.logger.Error("failed to kick out app",
			zap.String("app", appID),
			zap.Error(err))
		w.metrics.IncKicks(metrics.ResultFailed)
		rec.Error = err.Error()
	} else {
		w.logger.Info("kicked out app", zap.String("app", appID))
		w.metrics.IncKicks(metrics.ResultSuccess)
		rec.Success = true
		w.notify("Kicked out: " + w.catalog.DisplayName(appID))
		w.scheduleReset()
	}

	if w.history != nil {
		if err := w.history.RecordKick(rec); err != nil {
			w.logger.Warn("failed to record kick", zap.Error(err))
		}
	}
}

func (w *Watchdog) scheduleReset() {
	if w.notifier == nil || w.config.NotifyResetAfter <= 0 {
		return
	}
	w.cancelReset()
	w.resetTimer = w.scheduler.ScheduleOnce(w.config.NotifyResetAfter, func() {
		w.resetTimer = 0
		w.notify(messageActive)
	})
}

func (w *Watchdog) cancelReset() {
	if w.resetTimer != 0 {
		w.scheduler.Cancel(w.resetTimer)
		w.resetTimer = 0
	}
}

// NotifyActive announces that enforcement is running.
func (w *Watchdog) NotifyActive() {
	w.notify(messageActive)
}

func (w *Watchdog) notify(message string) {
	if w.notifier == nil {
		return
	}
	n := domain.Notification{
		Title:   notificationTitle,
		Message: message,
		Time:    w.scheduler.Now(),
	}
	if err := w.notifier.Notify(context.Background(), n); err != nil {
		w.logger.Warn("failed to update notification", zap.Error(err))
	}
}
