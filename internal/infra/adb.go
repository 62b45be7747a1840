package infra

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	defaultADBPath         = "adb"
	defaultADBTimeout      = 5 * time.Second
	defaultADBPollInterval = time.Second
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// ADBConfig configures the adb client.
type ADBConfig struct {
	Path    string
	Serial  string
	Timeout time.Duration
}

// ADBClient talks to one Android device through the adb binary.
type ADBClient struct {
	path    string
	serial  string
	timeout time.Duration
	run     CommandRunner
}

// NewADBClient creates a client using os/exec.
func NewADBClient(cfg ADBConfig) *ADBClient {
	return NewADBClientWithRunner(cfg, ExecRunner)
}

// NewADBClientWithRunner creates a client with a custom runner (for testing).
func NewADBClientWithRunner(cfg ADBConfig, run CommandRunner) *ADBClient {
	if cfg.Path == "" {
		cfg.Path = defaultADBPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultADBTimeout
	}
	return &ADBClient{
		path:    cfg.Path,
		serial:  cfg.Serial,
		timeout: cfg.Timeout,
		run:     run,
	}
}

// Shell runs `adb [-s serial] shell args...`.
func (c *ADBClient) Shell(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := make([]string, 0, len(args)+3)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)
	return c.run(ctx, c.path, full...)
}

// ForegroundApp returns the package of the focused window.
func (c *ADBClient) ForegroundApp(ctx context.Context) (string, error) {
	out, err := c.Shell(ctx, "dumpsys", "window")
	if err != nil {
		return "", fmt.Errorf("failed to dump window state: %w", err)
	}
	pkg, ok := ParseFocusedPackage(string(out))
	if !ok {
		return "", fmt.Errorf("no focused window in dumpsys output")
	}
	return pkg, nil
}

// PressHome sends the HOME key event.
func (c *ADBClient) PressHome(ctx context.Context) error {
	if _, err := c.Shell(ctx, "input", "keyevent", "KEYCODE_HOME"); err != nil {
		return err
	}
	return nil
}

var (
	currentFocusRe = regexp.MustCompile(`mCurrentFocus=Window\{\S+ u\d+ ([^\s/}]+)`)
	focusedAppRe   = regexp.MustCompile(`mFocusedApp=.*?ActivityRecord\{\S+ u\d+ ([^\s/}]+)/`)
)

// ParseFocusedPackage extracts the focused package from `dumpsys window`.
// mCurrentFocus wins; mFocusedApp covers keyguard and transition states
// where no window has focus.
func ParseFocusedPackage(dump string) (string, bool) {
	if m := currentFocusRe.FindStringSubmatch(dump); m != nil {
		return m[1], true
	}
	if m := focusedAppRe.FindStringSubmatch(dump); m != nil {
		return m[1], true
	}
	return "", false
}

// ADBEventSource polls the device and emits a window-state-changed event
// whenever the focused package changes.
type ADBEventSource struct {
	client   *ADBClient
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewADBEventSource creates a polling event source.
func NewADBEventSource(client *ADBClient, interval time.Duration, logger *zap.Logger) *ADBEventSource {
	if interval <= 0 {
		interval = defaultADBPollInterval
	}
	return &ADBEventSource{
		client:   client,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Name implements domain.EventSource.
func (s *ADBEventSource) Name() string { return "adb" }

// Events starts polling until ctx is done.
func (s *ADBEventSource) Events(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	out := make(chan domain.ForegroundEvent)
	go s.poll(ctx, out)
	return out, nil
}

func (s *ADBEventSource) poll(ctx context.Context, out chan<- domain.ForegroundEvent) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last string
	var failing bool
	check := func() bool {
		pkg, err := s.client.ForegroundApp(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			// Log the first failure of a streak only; a disconnected device
			// fails every poll.
			if !failing {
				s.logger.Warn("failed to read foreground app", zap.Error(err))
				failing = true
			}
			return true
		}
		if failing {
			s.logger.Info("device reachable again")
			failing = false
		}
		if pkg == last {
			return true
		}
		last = pkg
		ev := domain.ForegroundEvent{
			Type:  domain.EventWindowStateChanged,
			AppID: pkg,
			At:    s.now(),
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !check() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !check() {
				return
			}
		}
	}
}

var _ domain.EventSource = (*ADBEventSource)(nil)

// ADBHomeAction returns the device to the launcher.
type ADBHomeAction struct {
	client *ADBClient
	logger *zap.Logger
}

// NewADBHomeAction creates a home action for the device.
func NewADBHomeAction(client *ADBClient, logger *zap.Logger) *ADBHomeAction {
	return &ADBHomeAction{client: client, logger: logger}
}

// ReturnToHomeScreen presses HOME on the device.
func (a *ADBHomeAction) ReturnToHomeScreen(ctx context.Context, appID string) error {
	if err := a.client.PressHome(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHomeActionFailed, err)
	}
	a.logger.Debug("sent HOME key", zap.String("app", appID))
	return nil
}

var _ domain.HomeAction = (*ADBHomeAction)(nil)
