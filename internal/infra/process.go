// Package infra implements infrastructure concerns: prefs stores, event
// sources, home actions, notifiers and the service registry.
package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes whose name contains pattern (case-insensitive).
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	patternLower := strings.ToLower(pattern)
	self := int32(os.Getpid())

	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue // exited
		}
		if strings.Contains(strings.ToLower(name), patternLower) {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// CurrentName returns the executable name of this process.
func (pm *ProcessManagerImpl) CurrentName() (string, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return filepath.Base(os.Args[0]), nil
	}
	name, err := p.Name()
	if err != nil {
		return "", fmt.Errorf("failed to read process name: %w", err)
	}
	return name, nil
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)

// ProcessHomeAction "returns home" on a desktop host by terminating the
// processes that belong to the tracked app.
type ProcessHomeAction struct {
	pm     domain.ProcessManager
	names  map[string]string
	logger *zap.Logger
}

// NewProcessHomeAction creates a home action. names maps an app identifier
// to the process name pattern to terminate; identifiers without an entry
// use their last dot-separated segment.
func NewProcessHomeAction(pm domain.ProcessManager, names map[string]string, logger *zap.Logger) *ProcessHomeAction {
	return &ProcessHomeAction{
		pm:     pm,
		names:  names,
		logger: logger,
	}
}

// processPattern returns the process name pattern for appID.
func (a *ProcessHomeAction) processPattern(appID string) string {
	if name, ok := a.names[appID]; ok && name != "" {
		return name
	}
	if i := strings.LastIndex(appID, "."); i >= 0 && i < len(appID)-1 {
		return appID[i+1:]
	}
	return appID
}

// ReturnToHomeScreen kills every process matching the app's pattern.
func (a *ProcessHomeAction) ReturnToHomeScreen(ctx context.Context, appID string) error {
	pattern := a.processPattern(appID)
	pids, err := a.pm.FindByName(pattern)
	if err != nil {
		return fmt.Errorf("%w: find %q: %v", domain.ErrHomeActionFailed, pattern, err)
	}
	if len(pids) == 0 {
		return fmt.Errorf("%w: no process matches %q", domain.ErrHomeActionFailed, pattern)
	}

	var failed int
	for _, pid := range pids {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", domain.ErrHomeActionFailed, ctx.Err())
		}
		if err := a.pm.Kill(pid); err != nil {
			failed++
			a.logger.Warn("failed to kill process",
				zap.String("app", appID),
				zap.Int("pid", pid),
				zap.Error(err))
			continue
		}
		a.logger.Info("killed process",
			zap.String("app", appID),
			zap.Int("pid", pid))
	}

	if failed == len(pids) {
		return fmt.Errorf("%w: could not kill any %q process", domain.ErrHomeActionFailed, pattern)
	}
	return nil
}

var _ domain.HomeAction = (*ProcessHomeAction)(nil)

// LogHomeAction only logs the kick. Used for dry runs.
type LogHomeAction struct {
	logger *zap.Logger
}

// NewLogHomeAction creates a dry-run home action.
func NewLogHomeAction(logger *zap.Logger) *LogHomeAction {
	return &LogHomeAction{logger: logger}
}

// ReturnToHomeScreen logs and reports success.
func (a *LogHomeAction) ReturnToHomeScreen(_ context.Context, appID string) error {
	a.logger.Info("dry run: would return to home screen", zap.String("app", appID))
	return nil
}

var _ domain.HomeAction = (*LogHomeAction)(nil)
