// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// LauncherApp is the package the fake device shows after HOME.
const LauncherApp = "com.android.launcher3"

// FakeDevice simulates an Android device behind adb. Its Run method has the
// infra.CommandRunner shape: it answers `dumpsys window` with the current
// foreground package and handles `input keyevent KEYCODE_HOME`.
type FakeDevice struct {
	mu         sync.Mutex
	foreground string
	kicks      []string
	offline    bool
	homeFails  bool
}

// NewFakeDevice creates a device showing the launcher.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{foreground: LauncherApp}
}

// Open brings appID to the foreground.
func (d *FakeDevice) Open(appID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = appID
}

// Foreground returns the current foreground package.
func (d *FakeDevice) Foreground() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

// Kicks returns the packages that were in the foreground when HOME was pressed.
func (d *FakeDevice) Kicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.kicks...)
}

// SetOffline makes every adb call fail.
func (d *FakeDevice) SetOffline(offline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = offline
}

// SetHomeFails makes the HOME key event fail.
func (d *FakeDevice) SetHomeFails(fails bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.homeFails = fails
}

// Run answers adb invocations.
func (d *FakeDevice) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.offline {
		return nil, errors.New("error: device offline")
	}

	// Drop "-s <serial>" and "shell".
	for len(args) > 0 && (args[0] == "-s" || args[0] == "shell") {
		if args[0] == "-s" && len(args) > 1 {
			args = args[2:]
			continue
		}
		args = args[1:]
	}

	cmd := strings.Join(args, " ")
	switch cmd {
	case "dumpsys window":
		return []byte(fmt.Sprintf("  mCurrentFocus=Window{5e1f2a u0 %s/%s.MainActivity}\n", d.foreground, d.foreground)), nil
	case "input keyevent KEYCODE_HOME":
		if d.homeFails {
			return nil, errors.New("error: closed")
		}
		d.kicks = append(d.kicks, d.foreground)
		d.foreground = LauncherApp
		return nil, nil
	default:
		return nil, fmt.Errorf("fake device: unsupported command %q", cmd)
	}
}
