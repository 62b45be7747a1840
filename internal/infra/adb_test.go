package infra

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	dumpInstagram = `WINDOW MANAGER WINDOWS (dumpsys window windows)
  mCurrentFocus=Window{3c4d1e2 u0 com.instagram.android/com.instagram.mainactivity.MainActivity}
  mFocusedApp=ActivityRecord{9f1a2b3 u0 com.instagram.android/com.instagram.mainactivity.MainActivity t41}
`
	dumpLauncher = `  mCurrentFocus=Window{1a2b3c u0 com.android.launcher3/com.android.launcher3.uioverrides.QuickstepLauncher}
`
	dumpKeyguard = `  mCurrentFocus=null
  mFocusedApp=ActivityRecord{77aa u0 com.spotify.music/.MainActivity t12}
`
)

// scriptedRunner replays canned adb outputs and records invocations.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   [][]string
}

func (r *scriptedRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return nil, r.err
	}
	if len(r.outputs) == 0 {
		return []byte(dumpLauncher), nil
	}
	out := r.outputs[0]
	if len(r.outputs) > 1 {
		r.outputs = r.outputs[1:]
	}
	return []byte(out), nil
}

func (r *scriptedRunner) lastCall() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestParseFocusedPackage(t *testing.T) {
	tests := []struct {
		name   string
		dump   string
		want   string
		wantOK bool
	}{
		{name: "current focus", dump: dumpInstagram, want: "com.instagram.android", wantOK: true},
		{name: "launcher", dump: dumpLauncher, want: "com.android.launcher3", wantOK: true},
		{name: "keyguard falls back to focused app", dump: dumpKeyguard, want: "com.spotify.music", wantOK: true},
		{name: "system window without package", dump: "  mCurrentFocus=Window{abc u0 StatusBar}\n", want: "StatusBar", wantOK: true},
		{name: "nothing focused", dump: "  mCurrentFocus=null\n  mFocusedApp=null\n", wantOK: false},
		{name: "empty", dump: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFocusedPackage(tt.dump)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestADBClient_Shell(t *testing.T) {
	runner := &scriptedRunner{}
	client := NewADBClientWithRunner(ADBConfig{Path: "/opt/adb", Serial: "emulator-5554"}, runner.run)

	_, err := client.Shell(context.Background(), "getprop", "ro.build.version.sdk")
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/adb", "-s", "emulator-5554", "shell", "getprop", "ro.build.version.sdk"}, runner.lastCall())

	client = NewADBClientWithRunner(ADBConfig{}, runner.run)
	_, err = client.Shell(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, []string{"adb", "shell", "true"}, runner.lastCall())
}

func TestADBClient_ForegroundApp(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{dumpInstagram}}
	client := NewADBClientWithRunner(ADBConfig{}, runner.run)

	pkg, err := client.ForegroundApp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "com.instagram.android", pkg)

	runner.outputs = []string{"  mCurrentFocus=null\n"}
	_, err = client.ForegroundApp(context.Background())
	assert.Error(t, err)
}

func TestADBHomeAction(t *testing.T) {
	t.Run("sends HOME keyevent", func(t *testing.T) {
		runner := &scriptedRunner{}
		action := NewADBHomeAction(NewADBClientWithRunner(ADBConfig{}, runner.run), zap.NewNop())

		require.NoError(t, action.ReturnToHomeScreen(context.Background(), "com.instagram.android"))
		assert.Equal(t, []string{"adb", "shell", "input", "keyevent", "KEYCODE_HOME"}, runner.lastCall())
	})

	t.Run("adb failure wraps ErrHomeActionFailed", func(t *testing.T) {
		runner := &scriptedRunner{err: errors.New("error: device offline")}
		action := NewADBHomeAction(NewADBClientWithRunner(ADBConfig{}, runner.run), zap.NewNop())

		err := action.ReturnToHomeScreen(context.Background(), "com.instagram.android")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrHomeActionFailed)
		assert.Contains(t, err.Error(), "device offline")
	})
}

func TestADBEventSource_EmitsOnChange(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{dumpLauncher, dumpLauncher, dumpInstagram, dumpInstagram, dumpKeyguard}}
	client := NewADBClientWithRunner(ADBConfig{}, runner.run)
	source := NewADBEventSource(client, 5*time.Millisecond, zap.NewNop())
	assert.Equal(t, "adb", source.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Events(ctx)
	require.NoError(t, err)

	var got []string
	for ev := range events {
		assert.Equal(t, domain.EventWindowStateChanged, ev.Type)
		assert.False(t, ev.At.IsZero())
		got = append(got, ev.AppID)
		if len(got) == 3 {
			cancel()
		}
	}
	assert.Equal(t, []string{"com.android.launcher3", "com.instagram.android", "com.spotify.music"}, got)
}

func TestADBEventSource_SurvivesFailures(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("no devices/emulators found")}
	client := NewADBClientWithRunner(ADBConfig{}, runner.run)
	source := NewADBEventSource(client, 2*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := source.Events(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) >= 3
	}, time.Second, time.Millisecond)

	runner.mu.Lock()
	runner.err = nil
	runner.outputs = []string{dumpInstagram}
	runner.mu.Unlock()

	select {
	case ev := <-events:
		assert.Equal(t, "com.instagram.android", ev.AppID)
	case <-time.After(time.Second):
		t.Fatal("no event after device came back")
	}

	cancel()
	for range events {
	}
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner(context.Background(), "echo", "focus")
	if err != nil {
		t.Skipf("echo unavailable: %v", err)
	}
	assert.Equal(t, "focus", strings.TrimSpace(string(out)))
}
