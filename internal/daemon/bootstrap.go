package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// DetachedCommand builds a command that re-executes binary with args in a
// new session, output appended to logPath.
func DetachedCommand(binary string, args []string, logPath string) (*exec.Cmd, error) {
	cmd := exec.Command(binary, args...)

	// New session: survives the terminal that started it.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	cmd.Stdin = nil
	if logPath != "" {
		out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cmd.Stdout = out
		cmd.Stderr = out
	}
	return cmd, nil
}

// StartDetached re-executes the current binary in the background and
// returns the child PID.
func StartDetached(args []string, logPath string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable: %w", err)
	}

	cmd, err := DetachedCommand(executable, args, logPath)
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start service: %w", err)
	}
	pid := cmd.Process.Pid

	// The parent does not wait; release so no zombie bookkeeping is kept.
	_ = cmd.Process.Release()
	if f, ok := cmd.Stdout.(*os.File); ok {
		f.Close()
	}
	return pid, nil
}
