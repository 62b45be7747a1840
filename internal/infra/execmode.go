package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents how the service was started.
type ExecMode string

const (
	// ExecModeUser runs as the invoking user with data under $HOME.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with data under /var/lib.
	ExecModeSystem ExecMode = "system"
)

const (
	systemDataDir = "/var/lib/focuslock"
	userDataDir   = ".focuslock"
	logFileName   = "focuslock.log"
)

// ExecModeConfig holds the paths derived from the execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // prefs database, key, service registry
	LogPath string
	IsRoot  bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return execModeFor(ExecModeSystem, systemDataDir, true)
	}
	home, _ := os.UserHomeDir()
	return execModeFor(ExecModeUser, filepath.Join(home, userDataDir), false)
}

// GetUserModeConfig returns user mode paths regardless of current euid.
// Under sudo the invoking user's home is used.
func GetUserModeConfig() *ExecModeConfig {
	return execModeFor(ExecModeUser, filepath.Join(GetRealUserHome(), userDataDir), os.Geteuid() == 0)
}

// WithDataDir returns a copy rooted at dataDir (config override).
func (c *ExecModeConfig) WithDataDir(dataDir string) *ExecModeConfig {
	if dataDir == "" {
		return c
	}
	return execModeFor(c.Mode, dataDir, c.IsRoot)
}

func execModeFor(mode ExecMode, dataDir string, isRoot bool) *ExecModeConfig {
	return &ExecModeConfig{
		Mode:    mode,
		DataDir: dataDir,
		LogPath: filepath.Join(dataDir, logFileName),
		IsRoot:  isRoot,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
