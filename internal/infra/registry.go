package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	registryFileName = ".service.json"
	registryVersion  = 1
)

// FileRegistry implements domain.ServiceRegistry using a hidden JSON file
// in the data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry in dataDir.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, registryFileName), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records the running service, replacing any stale entry.
func (r *FileRegistry) Register(entry domain.ServiceEntry) error {
	return r.withLock(func() error {
		entry.Version = registryVersion
		if entry.StartedAt == 0 {
			entry.StartedAt = time.Now().Unix()
		}
		entry.LastHeartbeat = time.Now().Unix()
		return r.atomicWrite(&entry)
	})
}

// UpdateHeartbeat refreshes the liveness timestamp and the tracked app.
func (r *FileRegistry) UpdateHeartbeat(trackingApp string) error {
	return r.withLock(func() error {
		entry, err := r.Get()
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("service not registered")
		}
		entry.LastHeartbeat = time.Now().Unix()
		entry.TrackingApp = trackingApp
		return r.atomicWrite(entry)
	})
}

// Get returns the registry state, or nil if the file does not exist.
func (r *FileRegistry) Get() (*domain.ServiceEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.ServiceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &entry, nil
}

// IsAlive reports whether a registered service process is still running.
// The entry is returned even when the process is gone.
func (r *FileRegistry) IsAlive() (bool, *domain.ServiceEntry, error) {
	entry, err := r.Get()
	if err != nil || entry == nil {
		return false, entry, err
	}
	return r.processManager.IsRunning(entry.PID), entry, nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// withLock serializes writers across processes (the service and CLI).
func (r *FileRegistry) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// atomicWrite writes the entry to a temp file and renames it into place.
func (r *FileRegistry) atomicWrite(entry *domain.ServiceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.ServiceRegistry.
var _ domain.ServiceRegistry = (*FileRegistry)(nil)
