package infra

import (
	"errors"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// mockProcessManager is a test double for domain.ProcessManager.
type mockProcessManager struct {
	mu          sync.Mutex
	names       map[int]string
	runningPIDs map[int]bool
	killedPIDs  []int
	killErr     map[int]error
	findErr     error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		names:       make(map[int]string),
		runningPIDs: make(map[int]bool),
		killErr:     make(map[int]error),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var pids []int
	for pid, name := range m.names {
		if m.runningPIDs[pid] && strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.killErr[pid]; err != nil {
		return err
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) CurrentName() (string, error) {
	return "focuslock", nil
}

// Start marks pid as a running process called name.
func (m *mockProcessManager) Start(pid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[pid] = name
	m.runningPIDs[pid] = true
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

var errPermission = errors.New("operation not permitted")

func domainEntry(pid int, source string) domain.ServiceEntry {
	return domain.ServiceEntry{PID: pid, Source: source, AppVersion: "test"}
}
