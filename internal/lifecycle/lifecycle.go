// Package lifecycle implements the collab.Lifecycle collaborator used by
// RestartJenkinsJob, HudsonUpgradeJob, and HudsonDowngradeJob: process
// restart (systemd/launchd/exec-replace on unix, SCM stop/start on
// Windows) and atomic replacement of the running core archive.
package lifecycle

import (
	"fmt"
	"os"
	"sync"

	"github.com/Jsparrow/jenkins/internal/logging"
)

const (
	serviceName  = "jenkins"
	launchdLabel = "org.jenkins-ci.jenkins"
)

var log = logging.L("lifecycle")

// Manager implements collab.Lifecycle against the host OS's service
// manager and the controller's own core archive path.
type Manager struct {
	WarPath string

	mu      sync.Mutex
	pending bool
}

// New returns a Manager that rewrites the core archive at warPath and
// restarts the controller process on SafeRestart.
func New(warPath string) *Manager {
	return &Manager{WarPath: warPath}
}

// SafeRestart restarts the controller once any in-flight work quiesces.
// The installer worker is single-threaded, so by the time a RestartJob
// reaches the front of the queue nothing else is running; SafeRestart
// therefore restarts immediately rather than polling for quiescence.
func (m *Manager) SafeRestart(auth string) error {
	m.mu.Lock()
	m.pending = true
	m.mu.Unlock()

	log.Info("restarting controller", "requestedBy", auth)
	if err := restartProcess(); err != nil {
		return fmt.Errorf("restarting controller: %w", err)
	}

	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()
	return nil
}

// CancelRestart reports whether a restart was still pending; the actual
// job-level cancellation (only valid from Pending) lives in the
// scheduler, this just clears the manager's own bookkeeping.
func (m *Manager) CancelRestart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return fmt.Errorf("no restart is pending")
	}
	m.pending = false
	return nil
}

// RewriteHudsonWar atomically replaces the running core archive with the
// file at srcPath, backing up the previous archive alongside it so a
// subsequent HudsonDowngradeJob can restore it (spec §4.9).
func (m *Manager) RewriteHudsonWar(srcPath string) error {
	if m.WarPath == "" {
		return fmt.Errorf("lifecycle: no core archive path configured")
	}

	bak := m.WarPath + ".bak"
	if _, err := os.Stat(m.WarPath); err == nil {
		os.Remove(bak)
		if err := os.Rename(m.WarPath, bak); err != nil {
			return fmt.Errorf("backing up current core archive: %w", err)
		}
	}

	if err := os.Rename(srcPath, m.WarPath); err != nil {
		return fmt.Errorf("installing new core archive: %w", err)
	}

	return nil
}

// RestoreHudsonWar restores the core archive backed up by a prior
// RewriteHudsonWar call, for HudsonDowngradeJob.
func (m *Manager) RestoreHudsonWar() error {
	bak := m.WarPath + ".bak"
	if _, err := os.Stat(bak); err != nil {
		return fmt.Errorf("no backed-up core archive at %s: %w", bak, err)
	}
	tmp := m.WarPath + ".tmp"
	data, err := os.ReadFile(bak)
	if err != nil {
		return fmt.Errorf("reading backed-up core archive: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("staging restored core archive: %w", err)
	}
	if err := os.Rename(tmp, m.WarPath); err != nil {
		return fmt.Errorf("installing restored core archive: %w", err)
	}
	return nil
}
