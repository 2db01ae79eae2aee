// Package resume implements the Install-Resume Store (spec §4.10):
// whenever an installation is still non-terminal, its status is serialized
// to durable state so the UI can render "installs interrupted by restart"
// after a crash or graceful shutdown. Grounded on the teacher's
// internal/logging/rotation.go file-handling idiom (os.MkdirAll +
// os.Rename for atomic replace).
package resume

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jsparrow/jenkins/internal/logging"
)

var log = logging.L("resume")

// Snapshot is the last-known status of one in-flight installation.
type Snapshot struct {
	PluginName string `json:"pluginName"`
	Version    string `json:"version"`
	State      string `json:"state"`
	Message    string `json:"message,omitempty"`
}

// Store persists and reloads the map of plugin name to its last persisted
// status (spec §3 "UpdateCenterState", §4.10).
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store persisting to <home>/install-status.json.
func New(home string) *Store {
	return &Store{path: filepath.Join(home, "install-status.json")}
}

// Persist writes the given map to durable state, replacing it atomically.
// An empty map clears the durable state entirely (spec §4.10: "if no
// [installation is non-successful]: clear durable state").
func (s *Store) Persist(snapshots map[string]Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snapshots) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clearing install-resume state: %w", err)
		}
		return nil
	}

	raw, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling install-resume state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating install-resume directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing install-resume state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing install-resume state: %w", err)
	}
	log.Debug("install-resume state persisted", "count", len(snapshots))
	return nil
}

// Load returns the last persisted map, or an empty map if no state exists
// (readers tolerate absence, per spec §5).
func (s *Store) Load() (map[string]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Snapshot{}, nil
		}
		return nil, fmt.Errorf("reading install-resume state: %w", err)
	}

	var snapshots map[string]Snapshot
	if err := json.Unmarshal(raw, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing install-resume state: %w", err)
	}
	if snapshots == nil {
		snapshots = map[string]Snapshot{}
	}
	return snapshots, nil
}
