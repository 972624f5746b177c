// Package state persists what previous rig runs did, so `rig status` can report it and
// later runs can log what changed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"rig/internal/logger"
)

// EntryState is the last recorded outcome of one catalog entry.
type EntryState struct {
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BinaryState records the last bootstrap install of rig itself.
type BinaryState struct {
	Version     string    `json:"version"`
	InstallPath string    `json:"install_path"`
	InstalledAt time.Time `json:"installed_at"`
}

// State is the whole state file.
type State struct {
	Entries map[string]EntryState `json:"entries"`
	Binary  *BinaryState          `json:"binary,omitempty"`
	LastRun time.Time             `json:"last_run,omitempty"`
}

// New returns an empty state.
func New() *State {
	return &State{Entries: make(map[string]EntryState)}
}

// LoadState reads the state at path. A missing file yields an empty state; a corrupt one
// is an error so it is never silently overwritten.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("[DEBUG] No state file at %s\n", path)
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	if st.Entries == nil {
		st.Entries = make(map[string]EntryState)
	}
	return &st, nil
}

// SaveState writes st to path atomically, creating the parent directory.
func SaveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	logger.Debug("[DEBUG] Writing state to %s:\n%s\n", path, string(data))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	return nil
}

// Record stores the outcome of one entry. Entries that were only asked about and
// declined keep their earlier success, since declining does not uninstall anything.
func (s *State) Record(name string, e EntryState) (changed bool) {
	prev, ok := s.Entries[name]
	if ok && prev.Status == "succeeded" && e.Status == "skipped" {
		return false
	}
	s.Entries[name] = e
	return !ok || prev.Status != e.Status
}

// Names returns the recorded entry names, sorted.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.Entries))
	for n := range s.Entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
