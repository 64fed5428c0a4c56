package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QuietTrigger records what changed the quiet mode state.
type QuietTrigger string

const (
	// QuietTriggerUser is a user-initiated change (CLI, scripts).
	QuietTriggerUser QuietTrigger = "user"
	// QuietTriggerSystem is a change made by the daemon itself.
	QuietTriggerSystem QuietTrigger = "system"
)

// QuietTransition records details about a quiet mode change.
type QuietTransition struct {
	Trigger   QuietTrigger `json:"trigger"`
	Reason    string       `json:"reason"`
	Source    string       `json:"source,omitempty"` // e.g. "cli", "soundloopd"
	Timestamp int64        `json:"timestamp"`
}

// SharedState is the state shared between soundloop and soundloopd.
// While quiet mode is enabled the daemon refuses to start playback.
type SharedState struct {
	QuietEnabled   bool             `json:"quiet_enabled"`
	LastTransition *QuietTransition `json:"last_transition,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// CurrentStateSchemaVersion is the current version of the state schema.
const CurrentStateSchemaVersion = 1

// stateFileMutex protects concurrent access to the state file.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{SchemaVersion: CurrentStateSchemaVersion}
}

// LoadSharedState loads the shared state from path.
// A missing or corrupted file yields the default state.
func LoadSharedState(path string) (*SharedState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSharedState(), nil
		}
		return nil, err
	}

	var state SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateSchemaVersion
	}
	return &state, nil
}

// SaveSharedState writes the shared state to path atomically.
func SaveSharedState(path string, state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateSchemaVersion
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// SetQuiet updates quiet mode and records the transition.
func (s *SharedState) SetQuiet(enabled bool, trigger QuietTrigger, reason, source string) {
	s.QuietEnabled = enabled
	s.LastTransition = &QuietTransition{
		Trigger:   trigger,
		Reason:    reason,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// ToggleQuiet flips quiet mode and returns the new state.
func (s *SharedState) ToggleQuiet(trigger QuietTrigger, reason, source string) bool {
	s.SetQuiet(!s.QuietEnabled, trigger, reason, source)
	return s.QuietEnabled
}
