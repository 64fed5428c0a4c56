package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/soundloop/internal/audio"
	"github.com/jmylchreest/soundloop/internal/store"
)

// QuietGate keeps an audio.Gate closed while quiet mode is enabled in the
// shared state file. Units blocked by the gate keep retrying and start once
// quiet mode is turned off.
type QuietGate struct {
	mu     sync.Mutex
	logger *slog.Logger

	gate      *audio.Gate
	statePath string
	watcher   *store.StateWatcher
	quiet     bool
	onChange  func(quiet bool)
}

// NewQuietGate creates a gate controller for the state file at statePath.
func NewQuietGate(gate *audio.Gate, statePath string, logger *slog.Logger) *QuietGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuietGate{
		logger:    logger,
		gate:      gate,
		statePath: statePath,
	}
}

// SetChangeCallback is invoked after every quiet mode transition.
func (q *QuietGate) SetChangeCallback(fn func(quiet bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

// Start applies the current state and follows later changes.
func (q *QuietGate) Start() error {
	if err := os.MkdirAll(filepath.Dir(q.statePath), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	state, err := store.LoadSharedState(q.statePath)
	if err != nil {
		return fmt.Errorf("failed to load shared state: %w", err)
	}
	q.Apply(state)

	watcher, err := store.NewStateWatcher(q.statePath, q.Apply, q.logger)
	if err != nil {
		return fmt.Errorf("failed to create state watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start state watcher: %w", err)
	}

	q.mu.Lock()
	q.watcher = watcher
	q.mu.Unlock()
	return nil
}

// Apply opens or closes the gate to match state.
func (q *QuietGate) Apply(state *store.SharedState) {
	q.mu.Lock()
	changed := q.quiet != state.QuietEnabled
	q.quiet = state.QuietEnabled
	if q.quiet {
		q.gate.Block()
	} else {
		q.gate.Allow()
	}
	cb := q.onChange
	q.mu.Unlock()

	if !changed {
		return
	}
	q.logger.Info("quiet mode changed", "quiet", state.QuietEnabled)
	if cb != nil {
		cb(state.QuietEnabled)
	}
}

// Quiet reports whether playback is currently blocked.
func (q *QuietGate) Quiet() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quiet
}

// Stop stops following the state file.
func (q *QuietGate) Stop() error {
	q.mu.Lock()
	watcher := q.watcher
	q.watcher = nil
	q.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}
