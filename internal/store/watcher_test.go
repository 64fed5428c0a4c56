package store

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateWatcher_ReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	var quiet atomic.Bool
	var calls atomic.Int32
	w, err := NewStateWatcher(path, func(s *SharedState) {
		quiet.Store(s.QuietEnabled)
		calls.Add(1)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	state := DefaultSharedState()
	state.SetQuiet(true, QuietTriggerUser, "quiet on", "test")
	require.NoError(t, SaveSharedState(path, state))

	require.Eventually(t, func() bool {
		return calls.Load() > 0 && quiet.Load()
	}, 2*time.Second, 10*time.Millisecond)

	state.SetQuiet(false, QuietTriggerUser, "quiet off", "test")
	require.NoError(t, SaveSharedState(path, state))

	require.Eventually(t, func() bool { return !quiet.Load() }, 2*time.Second, 10*time.Millisecond)
}

func TestStateWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewStateWatcher(filepath.Join(t.TempDir(), "state.json"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
