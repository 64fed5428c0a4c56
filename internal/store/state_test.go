package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSharedState_Missing(t *testing.T) {
	state, err := LoadSharedState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.False(t, state.QuietEnabled)
	assert.Equal(t, CurrentStateSchemaVersion, state.SchemaVersion)
}

func TestLoadSharedState_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	state, err := LoadSharedState(path)
	require.NoError(t, err)
	assert.False(t, state.QuietEnabled)
}

func TestSharedState_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")

	state := DefaultSharedState()
	state.SetQuiet(true, QuietTriggerUser, "quiet on", "cli")
	require.NoError(t, SaveSharedState(path, state))

	loaded, err := LoadSharedState(path)
	require.NoError(t, err)
	assert.True(t, loaded.QuietEnabled)
	require.NotNil(t, loaded.LastTransition)
	assert.Equal(t, QuietTriggerUser, loaded.LastTransition.Trigger)
	assert.Equal(t, "quiet on", loaded.LastTransition.Reason)
	assert.Equal(t, "cli", loaded.LastTransition.Source)
	assert.NotZero(t, loaded.LastTransition.Timestamp)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestSharedState_ToggleQuiet(t *testing.T) {
	state := DefaultSharedState()

	assert.True(t, state.ToggleQuiet(QuietTriggerUser, "toggle", "cli"))
	assert.True(t, state.QuietEnabled)
	assert.False(t, state.ToggleQuiet(QuietTriggerSystem, "toggle", "soundloopd"))
	assert.Equal(t, QuietTriggerSystem, state.LastTransition.Trigger)
}
