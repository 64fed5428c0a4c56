package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundloop/internal/config"
)

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rain.wav"), make([]byte, 2048), 0o644))

	half := 50
	c := config.DefaultConfig()
	c.Audio.AssetDir = dir
	c.Sources = []config.SourceConfig{
		{ID: "rain", Kind: "file", Path: "rain.wav", Volume: &half},
		{ID: "missing", Kind: "file", Path: "missing.wav"},
		{ID: "radio", Kind: "url", URL: "https://example.com/radio.mp3"},
	}
	c.Playlist.Order = []string{"radio"}

	statuses, err := resolveLocal(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	rain := statuses[0]
	assert.True(t, rain.Resolved)
	assert.Equal(t, filepath.Join(dir, "rain.wav"), rain.Locator)
	assert.Equal(t, uint64(2048), rain.Size)
	assert.InDelta(t, 0.4, rain.Volume, 1e-9)
	assert.False(t, rain.InPlaylist)

	missing := statuses[1]
	assert.False(t, missing.Resolved)
	assert.NotEmpty(t, missing.Error)
	assert.Zero(t, missing.Size)

	radio := statuses[2]
	assert.True(t, radio.Resolved)
	assert.True(t, radio.InPlaylist)
	assert.Equal(t, "https://example.com/radio.mp3", radio.Locator)
	assert.Zero(t, radio.Size)
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"35", 0.35, false},
		{"100", 1, false},
		{"101", 0, true},
		{"-1", 0, true},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePercent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
