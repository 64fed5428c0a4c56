package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundloop/internal/audio"
	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/model"
	"github.com/jmylchreest/soundloop/internal/trigger"
)

// memResolver maps every source to mem://<id>; ids starting with "bad" fail.
type memResolver struct {
	mu          sync.Mutex
	invalidated int
}

func (r *memResolver) Resolve(_ context.Context, src model.Source) (string, error) {
	if strings.HasPrefix(src.SourceID(), "bad") {
		return "", errors.New("not found")
	}
	return "mem://" + src.SourceID(), nil
}

func (r *memResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated++
}

type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) sink() trigger.Sink {
	return trigger.Func(func(ev model.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	})
}

func (r *eventRecorder) Strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.String()
	}
	return out
}

func intPtr(v int) *int { return &v }

func testConfig(ids ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Playback.RetryBackoff = config.Duration(10 * time.Millisecond)
	for _, id := range ids {
		cfg.Sources = append(cfg.Sources, config.SourceConfig{ID: id, Kind: "file", Path: id + ".wav"})
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *audio.MockBackend, *eventRecorder, *memResolver) {
	t.Helper()
	backend := audio.NewMockBackend()
	rec := &eventRecorder{}
	resolver := &memResolver{}
	e := NewEngine(cfg, backend, resolver, rec.sink(), nil)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(e.DestroyAll)
	return e, backend, rec, resolver
}

func TestEngine_Initialize(t *testing.T) {
	e, backend, _, _ := newTestEngine(t, testConfig("a", "bad-one", "b"))

	assert.Equal(t, []string{"mem://a", "mem://b"}, backend.Opened())

	statuses := e.Sources()
	require.Len(t, statuses, 3)

	assert.Equal(t, "a", statuses[0].ID)
	assert.True(t, statuses[0].Resolved)
	assert.Equal(t, "mem://a", statuses[0].Locator)
	assert.True(t, statuses[0].InPlaylist)

	assert.Equal(t, "bad-one", statuses[1].ID)
	assert.False(t, statuses[1].Resolved)
	assert.NotEmpty(t, statuses[1].Error)
	assert.Equal(t, "bad-one.wav", statuses[1].Locator)
	assert.False(t, statuses[1].InPlaylist)
}

func TestEngine_Volume(t *testing.T) {
	cfg := testConfig("a")
	cfg.Audio.Volume = 80
	cfg.Sources[0].Volume = intPtr(50)
	e, backend, _, _ := newTestEngine(t, cfg)

	assert.InDelta(t, 0.4, backend.Resource("mem://a").Volume(), 1e-9)

	require.NoError(t, e.SetVolume("a", 0.25))
	assert.InDelta(t, 0.25, backend.Resource("mem://a").Volume(), 1e-9)

	assert.ErrorIs(t, e.SetVolume("nope", 1), ErrUnknownSource)
}

func TestEngine_PlayEmitsEvents(t *testing.T) {
	e, backend, rec, _ := newTestEngine(t, testConfig("a"))
	res := backend.Resource("mem://a")

	require.NoError(t, e.Play("a", false))
	require.Eventually(t, res.Playing, time.Second, 5*time.Millisecond)

	res.SimulateEnd()
	assert.Equal(t, []string{"source_started a", "source_ended a"}, rec.Strings())
}

func TestEngine_StopSuppressesEnd(t *testing.T) {
	e, backend, rec, _ := newTestEngine(t, testConfig("a"))
	res := backend.Resource("mem://a")

	require.NoError(t, e.Play("a", true))
	require.Eventually(t, res.Playing, time.Second, 5*time.Millisecond)
	assert.True(t, res.Looping())

	require.NoError(t, e.Stop("a"))
	res.SimulateEnd()
	assert.Equal(t, []string{"source_started a"}, rec.Strings())
}

func TestEngine_UnknownSource(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testConfig("a", "bad"))

	assert.ErrorIs(t, e.Play("missing", false), ErrUnknownSource)
	assert.ErrorIs(t, e.Play("bad", false), ErrUnknownSource)
	assert.ErrorIs(t, e.Stop("missing"), ErrUnknownSource)
}

func TestEngine_AudioDisabled(t *testing.T) {
	cfg := testConfig("a")
	cfg.Audio.Enabled = false
	e, backend, rec, _ := newTestEngine(t, cfg)

	require.NoError(t, e.Play("a", false))
	require.NoError(t, e.StartPlaylist())
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, backend.Resource("mem://a").Plays())
	assert.Empty(t, rec.Strings())
	assert.False(t, e.PlaylistRunning())
}

func TestEngine_Playlist(t *testing.T) {
	cfg := testConfig("a", "b", "c")
	cfg.Playlist.Order = []string{"c", "a"}
	e, backend, rec, _ := newTestEngine(t, cfg)

	require.NoError(t, e.StartPlaylist())
	assert.True(t, e.PlaylistRunning())

	c := backend.Resource("mem://c")
	a := backend.Resource("mem://a")
	require.Eventually(t, c.Playing, time.Second, 5*time.Millisecond)

	c.SimulateEnd()
	require.Eventually(t, a.Playing, time.Second, 5*time.Millisecond)

	a.SimulateEnd()
	require.Eventually(t, func() bool { return c.Plays() == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		"source_started c",
		"source_ended c",
		"source_started a",
		"source_ended a",
		"source_started c",
	}, rec.Strings())
	assert.Equal(t, 0, backend.Resource("mem://b").Plays())

	e.StopPlaylist()
	assert.False(t, e.PlaylistRunning())
	assert.False(t, c.Playing())
}

func TestEngine_ManualPlayTakesOverPlaylistSource(t *testing.T) {
	e, backend, rec, _ := newTestEngine(t, testConfig("a", "b"))

	require.NoError(t, e.StartPlaylist())
	a := backend.Resource("mem://a")
	require.Eventually(t, a.Playing, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Play("a", false))
	assert.False(t, e.PlaylistRunning())

	a.SimulateEnd()
	assert.Equal(t, 0, backend.Resource("mem://b").Plays(), "playlist no longer advances")
	assert.Equal(t, []string{"source_started a", "source_started a", "source_ended a"}, rec.Strings())
}

func TestEngine_Reload(t *testing.T) {
	e, backend, _, resolver := newTestEngine(t, testConfig("a", "b"))

	require.NoError(t, e.StartPlaylist())
	oldA := backend.Resource("mem://a")

	require.NoError(t, e.Reload(context.Background(), testConfig("b", "c")))

	assert.True(t, oldA.Closed())
	assert.Equal(t, 1, resolver.invalidated)
	assert.True(t, e.PlaylistRunning(), "a running playlist is restarted")

	statuses := e.Sources()
	require.Len(t, statuses, 2)
	assert.Equal(t, "b", statuses[0].ID)
	assert.Equal(t, "c", statuses[1].ID)

	newB := backend.Resource("mem://b")
	require.Eventually(t, newB.Playing, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, e.Play("a", false), ErrUnknownSource)
}

func TestEngine_InitializeTwiceReleasesUnits(t *testing.T) {
	e, backend, rec, _ := newTestEngine(t, testConfig("a", "b"))

	oldA := backend.Resource("mem://a")
	oldB := backend.Resource("mem://b")
	require.NoError(t, e.Play("a", true))
	require.Eventually(t, oldA.Playing, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Initialize(context.Background()))

	assert.True(t, oldA.Closed())
	assert.False(t, oldA.Playing())
	assert.True(t, oldB.Closed())
	assert.Equal(t, []string{"mem://a", "mem://b", "mem://a", "mem://b"}, backend.Opened())
	assert.Len(t, e.Sources(), 2)

	// The old unit is gone, so its end no longer reaches the sink
	oldA.SimulateEnd()
	assert.Equal(t, []string{"source_started a"}, rec.Strings())

	newA := backend.Resource("mem://a")
	require.NotSame(t, oldA, newA)
	require.NoError(t, e.Play("a", false))
	require.Eventually(t, newA.Playing, time.Second, 5*time.Millisecond)
}

func TestEngine_DestroyAll(t *testing.T) {
	e, backend, _, _ := newTestEngine(t, testConfig("a", "b"))

	e.DestroyAll()
	assert.True(t, backend.Resource("mem://a").Closed())
	assert.True(t, backend.Resource("mem://b").Closed())
	assert.ErrorIs(t, e.Play("a", false), ErrUnknownSource)

	// Safe to call twice
	assert.NotPanics(t, e.DestroyAll)
}

func TestEngine_LookupSource(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testConfig("bell", "bell-soft", "rain"))

	id, err := e.LookupSource("2")
	require.NoError(t, err)
	assert.Equal(t, "bell-soft", id)

	id, err = e.LookupSource("ra")
	require.NoError(t, err)
	assert.Equal(t, "rain", id)

	_, err = e.LookupSource("thunder")
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = e.LookupSource("bell-")
	require.NoError(t, err)
}
