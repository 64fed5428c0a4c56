package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	running  bool
	failWith error
}

func (f *fakeController) record(format string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.failWith
}

func (f *fakeController) Play(id string, loop bool) error { return f.record("play %s %v", id, loop) }
func (f *fakeController) Stop(id string) error { return f.record("stop %s", id) }
func (f *fakeController) StartPlaylist() error {
	f.running = true
	return f.record("playlist start")
}
func (f *fakeController) StopPlaylist() {
	f.running = false
	_ = f.record("playlist stop")
}
func (f *fakeController) PlaylistRunning() bool { return f.running }
func (f *fakeController) SetVolume(id string, v float64) error {
	return f.record("volume %s %.2f", id, v)
}

func (f *fakeController) Sources() []core.SourceStatus {
	return []core.SourceStatus{
		{ID: "bell", Kind: "file", Locator: "/a/bell.wav", Resolved: true, Volume: 0.8, InPlaylist: true},
		{ID: "rain", Kind: "url", Locator: "https://example.com/rain.ogg", Error: "offline"},
	}
}

func (f *fakeController) LookupSource(ref string) (string, error) {
	switch ref {
	case "bell", "1", "b":
		return "bell", nil
	case "rain", "2":
		return "rain", nil
	}
	return "", fmt.Errorf("%w: %s", core.ErrUnknownSource, ref)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestServer_Methods(t *testing.T) {
	ctl := &fakeController{}
	s := NewServer(ctl, nil)

	assert.Nil(t, s.Play("b", true))
	assert.Nil(t, s.StopSource("2"))
	assert.Nil(t, s.SetVolume("bell", 0.5))
	assert.Nil(t, s.StartPlaylist())

	running, derr := s.PlaylistRunning()
	assert.Nil(t, derr)
	assert.True(t, running)

	assert.Nil(t, s.StopPlaylist())

	assert.Equal(t, []string{
		"play bell true",
		"stop rain",
		"volume bell 0.50",
		"playlist start",
		"playlist stop",
	}, ctl.Calls())
}

func TestServer_UnknownSource(t *testing.T) {
	ctl := &fakeController{}
	s := NewServer(ctl, nil)

	derr := s.Play("thunder", false)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorUnknownSource, derr.Name)
	assert.Empty(t, ctl.Calls(), "controller is not reached for unknown refs")
}

func TestServer_ControllerFailure(t *testing.T) {
	ctl := &fakeController{failWith: errors.New("speaker gone")}
	s := NewServer(ctl, nil)

	derr := s.Play("bell", false)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorFailed, derr.Name)
	assert.Equal(t, "speaker gone", derr.Error())
}

func TestServer_ListSources(t *testing.T) {
	s := NewServer(&fakeController{}, nil)

	raw, derr := s.ListSources()
	require.Nil(t, derr)

	var got []core.SourceStatus
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "bell", got[0].ID)
	assert.True(t, got[0].InPlaylist)
	assert.Equal(t, "offline", got[1].Error)
}

func TestServer_GetServerInformation(t *testing.T) {
	s := NewServer(&fakeController{}, nil)

	name, vendor, version, spec, derr := s.GetServerInformation()
	require.Nil(t, derr)
	assert.Equal(t, "soundloopd", name)
	assert.Equal(t, "soundloop", vendor)
	assert.NotEmpty(t, version)
	assert.Equal(t, "1", spec)

	s.SetServerInfo(ServerInfo{Name: "n", Vendor: "v", Version: "1.2.3", Spec: "1"})
	_, _, version, _, _ = s.GetServerInformation()
	assert.Equal(t, "1.2.3", version)
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer(&fakeController{}, nil)
	assert.NoError(t, s.Stop())
}

func TestDBusErrorMapping(t *testing.T) {
	derr := toDBusError(fmt.Errorf("%w: bell", core.ErrUnknownSource))
	require.NotNil(t, derr)

	err := fromDBusError(*derr)
	assert.ErrorIs(t, err, core.ErrUnknownSource)
	assert.Equal(t, "unknown source: bell", err.Error())

	err = fromDBusError(derr)
	assert.ErrorIs(t, err, core.ErrUnknownSource)

	failed := fromDBusError(toDBusError(errors.New("boom")))
	assert.NotErrorIs(t, failed, core.ErrUnknownSource)
	assert.Equal(t, "boom", failed.Error())

	plain := errors.New("no bus")
	assert.Equal(t, plain, fromDBusError(plain))
	assert.Nil(t, fromDBusError(nil))
	assert.Nil(t, toDBusError(nil))
}

type emitted struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []emitted
	err     error
}

func (f *fakeEmitter) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, emitted{path, name, values})
	return f.err
}

func TestSignalSink_Emit(t *testing.T) {
	em := &fakeEmitter{}
	sink := &SignalSink{conn: em, logger: slog.Default()}

	started, err := model.NewEvent(model.EventSourceStarted, "bell")
	require.NoError(t, err)
	ended, err := model.NewEvent(model.EventSourceEnded, "bell")
	require.NoError(t, err)

	sink.Emit(started)
	sink.Emit(ended)
	sink.Emit(model.Event{Kind: "bogus", SourceID: "bell"})

	require.Len(t, em.signals, 2)
	assert.Equal(t, Path, em.signals[0].path)
	assert.Equal(t, Interface+".SourceStarted", em.signals[0].name)
	assert.Equal(t, []interface{}{"bell"}, em.signals[0].values)
	assert.Equal(t, Interface+".SourceEnded", em.signals[1].name)
}

func TestSignalSink_Failures(t *testing.T) {
	ev, err := model.NewEvent(model.EventSourceStarted, "bell")
	require.NoError(t, err)

	disconnected := NewSignalSink(nil, nil)
	assert.NotPanics(t, func() { disconnected.Emit(ev) })

	failing := &SignalSink{conn: &fakeEmitter{err: errors.New("bus gone")}, logger: slog.Default()}
	assert.NotPanics(t, func() { failing.Emit(ev) })
}
