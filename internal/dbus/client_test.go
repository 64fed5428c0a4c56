package dbus

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundloop/internal/core"
)

type fakeCaller struct {
	method string
	args   []interface{}
	reply  *dbus.Call
}

func (f *fakeCaller) Call(method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	if f.reply == nil {
		return &dbus.Call{}
	}
	return f.reply
}

func TestClient_Calls(t *testing.T) {
	fc := &fakeCaller{}
	c := &Client{obj: fc}

	require.NoError(t, c.Play("bell", true))
	assert.Equal(t, Interface+".Play", fc.method)
	assert.Equal(t, []interface{}{"bell", true}, fc.args)

	require.NoError(t, c.Stop("bell"))
	assert.Equal(t, Interface+".Stop", fc.method)

	require.NoError(t, c.SetVolume("bell", 0.3))
	assert.Equal(t, []interface{}{"bell", 0.3}, fc.args)

	require.NoError(t, c.StartPlaylist())
	assert.Equal(t, Interface+".StartPlaylist", fc.method)

	require.NoError(t, c.StopPlaylist())
	assert.Equal(t, Interface+".StopPlaylist", fc.method)
}

func TestClient_UnknownSource(t *testing.T) {
	derr := toDBusError(fmt.Errorf("%w: nope", core.ErrUnknownSource))
	fc := &fakeCaller{reply: &dbus.Call{Err: *derr}}
	c := &Client{obj: fc}

	err := c.Play("nope", false)
	assert.ErrorIs(t, err, core.ErrUnknownSource)
}

func TestClient_ListSources(t *testing.T) {
	fc := &fakeCaller{reply: &dbus.Call{Body: []interface{}{`[{"id":"bell","kind":"file","locator":"/a.wav","resolved":true,"playing":true,"volume":0.5,"in_playlist":false}]`}}}
	c := &Client{obj: fc}

	sources, err := c.ListSources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "bell", sources[0].ID)
	assert.True(t, sources[0].Playing)
	assert.InDelta(t, 0.5, sources[0].Volume, 1e-9)

	fc.reply = &dbus.Call{Body: []interface{}{"not json"}}
	_, err = c.ListSources()
	assert.Error(t, err)
}

func TestClient_ServerInformation(t *testing.T) {
	fc := &fakeCaller{reply: &dbus.Call{Body: []interface{}{"soundloopd", "soundloop", "1.0.0", "1"}}}
	c := &Client{obj: fc}

	info, err := c.ServerInformation()
	require.NoError(t, err)
	assert.Equal(t, ServerInfo{Name: "soundloopd", Vendor: "soundloop", Version: "1.0.0", Spec: "1"}, info)
}

func TestClient_PlaylistRunning(t *testing.T) {
	fc := &fakeCaller{reply: &dbus.Call{Body: []interface{}{true}}}
	c := &Client{obj: fc}

	running, err := c.PlaylistRunning()
	require.NoError(t, err)
	assert.True(t, running)
}
