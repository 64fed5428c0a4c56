package dbus

import (
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundloop/internal/core"
)

// caller is the part of dbus.BusObject used by Client.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Client talks to a running soundloopd.
type Client struct {
	conn *dbus.Conn
	obj  caller
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(BusName, Path),
	}, nil
}

// DaemonRunning reports whether soundloopd owns its bus name.
func (c *Client) DaemonRunning() (bool, error) {
	var has bool
	err := c.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, BusName).Store(&has)
	if err != nil {
		return false, fmt.Errorf("failed to query bus name: %w", err)
	}
	return has, nil
}

func (c *Client) call(method string, args ...interface{}) *dbus.Call {
	return c.obj.Call(Interface+"."+method, 0, args...)
}

// Play starts a source by id, index or unique prefix.
func (c *Client) Play(ref string, loop bool) error {
	return fromDBusError(c.call("Play", ref, loop).Err)
}

// Stop stops a source.
func (c *Client) Stop(ref string) error {
	return fromDBusError(c.call("Stop", ref).Err)
}

// StartPlaylist starts the playlist.
func (c *Client) StartPlaylist() error {
	return fromDBusError(c.call("StartPlaylist").Err)
}

// StopPlaylist stops the playlist.
func (c *Client) StopPlaylist() error {
	return fromDBusError(c.call("StopPlaylist").Err)
}

// PlaylistRunning reports whether the playlist is cycling.
func (c *Client) PlaylistRunning() (bool, error) {
	var running bool
	if err := c.call("PlaylistRunning").Store(&running); err != nil {
		return false, fromDBusError(err)
	}
	return running, nil
}

// SetVolume sets a source volume (0.0 to 1.0).
func (c *Client) SetVolume(ref string, volume float64) error {
	return fromDBusError(c.call("SetVolume", ref, volume).Err)
}

// ListSources returns the daemon's source status snapshot.
func (c *Client) ListSources() ([]core.SourceStatus, error) {
	var raw string
	if err := c.call("ListSources").Store(&raw); err != nil {
		return nil, fromDBusError(err)
	}

	var sources []core.SourceStatus
	if err := json.Unmarshal([]byte(raw), &sources); err != nil {
		return nil, fmt.Errorf("failed to decode source list: %w", err)
	}
	return sources, nil
}

// ServerInformation returns the daemon's GetServerInformation reply.
func (c *Client) ServerInformation() (ServerInfo, error) {
	var info ServerInfo
	err := c.call("GetServerInformation").Store(&info.Name, &info.Vendor, &info.Version, &info.Spec)
	if err != nil {
		return ServerInfo{}, fromDBusError(err)
	}
	return info, nil
}
