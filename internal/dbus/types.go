package dbus

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundloop/internal/core"
)

const (
	// Interface is the control interface name.
	Interface = "io.github.jmylchreest.SoundLoop"
	// Path is the control object path.
	Path dbus.ObjectPath = "/io/github/jmylchreest/SoundLoop"
	// BusName is the bus name to claim.
	BusName = "io.github.jmylchreest.SoundLoop"
)

// D-Bus error names returned by the control interface.
const (
	ErrorUnknownSource = Interface + ".Error.UnknownSource"
	ErrorFailed        = Interface + ".Error.Failed"
)

// Controller is the daemon side the server dispatches to.
// *core.Engine implements it.
type Controller interface {
	Play(id string, loop bool) error
	Stop(id string) error
	StartPlaylist() error
	StopPlaylist()
	PlaylistRunning() bool
	SetVolume(id string, volume float64) error
	Sources() []core.SourceStatus
	LookupSource(ref string) (string, error)
}

// ServerInfo contains information about the control server.
type ServerInfo struct {
	Name    string // "soundloopd"
	Vendor  string // "soundloop"
	Version string // build version
	Spec    string // control interface revision
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:    "soundloopd",
		Vendor:  "soundloop",
		Version: "0.0.1", // Will be replaced by build-time version
		Spec:    "1",
	}
}

// toDBusError maps a controller error to a D-Bus error reply.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	if errors.Is(err, core.ErrUnknownSource) {
		name = ErrorUnknownSource
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}

// fromDBusError maps a D-Bus error reply back to a Go error.
// Unknown source replies wrap core.ErrUnknownSource.
func fromDBusError(err error) error {
	if err == nil {
		return nil
	}

	var name string
	var body []interface{}
	var de dbus.Error
	var dep *dbus.Error
	switch {
	case errors.As(err, &de):
		name, body = de.Name, de.Body
	case errors.As(err, &dep):
		name, body = dep.Name, dep.Body
	default:
		return err
	}

	msg := name
	if len(body) > 0 {
		if s, ok := body[0].(string); ok {
			msg = s
		}
	}

	if name == ErrorUnknownSource {
		return &remoteError{msg: msg, err: core.ErrUnknownSource}
	}
	return &remoteError{msg: msg, err: err}
}

// remoteError carries the daemon's message while unwrapping to a sentinel.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }
