package dbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// Server implements the io.github.jmylchreest.SoundLoop control interface.
type Server struct {
	conn   *dbus.Conn
	logger *slog.Logger
	ctl    Controller

	mu         sync.RWMutex
	serverInfo ServerInfo
	running    bool
}

// NewServer creates a control server dispatching to ctl.
func NewServer(ctl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		ctl:        ctl,
		serverInfo: DefaultServerInfo(),
	}
}

// SetServerInfo sets the information returned by GetServerInformation.
func (s *Server) SetServerInfo(info ServerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverInfo = info
}

// Start connects to the session bus and exports the control service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	// StopSource is published as Stop; the Go name is taken by the lifecycle method
	if err := conn.ExportWithMap(s, map[string]string{"StopSource": "Stop"}, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus control server started", "interface", Interface, "path", Path)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// SignalSink returns a trigger sink emitting on the server's connection.
// Call it after Start.
func (s *Server) SignalSink() *SignalSink {
	return NewSignalSink(s.conn, s.logger)
}

// resolve turns a user reference into a source id.
func (s *Server) resolve(ref string) (string, *dbus.Error) {
	id, err := s.ctl.LookupSource(ref)
	if err != nil {
		return "", toDBusError(err)
	}
	return id, nil
}

// Play starts a source.
// D-Bus method: Play(sb)
func (s *Server) Play(ref string, loop bool) *dbus.Error {
	s.logger.Debug("Play called", "ref", ref, "loop", loop)
	id, derr := s.resolve(ref)
	if derr != nil {
		return derr
	}
	return toDBusError(s.ctl.Play(id, loop))
}

// StopSource stops a source.
// D-Bus method: Stop(s)
func (s *Server) StopSource(ref string) *dbus.Error {
	s.logger.Debug("Stop called", "ref", ref)
	id, derr := s.resolve(ref)
	if derr != nil {
		return derr
	}
	return toDBusError(s.ctl.Stop(id))
}

// StartPlaylist starts the cyclic playlist.
// D-Bus method: StartPlaylist()
func (s *Server) StartPlaylist() *dbus.Error {
	s.logger.Debug("StartPlaylist called")
	return toDBusError(s.ctl.StartPlaylist())
}

// StopPlaylist stops the playlist.
// D-Bus method: StopPlaylist()
func (s *Server) StopPlaylist() *dbus.Error {
	s.logger.Debug("StopPlaylist called")
	s.ctl.StopPlaylist()
	return nil
}

// PlaylistRunning reports whether the playlist is cycling.
// D-Bus method: PlaylistRunning() -> b
func (s *Server) PlaylistRunning() (bool, *dbus.Error) {
	return s.ctl.PlaylistRunning(), nil
}

// SetVolume sets a source volume (0.0 to 1.0).
// D-Bus method: SetVolume(sd)
func (s *Server) SetVolume(ref string, volume float64) *dbus.Error {
	s.logger.Debug("SetVolume called", "ref", ref, "volume", volume)
	id, derr := s.resolve(ref)
	if derr != nil {
		return derr
	}
	return toDBusError(s.ctl.SetVolume(id, volume))
}

// ListSources returns the source status snapshot as JSON.
// D-Bus method: ListSources() -> s
func (s *Server) ListSources() (string, *dbus.Error) {
	data, err := json.Marshal(s.ctl.Sources())
	if err != nil {
		return "", toDBusError(err)
	}
	return string(data), nil
}

// GetServerInformation returns information about the server.
// D-Bus method: GetServerInformation() -> (ssss)
func (s *Server) GetServerInformation() (string, string, string, string, *dbus.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.serverInfo
	return info.Name, info.Vendor, info.Version, info.Spec, nil
}

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Play",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "loop", Type: "b", Direction: "in"},
			},
		},
		{
			Name: "Stop",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
			},
		},
		{Name: "StartPlaylist"},
		{Name: "StopPlaylist"},
		{
			Name: "PlaylistRunning",
			Args: []introspect.Arg{
				{Name: "running", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "SetVolume",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "volume", Type: "d", Direction: "in"},
			},
		},
		{
			Name: "ListSources",
			Args: []introspect.Arg{
				{Name: "sources_json", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "GetServerInformation",
			Args: []introspect.Arg{
				{Name: "name", Type: "s", Direction: "out"},
				{Name: "vendor", Type: "s", Direction: "out"},
				{Name: "version", Type: "s", Direction: "out"},
				{Name: "spec_version", Type: "s", Direction: "out"},
			},
		},
	}
}

// controlSignals returns the D-Bus signal introspection data.
func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "SourceStarted",
			Args: []introspect.Arg{{Name: "id", Type: "s"}},
		},
		{
			Name: "SourceEnded",
			Args: []introspect.Arg{{Name: "id", Type: "s"}},
		},
	}
}
