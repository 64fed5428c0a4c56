package dbus

import (
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundloop/internal/model"
)

// emitter is the part of *dbus.Conn used to broadcast signals.
type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// SignalSink broadcasts trigger events as SourceStarted/SourceEnded signals.
// It implements trigger.Sink.
type SignalSink struct {
	conn   emitter
	logger *slog.Logger
}

// NewSignalSink creates a sink emitting on conn.
func NewSignalSink(conn *dbus.Conn, logger *slog.Logger) *SignalSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SignalSink{logger: logger}
	if conn != nil {
		s.conn = conn
	}
	return s
}

// signalName maps an event kind to its signal member.
func signalName(kind model.EventKind) (string, bool) {
	switch kind {
	case model.EventSourceStarted:
		return "SourceStarted", true
	case model.EventSourceEnded:
		return "SourceEnded", true
	default:
		return "", false
	}
}

// Emit implements trigger.Sink.
func (s *SignalSink) Emit(ev model.Event) {
	if s.conn == nil {
		s.logger.Debug("not connected to D-Bus, dropping signal", "source_id", ev.SourceID)
		return
	}

	member, ok := signalName(ev.Kind)
	if !ok {
		s.logger.Warn("no signal for event kind", "kind", string(ev.Kind))
		return
	}

	if err := s.conn.Emit(Path, Interface+"."+member, ev.SourceID); err != nil {
		s.logger.Warn("failed to emit signal", "signal", member, "source_id", ev.SourceID, "error", err)
		return
	}
	s.logger.Debug("emitted signal", "signal", member, "source_id", ev.SourceID)
}
