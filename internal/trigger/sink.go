// Package trigger delivers "source started" and "source ended" events to
// external consumers.
package trigger

import (
	"log/slog"

	"github.com/jmylchreest/soundloop/internal/model"
)

// Sink receives trigger events.
// Emit is fire-and-forget: implementations log their own failures.
type Sink interface {
	Emit(ev model.Event)
}

// Func adapts a function to a Sink.
type Func func(ev model.Event)

// Emit implements Sink.
func (f Func) Emit(ev model.Event) { f(ev) }

// Discard is a Sink that drops every event.
var Discard Sink = Func(func(model.Event) {})

// Multi fans out to several sinks in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ev model.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ev model.Event) {
	s.logger.Info("trigger", "kind", string(ev.Kind), "source_id", ev.SourceID, "event_id", ev.ID)
}

// SourceStarted emits a source_started event for id.
func SourceStarted(sink Sink, id string) {
	emit(sink, model.EventSourceStarted, id)
}

// SourceEnded emits a source_ended event for id.
func SourceEnded(sink Sink, id string) {
	emit(sink, model.EventSourceEnded, id)
}

func emit(sink Sink, kind model.EventKind, id string) {
	if sink == nil {
		return
	}
	ev, err := model.NewEvent(kind, id)
	if err != nil {
		slog.Warn("failed to create trigger event", "kind", string(kind), "source_id", id, "error", err)
		return
	}
	sink.Emit(ev)
}
