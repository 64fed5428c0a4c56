// Package playlist chains playback units into an endless cyclic sequence.
package playlist

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/soundloop/internal/trigger"
)

// Unit is the part of a playback unit the sequencer drives.
type Unit interface {
	ID() string
	OnEnd(cb func())
	Play(loop bool) <-chan struct{}
	Stop()
	IsPlaying() bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithStallTimeout advances past a unit that is not playing d after it was
// asked to, checking again every d while it is. A forced advance emits
// source ended like a natural one. Zero disables the check.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.stallTimeout = d
		}
	}
}

// Sequencer plays its units one after another, wrapping to the first after
// the last. It does not own the units.
type Sequencer struct {
	mu     sync.Mutex
	logger *slog.Logger
	sink   trigger.Sink

	units  []Unit
	cursor int

	// gen tags the armed end handler; handlers from older gens are ignored.
	gen     uint64
	armed   Unit
	running bool

	stallTimeout time.Duration
	stall        *time.Timer
}

// New creates a sequencer over units. A nil sink discards events.
func New(units []Unit, sink trigger.Sink, logger *slog.Logger, opts ...Option) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = trigger.Discard
	}

	s := &Sequencer{
		logger: logger,
		sink:   sink,
		units:  append([]Unit(nil), units...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start plays from the first unit. Calling it again restarts the cycle;
// the previously armed handler is disarmed and its unit stopped first.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if len(s.units) == 0 {
		s.mu.Unlock()
		s.logger.Debug("playlist is empty, nothing to start")
		return
	}
	prev := s.armed
	s.cursor = 0
	s.running = true
	u, gen := s.armLocked()
	s.mu.Unlock()

	if prev != nil && prev != u {
		prev.Stop()
	}
	s.logger.Info("playlist started", "units", len(s.units))
	s.run(u, gen)
}

// Stop disarms the end handler and stops the current unit.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	s.stopStallLocked()
	u := s.armed
	s.armed = nil
	s.mu.Unlock()

	if u != nil {
		u.OnEnd(nil)
		u.Stop()
	}
	s.logger.Info("playlist stopped")
}

// armLocked wraps the cursor, selects the unit and opens a new generation.
// The caller must hold s.mu.
func (s *Sequencer) armLocked() (Unit, uint64) {
	if s.cursor >= len(s.units) {
		s.cursor = 0
	}
	prev := s.armed
	u := s.units[s.cursor]
	s.gen++
	s.armed = u
	s.stopStallLocked()

	if prev != nil && prev != u {
		prev.OnEnd(nil)
	}
	return u, s.gen
}

// run registers the advancement handler, emits the start event and plays u.
// It does nothing if gen was superseded in the meantime.
func (s *Sequencer) run(u Unit, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	u.OnEnd(func() { s.handleEnd(u, gen) })
	trigger.SourceStarted(s.sink, u.ID())
	u.Play(false)

	if s.stallTimeout > 0 {
		s.stall = time.AfterFunc(s.stallTimeout, func() { s.checkStall(u, gen) })
	}
}

// handleEnd advances after a natural end of the unit armed at gen.
func (s *Sequencer) handleEnd(u Unit, gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cursor++
	next, nextGen := s.armLocked()
	s.mu.Unlock()

	trigger.SourceEnded(s.sink, u.ID())
	s.run(next, nextGen)
}

// checkStall skips a unit whose play attempt was abandoned. While the unit
// still reports playing the check is re-armed, so a retry loop that gives up
// later is caught on a following tick.
func (s *Sequencer) checkStall(u Unit, gen uint64) {
	playing := u.IsPlaying()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if playing {
		s.stall = time.AfterFunc(s.stallTimeout, func() { s.checkStall(u, gen) })
		s.mu.Unlock()
		return
	}
	s.cursor++
	next, nextGen := s.armLocked()
	s.mu.Unlock()

	s.logger.Warn("playlist unit stalled, advancing", "source_id", u.ID(), "timeout", s.stallTimeout)
	trigger.SourceEnded(s.sink, u.ID())
	s.run(next, nextGen)
}

func (s *Sequencer) stopStallLocked() {
	if s.stall != nil {
		s.stall.Stop()
		s.stall = nil
	}
}

// Cursor returns the index of the current unit.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Len returns the number of units.
func (s *Sequencer) Len() int {
	return len(s.units)
}

// Current returns the armed unit, or nil when stopped.
func (s *Sequencer) Current() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Running reports whether the cycle is active.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
