package audio

import (
	"errors"
	"sync/atomic"
)

// Playback errors.
var (
	// ErrPlaybackBlocked means the host refused to start audio right now.
	// Units retry it after a fixed backoff.
	ErrPlaybackBlocked = errors.New("playback blocked by policy")

	// ErrResourceClosed is returned by a Resource after Close.
	ErrResourceClosed = errors.New("audio resource is closed")

	// ErrUnsupportedFormat is returned when no decoder matches a locator.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Resource is the native playback capability behind a Unit.
// Implementations resolve their audio lazily on the first Play.
type Resource interface {
	// Play starts or resumes playback.
	Play() error
	// Pause halts playback in place.
	Pause()
	// Rewind seeks to the start without changing the pause state.
	Rewind()
	// SetVolume applies a 0.0-1.0 level.
	SetVolume(level float64)
	// SetLoop makes the resource restart instead of ending.
	SetLoop(loop bool)
	// OnEnded registers the natural end handler.
	// It must not be invoked while the resource holds internal locks.
	OnEnded(fn func())
	// Close releases buffers and connections.
	Close() error
}

// Backend opens resources for source locators.
type Backend interface {
	Open(locator string) Resource
}

// Gate is a host permission switch. While closed, backends refuse
// to start playback with ErrPlaybackBlocked.
type Gate struct {
	blocked atomic.Bool
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Block closes the gate.
func (g *Gate) Block() {
	g.blocked.Store(true)
}

// Allow opens the gate.
func (g *Gate) Allow() {
	g.blocked.Store(false)
}

// Allowed reports whether playback may start. A nil gate always allows.
func (g *Gate) Allowed() bool {
	if g == nil {
		return true
	}
	return !g.blocked.Load()
}
