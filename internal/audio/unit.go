package audio

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/soundloop/internal/model"
)

// DefaultRetryBackoff is the wait between attempts blocked by policy.
const DefaultRetryBackoff = 250 * time.Millisecond

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithRetryBackoff overrides the wait between blocked attempts.
func WithRetryBackoff(d time.Duration) UnitOption {
	return func(u *Unit) {
		if d > 0 {
			u.backoff = d
		}
	}
}

// Unit manages the playback lifecycle of one audio source.
//
// playing is an optimistic intent flag: it is set as soon as Play is
// called and cleared by Stop, Destroy, a natural end or an abandoned
// attempt. Pause leaves it untouched.
type Unit struct {
	mu     sync.Mutex
	logger *slog.Logger

	id      string
	locator string
	res     Resource
	backoff time.Duration

	volume    float64
	loop      bool
	playing   bool
	destroyed bool

	// gen identifies the latest Play call; older retry loops bail out.
	gen   uint64
	onEnd func()
}

// NewUnit binds a unit to locator. The resource is opened but not loaded;
// decoding happens on the first play attempt.
func NewUnit(backend Backend, id, locator string, volume float64, logger *slog.Logger, opts ...UnitOption) *Unit {
	if logger == nil {
		logger = slog.Default()
	}

	u := &Unit{
		logger:  logger.With("source_id", id),
		id:      id,
		locator: locator,
		res:     backend.Open(locator),
		backoff: DefaultRetryBackoff,
		volume:  model.ClampVolume(volume),
	}
	for _, opt := range opts {
		opt(u)
	}

	u.res.SetVolume(u.volume)
	u.res.OnEnded(u.handleEnded)
	return u
}

// ID returns the externally assigned source identifier.
func (u *Unit) ID() string {
	return u.id
}

// Locator returns the bound source locator.
func (u *Unit) Locator() string {
	return u.locator
}

// IsPlaying reports the intent-to-play flag.
func (u *Unit) IsPlaying() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.playing
}

// Volume returns the current level (0.0 to 1.0).
func (u *Unit) Volume() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.volume
}

// Loop reports whether the last Play asked for looping.
func (u *Unit) Loop() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.loop
}

// Destroyed reports whether Destroy has been called.
func (u *Unit) Destroyed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.destroyed
}

// Play marks the unit as playing and starts an attempt in the background.
// The returned channel is closed once playback started, was abandoned after
// a non-retryable failure, or the retry loop was cancelled by Stop/Destroy.
// Failures are logged and never returned.
func (u *Unit) Play(loop bool) <-chan struct{} {
	done := make(chan struct{})

	u.mu.Lock()
	if u.destroyed {
		u.mu.Unlock()
		close(done)
		return done
	}
	u.loop = loop
	u.res.SetLoop(loop)
	u.playing = true
	u.gen++
	gen := u.gen
	u.mu.Unlock()

	go u.attempt(gen, done)
	return done
}

// attempt runs the play/retry loop for one Play call.
func (u *Unit) attempt(gen uint64, done chan struct{}) {
	defer close(done)

	for tries := 1; ; tries++ {
		u.mu.Lock()
		if !u.liveLocked(gen) {
			u.mu.Unlock()
			u.logger.Debug("play attempt cancelled", "attempts", tries-1)
			return
		}
		res := u.res
		u.mu.Unlock()

		err := res.Play()
		if err == nil {
			u.mu.Lock()
			// Stopped while the attempt was in flight
			if !u.destroyed && !u.playing {
				res.Pause()
				res.Rewind()
			}
			u.mu.Unlock()
			u.logger.Debug("playback started", "attempts", tries)
			return
		}

		if errors.Is(err, ErrPlaybackBlocked) {
			u.logger.Debug("playback blocked, retrying", "attempt", tries, "backoff", u.backoff)
			time.Sleep(u.backoff)
			continue
		}

		u.mu.Lock()
		live := u.liveLocked(gen)
		if live {
			u.playing = false
		}
		u.mu.Unlock()

		if live {
			u.logger.Error("playback failed", "locator", u.locator, "error", err)
		}
		return
	}
}

// liveLocked reports whether the Play call identified by gen may keep trying.
func (u *Unit) liveLocked(gen uint64) bool {
	return !u.destroyed && u.playing && u.gen == gen
}

// Rewind seeks to the start without changing the playing flag.
func (u *Unit) Rewind() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.res.Rewind()
}

// Stop pauses, rewinds and clears the playing flag.
// It also cancels any pending retries.
func (u *Unit) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.playing = false
	u.res.Pause()
	u.res.Rewind()
}

// Pause halts playback in place. The playing flag is left as is.
func (u *Unit) Pause() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.res.Pause()
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (u *Unit) SetVolume(volume float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.volume = model.ClampVolume(volume)
	u.res.SetVolume(u.volume)
}

// OnEnd replaces the end-of-playback callback. Pass nil to clear it.
// The callback runs once per natural end and never for Stop or Pause.
func (u *Unit) OnEnd(cb func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.onEnd = cb
}

// handleEnded is the resource's natural end handler.
func (u *Unit) handleEnded() {
	u.mu.Lock()
	if u.destroyed || !u.playing {
		u.mu.Unlock()
		return
	}
	u.playing = false
	cb := u.onEnd
	u.mu.Unlock()

	u.logger.Debug("playback ended")
	if cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("end callback panicked", "panic", r)
		}
	}()
	cb()
}

// Destroy silences the unit and releases its resource.
// Every later call on the unit is a no-op.
func (u *Unit) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return
	}
	u.destroyed = true
	u.playing = false
	u.onEnd = nil
	u.volume = 0
	u.res.SetVolume(0)
	if err := u.res.Close(); err != nil {
		u.logger.Warn("failed to close audio resource", "error", err)
	}
	u.logger.Debug("unit destroyed")
}
