package playlist

import (
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/soundloop/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recorder collects emitted events and the order of play calls.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
	plays  []string
}

func (r *recorder) Emit(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) played(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, id)
}

func (r *recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) Plays() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.plays...)
}

func (r *recorder) lastEvent() (model.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return model.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

type fakeUnit struct {
	id  string
	rec *recorder

	mu      sync.Mutex
	onEnd   func()
	playing bool
	abandon bool // play attempts give up immediately
	stops   int

	// startedBeforePlay records whether a started event for this unit was
	// the latest event when Play was called.
	startedBeforePlay []bool
}

func newFakeUnit(id string, rec *recorder) *fakeUnit {
	return &fakeUnit{id: id, rec: rec}
}

func (u *fakeUnit) ID() string { return u.id }

func (u *fakeUnit) OnEnd(cb func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onEnd = cb
}

func (u *fakeUnit) Play(bool) <-chan struct{} {
	ev, ok := u.rec.lastEvent()
	u.rec.played(u.id)

	u.mu.Lock()
	u.startedBeforePlay = append(u.startedBeforePlay,
		ok && ev.Kind == model.EventSourceStarted && ev.SourceID == u.id)
	u.playing = !u.abandon
	u.mu.Unlock()

	done := make(chan struct{})
	close(done)
	return done
}

func (u *fakeUnit) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.playing = false
	u.stops++
}

func (u *fakeUnit) IsPlaying() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.playing
}

// End simulates a natural end.
func (u *fakeUnit) End() {
	u.mu.Lock()
	if !u.playing {
		u.mu.Unlock()
		return
	}
	u.playing = false
	cb := u.onEnd
	u.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// GiveUp drops the playing flag without an end, like a retry loop that
// stops trying.
func (u *fakeUnit) GiveUp() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.playing = false
}

func (u *fakeUnit) handler() func() {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.onEnd
}

func (u *fakeUnit) Stops() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stops
}

func newFixture(ids ...string) (*recorder, []*fakeUnit, []Unit) {
	rec := &recorder{}
	fakes := make([]*fakeUnit, len(ids))
	units := make([]Unit, len(ids))
	for i, id := range ids {
		fakes[i] = newFakeUnit(id, rec)
		units[i] = fakes[i]
	}
	return rec, fakes, units
}

func TestSequencer_StartEmpty(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec, nil)

	assert.NotPanics(t, s.Start)
	assert.False(t, s.Running())
	assert.Nil(t, s.Current())
	assert.Empty(t, rec.Events())
}

func TestSequencer_CyclicOrder(t *testing.T) {
	rec, fakes, units := newFixture("a", "b", "c")
	s := New(units, rec, nil)

	s.Start()
	require.True(t, s.Running())
	assert.Equal(t, 0, s.Cursor())

	for i := 0; i < 7; i++ {
		fakes[i%3].End()
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a", "b"}, rec.Plays())
	assert.Equal(t, 1, s.Cursor())
	assert.Equal(t, "b", s.Current().ID())
	assert.Equal(t, 3, s.Len())
}

func TestSequencer_EventOrder(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	s := New(units, rec, nil)

	s.Start()
	fakes[0].End()
	fakes[1].End()

	events := rec.Events()
	require.Len(t, events, 5)

	want := []struct {
		kind model.EventKind
		id   string
	}{
		{model.EventSourceStarted, "a"},
		{model.EventSourceEnded, "a"},
		{model.EventSourceStarted, "b"},
		{model.EventSourceEnded, "b"},
		{model.EventSourceStarted, "a"},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, events[i].Kind, "event %d", i)
		assert.Equal(t, w.id, events[i].SourceID, "event %d", i)
	}
}

func TestSequencer_StartedEmittedBeforePlay(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	s := New(units, rec, nil)

	s.Start()
	fakes[0].End()

	for _, u := range fakes {
		for _, ok := range u.startedBeforePlay {
			assert.True(t, ok, "unit %s played before its started event", u.id)
		}
	}
}

func TestSequencer_SingleUnitLoops(t *testing.T) {
	rec, fakes, units := newFixture("only")
	s := New(units, rec, nil)

	s.Start()
	fakes[0].End()
	fakes[0].End()
	fakes[0].End()

	assert.Equal(t, []string{"only", "only", "only", "only"}, rec.Plays())
	assert.Equal(t, 0, s.Cursor())
}

func TestSequencer_RestartDisarmsPrevious(t *testing.T) {
	rec, fakes, units := newFixture("a", "b", "c")
	s := New(units, rec, nil)

	s.Start()
	fakes[0].End()
	require.Equal(t, "b", s.Current().ID())

	stale := fakes[1].handler()
	require.NotNil(t, stale)

	s.Start()
	assert.Equal(t, 0, s.Cursor())
	assert.Nil(t, fakes[1].handler(), "handler on the previously armed unit is cleared")
	assert.Equal(t, 1, fakes[1].Stops())

	// A handler captured before the restart carries a stale generation
	stale()
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, []string{"a", "b", "a"}, rec.Plays())

	// Exactly one advancement per natural end
	fakes[0].End()
	assert.Equal(t, 1, s.Cursor())
	assert.Equal(t, []string{"a", "b", "a", "b"}, rec.Plays())
}

func TestSequencer_Stop(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	s := New(units, rec, nil)

	s.Start()
	s.Stop()

	assert.False(t, s.Running())
	assert.Nil(t, s.Current())
	assert.Equal(t, 1, fakes[0].Stops())
	assert.Nil(t, fakes[0].handler())

	fakes[0].End()
	assert.Equal(t, []string{"a"}, rec.Plays())

	// Stopping twice is harmless
	assert.NotPanics(t, s.Stop)
}

func TestSequencer_StallWithoutTimeout(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	fakes[0].abandon = true
	s := New(units, rec, nil)

	s.Start()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"a"}, rec.Plays())
	assert.Equal(t, 0, s.Cursor())
}

func TestSequencer_StallTimeoutAdvances(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	fakes[0].abandon = true
	s := New(units, rec, nil, WithStallTimeout(20*time.Millisecond))

	s.Start()
	require.Eventually(t, func() bool {
		return len(rec.Plays()) >= 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, rec.Plays()[:2])
	assert.Equal(t, 1, s.Cursor())

	// b plays normally, so the timer must not skip it
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, rec.Plays(), 2)
	s.Stop()
}

func TestSequencer_StallTimeoutRechecksRetryingUnit(t *testing.T) {
	rec, fakes, units := newFixture("a", "b")
	s := New(units, rec, nil, WithStallTimeout(20*time.Millisecond))

	s.Start()
	// Several checks pass while a still reports playing
	time.Sleep(70 * time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.Plays())

	fakes[0].GiveUp()
	require.Eventually(t, func() bool {
		return len(rec.Plays()) >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, []string{"a", "b"}, rec.Plays()[:2])
	var kinds []string
	for _, ev := range rec.Events()[:3] {
		kinds = append(kinds, ev.String())
	}
	assert.Equal(t, []string{"source_started a", "source_ended a", "source_started b"}, kinds)
}

func TestSequencer_CursorProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "units")
		ends := rapid.IntRange(0, 20).Draw(rt, "ends")

		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		rec, fakes, units := newFixture(ids...)
		s := New(units, rec, nil)

		s.Start()
		for i := 0; i < ends; i++ {
			fakes[i%n].End()
		}

		if got := s.Cursor(); got != ends%n {
			rt.Fatalf("cursor %d after %d ends over %d units", got, ends, n)
		}
		plays := rec.Plays()
		if len(plays) != ends+1 {
			rt.Fatalf("got %d plays, want %d", len(plays), ends+1)
		}
		for i, id := range plays {
			if id != ids[i%n] {
				rt.Fatalf("play %d was %s, want %s", i, id, ids[i%n])
			}
		}
	})
}
