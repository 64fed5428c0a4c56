package trigger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundloop/internal/model"
)

type recorder struct {
	events []model.Event
}

func (r *recorder) Emit(ev model.Event) { r.events = append(r.events, ev) }

func TestSourceStartedAndEnded(t *testing.T) {
	rec := &recorder{}

	SourceStarted(rec, "a")
	SourceEnded(rec, "a")

	require.Len(t, rec.events, 2)
	assert.Equal(t, model.EventSourceStarted, rec.events[0].Kind)
	assert.Equal(t, model.EventSourceEnded, rec.events[1].Kind)
	assert.Equal(t, "a", rec.events[1].SourceID)
	assert.NotEqual(t, rec.events[0].ID, rec.events[1].ID)
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() { SourceStarted(nil, "a") })
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, b}

	SourceStarted(m, "x")

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, a.events[0].ID, b.events[0].ID)
}

func TestFuncAndDiscard(t *testing.T) {
	var got []string
	f := Func(func(ev model.Event) { got = append(got, ev.SourceID) })

	SourceEnded(f, "y")
	SourceEnded(Discard, "z")

	assert.Equal(t, []string{"y"}, got)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	SourceStarted(NewLogSink(logger), "bell")

	assert.Contains(t, buf.String(), "kind=source_started")
	assert.Contains(t, buf.String(), "source_id=bell")
}
