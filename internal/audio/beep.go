package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultSampleRate is the speaker rate used when none is configured.
const DefaultSampleRate = 44100

// fetchTimeout bounds remote source downloads.
const fetchTimeout = 30 * time.Second

// BeepBackend plays resources through the beep speaker.
// The speaker is initialised on the first successful load.
type BeepBackend struct {
	mu     sync.Mutex
	logger *slog.Logger
	gate   *Gate
	client *http.Client

	sampleRate  beep.SampleRate
	initialized bool
}

// NewBeepBackend creates a backend that mixes at sampleRate.
// A nil gate never blocks.
func NewBeepBackend(sampleRate int, gate *Gate, logger *slog.Logger) *BeepBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	return &BeepBackend{
		logger:     logger,
		gate:       gate,
		client:     &http.Client{Timeout: fetchTimeout},
		sampleRate: beep.SampleRate(sampleRate),
	}
}

// Open implements Backend. Nothing is read until the first Play.
func (b *BeepBackend) Open(locator string) Resource {
	ctx, cancel := context.WithCancel(context.Background())
	return &beepResource{
		backend: b,
		locator: locator,
		level:   1,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close stops the speaker. Resources opened earlier become silent.
func (b *BeepBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		speaker.Close()
		b.initialized = false
	}
	b.logger.Debug("audio backend closed")
}

// ensureInitialized initializes the speaker if not already done.
func (b *BeepBackend) ensureInitialized() (beep.SampleRate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return b.sampleRate, nil
	}

	// Use a reasonable buffer size for low latency
	bufferSize := b.sampleRate.N(time.Millisecond * 100)

	if err := speaker.Init(b.sampleRate, bufferSize); err != nil {
		return 0, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	b.initialized = true
	b.logger.Debug("speaker initialized", "sample_rate", b.sampleRate)
	return b.sampleRate, nil
}

// load reads and decodes a locator into a buffer.
// Locators are plain paths, file:// URLs or http(s):// URLs. Cancelling ctx
// aborts a remote fetch.
func (b *BeepBackend) load(ctx context.Context, locator string) (*beep.Buffer, error) {
	rc, ext, err := b.open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(rc)
	case ".ogg":
		streamer, format, err = vorbis.Decode(rc)
	case ".mp3":
		streamer, format, err = mp3.Decode(rc)
	case ".flac":
		streamer, format, err = flac.Decode(rc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}

	return buffer, nil
}

// open returns a reader for the locator and its lower-cased extension.
func (b *BeepBackend) open(ctx context.Context, locator string) (io.ReadCloser, string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a one-letter scheme is a Windows drive)
		return openFile(locator)
	}

	switch u.Scheme {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch sound: %w", err)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch sound: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("failed to fetch sound: %s", resp.Status)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch sound: %w", err)
		}
		ext := strings.ToLower(path.Ext(u.Path))
		return io.NopCloser(bytes.NewReader(data)), ext, nil
	default:
		return nil, "", fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func openFile(p string) (io.ReadCloser, string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open sound file: %w", err)
	}
	return f, strings.ToLower(filepath.Ext(p)), nil
}

// beepResource is one decoded source queued on the speaker.
//
// Lock order is r.mu, then the speaker lock. The end callback runs under the
// speaker lock, so it only schedules finished on a new goroutine. Loading runs
// without r.mu; ctx is cancelled by Close to abort it.
type beepResource struct {
	backend *BeepBackend
	locator string
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	buffer  *beep.Buffer
	stream  beep.StreamSeeker
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	level   float64
	loop    bool
	queued  bool
	closed  bool
	session uint64
	onEnded func()
}

func (r *beepResource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrResourceClosed
	}
	if !r.backend.gate.Allowed() {
		return ErrPlaybackBlocked
	}

	if r.buffer == nil {
		r.mu.Unlock()
		buffer, err := r.backend.load(r.ctx, r.locator)
		r.mu.Lock()

		if r.closed {
			return ErrResourceClosed
		}
		if err != nil {
			return err
		}
		// A concurrent Play may have installed a buffer first
		if r.buffer == nil {
			r.buffer = buffer
			r.stream = buffer.Streamer(0, buffer.Len())
		}
	}

	rate, err := r.backend.ensureInitialized()
	if err != nil {
		return err
	}

	if r.queued {
		speaker.Lock()
		drained := r.stream.Position() >= r.stream.Len()
		if !drained {
			r.ctrl.Paused = false
		}
		speaker.Unlock()
		if !drained {
			return nil
		}
	}

	r.queueLocked(rate)
	return nil
}

// queueLocked detaches any previous chain and queues a fresh one from
// the current position, or from the start once the stream is drained.
func (r *beepResource) queueLocked(rate beep.SampleRate) {
	speaker.Lock()
	if r.ctrl != nil {
		r.ctrl.Streamer = nil
	}
	if r.stream.Position() >= r.stream.Len() {
		_ = r.stream.Seek(0)
	}

	var streamer beep.Streamer = r.stream
	if r.buffer.Format().SampleRate != rate {
		streamer = beep.Resample(4, r.buffer.Format().SampleRate, rate, streamer)
	}
	r.ctrl = &beep.Ctrl{Streamer: streamer}
	r.volume = &effects.Volume{
		Streamer: r.ctrl,
		Base:     2,
		Volume:   levelToVolume(r.level),
		Silent:   r.level <= 0,
	}
	speaker.Unlock()

	r.session++
	session := r.session
	r.queued = true

	speaker.Play(beep.Seq(r.volume, beep.Callback(func() {
		go r.finished(session)
	})))
}

// finished handles the end of one queued chain.
func (r *beepResource) finished(session uint64) {
	r.mu.Lock()
	if r.closed || session != r.session {
		r.mu.Unlock()
		return
	}
	r.queued = false

	if r.loop {
		rate, err := r.backend.ensureInitialized()
		if err == nil {
			speaker.Lock()
			_ = r.stream.Seek(0)
			speaker.Unlock()
			r.queueLocked(rate)
			r.mu.Unlock()
			return
		}
		r.backend.logger.Warn("failed to restart looping sound", "locator", r.locator, "error", err)
	}

	fn := r.onEnded
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (r *beepResource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctrl == nil {
		return
	}
	speaker.Lock()
	r.ctrl.Paused = true
	speaker.Unlock()
}

func (r *beepResource) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return
	}
	speaker.Lock()
	_ = r.stream.Seek(0)
	speaker.Unlock()
}

func (r *beepResource) SetVolume(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.level = level
	if r.volume == nil {
		return
	}
	speaker.Lock()
	r.volume.Volume = levelToVolume(level)
	r.volume.Silent = level <= 0
	speaker.Unlock()
}

func (r *beepResource) SetLoop(loop bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loop = loop
}

func (r *beepResource) OnEnded(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnded = fn
}

func (r *beepResource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.onEnded = nil
	r.cancel()

	if r.ctrl != nil {
		speaker.Lock()
		r.ctrl.Streamer = nil
		speaker.Unlock()
	}
	r.ctrl = nil
	r.volume = nil
	r.stream = nil
	r.buffer = nil
	r.queued = false
	return nil
}

var (
	_ Backend  = (*BeepBackend)(nil)
	_ Resource = (*beepResource)(nil)
)
