// Package core wires configured sources to playback units and the playlist.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/soundloop/internal/audio"
	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/model"
	"github.com/jmylchreest/soundloop/internal/playlist"
	"github.com/jmylchreest/soundloop/internal/source"
	"github.com/jmylchreest/soundloop/internal/trigger"
)

// ErrUnknownSource is returned for an id with no playable unit.
var ErrUnknownSource = errors.New("unknown source")

// SourceStatus is a snapshot of one configured source.
type SourceStatus struct {
	ID         string  `json:"id" yaml:"id"`
	Kind       string  `json:"kind" yaml:"kind"`
	Locator    string  `json:"locator" yaml:"locator"`
	Resolved   bool    `json:"resolved" yaml:"resolved"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
	Playing    bool    `json:"playing" yaml:"playing"`
	Volume     float64 `json:"volume" yaml:"volume"`
	InPlaylist bool    `json:"in_playlist" yaml:"in_playlist"`
	Size       uint64  `json:"size,omitempty" yaml:"size,omitempty"` // bytes, local files only
	Title      string  `json:"title,omitempty" yaml:"title,omitempty"`
}

// invalidator is implemented by resolvers with a cache.
type invalidator interface {
	Invalidate()
}

// Engine owns one Unit per resolved source and the playlist over them.
type Engine struct {
	mu       sync.Mutex
	logger   *slog.Logger
	backend  audio.Backend
	resolver source.Resolver
	sink     trigger.Sink

	cfg      *config.Config
	sources  []model.Source
	results  map[string]source.Resolved
	info     map[string]source.Info
	units    map[string]*audio.Unit
	order    []string
	playlist *playlist.Sequencer
}

// NewEngine creates an engine. Call Initialize before use.
func NewEngine(cfg *config.Config, backend audio.Backend, resolver source.Resolver, sink trigger.Sink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if sink == nil {
		sink = trigger.Discard
	}

	return &Engine{
		logger:   logger,
		backend:  backend,
		resolver: resolver,
		sink:     sink,
		cfg:      cfg,
		results:  make(map[string]source.Resolved),
		info:     make(map[string]source.Info),
		units:    make(map[string]*audio.Unit),
	}
}

// Initialize resolves every configured source and builds units and the
// playlist. Sources that fail to resolve are skipped.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Units from an earlier call would keep playing with no way to reach them
	e.destroyLocked()

	e.sources = e.sources[:0]
	for i, sc := range e.cfg.Sources {
		src, err := sc.Source()
		if err != nil {
			e.logger.Warn("skipping invalid source", "index", i, "error", err)
			continue
		}
		e.sources = append(e.sources, src)
	}

	results, err := source.ResolveAll(ctx, e.resolver, e.sources, e.logger)
	if err != nil {
		return err
	}

	master := e.cfg.MasterVolume()
	opts := []audio.UnitOption{audio.WithRetryBackoff(e.cfg.Playback.RetryBackoff.Duration())}

	for _, res := range results {
		id := res.Source.SourceID()
		e.results[id] = res
		if !res.OK() {
			continue
		}
		e.info[id] = source.Probe(res.Locator)
		e.units[id] = audio.NewUnit(e.backend, id, res.Locator, master*res.Source.Gain(), e.logger, opts...)
	}

	e.order = e.order[:0]
	var units []playlist.Unit
	for _, id := range e.cfg.PlaylistIDs() {
		u, ok := e.units[id]
		if !ok {
			e.logger.Warn("playlist source unavailable, skipping", "source_id", id)
			continue
		}
		e.order = append(e.order, id)
		units = append(units, u)
	}
	e.playlist = playlist.New(units, e.sink, e.logger,
		playlist.WithStallTimeout(e.cfg.Playlist.StallTimeout.Duration()))

	e.logger.Info("engine initialized",
		"sources", len(e.sources),
		"playable", len(e.units),
		"playlist", len(units),
	)
	return nil
}

// DestroyAll stops the playlist and destroys every unit.
func (e *Engine) DestroyAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyLocked()
}

func (e *Engine) destroyLocked() {
	if e.playlist != nil {
		e.playlist.Stop()
		e.playlist = nil
	}
	for id, u := range e.units {
		u.Destroy()
		delete(e.units, id)
	}
	for id := range e.results {
		delete(e.results, id)
	}
	for id := range e.info {
		delete(e.info, id)
	}
	e.order = nil
}

// Reload replaces the configuration and rebuilds everything. A playlist that
// was running is restarted.
func (e *Engine) Reload(ctx context.Context, cfg *config.Config) error {
	e.mu.Lock()
	wasRunning := e.playlist != nil && e.playlist.Running()
	e.destroyLocked()
	e.cfg = cfg
	if inv, ok := e.resolver.(invalidator); ok {
		inv.Invalidate()
	}
	e.mu.Unlock()

	if err := e.Initialize(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	if wasRunning {
		return e.StartPlaylist()
	}
	return nil
}

// Config returns the active configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// unitLocked returns the unit for id or ErrUnknownSource.
func (e *Engine) unitLocked(id string) (*audio.Unit, error) {
	u, ok := e.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return u, nil
}

// releaseLocked stops the playlist if it currently drives u.
func (e *Engine) releaseLocked(u *audio.Unit) {
	if e.playlist == nil || !e.playlist.Running() {
		return
	}
	if cur, ok := e.playlist.Current().(*audio.Unit); ok && cur == u {
		e.logger.Info("manual control of playlist source, stopping playlist", "source_id", u.ID())
		e.playlist.Stop()
	}
}

// Play starts a single source. Its natural end emits a source_ended event.
func (e *Engine) Play(id string, loop bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.unitLocked(id)
	if err != nil {
		return err
	}
	if !e.cfg.Audio.Enabled {
		e.logger.Debug("audio disabled, ignoring play", "source_id", id)
		return nil
	}

	e.releaseLocked(u)
	u.OnEnd(func() { trigger.SourceEnded(e.sink, id) })
	trigger.SourceStarted(e.sink, id)
	u.Play(loop)
	return nil
}

// Stop stops a single source.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.unitLocked(id)
	if err != nil {
		return err
	}
	if !e.cfg.Audio.Enabled {
		return nil
	}

	e.releaseLocked(u)
	u.Stop()
	return nil
}

// SetVolume sets the volume of one source (0.0 to 1.0).
func (e *Engine) SetVolume(id string, volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.unitLocked(id)
	if err != nil {
		return err
	}
	u.SetVolume(volume)
	return nil
}

// StartPlaylist starts or restarts the cyclic playlist.
func (e *Engine) StartPlaylist() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Audio.Enabled {
		e.logger.Debug("audio disabled, ignoring playlist start")
		return nil
	}
	if e.playlist == nil {
		return errors.New("engine not initialized")
	}
	e.playlist.Start()
	return nil
}

// StopPlaylist stops the playlist and its current source.
func (e *Engine) StopPlaylist() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playlist != nil {
		e.playlist.Stop()
	}
}

// PlaylistRunning reports whether the playlist is cycling.
func (e *Engine) PlaylistRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlist != nil && e.playlist.Running()
}

// Sources returns a status snapshot in configuration order.
func (e *Engine) Sources() []SourceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	inPlaylist := make(map[string]bool, len(e.order))
	for _, id := range e.order {
		inPlaylist[id] = true
	}

	statuses := make([]SourceStatus, 0, len(e.sources))
	for _, src := range e.sources {
		id := src.SourceID()
		st := SourceStatus{
			ID:         id,
			Kind:       string(src.Kind()),
			Locator:    model.Describe(src),
			InPlaylist: inPlaylist[id],
		}
		if res, ok := e.results[id]; ok {
			st.Resolved = res.OK()
			if res.OK() {
				st.Locator = res.Locator
				st.Size = e.info[id].Size
				st.Title = e.info[id].Title
			} else {
				st.Error = res.Err.Error()
			}
		}
		if u, ok := e.units[id]; ok {
			st.Playing = u.IsPlaying()
			st.Volume = u.Volume()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// LookupSource resolves a user reference (id, 1-based index or unique
// prefix) to a source id.
func (e *Engine) LookupSource(ref string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, err := Lookup(e.sources, ref)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, ref)
	}
	return src.SourceID(), nil
}
