// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/soundloop/internal/model"
)

// Default configuration values.
const (
	DefaultVolume       = 80
	DefaultSampleRate   = 44100
	DefaultRetryBackoff = 250 * time.Millisecond
	DefaultEventMaxAge  = 30 * 24 * time.Hour
	DefaultMaxEvents    = 10000
)

// Config represents the soundloop configuration.
// Loaded from ~/.config/soundloop/soundloop.toml
type Config struct {
	Audio    AudioConfig    `toml:"audio"`
	Playback PlaybackConfig `toml:"playback"`
	Playlist PlaylistConfig `toml:"playlist"`
	Events   EventsConfig   `toml:"events"`
	Sources  []SourceConfig `toml:"sources"`
}

// AudioConfig contains global audio settings.
type AudioConfig struct {
	Enabled    bool   `toml:"enabled"`
	Volume     int    `toml:"volume"`      // 0-100
	SampleRate int    `toml:"sample_rate"` // speaker sample rate
	AssetDir   string `toml:"asset_dir"`   // base for relative file sources
}

// PlaybackConfig contains per-unit playback behaviour.
type PlaybackConfig struct {
	RetryBackoff Duration `toml:"retry_backoff"` // wait between blocked attempts
}

// PlaylistConfig contains playlist sequencing settings.
type PlaylistConfig struct {
	Autostart    bool     `toml:"autostart"`
	Order        []string `toml:"order"`         // empty = all sources in file order
	StallTimeout Duration `toml:"stall_timeout"` // 0 = never skip a failed source
}

// EventsConfig selects the trigger sinks.
type EventsConfig struct {
	Log         bool     `toml:"log"`          // append to events.jsonl
	DBusSignals bool     `toml:"dbus_signals"` // emit SourceStarted/SourceEnded signals
	MaxAge      Duration `toml:"max_age"`      // drop logged events older than this (0 = keep)
	MaxEvents   int      `toml:"max_events"`   // keep only the newest N logged events (0 = unlimited)
}

// SourceConfig is one [[sources]] entry.
// Kind selects which of Path or URL is used.
type SourceConfig struct {
	ID     string `toml:"id"`
	Kind   string `toml:"kind"` // "file" or "url"
	Path   string `toml:"path,omitempty"`
	URL    string `toml:"url,omitempty"`
	Volume *int   `toml:"volume,omitempty"` // 0-100, defaults to 100
}

// Source converts the entry to its model variant.
func (s SourceConfig) Source() (model.Source, error) {
	volume := 1.0
	if s.Volume != nil {
		volume = float64(*s.Volume) / 100.0
	}
	return model.NewSource(model.SourceKind(s.Kind), s.ID, s.Path, s.URL, volume)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Enabled:    true,
			Volume:     DefaultVolume,
			SampleRate: DefaultSampleRate,
		},
		Playback: PlaybackConfig{
			RetryBackoff: Duration(DefaultRetryBackoff),
		},
		Playlist: PlaylistConfig{
			Autostart:    false,
			StallTimeout: 0,
		},
		Events: EventsConfig{
			Log:         true,
			DBusSignals: true,
			MaxAge:      Duration(DefaultEventMaxAge),
			MaxEvents:   DefaultMaxEvents,
		},
	}
}

// ConfigDir returns the soundloop config directory
// ($XDG_CONFIG_HOME/soundloop, usually ~/.config/soundloop).
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "soundloop")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "soundloop.toml")
}

// DataPath returns the path to the data directory
// ($XDG_DATA_HOME/soundloop, usually ~/.local/share/soundloop).
func DataPath() string {
	return filepath.Join(xdg.DataHome, "soundloop")
}

// EventLogPath returns the path to the trigger event log.
func EventLogPath() string {
	return filepath.Join(DataPath(), "events.jsonl")
}

// StatePath returns the path to the shared state file.
func StatePath() string {
	return filepath.Join(DataPath(), "state.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", c.Audio.SampleRate)
	}
	if c.Playback.RetryBackoff.Duration() <= 0 {
		return fmt.Errorf("retry_backoff must be positive, got %s", c.Playback.RetryBackoff.Duration())
	}
	if c.Playlist.StallTimeout.Duration() < 0 {
		return fmt.Errorf("stall_timeout cannot be negative")
	}
	if c.Events.MaxAge.Duration() < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	if c.Events.MaxEvents < 0 {
		return fmt.Errorf("max_events cannot be negative, got %d", c.Events.MaxEvents)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if _, err := s.Source(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Volume != nil && (*s.Volume < 0 || *s.Volume > 100) {
			return fmt.Errorf("source %q: volume must be between 0 and 100, got %d", s.ID, *s.Volume)
		}
	}

	for _, id := range c.Playlist.Order {
		if !seen[id] {
			return fmt.Errorf("playlist references unknown source %q", id)
		}
	}

	return nil
}

// PlaylistIDs returns the source ids that make up the playlist, in order.
func (c *Config) PlaylistIDs() []string {
	if len(c.Playlist.Order) > 0 {
		return append([]string(nil), c.Playlist.Order...)
	}
	ids := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, s.ID)
	}
	return ids
}

// MasterVolume returns the global volume as a 0.0-1.0 level.
func (c *Config) MasterVolume() float64 {
	return float64(c.Audio.Volume) / 100.0
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataPath(), 0755)
}
