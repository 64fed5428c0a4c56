// Package main is the entry point for the soundloopd audio cue daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/audio"
	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/daemon"
	"github.com/jmylchreest/soundloop/internal/dbus"
	"github.com/jmylchreest/soundloop/internal/source"
	"github.com/jmylchreest/soundloop/internal/store"
	"github.com/jmylchreest/soundloop/internal/trigger"
)

var (
	// Build-time variables
	version = "dev"
)

var opts struct {
	verbose    bool
	configPath string
	noPlaylist bool
}

var rootCmd = &cobra.Command{
	Use:   "soundloopd",
	Short: "Audio cue daemon",
	Long: `soundloopd plays configured audio sources on request over D-Bus and
can cycle through them as an endless playlist.

The config file is watched and reloaded on change. Quiet mode, toggled with
'soundloop quiet', holds back new playback until it is turned off.`,
	Version:      version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(opts.verbose)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, logger)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: ~/.config/soundloop/soundloop.toml)")
	rootCmd.Flags().BoolVar(&opts.noPlaylist, "no-playlist", false,
		"Do not autostart the playlist even if the config asks for it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger sets up structured logging on stderr.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// run starts every component and blocks until ctx is cancelled.
func run(ctx context.Context, logger *slog.Logger) error {
	logger.Info("starting soundloopd", "version", version)

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.ConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Audio output; the gate is closed while quiet mode is on
	gate := audio.NewGate()
	backend := audio.NewBeepBackend(cfg.Audio.SampleRate, gate, logger)
	defer backend.Close()

	resolver := source.NewLocalResolver(cfg.Audio.AssetDir, source.DefaultCacheTTL, logger)

	// Trigger sinks are chosen once at startup
	sinks := trigger.Multi{trigger.NewLogSink(logger)}

	if cfg.Events.Log {
		eventLog, err := store.OpenEventLog(config.EventLogPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() {
			if err := eventLog.Close(); err != nil {
				logger.Warn("error closing event log", "error", err)
			}
		}()
		retention := store.Retention{
			MaxAge:    cfg.Events.MaxAge.Duration(),
			MaxEvents: cfg.Events.MaxEvents,
		}
		if removed, err := eventLog.Prune(retention); err != nil {
			logger.Warn("failed to prune event log", "error", err)
		} else if removed > 0 {
			logger.Info("pruned event log", "removed", removed)
		}
		eventLog.SetRetention(retention)

		sinks = append(sinks, eventLog)
		logger.Info("recording trigger events", "path", eventLog.Path())
	}

	if cfg.Events.DBusSignals {
		// SessionBus is shared, so the control server below uses the same connection
		conn, err := godbus.SessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		sinks = append(sinks, dbus.NewSignalSink(conn, logger))
	}

	engine := core.NewEngine(cfg, backend, resolver, sinks, logger)
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.DestroyAll()

	// D-Bus control service
	server := dbus.NewServer(engine, logger)
	info := dbus.DefaultServerInfo()
	info.Version = version
	server.SetServerInfo(info)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("error stopping D-Bus server", "error", err)
		}
	}()

	// Quiet mode follows the shared state file
	quiet := daemon.NewQuietGate(gate, config.StatePath(), logger)
	quiet.SetChangeCallback(func(enabled bool) {
		if enabled {
			logger.Info("quiet mode on, new playback is held back")
		} else {
			logger.Info("quiet mode off, playback resumes")
		}
	})
	if err := quiet.Start(); err != nil {
		logger.Warn("quiet mode unavailable", "error", err)
	} else {
		defer func() { _ = quiet.Stop() }()
	}

	// Hot reload
	watcher := daemon.NewConfigWatcher(configPath, logger)
	watcher.SetReloadCallback(func(newCfg *config.Config) {
		prev := engine.Config()
		if newCfg.Audio.SampleRate != prev.Audio.SampleRate {
			logger.Warn("sample_rate changes take effect after a restart",
				"current", prev.Audio.SampleRate, "configured", newCfg.Audio.SampleRate)
		}
		if newCfg.Events != prev.Events {
			logger.Warn("[events] changes take effect after a restart")
		}
		resolver.SetAssetDir(newCfg.Audio.AssetDir)
		if err := engine.Reload(ctx, newCfg); err != nil {
			logger.Error("failed to apply reloaded config", "error", err)
			return
		}
		logger.Info("configuration reloaded", "sources", len(newCfg.Sources))
	})
	watcher.SetErrorCallback(func(err error) {
		logger.Error("config reload failed, keeping previous config", "error", err)
	})
	if err := watcher.Start(ctx, cfg); err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	} else {
		defer watcher.Stop()
	}

	if cfg.Playlist.Autostart && !opts.noPlaylist {
		if err := engine.StartPlaylist(); err != nil {
			logger.Warn("failed to autostart playlist", "error", err)
		}
	}

	logger.Info("soundloopd ready")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
