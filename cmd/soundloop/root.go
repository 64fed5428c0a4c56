package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// skipConfig marks commands that load the config themselves.
const skipConfig = "skip_config"

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger *slog.Logger
)

// errDaemonNotRunning is returned by commands that need soundloopd.
var errDaemonNotRunning = errors.New("soundloopd is not running")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "soundloop",
	Short: "Control the soundloop audio cue daemon",
	Long: `soundloop controls soundloopd, a small daemon that plays configured
audio sources on demand or as an endless playlist.

Sources are referenced by id, 1-based index or a unique id prefix.
Running soundloop without a subcommand shows the daemon status.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logging
		setupLogger()

		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}

		// Load configuration
		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/soundloop/soundloop.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// connectDaemon returns a client for a running soundloopd.
func connectDaemon() (*dbus.Client, error) {
	client, err := dbus.NewClient()
	if err != nil {
		return nil, err
	}
	running, err := client.DaemonRunning()
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, errDaemonNotRunning
	}
	return client, nil
}
