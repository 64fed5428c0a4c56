package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/store"
)

var quietOpts struct {
	silent bool // Suppress output, return exit code only
}

// quietCmd represents the quiet command group.
var quietCmd = &cobra.Command{
	Use:   "quiet",
	Short: "Manage quiet mode",
	Long: `Manage quiet mode for soundloopd.

While quiet mode is enabled soundloopd starts no new playback. Sounds that
are already playing continue, and requests made while quiet are retried
and start once quiet mode is turned off.

Use 'soundloop quiet status' to check the current state.
Use 'soundloop quiet on' to enable quiet mode.
Use 'soundloop quiet off' to disable quiet mode.
Use 'soundloop quiet toggle' to toggle quiet mode.

The exit code is 1 while quiet mode is on and 0 otherwise.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to showing status
		return quietStatusRun(cmd, args)
	},
}

// quietOnCmd enables quiet mode.
var quietOnCmd = &cobra.Command{
	Use:         "on",
	Short:       "Enable quiet mode",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        quietOnRun,
}

// quietOffCmd disables quiet mode.
var quietOffCmd = &cobra.Command{
	Use:         "off",
	Short:       "Disable quiet mode",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        quietOffRun,
}

// quietToggleCmd toggles quiet mode.
var quietToggleCmd = &cobra.Command{
	Use:         "toggle",
	Short:       "Toggle quiet mode",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        quietToggleRun,
}

// quietStatusCmd shows quiet mode status.
var quietStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show quiet mode status",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        quietStatusRun,
}

func init() {
	// Add subcommands
	quietCmd.AddCommand(quietOnCmd)
	quietCmd.AddCommand(quietOffCmd)
	quietCmd.AddCommand(quietToggleCmd)
	quietCmd.AddCommand(quietStatusCmd)

	// Add flags to all subcommands
	for _, cmd := range []*cobra.Command{quietCmd, quietOnCmd, quietOffCmd, quietToggleCmd, quietStatusCmd} {
		cmd.Flags().BoolVarP(&quietOpts.silent, "silent", "s", false,
			"Suppress output, return exit code only (0=off, 1=on)")
	}

	// Add to root
	rootCmd.AddCommand(quietCmd)
}

// loadState reads the shared state, reporting failures unless silenced.
func loadState() (*store.SharedState, error) {
	state, err := store.LoadSharedState(config.StatePath())
	if err != nil && !quietOpts.silent {
		fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
	}
	return state, err
}

// saveState writes the shared state, reporting failures unless silenced.
func saveState(state *store.SharedState) error {
	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	err := store.SaveSharedState(config.StatePath(), state)
	if err != nil && !quietOpts.silent {
		fmt.Fprintf(os.Stderr, "Failed to save state: %v\n", err)
	}
	return err
}

// printQuiet prints the state line unless silenced.
func printQuiet(enabled bool) {
	if quietOpts.silent {
		return
	}
	if enabled {
		fmt.Println("Quiet mode: enabled")
	} else {
		fmt.Println("Quiet mode: disabled")
	}
}

// exitQuiet sets the exit code: 0=off, 1=on.
func exitQuiet(enabled bool) {
	if enabled {
		os.Exit(1)
	}
}

func quietOnRun(cmd *cobra.Command, args []string) error {
	state, err := loadState()
	if err != nil {
		return err
	}

	state.SetQuiet(true, store.QuietTriggerUser, "quiet on", "cli")
	if err := saveState(state); err != nil {
		return err
	}

	printQuiet(true)
	exitQuiet(true)
	return nil
}

func quietOffRun(cmd *cobra.Command, args []string) error {
	state, err := loadState()
	if err != nil {
		return err
	}

	state.SetQuiet(false, store.QuietTriggerUser, "quiet off", "cli")
	if err := saveState(state); err != nil {
		return err
	}

	printQuiet(false)
	return nil
}

func quietToggleRun(cmd *cobra.Command, args []string) error {
	state, err := loadState()
	if err != nil {
		return err
	}

	enabled := state.ToggleQuiet(store.QuietTriggerUser, "quiet toggle", "cli")
	if err := saveState(state); err != nil {
		return err
	}

	printQuiet(enabled)
	exitQuiet(enabled)
	return nil
}

func quietStatusRun(cmd *cobra.Command, args []string) error {
	state, err := loadState()
	if err != nil {
		return err
	}

	printQuiet(state.QuietEnabled)
	if !quietOpts.silent {
		printTransition(state)
	}
	exitQuiet(state.QuietEnabled)
	return nil
}

// printTransition prints the last recorded quiet mode change, if any.
func printTransition(state *store.SharedState) {
	if state.LastTransition == nil {
		return
	}
	t := state.LastTransition
	fmt.Printf("  Last change: %s\n", formatTransitionTime(t.Timestamp))
	fmt.Printf("  Trigger: %s\n", t.Trigger)
	if t.Reason != "" {
		fmt.Printf("  Reason: %s\n", t.Reason)
	}
	if t.Source != "" {
		fmt.Printf("  Source: %s\n", t.Source)
	}
}

// formatTransitionTime formats a unix timestamp as a human-readable relative time.
func formatTransitionTime(timestamp int64) string {
	return humanize.Time(time.Unix(timestamp, 0))
}
