package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/adapter/output"
	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/store"
)

var eventsOpts struct {
	limit     int
	format    string
	clear     bool
	prune     bool
	olderThan time.Duration
	keep      int
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent trigger events",
	Long: `Show the most recent source_started and source_ended events recorded
by soundloopd in ~/.local/share/soundloop/events.jsonl.

Events are only recorded while [events].log is enabled. soundloopd trims the
log to [events].max_age and [events].max_events; --prune applies those limits
now, and --older-than / --keep override them.

Examples:
  # Drop events older than two days
  soundloop events --prune --older-than 48h

  # Keep only the 100 most recent events
  soundloop events --prune --keep 100`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVarP(&eventsOpts.limit, "limit", "n", 20,
		"Maximum number of events to show (0 = all)")
	eventsCmd.Flags().StringVarP(&eventsOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml)")
	eventsCmd.Flags().BoolVar(&eventsOpts.clear, "clear", false,
		"Remove all recorded events")
	eventsCmd.Flags().BoolVar(&eventsOpts.prune, "prune", false,
		"Remove events outside the configured retention")
	eventsCmd.Flags().DurationVar(&eventsOpts.olderThan, "older-than", 0,
		"With --prune, remove events older than this (e.g. 48h)")
	eventsCmd.Flags().IntVar(&eventsOpts.keep, "keep", 0,
		"With --prune, keep only the N most recent events")
}

// pruneRetention merges the prune flags over the configured limits.
func pruneRetention(cfg config.EventsConfig, olderThan time.Duration, keep int) (store.Retention, error) {
	r := store.Retention{
		MaxAge:    cfg.MaxAge.Duration(),
		MaxEvents: cfg.MaxEvents,
	}
	if olderThan < 0 || keep < 0 {
		return r, fmt.Errorf("--older-than and --keep cannot be negative")
	}
	if olderThan > 0 {
		r.MaxAge = olderThan
	}
	if keep > 0 {
		r.MaxEvents = keep
	}
	if !r.Enabled() {
		return r, fmt.Errorf("no retention configured: set [events].max_age or max_events, or pass --older-than or --keep")
	}
	return r, nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	path := config.EventLogPath()

	if eventsOpts.clear {
		eventLog, err := store.OpenEventLog(path, logger)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() { _ = eventLog.Close() }()

		if err := eventLog.Clear(); err != nil {
			return fmt.Errorf("failed to clear event log: %w", err)
		}
		fmt.Println("Event log cleared")
		return nil
	}

	if eventsOpts.prune {
		retention, err := pruneRetention(getConfig().Events, eventsOpts.olderThan, eventsOpts.keep)
		if err != nil {
			return err
		}

		eventLog, err := store.OpenEventLog(path, logger)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() { _ = eventLog.Close() }()

		removed, err := eventLog.Prune(retention)
		if err != nil {
			return fmt.Errorf("failed to prune event log: %w", err)
		}
		fmt.Printf("Pruned %d events\n", removed)
		return nil
	}

	format, err := output.ParseFormat(eventsOpts.format)
	if err != nil {
		return err
	}

	events, err := store.ReadEventLog(path, eventsOpts.limit)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}

	return output.NewFormatter(format, output.DefaultFormatterOptions()).FormatEvents(os.Stdout, events)
}
