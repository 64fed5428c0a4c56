package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var volumeCmd = &cobra.Command{
	Use:   "volume <source> <0-100>",
	Short: "Set the volume of a source",
	Long: `Set the playback volume of a source as a percentage.

The change applies to the running daemon only; edit the config file to
make it permanent.`,
	Args: cobra.ExactArgs(2),
	RunE: runVolume,
}

func init() {
	rootCmd.AddCommand(volumeCmd)
}

// parsePercent parses a 0-100 volume argument into a 0.0-1.0 level.
func parsePercent(s string) (float64, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q: %w", s, err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("volume must be between 0 and 100, got %d", v)
	}
	return float64(v) / 100.0, nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	level, err := parsePercent(args[1])
	if err != nil {
		return err
	}

	client, err := connectDaemon()
	if err != nil {
		return err
	}
	if err := client.SetVolume(args[0], level); err != nil {
		return fmt.Errorf("set volume %s: %w", args[0], err)
	}
	return nil
}
