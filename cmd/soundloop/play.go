package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playOpts struct {
	loop bool
}

var playCmd = &cobra.Command{
	Use:   "play <source>",
	Short: "Play a source",
	Long: `Play a single source once, or continuously with --loop.

If the source is the one the playlist is currently playing, the playlist
stops and the source is handed over to manual control.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var stopCmd = &cobra.Command{
	Use:   "stop <source>",
	Short: "Stop a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(stopCmd)

	playCmd.Flags().BoolVarP(&playOpts.loop, "loop", "l", false,
		"Repeat the source until stopped")
}

func runPlay(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	if err := client.Play(args[0], playOpts.loop); err != nil {
		return fmt.Errorf("play %s: %w", args[0], err)
	}
	logger.Debug("play requested", "source", args[0], "loop", playOpts.loop)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	if err := client.Stop(args[0]); err != nil {
		return fmt.Errorf("stop %s: %w", args[0], err)
	}
	return nil
}
