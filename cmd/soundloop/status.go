package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, playlist and quiet mode status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState(config.StatePath())
	if err != nil {
		logger.Warn("failed to load shared state", "error", err)
		state = store.DefaultSharedState()
	}

	client, err := connectDaemon()
	if err != nil {
		if !errors.Is(err, errDaemonNotRunning) {
			return err
		}
		fmt.Println("Daemon: not running")
		fmt.Printf("Quiet mode: %s\n", onOff(state.QuietEnabled))
		return nil
	}

	info, err := client.ServerInformation()
	if err != nil {
		return err
	}
	running, err := client.PlaylistRunning()
	if err != nil {
		return err
	}
	sources, err := client.ListSources()
	if err != nil {
		return err
	}

	playing := 0
	for _, s := range sources {
		if s.Playing {
			playing++
		}
	}

	playlist := "stopped"
	if running {
		playlist = "running"
	}

	fmt.Printf("Daemon: %s %s (interface %s)\n", info.Name, info.Version, info.Spec)
	fmt.Printf("Playlist: %s\n", playlist)
	fmt.Printf("Sources: %d configured, %d playing\n", len(sources), playing)
	fmt.Printf("Quiet mode: %s\n", onOff(state.QuietEnabled))
	return nil
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
