package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// playlistCmd represents the playlist command group.
var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Control the playlist",
	Long: `Control the endless playlist.

The playlist plays the sources listed in [playlist].order (or every source
in file order) one after another, wrapping to the first after the last.`,
	RunE: playlistStatusRun,
}

var playlistStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or restart the playlist from the first source",
	RunE:  playlistStartRun,
}

var playlistStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the playlist and its current source",
	RunE:  playlistStopRun,
}

var playlistStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the playlist is running",
	RunE:  playlistStatusRun,
}

func init() {
	playlistCmd.AddCommand(playlistStartCmd)
	playlistCmd.AddCommand(playlistStopCmd)
	playlistCmd.AddCommand(playlistStatusCmd)

	rootCmd.AddCommand(playlistCmd)
}

func playlistStartRun(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	if err := client.StartPlaylist(); err != nil {
		return fmt.Errorf("failed to start playlist: %w", err)
	}
	fmt.Println("Playlist: running")
	return nil
}

func playlistStopRun(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	if err := client.StopPlaylist(); err != nil {
		return fmt.Errorf("failed to stop playlist: %w", err)
	}
	fmt.Println("Playlist: stopped")
	return nil
}

func playlistStatusRun(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	running, err := client.PlaylistRunning()
	if err != nil {
		return err
	}
	if running {
		fmt.Println("Playlist: running")
	} else {
		fmt.Println("Playlist: stopped")
	}
	return nil
}
