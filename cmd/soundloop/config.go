package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/config"
)

// configCmd represents the config command group.
var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Inspect the configuration file",
	Annotations: map[string]string{skipConfig: "true"},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	Long: `Parse and validate the configuration file without contacting the daemon.

A missing file is valid; the defaults apply.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigCheck,
}

var configInitOpts struct {
	force bool
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a commented example configuration file",
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.WriteExample(path, configInitOpts.force); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the configuration file path",
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath())
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configInitOpts.force, "force", false,
		"Overwrite an existing config file")

	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	path := configPath()
	c, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Printf("%s: ok\n", path)
	fmt.Printf("  Sources: %d\n", len(c.Sources))
	fmt.Printf("  Playlist: %d sources, autostart %s\n", len(c.PlaylistIDs()), onOff(c.Playlist.Autostart))
	fmt.Printf("  Volume: %d%%\n", c.Audio.Volume)
	return nil
}
