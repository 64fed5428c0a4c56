package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundloop/internal/adapter/output"
	"github.com/jmylchreest/soundloop/internal/config"
	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
	"github.com/jmylchreest/soundloop/internal/source"
)

var sourcesOpts struct {
	format   string
	template string
	local    bool
	timeout  time.Duration
}

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"ls"},
	Short:   "List configured sources",
	Long: `List the configured sources with their resolution and playback state.

When soundloopd is running the live state is shown. Otherwise, or with
--local, the config file is read and every source is resolved locally.

Template variables for --template (plain format):
  {{.Index}}            1-based position
  {{.Source.ID}}        source id
  {{.Source.Kind}}      file or url
  {{.Source.Title}}     tag title of a local file, if any
  {{.Source.Locator}}   resolved path or URL
  {{.Source.Volume}}    volume level (0.0-1.0)
  {{.Source.Size}}      file size in bytes
  {{.State}}            playing, idle or unavailable

Template functions: truncate, percent, upper, bytes`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringVarP(&sourcesOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml)")
	sourcesCmd.Flags().StringVar(&sourcesOpts.template, "template", "",
		"Go template for each line (plain format only)")
	sourcesCmd.Flags().BoolVar(&sourcesOpts.local, "local", false,
		"Resolve from the config file even if the daemon is running")
	sourcesCmd.Flags().DurationVar(&sourcesOpts.timeout, "timeout", 10*time.Second,
		"Timeout for local resolution")
}

func runSources(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(sourcesOpts.format)
	if err != nil {
		return err
	}

	statuses, err := listSources(cmd.Context())
	if err != nil {
		return err
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = sourcesOpts.template
	return output.NewFormatter(format, opts).FormatSources(os.Stdout, statuses)
}

// listSources asks the daemon, falling back to local resolution.
func listSources(ctx context.Context) ([]core.SourceStatus, error) {
	if !sourcesOpts.local {
		client, err := connectDaemon()
		if err == nil {
			return client.ListSources()
		}
		if !errors.Is(err, errDaemonNotRunning) {
			logger.Debug("daemon unavailable, resolving locally", "error", err)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, sourcesOpts.timeout)
	defer cancel()
	return resolveLocal(ctx, getConfig())
}

// resolveLocal builds statuses from the config without a daemon.
func resolveLocal(ctx context.Context, c *config.Config) ([]core.SourceStatus, error) {
	var sources []model.Source
	for i, sc := range c.Sources {
		src, err := sc.Source()
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		sources = append(sources, src)
	}

	resolver := source.NewLocalResolver(c.Audio.AssetDir, 0, logger)
	results, err := source.ResolveAll(ctx, resolver, sources, logger)
	if err != nil {
		return nil, err
	}

	inPlaylist := make(map[string]bool)
	for _, id := range c.PlaylistIDs() {
		inPlaylist[id] = true
	}

	statuses := make([]core.SourceStatus, 0, len(results))
	for _, res := range results {
		src := res.Source
		st := core.SourceStatus{
			ID:      src.SourceID(),
			Kind:    string(src.Kind()),
			Locator: model.Describe(src),
		}
		if res.OK() {
			st.Resolved = true
			st.Locator = res.Locator
			st.Volume = c.MasterVolume() * src.Gain()
			st.InPlaylist = inPlaylist[st.ID]
			info := source.Probe(res.Locator)
			st.Size = info.Size
			st.Title = info.Title
		} else {
			st.Error = res.Err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
