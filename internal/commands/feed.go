package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/amipatch/internal/config"
	"github.com/dwsmith1983/amipatch/internal/feed"
)

// NewFeedCmd creates the feed command.
func NewFeedCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "feed <image-creation-date>",
		Short: "Check whether the bulletin feed has anything newer than an image",
		Example: `  amipatch feed 2020-01-01T00:00:00.000Z
  amipatch feed --url https://example.com/bulletins.rss 2020-01-01T00:00:00.000Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runFeed(ctx, cmd.OutOrStdout(), url, args[0], verbose)
		},
	}
	cmd.Flags().StringVar(&url, "url", config.DefaultFeedURL, "bulletin feed URL")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "fetch time limit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log feed details to stderr")
	return cmd
}

func runFeed(ctx context.Context, out io.Writer, url, creationDate string, verbose bool) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if feed.NewOracle(url, feed.WithLogger(logger)).IsUpdateDue(ctx, creationDate) {
		color.New(color.FgYellow).Fprintf(out, "Update due: a bulletin is newer than %s (or the feed could not be read)\n", creationDate)
		return nil
	}
	color.New(color.FgGreen).Fprintf(out, "Up to date: nothing published after %s\n", creationDate)
	return nil
}
