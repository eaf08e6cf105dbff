// Command media-browse drives the media-library browser components from the
// terminal: it walks the folder tree, scrolls folders and searches, and keeps
// the sidebar layout.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	os.Exit(execute(context.Background(), NewRunner(RunnerOpts{}), os.Args))
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "media-browse",
		Usage:    "Browse a media library: folder tree, infinite scroll, search",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   r.Before,
		After:    r.After,
		Commands: r.register(),
	}
}

// execute runs the CLI and returns the process exit code. The runner is
// closed before returning, also on failure.
func execute(ctx context.Context, r *Runner, args []string) int {
	defer r.Close()

	if err := newApp(r).Run(ctx, args); err != nil {
		log.Error().Err(err).Msg("media-browse failed")
		return 1
	}
	return 0
}
