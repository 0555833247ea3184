package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xrefdb/elixir/pkg/coordinator"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

func newUpdateCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "update <W>",
		Short: "Index every tag not yet marked as indexed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("update: invalid worker count %q: %w", args[0], err)
			}
			if workers < coordinator.MinWorkers {
				return fmt.Errorf("update: W must be >= %d, got %d", coordinator.MinWorkers, workers)
			}

			ctx := context.Background()
			e, err := openEnv(ctx, project)
			if err != nil {
				return err
			}
			defer e.close()

			tags, err := e.adapter.ListTags(ctx)
			if err != nil {
				return err
			}

			c := e.coordinator(workers)
			failed := 0
			for _, tag := range tags {
				summary, err := c.RunTag(ctx, tag)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "update: tag %s: %v\n", tag, err)
					if isFatalUpdateErr(err) {
						return fmt.Errorf("update: aborting after tag %s: %w", tag, err)
					}
					failed++
					continue
				}
				if summary.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "update: tag %s already indexed\n", tag)
					continue
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "update: tag %s indexed (%d new blobs, %d partial)\n",
					tag, summary.NewBlobs, len(summary.PartialBlobs))
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", tag)
			}

			if failed > 0 {
				return fmt.Errorf("update: %d tag(s) failed to commit", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name to select under LXR_ROOT (multi-project mode)")
	return cmd
}

// isFatalUpdateErr reports whether err should abort the whole update run
// rather than being counted against one tag and continuing to the next.
// ErrBlobMissing and ErrExtractorFailed are local to a blob and already
// absorbed into Summary.PartialBlobs before RunTag returns; any error
// that reaches this loop is one of the taxonomy's fatal or exhausted-retry
// kinds (ErrRepoUnavailable, ErrDatabaseCorrupt, ErrDatabaseBusy after its
// backoff budget) and the run cannot make progress on later tags either.
func isFatalUpdateErr(err error) bool {
	return !errors.Is(err, xrefcore.ErrBlobMissing) && !errors.Is(err, xrefcore.ErrExtractorFailed)
}
