package cmd

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/adapters/render/report"
	"github.com/bnema/openclaw-memory/internal/application"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/spf13/cobra"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		all    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "index [dates...]",
		Short: "Index daily notes into long-term memory",
		Long:  "index extracts events from the given daily notes (YYYY-MM-DD), or from every note when no date is given, and stores them in the memory index. Events already indexed are skipped.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dates := make([]domain.Date, 0, len(args))
			for _, arg := range args {
				date, err := domain.ParseDate(arg)
				if err != nil {
					return err
				}
				dates = append(dates, date)
			}

			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.index()
			if err != nil {
				return err
			}

			command := application.IndexNotesCommand{Dates: dates, All: all, DryRun: dryRun}
			var indexReport domain.IndexReport
			work := func(ctx context.Context) error {
				var err error
				indexReport, err = index.IndexNotes(ctx, command)
				return err
			}

			if a.indexIsRemote() && !opts.asJSON && !dryRun {
				err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Embedding memory events...", work)
			} else {
				err = work(cmd.Context())
			}
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), indexReport)
			}

			rendered, err := report.RenderIndexReport(indexReport)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Drop the index and rebuild it from every note")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count what would be indexed without writing")

	cmd.AddCommand(newIndexStatsCmd(opts))

	return cmd
}

func newIndexStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.index()
			if err != nil {
				return err
			}

			stats, err := index.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			rendered, err := report.RenderStats(stats, a.indexStore.Path())
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}
}
