package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/openclaw-memory/internal/adapters/render/report"
	"github.com/bnema/openclaw-memory/internal/application"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/spf13/cobra"
)

const consolidatePrompt = "Consolidate recent daily notes into MEMORY.md? [y/N] "

type consolidateOutput struct {
	domain.ConsolidationRun
	Preview string `json:"preview,omitempty"`
}

func newConsolidateCmd(opts *rootOptions) *cobra.Command {
	var (
		auto      bool
		dryRun    bool
		yes       bool
		retention int
	)

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Fold recent daily notes into the hot context file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			mode := domain.ModeManual
			switch {
			case auto:
				mode = domain.ModeAuto
			case dryRun:
				mode = domain.ModeDryRun
			}

			days := a.settings.RetentionDays
			if cmd.Flags().Changed("retention") {
				if retention < 1 || retention > domain.MaxRetentionDays {
					return fmt.Errorf("%w: got %d", domain.ErrInvalidRetention, retention)
				}
				days = retention
			}

			if mode == domain.ModeManual && !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), consolidatePrompt)
				if err != nil {
					return err
				}
				if !ok {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "Consolidation cancelled.")
					return err
				}
			}

			run, err := a.consolidationService().Run(cmd.Context(), application.RunCommand{
				Mode:          mode,
				RetentionDays: days,
			})
			if err != nil {
				return err
			}

			if opts.asJSON {
				output := consolidateOutput{ConsolidationRun: run}
				if mode == domain.ModeDryRun {
					output.Preview = run.Preview
				}
				return writeJSON(cmd.OutOrStdout(), output)
			}

			rendered, err := report.RenderRun(run, report.RunOptions{
				HotContextPath: a.settings.HotContextFile,
				ShowPreview:    mode == domain.ModeDryRun,
			})
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Run unattended, as the scheduler does")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the result without writing or locking")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt in manual mode")
	cmd.Flags().IntVar(&retention, "retention", 0, "Retention window in days (default from config)")
	cmd.MarkFlagsMutuallyExclusive("auto", "dry-run")

	cmd.AddCommand(newConsolidateHistoryCmd(opts))

	return cmd
}

func newConsolidateHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent consolidation runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.consolidationService().History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			rendered, err := report.RenderHistory(runs)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of runs (0 for all)")

	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return false, err
	}

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
