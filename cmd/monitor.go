package cmd

import (
	"errors"
	"fmt"

	"github.com/bnema/openclaw-memory/internal/adapters/render/report"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/spf13/cobra"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch session context usage and warn before it runs out",
	}

	monitorCmd.AddCommand(
		newMonitorPollCmd(opts),
		newMonitorStateCmd(opts),
		newMonitorAuditCmd(opts),
	)

	return monitorCmd
}

func newMonitorPollCmd(opts *rootOptions) *cobra.Command {
	var sessions []string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Read context usage once per session and notify on escalation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			monitor, err := a.monitorService()
			if err != nil {
				return err
			}

			results, pollErr := monitor.PollAll(cmd.Context(), sessions)

			var outErr error
			if opts.asJSON {
				outErr = writeJSON(cmd.OutOrStdout(), results)
			} else {
				rendered, err := report.RenderPolls(results)
				outErr = writeRendered(cmd.OutOrStdout(), rendered, err)
			}

			return errors.Join(pollErr, outErr)
		},
	}

	cmd.Flags().StringArrayVar(&sessions, "session", nil, "Session id to poll (repeatable)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func newMonitorStateCmd(opts *rootOptions) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the last persisted context band per session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := a.stateReader()
			if err != nil {
				return fmt.Errorf("wire context state repository: %w", err)
			}

			var states []domain.ContextState
			if sessionID == "" {
				states, err = repo.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list context states: %w", err)
				}
			} else {
				state, err := repo.Get(cmd.Context(), sessionID)
				switch {
				case errors.Is(err, domain.ErrStateNotFound):
					state = domain.InitialContextState(sessionID)
				case err != nil:
					return fmt.Errorf("get context state: %w", err)
				}
				states = []domain.ContextState{state}
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), states)
			}

			rendered, err := report.RenderStates(states, a.clock.Now())
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Only show this session")

	return cmd
}

func newMonitorAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent polls from the context audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.auditLog().Recent(cmd.Context(), sessionID, limit)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			rendered, err := report.RenderAudit(records)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Only show this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of records (0 for all)")

	return cmd
}
