package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/openclaw-memory/internal/adapters/render/report"
	"github.com/bnema/openclaw-memory/internal/application"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		textOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search long-term memory and list compact hits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := wireApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.index()
			if err != nil {
				return err
			}

			search := index.SearchIndex
			if textOnly {
				search = index.SearchText
			}
			hits, err := search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), hits)
			}

			rendered, err := report.RenderHits(query, hits)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", application.DefaultSearchLimit, "Maximum number of hits")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Match text only, without embeddings")

	return cmd
}

func newTimelineCmd(opts *rootOptions) *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "timeline ID",
		Short: "Show memory events recorded around an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
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

			entries, err := index.Timeline(cmd.Context(), id, window)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			rendered, err := report.RenderTimeline(id, entries)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", application.DefaultTimelineSpan, "Entries to show on each side")

	return cmd
}

func newDetailsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details ID...",
		Short: "Show full memory entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseEntryID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
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

			details, err := index.Details(cmd.Context(), ids)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), details)
			}

			rendered, err := report.RenderDetails(details)
			return writeRendered(cmd.OutOrStdout(), rendered, err)
		},
	}
}

func parseEntryID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid memory entry id %q", value)
	}
	return id, nil
}
