package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "ocm",
		Short:         "OpenClaw memory (ocm): keep agent memory alive across sessions",
		Long:          "ocm consolidates daily notes into the hot context file, watches session context usage, and searches the long-term memory index.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.workspace, "workspace", "", "Workspace root (default ~/.openclaw/workspace)")
	flags.StringVar(&opts.configFile, "config", "", "Path to an ocm.toml config file")
	flags.BoolVar(&opts.asJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConsolidateCmd(opts),
		newMonitorCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newTimelineCmd(opts),
		newDetailsCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}
