package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootFlags struct {
	configPath string
	verbose    bool
	logFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "modelroom",
		Short:         "Modelroom hosts machine learning engines behind a single model registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A bare invocation opens the dashboard when attached to a
			// terminal; scripts and pipes get the help text instead.
			if len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd())) {
				return runDashboard(cmd, flags)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to the host configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Append JSON log lines to this file")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newCreateCmd(flags))
	cmd.AddCommand(newPredictCmd(flags))
	cmd.AddCommand(newModelsCmd(flags))
	cmd.AddCommand(newShowCmd(flags))
	cmd.AddCommand(newDeleteCmd(flags))
	cmd.AddCommand(newDescribeCmd(flags))
	cmd.AddCommand(newConnectCmd(flags))
	cmd.AddCommand(newEnginesCmd(flags))
	cmd.AddCommand(newDashboardCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
