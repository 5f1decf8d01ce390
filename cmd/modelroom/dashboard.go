package main

import (
	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/tui"
)

func newDashboardCmd(rootFlags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Launch the interactive dashboard",
		Long:  "Launch the interactive dashboard to watch model records and training status. The dashboard is read-only; use the other commands to create or delete models.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, rootFlags)
		},
	}

	return cmd
}

func runDashboard(cmd *cobra.Command, flags *rootFlags) error {
	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("dashboard", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	if err := tui.Run(app.records, app.run.Engines()); err != nil {
		return newCommandError("dashboard", "running the dashboard", err, "Try 'modelroom models' for a plain listing.")
	}
	return nil
}
