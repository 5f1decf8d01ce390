package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type connectOptions struct {
	args []string
}

func newConnectCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect <engine>",
		Short: "Check an engine's connection to its external dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "Connection argument as key=value (repeatable)")

	return cmd
}

func runConnect(cmd *cobra.Command, flags *rootFlags, engineName string, opts *connectOptions) error {
	args, err := parseArgPairs(opts.args)
	if err != nil {
		return newCommandError("connect", "parsing --arg values", err, "Pass arguments as --arg key=value.")
	}

	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("connect", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	if err := app.run.Connect(cmd.Context(), engineName, app.argsWithDefaults(engineName, args)); err != nil {
		return newCommandError("connect", fmt.Sprintf("checking engine %q", engineName), err, "Verify the connection arguments and that the external service is reachable.")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Engine '%s' connection check passed\n", engineName)
	return nil
}
