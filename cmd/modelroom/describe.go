package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/dataset"
)

type describeOptions struct {
	jsonOutput bool
}

func newDescribeCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &describeOptions{}

	cmd := &cobra.Command{
		Use:   "describe <model> [attribute]",
		Short: "Inspect a model's internals",
		Long:  "Inspect a trained model. The optional attribute selects which facet the engine reports on; without it the engine returns its general info view.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attribute := ""
			if len(args) == 2 {
				attribute = args[1]
			}
			return runDescribe(cmd, rootFlags, args[0], attribute, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the description as JSON rows")

	return cmd
}

func runDescribe(cmd *cobra.Command, flags *rootFlags, name, attribute string, opts *describeOptions) error {
	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("describe", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	frame, err := app.run.Describe(cmd.Context(), name, attribute)
	if err != nil {
		return newCommandError("describe", fmt.Sprintf("describing model %q", name), err, "Run 'modelroom show "+name+"' to check the model is complete.")
	}

	if opts.jsonOutput {
		data, err := frame.MarshalJSONRows()
		if err != nil {
			return newCommandError("describe", "encoding the description", err, "Retry without --json to view it as a table.")
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	return renderFrameTable(cmd, frame)
}

func renderFrameTable(cmd *cobra.Command, frame *dataset.Frame) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(writer, strings.Join(frame.ColumnNames(), "\t"))

	for i := 0; i < frame.NumRows(); i++ {
		values := frame.Row(i)
		cells := make([]string, len(values))
		for j, value := range values {
			cells[j] = dataset.FormatValue(value)
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}

	return writer.Flush()
}
