package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/runner"
)

type predictOptions struct {
	dataPath   string
	outputPath string
	args       []string
}

func newPredictCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict <model>",
		Short: "Run predictions against a trained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataPath, "data", "", "CSV file with rows to predict for")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write predictions to this CSV file instead of stdout")
	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "Engine argument as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runPredict(cmd *cobra.Command, flags *rootFlags, name string, opts *predictOptions) error {
	args, err := parseArgPairs(opts.args)
	if err != nil {
		return newCommandError("predict", "parsing --arg values", err, "Pass arguments as --arg key=value.")
	}

	frame, err := dataset.ReadCSVFile(opts.dataPath, dataset.CSVOptions{})
	if err != nil {
		return newCommandError("predict", fmt.Sprintf("reading input data %q", opts.dataPath), err, "Check that the file exists and is valid CSV.")
	}

	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("predict", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	out, err := app.run.Predict(cmd.Context(), name, runner.PredictRequest{Data: frame, Args: args})
	if err != nil {
		return newCommandError("predict", fmt.Sprintf("predicting with model %q", name), err, "Run 'modelroom show "+name+"' to check the model is complete.")
	}

	if opts.outputPath != "" {
		if err := dataset.WriteCSVFile(opts.outputPath, out); err != nil {
			return newCommandError("predict", fmt.Sprintf("writing predictions to %q", opts.outputPath), err, "Check disk space and file permissions.")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d prediction rows to %s\n", out.NumRows(), opts.outputPath)
		return nil
	}

	if err := dataset.WriteCSV(cmd.OutOrStdout(), out); err != nil {
		return newCommandError("predict", "writing predictions", err, "Pass --output to write to a file instead.")
	}
	return nil
}
