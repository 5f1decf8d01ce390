package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/registry"
	"github.com/modelroom/modelroom/internal/runner"
)

type createOptions struct {
	engineName string
	target     string
	dataPath   string
	args       []string
	wait       bool
}

func newCreateCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Train a new model",
		Long:  "Train a new model from a CSV dataset, or register one against external state for engines that train without local data.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.engineName, "engine", "e", "", "Engine to train with")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Column the model predicts")
	cmd.Flags().StringVar(&opts.dataPath, "data", "", "CSV file with training rows")
	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "Engine argument as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Block until training finishes")
	_ = cmd.MarkFlagRequired("engine")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runCreate(cmd *cobra.Command, flags *rootFlags, name string, opts *createOptions) error {
	args, err := parseArgPairs(opts.args)
	if err != nil {
		return newCommandError("create", "parsing --arg values", err, "Pass arguments as --arg key=value.")
	}

	var data *dataset.Frame
	if opts.dataPath != "" {
		frame, err := dataset.ReadCSVFile(opts.dataPath, dataset.CSVOptions{})
		if err != nil {
			return newCommandError("create", fmt.Sprintf("reading training data %q", opts.dataPath), err, "Check that the file exists and is valid CSV.")
		}
		data = frame
	}

	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("create", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	rec, err := app.run.CreateModel(cmd.Context(), runner.CreateModelRequest{
		Name:   name,
		Engine: opts.engineName,
		Target: opts.target,
		Data:   data,
		Args:   app.argsWithDefaults(opts.engineName, args),
	})
	if err != nil {
		return newCommandError("create", fmt.Sprintf("creating model %q", name), err, "Run 'modelroom engines' to see the available engines and their arguments.")
	}

	if !opts.wait {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Model '%s' scheduled (engine %s, status %s)\n", rec.Name, rec.Engine, rec.Status)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'modelroom show %s' to check on training.\n", rec.Name)
		return nil
	}

	app.run.Wait()

	final, err := app.run.Model(name)
	if err != nil {
		return newCommandError("create", fmt.Sprintf("loading model %q after training", name), err, "Run 'modelroom models' to list the registered models.")
	}
	if final.Status == registry.StatusError {
		return newCommandError("create", fmt.Sprintf("training model %q", name), errors.New(final.Error), "Fix the data or arguments and create the model again.")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Model '%s' trained (engine %s, %d rows)\n", final.Name, final.Engine, final.DataRows)
	return nil
}

// parseArgPairs turns repeated --arg key=value flags into an argument
// bag. Values keep the partially typed convention: booleans and
// numbers become typed values, everything else stays a string.
func parseArgPairs(pairs []string) (engine.Args, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(engine.Args, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		args[strings.TrimSpace(key)] = parseArgValue(value)
	}
	return args, nil
}

func parseArgValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "true" || trimmed == "false" {
		return trimmed == "true"
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}

func newCommandError(operation, context string, cause error, suggestion string) error {
	return &commandError{operation: operation, context: context, cause: cause, suggestion: suggestion}
}

type commandError struct {
	operation  string
	context    string
	cause      error
	suggestion string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("Failed to %s: %s\n\nError: %v\n\nSuggestion: %s", e.operation, e.context, e.cause, e.suggestion)
}
