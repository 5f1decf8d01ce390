package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/registry"
)

type showOptions struct {
	jsonOutput bool
}

func newShowCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show detailed information about a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output model details as JSON")

	return cmd
}

func runShow(cmd *cobra.Command, flags *rootFlags, name string, opts *showOptions) error {
	if strings.TrimSpace(name) == "" {
		return newCommandError("show", "validating the model name", errors.New("model name cannot be empty"), "Provide the name of the model you wish to inspect.")
	}

	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("show", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	rec, err := app.run.Model(name)
	if err != nil {
		return newCommandError("show", fmt.Sprintf("looking up model %q", name), err, "Run 'modelroom models' to view the registered models.")
	}

	metrics, hasMetrics := app.run.ModelMetrics(rec.ID)

	var meta *engine.Metadata
	if m, err := app.engines.Metadata(rec.Engine); err == nil {
		meta = &m
	}

	if opts.jsonOutput {
		return renderShowJSON(cmd, rec, metrics, hasMetrics)
	}

	return renderShowTable(cmd, rec, metrics, hasMetrics, meta)
}

func renderShowTable(cmd *cobra.Command, rec registry.Record, metrics registry.CachedMetrics, hasMetrics bool, meta *engine.Metadata) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Model:  %s\n", rec.Name)
	fmt.Fprintf(out, "ID:     %s\n", rec.ID)
	if meta != nil {
		fmt.Fprintf(out, "Engine: %s (v%s)\n", rec.Engine, meta.Version)
	} else {
		fmt.Fprintf(out, "Engine: %s\n", rec.Engine)
	}
	fmt.Fprintf(out, "Target: %s\n", rec.Target)
	fmt.Fprintf(out, "\nStatus:  %s\n", formatStatus(rec.Status, supportsUnicode(out)))
	fmt.Fprintf(out, "Rows:    %d\n", rec.DataRows)
	fmt.Fprintf(out, "Created: %s\n", formatTimestamp(rec.CreatedAt))
	fmt.Fprintf(out, "Updated: %s\n", formatTimestamp(rec.UpdatedAt))
	fmt.Fprintf(out, "Trained: %s\n", formatTimestamp(rec.TrainedAt))

	if rec.Error != "" {
		fmt.Fprintf(out, "\nError:\n  %s\n", rec.Error)
	}

	if len(rec.Args) > 0 {
		fmt.Fprintf(out, "\nArguments:\n")
		keys := make([]string, 0, len(rec.Args))
		for key := range rec.Args {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(out, "  %s: %v\n", key, rec.Args[key])
		}
	}

	if hasMetrics {
		fmt.Fprintf(out, "\nLast run:\n")
		fmt.Fprintf(out, "  Finished: %s\n", formatTimestamp(metrics.LastRun))
		fmt.Fprintf(out, "  Duration: %s\n", metrics.Duration)
		fmt.Fprintf(out, "  Rows:     %d\n", metrics.Rows)
		if len(metrics.Scores) > 0 {
			names := make([]string, 0, len(metrics.Scores))
			for name := range metrics.Scores {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %.4f\n", name, metrics.Scores[name])
			}
		}
		if metrics.Error != "" {
			fmt.Fprintf(out, "  Error:    %s\n", metrics.Error)
		}
	}

	return nil
}

type showJSONPayload struct {
	registry.Record
	Metrics *registry.CachedMetrics `json:"metrics,omitempty"`
}

func renderShowJSON(cmd *cobra.Command, rec registry.Record, metrics registry.CachedMetrics, hasMetrics bool) error {
	payload := showJSONPayload{Record: rec}
	if hasMetrics {
		payload.Metrics = &metrics
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
