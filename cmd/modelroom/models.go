package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modelroom/modelroom/internal/registry"
)

type modelsOptions struct {
	jsonOutput bool
}

func newModelsCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &modelsOptions{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runModels(cmd *cobra.Command, flags *rootFlags, opts *modelsOptions) error {
	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("models", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	records, err := app.run.Models()
	if err != nil {
		return newCommandError("models", "loading model records", err, "Check registry file permissions and try again.")
	}

	if len(records) == 0 {
		return renderEmptyModels(cmd)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})

	if opts.jsonOutput {
		return renderModelsJSON(cmd, app, records)
	}

	return renderModelsTable(cmd, records)
}

func renderEmptyModels(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.OutOrStdout(), "No models yet.")
	fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'modelroom create <name> --engine <engine> --target <column> --data <file.csv>' to train your first model.")
	return nil
}

func renderModelsTable(cmd *cobra.Command, records []registry.Record) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(writer, "NAME\tENGINE\tTARGET\tSTATUS\tROWS\tTRAINED")

	useUnicode := supportsUnicode(cmd.OutOrStdout())

	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.Name,
			rec.Engine,
			rec.Target,
			formatStatus(rec.Status, useUnicode),
			rec.DataRows,
			formatRelativeTime(rec.TrainedAt),
		)
	}

	return writer.Flush()
}

type modelJSONEntry struct {
	registry.Record
	Metrics *registry.CachedMetrics `json:"metrics,omitempty"`
}

type modelsJSONPayload struct {
	Version string           `json:"version"`
	Count   int              `json:"count"`
	Models  []modelJSONEntry `json:"models"`
}

func renderModelsJSON(cmd *cobra.Command, app *appContext, records []registry.Record) error {
	payload := modelsJSONPayload{
		Version: "1.0",
		Count:   len(records),
		Models:  make([]modelJSONEntry, len(records)),
	}

	for i, rec := range records {
		entry := modelJSONEntry{Record: rec}
		if metrics, ok := app.run.ModelMetrics(rec.ID); ok {
			entry.Metrics = &metrics
		}
		payload.Models[i] = entry
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func supportsUnicode(writer any) bool {
	if file, ok := writer.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}

func formatStatus(status registry.Status, useUnicode bool) string {
	if useUnicode {
		return fmt.Sprintf("%s %s", status.Icon(), status)
	}

	return fmt.Sprintf("%s %s", status.IconFallback(), status)
}

func formatRelativeTime(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}

	delta := time.Since(ts)
	if delta < time.Minute {
		return "just now"
	}
	if delta < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(delta.Minutes()))
	}
	if delta < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(delta.Hours()))
	}

	return fmt.Sprintf("%d days ago", int(delta.Hours()/24))
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", ts.Format(time.RFC3339), formatRelativeTime(ts))
}

func valueOrFallback(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
