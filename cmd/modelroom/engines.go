package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/engine"
)

type enginesOptions struct {
	jsonOutput bool
}

func newEnginesCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &enginesOptions{}

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List the loaded engines and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngines(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runEngines(cmd *cobra.Command, flags *rootFlags, opts *enginesOptions) error {
	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("engines", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	metas := app.run.Engines()

	if opts.jsonOutput {
		return renderEnginesJSON(cmd, metas)
	}

	return renderEnginesTable(cmd, metas)
}

func renderEnginesTable(cmd *cobra.Command, metas []engine.Metadata) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(writer, "NAME\tVERSION\tCAPABILITIES\tDESCRIPTION")

	for _, meta := range metas {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			meta.Name,
			meta.Version,
			strings.Join(meta.Capabilities.List(), ","),
			valueOrFallback(meta.Description, "(none)"),
		)
	}

	return writer.Flush()
}

type engineJSONArg struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
	Doc      string `json:"doc,omitempty"`
}

type engineJSONEntry struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description,omitempty"`
	Capabilities []string        `json:"capabilities"`
	Args         []engineJSONArg `json:"args,omitempty"`
}

type enginesJSONPayload struct {
	Version string            `json:"version"`
	Count   int               `json:"count"`
	Engines []engineJSONEntry `json:"engines"`
}

func renderEnginesJSON(cmd *cobra.Command, metas []engine.Metadata) error {
	payload := enginesJSONPayload{
		Version: "1.0",
		Count:   len(metas),
		Engines: make([]engineJSONEntry, len(metas)),
	}

	for i, meta := range metas {
		entry := engineJSONEntry{
			Name:         meta.Name,
			Version:      meta.Version,
			Description:  meta.Description,
			Capabilities: meta.Capabilities.List(),
		}
		for _, spec := range meta.Args {
			entry.Args = append(entry.Args, engineJSONArg{
				Key:      spec.Key,
				Type:     string(spec.Type),
				Required: spec.Required,
				Default:  spec.Default,
				Doc:      spec.Doc,
			})
		}
		payload.Engines[i] = entry
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
