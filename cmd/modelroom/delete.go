package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type deleteOptions struct {
	force bool
}

func newDeleteCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a model, its record and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Delete without confirmation")

	return cmd
}

func runDelete(cmd *cobra.Command, flags *rootFlags, name string, opts *deleteOptions) error {
	if strings.TrimSpace(name) == "" {
		return newCommandError("delete", "validating the model name", errors.New("model name cannot be empty"), "Provide the name of the model you wish to delete.")
	}

	app, err := buildApp(flags, nil)
	if err != nil {
		return newCommandError("delete", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	rec, err := app.run.Model(name)
	if err != nil {
		return newCommandError("delete", fmt.Sprintf("looking up model %q", name), err, "Run 'modelroom models' to view the registered models.")
	}

	if !opts.force {
		confirmed, err := confirmDeletion(cmd, rec.Name, rec.Engine)
		if err != nil {
			return err
		}
		if !confirmed {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := app.run.DeleteModel(cmd.Context(), name); err != nil {
		return newCommandError("delete", fmt.Sprintf("deleting model %q", name), err, "Verify the model still exists using 'modelroom models'.")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted model '%s'\n", name)
	return nil
}

func confirmDeletion(cmd *cobra.Command, name, engineName string) (bool, error) {
	if !isTerminal(cmd.InOrStdin()) {
		return false, newCommandError("delete", "prompting for confirmation", errors.New("not a terminal"), "Use --force when running in non-interactive environments.")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delete model '%s' (%s) and its artifacts? [y/N]: ", name, engineName)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false, scanner.Err()
	}

	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

func isTerminal(reader any) bool {
	if file, ok := reader.(*os.File); ok {
		return termIsTerminal(int(file.Fd()))
	}
	return false
}

var termIsTerminal = func(fd int) bool {
	return term.IsTerminal(fd)
}
