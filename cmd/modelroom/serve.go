package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelroom/modelroom/internal/httpapi"
	"github.com/modelroom/modelroom/internal/monitoring"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(rootFlags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootFlags)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	metrics := monitoring.NewRegistry(map[string]string{"service": "modelroom"})

	app, err := buildApp(flags, metrics)
	if err != nil {
		return newCommandError("serve", "initializing the host", err, "Check the configuration file and data directory permissions.")
	}
	defer app.Close()

	api, err := httpapi.New(httpapi.Options{
		Runner:  app.run,
		Logger:  app.log,
		Metrics: metrics,
		Listen:  app.cfg.HTTP.Listen,
		Version: version,
	})
	if err != nil {
		return newCommandError("serve", "building the HTTP API", err, "Check the listen address in the configuration.")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Start()
	}()

	app.log.WithFields(map[string]any{
		"listen":  app.cfg.HTTP.Listen,
		"engines": len(app.run.Engines()),
	}).Info("serving HTTP API")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return newCommandError("serve", "running the HTTP server", err, "Check that the listen address is free.")
		}

	case <-ctx.Done():
		app.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			return newCommandError("serve", "shutting down the HTTP server", err, "In-flight requests may have been dropped.")
		}
	}

	return nil
}
