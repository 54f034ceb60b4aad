package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := app.Config

	slog.Info("starting travelkit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"metrics", cfg.Metrics.Enabled,
		"webhooks", len(cfg.Webhooks.Endpoints))
	slog.Debug("effective configuration", "config", cfg.String())

	if app.Analytics != nil {
		app.Analytics.Start(ctx)
	}

	srv := app.Server
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("failed to start server", "error", err)
			exitCode = 1
		}
	}

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		exitCode = 1
	}

	// Drain queued events before the final analytics export.
	app.Service.Close()
	if app.Analytics != nil {
		if err := app.Analytics.ExportNow(shutdownCtx); err != nil {
			slog.Error("final analytics export failed", "error", err)
		}
		if err := app.Analytics.Close(); err != nil {
			slog.Error("closing analytics exporters", "error", err)
		}
	}

	slog.Info("server stopped")
	if exitCode != 0 {
		cleanup()
		os.Exit(exitCode)
	}
}
