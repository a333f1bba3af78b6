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

	"ratekit/analytics"
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

	slog.Info("starting ratekit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"app_id", cfg.Prompt.AppID,
		"min_install_days", cfg.Prompt.MinInstallDays,
		"min_launches", cfg.Prompt.MinLaunches)

	if app.Funnel != nil && cfg.Analytics.ExportURL != "" {
		exp := analytics.NewHTTPExporter(cfg.Analytics.ExportURL, cfg.Analytics.ExportAPIKey)
		go analytics.RunExport(ctx, app.Funnel, exp, cfg.Analytics.ExportInterval, func(err error) {
			slog.Warn("funnel export failed", "error", err)
		})
	}

	srv := app.Server

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("failed to start server", "error", err)
		cleanup()
		os.Exit(1)
	}

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}

	slog.Info("server stopped", "installs", app.Registry.Len())
}
