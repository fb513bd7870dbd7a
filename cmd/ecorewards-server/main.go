package main

import (
	"context"
	"errors"
	"fmt"
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
	log := app.Logger

	log.Info("starting ecorewards server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"dispatch", cfg.Rewards.Dispatch,
		"leaderboard_size", app.Board.Len())

	go app.Sweeper.Start(ctx)
	app.Analytics.Start(ctx)

	errs := make(chan error, 2)
	if ms := app.Metrics.Server; ms != nil {
		go func() {
			log.Info("metrics listening", "address", ms.Addr, "path", cfg.Metrics.Path)
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}
	go func() {
		log.Info("server listening", "address", cfg.Server.Address)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errs:
		log.Error("server failed", "error", err)
		exitCode = 1
	}
	stop()

	log.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		log.Error("error during server shutdown", "error", err)
		exitCode = 1
	}
	if ms := app.Metrics.Server; ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			log.Error("error during metrics shutdown", "error", err)
		}
	}
	if err := app.Analytics.ExportNow(shutdownCtx); err != nil {
		log.Warn("final analytics export failed", "error", err)
	}

	log.Info("server stopped")
	if exitCode != 0 {
		cleanup()
		os.Exit(exitCode)
	}
}
