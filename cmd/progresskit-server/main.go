package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"progresskit/leaderboard"
)

func main() {
	ctx := context.Background()
	app, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	cfg := app.Config

	slog.Info("starting progresskit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter)

	srv := app.Server

	// Periodic leaderboard snapshots keep rank deltas fresh for the API.
	snapshotCtx, stopSnapshots := context.WithCancel(ctx)
	defer stopSnapshots()
	if cfg.Progression.SnapshotInterval > 0 {
		go runSnapshots(snapshotCtx, app, cfg.Progression.SnapshotInterval)
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				return
			}
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	stopSnapshots()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		os.Exit(1)
	}

	app.Service.Close()

	slog.Info("server stopped")
}

// runSnapshots periodically materializes weekly and monthly leaderboard
// snapshots so rank deltas have a previous ranking to compare against.
func runSnapshots(ctx context.Context, app *App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := map[leaderboard.Period]*leaderboard.Snapshot{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, period := range []leaderboard.Period{leaderboard.PeriodWeekly, leaderboard.PeriodMonthly} {
				snap, err := app.Service.SnapshotLeaderboard(ctx, period, previous[period])
				if err != nil {
					slog.Warn("leaderboard snapshot failed", "period", period, "error", err)
					continue
				}
				previous[period] = &snap
				slog.Debug("leaderboard snapshot taken", "period", period, "entries", len(snap.Entries))
			}
		}
	}
}
