package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mlaakso/sharewatch/internal/config"
)

// newWatchCmd runs the daemon: a collection pass every poll interval, live
// chunk continuation for a running scan, and hot reload of the watch list.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run collection passes continuously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			// Pick up a scan left running by a previous process.
			if err := a.scheduler.Resume(ctx); err != nil {
				logger.Error("failed to resume interrupted scan",
					slog.String("error", err.Error()),
				)
			}

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return runPollLoop(ctx, a, logger)
			})

			g.Go(func() error {
				return config.WatchResources(ctx, a.source, logger)
			})

			logger.Info("daemon started",
				slog.Duration("poll_interval", loadedDurations.PollInterval),
			)

			err = g.Wait()

			logger.Info("daemon stopped")

			return err
		},
	}
}

// runPollLoop runs a collection pass immediately and then on every tick
// until the context is canceled. A failing pass is logged and the loop
// continues — the next tick gets a fresh chance.
func runPollLoop(ctx context.Context, a *app, logger *slog.Logger) error {
	ticker := time.NewTicker(loadedDurations.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := a.collector.CollectAll(ctx); err != nil {
			logger.Error("collection pass failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
