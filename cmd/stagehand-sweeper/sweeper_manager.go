// Package main provides the Stagehand sweeper service. It owns the ticker
// behind scheduled, inactivity, task_due and task_overdue triggers, plus
// approval gate expiry.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stagehandhq/stagehand/pkg/sweep"
)

const restartLimit = 5

// SweeperManager wraps the sweep loop with process lifecycle handling.
// SIGHUP restarts the loop; SIGINT and SIGTERM stop it and exit.
type SweeperManager struct {
	id           string
	logger       *slog.Logger
	sweeper      *sweep.Sweeper
	restartCount int
}

func NewSweeperManager(id string, logger *slog.Logger, sweeper *sweep.Sweeper) *SweeperManager {
	return &SweeperManager{
		id:      id,
		logger:  logger.With("module", "stagehand-sweeper", "sweeper_id", id),
		sweeper: sweeper,
	}
}

func (sm *SweeperManager) Start(ctx context.Context) {
	smCtx, cancel := context.WithCancel(ctx)
	sm.logger.InfoContext(smCtx, "Starting sweeper manager")

	if err := sm.sweeper.Start(smCtx); err != nil {
		sm.logger.ErrorContext(smCtx, "Failed to start sweeper", "error", err)
		cancel()

		return
	}

	sm.signals(smCtx, cancel)

	<-smCtx.Done()
	sm.logger.InfoContext(ctx, "Sweeper manager stopped")
}

func (sm *SweeperManager) restart(ctx context.Context, cancel context.CancelFunc) {
	sm.restartCount++
	sm.stop(ctx, cancel)

	if sm.restartCount > restartLimit {
		sm.logger.ErrorContext(ctx, "Restart limit reached, exiting...")
		os.Exit(1)
	} else {
		sm.logger.InfoContext(ctx, "Restarting sweeper manager...")
		sm.Start(ctx)
	}
}

func (sm *SweeperManager) signals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		sm.logger.InfoContext(ctx, "Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			sm.logger.InfoContext(ctx, "Reloading...")
			sm.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			sm.logger.InfoContext(ctx, "Shutting down gracefully...")
			sm.stop(ctx, cancel)
			os.Exit(0)
		default:
			sm.logger.WarnContext(ctx, "Unhandled signal received", "signal", sig)
		}
	}()
}

func (sm *SweeperManager) stop(ctx context.Context, cancel context.CancelFunc) {
	sm.logger.InfoContext(ctx, "Stopping sweeper manager")

	if err := sm.sweeper.Stop(ctx); err != nil {
		sm.logger.ErrorContext(ctx, "Error stopping sweeper", "error", err)
	}

	cancel()
}
