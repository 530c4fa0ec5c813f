package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/stagehandhq/stagehand/pkg/cmd"
	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/jobs"
	"github.com/stagehandhq/stagehand/pkg/log"
	"github.com/stagehandhq/stagehand/pkg/otelhelper"
	"github.com/stagehandhq/stagehand/pkg/sweep"
	"github.com/stagehandhq/stagehand/pkg/workflow"
)

func main() {
	cmd := &cli.Command{
		Name:                  "stagehand-sweeper",
		Usage:                 "Run the periodic sweeps behind time-based triggers and approval expiry",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sweeper-id",
				Aliases: []string{"id"},
				Usage:   "Custom sweeper ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SWEEPER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, memory)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "sweep-interval",
				Usage:   "How often to run a sweep pass (Go duration)",
				Value:   "1m",
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the loop guard seen store (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "config-encryption-key",
				Usage:   "Hex-encoded 32-byte key for encrypting integration settings at rest",
				Sources: cli.EnvVars("CONFIG_ENCRYPTION_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.NewTracerProvider(ctx, "stagehand-sweeper")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			sweeperID := command.String("sweeper-id")
			if sweeperID == "" {
				sweeperID = "sweeper-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("stagehand-sweeper").With("sweeper_id", sweeperID)

			logger.InfoContext(ctx, "Initializing Stagehand Sweeper")

			interval, err := time.ParseDuration(command.String("sweep-interval"))
			if err != nil {
				return fmt.Errorf("invalid sweep interval: %w", err)
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			encryptionKey, err := parseEncryptionKey(command.String("config-encryption-key"))
			if err != nil {
				return err
			}

			store, err := configstore.NewStore(persistence, encryptionKey)
			if err != nil {
				return fmt.Errorf("failed to initialize config store: %w", err)
			}

			eventBus, err := cmd.NewEventBus(
				logger,
				command.String("event-bus"),
				command.StringSlice("kafka-brokers"),
				"sweeper-events",
			)
			if err != nil {
				return fmt.Errorf("failed to initialize event bus: %w", err)
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			publisher, _, err := cmd.NewJobsChannel(
				logger,
				command.String("event-bus"),
				command.StringSlice("kafka-brokers"),
				"sweeper",
			)
			if err != nil {
				return fmt.Errorf("failed to initialize jobs channel: %w", err)
			}

			seenStore, err := cmd.NewSeenStore(command.String("redis-url"), time.Hour)
			if err != nil {
				return fmt.Errorf("failed to initialize seen store: %w", err)
			}

			entities := newUnwiredEntities()
			dispatcher := jobs.NewDispatcher(logger, publisher)

			engine := workflow.NewEngine(workflow.EngineConfig{
				Logger:      logger,
				Persistence: persistence,
				Registry:    cmd.NewRegistry(logger),
				Entities:    entities,
				Jobs:        dispatcher,
				Settings:    store,
				Publisher:   eventBus,
				SeenStore:   seenStore,
			})

			sweeper := sweep.NewSweeper(sweep.Config{
				Logger:      logger,
				Persistence: persistence,
				Engine:      engine,
				Entities:    entities,
				Jobs:        dispatcher,
				Interval:    interval,
			})

			NewSweeperManager(sweeperID, logger, sweeper).Start(ctx)

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// parseEncryptionKey decodes the hex-encoded key flag. An empty flag disables
// encryption and settings snapshots are stored as plaintext JSON.
func parseEncryptionKey(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("config encryption key is not valid hex: %w", err)
	}

	return key, nil
}
