package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/stagehandhq/stagehand/pkg/cmd"
	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/jobs"
	"github.com/stagehandhq/stagehand/pkg/log"
	"github.com/stagehandhq/stagehand/pkg/otelhelper"
	"github.com/stagehandhq/stagehand/pkg/workflow"
)

func main() {
	cmd := &cli.Command{
		Name:                  "stagehand-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume queued jobs: workflow resumes and outbound deliveries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("stagehand-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Stagehand Worker")

			tracerProvider, err := otelhelper.NewTracerProvider(ctx, "stagehand-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

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
				"worker-events",
			)
			if err != nil {
				return fmt.Errorf("failed to initialize event bus: %w", err)
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			publisher, subscriber, err := cmd.NewJobsChannel(
				logger,
				command.String("event-bus"),
				command.StringSlice("kafka-brokers"),
				"worker",
			)
			if err != nil {
				return fmt.Errorf("failed to initialize jobs channel: %w", err)
			}

			seenStore, err := cmd.NewSeenStore(command.String("redis-url"), time.Hour)
			if err != nil {
				return fmt.Errorf("failed to initialize seen store: %w", err)
			}

			engine := workflow.NewEngine(workflow.EngineConfig{
				Logger:      logger,
				Persistence: persistence,
				Registry:    cmd.NewRegistry(logger),
				Entities:    newUnwiredEntities(),
				Jobs:        jobs.NewDispatcher(logger, publisher),
				Settings:    store,
				Publisher:   eventBus,
				SeenStore:   seenStore,
			})

			worker := NewWorkerManager(
				workerID,
				logger,
				engine,
				jobs.NewConsumer(logger, subscriber),
				jobs.NewLogDeliverer(logger),
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
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
