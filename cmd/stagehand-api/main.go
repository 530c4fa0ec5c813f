package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/stagehandhq/stagehand/pkg/cmd"
	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/jobs"
	"github.com/stagehandhq/stagehand/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "stagehand-api",
		Usage:                 "Create and manage workflows, executions and approval tasks",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
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

			logger.InfoContext(ctx, "Initializing Stagehand API")

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

			// The API only enqueues resume jobs; consuming stays in the worker.
			publisher, _, err := cmd.NewJobsChannel(
				logger,
				command.String("event-bus"),
				command.StringSlice("kafka-brokers"),
				"api",
			)
			if err != nil {
				return fmt.Errorf("failed to initialize jobs channel: %w", err)
			}

			api := NewAPI(
				logger,
				persistence,
				store,
				jobs.NewDispatcher(logger, publisher),
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
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
