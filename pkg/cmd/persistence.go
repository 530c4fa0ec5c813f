package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/persistence/memory"
	"github.com/stagehandhq/stagehand/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres URLs get the production backend with migrations applied on
// connect; memory keeps everything in process for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch persistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

func persistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
