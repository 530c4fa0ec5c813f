// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stagehandhq/stagehand/pkg/registry"
	"github.com/stagehandhq/stagehand/pkg/workflow"
)

// NewRegistry builds the action registry with every built-in action kind
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultActions()

	return reg
}

// NewSeenStore connects the loop guard's shared duplicate-event marker. An
// empty URL disables the fast path and the guard relies on repository
// checks alone.
func NewSeenStore(redisURL string, ttl time.Duration) (workflow.SeenStore, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return workflow.NewRedisSeenStore(redis.NewClient(opts), ttl), nil
}
