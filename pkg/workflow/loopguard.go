package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// MaxCascadeDepth caps how far workflow-raised events may chain. A root
// trigger runs at depth 0, so a self-looping workflow produces at most
// MaxCascadeDepth+1 executions before the guard cuts it off.
const MaxCascadeDepth = 5

// SeenStore is the optional fast path for spotting a re-delivered
// (event, workflow) pair before touching the database. MarkSeen returns true
// the first time a pair is marked. Errors and misses are harmless: the
// executions table's unique constraints stay authoritative.
type SeenStore interface {
	MarkSeen(ctx context.Context, eventID, workflowID string) (bool, error)
}

// LoopGuard decides whether an execution may start for a causation chain.
type LoopGuard struct {
	logger     *slog.Logger
	executions persistence.ExecutionRepository
	seen       SeenStore
}

// NewLoopGuard creates a guard. seen may be nil; the guard then relies on the
// execution repository alone.
func NewLoopGuard(logger *slog.Logger, executions persistence.ExecutionRepository, seen SeenStore) *LoopGuard {
	return &LoopGuard{
		logger:     logger.With("module", "loop_guard"),
		executions: executions,
		seen:       seen,
	}
}

// Allow reports whether workflowID may run for the given causation, with a
// reason when it may not. A miss here is caught again by the storage
// constraints when the execution row is written.
func (g *LoopGuard) Allow(ctx context.Context, cause models.Causation, organizationID, workflowID string) (bool, string) {
	if cause.Depth > MaxCascadeDepth {
		return false, fmt.Sprintf("cascade depth %d exceeds limit %d", cause.Depth, MaxCascadeDepth)
	}

	if cause.IsRoot() {
		return true, ""
	}

	if g.seen != nil {
		first, err := g.seen.MarkSeen(ctx, cause.EventID, workflowID)
		if err != nil {
			g.logger.WarnContext(ctx, "Seen-store check failed, falling back to repository",
				"event_id", cause.EventID, "workflow_id", workflowID, "error", err)
		} else if !first {
			return false, "event already handled by this workflow"
		}
	}

	handled, err := g.executions.HasTerminalForEvent(ctx, organizationID, cause.EventID, workflowID)
	if err != nil {
		g.logger.WarnContext(ctx, "Terminal-execution check failed, allowing",
			"event_id", cause.EventID, "workflow_id", workflowID, "error", err)

		return true, ""
	}

	if handled {
		return false, "event already handled by this workflow"
	}

	return true, ""
}

// RedisSeenStore implements SeenStore over a shared Redis, so multiple API
// and worker processes converge on one view of handled pairs. Keys expire:
// the store is a fast path, not a ledger.
type RedisSeenStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSeenStore creates a marker store with the given expiry. A zero or
// negative ttl defaults to one hour, comfortably past any cascade's lifetime.
func NewRedisSeenStore(client redis.UniversalClient, ttl time.Duration) *RedisSeenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisSeenStore{client: client, ttl: ttl}
}

func (s *RedisSeenStore) MarkSeen(ctx context.Context, eventID, workflowID string) (bool, error) {
	key := fmt.Sprintf("stagehand:seen:%s:%s", eventID, workflowID)

	first, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event seen: %w", err)
	}

	return first, nil
}
