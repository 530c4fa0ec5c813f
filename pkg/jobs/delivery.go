package jobs

import (
	"context"
	"log/slog"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// Deliverer hands an outbound job to its provider. Provider integrations
// live outside this module; the worker binary injects one per deployment.
type Deliverer interface {
	Deliver(ctx context.Context, job models.QueuedJob) error
}

// LogDeliverer records jobs instead of delivering them. It is the default
// when no provider is wired, so a bare worker drains the queue visibly
// without side effects.
type LogDeliverer struct {
	logger *slog.Logger
}

func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger.With("module", "log_deliverer")}
}

func (d *LogDeliverer) Deliver(ctx context.Context, job models.QueuedJob) error {
	d.logger.InfoContext(ctx, "Delivering job (log only)",
		"job_id", job.ID, "job_type", job.Type, "organization_id", job.OrganizationID)

	return nil
}
