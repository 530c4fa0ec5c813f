// Package jobs moves queued side-effect jobs across the message bus. Actions
// enqueue and report queued=true; the delivery worker consumes and hands the
// payload to a provider. WORKFLOW_RESUME jobs ride the same topic and re-enter
// the engine instead.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/events"
	"github.com/stagehandhq/stagehand/pkg/models"
)

const jobTypeMetadataKey = "job_type"

// Dispatcher publishes jobs to the jobs topic, keyed by organization so one
// org's jobs stay ordered on a partition.
type Dispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewDispatcher(logger *slog.Logger, publisher message.Publisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger.With("module", "job_dispatcher"),
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, job models.QueuedJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, job.OrganizationID)
	msg.Metadata.Set(jobTypeMetadataKey, string(job.Type))

	if err := d.publisher.Publish(events.JobsTopic, msg); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	d.logger.DebugContext(ctx, "Job enqueued",
		"job_id", job.ID, "job_type", job.Type, "organization_id", job.OrganizationID)

	return nil
}
