package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagehandhq/stagehand/pkg/events"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/otelhelper"
)

// Handler processes one job. Returning an error nacks the message for
// redelivery, so handlers must be idempotent.
type Handler func(ctx context.Context, job models.QueuedJob) error

// Consumer reads the jobs topic and routes each job to the handler
// registered for its type. A job type with no handler is acked and dropped
// with a warning; the worker binary registers every type it owns.
type Consumer struct {
	subscriber message.Subscriber
	handlers   map[models.JobType]Handler
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewConsumer(logger *slog.Logger, subscriber message.Subscriber) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		handlers:   make(map[models.JobType]Handler),
		logger:     logger.With("module", "job_consumer"),
		tracer:     otel.Tracer("stagehand/jobs"),
	}
}

func (c *Consumer) Handle(jobType models.JobType, handler Handler) {
	c.handlers[jobType] = handler
}

func (c *Consumer) Subscribe(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, events.JobsTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.process(msg)
		}
	}()

	return nil
}

// process handles one message end to end and always settles it: ack on
// success and on permanently bad messages, nack only on handler errors.
func (c *Consumer) process(msg *message.Message) {
	ctx, span := otelhelper.StartSpan(msg.Context(), c.tracer, "jobs.consumer process",
		attribute.String("messaging.message.id", msg.UUID),
	)
	defer span.End()

	var job models.QueuedJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal job, dropping",
			"error", err, "message_id", msg.UUID)
		otelhelper.SetError(span, err)
		msg.Ack()

		return
	}

	span.SetAttributes(
		attribute.String(otelhelper.JobTypeKey, string(job.Type)),
		attribute.String(otelhelper.OrganizationIDKey, job.OrganizationID),
	)

	handler, exists := c.handlers[job.Type]
	if !exists {
		c.logger.WarnContext(ctx, "No handler for job type, dropping",
			"job_type", job.Type, "job_id", job.ID)
		msg.Ack()

		return
	}

	if err := handler(ctx, job); err != nil {
		c.logger.ErrorContext(ctx, "Job handler failed",
			"error", err, "job_type", job.Type, "job_id", job.ID)
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	msg.Ack()
}
