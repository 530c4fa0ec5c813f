package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stagehandhq/stagehand/pkg/jobs"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/workflow"
)

// WorkerManager owns the job consumer loop. It routes WORKFLOW_RESUME jobs
// back into the engine and hands outbound jobs to the deliverer.
type WorkerManager struct {
	id        string
	logger    *slog.Logger
	engine    *workflow.Engine
	consumer  *jobs.Consumer
	deliverer jobs.Deliverer
}

func NewWorkerManager(
	id string,
	logger *slog.Logger,
	engine *workflow.Engine,
	consumer *jobs.Consumer,
	deliverer jobs.Deliverer,
) *WorkerManager {
	return &WorkerManager{
		id:        id,
		logger:    logger.With("module", "stagehand-worker", "worker_id", id),
		engine:    engine,
		consumer:  consumer,
		deliverer: deliverer,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	w.consumer.Handle(models.JobWorkflowResume, w.handleResume)
	w.consumer.Handle(models.JobSendEmail, w.handleDelivery)
	w.consumer.Handle(models.JobSendNotification, w.handleDelivery)
	w.consumer.Handle(models.JobZapierStageEvent, w.handleDelivery)

	err := w.consumer.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to jobs topic", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleResume re-enters the engine for a resolved approval task. A payload
// without the execution and task IDs is dropped rather than nacked; it will
// never become valid on redelivery.
func (w *WorkerManager) handleResume(ctx context.Context, job models.QueuedJob) error {
	executionID, _ := job.Payload["execution_id"].(string)
	taskID, _ := job.Payload["task_id"].(string)

	if executionID == "" || taskID == "" {
		w.logger.ErrorContext(ctx, "Resume job missing execution_id or task_id, dropping",
			"job_id", job.ID, "organization_id", job.OrganizationID)

		return nil
	}

	logger := w.logger.With(
		"organization_id", job.OrganizationID,
		"execution_id", executionID,
		"task_id", taskID,
	)
	logger.InfoContext(ctx, "Processing workflow resume job")

	err := w.engine.Resume(ctx, job.OrganizationID, executionID, taskID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to resume execution", "error", err)

		return fmt.Errorf("failed to resume execution %s: %w", executionID, err)
	}

	return nil
}

func (w *WorkerManager) handleDelivery(ctx context.Context, job models.QueuedJob) error {
	w.logger.InfoContext(ctx, "Processing outbound job",
		"job_type", job.Type, "job_id", job.ID, "organization_id", job.OrganizationID)

	return w.deliverer.Deliver(ctx, job)
}
