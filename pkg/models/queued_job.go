package models

import (
	"errors"
	"time"
)

// JobType identifies a queued side-effect job.
type JobType string

// Job types consumed by the delivery worker.
const (
	JobSendEmail        JobType = "SEND_EMAIL"
	JobSendNotification JobType = "SEND_NOTIFICATION"
	JobZapierStageEvent JobType = "ZAPIER_STAGE_EVENT"
	JobWorkflowResume   JobType = "WORKFLOW_RESUME"
)

// QueuedJob is one unit of deferred external I/O. Actions never call
// providers inline; they enqueue a job and report queued=true in their
// result.
type QueuedJob struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Type           JobType        `json:"type"`
	Payload        map[string]any `json:"payload"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
}

func (j *QueuedJob) Validate() error {
	if j.OrganizationID == "" {
		return errors.New("organization_id is required")
	}

	if j.Type == "" {
		return errors.New("type is required")
	}

	return nil
}
