// Package sweep drives the time-based trigger types. One sweeper walks every
// organization on a ticker and synthesizes the trigger events storage can
// answer for: due schedules, idle entities, tasks approaching or past their
// due date, and approval gates whose window has elapsed.
//
// Sweep passes overlap with themselves under restarts and with user actions,
// so every synthesized event carries a stable dedupe key and the expiry path
// claims the resume ledger before touching anything else.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/audit"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// Triggerer is the engine surface the sweeper drives.
type Triggerer interface {
	Trigger(ctx context.Context, organizationID string, cause models.Causation, event models.TriggerEvent) ([]*models.WorkflowExecution, error)
}

// Config wires the sweeper's collaborators. Interval defaults to one minute.
type Config struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Engine      Triggerer
	Entities    protocol.EntityService
	Jobs        protocol.JobDispatcher
	Interval    time.Duration
}

// Sweeper polls for due time-based work. Start launches the ticker loop;
// RunOnce executes a single pass and can be called directly.
type Sweeper struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      Triggerer
	entities    protocol.EntityService
	jobs        protocol.JobDispatcher
	audit       *audit.Logger
	interval    time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.Mutex
}

// NewSweeper creates a sweeper from its collaborators.
func NewSweeper(config Config) *Sweeper {
	interval := config.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Sweeper{
		logger:      config.Logger.With("module", "sweeper"),
		persistence: config.Persistence,
		engine:      config.Engine,
		entities:    config.Entities,
		jobs:        config.Jobs,
		audit:       audit.NewLogger(config.Persistence),
		interval:    interval,
	}
}

// Start launches the periodic sweep loop. Calling Start on a running sweeper
// is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	s.logger.InfoContext(ctx, "Sweeper started", "interval", s.interval)

	return nil
}

// Stop halts the sweep loop. A pass already in flight finishes on its own.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.ticker.Stop()

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	s.logger.InfoContext(ctx, "Sweeper stopped")

	return nil
}

func (s *Sweeper) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Sweep pass failed", "error", err)
			}
		}
	}
}

// RunOnce executes one sweep pass over every organization, sequentially. A
// failing sub-sweep is logged and skipped so one broken tenant cannot starve
// the rest.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	organizationIDs, err := s.entities.ListOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	for _, organizationID := range organizationIDs {
		s.sweepOrganization(ctx, organizationID, now)
	}

	return nil
}

func (s *Sweeper) sweepOrganization(ctx context.Context, organizationID string, now time.Time) {
	logger := s.logger.With("organization_id", organizationID)

	if err := s.sweepSchedules(ctx, organizationID, now); err != nil {
		logger.ErrorContext(ctx, "Schedule sweep failed", "error", err)
	}

	if err := s.sweepInactivity(ctx, organizationID, now); err != nil {
		logger.ErrorContext(ctx, "Inactivity sweep failed", "error", err)
	}

	if err := s.sweepTasksDue(ctx, organizationID, now); err != nil {
		logger.ErrorContext(ctx, "Task due sweep failed", "error", err)
	}

	if err := s.sweepTasksOverdue(ctx, organizationID, now); err != nil {
		logger.ErrorContext(ctx, "Task overdue sweep failed", "error", err)
	}

	if err := s.expireApprovals(ctx, organizationID, now); err != nil {
		logger.ErrorContext(ctx, "Approval expiry sweep failed", "error", err)
	}
}

// sweepSchedules fires every due schedule. The dedupe key derives from the
// stored NextDueAt, so a crash between firing and advancing replays into a
// no-op instead of a second run; NextDueAt advances only after a successful
// trigger.
func (s *Sweeper) sweepSchedules(ctx context.Context, organizationID string, now time.Time) error {
	due, err := s.persistence.Schedules().ListDue(ctx, organizationID, now)
	if err != nil {
		return fmt.Errorf("failed to list due schedules: %w", err)
	}

	for _, schedule := range due {
		logger := s.logger.With("workflow_id", schedule.WorkflowID)

		event := models.TriggerEvent{
			Type:       models.TriggerScheduled,
			WorkflowID: schedule.WorkflowID,
			Actor:      models.SystemActor(),
			DedupeKey:  fmt.Sprintf("sched:%s:%d", schedule.WorkflowID, schedule.NextDueAt.Unix()),
			Data: map[string]any{
				"cron_expression": schedule.CronExpression,
				"due_at":          schedule.NextDueAt.Format(time.RFC3339),
			},
		}

		if _, err := s.engine.Trigger(ctx, organizationID, models.Causation{}, event); err != nil {
			logger.ErrorContext(ctx, "Failed to fire scheduled workflow", "error", err)

			continue
		}

		if err := schedule.Advance(); err != nil {
			logger.ErrorContext(ctx, "Failed to advance schedule", "error", err)

			continue
		}

		if err := s.persistence.Schedules().Upsert(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Failed to save advanced schedule", "error", err)

			continue
		}

		logger.InfoContext(ctx, "Scheduled workflow fired", "next_due_at", schedule.NextDueAt)
	}

	return nil
}

// sweepInactivity synthesizes one event per idle entity per day. Candidate
// workflows are grouped by the entity type they scan (empty spans every
// type) and each group is scanned once at its loosest threshold; the matcher
// then holds every workflow to its own days_inactive requirement.
func (s *Sweeper) sweepInactivity(ctx context.Context, organizationID string, now time.Time) error {
	candidates, err := s.persistence.Workflows().FindCandidates(ctx, organizationID, models.TriggerInactivity)
	if err != nil {
		return fmt.Errorf("failed to load inactivity workflows: %w", err)
	}

	thresholds := make(map[string]int)

	for _, wf := range candidates {
		days := wf.TriggerConfig.InactiveDays
		if days < 1 {
			continue
		}

		entityType := wf.TriggerConfig.EntityType
		if current, ok := thresholds[entityType]; !ok || days < current {
			thresholds[entityType] = days
		}
	}

	for _, entityType := range slices.Sorted(maps.Keys(thresholds)) {
		since := now.AddDate(0, 0, -thresholds[entityType])

		idle, err := s.entities.ListInactive(ctx, organizationID, entityType, since)
		if err != nil {
			return fmt.Errorf("failed to list inactive entities of type %q: %w", entityType, err)
		}

		for _, entity := range idle {
			daysInactive := int(now.Sub(entity.LastActivityAt).Hours() / 24)

			event := models.TriggerEvent{
				Type:        models.TriggerInactivity,
				EntityType:  entity.EntityType,
				EntityID:    entity.EntityID,
				OwnerUserID: entity.OwnerUserID,
				Actor:       models.SystemActor(),
				DedupeKey:   fmt.Sprintf("inactivity:%s:%s", entity.EntityID, now.Format(time.DateOnly)),
				Data: map[string]any{
					"days_inactive":    daysInactive,
					"last_activity_at": entity.LastActivityAt.Format(time.RFC3339),
				},
				Entity: entity.Fields,
			}

			if _, err := s.engine.Trigger(ctx, organizationID, models.Causation{}, event); err != nil {
				s.logger.ErrorContext(ctx, "Failed to fire inactivity workflows",
					"entity_id", entity.EntityID, "error", err)
			}
		}
	}

	return nil
}

// sweepTasksDue fires task_due once per task, as the task enters the widest
// window any workflow asks for. The event reports hours_until_due so the
// matcher can hold each workflow to its own within_hours.
func (s *Sweeper) sweepTasksDue(ctx context.Context, organizationID string, now time.Time) error {
	candidates, err := s.persistence.Workflows().FindCandidates(ctx, organizationID, models.TriggerTaskDue)
	if err != nil {
		return fmt.Errorf("failed to load task_due workflows: %w", err)
	}

	widest := 0

	for _, wf := range candidates {
		if wf.TriggerConfig.WithinHours > widest {
			widest = wf.TriggerConfig.WithinHours
		}
	}

	if widest == 0 {
		return nil
	}

	cutoff := now.Add(time.Duration(widest) * time.Hour)

	tasks, err := s.persistence.Tasks().ListOpenTodosDueBefore(ctx, organizationID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list tasks due soon: %w", err)
	}

	for _, task := range tasks {
		if task.DueAt == nil || !task.DueAt.After(now) {
			// Past due belongs to the overdue sweep.
			continue
		}

		event := models.TriggerEvent{
			Type:        models.TriggerTaskDue,
			EntityType:  "task",
			EntityID:    task.ID,
			OwnerUserID: task.AssigneeUserID,
			Actor:       models.SystemActor(),
			DedupeKey:   "task_due:" + task.ID,
			Data: map[string]any{
				"task_id":          task.ID,
				"title":            task.Title,
				"assignee_user_id": task.AssigneeUserID,
				"due_at":           task.DueAt.Format(time.RFC3339),
				"hours_until_due":  math.Ceil(task.DueAt.Sub(now).Hours()),
			},
		}

		if _, err := s.engine.Trigger(ctx, organizationID, models.Causation{}, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to fire task_due workflows",
				"task_id", task.ID, "error", err)
		}
	}

	return nil
}

// sweepTasksOverdue fires once per overdue task per day, for reminders that
// repeat until the task is closed.
func (s *Sweeper) sweepTasksOverdue(ctx context.Context, organizationID string, now time.Time) error {
	candidates, err := s.persistence.Workflows().FindCandidates(ctx, organizationID, models.TriggerTaskOverdue)
	if err != nil {
		return fmt.Errorf("failed to load task_overdue workflows: %w", err)
	}

	if len(candidates) == 0 {
		return nil
	}

	tasks, err := s.persistence.Tasks().ListOpenTodosOverdue(ctx, organizationID, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	for _, task := range tasks {
		event := models.TriggerEvent{
			Type:        models.TriggerTaskOverdue,
			EntityType:  "task",
			EntityID:    task.ID,
			OwnerUserID: task.AssigneeUserID,
			Actor:       models.SystemActor(),
			DedupeKey:   fmt.Sprintf("task_overdue:%s:%s", task.ID, now.Format(time.DateOnly)),
			Data: map[string]any{
				"task_id":          task.ID,
				"title":            task.Title,
				"assignee_user_id": task.AssigneeUserID,
				"due_at":           task.DueAt.Format(time.RFC3339),
				"days_overdue":     int(now.Sub(*task.DueAt).Hours() / 24),
			},
		}

		if _, err := s.engine.Trigger(ctx, organizationID, models.Causation{}, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to fire task_overdue workflows",
				"task_id", task.ID, "error", err)
		}
	}

	return nil
}

// expireApprovals resolves approval gates whose window elapsed. This sweep is
// the only path that expires an approval without a user; user resolutions
// race it through the resume ledger and whoever claims the key wins.
func (s *Sweeper) expireApprovals(ctx context.Context, organizationID string, now time.Time) error {
	overdue, err := s.persistence.Tasks().ListOpenApprovalsDueBefore(ctx, organizationID, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue approvals: %w", err)
	}

	for _, task := range overdue {
		if task.WorkflowExecutionID == "" {
			s.logger.WarnContext(ctx, "Approval task carries no execution, skipping expiry",
				"task_id", task.ID)

			continue
		}

		if err := s.expireApproval(ctx, organizationID, task, now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to expire approval",
				"task_id", task.ID, "error", err)
		}
	}

	return nil
}

// expireApproval claims the resume ledger, marks the task expired and records
// the resolution in the audit chain, all in one transaction, then enqueues
// the resume job that unwinds the paused execution. Losing the ledger claim
// means a user resolved the task first; the expiry backs off without touching
// it.
func (s *Sweeper) expireApproval(ctx context.Context, organizationID string, task *models.Task, now time.Time) error {
	job := &models.WorkflowResumeJob{
		ID:                  uuid.New().String(),
		OrganizationID:      organizationID,
		IdempotencyKey:      models.ResumeIdempotencyKey(task.WorkflowExecutionID, task.ID),
		WorkflowExecutionID: task.WorkflowExecutionID,
		TaskID:              task.ID,
		Outcome:             models.ResumeExpired,
		CreatedAt:           now,
	}

	err := s.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.persistence.ResumeJobs().Create(txCtx, job); err != nil {
			return err
		}

		task.Status = models.TaskExpired
		task.ResolvedAt = &now
		task.ResolvedBy = models.SystemActor().String()
		task.ResolutionNote = "approval window elapsed"
		task.UpdatedAt = now

		if err := s.persistence.Tasks().Update(txCtx, task); err != nil {
			return fmt.Errorf("failed to mark approval expired: %w", err)
		}

		return s.audit.Append(txCtx, &models.AuditEntry{
			OrganizationID: organizationID,
			EventType:      audit.EventTaskResolved,
			Actor:          models.SystemActor().String(),
			TargetType:     "task",
			TargetID:       task.ID,
			Details: map[string]any{
				"kind":         string(task.Kind),
				"outcome":      string(models.ResumeExpired),
				"execution_id": task.WorkflowExecutionID,
			},
		})
	})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicateResumeJob) {
			s.logger.InfoContext(ctx, "Approval already resolved, leaving it alone",
				"task_id", task.ID)

			return nil
		}

		return err
	}

	s.logger.InfoContext(ctx, "Approval expired",
		"task_id", task.ID,
		"execution_id", task.WorkflowExecutionID)

	err = s.jobs.Enqueue(ctx, models.QueuedJob{
		OrganizationID: organizationID,
		Type:           models.JobWorkflowResume,
		Payload: map[string]any{
			"idempotency_key": job.IdempotencyKey,
			"execution_id":    task.WorkflowExecutionID,
			"task_id":         task.ID,
			"outcome":         string(models.ResumeExpired),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue resume for expired approval: %w", err)
	}

	return nil
}
