package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/actions/requestapproval"
	"github.com/stagehandhq/stagehand/pkg/audit"
	"github.com/stagehandhq/stagehand/pkg/eventbus"
	"github.com/stagehandhq/stagehand/pkg/events"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/registry"
)

// EngineConfig wires the engine's collaborators. Persistence, Registry,
// Entities, Jobs and Settings are required. Publisher and SeenStore are
// optional; a nil publisher skips lifecycle events and a nil seen store
// leaves the loop guard on repository checks alone.
type EngineConfig struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Registry    *registry.Registry
	Entities    protocol.EntityService
	Jobs        protocol.JobDispatcher
	Settings    protocol.SettingsReader
	Publisher   eventbus.EventPublisher
	SeenStore   SeenStore
}

// Engine runs workflows against trigger events. Trigger is the synchronous
// entry point domain services call inside their own transaction; Resume is
// the re-entry point the worker calls for approval resolutions. The engine
// owns every write to the executions table.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	matcher     *Matcher
	guard       *LoopGuard
	audit       *audit.Logger
	entities    protocol.EntityService
	jobs        protocol.JobDispatcher
	settings    protocol.SettingsReader
	publisher   eventbus.EventPublisher
}

func NewEngine(config EngineConfig) *Engine {
	return &Engine{
		logger:      config.Logger.With("module", "workflow_engine"),
		persistence: config.Persistence,
		registry:    config.Registry,
		matcher:     NewMatcher(config.Logger, config.Persistence.Workflows()),
		guard:       NewLoopGuard(config.Logger, config.Persistence.Executions(), config.SeenStore),
		audit:       audit.NewLogger(config.Persistence),
		entities:    config.Entities,
		jobs:        config.Jobs,
		settings:    config.Settings,
		publisher:   config.Publisher,
	}
}

// Trigger runs every workflow matching the event and returns the execution
// records it wrote, one per matched workflow, in match order. A nil result
// with a nil error means the event was dropped or already handled.
//
// The only fatal path is a persistence failure; per-workflow action failures
// are recorded on their own execution row and never abort siblings.
func (e *Engine) Trigger(ctx context.Context, organizationID string, cause models.Causation, event models.TriggerEvent) ([]*models.WorkflowExecution, error) {
	cause = resolveCausation(cause, event)

	logger := e.logger.With(
		"organization_id", organizationID,
		"event_id", cause.EventID,
		"trigger_type", event.Type,
		"depth", cause.Depth,
	)

	if cause.Depth > MaxCascadeDepth {
		logger.WarnContext(ctx, "Cascade depth limit reached, dropping event")

		return nil, nil
	}

	if event.DedupeKey != "" {
		handled, err := e.persistence.Executions().ExistsByDedupeKey(ctx, organizationID, event.DedupeKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check dedupe key: %w", err)
		}

		if handled {
			logger.InfoContext(ctx, "Event already handled, skipping", "dedupe_key", event.DedupeKey)

			return nil, nil
		}
	}

	matched, err := e.matcher.Match(ctx, organizationID, event)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(matched))

	// Only the first row written in this call claims the dedupe key; the
	// partial unique index on executions is the authoritative guard.
	dedupeKey := event.DedupeKey

	for _, wf := range matched {
		if allowed, reason := e.guard.Allow(ctx, cause, organizationID, wf.ID); !allowed {
			logger.InfoContext(ctx, "Loop guard blocked workflow", "workflow_id", wf.ID, "reason", reason)

			continue
		}

		execution, err := e.runWorkflow(ctx, wf, cause, event, dedupeKey)
		if err != nil {
			if errors.Is(err, persistence.ErrDuplicateDedupeKey) {
				logger.InfoContext(ctx, "Dedupe key claimed concurrently, event already handled", "dedupe_key", dedupeKey)

				return nil, nil
			}

			return executions, err
		}

		dedupeKey = ""
		executions = append(executions, execution)
	}

	logger.InfoContext(ctx, "Trigger handled", "candidates", len(matched), "recorded", len(executions))

	return executions, nil
}

// resolveCausation normalizes the chain state for one trigger call: root
// calls mint a fresh event id at depth 0 and take their source from the
// acting party. Cascades arrive with the parent's event id already set.
func resolveCausation(cause models.Causation, event models.TriggerEvent) models.Causation {
	if cause.IsRoot() {
		cause.EventID = uuid.New().String()
		cause.Depth = 0
		cause.Source = event.Actor.EventSource()
	}

	if cause.Source == "" {
		cause.Source = models.SourceSystem
	}

	return cause
}

// runWorkflow records and runs one matched workflow. A non-nil error is
// engine-fatal (a persistence failure); action failures are folded into the
// returned execution row instead.
func (e *Engine) runWorkflow(ctx context.Context, wf *models.Workflow, cause models.Causation, event models.TriggerEvent, dedupeKey string) (*models.WorkflowExecution, error) {
	snapshot, err := event.Snapshot()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		OrganizationID: wf.OrganizationID,
		WorkflowID:     wf.ID,
		EventID:        cause.EventID,
		Depth:          cause.Depth,
		EventSource:    cause.Source,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		TriggerEvent:   snapshot,
		Status:         models.ExecutionRunning,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if dedupeKey != "" {
		execution.DedupeKey = &dedupeKey
	}

	if err := e.persistence.Executions().Create(ctx, execution); err != nil {
		if errors.Is(err, persistence.ErrDuplicateDedupeKey) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	e.publishStarted(ctx, wf, execution, event)

	execution.MatchedConditions = EvaluateConditions(wf.Conditions, wf.ConditionLogic, event.FieldScope())
	if !execution.MatchedConditions {
		execution.Status = models.ExecutionSuccess

		e.logger.DebugContext(ctx, "Conditions not met, recording non-match",
			"execution_id", execution.ID, "workflow_id", wf.ID)

		return execution, e.finishExecution(ctx, execution, event, "")
	}

	executionCtx := models.NewExecutionContext(execution.ID, wf, event, cause, models.WorkflowActor(execution.ID))

	results, pause, actionErr := e.runActions(ctx, wf, executionCtx, 0, -1, nil)
	execution.ActionsExecuted = results

	if pause != nil {
		return execution, e.pauseExecution(ctx, execution, pause)
	}

	if actionErr != nil {
		execution.Status = models.ExecutionFailed
		execution.ErrorMessage = actionErr.Error()

		e.logger.WarnContext(ctx, "Workflow execution failed",
			"execution_id", execution.ID, "workflow_id", wf.ID, "error", actionErr)
	} else {
		execution.Status = models.ExecutionSuccess
	}

	return execution, e.finishExecution(ctx, execution, event, "")
}

// pauseSignal reports that the action loop hit an approval gate: the task it
// built and the index the execution pauses at.
type pauseSignal struct {
	index int
	task  *models.Task
}

// runActions executes wf's actions from startIndex in list order, appending
// to results. approvedGate is the index of a gate whose approval was already
// granted (-1 on fresh runs); any other request_approval action stops the
// loop with a pause signal instead of executing.
func (e *Engine) runActions(ctx context.Context, wf *models.Workflow, executionCtx *models.ExecutionContext, startIndex, approvedGate int, results []models.ActionResult) ([]models.ActionResult, *pauseSignal, error) {
	deps := e.dependencies(executionCtx)

	for i := startIndex; i < len(wf.Actions); i++ {
		spec := wf.Actions[i]

		if spec.Kind == models.ActionRequestApproval && i != approvedGate {
			params, ok := spec.Params.(*models.RequestApprovalParams)
			if !ok {
				return results, nil, fmt.Errorf("action %d: request_approval params are %T", i, spec.Params)
			}

			task, err := requestapproval.NewApprovalTask(wf, *executionCtx, i, params, wf.Actions[i+1:])
			if err != nil {
				return results, nil, fmt.Errorf("action %d: %w", i, err)
			}

			return results, &pauseSignal{index: i, task: task}, nil
		}

		action, err := e.registry.CreateAction(ctx, spec)
		if err != nil {
			return results, nil, fmt.Errorf("action %d (%s): %w", i, spec.Kind, err)
		}

		result, err := action.Execute(ctx, *executionCtx, deps)
		if err != nil {
			return results, nil, fmt.Errorf("action %d (%s): %w", i, spec.Kind, err)
		}

		if result.ActionType == "" {
			result.ActionType = string(spec.Kind)
		}

		results = append(results, result)

		e.logger.DebugContext(ctx, "Action completed",
			"execution_id", executionCtx.ExecutionID,
			"action_index", i,
			"action_type", spec.Kind,
			"skipped", result.Skipped,
			"queued", result.Queued)
	}

	return results, nil, nil
}

// dependencies builds the collaborator set actions execute with. The cascade
// closure binds the causation chain and the acting execution, so actions can
// raise follow-on events but cannot forge depth or event ids.
func (e *Engine) dependencies(executionCtx *models.ExecutionContext) protocol.Dependencies {
	cause := models.Causation{
		EventID: executionCtx.EventID,
		Depth:   executionCtx.Depth,
		Source:  executionCtx.Source,
	}
	organizationID := executionCtx.OrganizationID
	executionID := executionCtx.ExecutionID

	return protocol.Dependencies{
		Logger:   e.logger.With("execution_id", executionID),
		Entities: e.entities,
		Jobs:     e.jobs,
		Tasks:    taskWriter{tasks: e.persistence.Tasks()},
		Settings: e.settings,
		Cascade: func(ctx context.Context, event models.TriggerEvent) error {
			if event.Actor.Kind == "" {
				event.Actor = models.WorkflowActor(executionID)
			}

			_, err := e.Trigger(ctx, organizationID, cause.Child(), event)

			return err
		},
	}
}

// taskWriter narrows the task repository to the surface actions get.
type taskWriter struct {
	tasks persistence.TaskRepository
}

func (w taskWriter) CreateTask(ctx context.Context, task *models.Task) error {
	return w.tasks.Create(ctx, task)
}

// pauseExecution persists the approval gate: the task row first, then the
// execution's pause bookkeeping. A duplicate pending approval means a
// concurrent worker already paused this execution; the stored row wins and
// this call becomes a no-op.
func (e *Engine) pauseExecution(ctx context.Context, execution *models.WorkflowExecution, signal *pauseSignal) error {
	if err := e.persistence.Tasks().Create(ctx, signal.task); err != nil {
		if persistence.IsConflict(err) {
			e.logger.InfoContext(ctx, "Approval gate already pending, keeping stored pause",
				"execution_id", execution.ID, "action_index", signal.index)

			stored, getErr := e.persistence.Executions().GetByID(ctx, execution.OrganizationID, execution.ID)
			if getErr != nil {
				return fmt.Errorf("failed to reload paused execution: %w", getErr)
			}

			*execution = *stored

			return nil
		}

		return fmt.Errorf("failed to create approval task: %w", err)
	}

	execution.Status = models.ExecutionPaused
	execution.PausedAtActionIndex = &signal.index
	execution.PausedTaskID = &signal.task.ID
	execution.UpdatedAt = time.Now().UTC()

	if err := e.persistence.Executions().Update(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist paused execution: %w", err)
	}

	e.logger.InfoContext(ctx, "Execution paused for approval",
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"task_id", signal.task.ID,
		"action_index", signal.index)

	e.publishPaused(ctx, execution, signal)

	return nil
}

// finishExecution commits a terminal outcome: the final row update and the
// audit entry land in one transaction, then the lifecycle event goes out.
// taskID is the approval task that resolved the execution, empty for runs
// that never paused.
func (e *Engine) finishExecution(ctx context.Context, execution *models.WorkflowExecution, event models.TriggerEvent, taskID string) error {
	now := time.Now().UTC()
	execution.FinishedAt = &now
	execution.DurationMs = now.Sub(execution.StartedAt).Milliseconds()
	execution.UpdatedAt = now
	execution.PausedAtActionIndex = nil
	execution.PausedTaskID = nil

	err := e.persistence.Transaction(ctx, func(txCtx context.Context) error {
		if err := e.persistence.Executions().Update(txCtx, execution); err != nil {
			return fmt.Errorf("failed to persist execution outcome: %w", err)
		}

		return e.audit.Append(txCtx, executionAuditEntry(execution, event))
	})
	if err != nil {
		return err
	}

	e.publishOutcome(ctx, execution, taskID)

	return nil
}

// executionAuditEntry records one run in the audit chain. Details stay at
// ids, statuses and counters; event payloads and entity data never enter the
// chain.
func executionAuditEntry(execution *models.WorkflowExecution, event models.TriggerEvent) *models.AuditEntry {
	return &models.AuditEntry{
		OrganizationID: execution.OrganizationID,
		EventType:      audit.EventExecutionRun,
		Actor:          event.Actor.String(),
		TargetType:     "workflow_execution",
		TargetID:       execution.ID,
		Details: map[string]any{
			"workflow_id":        execution.WorkflowID,
			"event_id":           execution.EventID,
			"trigger_type":       string(event.Type),
			"depth":              execution.Depth,
			"status":             string(execution.Status),
			"matched_conditions": execution.MatchedConditions,
			"actions_executed":   len(execution.ActionsExecuted),
		},
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) publishStarted(ctx context.Context, wf *models.Workflow, execution *models.WorkflowExecution, event models.TriggerEvent) {
	if e.publisher == nil {
		return
	}

	started := events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, execution.OrganizationID, execution.WorkflowID),
		ExecutionID:  execution.ID,
		WorkflowName: wf.Name,
		TriggerType:  string(event.Type),
		EntityType:   event.EntityType,
		EntityID:     event.EntityID,
		Depth:        execution.Depth,
	}
	started.EventID = execution.EventID

	e.publish(ctx, execution.WorkflowID, started)
}

func (e *Engine) publishPaused(ctx context.Context, execution *models.WorkflowExecution, signal *pauseSignal) {
	if e.publisher == nil {
		return
	}

	paused := events.ExecutionPaused{
		BaseEvent:   events.NewBaseEvent(events.ExecutionPausedEvent, execution.OrganizationID, execution.WorkflowID),
		ExecutionID: execution.ID,
		TaskID:      signal.task.ID,
		ActionIndex: signal.index,
		Reason:      signal.task.Description,
	}
	paused.EventID = execution.EventID

	e.publish(ctx, execution.WorkflowID, paused)
}

func (e *Engine) publishOutcome(ctx context.Context, execution *models.WorkflowExecution, taskID string) {
	if e.publisher == nil {
		return
	}

	switch execution.Status {
	case models.ExecutionSuccess:
		completed := events.ExecutionCompleted{
			BaseEvent:         events.NewBaseEvent(events.ExecutionCompletedEvent, execution.OrganizationID, execution.WorkflowID),
			ExecutionID:       execution.ID,
			MatchedConditions: execution.MatchedConditions,
			ActionsExecuted:   len(execution.ActionsExecuted),
			DurationMs:        execution.DurationMs,
		}
		completed.EventID = execution.EventID
		e.publish(ctx, execution.WorkflowID, completed)
	case models.ExecutionFailed:
		failed := events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.OrganizationID, execution.WorkflowID),
			ExecutionID: execution.ID,
			Error:       execution.ErrorMessage,
			DurationMs:  execution.DurationMs,
		}
		failed.EventID = execution.EventID
		e.publish(ctx, execution.WorkflowID, failed)
	case models.ExecutionCanceled:
		canceled := events.ExecutionCanceled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCanceledEvent, execution.OrganizationID, execution.WorkflowID),
			ExecutionID: execution.ID,
			TaskID:      taskID,
			Reason:      execution.DenialReason,
		}
		canceled.EventID = execution.EventID
		e.publish(ctx, execution.WorkflowID, canceled)
	case models.ExecutionExpired:
		expired := events.ExecutionExpired{
			BaseEvent:   events.NewBaseEvent(events.ExecutionExpiredEvent, execution.OrganizationID, execution.WorkflowID),
			ExecutionID: execution.ID,
			TaskID:      taskID,
		}
		expired.EventID = execution.EventID
		e.publish(ctx, execution.WorkflowID, expired)
	case models.ExecutionRunning, models.ExecutionPaused:
	}
}
