// Package web provides HTTP handlers and REST API endpoints for workflow
// authoring, execution reads, and approval resolution.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/services"
)

// Tenancy and identity headers, set by the authenticating proxy in front of
// this API. Every route is scoped to the organization; mutating routes also
// need the acting user.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

type APIHandlers struct {
	workflowService  *services.Workflows
	executionService *services.Executions
	taskService      *services.Tasks
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflows,
	executionService *services.Executions,
	taskService *services.Tasks,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		taskService:      taskService,
		validator:        validator,
	}
}

// organizationID reads the tenancy header. An empty result means the request
// never passed the proxy and must be rejected.
func organizationID(c fiber.Ctx) string {
	return c.Get(HeaderOrganizationID)
}

// actor reads the identity header and returns the acting user, or false when
// the header is missing.
func actor(c fiber.Ctx) (models.Actor, bool) {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return models.Actor{}, false
	}

	return models.UserActor(userID), true
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	workflows, err := h.workflowService.List(c.Context(), orgID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.Get(c.Context(), orgID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), orgID, req.Workflow(), who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Get existing workflow and merge changes
	existing, err := h.workflowService.Get(c.Context(), orgID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	req.Apply(existing)

	updated, err := h.workflowService.Update(c.Context(), orgID, id, existing, req.ExpectedVersion, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), orgID, id, who); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	published, err := h.workflowService.Publish(c.Context(), orgID, id, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) UnpublishWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	unpublished, err := h.workflowService.Unpublish(c.Context(), orgID, id, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(unpublished)
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	return h.setWorkflowEnabled(c, true)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	return h.setWorkflowEnabled(c, false)
}

func (h *APIHandlers) setWorkflowEnabled(c fiber.Ctx, enabled bool) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	updated, err := h.workflowService.SetEnabled(c.Context(), orgID, id, enabled, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetWorkflowHistory(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	versions, err := h.workflowService.History(c.Context(), orgID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"versions":    versions,
		"total_count": len(versions),
	})
}

func (h *APIHandlers) RollbackWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RollbackWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rolledBack, err := h.workflowService.Rollback(c.Context(), orgID, id, req.ToVersion, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rolledBack)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	executions, err := h.executionService.ListByWorkflow(c.Context(), orgID, id, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.Get(c.Context(), orgID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	status := models.TaskStatus(c.Query("status"))

	tasks, err := h.taskService.List(c.Context(), orgID, status, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := TransformTaskResponses(tasks)

	return c.JSON(fiber.Map{
		"tasks":       responses,
		"total_count": len(responses),
	})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	task, err := h.taskService.Get(c.Context(), orgID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformTaskResponse(task))
}

func (h *APIHandlers) ApproveTask(c fiber.Ctx) error {
	return h.resolveTask(c, h.taskService.Approve)
}

func (h *APIHandlers) DenyTask(c fiber.Ctx) error {
	return h.resolveTask(c, h.taskService.Deny)
}

func (h *APIHandlers) resolveTask(
	c fiber.Ctx,
	resolve func(ctx context.Context, organizationID, taskID string, actor models.Actor, note string) (*models.Task, error),
) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, "Organization header is required")
	}

	who, ok := actor(c)
	if !ok {
		return badRequest(c, "User header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	// The body is optional; a bare POST resolves without a note.
	var req ResolveTaskRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	resolved, err := resolve(c.Context(), orgID, id, who, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformTaskResponse(resolved))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Stagehand API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Stagehand API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
