// Package main provides the Stagehand API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/stagehandhq/stagehand/pkg/configstore"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/services"
	"github.com/stagehandhq/stagehand/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	store       *configstore.Store
	jobs        protocol.JobDispatcher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	store *configstore.Store,
	jobs protocol.JobDispatcher,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		store:       store,
		jobs:        jobs,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflows(a.logger, a.persistence, a.store)
	executionService := services.NewExecutions(a.logger, a.persistence)
	taskService := services.NewTasks(a.logger, a.persistence, a.jobs)

	handlers := web.NewAPIHandlers(workflowService, executionService, taskService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stagehand API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/unpublish", handlers.UnpublishWorkflow)
	w.Post("/:id/enable", handlers.EnableWorkflow)
	w.Post("/:id/disable", handlers.DisableWorkflow)
	w.Get("/:id/history", handlers.GetWorkflowHistory)
	w.Post("/:id/rollback", handlers.RollbackWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)

	t := app.Group("/tasks")
	t.Get("/", handlers.GetTasks)
	t.Get("/:id", handlers.GetTask)
	t.Post("/:id/approve", handlers.ApproveTask)
	t.Post("/:id/deny", handlers.DenyTask)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
