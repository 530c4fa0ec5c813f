package postgresql_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{
		"tasks",
		"workflow_resume_jobs",
		"workflow_executions",
		"entity_versions",
		"audit_entries",
		"schedules",
		"workflows",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("stagehand_test"),
			postgres.WithUsername("stagehand"),
			postgres.WithPassword("stagehand"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testWorkflow(organizationID string) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.Workflow{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           "Booked stage follow-up",
		Description:    "Thank the client after booking",
		TriggerType:    models.TriggerStatusChanged,
		TriggerConfig:  models.TriggerConfig{EntityType: "client", ToStage: "booked"},
		Conditions: []models.Condition{
			{Field: "stage", Operator: models.OperatorEquals, Value: "booked"},
		},
		ConditionLogic: models.ConditionLogicAnd,
		Actions: []models.ActionSpec{
			{Kind: models.ActionAddNote, Params: &models.AddNoteParams{Body: "Client booked {{.event.to_stage}}"}},
		},
		IsEnabled:        true,
		Scope:            models.WorkflowScopeOrg,
		CurrentVersion:   1,
		PublishedVersion: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func testExecution(organizationID, workflowID string) *models.WorkflowExecution {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.WorkflowExecution{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		WorkflowID:     workflowID,
		EventID:        uuid.NewString(),
		Depth:          0,
		EventSource:    models.SourceUser,
		EntityType:     "client",
		EntityID:       "client-1",
		TriggerEvent: map[string]any{
			"type":      "status_changed",
			"entity_id": "client-1",
		},
		MatchedConditions: true,
		ActionsExecuted:   []models.ActionResult{},
		Status:            models.ExecutionRunning,
		StartedAt:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"workflows", "workflow_executions", "tasks", "workflow_resume_jobs", "entity_versions", "audit_entries", "schedules"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var latest int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&latest)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	// A second process starting against an already migrated database must
	// come up clean.
	second, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	err = second.Close(ctx)
	require.NoError(t, err)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_TransactionCommits(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("org-tx-commit")

	err := p.Transaction(ctx, func(txCtx context.Context) error {
		return p.Workflows().Save(txCtx, workflow)
	})
	require.NoError(t, err)

	retrieved, err := p.Workflows().GetByID(ctx, workflow.OrganizationID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, retrieved.Name)
}

func TestPersistence_TransactionRollsBackOnError(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("org-tx-rollback")
	boom := errors.New("boom")

	err := p.Transaction(ctx, func(txCtx context.Context) error {
		if err := p.Workflows().Save(txCtx, workflow); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = p.Workflows().GetByID(ctx, workflow.OrganizationID, workflow.ID)
	assert.True(t, persistence.IsNotFound(err))
}

func TestPersistence_NestedTransactionJoinsOuter(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("org-tx-nested")
	boom := errors.New("boom")

	err := p.Transaction(ctx, func(txCtx context.Context) error {
		if err := p.Transaction(txCtx, func(innerCtx context.Context) error {
			return p.Workflows().Save(innerCtx, workflow)
		}); err != nil {
			return err
		}

		// Failing the outer transaction must also undo the nested write.
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = p.Workflows().GetByID(ctx, workflow.OrganizationID, workflow.ID)
	assert.True(t, persistence.IsNotFound(err))
}
