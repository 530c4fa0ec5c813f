// Package postgresql implements the persistence layer on PostgreSQL. The
// uniqueness rules the engine leans on (dedupe key claims, one open approval
// per gate, the resume ledger, version numbering) are partial unique indexes
// here, so they hold across processes, not just within one.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/stagehandhq/stagehand/pkg/persistence"
	"github.com/stagehandhq/stagehand/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence for PostgreSQL.
type Persistence struct {
	session *session

	workflowRepo      *WorkflowRepository
	executionRepo     *ExecutionRepository
	taskRepo          *TaskRepository
	resumeJobRepo     *ResumeJobRepository
	entityVersionRepo *EntityVersionRepository
	auditRepo         *AuditRepository
	scheduleRepo      *ScheduleRepository
}

// session carries the connection pool and resolves the active querier per
// call: the transaction bound to the context when there is one, the pool
// otherwise.
type session struct {
	db     *sql.DB
	logger *slog.Logger
}

// querier is the subset of sql.DB and sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

func (s *session) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}

	return s.db
}

func (s *session) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

// NewPersistence connects, runs migrations and builds the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &session{db: database, logger: logger}

	return &Persistence{
		session:           s,
		workflowRepo:      &WorkflowRepository{session: s},
		executionRepo:     &ExecutionRepository{session: s},
		taskRepo:          &TaskRepository{session: s},
		resumeJobRepo:     &ResumeJobRepository{session: s},
		entityVersionRepo: &EntityVersionRepository{session: s},
		auditRepo:         &AuditRepository{session: s},
		scheduleRepo:      &ScheduleRepository{session: s},
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflowRepo }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executionRepo }

func (p *Persistence) Tasks() persistence.TaskRepository { return p.taskRepo }

func (p *Persistence) ResumeJobs() persistence.ResumeJobRepository { return p.resumeJobRepo }

func (p *Persistence) EntityVersions() persistence.EntityVersionRepository {
	return p.entityVersionRepo
}

func (p *Persistence) Audit() persistence.AuditRepository { return p.auditRepo }

func (p *Persistence) Schedules() persistence.ScheduleRepository { return p.scheduleRepo }

// Transaction binds a database transaction to the context so every
// repository call inside fn joins it. Nested calls reuse the outer
// transaction; commit and rollback belong to the outermost caller.
func (p *Persistence) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := p.session.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.session.logger.ErrorContext(ctx, "failed to roll back transaction", "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.session.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection pool.
func (p *Persistence) Close(ctx context.Context) error {
	if p.session.db != nil {
		err := p.session.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// Unique index names the repositories translate into typed conflicts.
const (
	constraintExecutionsDedupeKey  = "idx_executions_org_dedupe_key"
	constraintTasksOpenApproval    = "idx_tasks_one_open_approval"
	constraintResumeJobsKey        = "idx_resume_jobs_idempotency_key"
	constraintEntityVersionsUnique = "idx_entity_versions_org_entity_version"
)

// uniqueViolation reports whether err is a unique violation on the named
// index.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
