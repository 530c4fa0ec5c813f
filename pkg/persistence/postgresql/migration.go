package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(100) NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				conditions JSONB NOT NULL DEFAULT '[]',
				condition_logic VARCHAR(10) NOT NULL DEFAULT 'and',
				actions JSONB NOT NULL DEFAULT '[]',
				is_enabled BOOLEAN NOT NULL DEFAULT false,
				scope VARCHAR(20) NOT NULL DEFAULT 'org',
				owner_user_id VARCHAR(255),
				current_version INT NOT NULL DEFAULT 0,
				published_version INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_org ON workflows(organization_id);
			CREATE INDEX idx_workflows_org_trigger ON workflows(organization_id, trigger_type)
				WHERE deleted_at IS NULL;

			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				event_id UUID NOT NULL,
				depth INT NOT NULL DEFAULT 0,
				event_source VARCHAR(50) NOT NULL,
				entity_type VARCHAR(100) NOT NULL DEFAULT '',
				entity_id VARCHAR(255) NOT NULL DEFAULT '',
				trigger_event JSONB,
				dedupe_key VARCHAR(500),
				matched_conditions BOOLEAN NOT NULL DEFAULT false,
				actions_executed JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL,
				error_message TEXT NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL DEFAULT 0,
				paused_at_action_index INT,
				paused_task_id UUID,
				denial_reason TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- The dedupe key claim: first insert wins, everyone after gets a
			-- unique violation.
			CREATE UNIQUE INDEX idx_executions_org_dedupe_key
				ON workflow_executions(organization_id, dedupe_key)
				WHERE dedupe_key IS NOT NULL;

			CREATE INDEX idx_executions_org_workflow
				ON workflow_executions(organization_id, workflow_id, started_at DESC);
			CREATE INDEX idx_executions_org_event
				ON workflow_executions(organization_id, event_id);

			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				title VARCHAR(500) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				entity_type VARCHAR(100) NOT NULL DEFAULT '',
				entity_id VARCHAR(255) NOT NULL DEFAULT '',
				assignee_user_id VARCHAR(255) NOT NULL DEFAULT '',
				assignee_role VARCHAR(100) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				due_at TIMESTAMP WITH TIME ZONE,
				workflow_execution_id UUID,
				workflow_action_index INT,
				workflow_action_type VARCHAR(100) NOT NULL DEFAULT '',
				workflow_action_preview JSONB,
				action_payload JSONB,
				resolved_at TIMESTAMP WITH TIME ZONE,
				resolved_by VARCHAR(255) NOT NULL DEFAULT '',
				resolution_note TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- One live approval gate per (execution, action index).
			CREATE UNIQUE INDEX idx_tasks_one_open_approval
				ON tasks(workflow_execution_id, workflow_action_index)
				WHERE kind = 'workflow_approval' AND status IN ('pending', 'in_progress');

			CREATE INDEX idx_tasks_org_status ON tasks(organization_id, status);

			CREATE TABLE workflow_resume_jobs (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				idempotency_key VARCHAR(500) NOT NULL,
				workflow_execution_id UUID NOT NULL,
				task_id UUID NOT NULL,
				outcome VARCHAR(50) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX idx_resume_jobs_idempotency_key
				ON workflow_resume_jobs(idempotency_key);

			CREATE TABLE entity_versions (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				entity_type VARCHAR(100) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				version INT NOT NULL,
				payload BYTEA NOT NULL,
				encrypted BOOLEAN NOT NULL DEFAULT false,
				checksum VARCHAR(64) NOT NULL,
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_entity_versions_org_entity_version
				ON entity_versions(organization_id, entity_type, entity_id, version);

			CREATE TABLE audit_entries (
				seq BIGSERIAL PRIMARY KEY,
				id UUID NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				event_type VARCHAR(100) NOT NULL,
				actor VARCHAR(255) NOT NULL,
				target_type VARCHAR(100) NOT NULL DEFAULT '',
				target_id VARCHAR(255) NOT NULL DEFAULT '',
				details JSONB,
				ip VARCHAR(100) NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				request_id VARCHAR(255) NOT NULL DEFAULT '',
				before_version_id VARCHAR(255) NOT NULL DEFAULT '',
				after_version_id VARCHAR(255) NOT NULL DEFAULT '',
				-- Hex SHA-256; the first entry carries the all-zero genesis hash.
				prev_hash VARCHAR(64) NOT NULL,
				entry_hash VARCHAR(64) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_entries_org_seq ON audit_entries(organization_id, seq);

			CREATE TABLE schedules (
				workflow_id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				cron_expression VARCHAR(255) NOT NULL,
				timezone VARCHAR(100) NOT NULL DEFAULT '',
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_org_due ON schedules(organization_id, next_due_at)
				WHERE active = true;
		`,
		2: `
			-- Sweep scans filter on open statuses with a due date; partial
			-- indexes keep them off the full task table.
			CREATE INDEX idx_tasks_open_approvals_due
				ON tasks(organization_id, due_at)
				WHERE kind = 'workflow_approval' AND status IN ('pending', 'in_progress') AND due_at IS NOT NULL;

			CREATE INDEX idx_tasks_open_todos_due
				ON tasks(organization_id, due_at)
				WHERE kind = 'todo' AND status IN ('pending', 'in_progress') AND due_at IS NOT NULL;
		`,
	}
}
