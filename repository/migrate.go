package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/flowd/common/db"
)

// migrations are applied in order at startup. Every statement is
// idempotent, so re-running the set is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workflow (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		active      BOOLEAN NOT NULL DEFAULT true,
		definition  JSONB NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_execution (
		id           UUID PRIMARY KEY,
		workflow_id  UUID NOT NULL,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ,
		input_data   JSONB,
		output_data  JSONB,
		error        TEXT NOT NULL DEFAULT '',
		triggered_by TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workflow_execution_workflow
		ON workflow_execution (workflow_id, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS node_execution (
		id           UUID PRIMARY KEY,
		execution_id UUID NOT NULL REFERENCES workflow_execution(id) ON DELETE CASCADE,
		node_id      TEXT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ,
		input_data   JSONB,
		output_data  JSONB,
		error        TEXT NOT NULL DEFAULT '',
		attempt      INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE INDEX IF NOT EXISTS idx_node_execution_execution
		ON node_execution (execution_id, started_at ASC)`,

	`CREATE TABLE IF NOT EXISTS credential (
		id               UUID PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		credentials_type TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		encrypted_data   BYTEA NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS role (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS role_permission (
		role_id    UUID NOT NULL REFERENCES role(id) ON DELETE CASCADE,
		permission TEXT NOT NULL,
		PRIMARY KEY (role_id, permission)
	)`,

	`CREATE TABLE IF NOT EXISTS user_role (
		user_id    TEXT NOT NULL,
		role_id    UUID NOT NULL REFERENCES role(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_acl (
		workflow_id UUID NOT NULL REFERENCES workflow(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		permission  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (workflow_id, user_id, permission)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		action     TEXT NOT NULL,
		resource   TEXT NOT NULL,
		detail     JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_log_user
		ON audit_log (user_id, created_at DESC)`,
}

// Migrate applies the schema. Safe to call at every startup.
func Migrate(ctx context.Context, database *db.DB) error {
	for i, stmt := range migrations {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
