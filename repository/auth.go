package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/models"
)

// ListUserPermissions returns the union of permissions from all the
// user's roles
func (r *Postgres) ListUserPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	query := `
		SELECT DISTINCT p.permission
		FROM user_role ur
		INNER JOIN role_permission p ON p.role_id = ur.role_id
		WHERE ur.user_id = $1
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	defer rows.Close()

	var permissions []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}

	return permissions, nil
}

// ListWorkflowGrants returns per-workflow ACL grants for a user
func (r *Postgres) ListWorkflowGrants(ctx context.Context, workflowID uuid.UUID, userID string) ([]models.Permission, error) {
	query := `
		SELECT permission
		FROM workflow_acl
		WHERE workflow_id = $1 AND user_id = $2
	`

	rows, err := r.db.Query(ctx, query, workflowID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow grants: %w", err)
	}
	defer rows.Close()

	var permissions []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		permissions = append(permissions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return permissions, nil
}

// AppendAuditLog records an auditable action
func (r *Postgres) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_log (id, user_id, action, resource, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.Resource,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	return nil
}
