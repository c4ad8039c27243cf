package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lyzr/flowd/models"
)

// CreateWorkflow inserts a new workflow
func (r *Postgres) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow (
			id, name, description, active, definition, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Active,
		workflow.Definition,
		workflow.Version,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetWorkflow retrieves a workflow by ID
func (r *Postgres) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, active, definition, version, created_at, updated_at
		FROM workflow
		WHERE id = $1
	`

	workflow := &models.Workflow{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Active,
		&workflow.Definition,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

// GetWorkflowByName retrieves a workflow by its unique name
func (r *Postgres) GetWorkflowByName(ctx context.Context, name string) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, active, definition, version, created_at, updated_at
		FROM workflow
		WHERE name = $1
	`

	workflow := &models.Workflow{}
	err := r.db.QueryRow(ctx, query, name).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Active,
		&workflow.Definition,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow by name: %w", err)
	}

	return workflow, nil
}

// ListWorkflows lists workflows, optionally filtering to active ones
func (r *Postgres) ListWorkflows(ctx context.Context, activeOnly bool) ([]*models.Workflow, error) {
	query := `
		SELECT id, name, description, active, definition, version, created_at, updated_at
		FROM workflow
	`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		workflow := &models.Workflow{}
		err := rows.Scan(
			&workflow.ID,
			&workflow.Name,
			&workflow.Description,
			&workflow.Active,
			&workflow.Definition,
			&workflow.Version,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// UpdateWorkflow updates a workflow row
func (r *Postgres) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	query := `
		UPDATE workflow
		SET name = $2, description = $3, active = $4, definition = $5, version = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Active,
		workflow.Definition,
		workflow.Version,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWorkflowNotFound
	}

	return nil
}

// DeleteWorkflow removes a workflow. Execution history outlives the
// workflow row.
func (r *Postgres) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workflow WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWorkflowNotFound
	}

	return nil
}
