package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lyzr/flowd/models"
)

// CreateExecution inserts a new workflow execution
func (r *Postgres) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		INSERT INTO workflow_execution (
			id, workflow_id, status, started_at, finished_at,
			input_data, output_data, error, triggered_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.Exec(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.StartedAt,
		execution.FinishedAt,
		execution.InputData,
		execution.OutputData,
		execution.Error,
		execution.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// UpdateExecution updates an execution row
func (r *Postgres) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		UPDATE workflow_execution
		SET status = $2, finished_at = $3, output_data = $4, error = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		execution.ID,
		execution.Status,
		execution.FinishedAt,
		execution.OutputData,
		execution.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrExecutionNotFound
	}

	return nil
}

// GetExecution retrieves an execution by ID
func (r *Postgres) GetExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, status, started_at, finished_at,
			input_data, output_data, error, triggered_by
		FROM workflow_execution
		WHERE id = $1
	`

	execution := &models.WorkflowExecution{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.StartedAt,
		&execution.FinishedAt,
		&execution.InputData,
		&execution.OutputData,
		&execution.Error,
		&execution.TriggeredBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	return execution, nil
}

// ListExecutions lists recent executions of a workflow
func (r *Postgres) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit int) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, status, started_at, finished_at,
			input_data, output_data, error, triggered_by
		FROM workflow_execution
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.WorkflowExecution
	for rows.Next() {
		execution := &models.WorkflowExecution{}
		err := rows.Scan(
			&execution.ID,
			&execution.WorkflowID,
			&execution.Status,
			&execution.StartedAt,
			&execution.FinishedAt,
			&execution.InputData,
			&execution.OutputData,
			&execution.Error,
			&execution.TriggeredBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
