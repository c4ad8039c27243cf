package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/models"
)

// CreateNodeExecution inserts a new node execution record
func (r *Postgres) CreateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	query := `
		INSERT INTO node_execution (
			id, execution_id, node_id, status, started_at, finished_at,
			input_data, output_data, error, attempt
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		nodeExecution.ID,
		nodeExecution.ExecutionID,
		nodeExecution.NodeID,
		nodeExecution.Status,
		nodeExecution.StartedAt,
		nodeExecution.FinishedAt,
		nodeExecution.InputData,
		nodeExecution.OutputData,
		nodeExecution.Error,
		nodeExecution.Attempt,
	)
	if err != nil {
		return fmt.Errorf("failed to create node execution: %w", err)
	}

	return nil
}

// UpdateNodeExecution updates a node execution record
func (r *Postgres) UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	query := `
		UPDATE node_execution
		SET status = $2, finished_at = $3, input_data = $4, output_data = $5, error = $6, attempt = $7
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query,
		nodeExecution.ID,
		nodeExecution.Status,
		nodeExecution.FinishedAt,
		nodeExecution.InputData,
		nodeExecution.OutputData,
		nodeExecution.Error,
		nodeExecution.Attempt,
	)
	if err != nil {
		return fmt.Errorf("failed to update node execution: %w", err)
	}

	return nil
}

// ListNodeExecutions lists node executions for an execution in start order
func (r *Postgres) ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]*models.NodeExecution, error) {
	query := `
		SELECT id, execution_id, node_id, status, started_at, finished_at,
			input_data, output_data, error, attempt
		FROM node_execution
		WHERE execution_id = $1
		ORDER BY started_at ASC, node_id ASC
	`

	rows, err := r.db.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}
	defer rows.Close()

	var nodeExecutions []*models.NodeExecution
	for rows.Next() {
		nodeExecution := &models.NodeExecution{}
		err := rows.Scan(
			&nodeExecution.ID,
			&nodeExecution.ExecutionID,
			&nodeExecution.NodeID,
			&nodeExecution.Status,
			&nodeExecution.StartedAt,
			&nodeExecution.FinishedAt,
			&nodeExecution.InputData,
			&nodeExecution.OutputData,
			&nodeExecution.Error,
			&nodeExecution.Attempt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}
		nodeExecutions = append(nodeExecutions, nodeExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}

	return nodeExecutions, nil
}
