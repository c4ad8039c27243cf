package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the status of a workflow execution
type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "queued"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed || s == ExecutionCancelled
}

// WorkflowExecution is one run of a workflow
// Maps to: workflow_execution table
type WorkflowExecution struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	WorkflowID  uuid.UUID       `db:"workflow_id" json:"workflow_id"`
	Status      ExecutionStatus `db:"status" json:"status"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	InputData   json.RawMessage `db:"input_data" json:"input_data,omitempty"`
	OutputData  json.RawMessage `db:"output_data" json:"output_data,omitempty"`
	Error       string          `db:"error" json:"error,omitempty"`
	TriggeredBy string          `db:"triggered_by" json:"triggered_by,omitempty"`
}

// NodeExecutionStatus represents the status of a node within a run
type NodeExecutionStatus string

const (
	NodePending   NodeExecutionStatus = "pending"
	NodeRunning   NodeExecutionStatus = "running"
	NodeSuccess   NodeExecutionStatus = "success"
	NodeFailed    NodeExecutionStatus = "failed"
	NodeSkipped   NodeExecutionStatus = "skipped"
	NodeCancelled NodeExecutionStatus = "cancelled"
)

// NodeExecution is one node invocation within a workflow execution
// Maps to: node_execution table
type NodeExecution struct {
	ID          uuid.UUID           `db:"id" json:"id"`
	ExecutionID uuid.UUID           `db:"execution_id" json:"execution_id"`
	NodeID      string              `db:"node_id" json:"node_id"`
	Status      NodeExecutionStatus `db:"status" json:"status"`
	StartedAt   time.Time           `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
	InputData   json.RawMessage     `db:"input_data" json:"input_data,omitempty"`
	OutputData  json.RawMessage     `db:"output_data" json:"output_data,omitempty"`
	Error       string              `db:"error" json:"error,omitempty"`
	Attempt     int                 `db:"attempt" json:"attempt"`
}
