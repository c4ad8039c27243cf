// Package repository persists workflows, executions, node executions,
// credentials and RBAC records.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/models"
)

// WorkflowStore is CRUD over stored workflow definitions
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	GetWorkflowByName(ctx context.Context, name string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, activeOnly bool) ([]*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id uuid.UUID) error
}

// ExecutionStore is CRUD over workflow executions
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error)
	ListExecutions(ctx context.Context, workflowID uuid.UUID, limit int) ([]*models.WorkflowExecution, error)
}

// NodeExecutionStore is CRUD over per-node execution records
type NodeExecutionStore interface {
	CreateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error
	UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error
	ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]*models.NodeExecution, error)
}

// CredentialStore is CRUD over encrypted credential bundles
type CredentialStore interface {
	CreateCredential(ctx context.Context, credential *models.Credential) error
	GetCredentialByName(ctx context.Context, name string) (*models.Credential, error)
	ListCredentials(ctx context.Context) ([]*models.Credential, error)
	DeleteCredential(ctx context.Context, id uuid.UUID) error
}

// AuthStore reads RBAC grants and appends audit records
type AuthStore interface {
	ListUserPermissions(ctx context.Context, userID string) ([]models.Permission, error)
	ListWorkflowGrants(ctx context.Context, workflowID uuid.UUID, userID string) ([]models.Permission, error)
	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Store aggregates every persistence concern the engine consumes
type Store interface {
	WorkflowStore
	ExecutionStore
	NodeExecutionStore
	CredentialStore
	AuthStore
}
