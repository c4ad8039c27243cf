package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/models"
)

// Memory is an in-memory Store. It backs tests and single-process
// setups without Postgres; semantics mirror the Postgres store.
type Memory struct {
	mu             sync.RWMutex
	workflows      map[uuid.UUID]*models.Workflow
	executions     map[uuid.UUID]*models.WorkflowExecution
	nodeExecutions map[uuid.UUID][]*models.NodeExecution
	credentials    map[uuid.UUID]*models.Credential
	permissions    map[string][]models.Permission
	grants         map[string][]models.Permission
	auditLog       []*models.AuditLog
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		workflows:      make(map[uuid.UUID]*models.Workflow),
		executions:     make(map[uuid.UUID]*models.WorkflowExecution),
		nodeExecutions: make(map[uuid.UUID][]*models.NodeExecution),
		credentials:    make(map[uuid.UUID]*models.Credential),
		permissions:    make(map[string][]models.Permission),
		grants:         make(map[string][]models.Permission),
	}
}

var _ Store = (*Memory)(nil)

func grantKey(workflowID uuid.UUID, userID string) string {
	return workflowID.String() + "/" + userID
}

// CreateWorkflow inserts a workflow, enforcing name uniqueness
func (m *Memory) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.workflows {
		if existing.Name == workflow.Name {
			return fmt.Errorf("workflow name already exists: %s", workflow.Name)
		}
	}

	stored := *workflow
	m.workflows[workflow.ID] = &stored
	return nil
}

// GetWorkflow retrieves a workflow by ID
func (m *Memory) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workflow, exists := m.workflows[id]
	if !exists {
		return nil, models.ErrWorkflowNotFound
	}
	copied := *workflow
	return &copied, nil
}

// GetWorkflowByName retrieves a workflow by name
func (m *Memory) GetWorkflowByName(ctx context.Context, name string) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, workflow := range m.workflows {
		if workflow.Name == name {
			copied := *workflow
			return &copied, nil
		}
	}
	return nil, models.ErrWorkflowNotFound
}

// ListWorkflows lists workflows sorted by name
func (m *Memory) ListWorkflows(ctx context.Context, activeOnly bool) ([]*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var workflows []*models.Workflow
	for _, workflow := range m.workflows {
		if activeOnly && !workflow.Active {
			continue
		}
		copied := *workflow
		workflows = append(workflows, &copied)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Name < workflows[j].Name
	})
	return workflows, nil
}

// UpdateWorkflow updates a workflow row
func (m *Memory) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[workflow.ID]; !exists {
		return models.ErrWorkflowNotFound
	}
	stored := *workflow
	m.workflows[workflow.ID] = &stored
	return nil
}

// DeleteWorkflow removes a workflow. Execution history outlives the
// workflow row.
func (m *Memory) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[id]; !exists {
		return models.ErrWorkflowNotFound
	}
	delete(m.workflows, id)
	return nil
}

// CreateExecution inserts an execution
func (m *Memory) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *execution
	m.executions[execution.ID] = &stored
	return nil
}

// UpdateExecution updates an execution
func (m *Memory) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.executions[execution.ID]; !exists {
		return models.ErrExecutionNotFound
	}
	stored := *execution
	m.executions[execution.ID] = &stored
	return nil
}

// GetExecution retrieves an execution by ID
func (m *Memory) GetExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	execution, exists := m.executions[id]
	if !exists {
		return nil, models.ErrExecutionNotFound
	}
	copied := *execution
	return &copied, nil
}

// ListExecutions lists executions of a workflow, most recent first
func (m *Memory) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit int) ([]*models.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var executions []*models.WorkflowExecution
	for _, execution := range m.executions {
		if execution.WorkflowID == workflowID {
			copied := *execution
			executions = append(executions, &copied)
		}
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})
	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}
	return executions, nil
}

// CreateNodeExecution appends a node execution record
func (m *Memory) CreateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *nodeExecution
	m.nodeExecutions[nodeExecution.ExecutionID] = append(m.nodeExecutions[nodeExecution.ExecutionID], &stored)
	return nil
}

// UpdateNodeExecution updates a node execution record in place
func (m *Memory) UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.nodeExecutions[nodeExecution.ExecutionID]
	for i, record := range records {
		if record.ID == nodeExecution.ID {
			stored := *nodeExecution
			records[i] = &stored
			return nil
		}
	}
	return fmt.Errorf("node execution not found: %s", nodeExecution.ID)
}

// ListNodeExecutions lists node executions in creation order
func (m *Memory) ListNodeExecutions(ctx context.Context, executionID uuid.UUID) ([]*models.NodeExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.nodeExecutions[executionID]
	out := make([]*models.NodeExecution, 0, len(records))
	for _, record := range records {
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

// CreateCredential inserts a credential, enforcing name uniqueness
func (m *Memory) CreateCredential(ctx context.Context, credential *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.credentials {
		if existing.Name == credential.Name {
			return fmt.Errorf("credential name already exists: %s", credential.Name)
		}
	}
	stored := *credential
	m.credentials[credential.ID] = &stored
	return nil
}

// GetCredentialByName retrieves a credential by name
func (m *Memory) GetCredentialByName(ctx context.Context, name string) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, credential := range m.credentials {
		if credential.Name == name {
			copied := *credential
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrCredentialMissing, name)
}

// ListCredentials lists credentials sorted by name, without payloads
func (m *Memory) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var credentials []*models.Credential
	for _, credential := range m.credentials {
		copied := *credential
		copied.EncryptedData = nil
		credentials = append(credentials, &copied)
	}
	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].Name < credentials[j].Name
	})
	return credentials, nil
}

// DeleteCredential removes a credential
func (m *Memory) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.credentials[id]; !exists {
		return fmt.Errorf("%w: %s", models.ErrCredentialMissing, id)
	}
	delete(m.credentials, id)
	return nil
}

// GrantPermission adds a role-level permission for a user (test/setup helper)
func (m *Memory) GrantPermission(userID string, permission models.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions[userID] = append(m.permissions[userID], permission)
}

// GrantWorkflowPermission adds a per-workflow grant (test/setup helper)
func (m *Memory) GrantWorkflowPermission(workflowID uuid.UUID, userID string, permission models.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey(workflowID, userID)
	m.grants[key] = append(m.grants[key], permission)
}

// ListUserPermissions returns a user's role permissions
func (m *Memory) ListUserPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Permission(nil), m.permissions[userID]...), nil
}

// ListWorkflowGrants returns per-workflow grants for a user
func (m *Memory) ListWorkflowGrants(ctx context.Context, workflowID uuid.UUID, userID string) ([]models.Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Permission(nil), m.grants[grantKey(workflowID, userID)]...), nil
}

// AppendAuditLog records an audit entry
func (m *Memory) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *entry
	m.auditLog = append(m.auditLog, &stored)
	return nil
}

// AuditEntries returns recorded audit entries (test helper)
func (m *Memory) AuditEntries() []*models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.AuditLog(nil), m.auditLog...)
}
