// Package executor runs workflows: it walks the definition graph in
// dependency order, invokes node handlers, maintains the per-execution
// variable environment and persists the full execution history.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/auth"
	"github.com/lyzr/flowd/common/config"
	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/events"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
	"github.com/lyzr/flowd/repository"
	"github.com/lyzr/flowd/resolver"
	"github.com/lyzr/flowd/secrets"
)

// Engine schedules workflow executions
type Engine struct {
	store     repository.Store
	registry  *registry.Registry
	resolver  *resolver.Resolver
	events    events.Publisher
	auth      auth.Authorizer
	encryptor *secrets.Encryptor
	log       *logger.Logger
	cfg       config.EngineConfig

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// Options configures an Engine. Store, Registry and Logger are
// required; the rest have safe defaults.
type Options struct {
	Store     repository.Store
	Registry  *registry.Registry
	Logger    *logger.Logger
	Events    events.Publisher
	Auth      auth.Authorizer
	Encryptor *secrets.Encryptor
	Config    config.EngineConfig
}

// New creates an engine
func New(opts Options) *Engine {
	if opts.Events == nil {
		opts.Events = events.Noop{}
	}
	if opts.Auth == nil {
		opts.Auth = auth.AllowAll{}
	}
	return &Engine{
		store:     opts.Store,
		registry:  opts.Registry,
		resolver:  resolver.New(opts.Logger),
		events:    opts.Events,
		auth:      opts.Auth,
		encryptor: opts.Encryptor,
		log:       opts.Logger,
		cfg:       opts.Config,
		cancels:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// RunRequest describes one execution trigger
type RunRequest struct {
	// Input is the run input, exposed to nodes as $input
	Input map[string]interface{}

	// TriggerNode seeds only the named trigger node; other trigger
	// nodes in the workflow are skipped. Empty seeds all roots.
	TriggerNode string

	// UserID, when set, is checked against the authorizer and stamped
	// into the audit log
	UserID string

	// TriggeredBy labels the execution origin (cli, webhook, ...)
	TriggeredBy string
}

// ExecuteByID runs a workflow by id and waits for completion.
// Validation failures return an error and create no execution record;
// runtime failures are reported on the returned execution.
func (e *Engine) ExecuteByID(ctx context.Context, workflowID uuid.UUID, req *RunRequest) (*models.WorkflowExecution, error) {
	workflow, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, workflow, req)
}

// ExecuteByName runs a workflow by its unique name
func (e *Engine) ExecuteByName(ctx context.Context, name string, req *RunRequest) (*models.WorkflowExecution, error) {
	workflow, err := e.store.GetWorkflowByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, workflow, req)
}

// Cancel requests cancellation of a running execution. The currently
// running handler is cancelled at its next suspension point; pending
// nodes are skipped. Idempotent; returns false when the execution is
// not running in this process.
func (e *Engine) Cancel(executionID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, exists := e.cancels[executionID]
	if exists {
		cancel()
	}
	return exists
}

// StartByID launches an execution asynchronously. It returns once the
// execution record exists; the run continues in the background and its
// outcome is read back through the execution history.
func (e *Engine) StartByID(ctx context.Context, workflowID uuid.UUID, req *RunRequest) (*models.WorkflowExecution, error) {
	workflow, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	run, err := e.prepare(ctx, workflow, req)
	if err != nil {
		return nil, err
	}
	go e.runPrepared(context.WithoutCancel(ctx), run)
	return run.execution, nil
}

func (e *Engine) execute(ctx context.Context, workflow *models.Workflow, req *RunRequest) (*models.WorkflowExecution, error) {
	run, err := e.prepare(ctx, workflow, req)
	if err != nil {
		return nil, err
	}
	e.runPrepared(ctx, run)
	return run.execution, nil
}

// prepare validates the workflow and request and creates the execution
// record. Validation failures leave no trace in the history.
func (e *Engine) prepare(ctx context.Context, workflow *models.Workflow, req *RunRequest) (*run, error) {
	if req == nil {
		req = &RunRequest{}
	}

	if !workflow.Active {
		return nil, fmt.Errorf("%w: %s", models.ErrWorkflowInactive, workflow.Name)
	}

	if req.UserID != "" {
		allowed, err := e.auth.Allowed(ctx, req.UserID, workflow.ID, models.PermissionExecute)
		if err != nil {
			return nil, fmt.Errorf("authorization check failed: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: user %s may not execute workflow %s", models.ErrNotAuthorized, req.UserID, workflow.Name)
		}
	}

	def, err := workflow.ParseDefinition()
	if err != nil {
		return nil, fmt.Errorf("definition_invalid: %w", err)
	}
	if err := e.ValidateDefinition(ctx, def); err != nil {
		return nil, err
	}
	if req.TriggerNode != "" && def.NodeByID(req.TriggerNode) == nil {
		return nil, fmt.Errorf("trigger node not found: %s", req.TriggerNode)
	}

	execution := &models.WorkflowExecution{
		ID:          uuid.New(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionRunning,
		StartedAt:   time.Now().UTC(),
		TriggeredBy: req.TriggeredBy,
	}
	if req.Input != nil {
		inputJSON, err := json.Marshal(req.Input)
		if err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		execution.InputData = inputJSON
	}

	if err := e.store.CreateExecution(ctx, execution); err != nil {
		return nil, &models.PersistenceError{Detail: "failed to create execution", Err: err}
	}

	e.audit(ctx, req.UserID, "workflow.execute", workflow, execution)

	return newRun(e, workflow, def, execution, req), nil
}

// runPrepared walks the graph, keeping the execution cancellable for
// its duration
func (e *Engine) runPrepared(ctx context.Context, r *run) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout := e.executionTimeout(r.def); timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	e.mu.Lock()
	e.cancels[r.execution.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, r.execution.ID)
		e.mu.Unlock()
	}()

	r.execute(runCtx)
}

// executionTimeout prefers the workflow's settings.execution_timeout
// over the engine-wide default
func (e *Engine) executionTimeout(def *models.WorkflowDefinition) time.Duration {
	if raw, ok := def.Settings["execution_timeout"].(string); ok {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return e.cfg.ExecutionTimeout
}

func (e *Engine) audit(ctx context.Context, userID, action string, workflow *models.Workflow, execution *models.WorkflowExecution) {
	detail, _ := json.Marshal(map[string]interface{}{
		"workflow_name": workflow.Name,
		"execution_id":  execution.ID,
	})
	entry := &models.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Resource:  "workflow/" + workflow.ID.String(),
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AppendAuditLog(ctx, entry); err != nil {
		e.log.Warn("failed to append audit log", "action", action, "error", err)
	}
}
