package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowd/common/config"
	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/nodes"
	"github.com/lyzr/flowd/registry"
	"github.com/lyzr/flowd/repository"
	"github.com/lyzr/flowd/secrets"
)

// fakeHandler lets a test inject behavior for one node type
type fakeHandler struct {
	name         string
	category     registry.Category
	requiredCred string
	fn           func(ctx context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error)
}

func (f *fakeHandler) TypeName() string { return f.name }

func (f *fakeHandler) Category() registry.Category {
	if f.category == "" {
		return registry.CategoryAction
	}
	return f.category
}

func (f *fakeHandler) Subcategory() registry.Subcategory        { return registry.SubcategoryGeneral }
func (f *fakeHandler) ParameterSchema() map[string]interface{}  { return nil }
func (f *fakeHandler) RequiredCredentialType() string           { return f.requiredCred }
func (f *fakeHandler) Validate(map[string]interface{}) error    { return nil }

func (f *fakeHandler) Execute(ctx context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	return f.fn(ctx, nodeCtx, parameters)
}

func newTestEngine(t *testing.T, store repository.Store, extra ...registry.Handler) *Engine {
	t.Helper()
	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{})
	for _, h := range extra {
		reg.MustRegister(h)
	}
	return New(Options{
		Store:    store,
		Registry: reg,
		Logger:   logger.New("error", "text"),
	})
}

func storeWorkflow(t *testing.T, store repository.Store, def *models.WorkflowDefinition, active bool) *models.Workflow {
	t.Helper()
	blob, err := def.Serialize()
	require.NoError(t, err)
	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:         uuid.New(),
		Name:       def.Name,
		Active:     active,
		Definition: blob,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateWorkflow(context.Background(), workflow))
	return workflow
}

func nodeRecords(t *testing.T, store repository.Store, executionID uuid.UUID) map[string]*models.NodeExecution {
	t.Helper()
	records, err := store.ListNodeExecutions(context.Background(), executionID)
	require.NoError(t, err)
	byNode := make(map[string]*models.NodeExecution, len(records))
	for _, r := range records {
		byNode[r.NodeID] = r
	}
	return byNode
}

func TestSingleNodeExecution(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "single",
		Nodes: []models.NodeDefinition{
			{ID: "only", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"answer": float64(42)},
			}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	require.NotNil(t, execution.FinishedAt)
	assert.JSONEq(t, `{"only":{"answer":42}}`, string(execution.OutputData))

	records := nodeRecords(t, store, execution.ID)
	require.Len(t, records, 1)
	assert.Equal(t, models.NodeSuccess, records["only"].Status)
	assert.Equal(t, 1, records["only"].Attempt)
}

func TestExecuteByName(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "by-name",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "mock"}},
	}, true)

	execution, err := engine.ExecuteByName(context.Background(), "by-name", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	_, err = engine.ExecuteByName(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, models.ErrWorkflowNotFound)
}

func TestVariableChainBetweenNodes(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "chain",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"count": float64(2), "label": "items"},
			}},
			{ID: "b", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{
					"total":   "$a.count",
					"message": "got $a.count $a.label",
				},
			}},
		},
		Connections: map[string]models.PortConnections{
			"a": {"main": {{Node: "b", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	assert.JSONEq(t, `{"b":{"total":2,"message":"got 2 items"}}`, string(execution.OutputData))
}

func TestRunInputIsVisibleAsInputVariable(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "input-ref",
		Nodes: []models.NodeDefinition{
			{ID: "echo", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"user": "$input.user"},
			}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, &RunRequest{
		Input: map[string]interface{}{"user": "ada"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{"user":"ada"}}`, string(execution.OutputData))
}

func TestFailureSkipsDownstreamAndFailsExecution(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "fail-chain",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "mock"},
			{ID: "b", Type: "mock", Parameters: map[string]interface{}{"fail": true, "error": "boom"}},
			{ID: "c", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"a": {"main": {{Node: "b", Port: "main"}}},
			"b": {"main": {{Node: "c", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Contains(t, execution.Error, "node_execution_failed")
	assert.Contains(t, execution.Error, "b")
	assert.Empty(t, execution.OutputData)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSuccess, records["a"].Status)
	assert.Equal(t, models.NodeFailed, records["b"].Status)
	assert.Equal(t, "boom", records["b"].Error)
	assert.Equal(t, models.NodeSkipped, records["c"].Status)
}

func TestConditionBranchSkipsUnselectedPath(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "branch",
		Nodes: []models.NodeDefinition{
			{ID: "start", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"total": float64(10)},
			}},
			{ID: "check", Type: "condition", Parameters: map[string]interface{}{
				"expression": "input.total > 5",
			}},
			{ID: "big", Type: "mock"},
			{ID: "small", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"start": {"main": {{Node: "check", Port: "main"}}},
			"check": {
				"true":  {{Node: "big", Port: "main"}},
				"false": {{Node: "small", Port: "main"}},
			},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSuccess, records["big"].Status)
	assert.Equal(t, models.NodeSkipped, records["small"].Status)
}

func TestParallelBranchOrderIsDeterministic(t *testing.T) {
	store := repository.NewMemory()

	var mu sync.Mutex
	var order []string
	recorder := &fakeHandler{
		name: "recorder",
		fn: func(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
			mu.Lock()
			order = append(order, nodeCtx.NodeID)
			mu.Unlock()
			return models.OK(nil), nil
		},
	}
	engine := newTestEngine(t, store, recorder)

	def := &models.WorkflowDefinition{
		Name: "fanout",
		Nodes: []models.NodeDefinition{
			{ID: "t", Type: "recorder"},
			{ID: "x", Type: "recorder"},
			{ID: "z", Type: "recorder"},
			{ID: "y", Type: "recorder"},
		},
		Connections: map[string]models.PortConnections{
			"t": {"main": {
				{Node: "y", Port: "main"},
				{Node: "x", Port: "main"},
				{Node: "z", Port: "main"},
			}},
		},
	}
	workflow := storeWorkflow(t, store, def, true)

	for i := 0; i < 3; i++ {
		mu.Lock()
		order = nil
		mu.Unlock()

		_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
		require.NoError(t, err)

		mu.Lock()
		// Definition order breaks the tie, not connection order
		assert.Equal(t, []string{"t", "x", "z", "y"}, order)
		mu.Unlock()
	}
}

func TestMergeCombinesBranches(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "diamond",
		Nodes: []models.NodeDefinition{
			{ID: "t", Type: "mock"},
			{ID: "left", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"side": "left"},
			}},
			{ID: "right", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"side": "right"},
			}},
			{ID: "join", Type: "merge"},
		},
		Connections: map[string]models.PortConnections{
			"t": {"main": {
				{Node: "left", Port: "main"},
				{Node: "right", Port: "main"},
			}},
			"left":  {"main": {{Node: "join", Port: "l"}}},
			"right": {"main": {{Node: "join", Port: "r"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	assert.JSONEq(t,
		`{"join":{"l":{"side":"left"},"r":{"side":"right"}}}`,
		string(execution.OutputData))
}

func TestMergeSkipsWhenAllBranchesDead(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	// Condition sends everything down "true"; the merge hangs off
	// "false" only and must be skipped.
	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "dead-merge",
		Nodes: []models.NodeDefinition{
			{ID: "start", Type: "mock", Parameters: map[string]interface{}{
				"output": map[string]interface{}{"n": float64(1)},
			}},
			{ID: "check", Type: "condition", Parameters: map[string]interface{}{
				"expression": "input.n == 1",
			}},
			{ID: "taken", Type: "mock"},
			{ID: "join", Type: "merge"},
		},
		Connections: map[string]models.PortConnections{
			"start": {"main": {{Node: "check", Port: "main"}}},
			"check": {
				"true":  {{Node: "taken", Port: "main"}},
				"false": {{Node: "join", Port: "a"}},
			},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSkipped, records["join"].Status)
	assert.Equal(t, models.NodeSuccess, records["taken"].Status)
}

func TestRetryWrapperRetriesDownstreamAction(t *testing.T) {
	store := repository.NewMemory()

	var mu sync.Mutex
	calls := 0
	flaky := &fakeHandler{
		name: "flaky",
		fn: func(context.Context, *models.NodeContext, map[string]interface{}) (*models.NodeOutput, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls < 3 {
				return models.Fail("transient"), nil
			}
			return models.OK(map[string]interface{}{"calls": calls}), nil
		},
	}
	engine := newTestEngine(t, store, flaky)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "retry-chain",
		Nodes: []models.NodeDefinition{
			{ID: "guard", Type: "retry", Parameters: map[string]interface{}{
				"max_attempts":  float64(3),
				"initial_delay": "1ms",
			}},
			{ID: "unstable", Type: "flaky"},
		},
		Connections: map[string]models.PortConnections{
			"guard": {"main": {{Node: "unstable", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSuccess, records["unstable"].Status)
	assert.Equal(t, 3, records["unstable"].Attempt)
}

func TestSplitIteratesAndUnionsOutputs(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "fan",
		Nodes: []models.NodeDefinition{
			{ID: "each", Type: "split", Parameters: map[string]interface{}{
				"items": []interface{}{"a", "b"},
			}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	assert.JSONEq(t, `{
		"each": {
			"count": 2,
			"iterations": {
				"0": {"item": "a", "index": 0},
				"1": {"item": "b", "index": 1}
			}
		}
	}`, string(execution.OutputData))
}

func TestInactiveWorkflowRefusesExecution(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "dormant",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "mock"}},
	}, false)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.ErrorIs(t, err, models.ErrWorkflowInactive)

	executions, listErr := store.ListExecutions(context.Background(), workflow.ID, 10)
	require.NoError(t, listErr)
	assert.Empty(t, executions)
}

func TestValidationFailureLeavesNoExecutionRecord(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "cyclic",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "mock"},
			{ID: "b", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"a": {"main": {{Node: "b", Port: "main"}}},
			"b": {"main": {{Node: "a", Port: "main"}}},
		},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.ErrorIs(t, err, models.ErrGraphCycle)

	executions, listErr := store.ListExecutions(context.Background(), workflow.ID, 10)
	require.NoError(t, listErr)
	assert.Empty(t, executions)
}

func TestUnknownNodeTypeFailsValidation(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "mystery",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "does_not_exist"}},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.ErrorIs(t, err, models.ErrNodeTypeUnknown)
}

func TestUnknownTriggerNodeRejected(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "no-such-trigger",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "mock"}},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, &RunRequest{TriggerNode: "ghost"})
	require.ErrorContains(t, err, "trigger node not found")
}

func TestTriggerSeedingSkipsOtherTriggers(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "two-triggers",
		Nodes: []models.NodeDefinition{
			{ID: "hook", Type: "webhook_trigger"},
			{ID: "cron", Type: "schedule_trigger", Parameters: map[string]interface{}{
				"cron": "0 0 * * * *",
			}},
			{ID: "work", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"hook": {"main": {{Node: "work", Port: "main"}}},
			"cron": {"main": {{Node: "work", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, &RunRequest{TriggerNode: "hook"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSuccess, records["hook"].Status)
	assert.Equal(t, models.NodeSkipped, records["cron"].Status)
	assert.Equal(t, models.NodeSuccess, records["work"].Status)
}

func TestDisabledNodeIsSkipped(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "disabled",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "mock"},
			{ID: "off", Type: "mock", Disabled: true},
			{ID: "after", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"a":   {"main": {{Node: "off", Port: "main"}}},
			"off": {"main": {{Node: "after", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeSkipped, records["off"].Status)
	// Skip propagates: the only input of "after" is dead
	assert.Equal(t, models.NodeSkipped, records["after"].Status)
}

func TestCancellation(t *testing.T) {
	store := repository.NewMemory()

	started := make(chan struct{})
	blocking := &fakeHandler{
		name: "block",
		fn: func(ctx context.Context, _ *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	engine := newTestEngine(t, store, blocking)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "long",
		Nodes: []models.NodeDefinition{
			{ID: "slow", Type: "block"},
			{ID: "next", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"slow": {"main": {{Node: "next", Port: "main"}}},
		},
	}, true)

	execution, err := engine.StartByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("node never started")
	}
	assert.True(t, engine.Cancel(execution.ID))

	deadline := time.After(5 * time.Second)
	for {
		current, err := store.GetExecution(context.Background(), execution.ID)
		require.NoError(t, err)
		if current.Status.IsTerminal() {
			assert.Equal(t, models.ExecutionCancelled, current.Status)
			records := nodeRecords(t, store, execution.ID)
			assert.Equal(t, models.NodeCancelled, records["slow"].Status)
			assert.Equal(t, models.NodeSkipped, records["next"].Status)
			return
		}
		select {
		case <-deadline:
			t.Fatal("execution never reached a terminal state")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMockChainReturnsAndEchoesParameters(t *testing.T) {
	store := repository.NewMemory()
	engine := newTestEngine(t, store)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "return-echo",
		Nodes: []models.NodeDefinition{
			{ID: "src", Type: "mock", Parameters: map[string]interface{}{
				"return": map[string]interface{}{"v": float64(7)},
			}},
			{ID: "dst", Type: "mock", Parameters: map[string]interface{}{
				"echo": "$src.v",
			}},
		},
		Connections: map[string]models.PortConnections{
			"src": {"main": {{Node: "dst", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	// The reference keeps its JSON type: 7, not "7"
	assert.JSONEq(t, `{"dst":{"echo":7}}`, string(execution.OutputData))
}

func TestExecutionTimeoutReportsNodeTimeout(t *testing.T) {
	store := repository.NewMemory()
	blocking := &fakeHandler{
		name: "block",
		fn: func(ctx context.Context, _ *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{})
	reg.MustRegister(blocking)
	engine := New(Options{
		Store:    store,
		Registry: reg,
		Logger:   logger.New("error", "text"),
		Config:   config.EngineConfig{ExecutionTimeout: 50 * time.Millisecond},
	})

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "deadline",
		Nodes: []models.NodeDefinition{
			{ID: "slow", Type: "block"},
			{ID: "next", Type: "mock"},
		},
		Connections: map[string]models.PortConnections{
			"slow": {"main": {{Node: "next", Port: "main"}}},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Contains(t, execution.Error, "node_execution_timeout")

	records := nodeRecords(t, store, execution.ID)
	assert.Equal(t, models.NodeFailed, records["slow"].Status)
	assert.Contains(t, records["slow"].Error, "node_execution_timeout")
	assert.Equal(t, models.NodeSkipped, records["next"].Status)
}

func TestWorkflowSettingsExecutionTimeout(t *testing.T) {
	store := repository.NewMemory()
	blocking := &fakeHandler{
		name: "block",
		fn: func(ctx context.Context, _ *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	engine := newTestEngine(t, store, blocking)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:     "settings-deadline",
		Settings: map[string]interface{}{"execution_timeout": "50ms"},
		Nodes:    []models.NodeDefinition{{ID: "slow", Type: "block"}},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Contains(t, execution.Error, "node_execution_timeout")
}

func TestCancelUnknownExecution(t *testing.T) {
	engine := newTestEngine(t, repository.NewMemory())
	assert.False(t, engine.Cancel(uuid.New()))
}

func TestMissingCredentialFailsValidation(t *testing.T) {
	store := repository.NewMemory()
	needsCred := &fakeHandler{
		name:         "private_api",
		requiredCred: "apikey",
		fn: func(context.Context, *models.NodeContext, map[string]interface{}) (*models.NodeOutput, error) {
			return models.OK(nil), nil
		},
	}
	engine := newTestEngine(t, store, needsCred)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "no-cred",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "private_api"}},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.ErrorIs(t, err, models.ErrCredentialMissing)
}

func TestCredentialTypeMismatchFailsValidation(t *testing.T) {
	store := repository.NewMemory()
	require.NoError(t, store.CreateCredential(context.Background(), &models.Credential{
		ID:   uuid.New(),
		Name: "slack-hook",
		Type: "slack",
	}))

	needsCred := &fakeHandler{
		name:         "private_api",
		requiredCred: "apikey",
		fn: func(context.Context, *models.NodeContext, map[string]interface{}) (*models.NodeOutput, error) {
			return models.OK(nil), nil
		},
	}
	engine := newTestEngine(t, store, needsCred)

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "wrong-cred",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "private_api", Credentials: "slack-hook"},
		},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	var typeErr *models.CredentialTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "apikey", typeErr.Expected)
	assert.Equal(t, "slack", typeErr.Got)
}

func TestHandlerResolvesDecryptedCredential(t *testing.T) {
	store := repository.NewMemory()

	encryptor, err := secrets.NewEncryptor("test-key")
	require.NoError(t, err)
	sealed, err := encryptor.Encrypt(map[string]interface{}{"api_key": "sk-test"})
	require.NoError(t, err)
	require.NoError(t, store.CreateCredential(context.Background(), &models.Credential{
		ID:            uuid.New(),
		Name:          "prod-key",
		Type:          "apikey",
		EncryptedData: sealed,
	}))

	var seen string
	consumer := &fakeHandler{
		name:         "private_api",
		requiredCred: "apikey",
		fn: func(ctx context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
			fields, err := nodeCtx.Credentials.Resolve(ctx, "")
			if err != nil {
				return nil, err
			}
			seen, _ = fields["api_key"].(string)
			return models.OK(nil), nil
		},
	}

	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{})
	reg.MustRegister(consumer)
	engine := New(Options{
		Store:     store,
		Registry:  reg,
		Logger:    logger.New("error", "text"),
		Encryptor: encryptor,
	})

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name: "with-cred",
		Nodes: []models.NodeDefinition{
			{ID: "a", Type: "private_api", Credentials: "prod-key"},
		},
	}, true)

	execution, err := engine.ExecuteByID(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	assert.Equal(t, "sk-test", seen)
}

func TestAuthorizationDeniedLeavesNoExecution(t *testing.T) {
	store := repository.NewMemory()
	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{})
	engine := New(Options{
		Store:    store,
		Registry: reg,
		Logger:   logger.New("error", "text"),
		Auth:     denyAll{},
	})

	workflow := storeWorkflow(t, store, &models.WorkflowDefinition{
		Name:  "private",
		Nodes: []models.NodeDefinition{{ID: "a", Type: "mock"}},
	}, true)

	_, err := engine.ExecuteByID(context.Background(), workflow.ID, &RunRequest{UserID: "mallory"})
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	executions, listErr := store.ListExecutions(context.Background(), workflow.ID, 10)
	require.NoError(t, listErr)
	assert.Empty(t, executions)
}

type denyAll struct{}

func (denyAll) Allowed(context.Context, string, uuid.UUID, models.Permission) (bool, error) {
	return false, nil
}
