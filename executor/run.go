package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/events"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

type edgeState int

const (
	edgePending edgeState = iota
	edgeSatisfied
	edgeDead
)

// run holds the scheduler state for one execution. It is owned by a
// single goroutine; all persistence writes for the execution go
// through it.
type run struct {
	engine    *Engine
	workflow  *models.Workflow
	def       *models.WorkflowDefinition
	execution *models.WorkflowExecution
	req       *RunRequest
	log       *logger.Logger

	order        map[string]int
	status       map[string]models.NodeExecutionStatus
	outputs      map[string]*models.NodeOutput
	selectedPort map[string]string
	variables    map[string]interface{}
}

func newRun(engine *Engine, workflow *models.Workflow, def *models.WorkflowDefinition, execution *models.WorkflowExecution, req *RunRequest) *run {
	order := make(map[string]int, len(def.Nodes))
	status := make(map[string]models.NodeExecutionStatus, len(def.Nodes))
	for i, node := range def.Nodes {
		order[node.ID] = i
		status[node.ID] = models.NodePending
	}

	return &run{
		engine:       engine,
		workflow:     workflow,
		def:          def,
		execution:    execution,
		req:          req,
		log:          engine.log.WithExecutionID(execution.ID.String()).WithWorkflowID(workflow.ID.String()),
		order:        order,
		status:       status,
		outputs:      make(map[string]*models.NodeOutput),
		selectedPort: make(map[string]string),
		variables:    make(map[string]interface{}),
	}
}

// execute walks the graph to completion. Any panic is converted into a
// failed execution; partial node records are preserved.
func (r *run) execute(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic during execution", "panic", rec)
			r.finish(ctx, models.ExecutionFailed, "internal: "+fmt.Sprint(rec))
		}
	}()

	r.initVariables()
	r.seed(ctx)

	r.engine.events.Publish(ctx, &events.Event{
		Type:        events.ExecutionStarted,
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
	})

	for {
		if ctx.Err() != nil {
			r.terminate(ctx, nil)
			return
		}

		nodeID, ok := r.nextReady(ctx)
		if !ok {
			break
		}

		if !r.runNode(ctx, nodeID) {
			// Run is over: failure, cancellation or persistence error
			return
		}
	}

	output, err := r.assembleOutput()
	if err != nil {
		r.finish(ctx, models.ExecutionFailed, "internal: "+err.Error())
		return
	}
	r.execution.OutputData = output
	r.finish(ctx, models.ExecutionSuccess, "")
}

func (r *run) initVariables() {
	input := r.req.Input
	if input == nil {
		input = map[string]interface{}{}
	}
	r.variables["input"] = input
	r.variables["context"] = map[string]interface{}{
		"execution_id": r.execution.ID.String(),
		"workflow_id":  r.workflow.ID.String(),
		"started_at":   r.execution.StartedAt.Format(time.RFC3339Nano),
	}
}

// seed skips disabled nodes and, when the run was started from a
// specific trigger, every other trigger node
func (r *run) seed(ctx context.Context) {
	for _, node := range r.def.Nodes {
		if node.Disabled {
			r.markSkipped(ctx, node.ID)
			continue
		}
		if r.req.TriggerNode == "" || node.ID == r.req.TriggerNode {
			continue
		}
		handler, err := r.engine.registry.Get(node.Type)
		if err == nil && handler.Category() == registry.CategoryTrigger && len(r.def.IncomingEdges(node.ID)) == 0 {
			r.markSkipped(ctx, node.ID)
		}
	}
}

// nextReady returns the next runnable node under the deterministic
// tie-break: definition order, then id. Nodes whose inputs can never
// be satisfied are skipped along the way.
func (r *run) nextReady(ctx context.Context) (string, bool) {
	for {
		progressed := false
		for _, node := range r.def.Nodes {
			if r.status[node.ID] != models.NodePending {
				continue
			}
			switch r.decide(node.ID) {
			case decisionReady:
				return node.ID, true
			case decisionSkip:
				r.markSkipped(ctx, node.ID)
				progressed = true
			}
		}
		if !progressed {
			return "", false
		}
	}
}

type decision int

const (
	decisionWait decision = iota
	decisionReady
	decisionSkip
)

func (r *run) decide(nodeID string) decision {
	incoming := r.def.IncomingEdges(nodeID)
	if len(incoming) == 0 {
		return decisionReady
	}

	satisfied, pending, dead := 0, 0, 0
	for _, edge := range incoming {
		switch r.edgeState(edge) {
		case edgeSatisfied:
			satisfied++
		case edgePending:
			pending++
		default:
			dead++
		}
	}

	if spec, ok := r.mergeSpec(nodeID); ok {
		return decideMerge(spec, satisfied, pending, len(incoming))
	}

	if pending > 0 {
		return decisionWait
	}
	if satisfied == 0 {
		// Every input is dead: skip propagates
		return decisionSkip
	}
	return decisionReady
}

func decideMerge(spec registry.MergeSpec, satisfied, pending, total int) decision {
	switch spec.Strategy {
	case "any":
		if satisfied >= 1 {
			return decisionReady
		}
		if pending > 0 {
			return decisionWait
		}
		return decisionSkip
	case "majority":
		if satisfied*2 > total {
			return decisionReady
		}
		if pending > 0 {
			return decisionWait
		}
		return decisionSkip
	default: // all
		if pending > 0 {
			return decisionWait
		}
		if satisfied == 0 {
			return decisionSkip
		}
		return decisionReady
	}
}

func (r *run) mergeSpec(nodeID string) (registry.MergeSpec, bool) {
	node := r.def.NodeByID(nodeID)
	handler, err := r.engine.registry.Get(node.Type)
	if err != nil {
		return registry.MergeSpec{}, false
	}
	merger, ok := handler.(registry.Merger)
	if !ok {
		return registry.MergeSpec{}, false
	}
	return merger.MergeSpec(node.Parameters), true
}

func (r *run) edgeState(edge models.Edge) edgeState {
	switch r.status[edge.From] {
	case models.NodeSuccess:
		if selected, isBranch := r.selectedPort[edge.From]; isBranch && selected != edge.FromPort {
			return edgeDead
		}
		return edgeSatisfied
	case models.NodeFailed, models.NodeSkipped, models.NodeCancelled:
		return edgeDead
	default:
		return edgePending
	}
}

// assembleInputs binds inputs[target_port] to each satisfied producer's
// output data. When several edges share a target port the values
// accumulate into a list, in deterministic edge order.
func (r *run) assembleInputs(nodeID string) map[string]interface{} {
	inputs := make(map[string]interface{})
	for _, edge := range r.def.IncomingEdges(nodeID) {
		if r.edgeState(edge) != edgeSatisfied {
			continue
		}
		output := r.outputs[edge.From]
		if output == nil {
			continue
		}
		var value interface{} = output.Data
		if existing, collision := inputs[edge.ToPort]; collision {
			if list, isList := existing.([]interface{}); isList {
				inputs[edge.ToPort] = append(list, value)
			} else {
				inputs[edge.ToPort] = []interface{}{existing, value}
			}
		} else {
			inputs[edge.ToPort] = value
		}
	}
	return inputs
}

// runNode executes one node including retries and iteration. Returns
// false when the run has terminated.
func (r *run) runNode(ctx context.Context, nodeID string) bool {
	node := r.def.NodeByID(nodeID)
	handler, err := r.engine.registry.Get(node.Type)
	if err != nil {
		r.finish(ctx, models.ExecutionFailed, err.Error())
		return false
	}

	nodeLog := r.log.WithNodeID(nodeID)
	inputs := r.assembleInputs(nodeID)
	parameters := r.engine.resolver.ResolveParameters(node.Parameters, r.variables)

	record := &models.NodeExecution{
		ID:          uuid.New(),
		ExecutionID: r.execution.ID,
		NodeID:      nodeID,
		Status:      models.NodeRunning,
		StartedAt:   time.Now().UTC(),
		Attempt:     1,
	}
	if inputJSON, err := json.Marshal(inputs); err == nil {
		record.InputData = inputJSON
	}

	if err := r.engine.store.CreateNodeExecution(ctx, record); err != nil {
		r.abortOnPersistence(ctx, "failed to create node execution", err)
		return false
	}
	r.status[nodeID] = models.NodeRunning

	r.engine.events.Publish(ctx, &events.Event{
		Type:        events.NodeStarted,
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		NodeID:      nodeID,
	})

	policy := r.retryPolicy(nodeID)
	nodeCtx := &models.NodeContext{
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		NodeID:      nodeID,
		StartedAt:   record.StartedAt,
		Inputs:      inputs,
		Variables:   r.variables,
		Credentials: &credentialSource{
			engine:   r.engine,
			nodeCred: node.Credentials,
			required: handler.RequiredCredentialType(),
		},
	}

	var output *models.NodeOutput
	var execErr error
	for attempt := 1; ; attempt++ {
		record.Attempt = attempt
		output, execErr = r.invoke(ctx, handler, nodeCtx, parameters, node)
		if execErr == nil && output != nil && output.Success {
			break
		}
		if ctx.Err() != nil {
			r.terminate(ctx, record)
			return false
		}
		if attempt >= policy.MaxAttempts {
			break
		}
		delay := policy.Delay(attempt)
		nodeLog.Warn("node failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", errText(output, execErr))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.terminate(ctx, record)
			return false
		}
	}

	now := time.Now().UTC()
	record.FinishedAt = &now

	if execErr != nil || output == nil || !output.Success {
		detail := errText(output, execErr)
		record.Status = models.NodeFailed
		record.Error = detail
		if err := r.engine.store.UpdateNodeExecution(ctx, record); err != nil {
			r.abortOnPersistence(ctx, "failed to record node failure", err)
			return false
		}
		r.status[nodeID] = models.NodeFailed
		r.engine.events.Publish(ctx, &events.Event{
			Type:        events.NodeFailed,
			ExecutionID: r.execution.ID,
			WorkflowID:  r.workflow.ID,
			NodeID:      nodeID,
			Detail:      map[string]interface{}{"error": detail},
		})

		var timeoutErr *models.TimeoutError
		if errors.As(execErr, &timeoutErr) {
			r.failExecution(ctx, timeoutErr.Error())
		} else {
			r.failExecution(ctx, (&models.NodeError{NodeID: nodeID, Detail: detail}).Error())
		}
		return false
	}

	if outputJSON, err := json.Marshal(output.Data); err == nil {
		record.OutputData = outputJSON
	}
	record.Status = models.NodeSuccess
	if err := r.engine.store.UpdateNodeExecution(ctx, record); err != nil {
		r.abortOnPersistence(ctx, "failed to record node success", err)
		return false
	}

	r.status[nodeID] = models.NodeSuccess
	r.outputs[nodeID] = output
	r.variables[nodeID] = output.Data

	if selector, ok := handler.(registry.BranchSelector); ok {
		if port, selected := selector.SelectedPort(output); selected {
			r.selectedPort[nodeID] = port
		}
	}

	r.engine.events.Publish(ctx, &events.Event{
		Type:        events.NodeCompleted,
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		NodeID:      nodeID,
	})
	nodeLog.Debug("node completed", "attempt", record.Attempt)

	return true
}

// invoke runs the handler once, honouring iteration and the node
// timeout, and converting panics into errors
func (r *run) invoke(ctx context.Context, handler registry.Handler, nodeCtx *models.NodeContext, parameters map[string]interface{}, node *models.NodeDefinition) (output *models.NodeOutput, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			output = nil
			err = fmt.Errorf("internal: handler panic: %v", rec)
		}
	}()

	execCtx := ctx
	if timeout := r.nodeTimeout(parameters); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if iterator, ok := handler.(registry.Iterator); ok {
		return r.iterate(execCtx, handler, iterator, nodeCtx, parameters)
	}

	output, err = handler.Execute(execCtx, nodeCtx, parameters)
	if err != nil && execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &models.TimeoutError{NodeID: node.ID}
	}
	return output, err
}

// iterate runs an Iterator handler once per item. Each iteration sees a
// fresh context with item and index variables stacked on a snapshot of
// the environment; the node's output is the union of iteration outputs
// keyed by index.
func (r *run) iterate(ctx context.Context, handler registry.Handler, iterator registry.Iterator, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	items, err := iterator.Items(nodeCtx, parameters)
	if err != nil {
		return nil, err
	}

	iterations := make(map[string]interface{}, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		scope := make(map[string]interface{}, len(nodeCtx.Variables)+2)
		for k, v := range nodeCtx.Variables {
			scope[k] = v
		}
		scope["item"] = item
		scope["index"] = i

		iterCtx := *nodeCtx
		iterCtx.Variables = scope

		iterParams := r.engine.resolver.ResolveParameters(parameters, scope)
		out, err := handler.Execute(ctx, &iterCtx, iterParams)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		if !out.Success {
			return models.Fail(fmt.Sprintf("iteration %d: %s", i, out.Error)), nil
		}
		iterations[fmt.Sprintf("%d", i)] = out.Data
	}

	return models.OK(map[string]interface{}{
		"iterations": iterations,
		"count":      len(items),
	}), nil
}

// retryPolicy finds a retry wrapper on a satisfied incoming edge.
// Without one, the node gets a single attempt.
func (r *run) retryPolicy(nodeID string) registry.RetryPolicy {
	for _, edge := range r.def.IncomingEdges(nodeID) {
		if r.edgeState(edge) != edgeSatisfied {
			continue
		}
		upstream := r.def.NodeByID(edge.From)
		handler, err := r.engine.registry.Get(upstream.Type)
		if err != nil {
			continue
		}
		if provider, ok := handler.(registry.RetryProvider); ok {
			params := r.engine.resolver.ResolveParameters(upstream.Parameters, r.variables)
			return provider.RetryPolicy(params)
		}
	}
	return registry.RetryPolicy{MaxAttempts: 1}
}

func (r *run) nodeTimeout(parameters map[string]interface{}) time.Duration {
	switch v := parameters["timeout"].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}
	return r.engine.cfg.DefaultNodeTimeout
}

// markSkipped records a skipped node. Skipped nodes carry no output.
func (r *run) markSkipped(ctx context.Context, nodeID string) {
	now := time.Now().UTC()
	record := &models.NodeExecution{
		ID:          uuid.New(),
		ExecutionID: r.execution.ID,
		NodeID:      nodeID,
		Status:      models.NodeSkipped,
		StartedAt:   now,
		FinishedAt:  &now,
		Attempt:     1,
	}
	if err := r.engine.store.CreateNodeExecution(ctx, record); err != nil {
		r.log.Warn("failed to record skipped node", "node_id", nodeID, "error", err)
	}
	r.status[nodeID] = models.NodeSkipped

	r.engine.events.Publish(ctx, &events.Event{
		Type:        events.NodeSkipped,
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		NodeID:      nodeID,
	})
}

// terminate ends the run once its context is done. Deadline expiry is
// a timeout failure; anything else is a cancellation. The record of the
// node that was running, if any, is finalized to match.
func (r *run) terminate(ctx context.Context, record *models.NodeExecution) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		errText := "node_execution_timeout: execution deadline exceeded"
		if record != nil {
			timeoutErr := &models.TimeoutError{NodeID: record.NodeID}
			errText = timeoutErr.Error()
			now := time.Now().UTC()
			record.FinishedAt = &now
			record.Status = models.NodeFailed
			record.Error = errText
			if err := r.engine.store.UpdateNodeExecution(context.WithoutCancel(ctx), record); err != nil {
				r.log.Warn("failed to record node timeout", "node_id", record.NodeID, "error", err)
			}
			r.status[record.NodeID] = models.NodeFailed
			r.engine.events.Publish(ctx, &events.Event{
				Type:        events.NodeFailed,
				ExecutionID: r.execution.ID,
				WorkflowID:  r.workflow.ID,
				NodeID:      record.NodeID,
				Detail:      map[string]interface{}{"error": errText},
			})
		}
		r.skipPending(ctx)
		r.finish(ctx, models.ExecutionFailed, errText)
		return
	}

	if record != nil {
		r.recordCancelled(ctx, record)
	}
	r.skipPending(ctx)
	r.finish(ctx, models.ExecutionCancelled, "cancelled")
}

func (r *run) recordCancelled(ctx context.Context, record *models.NodeExecution) {
	now := time.Now().UTC()
	record.FinishedAt = &now
	record.Status = models.NodeCancelled
	record.Error = "cancelled"
	if err := r.engine.store.UpdateNodeExecution(ctx, record); err != nil {
		r.log.Warn("failed to record cancelled node", "node_id", record.NodeID, "error", err)
	}
	r.status[record.NodeID] = models.NodeCancelled
}

// skipPending marks every not-yet-started node as skipped
func (r *run) skipPending(ctx context.Context) {
	for _, node := range r.def.Nodes {
		if r.status[node.ID] == models.NodePending {
			r.markSkipped(ctx, node.ID)
		}
	}
}

// failExecution skips every not-yet-started node (all of the failed
// node's downstream among them) and terminates the run
func (r *run) failExecution(ctx context.Context, errText string) {
	r.skipPending(ctx)
	r.finish(ctx, models.ExecutionFailed, errText)
}

func (r *run) abortOnPersistence(ctx context.Context, detail string, err error) {
	r.log.Error("persistence failure during run", "detail", detail, "error", err)
	perr := &models.PersistenceError{Detail: detail, Err: err}
	r.finish(ctx, models.ExecutionFailed, perr.Error())
}

// assembleOutput builds the final output: one key per terminal node
// that produced data
func (r *run) assembleOutput() (json.RawMessage, error) {
	output := make(map[string]interface{})
	for _, nodeID := range r.def.TerminalNodes() {
		if r.status[nodeID] != models.NodeSuccess {
			continue
		}
		if out := r.outputs[nodeID]; out != nil {
			output[nodeID] = out.Data
		}
	}
	return json.Marshal(output)
}

// finish durably records the terminal state. Terminal transitions
// happen exactly once; a best-effort write precedes returning control.
func (r *run) finish(ctx context.Context, status models.ExecutionStatus, errText string) {
	if r.execution.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	r.execution.Status = status
	r.execution.FinishedAt = &now
	r.execution.Error = errText
	if status != models.ExecutionSuccess {
		r.execution.OutputData = nil
	}

	// The final write must survive caller cancellation
	writeCtx := context.WithoutCancel(ctx)
	if err := r.engine.store.UpdateExecution(writeCtx, r.execution); err != nil {
		r.log.Error("failed to record terminal execution state", "status", status, "error", err)
	}

	r.engine.events.Publish(writeCtx, &events.Event{
		Type:        events.ExecutionFinished,
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		Status:      string(status),
	})

	r.log.Info("execution finished", "status", status, "error", errText)
}

func errText(output *models.NodeOutput, err error) string {
	if err != nil {
		return err.Error()
	}
	if output != nil && output.Error != "" {
		return output.Error
	}
	return "node returned no output"
}
