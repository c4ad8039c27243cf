package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced at the engine boundary
var (
	ErrWorkflowNotFound  = errors.New("workflow_not_found")
	ErrWorkflowInactive  = errors.New("workflow_inactive")
	ErrExecutionNotFound = errors.New("execution_not_found")
	ErrNodeTypeUnknown   = errors.New("node_type_unknown")
	ErrGraphCycle        = errors.New("graph_cycle")
	ErrCredentialMissing = errors.New("credential_missing")
	ErrCancelled         = errors.New("cancelled")
	ErrNotAuthorized     = errors.New("not_authorized")
)

// ParameterError reports an invalid node parameter block
type ParameterError struct {
	NodeID string
	Detail string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("node_parameters_invalid: node %s: %s", e.NodeID, e.Detail)
}

// CredentialTypeError reports a credential whose type does not match
// the handler's requirement
type CredentialTypeError struct {
	Expected string
	Got      string
}

func (e *CredentialTypeError) Error() string {
	return fmt.Sprintf("credential_type_mismatch: expected %s, got %s", e.Expected, e.Got)
}

// NodeError reports a runtime node failure
type NodeError struct {
	NodeID string
	Detail string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node_execution_failed: node %s: %s", e.NodeID, e.Detail)
}

// TimeoutError reports a node that exceeded its time budget
type TimeoutError struct {
	NodeID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node_execution_timeout: node %s", e.NodeID)
}

// PersistenceError wraps a storage failure during a run
type PersistenceError struct {
	Detail string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence_error: %s", e.Detail)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
