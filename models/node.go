package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NodeOutput is a handler's return value, carried on edges
type NodeOutput struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// OK builds a successful output
func OK(data map[string]interface{}) *NodeOutput {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &NodeOutput{Success: true, Data: data}
}

// Fail builds a failed output
func Fail(errText string) *NodeOutput {
	return &NodeOutput{Success: false, Error: errText}
}

// CredentialSource resolves a named credential to its decrypted fields,
// scoped to a single handler call. Handlers never see encrypted bytes.
type CredentialSource interface {
	Resolve(ctx context.Context, name string) (map[string]interface{}, error)
}

// NodeContext is the handler-visible run state for one node invocation
type NodeContext struct {
	ExecutionID uuid.UUID
	WorkflowID  uuid.UUID
	NodeID      string
	StartedAt   time.Time

	// Inputs maps input port name to the producing node's output data
	Inputs map[string]interface{}

	// Variables is the per-execution variable environment
	Variables map[string]interface{}

	// Credentials resolves the node's named credential on demand
	Credentials CredentialSource
}
