package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workflow is the stored workflow definition
// Maps to: workflow table
type Workflow struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`

	// Definition is the full graph serialized as JSON (round-trips to WorkflowDefinition)
	Definition json.RawMessage `db:"definition" json:"definition"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParseDefinition decodes the stored definition blob
func (w *Workflow) ParseDefinition() (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(w.Definition, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	return &def, nil
}

// ConnectionTarget names the receiving end of one edge
type ConnectionTarget struct {
	Node string `json:"node" yaml:"node"`
	Port string `json:"port" yaml:"port"`
}

// PortConnections maps an output port name to its targets
type PortConnections map[string][]ConnectionTarget

// WorkflowDefinition is the parsed definition blob
type WorkflowDefinition struct {
	Name        string                     `json:"name" yaml:"name"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`

	// Active is the authored activation default. It lives on the
	// workflow row, not in the stored definition blob.
	Active *bool `json:"-" yaml:"active,omitempty"`

	Nodes       []NodeDefinition           `json:"nodes" yaml:"nodes"`
	Connections map[string]PortConnections `json:"connections,omitempty" yaml:"connections,omitempty"`
	Settings    map[string]interface{}     `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// NodeDefinition is one node within a workflow definition
type NodeDefinition struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string                 `json:"type" yaml:"type"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Credentials string                 `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Disabled    bool                   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Position    []float64              `json:"position,omitempty" yaml:"position,omitempty"`
}

// Serialize encodes the definition to its stored JSON form
func (d *WorkflowDefinition) Serialize() (json.RawMessage, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow definition: %w", err)
	}
	return data, nil
}

// NodeByID returns the node definition with the given id, or nil
func (d *WorkflowDefinition) NodeByID(id string) *NodeDefinition {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}
