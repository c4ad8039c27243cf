// Package registry maps node type tags to their handlers.
// The registry is assembled once at startup and read-only afterwards.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/lyzr/flowd/models"
)

// Category classifies a node type for the scheduler
type Category string

const (
	CategoryTrigger   Category = "trigger"
	CategoryAction    Category = "action"
	CategoryControl   Category = "control"
	CategoryCondition Category = "condition"
)

// Subcategory is informational grouping for UIs and listings
type Subcategory string

const (
	SubcategoryGeneral  Subcategory = "general"
	SubcategoryAI       Subcategory = "ai"
	SubcategoryDatabase Subcategory = "database"
	SubcategoryStorage  Subcategory = "storage"
)

// Handler is the uniform node contract. Execute is the only I/O path;
// it must be safe for concurrent invocations with distinct contexts.
type Handler interface {
	TypeName() string
	Category() Category
	Subcategory() Subcategory

	// ParameterSchema returns the JSON Schema for the parameters block,
	// or nil when the handler accepts anything
	ParameterSchema() map[string]interface{}

	// RequiredCredentialType names the credential type this handler needs,
	// or "" when none
	RequiredCredentialType() string

	// Validate checks cross-field parameter rules that JSON Schema
	// cannot express
	Validate(parameters map[string]interface{}) error

	Execute(ctx context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error)
}

// Registry is a process-wide mapping from node type tag to handler
type Registry struct {
	handlers map[string]Handler
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler; duplicate type tags are a programming error
func (r *Registry) Register(h Handler) error {
	name := h.TypeName()
	if name == "" {
		return fmt.Errorf("handler has empty type name")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered: %s", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for startup wiring only.
func (r *Registry) MustRegister(h Handler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Get resolves a node type tag to its handler
func (r *Registry) Get(typeName string) (Handler, error) {
	h, exists := r.handlers[typeName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeTypeUnknown, typeName)
	}
	return h, nil
}

// Has reports whether a type tag is registered
func (r *Registry) Has(typeName string) bool {
	_, exists := r.handlers[typeName]
	return exists
}

// Types lists all registered type tags, sorted
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
