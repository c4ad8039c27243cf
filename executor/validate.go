package executor

import (
	"context"
	"fmt"

	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/schema"
)

// ValidateDefinition checks a definition against the registry: the
// graph is structurally sound, every node type resolves, parameters
// pass the handler's schema and cross-field rules, and declared
// credentials exist with the right type. Called at import and again at
// the start of every execution.
func (e *Engine) ValidateDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	for _, node := range def.Nodes {
		handler, err := e.registry.Get(node.Type)
		if err != nil {
			return fmt.Errorf("node %s: %w", node.ID, err)
		}

		if err := schema.ValidateParameters(handler.ParameterSchema(), node.Parameters); err != nil {
			return &models.ParameterError{NodeID: node.ID, Detail: err.Error()}
		}
		if err := handler.Validate(node.Parameters); err != nil {
			return &models.ParameterError{NodeID: node.ID, Detail: err.Error()}
		}

		if required := handler.RequiredCredentialType(); required != "" {
			if node.Credentials == "" {
				return fmt.Errorf("%w: node %s requires a %s credential", models.ErrCredentialMissing, node.ID, required)
			}
			credential, err := e.store.GetCredentialByName(ctx, node.Credentials)
			if err != nil {
				return err
			}
			if credential.Type != required {
				return &models.CredentialTypeError{Expected: required, Got: credential.Type}
			}
		}
	}

	return nil
}
