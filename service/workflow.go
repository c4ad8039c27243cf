// Package service implements the management surface over workflows and
// credentials: import, update, listing and lifecycle.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/executor"
	"github.com/lyzr/flowd/loader"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/repository"
	"github.com/lyzr/flowd/secrets"
)

// WorkflowService manages stored workflows
type WorkflowService struct {
	store     repository.Store
	engine    *executor.Engine
	cache     *DefinitionCache
	encryptor *secrets.Encryptor
	log       *logger.Logger
}

// NewWorkflowService creates the service. Cache and encryptor are
// optional.
func NewWorkflowService(store repository.Store, engine *executor.Engine, cache *DefinitionCache, encryptor *secrets.Encryptor, log *logger.Logger) *WorkflowService {
	return &WorkflowService{
		store:     store,
		engine:    engine,
		cache:     cache,
		encryptor: encryptor,
		log:       log,
	}
}

// ImportYAML parses, validates and stores a YAML definition. Importing
// a name that already exists replaces its definition and bumps the
// version; the workflow id is stable across imports. A non-nil
// activate overrides the document's active key (default true).
func (s *WorkflowService) ImportYAML(ctx context.Context, data []byte, activate *bool) (*models.Workflow, error) {
	def, err := loader.Parse(data)
	if err != nil {
		return nil, err
	}
	active := true
	if def.Active != nil {
		active = *def.Active
	}
	if activate != nil {
		active = *activate
	}
	return s.Import(ctx, def, active)
}

// Import validates and stores a parsed definition
func (s *WorkflowService) Import(ctx context.Context, def *models.WorkflowDefinition, activate bool) (*models.Workflow, error) {
	if err := s.engine.ValidateDefinition(ctx, def); err != nil {
		return nil, err
	}

	blob, err := def.Serialize()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	existing, err := s.store.GetWorkflowByName(ctx, def.Name)
	switch {
	case err == nil:
		existing.Description = def.Description
		existing.Definition = blob
		existing.Active = activate
		existing.Version++
		existing.UpdatedAt = now
		if err := s.store.UpdateWorkflow(ctx, existing); err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, existing.Name)
		s.log.Info("workflow updated", "name", existing.Name, "version", existing.Version)
		return existing, nil

	case errors.Is(err, models.ErrWorkflowNotFound):
		workflow := &models.Workflow{
			ID:          uuid.New(),
			Name:        def.Name,
			Description: def.Description,
			Active:      activate,
			Definition:  blob,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateWorkflow(ctx, workflow); err != nil {
			return nil, err
		}
		s.log.Info("workflow created", "name", workflow.Name)
		return workflow, nil

	default:
		return nil, err
	}
}

// PatchDefinition applies an RFC 6902 JSON Patch to a stored
// definition. The patched definition is re-validated before it
// replaces the current one; the version is bumped.
func (s *WorkflowService) PatchDefinition(ctx context.Context, id uuid.UUID, patchDoc json.RawMessage) (*models.Workflow, error) {
	workflow, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, fmt.Errorf("invalid patch document: %w", err)
	}
	patched, err := patch.Apply(workflow.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(patched, &def); err != nil {
		return nil, fmt.Errorf("patched definition is not a valid workflow: %w", err)
	}
	if err := s.engine.ValidateDefinition(ctx, &def); err != nil {
		return nil, err
	}

	workflow.Definition = patched
	workflow.Description = def.Description
	workflow.Version++
	workflow.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, workflow.Name)
	s.log.Info("workflow patched", "name", workflow.Name, "version", workflow.Version)
	return workflow, nil
}

// SetActive flips the active flag. Inactive workflows refuse new
// executions; running ones are unaffected.
func (s *WorkflowService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Workflow, error) {
	workflow, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow.Active == active {
		return workflow, nil
	}
	workflow.Active = active
	workflow.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, workflow.Name)
	return workflow, nil
}

// Get loads a workflow by id
func (s *WorkflowService) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}

// GetByName loads a workflow by name, through the cache
func (s *WorkflowService) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	if cached := s.cache.Get(ctx, name); cached != nil {
		return cached, nil
	}
	workflow, err := s.store.GetWorkflowByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, workflow)
	return workflow, nil
}

// List returns stored workflows
func (s *WorkflowService) List(ctx context.Context, activeOnly bool) ([]*models.Workflow, error) {
	return s.store.ListWorkflows(ctx, activeOnly)
}

// Delete removes a workflow. Execution history is kept.
func (s *WorkflowService) Delete(ctx context.Context, id uuid.UUID) error {
	workflow, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, workflow.Name)
	s.log.Info("workflow deleted", "name", workflow.Name)
	return nil
}

// CreateCredential encrypts and stores a secret bundle. The plaintext
// fields exist only for the duration of this call.
func (s *WorkflowService) CreateCredential(ctx context.Context, name, credType, description string, fields map[string]interface{}) (*models.Credential, error) {
	if s.encryptor == nil {
		return nil, fmt.Errorf("credential encryption is not configured")
	}
	if name == "" || credType == "" {
		return nil, fmt.Errorf("credential name and type are required")
	}

	encrypted, err := s.encryptor.Encrypt(fields)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	credential := &models.Credential{
		ID:            uuid.New(),
		Name:          name,
		Type:          credType,
		Description:   description,
		EncryptedData: encrypted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateCredential(ctx, credential); err != nil {
		return nil, err
	}
	s.log.Info("credential created", "name", name, "type", credType)
	return credential, nil
}

// ListCredentials returns credential metadata, never secret material
func (s *WorkflowService) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	return s.store.ListCredentials(ctx)
}

// DeleteCredential removes a stored credential
func (s *WorkflowService) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteCredential(ctx, id)
}
