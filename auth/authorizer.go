// Package auth decides whether a user may perform an engine operation.
// The scheduler calls out to an Authorizer; it never embeds ACL logic.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/repository"
)

// Authorizer answers permission checks before an execution is launched
type Authorizer interface {
	Allowed(ctx context.Context, userID string, workflowID uuid.UUID, permission models.Permission) (bool, error)
}

// AllowAll grants everything. Used when the engine runs without RBAC
// (CLI single-user mode, tests).
type AllowAll struct{}

// Allowed always returns true
func (AllowAll) Allowed(ctx context.Context, userID string, workflowID uuid.UUID, permission models.Permission) (bool, error) {
	return true, nil
}

// StoreAuthorizer checks role permissions and per-workflow grants
// against the persistence layer. An empty user id is treated as an
// internal caller and allowed.
type StoreAuthorizer struct {
	store repository.AuthStore
}

// NewStoreAuthorizer creates a store-backed authorizer
func NewStoreAuthorizer(store repository.AuthStore) *StoreAuthorizer {
	return &StoreAuthorizer{store: store}
}

// Allowed reports whether the user holds the permission globally
// (via a role) or on the specific workflow (via ACL)
func (a *StoreAuthorizer) Allowed(ctx context.Context, userID string, workflowID uuid.UUID, permission models.Permission) (bool, error) {
	if userID == "" {
		return true, nil
	}

	rolePerms, err := a.store.ListUserPermissions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load role permissions: %w", err)
	}
	for _, p := range rolePerms {
		if p == permission {
			return true, nil
		}
	}

	grants, err := a.store.ListWorkflowGrants(ctx, workflowID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load workflow grants: %w", err)
	}
	for _, p := range grants {
		if p == permission {
			return true, nil
		}
	}

	return false, nil
}
