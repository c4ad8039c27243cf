package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability checked before engine operations
type Permission string

const (
	PermissionExecute Permission = "workflow:execute"
	PermissionRead    Permission = "workflow:read"
	PermissionWrite   Permission = "workflow:write"
	PermissionDelete  Permission = "workflow:delete"
)

// Role is a named permission bundle
// Maps to: role table
type Role struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description,omitempty"`
	Permissions []Permission `db:"permissions" json:"permissions"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// UserRole assigns a role to a user
// Maps to: user_role table
type UserRole struct {
	UserID    string    `db:"user_id" json:"user_id"`
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorkflowACL grants a user a permission on one workflow
// Maps to: workflow_acl table
type WorkflowACL struct {
	WorkflowID uuid.UUID  `db:"workflow_id" json:"workflow_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Permission Permission `db:"permission" json:"permission"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// AuditLog records one auditable engine action
// Maps to: audit_log table
type AuditLog struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Resource  string          `db:"resource" json:"resource"`
	Detail    json.RawMessage `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
