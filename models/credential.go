package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a named, encrypted secret bundle
// Maps to: credential table
type Credential struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"credentials_type" json:"credentials_type"`
	Description string    `db:"description" json:"description,omitempty"`

	// EncryptedData is opaque to everything but the persistence layer.
	// Never logged, never serialized into execution output.
	EncryptedData []byte `db:"encrypted_data" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
