package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lyzr/flowd/models"
)

// CreateCredential inserts a new credential
func (r *Postgres) CreateCredential(ctx context.Context, credential *models.Credential) error {
	query := `
		INSERT INTO credential (
			id, name, credentials_type, description, encrypted_data, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.Exec(ctx, query,
		credential.ID,
		credential.Name,
		credential.Type,
		credential.Description,
		credential.EncryptedData,
		credential.CreatedAt,
		credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetCredentialByName retrieves a credential by its unique name
func (r *Postgres) GetCredentialByName(ctx context.Context, name string) (*models.Credential, error) {
	query := `
		SELECT id, name, credentials_type, description, encrypted_data, created_at, updated_at
		FROM credential
		WHERE name = $1
	`

	credential := &models.Credential{}
	err := r.db.QueryRow(ctx, query, name).Scan(
		&credential.ID,
		&credential.Name,
		&credential.Type,
		&credential.Description,
		&credential.EncryptedData,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrCredentialMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return credential, nil
}

// ListCredentials lists credentials without their encrypted payloads
func (r *Postgres) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	query := `
		SELECT id, name, credentials_type, description, created_at, updated_at
		FROM credential
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*models.Credential
	for rows.Next() {
		credential := &models.Credential{}
		err := rows.Scan(
			&credential.ID,
			&credential.Name,
			&credential.Type,
			&credential.Description,
			&credential.CreatedAt,
			&credential.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

// DeleteCredential removes a credential
func (r *Postgres) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM credential WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrCredentialMissing, id)
	}

	return nil
}
