package executor

import (
	"context"
	"fmt"

	"github.com/lyzr/flowd/models"
)

// credentialSource gives one node invocation scoped access to its
// declared credential. Handlers see decrypted fields only; the
// encrypted bytes never leave the persistence boundary.
type credentialSource struct {
	engine   *Engine
	nodeCred string // the credential name declared on the node
	required string // the handler's required credential type
}

func (s *credentialSource) Resolve(ctx context.Context, name string) (map[string]interface{}, error) {
	if name == "" {
		name = s.nodeCred
	}
	if name == "" {
		return nil, models.ErrCredentialMissing
	}
	if s.nodeCred != "" && name != s.nodeCred {
		return nil, fmt.Errorf("node may only resolve its declared credential %q", s.nodeCred)
	}

	credential, err := s.engine.store.GetCredentialByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.required != "" && credential.Type != s.required {
		return nil, &models.CredentialTypeError{Expected: s.required, Got: credential.Type}
	}
	if s.engine.encryptor == nil {
		return nil, fmt.Errorf("credential decryption is not configured")
	}

	fields, err := s.engine.encryptor.Decrypt(credential.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential %s: %w", name, err)
	}
	return fields, nil
}
