// Package secrets encrypts credential bundles at rest.
// The persistence layer owns this; handlers only ever see decrypted
// fields through a scoped resolver.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen       = 16
	keyLen        = 32 // AES-256
	pbkdf2Rounds  = 100_000
	minCiphertext = saltLen + 12 // salt + GCM nonce
)

var errMalformed = errors.New("malformed encrypted payload")

// Encryptor seals and opens credential field maps with AES-256-GCM.
// The key is derived from a passphrase with PBKDF2-SHA256 using a
// per-payload random salt stored alongside the ciphertext.
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor creates an encryptor from a passphrase
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	return &Encryptor{passphrase: []byte(passphrase)}, nil
}

// Encrypt seals a credential field map.
// Layout: salt || nonce || ciphertext.
func (e *Encryptor) Encrypt(fields map[string]interface{}) ([]byte, error) {
	plaintext, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential fields: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := e.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a sealed credential payload
func (e *Encryptor) Decrypt(data []byte) (map[string]interface{}, error) {
	if len(data) < minCiphertext {
		return nil, errMalformed
	}

	salt := data[:saltLen]
	gcm, err := e.aead(salt)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < saltLen+nonceSize {
		return nil, errMalformed
	}

	nonce := data[saltLen : saltLen+nonceSize]
	ciphertext := data[saltLen+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse credential fields: %w", err)
	}
	return fields, nil
}

func (e *Encryptor) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Rounds, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
