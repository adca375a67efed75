package service

import (
	"context"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	apperrors "github.com/allisson/panvault/internal/errors"
)

// VaultSecretStore loads the HMAC key from a HashiCorp Vault KV v2 secret.
// The same secret is replicated to every region by the secret service itself;
// this client only ever reads it once, at startup.
type VaultSecretStore struct {
	client *vault.Client
	path   string
	field  string
}

// NewVaultSecretStore creates a Vault-backed secret store.
// The path must point at a KV v2 read endpoint (e.g. "secret/data/panvault/hmac-key").
func NewVaultSecretStore(address, token, path string) (*VaultSecretStore, error) {
	config := vault.DefaultConfig()
	config.Address = address

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSecretStore{
		client: client,
		path:   path,
		field:  "key",
	}, nil
}

// LoadHmacKey reads and decodes the 32-byte HMAC key from Vault.
func (v *VaultSecretStore) LoadHmacKey(ctx context.Context) ([]byte, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path)
	if err != nil {
		return nil, fmt.Errorf("%w: vault read failed: %v", cryptoDomain.ErrKeyUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: no secret at %s", cryptoDomain.ErrKeyUnavailable, v.path)
	}

	// KV v2 nests the payload under "data".
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]any); ok {
		data = nested
	}

	encoded, ok := data[v.field].(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q missing at %s", cryptoDomain.ErrKeyUnavailable, v.field, v.path)
	}

	return decodeHmacKey(encoded)
}

// EnvSecretStore loads the HMAC key from a base64 environment value.
// Intended for development and tests; production deployments use Vault.
type EnvSecretStore struct {
	encoded string
}

// NewEnvSecretStore creates a secret store over a base64-encoded key value.
func NewEnvSecretStore(encoded string) *EnvSecretStore {
	return &EnvSecretStore{encoded: encoded}
}

// LoadHmacKey decodes the configured 32-byte HMAC key.
func (e *EnvSecretStore) LoadHmacKey(_ context.Context) ([]byte, error) {
	if e.encoded == "" {
		return nil, apperrors.Wrap(cryptoDomain.ErrKeyUnavailable, "HMAC_KEY not set")
	}
	return decodeHmacKey(e.encoded)
}

// decodeHmacKey base64-decodes a key and enforces the 256-bit size invariant.
func decodeHmacKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 hmac key: %v", cryptoDomain.ErrInvalidKeySize, err)
	}
	if len(key) != 32 {
		cryptoDomain.Zero(key)
		return nil, fmt.Errorf("%w: hmac key must be 32 bytes, got %d", cryptoDomain.ErrInvalidKeySize, len(key))
	}
	return key, nil
}
