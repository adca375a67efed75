package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// kmsMasterKeyClient implements MasterKeyClient over a gocloud.dev secrets
// keeper. Supported key URIs: gcpkms://, awskms://, azurekeyvault://,
// hashivault://, base64key:// (development).
type kmsMasterKeyClient struct {
	keeper *secrets.Keeper
}

// NewMasterKeyClient opens a keeper for the regional master key URI.
func NewMasterKeyClient(ctx context.Context, keyURI string) (MasterKeyClient, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return &kmsMasterKeyClient{keeper: keeper}, nil
}

// GenerateDataKey returns a fresh random 32-byte data key and its wrapped form.
// The plaintext never leaves process memory; callers own it and must zero it.
func (k *kmsMasterKeyClient) GenerateDataKey(ctx context.Context) ([]byte, []byte, error) {
	plaintext := make([]byte, 32)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	wrapped, err := k.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeyUnavailable, err)
	}

	return plaintext, wrapped, nil
}

// Unwrap decrypts a wrapped data key back to plaintext.
func (k *kmsMasterKeyClient) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	plaintext, err := k.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeyUnavailable, err)
	}
	return plaintext, nil
}

// Close releases the underlying keeper.
func (k *kmsMasterKeyClient) Close() error {
	return k.keeper.Close()
}
