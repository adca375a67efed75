// Package service provides cryptographic services for PAN protection:
// AEAD ciphers, the PAN cipher blob format, the master key client and the
// HMAC secret source.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)

	// NonceSize returns the nonce length in bytes.
	NonceSize() int
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// MasterKeyClient wraps and unwraps data keys under the regional master key.
// The master key itself never leaves the external key management service, and
// no plaintext data key ever leaves process memory.
type MasterKeyClient interface {
	// GenerateDataKey returns a fresh random 32-byte data key together with
	// its ciphertext wrapped under the regional master key.
	GenerateDataKey(ctx context.Context) (plaintext, wrapped []byte, err error)

	// Unwrap decrypts a previously wrapped data key back to plaintext.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)

	// Close releases the underlying keeper.
	Close() error
}

// PanCipher encrypts and decrypts PANs under a supplied plaintext DEK,
// producing a single self-contained blob (nonce ‖ ciphertext ‖ tag).
type PanCipher interface {
	EncryptPan(pan string, key []byte) ([]byte, error)
	DecryptPan(blob []byte, key []byte) (string, error)
}

// SecretStore loads the process-wide keyed-hash secret from an external
// secret service. Loaded once at startup; never rotated.
type SecretStore interface {
	LoadHmacKey(ctx context.Context) ([]byte, error)
}
