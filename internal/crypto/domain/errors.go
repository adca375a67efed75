package domain

import (
	"github.com/allisson/panvault/internal/errors"
)

// Cryptographic operation error definitions.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305).
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	// All keys must be exactly 32 bytes (256 bits).
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an AEAD decryption failed authentication.
	// The cause (wrong key, tampered ciphertext, corrupted storage) is not
	// disclosed to prevent information leakage. Never retried: retrying will
	// not fix a tampered or mis-keyed blob.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrDekNotFound indicates the requested DEK record does not exist.
	ErrDekNotFound = errors.Wrap(errors.ErrNotFound, "dek not found")

	// ErrKeyUnavailable indicates the master key service or the DEK store
	// cannot currently serve a key operation.
	ErrKeyUnavailable = errors.Wrap(errors.ErrUnavailable, "key unavailable")

	// ErrNotReady indicates the keyring holds no current key yet.
	ErrNotReady = errors.Wrap(errors.ErrUnavailable, "keyring not ready")
)
