package domain

import (
	"github.com/google/uuid"
)

// CurrentKey is the in-memory handle to the DEK currently used for encryption.
// The handle is swapped atomically as a single reference on rotation; callers
// must never read Key and DekID from two separate loads. A superseded handle
// keeps its key bytes intact so in-flight encrypts finish correctly; Close is
// called once at shutdown to overwrite the plaintext.
type CurrentKey struct {
	Key   []byte    // Plaintext DEK (never persisted)
	DekID uuid.UUID // Identifier of the DEK record the key was unwrapped from
}

// NewCurrentKey creates a handle owning the given plaintext key.
func NewCurrentKey(key []byte, dekID uuid.UUID) *CurrentKey {
	return &CurrentKey{Key: key, DekID: dekID}
}

// Close overwrites the plaintext key with zero bytes.
func (c *CurrentKey) Close() {
	if c == nil {
		return
	}
	Zero(c.Key)
}
