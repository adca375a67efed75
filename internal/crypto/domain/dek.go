// Package domain defines the core cryptographic domain models for envelope
// encryption of PANs.
//
// The key hierarchy is Master Key → DEK → PAN. The regional master key never
// leaves the external key management service; DEKs are stored wrapped and the
// plaintext DEK lives only in process memory, zeroed on every swap and on
// shutdown.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dek represents a Data Encryption Key used to encrypt PANs.
// The key material is stored wrapped under the regional master key; plaintext
// is never persisted. Records are immutable after creation except for the
// rotation lock transition false→true when a pre-seeded record is claimed
// during rotation, and are deleted only by the retention sweeper once orphaned
// and past the grace period.
type Dek struct {
	ID           uuid.UUID // Opaque time-ordered identifier (UUIDv7)
	WrappedKey   []byte    // The DEK wrapped under the regional master key
	RotationLock bool      // Marks the record as adopted for a rotation window
	InsertedAt   time.Time
}
