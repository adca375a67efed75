// Package domain defines the encrypted PAN entity and its invariants.
//
// A PAN (primary account number) never appears in storage or logs in
// plaintext. Each card is stored as a single row keyed by its HPAN, the
// keyed hash of the PAN, holding the AEAD ciphertext and a reference to
// the DEK that encrypted it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EncryptedPan represents a protected card number at rest. One row per
// distinct card; re-ingesting a known card only refreshes LastSeenDate.
type EncryptedPan struct {
	Hpan         string    // Hex HMAC-SHA256 of the PAN, primary key
	Ciphertext   []byte    // AEAD blob (nonce ‖ ciphertext ‖ tag)
	DekID        uuid.UUID // DEK the blob was encrypted under
	LastSeenDate time.Time // Date of the most recent sighting, drives retention
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
