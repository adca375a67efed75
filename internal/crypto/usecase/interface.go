// Package usecase implements the DEK lifecycle business logic: rotation,
// the in-memory current key handle and plaintext key resolution for decrypts.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/crypto/domain"
)

// DekRepository defines DEK persistence operations
type DekRepository interface {
	// LockRotation takes the fleet-wide rotation lock: a row lock on the
	// rotation sentinel, held until the surrounding transaction commits.
	// Must run inside a transaction.
	LockRotation(ctx context.Context) error
	Create(ctx context.Context, dek *domain.Dek) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Dek, error)
	GetLatest(ctx context.Context) (*domain.Dek, error)
	GetRecentLocked(ctx context.Context, since time.Time) (*domain.Dek, error)
	ClaimUnlocked(ctx context.Context) (*domain.Dek, error)
	DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Keyring manages the process-wide active data key. It owns the single
// in-memory reference to the plaintext current key, rotates it on a fixed
// interval and resolves plaintext keys for stored DEK ids.
type Keyring interface {
	// Init blocks until a current key is established or ctx is cancelled,
	// retrying on a fixed interval. The process serves no traffic before
	// Init returns.
	Init(ctx context.Context) error

	// Start runs the periodic rotation loop until ctx is cancelled.
	Start(ctx context.Context) error

	// Rotate runs one rotation: adopt a recent locked DEK, claim an
	// unlocked one, or generate a fresh DEK, then swap the current handle.
	Rotate(ctx context.Context) error

	// Current returns the active key handle. A rotation may supersede the
	// handle at any time but never invalidates it: the key bytes stay
	// readable until Close. Callers must not retain handles across requests.
	Current() (*domain.CurrentKey, error)

	// ResolveKey returns the plaintext key for a stored DEK id. The caller
	// owns the returned bytes and must zero them after use.
	ResolveKey(ctx context.Context, dekID uuid.UUID) ([]byte, error)

	// Ready reports whether a current key is established.
	Ready() bool

	// Close drops the current handle and zeroes its key material.
	Close() error
}
