// Package usecase implements the PAN protection business logic: ingesting
// card sightings into encrypted storage and serving the restricted decrypt
// path with mandatory auditing.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/pan/domain"

	auditDomain "github.com/allisson/panvault/internal/audit/domain"
)

// PanRepository defines encrypted PAN persistence operations
type PanRepository interface {
	Upsert(ctx context.Context, pan *domain.EncryptedPan) error
	Get(ctx context.Context, hpan string) (*domain.EncryptedPan, error)
	DeleteLastSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountReferencing(ctx context.Context, dekID uuid.UUID) (int64, error)
}

// AuditRepository defines decrypt audit persistence operations
type AuditRepository interface {
	Create(ctx context.Context, record *auditDomain.DecryptAudit) error
	List(ctx context.Context, limit, offset int) ([]*auditDomain.DecryptAudit, error)
}

// PanUseCase defines the PAN protection business logic.
type PanUseCase interface {
	// Ingest stores one card sighting. Known cards only get their
	// last_seen_date refreshed, so delivering the same event twice is safe.
	// When hpan is non-empty it is checked against the keyed hash of pan.
	Ingest(ctx context.Context, hpan, pan string, seenAt time.Time) error

	// DecryptByHpan recovers the plaintext PAN for an HPAN. Every attempt,
	// successful or not, is written to the signed audit log.
	DecryptByHpan(ctx context.Context, hpan, requestedBy, reason string) (string, error)
}
