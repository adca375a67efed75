// Package domain defines the decrypt audit log entity.
//
// Every decrypt attempt is recorded, successful or not. Records carry an
// HMAC signature so out-of-band tampering with the audit trail is
// detectable.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// DecryptAudit is one decrypt attempt. The PAN itself never appears here,
// only its HPAN.
type DecryptAudit struct {
	ID          uuid.UUID
	Hpan        string
	RequestedBy string
	Reason      string
	Succeeded   bool
	Error       *string // Failure detail, nil on success
	Signature   []byte  // HMAC-SHA256 over the canonical record
	CreatedAt   time.Time
}

// ErrSignatureInvalid is returned when an audit record's signature does not
// verify.
var ErrSignatureInvalid = apperrors.Wrap(apperrors.ErrIntegrity, "audit log signature invalid")
