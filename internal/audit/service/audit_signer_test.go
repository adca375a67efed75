package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/panvault/internal/audit/domain"
)

func testRecord() *domain.DecryptAudit {
	return &domain.DecryptAudit{
		ID:          uuid.Must(uuid.NewV7()),
		Hpan:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		RequestedBy: "chargeback-service",
		Reason:      "dispute-4821",
		Succeeded:   true,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestAuditSigner_SignAndVerify(t *testing.T) {
	signer := NewAuditSigner()
	secret := []byte("0123456789abcdef0123456789abcdef")

	record := testRecord()
	signature, err := signer.Sign(secret, record)
	require.NoError(t, err)
	assert.Len(t, signature, 32)

	record.Signature = signature
	assert.NoError(t, signer.Verify(secret, record))
}

func TestAuditSigner_VerifyDetectsTampering(t *testing.T) {
	signer := NewAuditSigner()
	secret := []byte("0123456789abcdef0123456789abcdef")

	record := testRecord()
	signature, err := signer.Sign(secret, record)
	require.NoError(t, err)
	record.Signature = signature

	tests := []struct {
		name   string
		mutate func(r *domain.DecryptAudit)
	}{
		{"requested_by", func(r *domain.DecryptAudit) { r.RequestedBy = "someone-else" }},
		{"reason", func(r *domain.DecryptAudit) { r.Reason = "changed" }},
		{"succeeded", func(r *domain.DecryptAudit) { r.Succeeded = false }},
		{"hpan", func(r *domain.DecryptAudit) { r.Hpan = "b" + r.Hpan[1:] }},
		{"error", func(r *domain.DecryptAudit) {
			msg := "injected"
			r.Error = &msg
		}},
		{"timestamp", func(r *domain.DecryptAudit) { r.CreatedAt = r.CreatedAt.Add(time.Second) }},
		{"signature", func(r *domain.DecryptAudit) { r.Signature[0] ^= 0x01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := *record
			tampered.Signature = append([]byte{}, record.Signature...)
			tt.mutate(&tampered)

			err := signer.Verify(secret, &tampered)
			assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
		})
	}
}

func TestAuditSigner_DifferentSecrets(t *testing.T) {
	signer := NewAuditSigner()

	record := testRecord()
	signature, err := signer.Sign([]byte("0123456789abcdef0123456789abcdef"), record)
	require.NoError(t, err)
	record.Signature = signature

	err = signer.Verify([]byte("fedcba9876543210fedcba9876543210"), record)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestAuditSigner_EmptyErrorVsNilError(t *testing.T) {
	signer := NewAuditSigner()
	secret := []byte("0123456789abcdef0123456789abcdef")

	record := testRecord()
	record.Succeeded = false

	withNil, err := signer.Sign(secret, record)
	require.NoError(t, err)

	empty := ""
	record.Error = &empty
	withEmpty, err := signer.Sign(secret, record)
	require.NoError(t, err)

	// nil and "" canonicalize identically; length prefixes keep everything
	// else unambiguous.
	assert.Equal(t, withNil, withEmpty)
}
