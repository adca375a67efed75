// Package service provides tamper-evident signing for decrypt audit records.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/allisson/panvault/internal/audit/domain"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
)

// AuditSigner signs and verifies decrypt audit records.
type AuditSigner interface {
	Sign(secret []byte, record *domain.DecryptAudit) ([]byte, error)
	Verify(secret []byte, record *domain.DecryptAudit) error
}

type auditSigner struct{}

// NewAuditSigner creates an HMAC-based audit record signer using HKDF-SHA256
// for key derivation and HMAC-SHA256 for signature generation.
func NewAuditSigner() AuditSigner {
	return &auditSigner{}
}

// deriveSigningKey uses HKDF-SHA256 to derive a 32-byte signing key from the
// process secret, separating signing use from hashing use.
// Info parameter: "decrypt-audit-signing-v1" (versioned for future algorithm changes).
func (a *auditSigner) deriveSigningKey(secret []byte) ([]byte, error) {
	info := []byte("decrypt-audit-signing-v1")
	hash := sha256.New
	hkdf := hkdf.New(hash, secret, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf, signingKey); err != nil {
		return nil, err
	}

	return signingKey, nil
}

// canonicalize converts an audit record to its canonical byte representation.
// Format: id || hpan || requested_by || reason || succeeded || error || created_at
// Uses length-prefixed encoding for variable-length fields to prevent ambiguity.
func (a *auditSigner) canonicalize(record *domain.DecryptAudit) []byte {
	buf := make([]byte, 0, 256)

	buf = append(buf, record.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(record.Hpan))
	buf = appendLengthPrefixed(buf, []byte(record.RequestedBy))
	buf = appendLengthPrefixed(buf, []byte(record.Reason))

	if record.Succeeded {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	if record.Error != nil {
		buf = appendLengthPrefixed(buf, []byte(*record.Error))
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	// Append timestamp (Unix nano for precision)
	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(record.CreatedAt.UnixNano()))
	buf = append(buf, timeBytes...)

	return buf
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	dataLen := len(data)
	if dataLen > 0xFFFFFFFF {
		panic("data length exceeds uint32 max")
	}
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(dataLen))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// Sign generates the HMAC-SHA256 signature for an audit record.
func (a *auditSigner) Sign(secret []byte, record *domain.DecryptAudit) ([]byte, error) {
	signingKey, err := a.deriveSigningKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(a.canonicalize(record))
	return mac.Sum(nil), nil
}

// Verify checks the audit record signature. Returns nil if valid,
// ErrSignatureInvalid if the record was tampered with.
func (a *auditSigner) Verify(secret []byte, record *domain.DecryptAudit) error {
	expected, err := a.Sign(secret, record)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(record.Signature, expected) {
		return domain.ErrSignatureInvalid
	}

	return nil
}
