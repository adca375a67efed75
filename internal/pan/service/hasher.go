// Package service provides the keyed PAN hashing used for deterministic
// lookups across regions.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/allisson/panvault/internal/pan/domain"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
)

// panPattern matches a well-formed PAN: 13 to 19 digits.
var panPattern = regexp.MustCompile(`^[0-9]{13,19}$`)

// Hasher computes the deterministic keyed hash of a PAN. Every region uses
// the same secret, so the same card always maps to the same HPAN everywhere.
type Hasher interface {
	Hash(pan string) (string, error)
}

// HmacHasher implements Hasher with HMAC-SHA256.
type HmacHasher struct {
	key []byte
}

// NewHmacHasher creates an HMAC-SHA256 hasher over the given secret key.
// The hasher owns the key; call Close to zero it on shutdown.
func NewHmacHasher(key []byte) *HmacHasher {
	return &HmacHasher{key: key}
}

// Hash validates the PAN format and returns the hex HMAC-SHA256 digest.
// A plain SHA-256 would be brute-forceable over the small PAN space; the
// keyed hash is only computable by holders of the secret.
func (h *HmacHasher) Hash(pan string) (string, error) {
	if !panPattern.MatchString(pan) {
		return "", domain.ErrInvalidPan
	}

	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(pan))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Close zeroes the secret key.
func (h *HmacHasher) Close() error {
	cryptoDomain.Zero(h.key)
	return nil
}
