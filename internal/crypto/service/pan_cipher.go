package service

import (
	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	apperrors "github.com/allisson/panvault/internal/errors"
)

// PanCipherService encrypts PANs into a single self-contained blob
// (nonce ‖ ciphertext ‖ tag), so a stored blob needs nothing but its DEK to
// decrypt. The algorithm is fixed per deployment; both supported algorithms
// use a 12-byte nonce, so blobs remain decodable across them.
type PanCipherService struct {
	aeadManager AEADManager
	algorithm   cryptoDomain.Algorithm
}

// NewPanCipher creates a PanCipherService for the given algorithm.
func NewPanCipher(aeadManager AEADManager, algorithm cryptoDomain.Algorithm) *PanCipherService {
	return &PanCipherService{
		aeadManager: aeadManager,
		algorithm:   algorithm,
	}
}

// EncryptPan authenticated-encrypts a PAN under the supplied plaintext DEK.
// A fresh random nonce is generated per call and prepended to the ciphertext.
func (p *PanCipherService) EncryptPan(pan string, key []byte) ([]byte, error) {
	aead, err := p.aeadManager.CreateCipher(key, p.algorithm)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := aead.Encrypt([]byte(pan), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt pan")
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// DecryptPan decrypts a blob produced by EncryptPan under the supplied DEK.
// Fails with ErrDecryptionFailed if the authentication tag does not verify;
// altered plaintext is never returned.
func (p *PanCipherService) DecryptPan(blob []byte, key []byte) (string, error) {
	aead, err := p.aeadManager.CreateCipher(key, p.algorithm)
	if err != nil {
		return "", err
	}

	nonceSize := aead.NonceSize()
	if len(blob) < nonceSize {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aead.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	pan := string(plaintext)
	cryptoDomain.Zero(plaintext)
	return pan, nil
}
