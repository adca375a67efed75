package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/pan/domain"
	panService "github.com/allisson/panvault/internal/pan/service"

	auditDomain "github.com/allisson/panvault/internal/audit/domain"
	auditService "github.com/allisson/panvault/internal/audit/service"
	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	cryptoService "github.com/allisson/panvault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/panvault/internal/crypto/usecase"
	apperrors "github.com/allisson/panvault/internal/errors"
)

var hpanPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// PanProtectionUseCase implements PanUseCase.
type PanProtectionUseCase struct {
	panRepo     PanRepository
	auditRepo   AuditRepository
	hasher      panService.Hasher
	cipher      cryptoService.PanCipher
	keyring     cryptoUsecase.Keyring
	auditSigner auditService.AuditSigner
	auditSecret []byte
	logger      *slog.Logger
}

// NewPanProtectionUseCase creates a new PanProtectionUseCase. The audit
// secret is the process-wide HMAC secret; the use case does not own it.
func NewPanProtectionUseCase(
	panRepo PanRepository,
	auditRepo AuditRepository,
	hasher panService.Hasher,
	cipher cryptoService.PanCipher,
	keyring cryptoUsecase.Keyring,
	auditSigner auditService.AuditSigner,
	auditSecret []byte,
	logger *slog.Logger,
) *PanProtectionUseCase {
	return &PanProtectionUseCase{
		panRepo:     panRepo,
		auditRepo:   auditRepo,
		hasher:      hasher,
		cipher:      cipher,
		keyring:     keyring,
		auditSigner: auditSigner,
		auditSecret: auditSecret,
		logger:      logger,
	}
}

// Ingest encrypts a card sighting under the current key and upserts it.
func (uc *PanProtectionUseCase) Ingest(ctx context.Context, hpan, pan string, seenAt time.Time) error {
	computed, err := uc.hasher.Hash(pan)
	if err != nil {
		return err
	}
	if hpan != "" && hpan != computed {
		return domain.ErrHpanMismatch
	}

	current, err := uc.keyring.Current()
	if err != nil {
		return err
	}

	ciphertext, err := uc.cipher.EncryptPan(pan, current.Key)
	if err != nil {
		return err
	}

	if seenAt.IsZero() {
		seenAt = time.Now()
	}

	return uc.panRepo.Upsert(ctx, &domain.EncryptedPan{
		Hpan:         computed,
		Ciphertext:   ciphertext,
		DekID:        current.DekID,
		LastSeenDate: seenAt,
	})
}

// DecryptByHpan recovers a plaintext PAN. The audit record is written for
// every attempt; a failing audit write is logged but does not mask the
// decrypt outcome.
func (uc *PanProtectionUseCase) DecryptByHpan(
	ctx context.Context,
	hpan, requestedBy, reason string,
) (string, error) {
	if !hpanPattern.MatchString(hpan) {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "invalid hpan")
	}

	pan, err := uc.decrypt(ctx, hpan)
	uc.writeAudit(ctx, hpan, requestedBy, reason, err)
	return pan, err
}

// decrypt performs the lookup, key resolution and AEAD open.
func (uc *PanProtectionUseCase) decrypt(ctx context.Context, hpan string) (string, error) {
	record, err := uc.panRepo.Get(ctx, hpan)
	if err != nil {
		return "", err
	}

	key, err := uc.keyring.ResolveKey(ctx, record.DekID)
	if err != nil {
		if apperrors.Is(err, cryptoDomain.ErrDekNotFound) {
			// The foreign key makes this unreachable unless the store was
			// modified out of band.
			return "", domain.ErrDekIntegrity
		}
		return "", err
	}
	defer cryptoDomain.Zero(key)

	return uc.cipher.DecryptPan(record.Ciphertext, key)
}

// writeAudit signs and persists one decrypt attempt.
func (uc *PanProtectionUseCase) writeAudit(ctx context.Context, hpan, requestedBy, reason string, decryptErr error) {
	record := &auditDomain.DecryptAudit{
		ID:          uuid.Must(uuid.NewV7()),
		Hpan:        hpan,
		RequestedBy: requestedBy,
		Reason:      reason,
		Succeeded:   decryptErr == nil,
		CreatedAt:   time.Now().UTC(),
	}
	if decryptErr != nil {
		msg := decryptErr.Error()
		record.Error = &msg
	}

	signature, err := uc.auditSigner.Sign(uc.auditSecret, record)
	if err != nil {
		uc.logError(ctx, "failed to sign decrypt audit record", hpan, err)
		return
	}
	record.Signature = signature

	if err := uc.auditRepo.Create(ctx, record); err != nil {
		uc.logError(ctx, "failed to write decrypt audit record", hpan, err)
	}
}

func (uc *PanProtectionUseCase) logError(ctx context.Context, msg, hpan string, err error) {
	if uc.logger != nil {
		uc.logger.ErrorContext(ctx, msg,
			slog.String("hpan", hpan),
			slog.Any("error", err),
		)
	}
}
