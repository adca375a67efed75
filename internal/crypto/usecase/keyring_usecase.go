package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/crypto/domain"
	"github.com/allisson/panvault/internal/crypto/service"
	"github.com/allisson/panvault/internal/database"
	"github.com/allisson/panvault/internal/reliability"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// Config holds keyring use case configuration
type Config struct {
	// RotationInterval is the cadence of the periodic rotation loop.
	RotationInterval time.Duration
	// RecentWindow is how recent a locked DEK must be to be adopted instead
	// of generating a new one.
	RecentWindow time.Duration
	// InitRetryInterval is the delay between initialization attempts.
	InitRetryInterval time.Duration
}

// KeyringUseCase implements the Keyring interface. It holds the only
// in-memory reference to the plaintext current key and swaps it atomically
// on rotation.
//
// Rotation runs the same three-step procedure in every process, inside one
// transaction, so that concurrent rotations across a fleet settle on a
// single DEK per rotation window:
//
//  1. Reuse: adopt the newest locked DEK inserted within the recent window.
//  2. Claim: lock the newest unlocked DEK, skipping rows locked by a
//     concurrent rotation.
//  3. Generate: ask the master key service for a fresh data key and insert
//     it already locked.
//
// The procedure opens by locking the rotation sentinel row, held until the
// transaction commits, so concurrent rotations run one at a time and at
// most one process per window reaches step 3.
type KeyringUseCase struct {
	config       Config
	txManager    database.TxManager
	dekRepo      DekRepository
	masterKey    service.MasterKeyClient
	breaker      *reliability.CircuitBreaker
	storeBreaker *reliability.CircuitBreaker
	current      atomic.Pointer[domain.CurrentKey]
	logger       *slog.Logger
}

// NewKeyringUseCase creates a new KeyringUseCase. The master key service and
// the DEK store get separate breakers so a KMS outage does not block store
// probes and vice versa.
func NewKeyringUseCase(
	config Config,
	txManager database.TxManager,
	dekRepo DekRepository,
	masterKey service.MasterKeyClient,
	breaker *reliability.CircuitBreaker,
	storeBreaker *reliability.CircuitBreaker,
	logger *slog.Logger,
) *KeyringUseCase {
	return &KeyringUseCase{
		config:       config,
		txManager:    txManager,
		dekRepo:      dekRepo,
		masterKey:    masterKey,
		breaker:      breaker,
		storeBreaker: storeBreaker,
		logger:       logger,
	}
}

// Init establishes the first current key, retrying on a fixed interval until
// it succeeds or ctx is cancelled. A database or master key outage at startup
// delays readiness instead of crashing the process.
func (uc *KeyringUseCase) Init(ctx context.Context) error {
	for {
		err := uc.adoptLatest(ctx)
		if err == nil {
			return nil
		}

		if uc.logger != nil {
			uc.logger.Error("keyring initialization failed, retrying",
				slog.Duration("retry_in", uc.config.InitRetryInterval),
				slog.Any("error", err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(uc.config.InitRetryInterval):
		}
	}
}

// adoptLatest establishes the startup key: the newest stored DEK is adopted
// when one exists and unwraps, otherwise a full rotation runs and generates
// one. Adopting instead of rotating keeps a restarting fleet on the DEK it
// was already using.
func (uc *KeyringUseCase) adoptLatest(ctx context.Context) error {
	var dek *domain.Dek
	err := uc.storeExecute(func() error {
		var err error
		dek, err = uc.dekRepo.GetLatest(ctx)
		return err
	})
	if err != nil {
		if apperrors.Is(err, domain.ErrDekNotFound) {
			return uc.Rotate(ctx)
		}
		return err
	}

	key, err := uc.unwrap(ctx, dek.WrappedKey)
	if err != nil {
		return err
	}

	uc.replace(domain.NewCurrentKey(key, dek.ID))

	if uc.logger != nil {
		uc.logger.Info("current key established", slog.String("dek_id", dek.ID.String()))
	}
	return nil
}

// Start runs the periodic rotation loop until ctx is cancelled.
func (uc *KeyringUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting key rotation loop",
			slog.Duration("interval", uc.config.RotationInterval),
		)
	}

	ticker := time.NewTicker(uc.config.RotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping key rotation loop")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := uc.Rotate(ctx); err != nil {
				// The previous key stays active; encryption continues
				// until the next attempt succeeds.
				if uc.logger != nil {
					uc.logger.Error("key rotation failed", slog.Any("error", err))
				}
			}
		}
	}
}

// Rotate runs one rotation procedure and swaps the current handle on success.
func (uc *KeyringUseCase) Rotate(ctx context.Context) error {
	var key []byte
	var dekID uuid.UUID

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		key, dekID, err = uc.acquireKey(ctx)
		return err
	})
	if err != nil {
		return err
	}

	uc.replace(domain.NewCurrentKey(key, dekID))

	if uc.logger != nil {
		uc.logger.Info("current key rotated", slog.String("dek_id", dekID.String()))
	}
	return nil
}

// acquireKey runs the three-step procedure inside the rotation transaction
// and returns the plaintext key with its DEK id.
func (uc *KeyringUseCase) acquireKey(ctx context.Context) ([]byte, uuid.UUID, error) {
	since := time.Now().Add(-uc.config.RecentWindow)

	// Serialize the procedure across the fleet with a row lock on the
	// rotation sentinel, held until the transaction commits. Without it two
	// processes hitting an empty window would both reach the generate step:
	// each one's uncommitted insert is invisible to the other and SKIP
	// LOCKED has nothing to skip.
	if err := uc.storeExecute(func() error {
		return uc.dekRepo.LockRotation(ctx)
	}); err != nil {
		return nil, uuid.Nil, err
	}

	// Step 1: another process already rotated within the window.
	var dek *domain.Dek
	err := uc.storeExecute(func() error {
		var err error
		dek, err = uc.dekRepo.GetRecentLocked(ctx, since)
		return err
	})
	if err == nil {
		key, unwrapErr := uc.unwrap(ctx, dek.WrappedKey)
		if unwrapErr == nil {
			return key, dek.ID, nil
		}
		// A recent DEK we cannot unwrap degrades to the next step rather
		// than failing the rotation outright.
		if uc.logger != nil {
			uc.logger.Warn("failed to unwrap recent dek, claiming a fresh one",
				slog.String("dek_id", dek.ID.String()),
				slog.Any("error", unwrapErr),
			)
		}
	} else if !apperrors.Is(err, domain.ErrDekNotFound) {
		return nil, uuid.Nil, err
	}

	// Step 2: claim a pre-provisioned unlocked DEK.
	err = uc.storeExecute(func() error {
		var err error
		dek, err = uc.dekRepo.ClaimUnlocked(ctx)
		return err
	})
	if err == nil {
		key, unwrapErr := uc.unwrap(ctx, dek.WrappedKey)
		if unwrapErr != nil {
			return nil, uuid.Nil, unwrapErr
		}
		return key, dek.ID, nil
	}
	if !apperrors.Is(err, domain.ErrDekNotFound) {
		return nil, uuid.Nil, err
	}

	// Step 3: generate a fresh DEK, inserted already locked.
	key, wrapped, err := uc.generateDataKey(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}

	newDek := &domain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		WrappedKey:   wrapped,
		RotationLock: true,
	}
	if err := uc.storeExecute(func() error {
		return uc.dekRepo.Create(ctx, newDek)
	}); err != nil {
		domain.Zero(key)
		return nil, uuid.Nil, err
	}

	return key, newDek.ID, nil
}

// storeExecute runs one DEK store interaction through the store breaker.
// A not-found result is a domain outcome, not a store fault, and does not
// count against the breaker.
func (uc *KeyringUseCase) storeExecute(fn func() error) error {
	var fnErr error
	if err := uc.storeBreaker.Execute(func() error {
		fnErr = fn()
		if apperrors.Is(fnErr, domain.ErrDekNotFound) {
			return nil
		}
		return fnErr
	}); err != nil && fnErr == nil {
		// The breaker rejected the call before it ran.
		return err
	}
	return fnErr
}

// unwrap decrypts a wrapped DEK through the circuit breaker.
func (uc *KeyringUseCase) unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	var key []byte
	err := uc.breaker.Execute(func() error {
		var err error
		key, err = uc.masterKey.Unwrap(ctx, wrapped)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// generateDataKey requests a fresh data key through the circuit breaker.
func (uc *KeyringUseCase) generateDataKey(ctx context.Context) (key, wrapped []byte, err error) {
	execErr := uc.breaker.Execute(func() error {
		key, wrapped, err = uc.masterKey.GenerateDataKey(ctx)
		return err
	})
	if execErr != nil {
		return nil, nil, execErr
	}
	return key, wrapped, nil
}

// Current returns the active key handle.
func (uc *KeyringUseCase) Current() (*domain.CurrentKey, error) {
	current := uc.current.Load()
	if current == nil {
		return nil, domain.ErrNotReady
	}
	return current, nil
}

// ResolveKey returns the plaintext key for a stored DEK id. The current key
// is served from memory; any other DEK is loaded and unwrapped through the
// circuit breaker.
func (uc *KeyringUseCase) ResolveKey(ctx context.Context, dekID uuid.UUID) ([]byte, error) {
	if current := uc.current.Load(); current != nil && current.DekID == dekID {
		key := make([]byte, len(current.Key))
		copy(key, current.Key)
		return key, nil
	}

	dek, err := uc.dekRepo.Get(ctx, dekID)
	if err != nil {
		return nil, err
	}

	return uc.unwrap(ctx, dek.WrappedKey)
}

// Ready reports whether a current key is established.
func (uc *KeyringUseCase) Ready() bool {
	return uc.current.Load() != nil
}

// Close drops the current handle and zeroes its key material. Only called
// at shutdown, after the servers stopped accepting work.
func (uc *KeyringUseCase) Close() error {
	previous := uc.current.Swap(nil)
	previous.Close()
	return nil
}

// replace swaps the current handle. The previous handle is left intact: a
// request that loaded it through Current may still be encrypting with it,
// so its key is only zeroed at shutdown, never on rotation.
func (uc *KeyringUseCase) replace(next *domain.CurrentKey) {
	uc.current.Store(next)
}
