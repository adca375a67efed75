// Package usecase implements the retention sweeper: expired encrypted PANs
// are deleted first, then DEKs that no surviving PAN references.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/panvault/internal/database"

	cryptoUsecase "github.com/allisson/panvault/internal/crypto/usecase"
	panUsecase "github.com/allisson/panvault/internal/pan/usecase"
)

// Config holds retention sweeper configuration
type Config struct {
	// Horizon is how long a PAN record is kept after its last sighting.
	Horizon time.Duration
	// DekGracePeriod is the minimum age of an orphaned DEK before deletion.
	// It keeps DEKs for blobs that may still be in flight.
	DekGracePeriod time.Duration
	// SweepInterval is the cadence of the background sweep loop.
	SweepInterval time.Duration
}

// Result reports one sweep outcome.
type Result struct {
	PansDeleted int64
	DeksDeleted int64
	DryRun      bool
}

// SweeperUseCase deletes expired encrypted PANs and orphaned DEKs.
type SweeperUseCase struct {
	config    Config
	txManager database.TxManager
	panRepo   panUsecase.PanRepository
	dekRepo   cryptoUsecase.DekRepository
	logger    *slog.Logger
}

// NewSweeperUseCase creates a new SweeperUseCase
func NewSweeperUseCase(
	config Config,
	txManager database.TxManager,
	panRepo panUsecase.PanRepository,
	dekRepo cryptoUsecase.DekRepository,
	logger *slog.Logger,
) *SweeperUseCase {
	return &SweeperUseCase{
		config:    config,
		txManager: txManager,
		panRepo:   panRepo,
		dekRepo:   dekRepo,
		logger:    logger,
	}
}

// Sweep runs one retention pass. Both deletes run in a single transaction so
// a DEK can never be removed while a PAN still referencing it survives. With
// dryRun set, the transaction reports counts and rolls back.
func (uc *SweeperUseCase) Sweep(ctx context.Context, dryRun bool) (*Result, error) {
	result := &Result{DryRun: dryRun}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		panCutoff := time.Now().Add(-uc.config.Horizon)
		pansDeleted, err := uc.panRepo.DeleteLastSeenBefore(ctx, panCutoff)
		if err != nil {
			return err
		}
		result.PansDeleted = pansDeleted

		dekCutoff := time.Now().Add(-uc.config.DekGracePeriod)
		deksDeleted, err := uc.dekRepo.DeleteOrphanedBefore(ctx, dekCutoff)
		if err != nil {
			return err
		}
		result.DeksDeleted = deksDeleted

		if dryRun {
			return database.ErrRollback
		}
		return nil
	})
	if err != nil && !(dryRun && database.IsRollback(err)) {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("retention sweep completed",
			slog.Int64("pans_deleted", result.PansDeleted),
			slog.Int64("deks_deleted", result.DeksDeleted),
			slog.Bool("dry_run", dryRun),
		)
	}
	return result, nil
}

// Start runs the periodic sweep loop until ctx is cancelled.
func (uc *SweeperUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting retention sweeper",
			slog.Duration("interval", uc.config.SweepInterval),
			slog.Duration("horizon", uc.config.Horizon),
		)
	}

	ticker := time.NewTicker(uc.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping retention sweeper")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.Sweep(ctx, false); err != nil {
				if uc.logger != nil {
					uc.logger.Error("retention sweep failed", slog.Any("error", err))
				}
			}
		}
	}
}
