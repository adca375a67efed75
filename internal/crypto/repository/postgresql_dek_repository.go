// Package repository provides data persistence implementations for DEK entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/crypto/domain"
	"github.com/allisson/panvault/internal/database"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// PostgreSQLDekRepository handles DEK persistence for PostgreSQL
type PostgreSQLDekRepository struct {
	db *sql.DB
}

// NewPostgreSQLDekRepository creates a new PostgreSQLDekRepository
func NewPostgreSQLDekRepository(db *sql.DB) *PostgreSQLDekRepository {
	return &PostgreSQLDekRepository{
		db: db,
	}
}

// LockRotation locks the rotation sentinel row until the surrounding
// transaction commits, serializing the rotation procedure across the fleet.
func (r *PostgreSQLDekRepository) LockRotation(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id FROM rotation_locks WHERE id = 1 FOR UPDATE`

	var id int
	if err := querier.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return apperrors.Wrap(err, "failed to lock rotation sentinel")
	}
	return nil
}

// Create inserts a new DEK
func (r *PostgreSQLDekRepository) Create(ctx context.Context, dek *domain.Dek) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO deks (id, wrapped_key, rotation_lock, inserted_at)
			  VALUES ($1, $2, $3, NOW())`

	_, err := querier.ExecContext(ctx, query, dek.ID, dek.WrappedKey, dek.RotationLock)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek")
	}
	return nil
}

// Get retrieves a DEK by ID
func (r *PostgreSQLDekRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks WHERE id = $1`

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&dek.ID, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get dek by id")
	}

	return &dek, nil
}

// GetLatest retrieves the newest DEK regardless of lock state.
// Returns ErrDekNotFound when the table is empty.
func (r *PostgreSQLDekRepository) GetLatest(ctx context.Context) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  ORDER BY inserted_at DESC
			  LIMIT 1`

	err := querier.QueryRowContext(ctx, query).Scan(
		&dek.ID, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest dek")
	}

	return &dek, nil
}

// GetRecentLocked retrieves the newest locked DEK inserted at or after since.
// Returns ErrDekNotFound when no DEK satisfies the window.
func (r *PostgreSQLDekRepository) GetRecentLocked(ctx context.Context, since time.Time) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  WHERE rotation_lock = TRUE AND inserted_at >= $1
			  ORDER BY inserted_at DESC
			  LIMIT 1`

	err := querier.QueryRowContext(ctx, query, since).Scan(
		&dek.ID, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get recent locked dek")
	}

	return &dek, nil
}

// ClaimUnlocked locks the newest unlocked DEK and flips its rotation lock,
// skipping rows already locked by a concurrent rotation. Must run inside a
// transaction so the row lock holds until commit.
func (r *PostgreSQLDekRepository) ClaimUnlocked(ctx context.Context) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  WHERE rotation_lock = FALSE
			  ORDER BY inserted_at DESC
			  LIMIT 1
			  FOR UPDATE SKIP LOCKED`

	err := querier.QueryRowContext(ctx, query).Scan(
		&dek.ID, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to claim unlocked dek")
	}

	updateQuery := `UPDATE deks SET rotation_lock = TRUE WHERE id = $1`
	if _, err := querier.ExecContext(ctx, updateQuery, dek.ID); err != nil {
		return nil, apperrors.Wrap(err, "failed to lock claimed dek")
	}

	dek.RotationLock = true
	return &dek, nil
}

// DeleteOrphanedBefore removes DEKs older than cutoff that no encrypted PAN
// references anymore. Returns the number of DEKs deleted.
func (r *PostgreSQLDekRepository) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM deks
			  WHERE inserted_at < $1
			  AND NOT EXISTS (
				  SELECT 1 FROM encrypted_pans WHERE encrypted_pans.dek_id = deks.id
			  )`

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete orphaned deks")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return deleted, nil
}
