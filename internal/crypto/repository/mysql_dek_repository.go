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

// MySQLDekRepository handles DEK persistence for MySQL
type MySQLDekRepository struct {
	db *sql.DB
}

// NewMySQLDekRepository creates a new MySQLDekRepository
func NewMySQLDekRepository(db *sql.DB) *MySQLDekRepository {
	return &MySQLDekRepository{
		db: db,
	}
}

// LockRotation locks the rotation sentinel row until the surrounding
// transaction commits, serializing the rotation procedure across the fleet.
func (r *MySQLDekRepository) LockRotation(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id FROM rotation_locks WHERE id = 1 FOR UPDATE`

	var id int
	if err := querier.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return apperrors.Wrap(err, "failed to lock rotation sentinel")
	}
	return nil
}

// Create inserts a new DEK
func (r *MySQLDekRepository) Create(ctx context.Context, dek *domain.Dek) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO deks (id, wrapped_key, rotation_lock, inserted_at)
			  VALUES (?, ?, ?, NOW())`

	// Convert UUID to bytes for MySQL BINARY(16)
	uuidBytes, err := dek.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query, uuidBytes, dek.WrappedKey, dek.RotationLock)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek")
	}
	return nil
}

// Get retrieves a DEK by ID
func (r *MySQLDekRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks WHERE id = ?`

	// Convert UUID to bytes for MySQL BINARY(16)
	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	var idBytes []byte
	err = querier.QueryRowContext(ctx, query, uuidBytes).Scan(
		&idBytes, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get dek by id")
	}

	// Convert bytes back to UUID
	if err := dek.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &dek, nil
}

// GetLatest retrieves the newest DEK regardless of lock state.
// Returns ErrDekNotFound when the table is empty.
func (r *MySQLDekRepository) GetLatest(ctx context.Context) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  ORDER BY inserted_at DESC
			  LIMIT 1`

	var idBytes []byte
	err := querier.QueryRowContext(ctx, query).Scan(
		&idBytes, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest dek")
	}

	// Convert bytes back to UUID
	if err := dek.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &dek, nil
}

// GetRecentLocked retrieves the newest locked DEK inserted at or after since.
// Returns ErrDekNotFound when no DEK satisfies the window.
func (r *MySQLDekRepository) GetRecentLocked(ctx context.Context, since time.Time) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  WHERE rotation_lock = TRUE AND inserted_at >= ?
			  ORDER BY inserted_at DESC
			  LIMIT 1`

	var idBytes []byte
	err := querier.QueryRowContext(ctx, query, since).Scan(
		&idBytes, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get recent locked dek")
	}

	// Convert bytes back to UUID
	if err := dek.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &dek, nil
}

// ClaimUnlocked locks the newest unlocked DEK and flips its rotation lock,
// skipping rows already locked by a concurrent rotation. Must run inside a
// transaction so the row lock holds until commit.
func (r *MySQLDekRepository) ClaimUnlocked(ctx context.Context) (*domain.Dek, error) {
	var dek domain.Dek
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, wrapped_key, rotation_lock, inserted_at
			  FROM deks
			  WHERE rotation_lock = FALSE
			  ORDER BY inserted_at DESC
			  LIMIT 1
			  FOR UPDATE SKIP LOCKED`

	var idBytes []byte
	err := querier.QueryRowContext(ctx, query).Scan(
		&idBytes, &dek.WrappedKey, &dek.RotationLock, &dek.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to claim unlocked dek")
	}

	// Convert bytes back to UUID
	if err := dek.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	updateQuery := `UPDATE deks SET rotation_lock = TRUE WHERE id = ?`
	if _, err := querier.ExecContext(ctx, updateQuery, idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to lock claimed dek")
	}

	dek.RotationLock = true
	return &dek, nil
}

// DeleteOrphanedBefore removes DEKs older than cutoff that no encrypted PAN
// references anymore. Returns the number of DEKs deleted.
func (r *MySQLDekRepository) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM deks
			  WHERE inserted_at < ?
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
