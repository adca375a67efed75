// Package repository provides data persistence implementations for encrypted PAN entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/panvault/internal/database"
	"github.com/allisson/panvault/internal/pan/domain"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// MySQLPanRepository handles encrypted PAN persistence for MySQL
type MySQLPanRepository struct {
	db *sql.DB
}

// NewMySQLPanRepository creates a new MySQLPanRepository
func NewMySQLPanRepository(db *sql.DB) *MySQLPanRepository {
	return &MySQLPanRepository{
		db: db,
	}
}

// Upsert inserts a new encrypted PAN or, when the HPAN already exists, only
// refreshes last_seen_date. The stored ciphertext and DEK reference are left
// untouched so re-ingesting a known card is idempotent.
func (r *MySQLPanRepository) Upsert(ctx context.Context, pan *domain.EncryptedPan) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO encrypted_pans (hpan, ciphertext, dek_id, last_seen_date, created_at, updated_at)
			  VALUES (?, ?, ?, ?, NOW(), NOW())
			  ON DUPLICATE KEY UPDATE
			  last_seen_date = GREATEST(last_seen_date, VALUES(last_seen_date)),
			  updated_at = NOW()`

	// Convert UUID to bytes for MySQL BINARY(16)
	dekIDBytes, err := pan.DekID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query, pan.Hpan, pan.Ciphertext, dekIDBytes, pan.LastSeenDate)
	if err != nil {
		if isMySQLForeignKeyViolation(err) {
			return domain.ErrDekIntegrity
		}
		return apperrors.Wrap(err, "failed to upsert encrypted pan")
	}
	return nil
}

// Get retrieves an encrypted PAN by HPAN
func (r *MySQLPanRepository) Get(ctx context.Context, hpan string) (*domain.EncryptedPan, error) {
	var pan domain.EncryptedPan
	querier := database.GetTx(ctx, r.db)

	query := `SELECT hpan, ciphertext, dek_id, last_seen_date, created_at, updated_at
			  FROM encrypted_pans WHERE hpan = ?`

	var dekIDBytes []byte
	err := querier.QueryRowContext(ctx, query, hpan).Scan(
		&pan.Hpan, &pan.Ciphertext, &dekIDBytes, &pan.LastSeenDate, &pan.CreatedAt, &pan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPanNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encrypted pan")
	}

	// Convert bytes back to UUID
	if err := pan.DekID.UnmarshalBinary(dekIDBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &pan, nil
}

// DeleteLastSeenBefore removes encrypted PANs whose last sighting is older
// than cutoff. Returns the number of rows deleted.
func (r *MySQLPanRepository) DeleteLastSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM encrypted_pans WHERE last_seen_date < ?`

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired encrypted pans")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return deleted, nil
}

// CountReferencing returns the number of encrypted PANs encrypted under the
// given DEK.
func (r *MySQLPanRepository) CountReferencing(ctx context.Context, dekID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM encrypted_pans WHERE dek_id = ?`

	// Convert UUID to bytes for MySQL BINARY(16)
	dekIDBytes, err := dekID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal UUID")
	}

	var count int64
	if err := querier.QueryRowContext(ctx, query, dekIDBytes).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count encrypted pans for dek")
	}
	return count, nil
}

// isMySQLForeignKeyViolation checks if the error is a MySQL foreign key violation
func isMySQLForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// MySQL: "Error 1452: Cannot add or update a child row: a foreign key constraint fails"
	return strings.Contains(errMsg, "foreign key") || strings.Contains(errMsg, "1452")
}
