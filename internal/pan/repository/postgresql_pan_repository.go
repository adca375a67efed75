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

// PostgreSQLPanRepository handles encrypted PAN persistence for PostgreSQL
type PostgreSQLPanRepository struct {
	db *sql.DB
}

// NewPostgreSQLPanRepository creates a new PostgreSQLPanRepository
func NewPostgreSQLPanRepository(db *sql.DB) *PostgreSQLPanRepository {
	return &PostgreSQLPanRepository{
		db: db,
	}
}

// Upsert inserts a new encrypted PAN or, when the HPAN already exists, only
// refreshes last_seen_date. The stored ciphertext and DEK reference are left
// untouched so re-ingesting a known card is idempotent.
func (r *PostgreSQLPanRepository) Upsert(ctx context.Context, pan *domain.EncryptedPan) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO encrypted_pans (hpan, ciphertext, dek_id, last_seen_date, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, NOW(), NOW())
			  ON CONFLICT (hpan) DO UPDATE
			  SET last_seen_date = GREATEST(encrypted_pans.last_seen_date, EXCLUDED.last_seen_date),
			      updated_at = NOW()`

	_, err := querier.ExecContext(ctx, query, pan.Hpan, pan.Ciphertext, pan.DekID, pan.LastSeenDate)
	if err != nil {
		if isPostgreSQLForeignKeyViolation(err) {
			return domain.ErrDekIntegrity
		}
		return apperrors.Wrap(err, "failed to upsert encrypted pan")
	}
	return nil
}

// Get retrieves an encrypted PAN by HPAN
func (r *PostgreSQLPanRepository) Get(ctx context.Context, hpan string) (*domain.EncryptedPan, error) {
	var pan domain.EncryptedPan
	querier := database.GetTx(ctx, r.db)

	query := `SELECT hpan, ciphertext, dek_id, last_seen_date, created_at, updated_at
			  FROM encrypted_pans WHERE hpan = $1`

	err := querier.QueryRowContext(ctx, query, hpan).Scan(
		&pan.Hpan, &pan.Ciphertext, &pan.DekID, &pan.LastSeenDate, &pan.CreatedAt, &pan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPanNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encrypted pan")
	}

	return &pan, nil
}

// DeleteLastSeenBefore removes encrypted PANs whose last sighting is older
// than cutoff. Returns the number of rows deleted.
func (r *PostgreSQLPanRepository) DeleteLastSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM encrypted_pans WHERE last_seen_date < $1`

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
func (r *PostgreSQLPanRepository) CountReferencing(ctx context.Context, dekID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM encrypted_pans WHERE dek_id = $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, dekID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count encrypted pans for dek")
	}
	return count, nil
}

// isPostgreSQLForeignKeyViolation checks if the error is a PostgreSQL foreign key violation
func isPostgreSQLForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// PostgreSQL: "violates foreign key constraint"
	return strings.Contains(errMsg, "foreign key")
}
