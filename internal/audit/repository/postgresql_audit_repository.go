// Package repository provides data persistence implementations for decrypt audit records.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/panvault/internal/audit/domain"
	"github.com/allisson/panvault/internal/database"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// PostgreSQLAuditRepository handles decrypt audit persistence for PostgreSQL
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditRepository creates a new PostgreSQLAuditRepository
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{
		db: db,
	}
}

// Create inserts a decrypt audit record
func (r *PostgreSQLAuditRepository) Create(ctx context.Context, record *domain.DecryptAudit) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO decrypt_audit_logs (id, hpan, requested_by, reason, succeeded, error, signature, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(ctx, query, record.ID, record.Hpan, record.RequestedBy,
		record.Reason, record.Succeeded, record.Error, record.Signature, record.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create decrypt audit record")
	}
	return nil
}

// List retrieves decrypt audit records ordered by creation time descending
func (r *PostgreSQLAuditRepository) List(ctx context.Context, limit, offset int) ([]*domain.DecryptAudit, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, hpan, requested_by, reason, succeeded, error, signature, created_at
			  FROM decrypt_audit_logs
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list decrypt audit records")
	}
	defer rows.Close() //nolint:errcheck

	var records []*domain.DecryptAudit
	for rows.Next() {
		var record domain.DecryptAudit

		err := rows.Scan(&record.ID, &record.Hpan, &record.RequestedBy, &record.Reason,
			&record.Succeeded, &record.Error, &record.Signature, &record.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan decrypt audit record")
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate decrypt audit records")
	}

	return records, nil
}
