// Package repository provides data persistence implementations for decrypt audit records.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/panvault/internal/audit/domain"
	"github.com/allisson/panvault/internal/database"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// MySQLAuditRepository handles decrypt audit persistence for MySQL
type MySQLAuditRepository struct {
	db *sql.DB
}

// NewMySQLAuditRepository creates a new MySQLAuditRepository
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{
		db: db,
	}
}

// Create inserts a decrypt audit record
func (r *MySQLAuditRepository) Create(ctx context.Context, record *domain.DecryptAudit) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO decrypt_audit_logs (id, hpan, requested_by, reason, succeeded, error, signature, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query, idBytes, record.Hpan, record.RequestedBy,
		record.Reason, record.Succeeded, record.Error, record.Signature, record.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create decrypt audit record")
	}
	return nil
}

// List retrieves decrypt audit records ordered by creation time descending
func (r *MySQLAuditRepository) List(ctx context.Context, limit, offset int) ([]*domain.DecryptAudit, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, hpan, requested_by, reason, succeeded, error, signature, created_at
			  FROM decrypt_audit_logs
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list decrypt audit records")
	}
	defer rows.Close() //nolint:errcheck

	var records []*domain.DecryptAudit
	for rows.Next() {
		var record domain.DecryptAudit
		var idBytes []byte

		err := rows.Scan(&idBytes, &record.Hpan, &record.RequestedBy, &record.Reason,
			&record.Succeeded, &record.Error, &record.Signature, &record.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan decrypt audit record")
		}

		// Convert bytes back to UUID
		if err := record.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate decrypt audit records")
	}

	return records, nil
}
