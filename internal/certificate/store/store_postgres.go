package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"skillchain/internal/certificate/models"
	"skillchain/internal/sentinel"
)

// PostgresStore persists issuance records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed issuance record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.IssuanceRecord) error {
	if record == nil {
		return fmt.Errorf("issuance record is required")
	}
	query := `
		INSERT INTO issuance_records (identity_id, course_id, ledger_tx_ref, credential_id, content_cid, completion_date, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identity_id, course_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		record.IdentityID,
		record.CourseID,
		record.LedgerTxRef,
		int64(record.CredentialID),
		record.ContentCID,
		record.CompletionDate,
		record.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create issuance record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create issuance record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) FindByIdentityAndCourse(ctx context.Context, identityID, courseID string) (*models.IssuanceRecord, error) {
	query := selectRecord + ` WHERE identity_id = $1 AND course_id = $2`
	return scanIssuanceRecord(s.db.QueryRowContext(ctx, query, identityID, courseID))
}

func (s *PostgresStore) FindByTxRef(ctx context.Context, txRef string) (*models.IssuanceRecord, error) {
	query := selectRecord + ` WHERE ledger_tx_ref = $1`
	return scanIssuanceRecord(s.db.QueryRowContext(ctx, query, txRef))
}

func (s *PostgresStore) FindByCredentialID(ctx context.Context, credentialID uint64) (*models.IssuanceRecord, error) {
	query := selectRecord + ` WHERE credential_id = $1`
	return scanIssuanceRecord(s.db.QueryRowContext(ctx, query, int64(credentialID)))
}

const selectRecord = `
	SELECT identity_id, course_id, ledger_tx_ref, credential_id, content_cid, completion_date, issued_at
	FROM issuance_records
`

type issuanceRow interface {
	Scan(dest ...any) error
}

func scanIssuanceRecord(row issuanceRow) (*models.IssuanceRecord, error) {
	var record models.IssuanceRecord
	var credentialID int64
	err := row.Scan(
		&record.IdentityID,
		&record.CourseID,
		&record.LedgerTxRef,
		&credentialID,
		&record.ContentCID,
		&record.CompletionDate,
		&record.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan issuance record: %w", err)
	}
	record.CredentialID = uint64(credentialID)
	return &record, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (tx ref or credential id collision outside the conflict target).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
