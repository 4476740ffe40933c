// Package store persists issuance records. The postgres store is the system
// of record; the memory store backs tests and local development, and a redis
// decorator caches verification reads. Records are immutable once written.
package store

import (
	"context"

	"skillchain/internal/certificate/models"
)

// Store is the issuance record boundary.
type Store interface {
	// Create inserts the record if and only if no record exists for the
	// same (identity, course) pair. It returns sentinel.ErrDuplicate when
	// a record already exists; the insert is atomic, so concurrent
	// invocations for the same pair produce exactly one record.
	Create(ctx context.Context, record *models.IssuanceRecord) error

	// FindByIdentityAndCourse returns the record for the pair, or
	// sentinel.ErrNotFound.
	FindByIdentityAndCourse(ctx context.Context, identityID, courseID string) (*models.IssuanceRecord, error)

	// FindByTxRef returns the record anchored by the transaction
	// reference, or sentinel.ErrNotFound.
	FindByTxRef(ctx context.Context, txRef string) (*models.IssuanceRecord, error)

	// FindByCredentialID returns the record with the ledger-assigned
	// credential id, or sentinel.ErrNotFound.
	FindByCredentialID(ctx context.Context, credentialID uint64) (*models.IssuanceRecord, error)
}
