// Package hash computes the verification digest binding a learner, a course,
// and a completion date. The digest is advisory (certificate face, QR
// payload, audit trail); the ledger's own duplicate-prevention key is the
// (holder, course) pair, not this value.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"skillchain/internal/sentinel"
)

// DateLayout is the ISO 8601 date form used in the digest preimage.
const DateLayout = "2006-01-02"

// Compute returns the 64-character uppercase hex SHA-256 digest of
// identityID-courseID-completionDate. It is pure and deterministic:
// identical inputs always yield the identical digest, wherever it is
// recomputed. Empty identityID or courseID is a caller bug, not a runtime
// failure, and is rejected.
func Compute(identityID, courseID, completionDate string) (string, error) {
	if identityID == "" || courseID == "" {
		return "", sentinel.ErrInvalidInput
	}
	sum := sha256.Sum256([]byte(identityID + "-" + courseID + "-" + completionDate))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// FormatDate renders a timestamp as the date form used in the preimage.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
