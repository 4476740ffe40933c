// Package ledger submits issuance transactions to the credential registry
// contract. Two variants sit behind one Client interface: a simulated ledger
// for development and tests, and an EVM client for a real chain. The variant
// is selected once at wiring time, never per call.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// SubmitRequest carries one issuance call. LearnerName and CourseTitle are
// display-only (simulated client logging); the contract call binds holder,
// course id, and metadata URI.
type SubmitRequest struct {
	HolderAddress string
	CourseID      string
	MetadataURI   string
	LearnerName   string
	CourseTitle   string
}

// Receipt is the outcome of a confirmed issuance transaction.
type Receipt struct {
	TxRef        string
	CredentialID uint64
}

// Client is the registry contract boundary.
type Client interface {
	// Submit issues a credential and waits for confirmation. It must be
	// called at most once per logical issuance; retrying a possibly
	// broadcast transaction risks duplicate submission.
	Submit(ctx context.Context, req SubmitRequest) (Receipt, error)

	// HasCredential reports whether the holder already owns a credential
	// for the course.
	HasCredential(ctx context.Context, holderAddress, courseID string) (bool, error)
}

// ErrNonTransferable is returned by every transfer or approval entry point:
// credentials are soulbound.
var ErrNonTransferable = errors.New("credential is non-transferable")

// RejectedError is a contract-level revert: duplicate issuance, zero holder
// address, or empty course/metadata. The transaction did not take effect.
type RejectedError struct {
	Reason    string
	Duplicate bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected issuance: %s", e.Reason)
}

// UnavailableError is a network or RPC failure. The caller cannot know
// whether the transaction was broadcast, so it must not blindly retry;
// re-invoking the pipeline relies on the idempotency check plus the ledger's
// duplicate prevention.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// EventParseError means the transaction succeeded on-ledger but the issuance
// event could not be decoded, so the ledger-assigned credential id is
// unknown locally. The id must never be fabricated (e.g. from a block
// number); the caller schedules out-of-band reconciliation instead.
type EventParseError struct {
	TxRef string
	Err   error
}

func (e *EventParseError) Error() string {
	return fmt.Sprintf("issuance tx %s confirmed but event parse failed: %v", e.TxRef, e.Err)
}

func (e *EventParseError) Unwrap() error {
	return e.Err
}

// IsDuplicate reports whether err is a duplicate-issuance rejection.
func IsDuplicate(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected) && rejected.Duplicate
}

func validateSubmit(req SubmitRequest) error {
	if req.HolderAddress == "" || isZeroAddress(req.HolderAddress) {
		return &RejectedError{Reason: "zero holder address"}
	}
	if req.CourseID == "" {
		return &RejectedError{Reason: "empty course id"}
	}
	if req.MetadataURI == "" {
		return &RejectedError{Reason: "empty metadata URI"}
	}
	return nil
}

func isZeroAddress(addr string) bool {
	if len(addr) >= 2 && (addr[:2] == "0x" || addr[:2] == "0X") {
		addr = addr[2:]
	}
	for _, c := range addr {
		if c != '0' {
			return false
		}
	}
	return true
}
