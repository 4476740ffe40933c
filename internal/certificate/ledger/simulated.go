package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

// Simulated is an in-process ledger that mimics the registry contract's
// invariants: monotonic 1-indexed credential ids, at most one credential per
// (holder, course) pair, and unconditionally rejected transfers. It never
// touches a network; an artificial delay mimics confirmation latency.
type Simulated struct {
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	issued map[string]uint64 // holder|courseID -> credential id
}

// SimulatedOption configures the Simulated ledger.
type SimulatedOption func(*Simulated)

// WithDelay sets the artificial confirmation delay.
func WithDelay(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		s.delay = d
	}
}

// WithSimulatedLogger sets a logger for issuance logging.
func WithSimulatedLogger(logger *slog.Logger) SimulatedOption {
	return func(s *Simulated) {
		s.logger = logger
	}
}

// NewSimulated creates a fresh simulated ledger. Credential ids start at 1.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		delay:  50 * time.Millisecond,
		nextID: 1,
		issued: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit issues a credential after the artificial delay.
func (s *Simulated) Submit(ctx context.Context, req SubmitRequest) (Receipt, error) {
	if err := validateSubmit(req); err != nil {
		return Receipt{}, err
	}

	select {
	case <-ctx.Done():
		return Receipt{}, &UnavailableError{Err: ctx.Err()}
	case <-time.After(s.delay):
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.pairKey(req.HolderAddress, req.CourseID)
	if _, ok := s.issued[key]; ok {
		return Receipt{}, &RejectedError{Reason: "credential already issued for holder and course", Duplicate: true}
	}

	id := s.nextID
	s.nextID++
	s.issued[key] = id

	txRef := randomTxRef()
	if s.logger != nil {
		s.logger.Info("simulated ledger issuance",
			"credential_id", id,
			"tx_ref", txRef,
			"holder", req.HolderAddress,
			"course_id", req.CourseID,
			"learner", req.LearnerName,
			"course_title", req.CourseTitle,
		)
	}
	return Receipt{TxRef: txRef, CredentialID: id}, nil
}

// HasCredential reports whether the pair has already been issued.
func (s *Simulated) HasCredential(_ context.Context, holderAddress, courseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.issued[s.pairKey(holderAddress, courseID)]
	return ok, nil
}

// Transfer always fails: credentials are soulbound.
func (s *Simulated) Transfer(_ context.Context, _, _ string, _ uint64) error {
	return ErrNonTransferable
}

// Approve always fails: credentials are soulbound.
func (s *Simulated) Approve(_ context.Context, _ string, _ uint64) error {
	return ErrNonTransferable
}

// SetApprovalForAll always fails: credentials are soulbound.
func (s *Simulated) SetApprovalForAll(_ context.Context, _ string, _ bool) error {
	return ErrNonTransferable
}

func (s *Simulated) pairKey(holder, courseID string) string {
	return strings.ToLower(holder) + "|" + courseID
}

// randomTxRef returns a 64-hex-digit transaction reference derived the way a
// real chain derives tx hashes, keccak-256 over the payload, here random
// bytes standing in for a signed transaction.
func randomTxRef() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	sum := sha3.NewLegacyKeccak256()
	sum.Write(b[:])
	return "0x" + hex.EncodeToString(sum.Sum(nil))
}
