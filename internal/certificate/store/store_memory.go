package store

import (
	"context"
	"fmt"
	"sync"

	"skillchain/internal/certificate/models"
	"skillchain/internal/sentinel"
)

// InMemoryStore keeps issuance records in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	byPair   map[string]*models.IssuanceRecord // keyed by "{identity}:{course}"
	byTxRef  map[string]*models.IssuanceRecord
	byCredID map[uint64]*models.IssuanceRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byPair:   make(map[string]*models.IssuanceRecord),
		byTxRef:  make(map[string]*models.IssuanceRecord),
		byCredID: make(map[uint64]*models.IssuanceRecord),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.IssuanceRecord) error {
	if record == nil {
		return fmt.Errorf("issuance record is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(record.IdentityID, record.CourseID)
	if _, exists := s.byPair[key]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byTxRef[record.LedgerTxRef]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byCredID[record.CredentialID]; exists {
		return sentinel.ErrDuplicate
	}

	stored := *record
	s.byPair[key] = &stored
	s.byTxRef[stored.LedgerTxRef] = &stored
	s.byCredID[stored.CredentialID] = &stored
	return nil
}

func (s *InMemoryStore) FindByIdentityAndCourse(_ context.Context, identityID, courseID string) (*models.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecord(s.byPair[pairKey(identityID, courseID)])
}

func (s *InMemoryStore) FindByTxRef(_ context.Context, txRef string) (*models.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecord(s.byTxRef[txRef])
}

func (s *InMemoryStore) FindByCredentialID(_ context.Context, credentialID uint64) (*models.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecord(s.byCredID[credentialID])
}

func pairKey(identityID, courseID string) string {
	return identityID + ":" + courseID
}

func copyRecord(record *models.IssuanceRecord) (*models.IssuanceRecord, error) {
	if record == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *record
	return &out, nil
}
