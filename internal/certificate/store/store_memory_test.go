package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillchain/internal/certificate/models"
	"skillchain/internal/sentinel"
)

func testRecord(identityID, courseID string, credentialID uint64, txRef string) *models.IssuanceRecord {
	return &models.IssuanceRecord{
		IdentityID:     identityID,
		CourseID:       courseID,
		LedgerTxRef:    txRef,
		CredentialID:   credentialID,
		ContentCID:     "QmContent" + txRef[2:10],
		CompletionDate: "2025-01-10",
		IssuedAt:       time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	record := testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")

	require.NoError(t, s.Create(ctx, record))

	byPair, err := s.FindByIdentityAndCourse(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, record, byPair)

	byTx, err := s.FindByTxRef(ctx, record.LedgerTxRef)
	require.NoError(t, err)
	assert.Equal(t, record, byTx)

	byCred, err := s.FindByCredentialID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, record, byCred)
}

func TestInMemoryStore_NotFound(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.FindByIdentityAndCourse(ctx, "learner-1", "course-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.FindByTxRef(ctx, "0xmissing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.FindByCredentialID(ctx, 42)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_CreateDuplicatePair(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")))

	// Same pair with a different tx ref must be rejected.
	err := s.Create(ctx, testRecord("learner-1", "course-1", 2, "0xbbbb000000000000000000000000000000000000000000000000000000000002"))
	assert.ErrorIs(t, err, sentinel.ErrDuplicate)

	// The original record is untouched.
	got, err := s.FindByIdentityAndCourse(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.CredentialID)
}

func TestInMemoryStore_CreateConcurrentSamePair(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := testRecord("learner-1", "course-1", uint64(i+1), randomishTxRef(i))
			errs[i] = s.Create(ctx, record)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrDuplicate)
		}
	}
	assert.Equal(t, 1, created, "exactly one concurrent create should win")
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")))

	got, err := s.FindByIdentityAndCourse(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	got.CredentialID = 999

	again, err := s.FindByIdentityAndCourse(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.CredentialID)
}

func randomishTxRef(i int) string {
	return fmt.Sprintf("0x%064x", i+1)
}
