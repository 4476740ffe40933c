package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHolder = "0x1111111111111111111111111111111111111111"

func submitRequest(courseID string) SubmitRequest {
	return SubmitRequest{
		HolderAddress: testHolder,
		CourseID:      courseID,
		MetadataURI:   "https://gateway.example.test/ipfs/QmMeta",
		LearnerName:   "Ada Lovelace",
		CourseTitle:   "Distributed Systems",
	}
}

func TestSimulated_SubmitAssignsMonotonicIDs(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	first, err := s.Submit(ctx, submitRequest("course-1"))
	require.NoError(t, err)
	second, err := s.Submit(ctx, submitRequest("course-2"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.CredentialID)
	assert.Equal(t, uint64(2), second.CredentialID)
	assert.NotEqual(t, first.TxRef, second.TxRef)
}

func TestSimulated_TxRefShape(t *testing.T) {
	s := NewSimulated()

	receipt, err := s.Submit(context.Background(), submitRequest("course-1"))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(receipt.TxRef, "0x"))
	assert.Len(t, receipt.TxRef, 2+64)
	for _, r := range receipt.TxRef[2:] {
		assert.Contains(t, "0123456789abcdef", string(r))
	}
}

func TestSimulated_DuplicateRejected(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	_, err := s.Submit(ctx, submitRequest("course-1"))
	require.NoError(t, err)

	_, err = s.Submit(ctx, submitRequest("course-1"))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.True(t, rejected.Duplicate)
	assert.True(t, IsDuplicate(err))

	// Holder address comparison is case-insensitive.
	upper := submitRequest("course-1")
	upper.HolderAddress = strings.ToUpper(testHolder[2:])
	upper.HolderAddress = "0x" + upper.HolderAddress
	_, err = s.Submit(ctx, upper)
	assert.True(t, IsDuplicate(err))
}

func TestSimulated_HasCredential(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	exists, err := s.HasCredential(ctx, testHolder, "course-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Submit(ctx, submitRequest("course-1"))
	require.NoError(t, err)

	exists, err = s.HasCredential(ctx, testHolder, "course-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSimulated_RejectsInvalidRequests(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{name: "zero holder address", mutate: func(r *SubmitRequest) {
			r.HolderAddress = "0x0000000000000000000000000000000000000000"
		}},
		{name: "empty holder address", mutate: func(r *SubmitRequest) { r.HolderAddress = "" }},
		{name: "empty course", mutate: func(r *SubmitRequest) { r.CourseID = "" }},
		{name: "empty metadata URI", mutate: func(r *SubmitRequest) { r.MetadataURI = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitRequest("course-1")
			tt.mutate(&req)

			_, err := s.Submit(ctx, req)
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.False(t, rejected.Duplicate)
		})
	}
}

func TestSimulated_NonTransferable(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	receipt, err := s.Submit(ctx, submitRequest("course-1"))
	require.NoError(t, err)

	other := "0x2222222222222222222222222222222222222222"
	assert.ErrorIs(t, s.Transfer(ctx, testHolder, other, receipt.CredentialID), ErrNonTransferable)
	assert.ErrorIs(t, s.Approve(ctx, other, receipt.CredentialID), ErrNonTransferable)
	assert.ErrorIs(t, s.SetApprovalForAll(ctx, other, true), ErrNonTransferable)
}

func TestSimulated_SubmitHonorsContext(t *testing.T) {
	s := NewSimulated(WithDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Submit(ctx, submitRequest("course-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSimulated_ImplementsClient(t *testing.T) {
	var _ Client = NewSimulated()
}
