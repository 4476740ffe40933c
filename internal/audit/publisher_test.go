package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_EmitSync(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)
	ctx := context.Background()

	err := p.Emit(ctx, Event{
		IdentityID: "learner-1",
		CourseID:   "course-1",
		Action:     string(EventIssuanceCompleted),
		TxRef:      "0xabc",
	})
	require.NoError(t, err)

	events, err := p.List(ctx, "learner-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(EventIssuanceCompleted), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp should be defaulted")
}

func TestPublisher_EmitAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))
	ctx := context.Background()

	for range 5 {
		require.NoError(t, p.Emit(ctx, Event{
			IdentityID: "learner-1",
			CourseID:   "course-1",
			Action:     string(EventIssuanceRequested),
		}))
	}
	p.Close()

	events, err := p.List(ctx, "learner-1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestPublisher_PreservesExplicitTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)
	ts := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Emit(context.Background(), Event{
		IdentityID: "learner-1",
		Action:     string(EventVerification),
		Timestamp:  ts,
	}))

	events, err := p.List(context.Background(), "learner-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ts, events[0].Timestamp)
}
