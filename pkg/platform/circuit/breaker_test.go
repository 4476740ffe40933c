package circuit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillchain/pkg/platform/circuit"
)

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b := circuit.New("test", circuit.WithFailureThreshold(3))

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.False(t, b.IsOpen())

	assert.True(t, b.RecordFailure(), "third failure must open the circuit")
	assert.True(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := circuit.New("test", circuit.WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure(), "count must restart after a success")
	assert.False(t, b.IsOpen())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := circuit.New("test",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(2),
		circuit.WithCooldown(15*time.Millisecond),
	)

	require.True(t, b.RecordFailure())
	assert.True(t, b.IsOpen(), "fail fast during cooldown")

	time.Sleep(20 * time.Millisecond)
	assert.False(t, b.IsOpen(), "cooldown elapsed, requests must flow again")

	assert.False(t, b.RecordSuccess(), "one success is below the close threshold")
	assert.True(t, b.RecordSuccess(), "second success must close the circuit")
	assert.False(t, b.IsOpen())
}

func TestBreaker_FailedProbeReArmsCooldown(t *testing.T) {
	b := circuit.New("test",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(15*time.Millisecond),
	)

	require.True(t, b.RecordFailure())
	time.Sleep(20 * time.Millisecond)
	require.False(t, b.IsOpen())

	assert.False(t, b.RecordFailure(), "probe failure must not report a fresh open")
	assert.True(t, b.IsOpen(), "failed probe must re-arm the cooldown")
}

func TestBreaker_Reset(t *testing.T) {
	b := circuit.New("test", circuit.WithFailureThreshold(1))

	require.True(t, b.RecordFailure())
	b.Reset()
	assert.False(t, b.IsOpen())
}
