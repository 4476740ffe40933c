package hash_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillchain/internal/certificate/hash"
	"skillchain/internal/sentinel"
)

func TestCompute_KnownDigest(t *testing.T) {
	// Digest of "U1-C1-2025-01-10", pinned so the preimage format can never
	// drift without a test failure. Certificates already in circulation
	// depend on it.
	got, err := hash.Compute("U1", "C1", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, "76E1D57FC4AE1A0781174342629C22C8B435309CADDE045EEA33658F3CA4205E", got)
}

func TestCompute_Deterministic(t *testing.T) {
	first, err := hash.Compute("learner-1", "course-1", "2025-01-10")
	require.NoError(t, err)

	second, err := hash.Compute("learner-1", "course-1", "2025-01-10")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Equal(t, "266892C73476D2BD451A968317DBFFD53BEC70604E79153EA28B4357F32C2018", first)
}

func TestCompute_DistinctInputsDistinctDigests(t *testing.T) {
	a, err := hash.Compute("learner-1", "course-1", "2025-01-10")
	require.NoError(t, err)

	b, err := hash.Compute("learner-2", "course-1", "2025-01-10")
	require.NoError(t, err)

	c, err := hash.Compute("learner-1", "course-1", "2025-01-11")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCompute_RejectsEmptyInputs(t *testing.T) {
	_, err := hash.Compute("", "course-1", "2025-01-10")
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)

	_, err = hash.Compute("learner-1", "", "2025-01-10")
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
}

func TestFormatDate_UTCDateOnly(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC; the digest date must
	// not depend on the server's local zone.
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2025, 1, 9, 23, 30, 0, 0, loc)

	assert.Equal(t, "2025-01-10", hash.FormatDate(ts))
}
