package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *Zone {
	t.Helper()
	z, err := LoadZone("America/New_York")
	require.NoError(t, err)
	return z
}

func TestLoadZoneDefaultsToNewYork(t *testing.T) {
	z, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", z.Name())

	_, err = LoadZone("Mars/Olympus_Mons")
	require.Error(t, err)
}

func TestZoneRoundTripsThroughStoreFormat(t *testing.T) {
	z := newYork(t)

	in := time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-20 14:00:00", z.ToStore(in))
	assert.Equal(t, "2025-03-20 14:00:00", z.ToStore(in.In(z.loc)))

	// the driver may attach any location to a DATETIME column
	scanned := time.Date(2025, 3, 20, 14, 0, 0, 0, time.FixedZone("X", 3600))
	assert.True(t, in.Equal(z.FromStore(scanned)))
	assert.Equal(t, time.UTC, z.FromStore(scanned).Location())
}

func TestZoneKeepsOrderAcrossFallBack(t *testing.T) {
	z := newYork(t)

	// 2025-11-02 01:00-02:00 EDT is followed by 01:00-02:00 EST.
	start := time.Date(2025, 11, 2, 5, 50, 0, 0, time.UTC) // 01:50 EDT
	end := time.Date(2025, 11, 2, 6, 10, 0, 0, time.UTC)   // 01:10 EST

	assert.Less(t, z.ToStore(start), z.ToStore(end))
	assert.Equal(t, "2025-11-02T01:50:00-04:00", z.Local(start))
	assert.Equal(t, "2025-11-02T01:10:00-05:00", z.Local(end))

	firstHour := time.Date(2025, 11, 2, 5, 0, 0, 0, time.UTC)
	secondHour := time.Date(2025, 11, 2, 6, 0, 0, 0, time.UTC)
	assert.NotEqual(t, z.ToStore(firstHour), z.ToStore(secondHour))
}

func TestZoneKeepsZeroTime(t *testing.T) {
	z, err := LoadZone("UTC")
	require.NoError(t, err)
	assert.True(t, z.FromStore(time.Time{}).IsZero())
}
