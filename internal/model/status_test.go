package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusReserved, StatusCheckedIn, true},
		{StatusReserved, StatusCancelled, true},
		{StatusCheckedIn, StatusCheckedOut, true},
		{StatusReserved, StatusCheckedOut, false},
		{StatusCheckedIn, StatusCancelled, false},
		{StatusCheckedIn, StatusReserved, false},
		{StatusCancelled, StatusCheckedIn, false},
		{StatusCancelled, StatusReserved, false},
		{StatusCheckedOut, StatusCheckedIn, false},
		{StatusReserved, StatusReserved, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCheckedOut.Terminal())
	assert.False(t, StatusReserved.Terminal())
	assert.False(t, StatusCheckedIn.Terminal())

	for _, s := range Statuses {
		assert.False(t, CanTransition(StatusCancelled, s))
		assert.False(t, CanTransition(StatusCheckedOut, s))
	}
}

func TestReachable(t *testing.T) {
	assert.False(t, Reachable(StatusReserved))
	assert.True(t, Reachable(StatusCheckedIn))
	assert.True(t, Reachable(StatusCheckedOut))
	assert.True(t, Reachable(StatusCancelled))
}

func TestSuperseded(t *testing.T) {
	cases := []struct {
		cur, target Status
		want        bool
	}{
		{StatusCheckedIn, StatusCheckedIn, true},
		{StatusCheckedOut, StatusCheckedIn, true},
		{StatusCancelled, StatusCheckedIn, true},
		{StatusCancelled, StatusCancelled, true},
		{StatusCheckedOut, StatusCheckedOut, true},
		{StatusCheckedIn, StatusCancelled, true},
		{StatusReserved, StatusCheckedOut, false},
		{StatusReserved, StatusCheckedIn, false},
		{StatusCancelled, StatusCheckedOut, false},
		{StatusCheckedIn, StatusReserved, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, Superseded(tc.cur, tc.target), "%s then %s", tc.cur, tc.target)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" checked_in ")
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, s)

	_, err = ParseStatus("PARKED")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESERVED, CHECKED_IN, CHECKED_OUT, CANCELLED")
}

func TestOccupyingStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusReserved, StatusCheckedIn}, OccupyingStatuses())
}

func TestNewStatusSummaryHasEveryKey(t *testing.T) {
	s := NewStatusSummary()
	require.Len(t, s, 4)
	for _, st := range Statuses {
		assert.Zero(t, s[st])
	}
}
