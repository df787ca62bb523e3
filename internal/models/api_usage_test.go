package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAPIUsage_IncrementInNewMonthStartsAtOne(t *testing.T) {
	u := &APIUsage{
		APIName:      "numverify",
		RequestCount: 87,
		LastReset:    time.Date(2024, time.March, 30, 12, 0, 0, 0, time.UTC),
	}

	u.Increment(time.Date(2024, time.April, 1, 0, 0, 1, 0, time.UTC))

	require.Equal(t, 1, u.RequestCount)
	require.Equal(t, time.April, u.LastReset.Month())
}

func TestAPIUsage_IncrementSameMonthAccumulates(t *testing.T) {
	now := time.Date(2024, time.April, 10, 9, 0, 0, 0, time.UTC)
	u := &APIUsage{RequestCount: 4, LastReset: now.AddDate(0, 0, -5)}

	u.Increment(now)

	require.Equal(t, 5, u.RequestCount)
}

func TestAPIUsage_SameMonthDifferentYearResets(t *testing.T) {
	u := &APIUsage{RequestCount: 100, LastReset: time.Date(2023, time.May, 2, 0, 0, 0, 0, time.UTC)}

	require.False(t, u.IsLimitExceeded(100, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 0, u.RequestCount)
}

func TestAPIUsage_IsLimitExceeded(t *testing.T) {
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	u := &APIUsage{RequestCount: 99, LastReset: now}
	require.False(t, u.IsLimitExceeded(100, now))

	u.Increment(now)
	require.True(t, u.IsLimitExceeded(100, now))
}

func TestParseWorkingState(t *testing.T) {
	for _, s := range []string{"pending", "clicked", "converted", "failed"} {
		got, err := ParseWorkingState(s)
		require.NoError(t, err)
		require.Equal(t, WorkingState(s), got)
	}

	_, err := ParseWorkingState("refunded")
	require.Error(t, err)
	_, err = ParseWorkingState("")
	require.Error(t, err)
}
