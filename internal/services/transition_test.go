package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
)

func TestLenientTransitions_AllowEverything(t *testing.T) {
	p := NewTransitionPolicy(false)
	require.Equal(t, "lenient", p.Name())
	for _, from := range allWorkingStates {
		for _, to := range allWorkingStates {
			require.True(t, p.Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStrictTransitions(t *testing.T) {
	p := NewTransitionPolicy(true)
	require.Equal(t, "strict", p.Name())

	allowed := []struct{ from, to models.WorkingState }{
		{models.WorkingStatePending, models.WorkingStateClicked},
		{models.WorkingStatePending, models.WorkingStateConverted},
		{models.WorkingStatePending, models.WorkingStateFailed},
		{models.WorkingStateClicked, models.WorkingStateConverted},
		{models.WorkingStateClicked, models.WorkingStateFailed},
		{models.WorkingStateConverted, models.WorkingStateConverted},
		{models.WorkingStateClicked, models.WorkingStateClicked},
	}
	for _, tc := range allowed {
		require.True(t, p.Allowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to models.WorkingState }{
		{models.WorkingStateClicked, models.WorkingStatePending},
		{models.WorkingStateConverted, models.WorkingStateClicked},
		{models.WorkingStateConverted, models.WorkingStateFailed},
		{models.WorkingStateFailed, models.WorkingStateConverted},
	}
	for _, tc := range denied {
		require.False(t, p.Allowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSourcesFor(t *testing.T) {
	strict := sourcesFor(NewTransitionPolicy(true), models.WorkingStateClicked)
	require.ElementsMatch(t, []models.WorkingState{models.WorkingStatePending, models.WorkingStateClicked}, strict)

	lenient := sourcesFor(NewTransitionPolicy(false), models.WorkingStateClicked)
	require.ElementsMatch(t, allWorkingStates, lenient)
}
