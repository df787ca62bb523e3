package services

import "github.com/msdeveloper2k/cashback-zone/internal/models"

var allWorkingStates = []models.WorkingState{
	models.WorkingStatePending,
	models.WorkingStateClicked,
	models.WorkingStateConverted,
	models.WorkingStateFailed,
}

// TransitionPolicy decides whether a referral may move between working states.
type TransitionPolicy interface {
	Name() string
	Allowed(from, to models.WorkingState) bool
}

// NewTransitionPolicy returns the strict table when strict is set, otherwise
// the lenient one that lets any state overwrite any other.
func NewTransitionPolicy(strict bool) TransitionPolicy {
	if strict {
		return strictTransitions{}
	}
	return lenientTransitions{}
}

type lenientTransitions struct{}

func (lenientTransitions) Name() string                          { return "lenient" }
func (lenientTransitions) Allowed(_, _ models.WorkingState) bool { return true }

// strictTransitions: pending → clicked → converted, failed from any
// non-terminal state, converted and failed are final.
type strictTransitions struct{}

var strictTable = map[models.WorkingState][]models.WorkingState{
	models.WorkingStatePending: {models.WorkingStateClicked, models.WorkingStateConverted, models.WorkingStateFailed},
	models.WorkingStateClicked: {models.WorkingStateConverted, models.WorkingStateFailed},
}

func (strictTransitions) Name() string { return "strict" }

func (strictTransitions) Allowed(from, to models.WorkingState) bool {
	if from == to {
		return true
	}
	for _, next := range strictTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesFor lists every state the policy lets move to `to`.
func sourcesFor(p TransitionPolicy, to models.WorkingState) []models.WorkingState {
	var out []models.WorkingState
	for _, from := range allWorkingStates {
		if p.Allowed(from, to) {
			out = append(out, from)
		}
	}
	return out
}
