package contribution

import (
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/contribute/model"
)

// transitions lists the statuses each status may change to. Statuses not
// listed are final.
var transitions = map[model.ContributionStatus][]model.ContributionStatus{
	model.StatusPending: {
		model.StatusCancelled,
		model.StatusCompleted,
		model.StatusFailed,
		model.StatusPartiallyPaid,
	},
	model.StatusInProgress: {
		model.StatusCancelled,
		model.StatusCompleted,
		model.StatusFailed,
	},
	model.StatusPartiallyPaid: {
		model.StatusCompleted,
	},
	model.StatusCompleted: {
		model.StatusCancelled,
		model.StatusRefunded,
		model.StatusChargeback,
	},
	model.StatusCancelled: {
		model.StatusCompleted,
		model.StatusRefunded,
	},
	model.StatusRefunded: {
		model.StatusCancelled,
		model.StatusCompleted,
	},
	model.StatusPendingRefund: {
		model.StatusCompleted,
		model.StatusRefunded,
	},
}

// CanTransition reports whether a contribution may move from one status to
// another. Keeping the same status is always allowed.
func CanTransition(from, to model.ContributionStatus) bool {
	if from == to {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// Transitions returns the statuses a contribution in from may move to.
func Transitions(from model.ContributionStatus) []model.ContributionStatus {
	return slices.Clone(transitions[from])
}

// CheckStatusValidation returns a *StatusTransitionError when the change is
// not allowed.
func CheckStatusValidation(from, to model.ContributionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &StatusTransitionError{From: from, To: to}
}
