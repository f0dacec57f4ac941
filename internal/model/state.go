package model

import "strings"

// TransferState is the normalized lifecycle state of one file transfer.
type TransferState int

const (
	// StatePending means the transfer has not been handed to the broker.
	StatePending TransferState = iota

	// StateEnqueued means the broker accepted the transfer.
	StateEnqueued

	// StateInProgress means the broker reports the transfer as active.
	StateInProgress

	// StateSucceeded is the only successful terminal state.
	StateSucceeded

	// StateFailedTransient is a retryable failure.
	StateFailedTransient

	// StateFailedTerminal is a non-retryable failure.
	StateFailedTerminal
)

// String returns the state name.
func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateEnqueued:
		return "Enqueued"
	case StateInProgress:
		return "InProgress"
	case StateSucceeded:
		return "Succeeded"
	case StateFailedTransient:
		return "FailedTransient"
	case StateFailedTerminal:
		return "FailedTerminal"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state is final.
func (s TransferState) Terminal() bool {
	return s == StateSucceeded || s == StateFailedTransient || s == StateFailedTerminal
}

// brokerStates maps the broker's "Completed, *" vocabulary onto
// TransferState. The broker reports five completed variants of which
// only one is success. Kept as a table so a future variant is a
// one-line edit.
var brokerStates = map[string]TransferState{
	"Completed, Succeeded": StateSucceeded,
	"Completed, Cancelled": StateFailedTerminal,
	"Completed, TimedOut":  StateFailedTerminal,
	"Completed, Errored":   StateFailedTerminal,
	"Completed, Rejected":  StateFailedTerminal,
}

// MapBrokerState normalizes a raw broker transfer state string.
//
// Known "Completed, *" variants map through the table; an unknown
// completed variant is treated as a terminal failure, and everything
// else is still in flight.
func MapBrokerState(raw string) TransferState {
	if s, ok := brokerStates[raw]; ok {
		return s
	}
	if strings.HasPrefix(raw, "Completed") {
		return StateFailedTerminal
	}
	return StateInProgress
}
