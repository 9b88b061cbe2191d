package queue

import (
	"errors"
	"strings"

	"qms/ticket-queue/internal/ledger"
	"qms/ticket-queue/internal/models"
)

var (
	// ErrStoreUnavailable matches any ledger read or write failure.
	ErrStoreUnavailable = ledger.ErrUnavailable
	ErrInvalidAction    = errors.New("invalid action")
	ErrInvalidOutcome   = errors.New("invalid outcome")
)

type Action string

const (
	ActionNew    Action = "New"
	ActionAttend Action = "Attend"
	ActionAbsent Action = "Absent"
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.TrimSpace(raw)) {
	case ActionNew:
		return ActionNew, nil
	case ActionAttend:
		return ActionAttend, nil
	case ActionAbsent:
		return ActionAbsent, nil
	default:
		return "", ErrInvalidAction
	}
}

// Outcome maps a pointer-advancing action to the status it writes.
func (a Action) Outcome() (string, bool) {
	switch a {
	case ActionAttend:
		return models.StatusAttend, true
	case ActionAbsent:
		return models.StatusAbsent, true
	default:
		return "", false
	}
}
