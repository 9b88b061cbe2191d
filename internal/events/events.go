// Package events publishes ticket lifecycle notifications for downstream
// consumers such as ticket printers. Displays do not subscribe; they poll.
package events

import (
	"context"
	"time"
)

const (
	TypeTicketIssued   = "ticket.issued"
	TypeTicketAdvanced = "ticket.advanced"
)

type Event struct {
	Type      string    `json:"type"`
	Queue     string    `json:"queue"`
	NextQueue string    `json:"next_queue,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
