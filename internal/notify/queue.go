package notify

import (
	"context"
	"time"
)

// Message is one claimed outbox row.
type Message struct {
	ID       string
	Kind     Kind
	Payload  Payload
	Attempts int
}

// Queue is the persistence side of the outbox. The Postgres store implements
// it; settlement writes rows transactionally with the debit, the dispatcher
// drains them here.
type Queue interface {
	// ClaimDue locks and returns up to limit pending messages whose next
	// attempt time has passed. Claimed rows stay invisible to concurrent
	// dispatchers until acked or rescheduled.
	ClaimDue(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id string) error
	// Reschedule records a failed attempt and makes the message due again at
	// next.
	Reschedule(ctx context.Context, id string, attempts int, next time.Time) error
	// MarkDead parks a message that exhausted its attempts.
	MarkDead(ctx context.Context, id string, attempts int) error
}
