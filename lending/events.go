package lending

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// NOTIFICATION EVENTS - Emitted after state transitions commit
// =============================================================================

// The engine never sends messages itself. It emits events that a separate
// notification dispatcher consumes; the default sink just logs.

type EventType string

const (
	EventCopyBecameAvailable  EventType = "copy_became_available"
	EventBorrowDueSoon        EventType = "borrow_due_soon"
	EventReservationFulfilled EventType = "reservation_fulfilled"
)

type Event struct {
	Type          EventType
	BookID        BookID
	UserID        UserID
	BorrowID      BorrowID
	ReservationID ReservationID

	// Date carries the event-specific day: due date for due-soon, hold
	// expiry for fulfilled reservations.
	Date Date

	OccurredAt time.Time
}

// Notifier receives engine events. Implementations must not block: the
// engine dispatches after the state transition commits and does not wait
// on human-latency I/O.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// LogNotifier writes events to the standard logger. The default sink for
// development and tests.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, e Event) {
	log.Printf("[Notify] %s book=%s user=%s date=%s", e.Type, e.BookID, e.UserID, e.Date)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
