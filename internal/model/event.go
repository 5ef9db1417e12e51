package model

import "github.com/google/uuid"

// EventKind names a committed lifecycle transition.
type EventKind string

const (
	EventCreate EventKind = "Create"
	EventClaim  EventKind = "Claim"
	EventClose  EventKind = "Close"
	EventReopen EventKind = "Reopen"
)

// Event is emitted to the notification relay after a transition has been
// durably committed. Delivery is best-effort and never affects the
// transition itself.
type Event struct {
	Kind      EventKind
	TicketID  int64
	ActorID   uuid.UUID
	ActorName string
	Status    Status
	Detail    string
}
