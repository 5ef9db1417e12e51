package model

import (
	"fmt"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen            Status = "open"
	StatusClaimed         Status = "claimed"
	StatusClosedByCreator Status = "closed_by_creator"
	StatusClosedByAdmin   Status = "closed_by_admin"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusClosedByCreator, StatusClosedByAdmin:
		return true
	}
	return false
}

// Closed reports whether the status is one of the terminal closed states.
func (s Status) Closed() bool {
	return s == StatusClosedByCreator || s == StatusClosedByAdmin
}

// Label renders the status the way it is shown to players. claimedBy is
// only used for StatusClaimed.
func (s Status) Label(claimedBy string) string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClaimed:
		if claimedBy == "" {
			return "claimed"
		}
		return "claimed by " + claimedBy
	case StatusClosedByCreator:
		return "closed by creator"
	case StatusClosedByAdmin:
		return "closed by admin"
	}
	return string(s)
}

// Location is where in the world a ticket was filed. The ticket system
// only stores and echoes it back; interpreting coordinates is up to the
// game server.
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
	Pitch float64
	Yaw   float64
}

func (l Location) String() string {
	return fmt.Sprintf("World: %s, X: %d, Y: %d, Z: %d", l.World, int(l.X), int(l.Y), int(l.Z))
}

// Ticket is a persisted support request.
//
// OwnerName is the filer's display name at creation time and is not kept
// in sync with later renames. ClaimedBy holds the claimant's display name
// while Status is StatusClaimed and is cleared on reopen.
type Ticket struct {
	ID          int64
	OwnerID     uuid.UUID
	OwnerName   string
	Description string
	Status      Status
	ClaimedBy   string
	Location    Location
	CreatedAt   int64 // epoch milliseconds
}

// TicketUpdate carries the writable fields of a ticket row.
type TicketUpdate struct {
	Description string
	Status      Status
	ClaimedBy   string
}

// Role is a named group of identities sharing a permission set.
type Role struct {
	Name        string
	Members     []uuid.UUID
	Permissions []string
}

// DefaultRole is the role identities fall into when they belong to no
// other role.
const DefaultRole = "default"
