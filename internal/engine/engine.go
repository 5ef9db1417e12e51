// Package engine enforces ticket lifecycle transitions and authorization.
//
// Every mutating operation authorizes the actor before touching the
// store, validates the transition against the ticket's persisted state,
// and commits it with a conditional write so concurrent actors cannot
// lose updates. One lifecycle event is emitted per committed transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/emberfall/tickets/internal/db"
	"github.com/emberfall/tickets/internal/model"
)

// Permission nodes checked by the engine.
const (
	PermCreate       = "ticket.create"
	PermUpdate       = "ticket.update"
	PermUpdateOthers = "ticket.update.others"
	PermClose        = "ticket.close"
	PermCloseOthers  = "ticket.close.others"
	PermReopen       = "ticket.reopen"
	PermTeleport     = "ticket.teleport"
	PermClaim        = "ticket.claim"
	PermGroup        = "ticket.group"
	PermListAdmin    = "ticket.list.admin"
	PermListDefault  = "ticket.list.default"
)

// MaxDescriptionLen bounds ticket descriptions, matching the store column.
const MaxDescriptionLen = 255

// Store is the ticket persistence boundary. GetTicket reports a missing
// row with an error matching db.ErrNotFound.
type Store interface {
	InsertTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id int64) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, id int64, upd model.TicketUpdate, expect ...model.Status) (bool, error)
	TransitionStatus(ctx context.Context, id int64, to model.Status, claimedBy string, expect ...model.Status) (bool, error)
	ListTickets(ctx context.Context) ([]model.Ticket, error)
	ListTicketsByOwner(ctx context.Context, owner uuid.UUID) ([]model.Ticket, error)
}

// Permissions answers capability checks and applies role assignments.
type Permissions interface {
	HasPermission(ctx context.Context, identity uuid.UUID, permission string) (bool, error)
	RoleExists(ctx context.Context, name string) (bool, error)
	ReassignRole(ctx context.Context, identity uuid.UUID, role string) error
	ListRoles(ctx context.Context) ([]string, error)
}

// Relay receives one event per committed transition. Emit must not
// block; delivery is best-effort.
type Relay interface {
	Emit(ev model.Event)
}

// Actor identifies who is invoking an operation. Operators bypass all
// permission checks.
type Actor struct {
	ID       uuid.UUID
	Name     string
	Operator bool
}

// Engine is the ticket lifecycle state machine.
type Engine struct {
	store Store
	perms Permissions
	relay Relay
	clock func() time.Time
	log   *slog.Logger
}

// New constructs an engine. relay may be nil when no sink is configured;
// clock nil defaults to time.Now.
func New(store Store, perms Permissions, relay Relay, logger *slog.Logger, clock func() time.Time) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, perms: perms, relay: relay, clock: clock, log: logger}
}

// Create files a new ticket at the actor's location. The ticket starts
// out open with a store-assigned id.
func (e *Engine) Create(ctx context.Context, actor Actor, description string, loc model.Location) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermCreate); err != nil {
		return nil, err
	}
	description, err := validDescription(description)
	if err != nil {
		return nil, err
	}

	t := &model.Ticket{
		OwnerID:     actor.ID,
		OwnerName:   actor.Name,
		Description: description,
		Status:      model.StatusOpen,
		Location:    loc,
		CreatedAt:   e.clock().UnixMilli(),
	}
	if err := e.store.InsertTicket(ctx, t); err != nil {
		return nil, storage("create ticket", err)
	}

	e.emit(model.Event{Kind: model.EventCreate, TicketID: t.ID, ActorID: actor.ID, ActorName: actor.Name, Status: t.Status, Detail: description})
	return t, nil
}

// Update replaces a ticket's description. Updating someone else's ticket
// requires ticket.update.others; closed tickets cannot be updated.
func (e *Engine) Update(ctx context.Context, actor Actor, id int64, description string) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermUpdate); err != nil {
		return nil, err
	}
	description, err := validDescription(description)
	if err != nil {
		return nil, err
	}

	t, err := e.getTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actor.ID {
		if err := e.authorize(ctx, actor, PermUpdateOthers); err != nil {
			return nil, err
		}
	}
	if t.Status.Closed() {
		return nil, invalidState("ticket is already closed")
	}

	applied, err := e.store.UpdateTicket(ctx, id, model.TicketUpdate{
		Description: description,
		Status:      t.Status,
		ClaimedBy:   t.ClaimedBy,
	}, t.Status)
	if err != nil {
		return nil, storage("update ticket", err)
	}
	if !applied {
		return nil, e.conflict(ctx, id)
	}

	t.Description = description
	return t, nil
}

// Claim marks an open ticket as being worked by the actor.
func (e *Engine) Claim(ctx context.Context, actor Actor, id int64) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermClaim); err != nil {
		return nil, err
	}

	t, err := e.getTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Closed() {
		return nil, invalidState("ticket is already closed")
	}
	if t.Status == model.StatusClaimed {
		return nil, invalidState("ticket is already claimed")
	}

	applied, err := e.store.TransitionStatus(ctx, id, model.StatusClaimed, actor.Name, model.StatusOpen)
	if err != nil {
		return nil, storage("claim ticket", err)
	}
	if !applied {
		return nil, e.conflict(ctx, id)
	}

	t.Status = model.StatusClaimed
	t.ClaimedBy = actor.Name
	e.emit(model.Event{Kind: model.EventClaim, TicketID: id, ActorID: actor.ID, ActorName: actor.Name, Status: t.Status,
		Detail: fmt.Sprintf("%s claimed a ticket", actor.Name)})
	return t, nil
}

// Close resolves a ticket. The resulting status records whether the
// filer or a third party closed it. Closing someone else's ticket
// requires ticket.close.others.
func (e *Engine) Close(ctx context.Context, actor Actor, id int64) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermClose); err != nil {
		return nil, err
	}

	t, err := e.getTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actor.ID {
		if err := e.authorize(ctx, actor, PermCloseOthers); err != nil {
			return nil, err
		}
	}
	if t.Status.Closed() {
		return nil, invalidState("ticket is already closed")
	}

	to := model.StatusClosedByAdmin
	if t.OwnerID == actor.ID {
		to = model.StatusClosedByCreator
	}

	// The claimant is kept on the row for audit.
	applied, err := e.store.TransitionStatus(ctx, id, to, t.ClaimedBy, model.StatusOpen, model.StatusClaimed)
	if err != nil {
		return nil, storage("close ticket", err)
	}
	if !applied {
		return nil, e.conflict(ctx, id)
	}

	t.Status = to
	e.emit(model.Event{Kind: model.EventClose, TicketID: id, ActorID: actor.ID, ActorName: actor.Name, Status: to, Detail: to.Label("")})
	return t, nil
}

// Reopen returns a closed ticket to open. Claimed tickets are not
// closed and cannot be reopened.
func (e *Engine) Reopen(ctx context.Context, actor Actor, id int64) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermReopen); err != nil {
		return nil, err
	}

	t, err := e.getTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusOpen {
		return nil, invalidState("ticket is already open")
	}
	if !t.Status.Closed() {
		return nil, invalidState("ticket is claimed, not closed")
	}

	applied, err := e.store.TransitionStatus(ctx, id, model.StatusOpen, "", model.StatusClosedByCreator, model.StatusClosedByAdmin)
	if err != nil {
		return nil, storage("reopen ticket", err)
	}
	if !applied {
		return nil, e.conflict(ctx, id)
	}

	t.Status = model.StatusOpen
	t.ClaimedBy = ""
	e.emit(model.Event{Kind: model.EventReopen, TicketID: id, ActorID: actor.ID, ActorName: actor.Name, Status: t.Status,
		Detail: fmt.Sprintf("%s reopened a ticket", actor.Name)})
	return t, nil
}

// Teleport returns a ticket snapshot for the caller to move the actor to
// its recorded location. Read-only; the engine never interprets the
// coordinates.
func (e *Engine) Teleport(ctx context.Context, actor Actor, id int64) (*model.Ticket, error) {
	if err := e.authorize(ctx, actor, PermTeleport); err != nil {
		return nil, err
	}
	return e.getTicket(ctx, id)
}

// Get returns one ticket under the listing permission rules: list.admin
// grants any ticket, list.default only the actor's own.
func (e *Engine) Get(ctx context.Context, actor Actor, id int64) (*model.Ticket, error) {
	if actor.Operator || e.Permitted(ctx, actor, PermListAdmin) {
		return e.getTicket(ctx, id)
	}
	if !e.Permitted(ctx, actor, PermListDefault) {
		return nil, errUnauthorized()
	}
	t, err := e.getTicket(ctx, id)
	if KindOf(err) == KindNotFound {
		// Same uniform answer as a not-owned ticket: unknown ids are
		// indistinguishable from ids the actor may not see.
		return nil, errUnauthorized()
	}
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actor.ID {
		return nil, errUnauthorized()
	}
	return t, nil
}

// List returns all tickets for holders of ticket.list.admin, the actor's
// own tickets for holders of ticket.list.default.
func (e *Engine) List(ctx context.Context, actor Actor) ([]model.Ticket, error) {
	if actor.Operator || e.Permitted(ctx, actor, PermListAdmin) {
		tickets, err := e.store.ListTickets(ctx)
		if err != nil {
			return nil, storage("list tickets", err)
		}
		return tickets, nil
	}
	if !e.Permitted(ctx, actor, PermListDefault) {
		return nil, errUnauthorized()
	}
	tickets, err := e.store.ListTicketsByOwner(ctx, actor.ID)
	if err != nil {
		return nil, storage("list tickets", err)
	}
	return tickets, nil
}

// AssignRole moves the target identity into exactly one role.
func (e *Engine) AssignRole(ctx context.Context, actor Actor, target uuid.UUID, role string) error {
	if err := e.authorize(ctx, actor, PermGroup); err != nil {
		return err
	}

	ok, err := e.perms.RoleExists(ctx, role)
	if err != nil {
		return storage("check role", err)
	}
	if !ok {
		return validation(fmt.Sprintf("unknown role %q", role))
	}

	if err := e.perms.ReassignRole(ctx, target, role); err != nil {
		return storage("assign role", err)
	}
	return nil
}

// Roles lists the known role names for callers that hold ticket.group.
func (e *Engine) Roles(ctx context.Context, actor Actor) ([]string, error) {
	if err := e.authorize(ctx, actor, PermGroup); err != nil {
		return nil, err
	}
	names, err := e.perms.ListRoles(ctx)
	if err != nil {
		return nil, storage("list roles", err)
	}
	return names, nil
}

// Permitted reports whether the actor holds a permission. Storage
// failures are logged and treated as a denial; use it for menu gating,
// not for authorization inside operations.
func (e *Engine) Permitted(ctx context.Context, actor Actor, permission string) bool {
	if actor.Operator {
		return true
	}
	ok, err := e.perms.HasPermission(ctx, actor.ID, permission)
	if err != nil {
		e.log.Error("permission check failed", "permission", permission, "error", err)
		return false
	}
	return ok
}

func (e *Engine) authorize(ctx context.Context, actor Actor, permission string) error {
	if actor.Operator {
		return nil
	}
	ok, err := e.perms.HasPermission(ctx, actor.ID, permission)
	if err != nil {
		return storage("check permission", err)
	}
	if !ok {
		return errUnauthorized()
	}
	return nil
}

func (e *Engine) getTicket(ctx context.Context, id int64) (*model.Ticket, error) {
	t, err := e.store.GetTicket(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storage("get ticket", err)
	}
	return t, nil
}

// conflict resolves a rejected conditional write: the ticket either
// vanished or another actor moved it first. The re-read tells the caller
// which, and what state won.
func (e *Engine) conflict(ctx context.Context, id int64) error {
	t, err := e.store.GetTicket(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return storage("get ticket", err)
	}
	return invalidState(fmt.Sprintf("ticket is already %s", t.Status.Label(t.ClaimedBy)))
}

func (e *Engine) emit(ev model.Event) {
	if e.relay == nil {
		return
	}
	e.relay.Emit(ev)
}

func validDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", validation("ticket description must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return "", validation(fmt.Sprintf("ticket description must be at most %d characters", MaxDescriptionLen))
	}
	return s, nil
}
