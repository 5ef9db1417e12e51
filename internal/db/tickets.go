package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/emberfall/tickets/internal/model"
)

// InsertTicket inserts a new ticket and assigns its ID from the store.
// The ID field on the passed ticket is overwritten with the generated key.
func (db *DB) InsertTicket(ctx context.Context, t *model.Ticket) error {
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO tickets (owner_id, owner_name, description, status, claimed_by, world, x, y, z, pitch, yaw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID.String(), t.OwnerName, t.Description, t.Status, t.ClaimedBy,
		t.Location.World, t.Location.X, t.Location.Y, t.Location.Z,
		t.Location.Pitch, t.Location.Yaw, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generated ticket id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTicket retrieves a ticket by ID. Returns ErrNotFound if no such row
// exists.
func (db *DB) GetTicket(ctx context.Context, id int64) (*model.Ticket, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, owner_id, owner_name, description, status, claimed_by, world, x, y, z, pitch, yaw, created_at
		FROM tickets WHERE id = ?`, id)

	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// TicketExists reports whether a ticket with the given ID exists.
func (db *DB) TicketExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket: %w", err)
	}
	return count > 0, nil
}

// UpdateTicket overwrites a ticket's writable fields. Owner, location and
// creation time are never touched.
//
// When expect statuses are given the write is conditional: it applies
// only if the row's current status is one of them, which is how the
// lifecycle engine avoids lost updates between its read and its write.
// The returned bool reports whether a row was written; (false, nil) means
// the row is missing or its status no longer matches, and the caller must
// re-read to tell the two apart.
func (db *DB) UpdateTicket(ctx context.Context, id int64, upd model.TicketUpdate, expect ...model.Status) (bool, error) {
	if !upd.Status.IsValid() {
		return false, fmt.Errorf("invalid status: %s", upd.Status)
	}

	query := `UPDATE tickets SET description = ?, status = ?, claimed_by = ? WHERE id = ?`
	args := []any{upd.Description, upd.Status, upd.ClaimedBy, id}

	if len(expect) > 0 {
		placeholders := make([]string, len(expect))
		for i, s := range expect {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return rows > 0, nil
}

// TransitionStatus moves a ticket between statuses without touching the
// description. The write applies only if the current status is one of
// expect; see UpdateTicket for the (false, nil) contract.
func (db *DB) TransitionStatus(ctx context.Context, id int64, to model.Status, claimedBy string, expect ...model.Status) (bool, error) {
	if !to.IsValid() {
		return false, fmt.Errorf("invalid status: %s", to)
	}
	if len(expect) == 0 {
		return false, fmt.Errorf("transition requires at least one expected prior status")
	}

	placeholders := make([]string, len(expect))
	args := []any{to, claimedBy, id}
	for i, s := range expect {
		placeholders[i] = "?"
		args = append(args, s)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE tickets SET status = ?, claimed_by = ?
		WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transition result: %w", err)
	}
	return rows > 0, nil
}

// ListTickets returns all tickets in creation order.
func (db *DB) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	return db.queryTickets(ctx, `
		SELECT id, owner_id, owner_name, description, status, claimed_by, world, x, y, z, pitch, yaw, created_at
		FROM tickets ORDER BY id ASC`)
}

// ListTicketsByOwner returns the tickets filed by one identity.
func (db *DB) ListTicketsByOwner(ctx context.Context, owner uuid.UUID) ([]model.Ticket, error) {
	return db.queryTickets(ctx, `
		SELECT id, owner_id, owner_name, description, status, claimed_by, world, x, y, z, pitch, yaw, created_at
		FROM tickets WHERE owner_id = ? ORDER BY id ASC`, owner.String())
}

// queryTickets is a helper to scan ticket rows.
func (db *DB) queryTickets(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
	t := &model.Ticket{}
	var ownerID string
	err := row.Scan(
		&t.ID, &ownerID, &t.OwnerName, &t.Description, &t.Status, &t.ClaimedBy,
		&t.Location.World, &t.Location.X, &t.Location.Y, &t.Location.Z,
		&t.Location.Pitch, &t.Location.Yaw, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.OwnerID, err = uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	return t, nil
}
