package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/emberfall/tickets/internal/model"
)

// SeedRole creates a role with its members and permissions if it does not
// already exist, and merges in any missing members/permissions if it
// does. Runs in one transaction so a partially applied role is never
// visible.
func (db *DB) SeedRole(ctx context.Context, role model.Role) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles (name) VALUES (?)`, role.Name); err != nil {
		return fmt.Errorf("failed to create role %q: %w", role.Name, err)
	}
	for _, m := range role.Members {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_members (role, identity) VALUES (?, ?)`, role.Name, m.String()); err != nil {
			return fmt.Errorf("failed to add member to role %q: %w", role.Name, err)
		}
	}
	for _, p := range role.Permissions {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions (role, permission) VALUES (?, ?)`, role.Name, p); err != nil {
			return fmt.Errorf("failed to add permission to role %q: %w", role.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role %q: %w", role.Name, err)
	}
	return nil
}

// RoleExists reports whether a role with the given name exists.
func (db *DB) RoleExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}

// ListRoles returns all role names.
func (db *DB) ListRoles(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddMember adds an identity to a role. Idempotent: adding an existing
// member is a no-op, as is adding to a role that does not exist (callers
// validate role names via RoleExists/ListRoles first).
func (db *DB) AddMember(ctx context.Context, identity uuid.UUID, role string) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO role_members (role, identity)
		SELECT name, ? FROM roles WHERE name = ?`,
		identity.String(), role)
	if err != nil {
		return fmt.Errorf("failed to add member to role %q: %w", role, err)
	}
	return nil
}

// RemoveMember removes an identity from a role. Idempotent.
func (db *DB) RemoveMember(ctx context.Context, identity uuid.UUID, role string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM role_members WHERE role = ? AND identity = ?`, role, identity.String())
	if err != nil {
		return fmt.Errorf("failed to remove member from role %q: %w", role, err)
	}
	return nil
}

// RemoveFromAllRoles removes an identity from every role it belongs to.
func (db *DB) RemoveFromAllRoles(ctx context.Context, identity uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM role_members WHERE identity = ?`, identity.String())
	if err != nil {
		return fmt.Errorf("failed to remove member from roles: %w", err)
	}
	return nil
}

// ReassignRole moves an identity to exactly one role: it is removed from
// all roles and added to the target in a single transaction, so a
// concurrent permission check never sees it role-less in between.
func (db *DB) ReassignRole(ctx context.Context, identity uuid.UUID, role string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_members WHERE identity = ?`, identity.String()); err != nil {
		return fmt.Errorf("failed to remove member from roles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO role_members (role, identity)
		SELECT name, ? FROM roles WHERE name = ?`,
		identity.String(), role); err != nil {
		return fmt.Errorf("failed to add member to role %q: %w", role, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role reassignment: %w", err)
	}
	return nil
}

// MemberRoles returns the names of the roles an identity belongs to.
func (db *DB) MemberRoles(ctx context.Context, identity uuid.UUID) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT role FROM role_members WHERE identity = ? ORDER BY role`, identity.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// HasPermission reports whether the union of the identity's roles grants
// the permission. Unknown identities have no roles and therefore no
// permissions. Operator bypass is the engine's concern, not the store's.
func (db *DB) HasPermission(ctx context.Context, identity uuid.UUID, permission string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM role_members m
		JOIN role_permissions p ON m.role = p.role
		WHERE m.identity = ? AND p.permission = ?`,
		identity.String(), permission).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}

// TouchIdentity enrolls an identity into the default role if it belongs
// to no role yet. Called on first observed activity (connect), not by the
// lifecycle engine.
func (db *DB) TouchIdentity(ctx context.Context, identity uuid.UUID) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO role_members (role, identity)
		SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM role_members WHERE identity = ?)`,
		model.DefaultRole, identity.String(), identity.String())
	if err != nil {
		return fmt.Errorf("failed to enroll identity: %w", err)
	}
	return nil
}
