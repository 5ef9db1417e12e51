package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := db.Init(); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Should create parent directories
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("failed to get default path: %v", err)
	}

	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}

	if !strings.Contains(path, filepath.Join(".tickets", "tickets.db")) {
		t.Errorf("expected path to contain .tickets/tickets.db, got %q", path)
	}
}

func TestInit_CreatesDefaultRole(t *testing.T) {
	db := setupTestDB(t)

	roles, err := db.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("failed to list roles: %v", err)
	}

	found := false
	for _, r := range roles {
		if r == "default" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected default role after init, got %v", roles)
	}
}

func TestInit_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Init(); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
}
