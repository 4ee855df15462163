package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrate_InMemory(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx := context.Background()
	n, err := Migrate(ctx, db)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one migration to run")
	}

	var roles int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_roles`).Scan(&roles); err != nil {
		t.Fatalf("counting roles: %v", err)
	}
	if roles != 2 {
		t.Errorf("credit_roles = %d, want 2", roles)
	}

	// A second run applies nothing.
	n, err = Migrate(ctx, db)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate applied %d, want 0", n)
	}

	v, err := SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}

	var profiles int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subject_profiles`).Scan(&profiles); err != nil {
		t.Fatalf("counting subject profiles: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if _, err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}
