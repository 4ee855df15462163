package backup

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnhngynops/muindb/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "muindb.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBackup_WritesSnapshot(t *testing.T) {
	svc := NewService(setupTestDB(t), filepath.Join(t.TempDir(), "backups"), 3, testLogger())

	snap, err := svc.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if !snapshotPattern.MatchString(snap.Filename) {
		t.Errorf("Filename = %q does not match pattern", snap.Filename)
	}
	if snap.Size == 0 {
		t.Error("expected non-zero snapshot size")
	}

	// The snapshot is a usable database.
	restored, err := database.Open(filepath.Join(svc.Dir(), snap.Filename))
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer restored.Close() //nolint:errcheck
	var roles int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM credit_roles`).Scan(&roles); err != nil {
		t.Fatalf("querying snapshot: %v", err)
	}
	if roles != 2 {
		t.Errorf("credit_roles in snapshot = %d, want 2", roles)
	}
}

func TestBeforeRun_PrunesToRetention(t *testing.T) {
	svc := NewService(setupTestDB(t), filepath.Join(t.TempDir(), "backups"), 2, testLogger())
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range 4 {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if _, err := svc.BeforeRun(context.Background()); err != nil {
			t.Fatalf("BeforeRun %d: %v", i, err)
		}
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}
	if want := "muindb-20240101-150000.db"; snaps[0].Filename != want {
		t.Errorf("newest = %q, want %q", snaps[0].Filename, want)
	}
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "muindb-bad.db", "muindb-20240101-000000.db"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewService(nil, dir, 0, testLogger())
	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("List = %+v, want one snapshot", snaps)
	}
	if n, _ := svc.Prune(); n != 0 {
		t.Errorf("Prune with retention 0 removed %d", n)
	}
}

func TestList_MissingDir(t *testing.T) {
	svc := NewService(nil, filepath.Join(t.TempDir(), "none"), 1, testLogger())
	snaps, err := svc.List()
	if err != nil || snaps != nil {
		t.Errorf("List = %v, %v; want nil, nil", snaps, err)
	}
}
