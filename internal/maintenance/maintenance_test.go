package maintenance

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "muindb.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db, dbPath
}

func TestStatus(t *testing.T) {
	db, dbPath := setupTestDB(t)
	svc := NewService(db, dbPath, testLogger())

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.DBFileSize <= 0 || st.PageSize <= 0 || st.PageCount <= 0 {
		t.Errorf("status = %+v, want positive sizes", st)
	}
	if st.LastOptimizeAt != "" {
		t.Errorf("LastOptimizeAt = %q before any optimize", st.LastOptimizeAt)
	}
}

func TestOptimizeRecordsTimestamp(t *testing.T) {
	db, dbPath := setupTestDB(t)
	svc := NewService(db, dbPath, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LastOptimizeAt != "2024-05-01T09:30:00Z" {
		t.Errorf("LastOptimizeAt = %q", st.LastOptimizeAt)
	}
	if st.WALFileSize != 0 {
		t.Errorf("WAL size after truncate = %d, want 0", st.WALFileSize)
	}
}

func TestVacuumReclaimsPages(t *testing.T) {
	db, dbPath := setupTestDB(t)
	svc := NewService(db, dbPath, testLogger())
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE scratch (v TEXT)`); err != nil {
		t.Fatal(err)
	}
	for i := range 200 {
		if _, err := db.ExecContext(ctx, `INSERT INTO scratch (v) VALUES (?)`, string(make([]byte, 1024+i))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.ExecContext(ctx, `DROP TABLE scratch`); err != nil {
		t.Fatal(err)
	}
	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	before, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if before.Reclaimable() == 0 {
		t.Fatal("expected free pages after dropping a table")
	}

	if err := svc.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	after, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if after.FreePages != 0 || after.PageCount >= before.PageCount {
		t.Errorf("after vacuum = %+v, before = %+v", after, before)
	}
}

func TestIntegrityCheck(t *testing.T) {
	db, dbPath := setupTestDB(t)
	problems, err := NewService(db, dbPath, testLogger()).IntegrityCheck(context.Background())
	if err != nil {
		t.Fatalf("IntegrityCheck: %v", err)
	}
	if problems != nil {
		t.Errorf("problems = %v, want none", problems)
	}
}
