package provider

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dnhngynops/muindb/internal/encryption"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}
	return db
}

func setupTestEncryptor(t *testing.T) *encryption.Encryptor {
	t.Helper()
	enc, _, err := encryption.NewEncryptor("")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	return enc
}

func TestAPIKeyRoundTrip(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	ctx := context.Background()

	key, err := svc.GetAPIKey(ctx, NameLastFM)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key, got %s", key)
	}

	if err := svc.SetSecret(ctx, NameLastFM, "", "lfm-123"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	key, err = svc.GetAPIKey(ctx, NameLastFM)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "lfm-123" {
		t.Errorf("GetAPIKey = %q, want %q", key, "lfm-123")
	}

	// Overwrite.
	if err := svc.SetSecret(ctx, NameLastFM, "", "lfm-456"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	key, _ = svc.GetAPIKey(ctx, NameLastFM)
	if key != "lfm-456" {
		t.Errorf("GetAPIKey after overwrite = %q, want %q", key, "lfm-456")
	}
}

func TestSecretsPerField(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	ctx := context.Background()

	if err := svc.SetSecret(ctx, NameSpotify, "client_id", "id-1"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if err := svc.SetSecret(ctx, NameSpotify, "client_secret", "secret-1"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}

	id, _ := svc.GetSecret(ctx, NameSpotify, "client_id")
	secret, _ := svc.GetSecret(ctx, NameSpotify, "client_secret")
	if id != "id-1" || secret != "secret-1" {
		t.Errorf("got id=%q secret=%q", id, secret)
	}

	statuses, err := svc.ListKeyStatuses(ctx)
	if err != nil {
		t.Fatalf("ListKeyStatuses: %v", err)
	}
	var found bool
	for _, st := range statuses {
		if st.Name == NameSpotify {
			found = true
			if len(st.Fields) != 2 {
				t.Errorf("spotify fields = %v, want 2 entries", st.Fields)
			}
		}
	}
	if !found {
		t.Error("spotify missing from key statuses")
	}

	if err := svc.DeleteSecrets(ctx, NameSpotify); err != nil {
		t.Fatalf("DeleteSecrets: %v", err)
	}
	id, _ = svc.GetSecret(ctx, NameSpotify, "client_id")
	if id != "" {
		t.Errorf("client_id after delete = %q, want empty", id)
	}
}

func TestAPIKeyOverride(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	ctx := context.Background()
	if err := svc.SetSecret(ctx, NameGenius, "", "stored"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}

	octx := WithAPIKeyOverride(ctx, NameGenius, "override")
	got, _ := svc.GetAPIKey(octx, NameGenius)
	if got != "override" {
		t.Errorf("GetAPIKey with override = %q, want %q", got, "override")
	}
	got, _ = svc.GetAPIKey(ctx, NameGenius)
	if got != "stored" {
		t.Errorf("GetAPIKey without override = %q, want %q", got, "stored")
	}
}

func TestResolve_ConfigWins(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	ctx := context.Background()
	_ = svc.SetSecret(ctx, NameLastFM, "", "stored")

	got, _ := svc.Resolve(ctx, NameLastFM, "", "from-config")
	if got != "from-config" {
		t.Errorf("Resolve = %q, want from-config", got)
	}
	got, _ = svc.Resolve(ctx, NameLastFM, "", "")
	if got != "stored" {
		t.Errorf("Resolve = %q, want stored", got)
	}

	var nilSvc *SettingsService
	got, err := nilSvc.Resolve(ctx, NameLastFM, "", "")
	if err != nil || got != "" {
		t.Errorf("nil Resolve = %q, %v", got, err)
	}
}
