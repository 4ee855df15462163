package lastfm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dnhngynops/muindb/internal/encryption"
	"github.com/dnhngynops/muindb/internal/provider"
	_ "modernc.org/sqlite"
)

func setupTest(t *testing.T) (*provider.RateLimiterMap, *provider.SettingsService) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL DEFAULT (datetime('now')))`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}
	enc, _, _ := encryption.NewEncryptor("")
	limiter := provider.NewRateLimiterMap(map[provider.Name]float64{provider.NameLastFM: 0})
	settings := provider.NewSettingsService(db, enc)
	if err := settings.SetSecret(context.Background(), provider.NameLastFM, "", "test-key"); err != nil {
		t.Fatalf("setting test key: %v", err)
	}
	return limiter, settings
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		if q.Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":10,"message":"Invalid API key"}`))
			return
		}
		if q.Get("method") != "artist.getTopTags" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch q.Get("artist") {
		case "Britney Spears":
			_, _ = w.Write(loadFixture(t, "toptags_britney.json"))
		case "Nobody":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":6,"message":"The artist you supplied could not be found"}`))
		case "Flaky":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"toptags":{"tag":[],"@attr":{"artist":"x"}}}`))
		}
	}))
}

func TestFetchTags(t *testing.T) {
	limiter, settings := setupTest(t)
	srv := newTestServer(t)
	defer srv.Close()
	a := NewWithBaseURL(limiter, settings, "", testLogger(), srv.URL)

	tags, err := a.FetchTags(context.Background(), "Britney Spears")
	if err != nil {
		t.Fatalf("FetchTags: %v", err)
	}

	// pop: 1.0*100/100 = 1.0; dance: 0.8*60/100 = 0.48.
	// electropop: 0.9*35/100 = 0.315 falls below the 0.4 cut.
	// female vocalists and seen live fail relevance; catchy 0.5*0.2 = 0.1.
	want := []provider.Tag{{Name: "pop", Confidence: 1.0}, {Name: "dance", Confidence: 0.48}}
	if len(tags) != len(want) {
		t.Fatalf("got %d tags (%+v), want %d", len(tags), tags, len(want))
	}
	for i := range want {
		if tags[i].Name != want[i].Name {
			t.Errorf("tags[%d].Name = %q, want %q", i, tags[i].Name, want[i].Name)
		}
		if math.Abs(tags[i].Confidence-want[i].Confidence) > 1e-9 {
			t.Errorf("tags[%d].Confidence = %v, want %v", i, tags[i].Confidence, want[i].Confidence)
		}
	}
	if a.Category() != provider.CategoryCommunity {
		t.Errorf("Category = %s, want community", a.Category())
	}
}

func TestFetchTags_NotFound(t *testing.T) {
	limiter, settings := setupTest(t)
	srv := newTestServer(t)
	defer srv.Close()
	a := NewWithBaseURL(limiter, settings, "", testLogger(), srv.URL)

	_, err := a.FetchTags(context.Background(), "Nobody")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchTags_Unavailable(t *testing.T) {
	limiter, settings := setupTest(t)
	srv := newTestServer(t)
	defer srv.Close()
	a := NewWithBaseURL(limiter, settings, "", testLogger(), srv.URL)

	_, err := a.FetchTags(context.Background(), "Flaky")
	var unavailable *provider.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestFetchTags_BadKey(t *testing.T) {
	limiter, _ := setupTest(t)
	srv := newTestServer(t)
	defer srv.Close()
	// A configured key wins over the stored one.
	a := NewWithBaseURL(limiter, nil, "wrong", testLogger(), srv.URL)

	_, err := a.FetchTags(context.Background(), "Britney Spears")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestFetchTags_NoKey(t *testing.T) {
	a := NewWithBaseURL(provider.NewRateLimiterMap(nil), nil, "", testLogger(), "http://127.0.0.1:0")
	_, err := a.FetchTags(context.Background(), "x")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		tag  string
		want float64
	}{
		{"pop", 1.0},
		{"Indie Rock", 0.9},
		{"seen live", 0.1},
		{"dance pop", 0.8},       // contains "pop" (1.0 × 0.8)
		{"k-pop", 0.8},           // contains "pop"
		{"00s", 0},               // no keyword
		{"vocalists", 0.2 * 0.8}, // contained in "male vocalists"
	}
	for _, tt := range tests {
		if got := relevance(tt.tag); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("relevance(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}
