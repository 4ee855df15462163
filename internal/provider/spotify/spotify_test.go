package spotify

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dnhngynops/muindb/internal/encryption"
	"github.com/dnhngynops/muindb/internal/provider"
	_ "modernc.org/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupSettings(t *testing.T) *provider.SettingsService {
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
	settings := provider.NewSettingsService(db, enc)
	ctx := context.Background()
	if err := settings.SetSecret(ctx, provider.NameSpotify, FieldClientID, "id"); err != nil {
		t.Fatalf("storing client id: %v", err)
	}
	if err := settings.SetSecret(ctx, provider.NameSpotify, FieldClientSecret, "secret"); err != nil {
		t.Fatalf("storing client secret: %v", err)
	}
	return settings
}

func noLimits() *provider.RateLimiterMap {
	return provider.NewRateLimiterMap(map[provider.Name]float64{provider.NameSpotify: 0})
}

const artistsJSON = `{"artists":{"href":"","limit":10,"offset":0,"total":2,"items":[
 {"id":"tribute","name":"Britney Spears Tribute Band","popularity":3,"genres":[]},
 {"id":"britney","name":"Britney Spears","popularity":85,"genres":["dance pop","pop"]}
]}}`

const tracksJSON = `{"tracks":{"href":"","limit":10,"offset":0,"total":2,"items":[
 {"id":"cover","name":"Toxic","popularity":10,"artists":[{"id":"band","name":"A Cover Band"}]},
 {"id":"toxic","name":"Toxic","popularity":80,"artists":[{"id":"britney","name":"Britney Spears"}]}
]}}`

const nearMissTracksJSON = `{"tracks":{"href":"","limit":10,"offset":0,"total":2,"items":[
 {"id":"near","name":"Everytyme","popularity":5,"artists":[{"id":"britney","name":"Britney Spears"}]},
 {"id":"exact","name":"Everytime","popularity":70,"artists":[{"id":"britney","name":"Britney Spears"}]}
]}}`

const featuresJSON = `{"audio_features":[{"id":"toxic","danceability":0.774,"energy":0.838,"key":5,
 "loudness":-3.914,"mode":0,"speechiness":0.114,"acousticness":0.0249,"instrumentalness":0.025,
 "liveness":0.242,"valence":0.924,"tempo":143.04,"duration_ms":198800,"time_signature":4}]}`

type server struct {
	*httptest.Server
	tokens   atomic.Int32
	searches atomic.Int32
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/token" {
			id, secret, ok := r.BasicAuth()
			if !ok {
				_ = r.ParseForm()
				id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
			}
			if id != "id" || secret != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Invalid client"}`))
				return
			}
			s.tokens.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"Invalid access token"}}`))
			return
		}
		switch {
		case r.URL.Path == "/v1/search":
			s.searches.Add(1)
			q := r.URL.Query()
			switch {
			case q.Get("type") == "artist" && strings.Contains(strings.ToLower(q.Get("q")), "britney"):
				_, _ = w.Write([]byte(artistsJSON))
			case q.Get("type") == "artist" && strings.Contains(q.Get("q"), "Flaky"):
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"status":429,"message":"API rate limit exceeded"}}`))
			case q.Get("type") == "track" && strings.Contains(q.Get("q"), "Everytime"):
				_, _ = w.Write([]byte(nearMissTracksJSON))
			case q.Get("type") == "track" && strings.Contains(q.Get("q"), "Toxic"):
				_, _ = w.Write([]byte(tracksJSON))
			case q.Get("type") == "track":
				_, _ = w.Write([]byte(`{"tracks":{"items":[]}}`))
			default:
				_, _ = w.Write([]byte(`{"artists":{"items":[]}}`))
			}
		case r.URL.Path == "/v1/artists/britney":
			_, _ = w.Write([]byte(`{"id":"britney","name":"Britney Spears","popularity":85,"genres":["dance pop","pop"]}`))
		case r.URL.Path == "/v1/audio-features" && r.URL.Query().Get("ids") == "near":
			_, _ = w.Write([]byte(`{"audio_features":[{"id":"near","tempo":99,"duration_ms":1000}]}`))
		case r.URL.Path == "/v1/audio-features":
			_, _ = w.Write([]byte(featuresJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Not found"}}`))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func TestFetchTags_PicksBestScoringArtist(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	tags, err := a.FetchTags(context.Background(), "Britney Spears")
	if err != nil {
		t.Fatalf("FetchTags: %v", err)
	}
	want := []provider.Tag{{Name: "dance pop"}, {Name: "pop"}}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %+v, want %+v", tags, want)
	}
	if a.Category() != provider.CategoryAlgorithmic {
		t.Errorf("Category = %s, want algorithmic", a.Category())
	}
	if got := srv.tokens.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1 (token reused across searches)", got)
	}
}

func TestSearchArtist_NoAcceptableCandidate(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	_, err := a.SearchArtist(context.Background(), "Nobody At All")
	var noMatch *provider.ErrNoMatch
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestSearchArtist_RateLimited(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	_, err := a.SearchArtist(context.Background(), "Flaky")
	var unavailable *provider.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestFetchTags_BadCredentials(t *testing.T) {
	srv := newServer(t)
	// Configured credentials win over the stored ones.
	a := NewWithBaseURL(noLimits(), setupSettings(t), "id", "wrong", testLogger(), srv.URL)

	_, err := a.FetchTags(context.Background(), "Britney Spears")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
	if srv.searches.Load() != 0 {
		t.Errorf("searches = %d, want 0 without a token", srv.searches.Load())
	}
}

func TestFetchTags_NoCredentials(t *testing.T) {
	a := NewWithBaseURL(noLimits(), nil, "", "", testLogger(), "http://127.0.0.1:0")
	_, err := a.FetchTags(context.Background(), "x")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestAudioFeatures(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	f, err := a.AudioFeatures(context.Background(), "Toxic", "Britney Spears")
	if err != nil {
		t.Fatalf("AudioFeatures: %v", err)
	}
	if f["duration_ms"] != 198800 || f["key"] != 5 || f["time_signature"] != 4 {
		t.Errorf("integer features = %v", f)
	}
	if f["tempo"] < 143 || f["tempo"] > 143.1 {
		t.Errorf("tempo = %v, want 143.04", f["tempo"])
	}
	if len(f) != 13 {
		t.Errorf("got %d features, want 13", len(f))
	}
}

func TestAudioFeatures_PrefersMostSimilarTrack(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	f, err := a.AudioFeatures(context.Background(), "Everytime", "Britney Spears")
	if err != nil {
		t.Fatalf("AudioFeatures: %v", err)
	}
	if f["tempo"] == 99 {
		t.Errorf("features came from the near-miss track, want the exact title")
	}
}

func TestAudioFeatures_NoMatch(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	_, err := a.AudioFeatures(context.Background(), "Unreleased Song", "Britney Spears")
	var noMatch *provider.ErrNoMatch
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestFetchSongTags(t *testing.T) {
	srv := newServer(t)
	a := NewWithBaseURL(noLimits(), setupSettings(t), "", "", testLogger(), srv.URL)

	tags, err := a.FetchSongTags(context.Background(), "Toxic", "Britney Spears Featuring Nobody")
	if err != nil {
		t.Fatalf("FetchSongTags: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "dance pop" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestNameVariations(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"eminem", []string{"eminem", "Eminem"}},
		{"'n sync", []string{"'n sync", "n sync", "NSYNC", "*NSYNC", "N-Sync"}},
		{"3lw", []string{"3lw", "Threelw", "Three LW"}},
		{"The Killers", []string{"The Killers", "THE KILLERS", "Killers"}},
	}
	for _, tt := range tests {
		got := NameVariations(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NameVariations(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreArtist(t *testing.T) {
	tests := []struct {
		name       string
		candidate  string
		popularity int
		genres     bool
		searched   string
		want       float64
	}{
		{"exact popular with genres", "Britney Spears", 85, true, "britney spears", 100},
		{"punctuation ignored", "*NSYNC", 70, true, "'n sync", 100},
		{"obscure tribute", "Britney Spears Tribute Band", 3, false, "Britney Spears", 25 + 20},
		{"unrelated", "Zz", 0, false, "Britney Spears", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreArtist(tt.candidate, tt.popularity, tt.genres, tt.searched)
			if got != tt.want {
				t.Errorf("ScoreArtist = %v, want %v", got, tt.want)
			}
		})
	}
}
