package genius

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dnhngynops/muindb/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func noLimits() *provider.RateLimiterMap {
	return provider.NewRateLimiterMap(map[provider.Name]float64{provider.NameGenius: 0})
}

const toxicSearch = `{"response":{"hits":[
 {"type":"song","result":{"id":1,"title":"Toxic (Cover)","primary_artist":{"id":9,"name":"Some Covers"}}},
 {"type":"song","result":{"id":4242,"title":"Toxic","primary_artist":{"id":7,"name":"Britney Spears"}}}
]}}`

const toxicSong = `{"response":{"song":{"id":4242,"title":"Toxic",
 "producer_artists":[{"id":1,"name":"Bloodshy & Avant"}],
 "writer_artists":[{"id":2,"name":"Cathy Dennis"},{"id":3,"name":"Christian Karlsson"}],
 "custom_performances":[
  {"label":"Additional Writer","artists":[{"id":4,"name":"Henrik Jonback"},{"id":2,"name":"cathy dennis"}]},
  {"label":"Recorded At","artists":[{"id":5,"name":"Murlyn Studios"}]}
 ]}}}`

func newServer(t *testing.T, searches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/search":
			searches.Add(1)
			q := r.URL.Query().Get("q")
			switch {
			case strings.Contains(q, "Toxic"):
				_, _ = w.Write([]byte(toxicSearch))
			case strings.Contains(q, "Busy"):
				w.Header().Set("Retry-After", "12")
				w.WriteHeader(http.StatusTooManyRequests)
			default:
				_, _ = w.Write([]byte(`{"response":{"hits":[]}}`))
			}
		case r.URL.Path == "/songs/4242":
			_, _ = w.Write([]byte(toxicSong))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCredits(t *testing.T) {
	var searches atomic.Int32
	srv := newServer(t, &searches)
	a := NewWithBaseURL(noLimits(), nil, "good", testLogger(), srv.URL)

	c, err := a.FetchCredits(context.Background(), "Toxic", "Britney Spears")
	if err != nil {
		t.Fatalf("FetchCredits: %v", err)
	}
	if c.SourceID != "4242" || c.Title != "Toxic" {
		t.Errorf("credits = %+v", c)
	}
	if !reflect.DeepEqual(c.Producers, []string{"Bloodshy & Avant"}) {
		t.Errorf("Producers = %q", c.Producers)
	}
	wantWriters := []string{"Cathy Dennis", "Christian Karlsson", "Henrik Jonback"}
	if !reflect.DeepEqual(c.Writers, wantWriters) {
		t.Errorf("Writers = %q, want %q", c.Writers, wantWriters)
	}
	if searches.Load() != 1 {
		t.Errorf("searches = %d, want 1 (first query matched)", searches.Load())
	}
}

func TestFetchCredits_NoMatchTriesEveryQuery(t *testing.T) {
	var searches atomic.Int32
	srv := newServer(t, &searches)
	a := NewWithBaseURL(noLimits(), nil, "good", testLogger(), srv.URL)

	_, err := a.FetchCredits(context.Background(), "Unknown Song", "Nobody Featuring Someone")
	var noMatch *provider.ErrNoMatch
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
	if searches.Load() < 2 {
		t.Errorf("searches = %d, want every query variation tried", searches.Load())
	}
}

func TestFetchCredits_RateLimited(t *testing.T) {
	var searches atomic.Int32
	srv := newServer(t, &searches)
	a := NewWithBaseURL(noLimits(), nil, "good", testLogger(), srv.URL)

	_, err := a.FetchCredits(context.Background(), "Busy Signal", "Anyone")
	var unavailable *provider.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if unavailable.RetryAfter.Seconds() != 12 {
		t.Errorf("RetryAfter = %v, want 12s", unavailable.RetryAfter)
	}
}

func TestFetchCredits_BadToken(t *testing.T) {
	var searches atomic.Int32
	srv := newServer(t, &searches)
	a := NewWithBaseURL(noLimits(), nil, "bad", testLogger(), srv.URL)

	_, err := a.FetchCredits(context.Background(), "Toxic", "Britney Spears")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestFetchCredits_NoToken(t *testing.T) {
	a := NewWithBaseURL(noLimits(), nil, "", testLogger(), "http://127.0.0.1:0")
	_, err := a.FetchCredits(context.Background(), "Toxic", "Britney Spears")
	var auth *provider.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestAppendName(t *testing.T) {
	var names []string
	for _, n := range []string{"Max Martin", " ", "max martin", "Rami"} {
		names = appendName(names, n)
	}
	if !reflect.DeepEqual(names, []string{"Max Martin", "Rami"}) {
		t.Errorf("names = %q", names)
	}
}

func TestFetchCredits_PrefersMostSimilarHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(`{"response":{"hits":[
 {"type":"song","result":{"id":1,"title":"Toxik","primary_artist":{"id":7,"name":"Britney Spears"}}},
 {"type":"song","result":{"id":2,"title":"Toxic","primary_artist":{"id":7,"name":"Britney Spears"}}}
]}}`))
		case "/songs/2":
			_, _ = w.Write([]byte(`{"response":{"song":{"id":2,"title":"Toxic","producer_artists":[{"id":1,"name":"Bloodshy & Avant"}]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	a := NewWithBaseURL(noLimits(), nil, "good", testLogger(), srv.URL)

	c, err := a.FetchCredits(context.Background(), "Toxic", "Britney Spears")
	if err != nil {
		t.Fatalf("FetchCredits: %v", err)
	}
	if c.SourceID != "2" {
		t.Errorf("SourceID = %q, want the exact title (2)", c.SourceID)
	}
}
