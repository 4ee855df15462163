package webhook

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func completed() event.Event {
	return event.Event{
		Type:      event.BatchCompleted,
		RunID:     "run-1",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]any{
			"processed": 40, "total": 40, "succeeded": 35, "failed": 3, "skipped": 2, "interrupted": false,
		},
	}
}

func TestDispatcher_GenericWebhook(t *testing.T) {
	var mu sync.Mutex
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "ops", URL: srv.URL}}, srv.Client(), testLogger())
	d.HandleEvent(completed())
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if received == nil {
		t.Fatal("expected to receive webhook payload")
	}
	if received["event"] != "batch.completed" || received["run_id"] != "run-1" {
		t.Errorf("payload = %v", received)
	}
	data, _ := received["data"].(map[string]any)
	if data["succeeded"] != float64(35) {
		t.Errorf("data = %v", data)
	}
}

func TestDispatcher_SlackFormat(t *testing.T) {
	var text atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		text.Store(body["text"])
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "chat", URL: srv.URL, Type: TypeSlack}}, srv.Client(), testLogger())
	d.HandleEvent(completed())
	d.Wait()

	got, _ := text.Load().(string)
	want := "batch run-1 completed: 40/40 processed, 35 succeeded, 3 failed, 2 skipped"
	if !strings.Contains(got, want) {
		t.Errorf("text = %q, want it to contain %q", got, want)
	}
}

func TestDispatcher_RetryOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "flaky", URL: srv.URL}}, srv.Client(), testLogger())
	d.backoff = time.Millisecond
	d.HandleEvent(completed())
	d.Wait()

	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDispatcher_MaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "down", URL: srv.URL}}, srv.Client(), testLogger())
	d.backoff = time.Millisecond
	d.HandleEvent(completed())
	d.Wait()

	if calls.Load() != maxRetries {
		t.Errorf("calls = %d, want %d", calls.Load(), maxRetries)
	}
}

func TestDispatcher_SubscribeFiltersEvents(t *testing.T) {
	var mu sync.Mutex
	var events []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		mu.Lock()
		events = append(events, body["event"].(string))
		mu.Unlock()
	}))
	defer srv.Close()

	hooks := []Webhook{{Name: "failures", URL: srv.URL, Events: []string{"subject.failed"}}}
	d := NewDispatcherWithHTTPClient(hooks, srv.Client(), testLogger())
	bus := event.NewBus(testLogger(), 16)
	d.Subscribe(bus)
	bus.Start()
	bus.Publish(event.Event{Type: event.SubjectClassified, Data: map[string]any{"subject": "A"}})
	bus.Publish(event.Event{Type: event.SubjectFailed, Data: map[string]any{"subject": "B", "error": "boom"}})
	bus.Publish(completed())
	bus.Stop()
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] != "subject.failed" {
		t.Errorf("delivered = %v, want only subject.failed", events)
	}
}

func TestWebhook_Validate(t *testing.T) {
	tests := []struct {
		hook    Webhook
		wantErr bool
	}{
		{Webhook{Name: "a", URL: "https://hooks.slack.com/x", Type: TypeSlack}, false},
		{Webhook{Name: "b", URL: "http://localhost:9000/hook"}, false},
		{Webhook{Name: "c", URL: "ftp://example.com"}, true},
		{Webhook{Name: "d", URL: "https://example.com", Type: "pager"}, true},
		{Webhook{Name: "e", URL: ""}, true},
	}
	for _, tt := range tests {
		if err := tt.hook.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s) err = %v, wantErr %v", tt.hook.Name, err, tt.wantErr)
		}
	}
}
