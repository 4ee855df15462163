package event

import (
	"log/slog"
	"os"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	bus.Start()

	var received []Event
	bus.Subscribe(SubjectClassified, func(e Event) {
		received = append(received, e)
	})
	bus.Publish(Event{Type: SubjectClassified, RunID: "r1", Data: map[string]any{"genre": "pop"}})
	bus.Stop()

	if len(received) != 1 {
		t.Fatalf("got %d events, want 1", len(received))
	}
	if received[0].Data["genre"] != "pop" || received[0].RunID != "r1" {
		t.Errorf("event = %+v", received[0])
	}
	if received[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestStopDrainsBuffer(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	count := 0
	bus.Subscribe(SubjectFailed, func(_ Event) { count++ })

	bus.Publish(Event{Type: SubjectFailed})
	bus.Publish(Event{Type: SubjectFailed})
	bus.Start()
	bus.Stop()

	if count != 2 {
		t.Errorf("got %d events, want 2", count)
	}
}

func TestMultipleSubscribersAndPanic(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	bus.Start()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(BatchCompleted, func(_ Event) { panic("boom") })
	for range 2 {
		bus.Subscribe(BatchCompleted, func(_ Event) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}
	bus.Publish(Event{Type: BatchCompleted})
	bus.Stop()

	if calls != 2 {
		t.Errorf("got %d handler calls, want 2", calls)
	}
}

func TestBufferFullDrops(t *testing.T) {
	bus := NewBus(testLogger(), 1)
	count := 0
	bus.Subscribe(SubjectSkipped, func(_ Event) { count++ })

	bus.Publish(Event{Type: SubjectSkipped})
	bus.Publish(Event{Type: SubjectSkipped})
	bus.Start()
	bus.Stop()

	if count != 1 {
		t.Errorf("got %d events, want 1 (second dropped)", count)
	}
}

func TestStopIdempotent(t *testing.T) {
	bus := NewBus(testLogger(), 4)
	bus.Start()
	bus.Stop()
	bus.Stop()
}
