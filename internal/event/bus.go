// Package event carries batch progress from the driver to its observers.
package event

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Batch event types.
const (
	BatchStarted      Type = "batch.started"
	SubjectClassified Type = "subject.classified"
	SubjectSkipped    Type = "subject.skipped"
	SubjectFailed     Type = "subject.failed"
	CheckpointWritten Type = "checkpoint.written"
	BatchCompleted    Type = "batch.completed"
)

// Event is one progress notification.
type Event struct {
	Type      Type           `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes an event. Handlers run on the bus goroutine.
type Handler func(Event)

// Bus is an in-process event bus backed by a buffered channel. Publishing
// never blocks: events are dropped when the buffer is full.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *slog.Logger

	once    sync.Once
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewBus creates a bus with the given buffer size (256 when not positive).
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger.With(slog.String("component", "event")),
		stop:   make(chan struct{}),
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish queues e for dispatch.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", slog.String("type", string(e.Type)))
	}
}

// Start launches the dispatch goroutine. Calling it again is a no-op.
func (b *Bus) Start() {
	b.once.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Stop dispatches whatever is still buffered and waits for the dispatch
// goroutine to exit.
func (b *Bus) Stop() {
	b.stopped.Do(func() { close(b.stop) })
	b.wg.Wait()
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.stop:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						slog.String("type", string(e.Type)),
						slog.Any("panic", r))
				}
			}()
			h(e)
		}()
	}
}
