package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dnhngynops/muindb/internal/event"
)

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
)

// Dispatcher delivers bus events to the webhooks that want them.
type Dispatcher struct {
	hooks      []Webhook
	httpClient *http.Client
	backoff    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewDispatcher creates a dispatcher for hooks.
func NewDispatcher(hooks []Webhook, logger *slog.Logger) *Dispatcher {
	return NewDispatcherWithHTTPClient(hooks, &http.Client{Timeout: requestTimeout}, logger)
}

// NewDispatcherWithHTTPClient creates a dispatcher with a custom HTTP client (for testing).
func NewDispatcherWithHTTPClient(hooks []Webhook, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hooks:      hooks,
		httpClient: httpClient,
		backoff:    time.Second,
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// Subscribe registers the dispatcher for every event type some webhook wants.
func (d *Dispatcher) Subscribe(bus *event.Bus) {
	for _, t := range []event.Type{
		event.BatchStarted, event.SubjectClassified, event.SubjectSkipped,
		event.SubjectFailed, event.CheckpointWritten, event.BatchCompleted,
	} {
		for i := range d.hooks {
			if d.hooks[i].Wants(string(t)) {
				bus.Subscribe(t, d.HandleEvent)
				break
			}
		}
	}
}

// HandleEvent is an event.Handler that starts a delivery to each matching
// webhook. Wait blocks until they finish.
func (d *Dispatcher) HandleEvent(e event.Event) {
	for i := range d.hooks {
		w := d.hooks[i]
		if !w.Wants(string(e.Type)) {
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(w, e)
		}()
	}
}

// Wait blocks until every started delivery has succeeded or given up.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) deliver(w Webhook, e event.Event) {
	body, contentType, err := formatPayload(&w, e)
	if err != nil {
		d.logger.Error("formatting webhook payload", "webhook", w.Name, "error", err)
		return
	}

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			time.Sleep(d.backoff << uint(attempt-1))
		}

		lastErr = d.send(w.URL, body, contentType)
		if lastErr == nil {
			d.logger.Debug("webhook delivered",
				"webhook", w.Name,
				"event", string(e.Type),
				"attempt", attempt+1,
			)
			return
		}

		d.logger.Warn("webhook delivery failed",
			"webhook", w.Name,
			"event", string(e.Type),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	d.logger.Error("webhook delivery exhausted retries",
		"webhook", w.Name,
		"event", string(e.Type),
		"error", lastErr,
	)
}

func (d *Dispatcher) send(url string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "muindb-webhook/1.0")

	resp, err := d.httpClient.Do(req) //nolint:gosec // URL comes from operator config
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()        //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
