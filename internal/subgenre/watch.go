package subgenre

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events an atomic write produces.
const watchDebounce = 500 * time.Millisecond

// Watch reloads bundles in dir as they are written and drops models whose
// bundle is gone once events settle. It blocks until ctx is canceled.
func (c *Classifier) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating model watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating models directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	c.logger.Info("watching subgenre models", slog.String("dir", dir))

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]string)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			genre, ok := genreFromFile(ev.Name)
			if !ok {
				continue
			}
			pending[ev.Name] = genre
			timer.Reset(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("model watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			for path, genre := range pending {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					c.Remove(genre)
					c.logger.Info("subgenre model removed", slog.String("genre", genre))
					continue
				}
				if err := c.LoadFile(path); err != nil {
					c.logger.Error("reloading model", slog.String("file", filepath.Base(path)), slog.String("error", err.Error()))
					continue
				}
				c.logger.Info("subgenre model reloaded", slog.String("file", filepath.Base(path)))
			}
			clear(pending)
		}
	}
}
