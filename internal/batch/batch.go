// Package batch classifies the artists of a chart year with a bounded
// worker pool. Workers return result records; the driver alone aggregates
// them, writes checkpoints and flushes the response cache.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dnhngynops/muindb/internal/backup"
	"github.com/dnhngynops/muindb/internal/event"
	"github.com/dnhngynops/muindb/internal/genre"
)

// MaxConcurrency caps the worker pool to stay inside source rate limits.
const MaxConcurrency = 5

// Status is the outcome of one subject.
type Status string

// Subject outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// errNoData marks a subject for which no source returned anything.
var errNoData = errors.New("no genre data from any source")

// Classifier classifies and persists one subject.
type Classifier interface {
	ClassifyYear(ctx context.Context, subject string, year int) (*genre.Profile, error)
	Persist(ctx context.Context, subject string, year int, p *genre.Profile) (int, error)
}

// Subjects lists the artists of a year, best peak first.
type Subjects interface {
	YearArtists(ctx context.Context, year, limit int) ([]string, error)
}

// Flusher is the response cache as seen by the driver.
type Flusher interface {
	Pending() int
	Flush() error
}

// Snapshotter takes a database backup before a run.
type Snapshotter interface {
	BeforeRun(ctx context.Context) (*backup.Snapshot, error)
}

// Options controls one run.
type Options struct {
	Year            int
	Limit           int
	Concurrency     int
	CheckpointEvery int
	CheckpointPath  string
	FlushEvery      int
	MetricsFile     string
	Resume          bool
	Backup          bool
}

// Result is what a worker reports for one subject.
type Result struct {
	Subject    string        `json:"subject"`
	Status     Status        `json:"status"`
	Genre      string        `json:"genre,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Songs      int           `json:"songs,omitempty"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// Summary is the aggregate of a run.
type Summary struct {
	RunID        string         `json:"run_id"`
	Year         int            `json:"year,omitempty"`
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	Songs        int            `json:"songs_updated"`
	Interrupted  bool           `json:"interrupted,omitempty"`
	Elapsed      time.Duration  `json:"elapsed"`
	Distribution map[string]int `json:"genre_distribution"`
	ResumedFrom  *Checkpoint    `json:"resumed_from,omitempty"`
	Backup       string         `json:"backup,omitempty"`
}

// SuccessRate is the percentage of processed subjects that succeeded.
func (s *Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed) * 100
}

// RatePerMinute is the number of subjects processed per minute.
func (s *Summary) RatePerMinute() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Elapsed.Minutes()
}

// Genres returns the distribution's genres, most subjects first.
func (s *Summary) Genres() []string {
	gs := slices.Sorted(maps.Keys(s.Distribution))
	slices.SortStableFunc(gs, func(a, b string) int { return s.Distribution[b] - s.Distribution[a] })
	return gs
}

func (s *Summary) add(r Result) {
	s.Processed++
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
		s.Songs += r.Songs
		s.Distribution[r.Genre]++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

func (s *Summary) checkpoint(now time.Time) *Checkpoint {
	return &Checkpoint{
		ProcessedCount: s.Processed,
		TotalCount:     s.Total,
		Successful:     s.Succeeded,
		Failed:         s.Failed,
		Skipped:        s.Skipped,
		Timestamp:      now.UTC(),
		RunID:          s.RunID,
		Year:           s.Year,
	}
}

// Driver runs batches. Cache, bus and backups are optional.
type Driver struct {
	engine   Classifier
	subjects Subjects
	cache    Flusher
	bus      *event.Bus
	backups  Snapshotter
	logger   *slog.Logger
	now      func() time.Time
}

// NewDriver creates a driver. cache, bus and backups may be nil.
func NewDriver(engine Classifier, subjects Subjects, cache Flusher, bus *event.Bus, backups Snapshotter, logger *slog.Logger) *Driver {
	return &Driver{
		engine:   engine,
		subjects: subjects,
		cache:    cache,
		bus:      bus,
		backups:  backups,
		logger:   logger.With(slog.String("component", "batch")),
		now:      time.Now,
	}
}

// Run classifies the artists of opts.Year. When ctx is canceled no new
// subjects are dispatched; subjects already in flight finish and are
// persisted, and a final checkpoint is written. Per-subject failures are
// counted and the run continues. A checkpoint that cannot be written stops
// the run with an error. The summary is returned in every case.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	opts = normalize(opts)
	sum := &Summary{RunID: uuid.NewString(), Year: opts.Year, Distribution: make(map[string]int)}
	logger := d.logger.With(slog.String("run_id", sum.RunID))
	start := d.now()
	m := newMetrics()

	if opts.Resume {
		cp, err := LoadCheckpoint(opts.CheckpointPath)
		if err != nil {
			return sum, err
		}
		if cp != nil {
			sum.ResumedFrom = cp
			logger.Info("resuming from checkpoint",
				slog.String("previous_run", cp.RunID),
				slog.Int("processed", cp.ProcessedCount), slog.Int("total", cp.TotalCount),
				slog.Int("successful", cp.Successful), slog.Int("failed", cp.Failed), slog.Int("skipped", cp.Skipped))
		} else {
			logger.Info("no checkpoint to resume from", slog.String("path", opts.CheckpointPath))
		}
	}

	if opts.Backup && d.backups != nil {
		snap, err := d.backups.BeforeRun(ctx)
		if err != nil {
			return sum, fmt.Errorf("pre-run backup: %w", err)
		}
		sum.Backup = snap.Filename
	}

	subjects, err := d.subjects.YearArtists(ctx, opts.Year, opts.Limit)
	if err != nil {
		return sum, fmt.Errorf("listing subjects: %w", err)
	}
	sum.Total = len(subjects)
	logger.Info("batch started",
		slog.Int("year", opts.Year), slog.Int("subjects", sum.Total), slog.Int("concurrency", opts.Concurrency))
	d.publish(event.BatchStarted, sum.RunID, map[string]any{"year": opts.Year, "total": sum.Total})

	results, stopDispatch := d.dispatch(ctx, subjects, opts)
	defer stopDispatch()

	var fatal error
	flushed := 0
	for r := range results {
		sum.add(r)
		m.observe(r)
		d.report(logger, sum, r)

		if fatal == nil && sum.Processed%opts.CheckpointEvery == 0 && sum.Processed < sum.Total {
			if err := d.saveCheckpoint(opts.CheckpointPath, sum, m); err != nil {
				fatal = err
				logger.Error("checkpoint failed, stopping", slog.String("error", err.Error()))
				stopDispatch()
			}
		}
		if d.cache != nil && d.cache.Pending() >= opts.FlushEvery {
			d.flush(logger, m)
			flushed++
		}
	}
	sum.Elapsed = d.now().Sub(start)

	if d.cache != nil && d.cache.Pending() > 0 {
		d.flush(logger, m)
	}
	if opts.MetricsFile != "" {
		if err := m.writeTextfile(opts.MetricsFile, sum.Elapsed); err != nil {
			logger.Warn("writing metrics", slog.String("error", err.Error()))
		}
	}
	if fatal != nil {
		return sum, fatal
	}

	if sum.Processed < sum.Total {
		sum.Interrupted = true
		if err := d.saveCheckpoint(opts.CheckpointPath, sum, m); err != nil {
			return sum, err
		}
		logger.Warn("batch interrupted",
			slog.Int("processed", sum.Processed), slog.Int("total", sum.Total))
	} else if err := ClearCheckpoint(opts.CheckpointPath); err != nil {
		logger.Warn("clearing checkpoint", slog.String("error", err.Error()))
	}

	logger.Info("batch finished",
		slog.Int("processed", sum.Processed),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Float64("success_rate", sum.SuccessRate()),
		slog.Float64("per_minute", sum.RatePerMinute()),
		slog.Int("cache_flushes", flushed))
	d.publish(event.BatchCompleted, sum.RunID, map[string]any{
		"processed": sum.Processed, "total": sum.Total, "succeeded": sum.Succeeded,
		"failed": sum.Failed, "skipped": sum.Skipped, "interrupted": sum.Interrupted,
	})
	return sum, nil
}

// dispatch feeds subjects to at most opts.Concurrency workers until ctx
// is canceled or stop is called. The returned channel is closed once every
// dispatched subject has reported. Workers run on a context that ignores
// cancellation so an in-flight subject is never cut off mid-write.
func (d *Driver) dispatch(ctx context.Context, subjects []string, opts Options) (<-chan Result, context.CancelFunc) {
	dctx, stop := context.WithCancel(ctx)
	work := context.WithoutCancel(ctx)
	results := make(chan Result)
	sem := make(chan struct{}, opts.Concurrency)

	go func() {
		var g errgroup.Group
		for _, subject := range subjects {
			select {
			case <-dctx.Done():
			case sem <- struct{}{}:
			}
			if dctx.Err() != nil {
				break
			}
			g.Go(func() error {
				defer func() { <-sem }()
				results <- d.process(work, subject, opts.Year)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()
	return results, stop
}

// process classifies and persists one subject. Errors never escape; they
// become a failed result.
func (d *Driver) process(ctx context.Context, subject string, year int) (r Result) {
	start := d.now()
	r.Subject = subject
	defer func() { r.Duration = d.now().Sub(start) }()

	p, err := d.engine.ClassifyYear(ctx, subject, year)
	switch {
	case err != nil:
		r.Status, r.Err = StatusFailed, err
		return r
	case p.FromStore:
		r.Status, r.Genre, r.Confidence = StatusSkipped, p.PrimaryGenre, p.Confidence
		return r
	case len(p.Sources) == 0:
		r.Status, r.Err = StatusFailed, errNoData
		return r
	}

	n, err := d.engine.Persist(ctx, subject, year, p)
	if err != nil {
		r.Status, r.Err = StatusFailed, fmt.Errorf("persisting: %w", err)
		return r
	}
	r.Status, r.Genre, r.Confidence, r.Songs = StatusSucceeded, p.PrimaryGenre, p.Confidence, n
	return r
}

func (d *Driver) report(logger *slog.Logger, sum *Summary, r Result) {
	progress := []any{
		slog.String("subject", r.Subject),
		slog.Int("done", sum.Processed),
		slog.Int("total", sum.Total),
	}
	switch r.Status {
	case StatusSucceeded:
		logger.Info("subject classified", append(progress,
			slog.String("genre", r.Genre), slog.Float64("confidence", r.Confidence), slog.Int("songs", r.Songs))...)
		d.publish(event.SubjectClassified, sum.RunID, map[string]any{
			"subject": r.Subject, "genre": r.Genre, "confidence": r.Confidence, "songs": r.Songs,
		})
	case StatusSkipped:
		logger.Info("subject already classified", progress...)
		d.publish(event.SubjectSkipped, sum.RunID, map[string]any{"subject": r.Subject, "genre": r.Genre})
	default:
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		logger.Warn("subject failed", append(progress, slog.String("error", msg))...)
		d.publish(event.SubjectFailed, sum.RunID, map[string]any{"subject": r.Subject, "error": msg})
	}
}

func (d *Driver) saveCheckpoint(path string, sum *Summary, m *metrics) error {
	if err := SaveCheckpoint(path, sum.checkpoint(d.now())); err != nil {
		return err
	}
	m.checkpoints.Inc()
	d.publish(event.CheckpointWritten, sum.RunID, map[string]any{"processed": sum.Processed, "total": sum.Total})
	return nil
}

func (d *Driver) flush(logger *slog.Logger, m *metrics) {
	pending := d.cache.Pending()
	if err := d.cache.Flush(); err != nil {
		logger.Warn("flushing response cache", slog.String("error", err.Error()))
		return
	}
	m.flushes.Inc()
	logger.Debug("response cache flushed", slog.Int("entries", pending))
}

func (d *Driver) publish(t event.Type, runID string, data map[string]any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(event.Event{Type: t, RunID: runID, Timestamp: d.now().UTC(), Data: data})
}

func normalize(o Options) Options {
	if o.Concurrency < 1 {
		o.Concurrency = 3
	}
	o.Concurrency = min(o.Concurrency, MaxConcurrency)
	if o.CheckpointEvery < 1 {
		o.CheckpointEvery = 10
	}
	if o.FlushEvery < 1 {
		o.FlushEvery = 10
	}
	if o.CheckpointPath == "" {
		o.CheckpointPath = "classification_checkpoint.json"
	}
	return o
}
