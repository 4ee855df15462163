package batch

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the counters of one run. Each run gets its own registry
// so the textfile reflects that run alone.
type metrics struct {
	reg         *prometheus.Registry
	subjects    *prometheus.CounterVec
	genres      *prometheus.CounterVec
	duration    prometheus.Histogram
	checkpoints prometheus.Counter
	flushes     prometheus.Counter
	songs       prometheus.Counter
	elapsed     prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		reg: reg,
		subjects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muindb_batch_subjects_total",
			Help: "Subjects processed by outcome",
		}, []string{"status"}),
		genres: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muindb_batch_classified_total",
			Help: "Subjects classified by primary genre",
		}, []string{"genre"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "muindb_batch_subject_duration_seconds",
			Help:    "Time to classify and persist one subject",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		checkpoints: f.NewCounter(prometheus.CounterOpts{
			Name: "muindb_batch_checkpoints_total",
			Help: "Checkpoints written",
		}),
		flushes: f.NewCounter(prometheus.CounterOpts{
			Name: "muindb_batch_cache_flushes_total",
			Help: "Response cache flushes",
		}),
		songs: f.NewCounter(prometheus.CounterOpts{
			Name: "muindb_batch_songs_updated_total",
			Help: "Catalog songs updated with a classification",
		}),
		elapsed: f.NewGauge(prometheus.GaugeOpts{
			Name: "muindb_batch_last_run_seconds",
			Help: "Wall time of the last batch run",
		}),
	}
}

func (m *metrics) observe(r Result) {
	m.subjects.WithLabelValues(string(r.Status)).Inc()
	m.duration.Observe(r.Duration.Seconds())
	if r.Status == StatusSucceeded {
		m.genres.WithLabelValues(r.Genre).Inc()
		m.songs.Add(float64(r.Songs))
	}
}

func (m *metrics) writeTextfile(path string, elapsed time.Duration) error {
	m.elapsed.Set(elapsed.Seconds())
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics %s: %w", path, err)
	}
	return nil
}
