package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker placed in front of each
// remote source.
type BreakerSettings struct {
	MaxRequests      uint32        // trial requests allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open-state duration before retrying
	FailureThreshold uint32        // consecutive failures that trip the breaker
}

// DefaultBreakerSettings returns the settings used when none are configured.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

type breakerSource struct {
	inner  TagSource
	cb     *gobreaker.CircuitBreaker[[]Tag]
	logger *slog.Logger
}

// WithBreaker wraps src in a circuit breaker. Misses (ErrNotFound, ErrNoMatch)
// and caller cancellation do not count as failures; an open breaker surfaces
// as ErrProviderUnavailable so callers treat it like any transient outage.
func WithBreaker(src TagSource, st BreakerSettings, logger *slog.Logger) SongTagSource {
	logger = logger.With(slog.String("component", "breaker"), slog.String("provider", string(src.Name())))
	threshold := st.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerSettings().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        string(src.Name()),
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Warn("circuit breaker opened", slog.String("from", from.String()))
				return
			}
			logger.Info("circuit breaker state change",
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
		IsExcluded: isMiss,
	}
	return &breakerSource{
		inner:  src,
		cb:     gobreaker.NewCircuitBreaker[[]Tag](settings),
		logger: logger,
	}
}

func (b *breakerSource) Name() Name         { return b.inner.Name() }
func (b *breakerSource) Category() Category { return b.inner.Category() }

func (b *breakerSource) FetchTags(ctx context.Context, artist string) ([]Tag, error) {
	return b.execute(func() ([]Tag, error) { return b.inner.FetchTags(ctx, artist) })
}

func (b *breakerSource) FetchSongTags(ctx context.Context, title, artist string) ([]Tag, error) {
	st, ok := b.inner.(SongTagSource)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return b.execute(func() ([]Tag, error) { return st.FetchSongTags(ctx, title, artist) })
}

// Unwrap exposes the wrapped source so callers can reach optional
// capabilities such as FeatureSource.
func (b *breakerSource) Unwrap() TagSource { return b.inner }

func (b *breakerSource) execute(fn func() ([]Tag, error)) ([]Tag, error) {
	tags, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ErrProviderUnavailable{Provider: b.inner.Name(), Cause: fmt.Errorf("circuit breaker: %w", err)}
	}
	return tags, err
}

func isMiss(err error) bool {
	if err == nil {
		return false
	}
	var nf *ErrNotFound
	var nm *ErrNoMatch
	return errors.As(err, &nf) || errors.As(err, &nm) ||
		errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrUnsupported)
}

// Unwrapper is implemented by decorators that wrap a TagSource.
type Unwrapper interface {
	Unwrap() TagSource
}

// Innermost peels decorators off src until it reaches the concrete source.
func Innermost(src TagSource) TagSource {
	for {
		u, ok := src.(Unwrapper)
		if !ok {
			return src
		}
		src = u.Unwrap()
	}
}
