package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per source (requests per second).
var defaultRateLimits = map[Name]rate.Limit{
	NameSpotify:     5,
	NameChartmetric: 1,
	NameLastFM:      5,
	NameGenius:      5,
}

// RateLimiterMap holds one rate.Limiter per source, created once at startup
// and shared by every worker.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[Name]*rate.Limiter
}

// NewRateLimiterMap creates limiters for every source. Entries in overrides
// replace the defaults; a non-positive override disables limiting.
func NewRateLimiterMap(overrides map[Name]float64) *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[Name]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	for name, rps := range overrides {
		if rps <= 0 {
			delete(m.limiters, name)
			continue
		}
		m.limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return m
}

// Wait blocks until the limiter for the given source allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name Name) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
