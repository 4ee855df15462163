package genre

import (
	"errors"
	"sync"

	"github.com/dnhngynops/muindb/internal/provider"
)

// ErrSourceUnavailable is reported when a source yields no usable data.
var ErrSourceUnavailable = errors.New("source unavailable")

// maxSecondaryTags caps the secondary tags kept on a profile.
const maxSecondaryTags = 10

// Crossover indicators.
const (
	IndicatorCrossover     = "multi_genre_crossover"
	IndicatorHighDiversity = "high_genre_diversity"
)

// Source is one tag reported by one source, as counted in the vote.
type Source struct {
	Source     provider.Name     `json:"source"`
	Tag        string            `json:"tag"`
	Confidence float64           `json:"confidence"`
	Category   provider.Category `json:"category"`
}

// Profile is the classification of one subject.
type Profile struct {
	Subject             string    `json:"subject"`
	PrimaryArtist       string    `json:"primary_artist"`
	Sources             []Source  `json:"sources"`
	PrimaryGenre        string    `json:"primary_genre"`
	Confidence          float64   `json:"confidence"`
	SecondaryTags       []string  `json:"secondary_tags"`
	CrossoverIndicators []string  `json:"crossover_indicators"`
	Insights            *Insights `json:"insights,omitempty"`
	FromStore           bool      `json:"from_store,omitempty"`
	Inherited           bool      `json:"inherited,omitempty"`
}

// ProfileCache holds profiles computed in this process, keyed by primary
// artist. It is safe for concurrent use.
type ProfileCache struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewProfileCache creates an empty cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{profiles: make(map[string]*Profile)}
}

func cacheKey(primaryArtist string) string { return "artist_" + primaryArtist }

// Get returns the cached profile for a primary artist.
func (c *ProfileCache) Get(primaryArtist string) (*Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[cacheKey(primaryArtist)]
	return p, ok
}

// Put stores a profile under its primary artist.
func (c *ProfileCache) Put(p *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[cacheKey(p.PrimaryArtist)] = p
}

// Len returns the number of cached profiles.
func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
