package provider

import (
	"context"
	"fmt"
	"time"
)

// Name uniquely identifies a classification source.
type Name string

// Known source names.
const (
	NameSpotify     Name = "spotify"
	NameChartmetric Name = "chartmetric"
	NameLastFM      Name = "lastfm"
	NameGenius      Name = "genius"
	NameCatalog     Name = "catalog"
)

// AllNames returns every known source in polling and display order.
func AllNames() []Name {
	return []Name{NameSpotify, NameChartmetric, NameLastFM, NameCatalog, NameGenius}
}

// DisplayName returns a human-readable name for the source.
func (n Name) DisplayName() string {
	switch n {
	case NameSpotify:
		return "Spotify"
	case NameChartmetric:
		return "Chartmetric"
	case NameLastFM:
		return "Last.fm"
	case NameGenius:
		return "Genius"
	case NameCatalog:
		return "Internal catalog"
	default:
		return string(n)
	}
}

// Category classifies how a source arrives at its tags. The reasoning
// engine weighs tags by category, not by source name.
type Category string

// Source categories.
const (
	CategoryAlgorithmic Category = "algorithmic"
	CategoryCommunity   Category = "community"
	CategoryIndustry    Category = "industry"
	CategoryDatabase    Category = "database"
)

// AccessTier classifies a source's access model.
type AccessTier string

// Access tiers.
const (
	TierFree    AccessTier = "free"     // no credentials
	TierFreeKey AccessTier = "free_key" // free account required
	TierPaid    AccessTier = "paid"
)

// Capability documents a source's access model and known rate limit.
type Capability struct {
	Tier              AccessTier `json:"tier"`
	HelpURL           string     `json:"help_url,omitempty"`
	RequestsPerSecond float64    `json:"requests_per_second,omitempty"`
}

// Capabilities returns the known capability metadata for each remote source.
func Capabilities() map[Name]Capability {
	return map[Name]Capability{
		NameSpotify: {
			Tier:              TierFreeKey,
			HelpURL:           "https://developer.spotify.com/dashboard",
			RequestsPerSecond: 5,
		},
		NameChartmetric: {
			Tier:              TierPaid,
			HelpURL:           "https://api.chartmetric.com/apidoc/",
			RequestsPerSecond: 1,
		},
		NameLastFM: {
			Tier:              TierFreeKey,
			HelpURL:           "https://www.last.fm/api/account/create",
			RequestsPerSecond: 5,
		},
		NameGenius: {
			Tier:              TierFreeKey,
			HelpURL:           "https://genius.com/api-clients",
			RequestsPerSecond: 5,
		},
	}
}

// Tag is one genre label reported by a source. A zero Confidence means the
// source has no opinion and the category default applies.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TagSource returns genre tags for an artist query.
type TagSource interface {
	Name() Name
	Category() Category
	FetchTags(ctx context.Context, artist string) ([]Tag, error)
}

// SongTagSource is implemented by sources that can tag an individual song.
type SongTagSource interface {
	TagSource
	FetchSongTags(ctx context.Context, title, artist string) ([]Tag, error)
}

// Features holds named numeric audio descriptors such as tempo or energy.
type Features map[string]float64

// FeatureSource resolves a song to its audio features.
type FeatureSource interface {
	AudioFeatures(ctx context.Context, title, artist string) (Features, error)
}

// Credits lists the people credited on a song.
type Credits struct {
	SourceID  string   `json:"source_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Producers []string `json:"producers,omitempty"`
	Writers   []string `json:"writers,omitempty"`
}

// CreditSource resolves a song to its production and writing credits.
type CreditSource interface {
	FetchCredits(ctx context.Context, title, artist string) (*Credits, error)
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   Name
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the source has no record for the requested ID.
type ErrNotFound struct {
	Provider Name
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
}

// ErrNoMatch indicates a search returned candidates but none was accepted.
type ErrNoMatch struct {
	Provider Name
	Query    string
}

func (e *ErrNoMatch) Error() string {
	return fmt.Sprintf("provider %s: no acceptable match for %q", e.Provider, e.Query)
}

// ErrAuthRequired indicates the source needs credentials but none are configured
// or the configured ones were rejected.
type ErrAuthRequired struct {
	Provider Name
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: credentials missing or rejected", e.Provider)
}
