package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dnhngynops/muindb/internal/match"
	"github.com/dnhngynops/muindb/internal/provider"
)

const (
	defaultAPIURL = "https://api.spotify.com/v1/"
	searchLimit   = 10
)

// Credential field names in the settings table.
const (
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
)

// Adapter is the algorithmic tag source backed by Spotify artist genres.
// It also resolves songs to their audio features.
type Adapter struct {
	limiter      *provider.RateLimiterMap
	settings     *provider.SettingsService
	clientID     string
	clientSecret string
	logger       *slog.Logger
	apiURL       string
	tokenURL     string

	mu    sync.Mutex
	api   *spotifyapi.Client
	creds string
}

// New creates a Spotify adapter against the public API. Empty credentials
// fall back to the ones stored in settings.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, clientID, clientSecret string, logger *slog.Logger) *Adapter {
	a := NewWithBaseURL(limiter, settings, clientID, clientSecret, logger, "")
	a.apiURL = defaultAPIURL
	a.tokenURL = spotifyauth.TokenURL
	return a
}

// NewWithBaseURL creates a Spotify adapter whose API lives under
// baseURL/v1/ and whose token endpoint is baseURL/api/token (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, clientID, clientSecret string, logger *slog.Logger, baseURL string) *Adapter {
	base := strings.TrimRight(baseURL, "/")
	return &Adapter{
		limiter:      limiter,
		settings:     settings,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.With(slog.String("provider", string(provider.NameSpotify))),
		apiURL:       base + "/v1/",
		tokenURL:     base + "/api/token",
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameSpotify }

// Category reports that Spotify genres are assigned algorithmically.
func (a *Adapter) Category() provider.Category { return provider.CategoryAlgorithmic }

// FetchTags returns the genres of the best-scoring artist for the query.
// Spotify genres carry no weight of their own, so every tag takes the
// category default confidence.
func (a *Adapter) FetchTags(ctx context.Context, artist string) ([]provider.Tag, error) {
	best, err := a.SearchArtist(ctx, artist)
	if err != nil {
		return nil, err
	}
	return genreTags(best.Genres), nil
}

// FetchSongTags finds the song's track and returns the genres of its
// first credited artist.
func (a *Adapter) FetchSongTags(ctx context.Context, title, artist string) ([]provider.Tag, error) {
	track, err := a.findTrack(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	if len(track.Artists) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, ID: string(track.ID)}
	}
	api, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	full, err := api.GetArtist(ctx, track.Artists[0].ID)
	if err != nil {
		return nil, a.mapError(err, string(track.Artists[0].ID))
	}
	return genreTags(full.Genres), nil
}

// Match is an accepted artist search hit.
type Match struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Score      float64  `json:"score"`
	Variation  string   `json:"variation"`
}

// SearchArtist searches every name variation of artist and returns the
// highest scoring candidate. Candidates scoring below MinArtistScore are
// rejected with ErrNoMatch.
func (a *Adapter) SearchArtist(ctx context.Context, artist string) (*Match, error) {
	api, err := a.client(ctx)
	if err != nil {
		return nil, err
	}

	var best *Match
	var lastErr error
	for _, variation := range NameVariations(artist) {
		if err := a.wait(ctx); err != nil {
			return nil, err
		}
		res, err := api.Search(ctx, "artist:"+variation, spotifyapi.SearchTypeArtist, spotifyapi.Limit(searchLimit))
		if err != nil {
			lastErr = a.mapError(err, variation)
			var auth *provider.ErrAuthRequired
			if errors.As(lastErr, &auth) || ctx.Err() != nil {
				return nil, lastErr
			}
			a.logger.Debug("artist search failed", slog.String("query", variation), slog.String("error", err.Error()))
			continue
		}
		if res.Artists == nil {
			continue
		}
		for _, cand := range res.Artists.Artists {
			score := ScoreArtist(cand.Name, int(cand.Popularity), len(cand.Genres) > 0, artist)
			if best == nil || score > best.Score {
				best = &Match{
					ID:         string(cand.ID),
					Name:       cand.Name,
					Genres:     cand.Genres,
					Popularity: int(cand.Popularity),
					Score:      score,
					Variation:  variation,
				}
			}
		}
	}

	if best == nil && lastErr != nil {
		return nil, lastErr
	}
	if best == nil || best.Score < MinArtistScore {
		return nil, &provider.ErrNoMatch{Provider: provider.NameSpotify, Query: artist}
	}
	if best.Variation != artist {
		a.logger.Debug("artist found via variation",
			slog.String("artist", artist), slog.String("variation", best.Variation),
			slog.String("matched", best.Name), slog.Float64("score", best.Score))
	}
	return best, nil
}

// AudioFeatures resolves a song to its track and returns the track's
// audio features keyed by their API names.
func (a *Adapter) AudioFeatures(ctx context.Context, title, artist string) (provider.Features, error) {
	track, err := a.findTrack(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	api, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	list, err := api.GetAudioFeatures(ctx, track.ID)
	if err != nil {
		return nil, a.mapError(err, string(track.ID))
	}
	if len(list) == 0 || list[0] == nil {
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, ID: string(track.ID)}
	}
	f := list[0]
	return provider.Features{
		"danceability":     float64(f.Danceability),
		"energy":           float64(f.Energy),
		"key":              float64(f.Key),
		"loudness":         float64(f.Loudness),
		"mode":             float64(f.Mode),
		"speechiness":      float64(f.Speechiness),
		"acousticness":     float64(f.Acousticness),
		"instrumentalness": float64(f.Instrumentalness),
		"liveness":         float64(f.Liveness),
		"valence":          float64(f.Valence),
		"tempo":            float64(f.Tempo),
		"duration_ms":      float64(f.Duration),
		"time_signature":   float64(f.TimeSignature),
	}, nil
}

// findTrack runs each query variation through track search and returns the
// most similar accepted hit of the first query that yields one.
func (a *Adapter) findTrack(ctx context.Context, title, artist string) (*spotifyapi.FullTrack, error) {
	api, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	for _, q := range match.Queries(title, artist) {
		if err := a.wait(ctx); err != nil {
			return nil, err
		}
		res, err := api.Search(ctx, q, spotifyapi.SearchTypeTrack, spotifyapi.Limit(searchLimit))
		if err != nil {
			mapped := a.mapError(err, q)
			var unavailable *provider.ErrProviderUnavailable
			if errors.As(mapped, &unavailable) && ctx.Err() == nil {
				a.logger.Debug("track search failed", slog.String("query", q), slog.String("error", err.Error()))
				continue
			}
			return nil, mapped
		}
		if res.Tracks == nil {
			continue
		}
		var best match.Decision
		var found *spotifyapi.FullTrack
		for i := range res.Tracks.Tracks {
			t := &res.Tracks.Tracks[i]
			d := match.IsGoodMatch(t.Name, artistNames(t.Artists), title, artist)
			if d.Beats(best) {
				best, found = d, t
			}
		}
		if found != nil {
			a.logger.Debug("track matched",
				slog.String("query", q), slog.String("track", found.Name),
				slog.Int("title_similarity", best.TitleSimilarity), slog.Int("artist_similarity", best.ArtistSimilarity))
			return found, nil
		}
	}
	return nil, &provider.ErrNoMatch{Provider: provider.NameSpotify, Query: title + " " + artist}
}

// TestConnection verifies the client credentials with a cheap search.
func (a *Adapter) TestConnection(ctx context.Context) error {
	api, err := a.client(ctx)
	if err != nil {
		return err
	}
	if _, err := api.Search(ctx, "artist:Cher", spotifyapi.SearchTypeArtist, spotifyapi.Limit(1)); err != nil {
		return a.mapError(err, "Cher")
	}
	return nil
}

// client returns an API client for the current credentials. Tokens are
// fetched and refreshed by the client credentials transport.
func (a *Adapter) client(ctx context.Context) (*spotifyapi.Client, error) {
	id, err := a.settings.Resolve(ctx, provider.NameSpotify, FieldClientID, a.clientID)
	if err != nil {
		return nil, fmt.Errorf("getting client id: %w", err)
	}
	secret, err := a.settings.Resolve(ctx, provider.NameSpotify, FieldClientSecret, a.clientSecret)
	if err != nil {
		return nil, fmt.Errorf("getting client secret: %w", err)
	}
	if id == "" || secret == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.api != nil && a.creds == id+"\x00"+secret {
		return a.api, nil
	}
	cc := &clientcredentials.Config{ClientID: id, ClientSecret: secret, TokenURL: a.tokenURL}
	base := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
	hc := cc.Client(base)
	hc.Timeout = 15 * time.Second
	a.api = spotifyapi.New(hc, spotifyapi.WithBaseURL(a.apiURL))
	a.creds = id + "\x00" + secret
	return a.api, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if err := a.limiter.Wait(ctx, provider.NameSpotify); err != nil {
		return &provider.ErrProviderUnavailable{
			Provider: provider.NameSpotify,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}
	return nil
}

func (a *Adapter) mapError(err error, query string) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.Response != nil && retrieve.Response.StatusCode >= 500 {
			return &provider.ErrProviderUnavailable{Provider: provider.NameSpotify, Cause: err}
		}
		return &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	}

	status := 0
	var apiErr spotifyapi.Error
	var apiErrPtr *spotifyapi.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	case http.StatusNotFound:
		return &provider.ErrNotFound{Provider: provider.NameSpotify, ID: query}
	case http.StatusTooManyRequests:
		return &provider.ErrProviderUnavailable{
			Provider:   provider.NameSpotify,
			Cause:      fmt.Errorf("rate limit exceeded: %w", err),
			RetryAfter: 30 * time.Second,
		}
	}
	return &provider.ErrProviderUnavailable{Provider: provider.NameSpotify, Cause: err}
}

func artistNames(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, ar := range artists {
		names[i] = ar.Name
	}
	return strings.Join(names, ", ")
}

func genreTags(genres []string) []provider.Tag {
	tags := make([]provider.Tag, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			tags = append(tags, provider.Tag{Name: g})
		}
	}
	return tags
}
