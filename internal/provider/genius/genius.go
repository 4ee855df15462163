package genius

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/match"
	"github.com/dnhngynops/muindb/internal/provider"
)

const (
	defaultBaseURL = "https://api.genius.com"
	// maxHits bounds how many search hits are compared per query.
	maxHits = 15
)

// FieldAccessToken names the stored access token in settings.
const FieldAccessToken = "access_token"

// Adapter resolves songs to their Genius production and writing credits.
type Adapter struct {
	client      *http.Client
	limiter     *provider.RateLimiterMap
	settings    *provider.SettingsService
	accessToken string
	logger      *slog.Logger
	baseURL     string
}

// New creates a Genius adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, accessToken string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, accessToken, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Genius adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, accessToken string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     limiter,
		settings:    settings,
		accessToken: accessToken,
		logger:      logger.With(slog.String("provider", string(provider.NameGenius))),
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameGenius }

// FetchCredits searches each query variation of the song, keeps the most
// similar hit the matcher approves from the first query that yields one, and returns that song's producers and
// writers. Writers include custom performance roles labelled as writing.
func (a *Adapter) FetchCredits(ctx context.Context, title, artist string) (*provider.Credits, error) {
	token, err := a.getToken(ctx)
	if err != nil {
		return nil, err
	}

	for _, q := range match.Queries(title, artist) {
		params := url.Values{"q": {q}, "per_page": {strconv.Itoa(maxHits)}}
		body, err := a.get(ctx, token, "/search?"+params.Encode(), q)
		if err != nil {
			return nil, err
		}
		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing search: %w", err)
		}
		hits := resp.Response.Hits
		if len(hits) > maxHits {
			hits = hits[:maxHits]
		}
		var best match.Decision
		var bestID int64
		for _, h := range hits {
			if h.Type != "" && h.Type != "song" {
				continue
			}
			d := match.IsGoodMatch(h.Result.Title, h.Result.PrimaryArtist.Name, title, artist)
			if d.Beats(best) {
				best, bestID = d, h.Result.ID
			}
		}
		if best.IsMatch {
			a.logger.Debug("song matched",
				slog.String("query", q), slog.Int64("genius_id", bestID),
				slog.Int("title_similarity", best.TitleSimilarity), slog.Int("artist_similarity", best.ArtistSimilarity))
			return a.songCredits(ctx, token, bestID)
		}
	}
	return nil, &provider.ErrNoMatch{Provider: provider.NameGenius, Query: title + " " + artist}
}

// TestConnection verifies the access token with a cheap search.
func (a *Adapter) TestConnection(ctx context.Context) error {
	token, err := a.getToken(ctx)
	if err != nil {
		return err
	}
	_, err = a.get(ctx, token, "/search?q=Cher", "Cher")
	return err
}

func (a *Adapter) songCredits(ctx context.Context, token string, id int64) (*provider.Credits, error) {
	sid := strconv.FormatInt(id, 10)
	body, err := a.get(ctx, token, "/songs/"+sid, sid)
	if err != nil {
		return nil, err
	}
	var resp songResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing song %s: %w", sid, err)
	}
	song := resp.Response.Song

	c := &provider.Credits{SourceID: sid, Title: song.Title}
	for _, p := range song.ProducerArtists {
		c.Producers = appendName(c.Producers, p.Name)
	}
	for _, w := range song.WriterArtists {
		c.Writers = appendName(c.Writers, w.Name)
	}
	for _, perf := range song.CustomPerformances {
		if !strings.Contains(strings.ToLower(perf.Label), "writer") {
			continue
		}
		for _, ar := range perf.Artists {
			c.Writers = appendName(c.Writers, ar.Name)
		}
	}
	return c, nil
}

// appendName adds name unless it is blank or already present, ignoring case.
func appendName(names []string, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return names
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return names
		}
	}
	return append(names, name)
}

func (a *Adapter) getToken(ctx context.Context) (string, error) {
	token, err := a.settings.Resolve(ctx, provider.NameGenius, FieldAccessToken, a.accessToken)
	if err != nil {
		return "", fmt.Errorf("getting access token: %w", err)
	}
	if token == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameGenius}
	}
	return token, nil
}

func (a *Adapter) get(ctx context.Context, token, path, subject string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.NameGenius); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameGenius,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "muindb/1.0")

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameGenius, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameGenius, Cause: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameGenius}
	case http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameGenius, ID: subject}
	case http.StatusTooManyRequests:
		retry := 5 * time.Second
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			retry = time.Duration(s) * time.Second
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameGenius,
			Cause:      fmt.Errorf("rate limit exceeded"),
			RetryAfter: retry,
		}
	default:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameGenius,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}
}
