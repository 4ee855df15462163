package lastfm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/provider"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Adapter is the community tag source backed by Last.fm top tags.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	apiKey   string
	logger   *slog.Logger
	baseURL  string
}

// New creates a Last.fm adapter with the default base URL. apiKey may be
// empty, in which case the stored key from settings is used.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		apiKey:   apiKey,
		logger:   logger.With(slog.String("provider", string(provider.NameLastFM))),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameLastFM }

// Category reports that Last.fm tags come from listeners.
func (a *Adapter) Category() provider.Category { return provider.CategoryCommunity }

// FetchTags returns up to five genre tags for artist, scored by genre
// relevance and community weight.
func (a *Adapter) FetchTags(ctx context.Context, artist string) ([]provider.Tag, error) {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, provider.NameLastFM); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"method":      {"artist.getTopTags"},
		"artist":      {artist},
		"api_key":     {apiKey},
		"autocorrect": {"1"},
		"format":      {"json"},
		"limit":       {"30"},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp TopTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tags: %w", err)
	}
	if err := a.apiError(resp.Error, resp.Message, artist); err != nil {
		return nil, err
	}

	scored := scoreTags(resp.TopTags.Tag)
	tags := make([]provider.Tag, 0, len(scored))
	for _, s := range scored {
		tags = append(tags, provider.Tag{Name: s.name, Confidence: s.confidence})
	}
	a.logger.Debug("top tags scored",
		slog.String("artist", artist),
		slog.Int("raw", len(resp.TopTags.Tag)),
		slog.Int("kept", len(tags)))
	return tags, nil
}

// TestConnection verifies the API key with a cheap lookup.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.FetchTags(ctx, "Cher")
	return err
}

func (a *Adapter) apiError(code int, message, artist string) error {
	switch code {
	case 0:
		return nil
	case errInvalidParams:
		return &provider.ErrNotFound{Provider: provider.NameLastFM, ID: artist}
	case errInvalidAPIKey, errSuspendedAPIKey:
		return &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	case errRateLimited:
		return &provider.ErrProviderUnavailable{
			Provider:   provider.NameLastFM,
			Cause:      fmt.Errorf("rate limit exceeded: %s", message),
			RetryAfter: 30 * time.Second,
		}
	default:
		return &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("api error %d: %s", code, message),
		}
	}
}

func (a *Adapter) getAPIKey(ctx context.Context) (string, error) {
	apiKey, err := a.settings.Resolve(ctx, provider.NameLastFM, "", a.apiKey)
	if err != nil {
		return "", fmt.Errorf("getting API key: %w", err)
	}
	if apiKey == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	}
	return apiKey, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "muindb/1.0")
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("method", req.URL.Query().Get("method")))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameLastFM, Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// Last.fm reports API errors with a JSON body on 4xx.
		var e TopTagsResponse
		if json.Unmarshal(body, &e) == nil && e.Error != 0 {
			return nil, a.apiError(e.Error, e.Message, req.URL.Query().Get("artist"))
		}
		return nil, &provider.ErrNotFound{Provider: provider.NameLastFM, ID: req.URL.Query().Get("artist")}
	default:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}
}
