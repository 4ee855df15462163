package chartmetric

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dnhngynops/muindb/internal/provider"
)

const (
	defaultBaseURL = "https://api.chartmetric.com/api"
	// tokenMargin is how long before expiry a cached token is replaced.
	tokenMargin = 5 * time.Minute
	// defaultTokenTTL applies when the token response omits expires_in.
	defaultTokenTTL = time.Hour
)

// FieldRefreshToken names the stored refresh token in settings.
const FieldRefreshToken = "refresh_token"

// Adapter is the industry tag source backed by Chartmetric artist metadata.
type Adapter struct {
	client       *http.Client
	limiter      *provider.RateLimiterMap
	settings     *provider.SettingsService
	refreshToken string
	logger       *slog.Logger
	baseURL      string
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	tokenFor  string
}

// New creates a Chartmetric adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, refreshToken string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, refreshToken, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Chartmetric adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, refreshToken string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:       &http.Client{Timeout: 30 * time.Second},
		limiter:      limiter,
		settings:     settings,
		refreshToken: refreshToken,
		logger:       logger.With(slog.String("provider", string(provider.NameChartmetric))),
		baseURL:      strings.TrimRight(baseURL, "/"),
		now:          time.Now,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameChartmetric }

// Category reports that Chartmetric genres are industry curated.
func (a *Adapter) Category() provider.Category { return provider.CategoryIndustry }

// FetchTags looks up the first artist search hit and returns the genres
// on its metadata record.
func (a *Adapter) FetchTags(ctx context.Context, artist string) ([]provider.Tag, error) {
	params := url.Values{"q": {artist}, "type": {"artists"}, "limit": {"1"}}
	body, err := a.get(ctx, "/search?"+params.Encode(), artist)
	if err != nil {
		return nil, err
	}
	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("parsing artist search: %w", err)
	}
	if len(search.Obj.Artists) == 0 || search.Obj.Artists[0].ID == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameChartmetric, ID: artist}
	}
	id := search.Obj.Artists[0].ID

	body, err = a.get(ctx, "/artist/"+strconv.FormatInt(id, 10), artist)
	if err != nil {
		return nil, err
	}
	var meta artistResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parsing artist metadata: %w", err)
	}
	names := meta.Obj.Genres.names()
	tags := make([]provider.Tag, 0, len(names))
	for _, n := range names {
		tags = append(tags, provider.Tag{Name: n})
	}
	a.logger.Debug("artist genres",
		slog.String("artist", artist), slog.Int64("chartmetric_id", id), slog.Int("genres", len(tags)))
	return tags, nil
}

// TestConnection verifies the refresh token by exchanging it.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.accessToken(ctx)
	return err
}

func (a *Adapter) get(ctx context.Context, path, subject string) ([]byte, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	status, body, err := a.do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK:
		return body, nil
	case status == http.StatusUnauthorized:
		// The access token may have been revoked early; force a new one.
		a.mu.Lock()
		a.token = ""
		a.mu.Unlock()
		return nil, &provider.ErrAuthRequired{Provider: provider.NameChartmetric}
	case status == http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameChartmetric}
	case status == http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameChartmetric, ID: subject}
	case status == http.StatusTooManyRequests:
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameChartmetric,
			Cause:      fmt.Errorf("rate limit exceeded"),
			RetryAfter: 30 * time.Second,
		}
	default:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameChartmetric,
			Cause:    fmt.Errorf("HTTP %d", status),
		}
	}
}

// accessToken returns a cached access token, exchanging the refresh token
// when none is held or the held one is within tokenMargin of expiry.
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	refresh, err := a.settings.Resolve(ctx, provider.NameChartmetric, FieldRefreshToken, a.refreshToken)
	if err != nil {
		return "", fmt.Errorf("getting refresh token: %w", err)
	}
	if refresh == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameChartmetric}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.tokenFor == refresh && a.now().Before(a.expiresAt.Add(-tokenMargin)) {
		return a.token, nil
	}

	if err := a.wait(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]string{"refreshtoken": refresh})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := a.do(req)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return "", &provider.ErrAuthRequired{Provider: provider.NameChartmetric}
	default:
		return "", &provider.ErrProviderUnavailable{
			Provider: provider.NameChartmetric,
			Cause:    fmt.Errorf("token exchange: HTTP %d", status),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.Token == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameChartmetric}
	}
	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	a.token = tr.Token
	a.tokenFor = refresh
	a.expiresAt = a.now().Add(ttl)
	a.logger.Debug("access token refreshed", slog.Time("expires_at", a.expiresAt))
	return a.token, nil
}

func (a *Adapter) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("User-Agent", "muindb/1.0")
	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return 0, nil, &provider.ErrProviderUnavailable{Provider: provider.NameChartmetric, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return 0, nil, &provider.ErrProviderUnavailable{Provider: provider.NameChartmetric, Cause: err}
	}
	return resp.StatusCode, body, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if err := a.limiter.Wait(ctx, provider.NameChartmetric); err != nil {
		return &provider.ErrProviderUnavailable{
			Provider: provider.NameChartmetric,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}
	return nil
}
