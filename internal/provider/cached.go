package provider

import (
	"context"
	"errors"
	"strings"

	json "github.com/goccy/go-json"
)

// ResponseCache stores raw source responses keyed by source and query.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

type cachedSource struct {
	inner TagSource
	store ResponseCache
}

// WithCache wraps src in a read-through cache. Only successful responses are
// stored, so a transient failure is retried on the next run.
func WithCache(src TagSource, store ResponseCache) SongTagSource {
	return &cachedSource{inner: src, store: store}
}

// CacheKey returns the key under which a response for query is stored.
func CacheKey(name Name, query string) string {
	return string(name) + ":" + strings.ToLower(strings.TrimSpace(query))
}

func (c *cachedSource) Name() Name         { return c.inner.Name() }
func (c *cachedSource) Category() Category { return c.inner.Category() }
func (c *cachedSource) Unwrap() TagSource  { return c.inner }

func (c *cachedSource) FetchTags(ctx context.Context, artist string) ([]Tag, error) {
	return c.lookup(CacheKey(c.inner.Name(), artist), func() ([]Tag, error) {
		return c.inner.FetchTags(ctx, artist)
	})
}

func (c *cachedSource) FetchSongTags(ctx context.Context, title, artist string) ([]Tag, error) {
	st, ok := c.inner.(SongTagSource)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	key := CacheKey(c.inner.Name(), "song:"+title+"|"+artist)
	return c.lookup(key, func() ([]Tag, error) {
		return st.FetchSongTags(ctx, title, artist)
	})
}

func (c *cachedSource) lookup(key string, fetch func() ([]Tag, error)) ([]Tag, error) {
	if raw, ok := c.store.Get(key); ok {
		var tags []Tag
		if err := json.Unmarshal(raw, &tags); err == nil {
			return tags, nil
		}
	}
	tags, err := fetch()
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(tags); err == nil {
		_ = c.store.Put(key, raw)
	}
	return tags, nil
}
