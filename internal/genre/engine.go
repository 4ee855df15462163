package genre

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dnhngynops/muindb/internal/catalog"
	"github.com/dnhngynops/muindb/internal/match"
	"github.com/dnhngynops/muindb/internal/provider"
)

// Store is the slice of the catalog the engine reads and writes.
type Store interface {
	Coverage(ctx context.Context, subject string, year int, minConfidence float64) (catalog.Coverage, error)
	StoredClassification(ctx context.Context, subject string, year int) (*catalog.Stored, error)
	SaveClassification(ctx context.Context, c catalog.Classification) (int, error)
	CreditedSongs(ctx context.Context, name, role string, limit int) ([]catalog.Song, error)
}

// Options tunes the reasoning engine.
type Options struct {
	// HighConfidence is the stored confidence above which a fully covered
	// subject is not reclassified.
	HighConfidence float64
	// CrossoverRatio is the runner-up share of the winner's weight that
	// flags a crossover.
	CrossoverRatio float64
	// ShortCircuit skips the industry source when the algorithmic source
	// returned tags.
	ShortCircuit bool
	Weights      Weights
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		HighConfidence: 0.8,
		CrossoverRatio: 0.6,
		ShortCircuit:   true,
		Weights:        DefaultWeights(),
	}
}

// Engine classifies subjects by polling sources and voting on their tags.
type Engine struct {
	registry *provider.Registry
	store    Store
	cache    *ProfileCache
	opts     Options
	logger   *slog.Logger
}

// NewEngine creates an engine. store may be nil, which disables the stored
// classification check and persistence. cache may be nil for a private one.
func NewEngine(registry *provider.Registry, store Store, cache *ProfileCache, opts Options, logger *slog.Logger) *Engine {
	if cache == nil {
		cache = NewProfileCache()
	}
	if opts.Weights == nil {
		opts.Weights = DefaultWeights()
	}
	return &Engine{
		registry: registry,
		store:    store,
		cache:    cache,
		opts:     opts,
		logger:   logger.With(slog.String("component", "genre")),
	}
}

// Classify resolves subject's primary genre across all years.
func (e *Engine) Classify(ctx context.Context, subject string) (*Profile, error) {
	return e.ClassifyYear(ctx, subject, 0)
}

// ClassifyYear resolves subject's primary genre. A subject whose songs in
// year are all classified above the high-confidence threshold is answered
// from the store. Source failures count as no data; the only error returned
// is the context's.
func (e *Engine) ClassifyYear(ctx context.Context, subject string, year int) (*Profile, error) {
	primary := match.PrimaryArtist(subject)
	if primary == "" {
		primary = strings.ToLower(strings.TrimSpace(subject))
	}
	if primary != strings.ToLower(strings.TrimSpace(subject)) {
		e.logger.Info("using primary artist",
			slog.String("subject", subject),
			slog.String("primary_artist", primary))
	}

	if p := e.fromStore(ctx, subject, primary, year); p != nil {
		return p, nil
	}
	if p, ok := e.cache.Get(primary); ok {
		e.logger.Debug("profile cache hit", slog.String("primary_artist", primary))
		return p, nil
	}

	sources, err := e.poll(ctx, primary)
	if err != nil {
		return nil, err
	}

	p := &Profile{Subject: subject, PrimaryArtist: primary, Sources: sources}
	vote(p, e.opts.Weights, e.opts.CrossoverRatio)
	p.Insights = BuildInsights(p)
	e.cache.Put(p)

	e.logger.Info("classified",
		slog.String("subject", subject),
		slog.String("genre", p.PrimaryGenre),
		slog.Float64("confidence", p.Confidence),
		slog.Int("sources", len(p.Sources)))
	return p, nil
}

func (e *Engine) fromStore(ctx context.Context, subject, primary string, year int) *Profile {
	if e.store == nil {
		return nil
	}
	cov, err := e.store.Coverage(ctx, primary, year, e.opts.HighConfidence)
	if err != nil {
		e.logger.Warn("reading coverage", slog.String("subject", primary), slog.String("error", err.Error()))
		return nil
	}
	if !cov.Complete() {
		return nil
	}
	st, err := e.store.StoredClassification(ctx, primary, year)
	if err != nil || st == nil || st.Confidence <= e.opts.HighConfidence {
		return nil
	}

	e.logger.Info("already classified",
		slog.String("subject", subject),
		slog.String("genre", st.Genre),
		slog.Float64("confidence", st.Confidence))
	p := &Profile{
		Subject:             subject,
		PrimaryArtist:       primary,
		PrimaryGenre:        st.Genre,
		Confidence:          st.Confidence,
		SecondaryTags:       append([]string{}, st.Subgenres...),
		CrossoverIndicators: []string{},
		FromStore:           true,
	}
	if st.HasProfile {
		p.Sources = make([]Source, len(st.Votes))
		for i, v := range st.Votes {
			p.Sources[i] = Source{
				Source:     provider.Name(v.Source),
				Tag:        v.Tag,
				Confidence: v.Confidence,
				Category:   provider.Category(v.Category),
			}
		}
		p.SecondaryTags = append([]string{}, st.SecondaryTags...)
		p.CrossoverIndicators = append([]string{}, st.CrossoverIndicators...)
	} else {
		// Saved per song only: the stored genre stands in as the single vote.
		p.Sources = []Source{{
			Source:     provider.NameCatalog,
			Tag:        st.Genre,
			Confidence: st.Confidence,
			Category:   provider.CategoryDatabase,
		}}
	}
	p.Insights = BuildInsights(p)
	return p
}

// poll queries the sources in tier order: algorithmic, then industry when
// the first tier was empty or short-circuiting is off, then community and
// database together.
func (e *Engine) poll(ctx context.Context, query string) ([]Source, error) {
	var sources []Source

	fast := e.fetch(ctx, e.registry.ByCategory(provider.CategoryAlgorithmic), query)
	sources = append(sources, fast...)

	if len(fast) == 0 || !e.opts.ShortCircuit {
		sources = append(sources, e.fetch(ctx, e.registry.ByCategory(provider.CategoryIndustry), query)...)
	} else {
		e.logger.Debug("skipping industry source", slog.String("query", query))
	}

	var mu sync.Mutex
	rest := make(map[provider.Category][]Source)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range []provider.Category{provider.CategoryCommunity, provider.CategoryDatabase} {
		src := e.registry.ByCategory(c)
		if src == nil {
			continue
		}
		g.Go(func() error {
			got := e.fetch(gctx, src, query)
			mu.Lock()
			rest[c] = got
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sources = append(sources, rest[provider.CategoryCommunity]...)
	sources = append(sources, rest[provider.CategoryDatabase]...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

// fetch calls one source. Failures are logged and yield no tags.
func (e *Engine) fetch(ctx context.Context, src provider.TagSource, query string) []Source {
	if src == nil || ctx.Err() != nil {
		return nil
	}
	tags, err := src.FetchTags(ctx, query)
	if err != nil {
		if ctx.Err() == nil {
			e.logSourceError(src.Name(), query, err)
		}
		return nil
	}
	return toSources(src, tags)
}

func (e *Engine) logSourceError(name provider.Name, query string, err error) {
	var notFound *provider.ErrNotFound
	var noMatch *provider.ErrNoMatch
	level := slog.LevelWarn
	if errors.As(err, &notFound) || errors.As(err, &noMatch) || errors.Is(err, ErrSourceUnavailable) {
		level = slog.LevelDebug
	}
	e.logger.Log(context.Background(), level, "source failed",
		slog.String("provider", string(name)),
		slog.String("query", query),
		slog.String("error", err.Error()))
}
