package producer

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/dnhngynops/muindb/internal/catalog"
)

// maxSuggestions caps Signals.Subgenres.
const maxSuggestions = 3

// Signals aggregates the signatures of a song's credited producers.
type Signals struct {
	Subgenres    []string `json:"suggested_subgenres"`
	Confidence   float64  `json:"confidence"`
	Contributing int      `json:"contributing_producers"`
	Primaries    []string `json:"primary_genres"` // majority first
	Source       string   `json:"source"`
}

// Normalize lowercases a credited name and resolves known aliases.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Lookup returns the signature for a credited name. With year > 0 the
// era subgenres of the producer's genre are appended after the producer's
// own, skipping repeats.
func Lookup(name string, year int) (Signature, bool) {
	sig, ok := byName[Normalize(name)]
	if !ok {
		return Signature{}, false
	}
	out := *sig
	out.Subgenres = append([]string(nil), sig.Subgenres...)
	if year > 0 {
		for _, sub := range EraSubgenres(sig.Primary, year) {
			if !slices.Contains(out.Subgenres, sub) {
				out.Subgenres = append(out.Subgenres, sub)
			}
		}
	}
	return out, true
}

// Enrich combines the signatures of producers credited on one song. year
// 0 skips era refinement. Subgenres are ranked by how many producers
// suggest them, first suggestion winning ties, and the top three kept.
// Confidence is the summed signature confidence over all credited
// producers, capped at 1. Primaries lists the producers' primary genres,
// majority first. It returns nil when no producer is known.
func Enrich(producers []string, year int) *Signals {
	var (
		order         []string
		counts        = make(map[string]int)
		primaryCounts = make(map[string]int)
		total         float64
		sig           = &Signals{Source: catalog.SourceProducer}
	)
	for _, p := range producers {
		s, ok := Lookup(p, year)
		if !ok {
			continue
		}
		sig.Contributing++
		total += s.Confidence
		if primaryCounts[s.Primary] == 0 {
			sig.Primaries = append(sig.Primaries, s.Primary)
		}
		primaryCounts[s.Primary]++
		for _, sub := range s.Subgenres {
			if counts[sub] == 0 {
				order = append(order, sub)
			}
			counts[sub]++
		}
	}
	if sig.Contributing == 0 {
		return nil
	}

	slices.SortStableFunc(order, func(a, b string) int { return counts[b] - counts[a] })
	slices.SortStableFunc(sig.Primaries, func(a, b string) int { return primaryCounts[b] - primaryCounts[a] })
	sig.Subgenres = order[:min(len(order), maxSuggestions)]
	sig.Confidence = min(total/float64(len(producers)), 1)
	return sig
}

// Store is the slice of the catalog the enricher reads and writes.
type Store interface {
	ProducerSongs(ctx context.Context, year, limit int) ([]catalog.ProducerSong, error)
	AddSubgenre(ctx context.Context, songID int64, parentGenre, subgenre, description string, confidence float64, source string) (bool, error)
}

// Summary counts the outcome of a catalog pass.
type Summary struct {
	Songs       int            `json:"songs"`
	Matched     int            `json:"matched"`
	Enriched    int            `json:"enriched"`
	Links       int            `json:"links"`
	BySubgenre  map[string]int `json:"by_subgenre"`
	WriteErrors int            `json:"write_errors"`
}

// Enricher applies producer signals to stored songs.
type Enricher struct {
	store  Store
	logger *slog.Logger
}

// NewEnricher creates an Enricher over store.
func NewEnricher(store Store, logger *slog.Logger) *Enricher {
	return &Enricher{store: store, logger: logger.With(slog.String("component", "producer"))}
}

// EnrichCatalog adds producer-suggested subgenres beneath the primary
// genre of each produced, classified song of year (0 for all years).
// Subgenres a song already carries are left as they are, so reruns add
// nothing new.
func (e *Enricher) EnrichCatalog(ctx context.Context, year, limit int) (Summary, error) {
	songs, err := e.store.ProducerSongs(ctx, year, limit)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Songs: len(songs), BySubgenre: make(map[string]int)}

	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sig := Enrich(song.Producers, song.Year())
		if sig == nil || song.Genre == "" {
			continue
		}
		sum.Matched++

		desc := "Producer-based: " + strings.Join(song.Producers, ", ")
		var added int
		for _, sub := range sig.Subgenres {
			ok, err := e.store.AddSubgenre(ctx, song.ID, song.Genre, sub, desc, sig.Confidence, catalog.SourceProducer)
			if err != nil {
				sum.WriteErrors++
				e.logger.Error("saving producer subgenre",
					slog.Int64("song_id", song.ID), slog.String("subgenre", sub), slog.String("error", err.Error()))
				continue
			}
			if ok {
				added++
				sum.BySubgenre[sub]++
			}
		}
		if added > 0 {
			sum.Enriched++
			sum.Links += added
			e.logger.Debug("producer subgenres added",
				slog.String("title", song.Title), slog.Any("subgenres", sig.Subgenres), slog.Float64("confidence", sig.Confidence))
		}
	}
	e.logger.Info("producer enrichment finished",
		slog.Int("songs", sum.Songs), slog.Int("enriched", sum.Enriched), slog.Int("links", sum.Links))
	return sum, nil
}
