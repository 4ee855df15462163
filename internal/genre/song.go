package genre

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dnhngynops/muindb/internal/provider"
)

// inheritedFactor discounts an artist profile applied to one of its songs.
const inheritedFactor = 0.8

// creatorSongLimit caps the songs examined for one creator.
const creatorSongLimit = 50

// ClassifySong classifies one song. Song-level tags from the algorithmic
// source are voted on when available; otherwise the song inherits its
// artist's profile at reduced confidence.
func (e *Engine) ClassifySong(ctx context.Context, title, artist string) (*Profile, error) {
	ap, err := e.Classify(ctx, artist)
	if err != nil {
		return nil, err
	}
	subject := artist + " - " + title

	if src, ok := e.registry.ByCategory(provider.CategoryAlgorithmic).(provider.SongTagSource); ok {
		tags, err := src.FetchSongTags(ctx, title, artist)
		switch {
		case err == nil && len(tags) > 0:
			p := &Profile{Subject: subject, PrimaryArtist: ap.PrimaryArtist, Sources: toSources(src, tags)}
			vote(p, e.opts.Weights, e.opts.CrossoverRatio)
			p.Insights = BuildInsights(p)
			return p, nil
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && !errors.Is(err, errors.ErrUnsupported):
			e.logSourceError(src.Name(), subject, err)
		}
	}

	p := &Profile{
		Subject:             subject,
		PrimaryArtist:       ap.PrimaryArtist,
		Sources:             ap.Sources,
		PrimaryGenre:        ap.PrimaryGenre,
		Confidence:          ap.Confidence * inheritedFactor,
		SecondaryTags:       ap.SecondaryTags,
		CrossoverIndicators: ap.CrossoverIndicators,
		Inherited:           true,
	}
	p.Insights = BuildInsights(p)
	return p, nil
}

// CreatorResult is the genre of a producer or writer, by majority over the
// songs they are credited on.
type CreatorResult struct {
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	PrimaryGenre string         `json:"primary_genre"`
	Confidence   float64        `json:"confidence"`
	Songs        int            `json:"songs"`
	Counts       map[string]int `json:"counts"`
}

// ClassifyCreator classifies each song credited to name in role and returns
// the majority primary genre with confidence count/songs. A creator with no
// credited songs is Other at zero confidence.
func (e *Engine) ClassifyCreator(ctx context.Context, name, role string) (*CreatorResult, error) {
	res := &CreatorResult{Name: name, Role: role, PrimaryGenre: Other, Counts: map[string]int{}}
	if e.store == nil {
		return nil, errNoStore
	}
	songs, err := e.store.CreditedSongs(ctx, name, role, creatorSongLimit)
	if err != nil {
		return nil, err
	}
	res.Songs = len(songs)
	if len(songs) == 0 {
		return res, nil
	}

	var order []string
	for _, s := range songs {
		p, err := e.ClassifySong(ctx, s.Title, s.Artist)
		if err != nil {
			return nil, err
		}
		if res.Counts[p.PrimaryGenre] == 0 {
			order = append(order, p.PrimaryGenre)
		}
		res.Counts[p.PrimaryGenre]++
	}
	best := order[0]
	for _, g := range order[1:] {
		if res.Counts[g] > res.Counts[best] {
			best = g
		}
	}
	res.PrimaryGenre = best
	res.Confidence = float64(res.Counts[best]) / float64(len(songs))

	e.logger.Info("classified creator",
		slog.String("name", name),
		slog.String("role", role),
		slog.String("genre", best),
		slog.Int("songs", len(songs)))
	return res, nil
}
