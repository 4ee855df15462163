package genre

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/dnhngynops/muindb/internal/catalog"
)

// maxStoredSubgenres is how many detailed tags are kept as subgenres.
const maxStoredSubgenres = 3

var errNoStore = errors.New("genre engine has no store")

// RankSubgenres picks the detailed tags of p worth storing as subgenres:
// generic terms and the primary genre itself are dropped, duplicates keep
// their highest confidence, and the top three are ranked 1..3.
func RankSubgenres(p *Profile) []catalog.RankedSubgenre {
	var out []catalog.RankedSubgenre
	idx := make(map[string]int)
	for _, s := range p.Sources {
		name := strings.ToLower(strings.TrimSpace(s.Tag))
		if name == p.PrimaryGenre || IsGeneric(name) || IsPrimary(name) {
			continue
		}
		if i, ok := idx[name]; ok {
			if s.Confidence > out[i].Confidence {
				out[i].Confidence = s.Confidence
				out[i].Source = string(s.Source)
			}
			continue
		}
		idx[name] = len(out)
		out = append(out, catalog.RankedSubgenre{Name: name, Confidence: s.Confidence, Source: string(s.Source)})
	}

	slices.SortStableFunc(out, func(a, b catalog.RankedSubgenre) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if len(out) > maxStoredSubgenres {
		out = out[:maxStoredSubgenres]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Persist writes p onto every catalog song of subject (restricted to year
// when non-zero) and records the profile under its primary artist, in one
// transaction. Profiles answered from the store and
// profiles without sources are not written. It returns the number of songs
// updated; write failures wrap catalog.ErrPersistence.
func (e *Engine) Persist(ctx context.Context, subject string, year int, p *Profile) (int, error) {
	if e.store == nil {
		return 0, errNoStore
	}
	if p.FromStore || len(p.Sources) == 0 {
		return 0, nil
	}
	votes := make([]catalog.Vote, len(p.Sources))
	for i, s := range p.Sources {
		votes[i] = catalog.Vote{
			Source:     string(s.Source),
			Tag:        s.Tag,
			Confidence: s.Confidence,
			Category:   string(s.Category),
		}
	}
	n, err := e.store.SaveClassification(ctx, catalog.Classification{
		Subject:             subject,
		ProfileKey:          p.PrimaryArtist,
		Year:                year,
		Genre:               p.PrimaryGenre,
		Confidence:          p.Confidence,
		Source:              catalog.SourceClassification,
		Subgenres:           RankSubgenres(p),
		Votes:               votes,
		SecondaryTags:       p.SecondaryTags,
		CrossoverIndicators: p.CrossoverIndicators,
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("saved classification",
		slog.String("subject", subject),
		slog.String("genre", p.PrimaryGenre),
		slog.Int("songs", n))
	return n, nil
}
