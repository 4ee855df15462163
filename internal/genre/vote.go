package genre

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dnhngynops/muindb/internal/provider"
)

// Weights are the reliability weights of each source category.
type Weights map[provider.Category]float64

// DefaultWeights favors industry data, then algorithmic, then community
// tags, with the internal database as a tiebreaker.
func DefaultWeights() Weights {
	return Weights{
		provider.CategoryIndustry:    0.35,
		provider.CategoryAlgorithmic: 0.30,
		provider.CategoryCommunity:   0.25,
		provider.CategoryDatabase:    0.10,
	}
}

const unknownWeight = 0.10

func (w Weights) of(c provider.Category) float64 {
	if v, ok := w[c]; ok {
		return v
	}
	return unknownWeight
}

// defaultConfidence applies when a source reports a tag without one.
var defaultConfidence = map[provider.Category]float64{
	provider.CategoryAlgorithmic: 0.7,
	provider.CategoryIndustry:    0.8,
	provider.CategoryDatabase:    0.6,
	provider.CategoryCommunity:   0.6,
}

// toSources converts one source's tags into vote records. Blank tags are
// dropped and confidences are clamped to [0,1].
func toSources(src provider.TagSource, tags []provider.Tag) []Source {
	out := make([]Source, 0, len(tags))
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		conf := t.Confidence
		if conf <= 0 {
			conf = defaultConfidence[src.Category()]
		}
		out = append(out, Source{
			Source:     src.Name(),
			Tag:        name,
			Confidence: min(conf, 1),
			Category:   src.Category(),
		})
	}
	return out
}

type tally struct {
	genre  string
	weight float64
}

// tallies accumulates weight per primary genre, in first-seen order.
func tallies(sources []Source, w Weights) []tally {
	var out []tally
	idx := make(map[string]int)
	for _, s := range sources {
		g := MapPrimary(s.Tag)
		i, ok := idx[g]
		if !ok {
			i = len(out)
			idx[g] = i
			out = append(out, tally{genre: g})
		}
		out[i].weight += w.of(s.Category) * s.Confidence
	}
	return out
}

// vote fills the primary genre, confidence, secondary tags and crossover
// indicators of p from its sources.
func vote(p *Profile, w Weights, crossoverRatio float64) {
	p.PrimaryGenre, p.Confidence = Other, 0
	p.SecondaryTags, p.CrossoverIndicators = []string{}, []string{}
	if len(p.Sources) == 0 {
		return
	}

	ts := tallies(p.Sources, w)
	var total float64
	best := 0
	for i, t := range ts {
		total += t.weight
		if t.weight > ts[best].weight {
			best = i
		}
	}
	p.PrimaryGenre = ts[best].genre
	if total > 0 {
		p.Confidence = ts[best].weight / total
	}

	seen := make(map[string]bool)
	for _, s := range p.Sources {
		tag := strings.ToLower(s.Tag)
		if tag == p.PrimaryGenre || seen[tag] {
			continue
		}
		seen[tag] = true
		if len(p.SecondaryTags) < maxSecondaryTags {
			p.SecondaryTags = append(p.SecondaryTags, tag)
		}
	}
	slices.Sort(p.SecondaryTags)

	slices.SortStableFunc(ts, func(a, b tally) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		}
		return 0
	})
	if len(ts) >= 2 && ts[0].weight > 0 && ts[1].weight >= crossoverRatio*ts[0].weight {
		p.CrossoverIndicators = append(p.CrossoverIndicators,
			IndicatorCrossover, fmt.Sprintf("primary_%s_secondary_%s", ts[0].genre, ts[1].genre))
	}
	if len(p.SecondaryTags) > 5 {
		p.CrossoverIndicators = append(p.CrossoverIndicators, IndicatorHighDiversity)
	}
}
