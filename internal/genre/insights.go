package genre

import (
	"slices"

	"github.com/dnhngynops/muindb/internal/provider"
)

// Recommendations attached to insights.
const (
	RecommendHighConfidence = "high_confidence_classification"
	RecommendReview         = "low_confidence_requires_review"
	RecommendCrossover      = "consider_crossover_marketing"
)

// Insights is the A&R report derived from a profile.
type Insights struct {
	MarketPositioning  Positioning                `json:"market_positioning"`
	CrossoverPotential *CrossoverPotential        `json:"crossover_potential,omitempty"`
	SourceConsensus    map[string][]provider.Name `json:"source_consensus"`
	Recommendations    []string                   `json:"recommendations"`
}

// Positioning is the primary market genre.
type Positioning struct {
	PrimaryGenre string  `json:"primary_genre"`
	Confidence   float64 `json:"confidence"`
}

// CrossoverPotential scores the crossover indicators.
type CrossoverPotential struct {
	Indicators []string `json:"indicators"`
	Score      float64  `json:"score"`
}

// BuildInsights derives the A&R report for p. Consensus lists, per primary
// genre, the distinct sources that voted for it when there are at least two.
func BuildInsights(p *Profile) *Insights {
	in := &Insights{
		MarketPositioning: Positioning{PrimaryGenre: p.PrimaryGenre, Confidence: p.Confidence},
		SourceConsensus:   make(map[string][]provider.Name),
		Recommendations:   []string{},
	}
	if len(p.CrossoverIndicators) > 0 {
		in.CrossoverPotential = &CrossoverPotential{
			Indicators: slices.Clone(p.CrossoverIndicators),
			Score:      float64(len(p.CrossoverIndicators)) / 3,
		}
	}

	voters := make(map[string][]provider.Name)
	for _, s := range p.Sources {
		g := MapPrimary(s.Tag)
		if !slices.Contains(voters[g], s.Source) {
			voters[g] = append(voters[g], s.Source)
		}
	}
	for g, names := range voters {
		if len(names) > 1 {
			in.SourceConsensus[g] = names
		}
	}

	switch {
	case p.Confidence > 0.8:
		in.Recommendations = append(in.Recommendations, RecommendHighConfidence)
	case p.Confidence < 0.5:
		in.Recommendations = append(in.Recommendations, RecommendReview)
	}
	if len(p.CrossoverIndicators) > 0 {
		in.Recommendations = append(in.Recommendations, RecommendCrossover)
	}
	return in
}
