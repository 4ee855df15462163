package match

import (
	"regexp"
	"strings"
)

// Acceptance thresholds, on the 0-100 Ratio scale.
const (
	TitleThreshold = 70

	// An artist must be this similar before a title compared with all
	// parentheticals removed may count; otherwise "Holla Back" would match
	// "Young'n (Holla Back)" by a different act.
	ParensArtistGate = 85

	artistThresholdExact  = 45 // title similarity == 100
	artistThresholdStrong = 60 // title similarity >= 95
	artistThresholdWeak   = 70
)

var (
	featClause     = regexp.MustCompile(`(?i)\s*\(?(feat\.|ft\.)\s+[^)]*\)?`)
	leadingArticle = regexp.MustCompile(`(?i)^\s*(the|a|an)\s+`)
	parenthetical  = regexp.MustCompile(`\s*\([^)]*\)`)
)

// Decision is the outcome of comparing a search candidate to a query.
type Decision struct {
	IsMatch          bool `json:"is_match"`
	TitleSimilarity  int  `json:"title_similarity"`
	ArtistSimilarity int  `json:"artist_similarity"`
	ThresholdUsed    int  `json:"threshold_used"`
}

// Beats reports whether d is a stronger accepted candidate than o: higher
// title similarity, then higher artist similarity. A rejected decision never
// beats anything.
func (d Decision) Beats(o Decision) bool {
	if !d.IsMatch {
		return false
	}
	if !o.IsMatch {
		return true
	}
	if d.TitleSimilarity != o.TitleSimilarity {
		return d.TitleSimilarity > o.TitleSimilarity
	}
	return d.ArtistSimilarity > o.ArtistSimilarity
}

// IsGoodMatch decides whether a candidate (title, artist) returned by a
// source refers to the queried song. The artist threshold relaxes as the
// title match strengthens. IsGoodMatch is pure and deterministic.
func IsGoodMatch(candTitle, candArtist, queryTitle, queryArtist string) Decision {
	ct := comparableTitle(candTitle)
	qt := comparableTitle(queryTitle)

	mainArtist := Fold(strings.TrimSpace(MainArtist(queryArtist)))
	artist := Fold(strings.TrimSpace(candArtist))
	artistSim := Ratio(artist, mainArtist)

	if ct == "" || qt == "" {
		return Decision{ArtistSimilarity: artistSim, ThresholdUsed: artistThresholdWeak}
	}

	best := max(
		Ratio(ct, qt),
		Ratio(strip(featClause, ct), strip(featClause, qt)),
		Ratio(strip(leadingArticle, ct), strip(leadingArticle, qt)),
	)
	if artistSim >= ParensArtistGate {
		best = max(best, Ratio(strip(parenthetical, ct), strip(parenthetical, qt)))
	}

	threshold := artistThresholdWeak
	switch {
	case best == 100:
		threshold = artistThresholdExact
	case best >= 95:
		threshold = artistThresholdStrong
	}

	artistMatch := artistSim >= threshold
	if artist != "" && mainArtist != "" &&
		(strings.Contains(artist, mainArtist) || strings.Contains(mainArtist, artist)) {
		artistMatch = true
	}

	return Decision{
		IsMatch:          best >= TitleThreshold && artistMatch,
		TitleSimilarity:  best,
		ArtistSimilarity: artistSim,
		ThresholdUsed:    threshold,
	}
}

// comparableTitle is the normalized title, or the raw title lowercased when
// it consists of nothing but noise qualifiers.
func comparableTitle(title string) string {
	if t := NormalizeTitle(title); t != "" {
		return t
	}
	return strings.ToLower(collapse(title))
}

func strip(re *regexp.Regexp, s string) string {
	return strings.TrimSpace(re.ReplaceAllString(s, ""))
}
