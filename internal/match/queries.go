package match

import (
	"regexp"
	"strings"
)

// Strategy identifies which rule produced a query variation.
type Strategy int

// Query strategies in priority order.
const (
	StrategyTitleArtist Strategy = iota + 1
	StrategyTitleFullArtist
	StrategyArtistTitle
	StrategyTitleOnly
	StrategyOriginalTitle
	StrategySimplifiedTitle
	StrategyArtistNoPunct
)

// Query is one search string and the rule that produced it.
type Query struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"strategy"`
}

var (
	artistPunct = regexp.MustCompile(`['\-.]`)
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s]`)
)

// GenerateQueries returns search strings for a song, most likely to succeed
// first, with duplicates removed (first occurrence kept). Callers stop at the
// first query that yields an accepted match.
func GenerateQueries(title, artist string) []Query {
	clean := CleanTitle(title)
	if clean == "" {
		clean = collapse(title)
	}
	if clean == "" {
		return nil
	}
	artist = collapse(artist)
	main := MainArtist(artist)

	var out []Query
	seen := make(map[string]bool)
	add := func(s Strategy, parts ...string) {
		text := collapse(strings.Join(parts, " "))
		if text == "" || seen[strings.ToLower(text)] {
			return
		}
		seen[strings.ToLower(text)] = true
		out = append(out, Query{Text: text, Strategy: s})
	}

	add(StrategyTitleArtist, clean, main)
	if artist != main {
		add(StrategyTitleFullArtist, clean, artist)
	}
	add(StrategyArtistTitle, main, clean)
	add(StrategyTitleOnly, clean)

	// The original title, minus only soundtrack qualifiers, in case the
	// full cleaning over-trimmed.
	if original := StripSoundtrack(title); original != clean {
		add(StrategyOriginalTitle, original, main)
	}

	if simplified := collapse(nonWord.ReplaceAllString(clean, " ")); simplified != clean {
		add(StrategySimplifiedTitle, simplified, main)
	}

	if noPunct := collapse(artistPunct.ReplaceAllString(main, "")); noPunct != main {
		add(StrategyArtistNoPunct, clean, noPunct)
		add(StrategyArtistNoPunct, noPunct, clean)
	}
	return out
}

// Queries is GenerateQueries reduced to the query strings.
func Queries(title, artist string) []string {
	qs := GenerateQueries(title, artist)
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}
