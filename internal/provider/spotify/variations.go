package spotify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dnhngynops/muindb/internal/match"
)

// MinArtistScore is the lowest ScoreArtist result accepted as a match.
const MinArtistScore = 40

var (
	nonWord  = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	titler   = cases.Title(language.English)
	numWords = []struct{ digit, word string }{
		{"2", "Two"}, {"3", "Three"}, {"4", "Four"}, {"5", "Five"},
		{"6", "Six"}, {"7", "Seven"}, {"8", "Eight"}, {"9", "Nine"},
	}
	// knownSpellings lists catalog spellings whose search names differ.
	knownSpellings = map[string][]string{
		"n sync": {"NSYNC", "*NSYNC", "NSync", "N-Sync"},
		"3lw":    {"3LW", "Three LW", "ThreeLW"},
		"2pac":   {"2Pac", "Tupac", "Tupac Shakur"},
	}
)

// NameVariations returns spellings of a chart artist name to try against
// artist search, the original first and case-insensitive duplicates removed.
func NameVariations(name string) []string {
	original := strings.TrimSpace(name)
	vs := []string{original}

	if rest, ok := strings.CutPrefix(original, "'"); ok {
		vs = append(vs, rest, strings.ToUpper(rest), titler.String(rest))
	}
	if strings.ToLower(original) != original {
		vs = append(vs, strings.ToUpper(original))
	}
	vs = append(vs, titler.String(original))

	if cleaned := nonWord.ReplaceAllString(original, ""); cleaned != original {
		vs = append(vs, cleaned, titler.String(cleaned))
	}
	for _, nw := range numWords {
		if rest, ok := strings.CutPrefix(original, nw.digit); ok {
			vs = append(vs, nw.word+rest, titler.String(nw.word+rest))
		}
	}
	if len(original) > 4 && strings.EqualFold(original[:4], "the ") {
		vs = append(vs, original[4:])
	}
	lower := strings.ToLower(original)
	for prefix, extra := range knownSpellings {
		if strings.HasPrefix(strings.TrimPrefix(lower, "'"), prefix) {
			vs = append(vs, extra...)
		}
	}

	seen := make(map[string]bool, len(vs))
	out := vs[:0]
	for _, v := range vs {
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// ScoreArtist rates an artist search hit against the searched name on a
// 0 to 100 scale: up to 50 for name similarity, 20 for a substring match,
// 20 for popularity and 10 when the artist has genres.
func ScoreArtist(candidate string, popularity int, hasGenres bool, searched string) float64 {
	cand := strings.ToLower(candidate)
	query := strings.ToLower(searched)
	cleanCand := squash(cand)
	cleanQuery := squash(query)

	var score float64
	sim := float64(match.Ratio(cleanCand, cleanQuery)) / 100
	switch {
	case sim >= 0.9:
		score += 50
	case sim >= 0.7:
		score += 40
	case sim >= 0.5:
		score += 25
	default:
		score += sim * 20
	}

	switch {
	case cleanQuery != "" && cleanCand != "" &&
		(strings.Contains(cleanCand, cleanQuery) || strings.Contains(cleanQuery, cleanCand)):
		score += 20
	case query != "" && cand != "" && (strings.Contains(cand, query) || strings.Contains(query, cand)):
		score += 15
	}

	switch {
	case popularity >= 50:
		score += 20
	case popularity >= 30:
		score += 15
	case popularity >= 20:
		score += 10
	case popularity >= 10:
		score += 5
	}

	if hasGenres {
		score += 10
	}
	return score
}

func squash(s string) string {
	return strings.NewReplacer("'", "", " ", "", "-", "", "*", "").Replace(s)
}
