// Package match resolves free-text song and artist names against search
// results from external sources: title cleaning, query variations and the
// fuzzy acceptance rule.
package match

import (
	"regexp"
	"strings"
)

// noisePatterns strip qualifiers that vary between sources but do not change
// which recording a title refers to. Order matters: featuring clauses go
// first so a later "- ... Version" rule cannot swallow them.
var noisePatterns = []*regexp.Regexp{
	// Featured artists.
	regexp.MustCompile(`(?i)\s*\(with\s+.*?\)`),
	regexp.MustCompile(`(?i)\s*\(feat\.?\s+.*?\)`),
	regexp.MustCompile(`(?i)\s*\(featuring\s+.*?\)`),
	regexp.MustCompile(`(?i)\s*\(ft\.?\s+.*?\)`),
	regexp.MustCompile(`(?i)\s*\(f/\s+.*?\)`),
	regexp.MustCompile(`(?i)\s*\(x\s+.*?\)`),

	// Soundtrack qualifiers: "(Spider-Man: Into the Spider-Verse)", "(From ...)".
	soundtrackPattern,

	// Remasters and versions.
	regexp.MustCompile(`(?i)\s*-\s*Remastered.*$`),
	regexp.MustCompile(`(?i)\s*\(Remastered.*?\)`),
	regexp.MustCompile(`(?i)\s*-\s*.*?Remaster.*$`),
	regexp.MustCompile(`(?i)\s*-\s*.*?Version.*$`),
	regexp.MustCompile(`(?i)\s*\(.*?Version.*?\)`),

	// "From" attributions.
	regexp.MustCompile(`(?i)\s*-\s*From\s+".*?".*$`),
	regexp.MustCompile(`(?i)\s*\(From\s+".*?".*?\)`),
	regexp.MustCompile(`(?i)\s*-\s*featured\s+in.*$`),
	regexp.MustCompile(`(?i)\s*\(featured\s+in.*?\)`),
	regexp.MustCompile(`(?i)\s*-\s*From\s+the.*$`),
	regexp.MustCompile(`(?i)\s*\(From\s+the.*?\)`),

	// Edits and mixes.
	regexp.MustCompile(`(?i)\s*-\s*.*?Radio.*$`),
	regexp.MustCompile(`(?i)\s*\(.*?Radio.*?\)`),
	regexp.MustCompile(`(?i)\s*-\s*.*?Mix.*$`),
	regexp.MustCompile(`(?i)\s*\(.*?Mix.*?\)`),
}

// soundtrackPattern matches a parenthetical naming a film or soundtrack:
// one containing a colon or the words soundtrack or motion picture, or one
// opening with "from".
var soundtrackPattern = regexp.MustCompile(`(?i)\s*\((?:[^()]*:[^()]*|[^()]*\b(?:soundtrack|motion picture)\b[^()]*|\s*from\s[^()]*)\)`)

// censorship expands starred placeholders so "B***h" compares equal to the
// uncensored title another source reports.
var censorship = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bb\*+h\b`), "bitch"},
	{regexp.MustCompile(`(?i)(^|\s)a\*+(\s|$)`), "${1}ass${2}"},
	{regexp.MustCompile(`(?i)\bs\*+t\b`), "shit"},
	{regexp.MustCompile(`(?i)\bf\*+k\b`), "fuck"},
	{regexp.MustCompile(`(?i)\bn\*+a\b`), "nigga"},
}

var whitespace = regexp.MustCompile(`\s+`)

// CleanTitle removes noise qualifiers and censorship placeholders from a song
// title. Case is preserved so the result can be used as a search query.
func CleanTitle(title string) string {
	s := title
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, "")
	}
	for _, c := range censorship {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	return collapse(s)
}

// NormalizeTitle is CleanTitle lowercased, the form used for comparison.
func NormalizeTitle(title string) string {
	return strings.ToLower(CleanTitle(title))
}

// StripSoundtrack removes only soundtrack parentheticals, leaving every
// other qualifier in place.
func StripSoundtrack(title string) string {
	return collapse(soundtrackPattern.ReplaceAllString(title, ""))
}

var trailingCredit = regexp.MustCompile(`(?i)\s+(feat\.?|featuring|ft\.?|with|f/)\s+.*$`)

// collabSeparators are tried in order; the first one present wins, so
// "A & B feat. C" yields "A & B".
var collabSeparators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+feat\.?\s+`),
	regexp.MustCompile(`(?i)\s+ft\.?\s+`),
	regexp.MustCompile(`(?i)\s+featuring\s+`),
	regexp.MustCompile(`(?i)\s+with\s+`),
	regexp.MustCompile(`(?i)\s+&\s+`),
	regexp.MustCompile(`(?i)\s+x\s+`),
	regexp.MustCompile(`(?i)\s+\+\s+`),
}

// MainArtist returns the lead artist of a credit string: the text before the
// first comma or ampersand, without a trailing featuring clause.
func MainArtist(artist string) string {
	s, _, _ := strings.Cut(artist, ",")
	s, _, _ = strings.Cut(s, "&")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(trailingCredit.ReplaceAllString(s, ""))
}

// PrimaryArtist extracts the lead artist from a collaboration credit for use
// as a classification subject, lowercased.
func PrimaryArtist(artist string) string {
	s := strings.TrimSpace(artist)
	for _, re := range collabSeparators {
		if loc := re.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
