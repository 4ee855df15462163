package catalog

import (
	"errors"
	"strconv"
	"strings"
)

// ErrPersistence marks a rejected write. Callers count the affected subject
// as failed instead of dropping the classification silently.
var ErrPersistence = errors.New("persistence failure")

// Source tags recorded on genre and subgenre rows.
const (
	SourceClassification = "multi_source_classification"
	SourceProducer       = "producer_specialization"
	SourceImport         = "import"
	SourceGenius         = "genius"
	SourceSubgenreModel  = "ml_subgenre_model"
	SourceSubgenreRules  = "subgenre_rules"
)

// Credit role names seeded by the initial migration.
const (
	RoleProducer = "Producer"
	RoleWriter   = "Writer"
)

// Song is one catalog entry.
type Song struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	FirstChart   string `json:"first_chart_appearance"`
	PeakPosition int    `json:"peak_position"`
	WeeksOnChart int    `json:"weeks_on_chart"`
}

// Year returns the year of the song's first chart appearance, or 0.
func (s Song) Year() int {
	if len(s.FirstChart) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s.FirstChart[:4])
	if err != nil {
		return 0
	}
	return y
}

// Coverage summarizes how much of a subject's catalog is already classified.
type Coverage struct {
	Total         int     `json:"total_entries"`
	Classified    int     `json:"classified_entries"`
	MaxConfidence float64 `json:"max_confidence"`
}

// Complete reports whether every entry is classified. A subject with no
// entries is never complete.
func (c Coverage) Complete() bool {
	return c.Total > 0 && c.Classified == c.Total
}

// Vote is one source tag that went into a subject's classification.
type Vote struct {
	Source     string  `json:"source"`
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

// Stored is a subject's classification as persisted. Votes, SecondaryTags
// and CrossoverIndicators are only set when HasProfile is true, that is when
// the subject was saved with its full profile rather than per song.
type Stored struct {
	Genre               string   `json:"genre"`
	Confidence          float64  `json:"confidence"`
	Subgenres           []string `json:"subgenres,omitempty"`
	HasProfile          bool     `json:"has_profile"`
	Votes               []Vote   `json:"votes,omitempty"`
	SecondaryTags       []string `json:"secondary_tags,omitempty"`
	CrossoverIndicators []string `json:"crossover_indicators,omitempty"`
}

// RankedSubgenre is a subgenre to attach under a song's primary genre.
type RankedSubgenre struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Rank       int     `json:"rank"`
}

// Classification is everything written for one subject in one transaction.
// Subject selects the songs; ProfileKey (default: Subject, lowercased) keys
// the subject profile row holding Votes, SecondaryTags and
// CrossoverIndicators.
type Classification struct {
	Subject             string
	ProfileKey          string
	Year                int
	Genre               string
	Confidence          float64
	Source              string
	Subgenres           []RankedSubgenre
	Votes               []Vote
	SecondaryTags       []string
	CrossoverIndicators []string
}

// profileKey normalizes a subject name to its subject_profiles key.
func profileKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GenreCount is one row of a genre distribution.
type GenreCount struct {
	Genre   string  `json:"genre"`
	Songs   int     `json:"songs"`
	Percent float64 `json:"percent"`
}

// Totals summarizes the catalog for the analyze command.
type Totals struct {
	Songs              int `json:"songs"`
	SongsWithGenres    int `json:"songs_with_genres"`
	SongsWithSubgenres int `json:"songs_with_subgenres"`
	SongsWithCredits   int `json:"songs_with_credits"`
	SongsWithFeatures  int `json:"songs_with_features"`
	Genres             int `json:"genres"`
	Subgenres          int `json:"subgenres"`
	Credits            int `json:"credits"`
}

// NormalizeCreditName folds a credited name to the key used for dedup:
// featuring suffixes removed, "&" spelled out, lowercased.
func NormalizeCreditName(name string) string {
	s := strings.TrimSpace(name)
	lower := strings.ToLower(s)
	for _, sep := range []string{" feat.", " featuring"} {
		if i := strings.Index(lower, sep); i >= 0 {
			s, lower = s[:i], lower[:i]
		}
	}
	s = strings.ReplaceAll(s, " & ", " and ")
	return strings.ToLower(strings.TrimSpace(s))
}

// likePattern builds a LIKE pattern matching s anywhere, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

// yearPattern builds a LIKE prefix for first_chart_appearance, or "%" for
// all years.
func yearPattern(year int) string {
	if year <= 0 {
		return "%"
	}
	return strconv.Itoa(year) + "%"
}
