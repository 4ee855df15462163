// Package genre maps free-text genre tags onto a closed set of primary genres
// and resolves a subject's primary genre by weighted voting across sources.
package genre

import (
	"slices"
	"strings"
)

// Primary genres. Other is the fallback for tags that map nowhere.
const (
	Pop         = "pop"
	HipHop      = "hip-hop"
	Rock        = "rock"
	Alternative = "alternative"
	Country     = "country"
	Electronic  = "electronic"
	RnB         = "r&b"
	Latin       = "latin"
	Folk        = "folk"
	Jazz        = "jazz"
	Other       = "other"
)

var primaries = []string{Pop, HipHop, Rock, Alternative, Country, Electronic, RnB, Latin, Folk, Jazz, Other}

type mapping struct {
	detailed string
	primary  string
}

// detailedGenres is ordered: the substring pass returns the first hit.
var detailedGenres = []mapping{
	{"pop", Pop}, {"dance pop", Pop}, {"electropop", Pop}, {"synth pop", Pop},
	{"teen pop", Pop}, {"power pop", Pop}, {"art pop", Pop}, {"baroque pop", Pop},
	{"chamber pop", Pop},

	{"rap", HipHop}, {"hip-hop", HipHop}, {"hip hop", HipHop}, {"trap", HipHop},
	{"pop rap", HipHop}, {"melodic rap", HipHop}, {"conscious hip hop", HipHop},
	{"old school hip hop", HipHop}, {"east coast hip hop", HipHop},
	{"west coast hip hop", HipHop}, {"southern hip hop", HipHop}, {"drill", HipHop},
	{"grime", HipHop},

	{"rock", Rock}, {"hard rock", Rock}, {"classic rock", Rock}, {"progressive rock", Rock},
	{"psychedelic rock", Rock}, {"garage rock", Rock}, {"blues rock", Rock},
	{"folk rock", Rock}, {"pop rock", Rock}, {"punk rock", Rock}, {"metal", Rock},
	{"heavy metal", Rock},

	{"alternative", Alternative}, {"alternative rock", Alternative}, {"indie", Alternative},
	{"indie rock", Alternative}, {"indie pop", Alternative}, {"alternative pop", Alternative},
	{"indie folk", Alternative}, {"shoegaze", Alternative}, {"post-punk", Alternative},
	{"post-rock", Alternative}, {"emo", Alternative}, {"grunge", Alternative},
	{"new wave", Alternative}, {"britpop", Alternative},

	{"country", Country}, {"country pop", Country}, {"new country", Country},
	{"country rock", Country}, {"americana", Country}, {"bluegrass", Country},
	{"country folk", Country},

	{"electronic", Electronic}, {"edm", Electronic}, {"house", Electronic},
	{"techno", Electronic}, {"trance", Electronic}, {"dubstep", Electronic},
	{"ambient", Electronic}, {"drum and bass", Electronic}, {"breakbeat", Electronic},
	{"garage", Electronic}, {"uk garage", Electronic}, {"future bass", Electronic},
	{"synthwave", Electronic},

	{"r&b", RnB}, {"rnb", RnB}, {"rhythm and blues", RnB}, {"soul", RnB},
	{"neo soul", RnB}, {"contemporary r&b", RnB}, {"funk", RnB}, {"gospel", RnB},
	{"motown", RnB},

	{"latin", Latin}, {"reggaeton", Latin}, {"latin pop", Latin}, {"latin trap", Latin},
	{"salsa", Latin}, {"bachata", Latin}, {"merengue", Latin}, {"cumbia", Latin},
	{"regional mexican", Latin}, {"mariachi", Latin},

	{"folk", Folk}, {"acoustic", Folk}, {"singer-songwriter", Folk},
	{"contemporary folk", Folk}, {"traditional folk", Folk}, {"celtic", Folk},
	{"world music", Folk}, {"world", Folk},

	{"jazz", Jazz}, {"smooth jazz", Jazz}, {"bebop", Jazz}, {"fusion", Jazz},
	{"acid jazz", Jazz}, {"latin jazz", Jazz}, {"big band", Jazz}, {"swing", Jazz},
	{"cool jazz", Jazz}, {"hard bop", Jazz},
}

var exactGenres = func() map[string]string {
	m := make(map[string]string, len(detailedGenres))
	for _, d := range detailedGenres {
		m[d.detailed] = d.primary
	}
	return m
}()

// genericTerms are genre-level words too broad to store as subgenres.
var genericTerms = map[string]bool{
	"soul": true, "blues": true, "funk": true, "disco": true, "gospel": true,
	"reggae": true, "punk": true, "metal": true, "indie": true, "dance": true,
	"edm": true, "house": true, "techno": true, "trance": true, "dubstep": true,
	"r&b": true, "rnb": true, "rap": true, "hip hop": true, "hip-hop": true,
	"country": true, "folk": true, "rock": true, "pop": true, "jazz": true,
	"classical": true, "latin": true, "electronic": true, "alternative": true,
	"other": true,
}

// MapPrimary maps a raw genre tag to its primary genre: an exact table hit
// first, then the first table entry that contains or is contained by the
// tag, then Other.
func MapPrimary(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	if g == "" {
		return Other
	}
	if p, ok := exactGenres[g]; ok {
		return p
	}
	for _, d := range detailedGenres {
		if strings.Contains(d.detailed, g) || strings.Contains(g, d.detailed) {
			return d.primary
		}
	}
	return Other
}

// IsPrimary reports whether name is one of the primary genres.
func IsPrimary(name string) bool {
	return slices.Contains(primaries, name)
}

// Primaries returns the closed set of primary genres, Other last.
func Primaries() []string {
	return append([]string(nil), primaries...)
}

// IsGeneric reports whether a tag is too broad to serve as a subgenre.
func IsGeneric(tag string) bool {
	return genericTerms[strings.ToLower(strings.TrimSpace(tag))]
}
