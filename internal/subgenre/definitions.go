// Package subgenre assigns a subgenre beneath a primary genre from a song's
// audio features, using a trained per-genre model when one is loaded and a
// feature-range rule table otherwise.
package subgenre

// Seed pairs a subgenre label with the upstream seed genre used to collect
// its training songs.
type Seed struct {
	Subgenre string
	SeedName string
}

// Definitions lists the model-backed subgenres of each primary genre, in
// label order.
var Definitions = map[string][]Seed{
	"country": {
		{"country-pop", "country"},
		{"traditional-country", "classic country"},
		{"country-rock", "country rock"},
		{"bluegrass", "bluegrass"},
		{"americana", "americana"},
		{"bro-country", "country"},
	},
	"pop": {
		{"dance-pop", "dance-pop"},
		{"indie-pop", "indie-pop"},
		{"electropop", "electropop"},
		{"synth-pop", "synth-pop"},
		{"teen-pop", "pop"},
		{"alt-pop", "alt-pop"},
		{"bedroom-pop", "indie-pop"},
		{"hyperpop", "pop"},
	},
	"hip-hop": {
		{"trap", "trap"},
		{"boom-bap", "hip hop"},
		{"conscious-hip-hop", "conscious hip hop"},
		{"drill", "drill"},
		{"southern-hip-hop", "southern hip hop"},
		{"melodic-rap", "melodic rap"},
		{"emo-rap", "emo rap"},
		{"rage-rap", "rage"},
		{"soundcloud-rap", "cloud rap"},
	},
	"r&b": {
		{"contemporary-r&b", "r&b"},
		{"neo-soul", "neo soul"},
		{"funk", "funk"},
		{"soul", "soul"},
		{"gospel", "gospel"},
		{"alternative-r&b", "alternative r&b"},
		{"trap-soul", "trap soul"},
	},
	"alternative": {
		{"indie-rock", "indie rock"},
		{"emo", "emo"},
		{"grunge", "grunge"},
		{"post-punk", "post-punk"},
		{"indie", "indie"},
		{"indie-folk", "indie folk"},
	},
	"rock": {
		{"hard-rock", "hard rock"},
		{"classic-rock", "classic rock"},
		{"punk-rock", "punk rock"},
		{"metal", "metal"},
		{"progressive-rock", "progressive rock"},
	},
	"electronic": {
		{"house", "house"},
		{"trance", "trance"},
		{"dubstep", "dubstep"},
		{"drum-and-bass", "drum-and-bass"},
		{"techno", "techno"},
		{"future-bass", "future bass"},
		{"trap-edm", "trap"},
		{"melodic-dubstep", "melodic dubstep"},
	},
	"latin": {
		{"reggaeton", "reggaeton"},
		{"latin-pop", "latin pop"},
		{"salsa", "salsa"},
		{"bachata", "bachata"},
		{"latin-trap", "latin trap"},
		{"urbano-latino", "urbano"},
	},
	"afrobeats": {
		{"afro-pop", "afrobeats"},
		{"afro-fusion", "afrobeats"},
		{"amapiano", "amapiano"},
		{"afro-r&b", "afrobeats"},
	},
}

// Range is an inclusive feature interval.
type Range struct {
	Feature string
	Min     float64
	Max     float64
}

// Profile is the feature signature of one rule-based subgenre.
type Profile struct {
	Subgenre string
	Ranges   []Range
}

// RuleProfiles holds the rule table for low-volume genres without models.
// Profiles are tried in order; the first of equal scores wins.
var RuleProfiles = map[string][]Profile{
	"jazz": {
		{"smooth-jazz", []Range{{"acousticness", 0.4, 0.8}, {"energy", 0.3, 0.6}}},
		{"bebop", []Range{{"tempo", 200, 350}, {"instrumentalness", 0.5, 1.0}}},
		{"jazz-fusion", []Range{{"energy", 0.6, 0.9}, {"instrumentalness", 0.3, 0.8}}},
	},
	"folk": {
		{"folk-rock", []Range{{"energy", 0.5, 0.8}, {"acousticness", 0.4, 0.7}}},
		{"singer-songwriter", []Range{{"acousticness", 0.6, 0.9}, {"speechiness", 0.03, 0.15}}},
		{"americana", []Range{{"acousticness", 0.5, 0.8}, {"valence", 0.4, 0.7}}},
	},
}

// FeatureImportance names the five most telling features per genre; model
// training uses them as the feature columns.
var FeatureImportance = map[string][]string{
	"country":     {"acousticness", "tempo", "valence", "danceability", "energy"},
	"pop":         {"danceability", "energy", "valence", "tempo", "loudness"},
	"hip-hop":     {"speechiness", "tempo", "energy", "danceability", "loudness"},
	"r&b":         {"energy", "danceability", "acousticness", "valence", "tempo"},
	"alternative": {"energy", "acousticness", "loudness", "valence", "instrumentalness"},
	"rock":        {"energy", "loudness", "tempo", "acousticness", "instrumentalness"},
	"electronic":  {"tempo", "energy", "danceability", "loudness", "duration_ms"},
	"latin":       {"danceability", "tempo", "energy", "speechiness", "valence"},
	"afrobeats":   {"danceability", "tempo", "energy", "valence", "instrumentalness"},
}

// DefaultFeatures is used for genres missing from FeatureImportance.
var DefaultFeatures = []string{"tempo", "energy", "loudness", "danceability", "duration_ms"}

// MinSongsForML is the smallest sample count Train accepts.
const MinSongsForML = 25

// Subgenres returns the known subgenre labels for primary, model-backed
// genres first, or nil.
func Subgenres(primary string) []string {
	if seeds, ok := Definitions[primary]; ok {
		out := make([]string, len(seeds))
		for i, s := range seeds {
			out[i] = s.Subgenre
		}
		return out
	}
	if profiles, ok := RuleProfiles[primary]; ok {
		out := make([]string, len(profiles))
		for i, p := range profiles {
			out[i] = p.Subgenre
		}
		return out
	}
	return nil
}

// FeaturesFor returns the training feature columns for primary.
func FeaturesFor(primary string) []string {
	if f, ok := FeatureImportance[primary]; ok {
		return append([]string(nil), f...)
	}
	return append([]string(nil), DefaultFeatures...)
}
