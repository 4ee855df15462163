// Package producer suggests subgenres for a song from the known styles of
// its credited producers. Lookups run against static tables only.
package producer

// Signature is the curated style of one producer or production team.
type Signature struct {
	Name       string
	Primary    string
	Subgenres  []string
	Confidence float64
	Secondary  string
	Notes      string
}

// signatures is ordered by specialty; lookups go through byName.
var signatures = []Signature{
	{Name: "max martin", Primary: "pop", Subgenres: []string{"dance-pop", "teen-pop", "electropop"}, Confidence: 0.95,
		Notes: "Cheiron-era pop, Britney and Backstreet Boys"},
	{Name: "rami", Primary: "pop", Subgenres: []string{"dance-pop", "electropop"}, Confidence: 0.90},
	{Name: "bag & arnthor", Primary: "pop", Subgenres: []string{"dance-pop", "teen-pop"}, Confidence: 0.90},
	{Name: "kristian lundin", Primary: "pop", Subgenres: []string{"dance-pop", "teen-pop"}, Confidence: 0.90},

	{Name: "the neptunes", Primary: "hip-hop", Subgenres: []string{"alternative-hip-hop", "pop-rap", "southern-hip-hop"}, Confidence: 0.95,
		Notes: "Pharrell Williams and Chad Hugo"},
	{Name: "mannie fresh", Primary: "hip-hop", Subgenres: []string{"southern-hip-hop", "crunk", "bounce"}, Confidence: 0.95},
	{Name: "dr. dre", Primary: "hip-hop", Subgenres: []string{"west-coast-hip-hop", "g-funk", "gangster-rap"}, Confidence: 0.95},
	{Name: "swizz beatz", Primary: "hip-hop", Subgenres: []string{"east-coast-hip-hop", "hardcore-hip-hop"}, Confidence: 0.90},

	{Name: "bryan-michael cox", Primary: "r&b", Subgenres: []string{"contemporary-r&b", "neo-soul"}, Confidence: 0.90},
	{Name: "rodney jerkins", Primary: "r&b", Subgenres: []string{"contemporary-r&b", "pop-r&b"}, Confidence: 0.85,
		Notes: "Darkchild"},

	{Name: "timbaland", Primary: "hip-hop", Subgenres: []string{"alternative-r&b", "contemporary-r&b", "pop-rap"}, Confidence: 0.85,
		Secondary: "r&b"},
	{Name: "jermaine dupri", Primary: "hip-hop", Subgenres: []string{"southern-hip-hop", "contemporary-r&b", "pop-rap"}, Confidence: 0.80,
		Secondary: "r&b"},

	{Name: "byron gallimore", Primary: "country", Subgenres: []string{"contemporary-country", "country-pop"}, Confidence: 0.95},
	{Name: "james stroud", Primary: "country", Subgenres: []string{"contemporary-country", "traditional-country"}, Confidence: 0.90},
	{Name: "paul worley", Primary: "country", Subgenres: []string{"contemporary-country", "bluegrass"}, Confidence: 0.90},
	{Name: "dann huff", Primary: "country", Subgenres: []string{"contemporary-country", "country-rock"}, Confidence: 0.90},

	{Name: "rick rubin", Primary: "rock", Subgenres: []string{"alternative-rock", "hard-rock", "rap-rock"}, Confidence: 0.90},
	{Name: "don gilmore", Primary: "rock", Subgenres: []string{"nu-metal", "alternative-metal"}, Confidence: 0.90},
}

var byName = func() map[string]*Signature {
	m := make(map[string]*Signature, len(signatures))
	for i := range signatures {
		m[signatures[i].Name] = &signatures[i]
	}
	return m
}()

// aliases maps alternate credits onto a signature name.
var aliases = map[string]string{
	"pharrell williams": "the neptunes",
	"chad hugo":         "the neptunes",
	"pharrell":          "the neptunes",
	"darkchild":         "rodney jerkins",
	"rodney jenkins":    "rodney jerkins",
	"timbo":             "timbaland",
	"tim mosley":        "timbaland",
	"jd":                "jermaine dupri",
	"max":               "max martin",
}

// era is an inclusive year span and the subgenres typical of it.
type era struct {
	from, to  int
	subgenres []string
}

var eras = map[string][]era{
	"pop": {
		{2000, 2004, []string{"teen-pop", "dance-pop"}},
		{2005, 2009, []string{"pop-rock", "emo-pop"}},
		{2010, 2015, []string{"electropop", "indie-pop"}},
		{2016, 2020, []string{"alt-pop", "bedroom-pop"}},
		{2021, 2025, []string{"hyperpop", "alt-pop"}},
	},
	"hip-hop": {
		{2000, 2003, []string{"southern-hip-hop", "crunk"}},
		{2004, 2008, []string{"snap-music", "ringtone-rap"}},
		{2009, 2012, []string{"blog-rap", "conscious-hip-hop"}},
		{2013, 2016, []string{"trap", "drill"}},
		{2017, 2020, []string{"emo-rap", "melodic-rap"}},
		{2021, 2025, []string{"rage-rap", "plugg"}},
	},
	"country": {
		{2000, 2010, []string{"country-pop", "contemporary-country"}},
		{2011, 2015, []string{"bro-country", "country-pop"}},
		{2016, 2025, []string{"country-trap", "country-pop"}},
	},
	"r&b": {
		{2000, 2005, []string{"neo-soul", "contemporary-r&b"}},
		{2006, 2010, []string{"alternative-r&b", "contemporary-r&b"}},
		{2011, 2025, []string{"alternative-r&b", "pop-r&b"}},
	},
}

// Signatures returns a copy of the table in specialty order.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	for i, s := range signatures {
		s.Subgenres = append([]string(nil), s.Subgenres...)
		out[i] = s
	}
	return out
}

// EraSubgenres returns the subgenres typical of genre in year, or nil.
func EraSubgenres(genre string, year int) []string {
	for _, e := range eras[genre] {
		if year >= e.from && year <= e.to {
			return append([]string(nil), e.subgenres...)
		}
	}
	return nil
}
