package lastfm

import (
	"sort"
	"strings"
)

// genreRelevance weights tag names by how much they say about genre. Mood
// and listener tags carry little; genre names carry full weight.
var genreRelevance = map[string]float64{
	"rock": 1.0, "pop": 1.0, "hip-hop": 1.0, "country": 1.0, "electronic": 1.0,
	"indie": 1.0, "alternative": 1.0, "folk": 1.0, "jazz": 1.0, "blues": 1.0,
	"metal": 1.0, "punk": 1.0, "reggae": 1.0, "soul": 1.0, "funk": 1.0,

	"indie rock": 0.9, "pop rock": 0.9, "alternative rock": 0.9, "hip hop": 0.9,
	"rap": 0.9, "country pop": 0.9, "new country": 0.9, "electropop": 0.9, "synthpop": 0.9,

	"dance": 0.8, "house": 0.8, "acoustic": 0.8, "singer-songwriter": 0.8, "indie pop": 0.8,

	"chill": 0.6, "upbeat": 0.6, "mellow": 0.6, "energetic": 0.6,
	"catchy": 0.5, "emotional": 0.5, "atmospheric": 0.5,

	"male vocalists": 0.2, "female vocalists": 0.2, "american": 0.2, "british": 0.2,
	"seen live": 0.1, "favorites": 0.1, "love": 0.1,
}

const (
	partialMatchFactor = 0.8
	minRelevance       = 0.3
	minConfidence      = 0.4
	maxTags            = 5
)

// relevance scores a tag name. Exact table hits get their weight; otherwise
// the best partial containment (either direction) scores weight × 0.8.
func relevance(tag string) float64 {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if w, ok := genreRelevance[tag]; ok {
		return w
	}
	var best float64
	for keyword, w := range genreRelevance {
		if strings.Contains(tag, keyword) || strings.Contains(keyword, tag) {
			if s := w * partialMatchFactor; s > best {
				best = s
			}
		}
	}
	return best
}

type scoredTag struct {
	name       string
	confidence float64
}

// scoreTags turns raw community tags into at most five genre tags. A tag
// survives if its relevance beats 0.3 and its confidence,
// min(relevance × count/100, 1), beats 0.4.
func scoreTags(tags []TopTag) []scoredTag {
	var kept []scoredTag
	for _, t := range tags {
		if t.Name == "" {
			continue
		}
		r := relevance(t.Name)
		if r <= minRelevance {
			continue
		}
		c := r * float64(t.Count) / 100
		if c > 1 {
			c = 1
		}
		kept = append(kept, scoredTag{name: strings.ToLower(strings.TrimSpace(t.Name)), confidence: c})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].confidence > kept[j].confidence })

	out := make([]scoredTag, 0, maxTags)
	for _, t := range kept {
		if len(out) == maxTags {
			break
		}
		if t.confidence > minConfidence {
			out = append(out, t)
		}
	}
	return out
}
