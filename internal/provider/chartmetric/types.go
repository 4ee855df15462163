package chartmetric

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Chartmetric API response types.

type tokenResponse struct {
	Token        string `json:"token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type searchResponse struct {
	Obj struct {
		Artists []searchArtist `json:"artists"`
	} `json:"obj"`
}

type searchArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type artistResponse struct {
	Obj struct {
		Name         string    `json:"name"`
		Genres       genreList `json:"genres"`
		SpFollowers  int64     `json:"sp_followers"`
		SpPopularity int       `json:"sp_popularity"`
		Verified     bool      `json:"verified"`
	} `json:"obj"`
}

// genreList accepts the shapes the genres field takes across artist
// records: a list of names, a list of {name} objects, or an object with a
// primary genre and secondary list.
type genreList []string

func (g *genreList) UnmarshalJSON(data []byte) error {
	*g = nil
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		case map[string]any:
			if n, ok := t["name"]; ok {
				walk(n)
				return
			}
			walk(t["primary"])
			walk(t["secondary"])
			walk(t["sub"])
		}
	}
	walk(raw)
	*g = out
	return nil
}

func (g genreList) names() []string {
	seen := make(map[string]bool, len(g))
	var out []string
	for _, n := range g {
		k := strings.ToLower(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
