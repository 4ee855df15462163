package lastfm

// Last.fm API response types.

// TopTagsResponse is the top-level response from artist.getTopTags.
type TopTagsResponse struct {
	TopTags TopTags `json:"toptags"`
	Error   int     `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
}

// TopTags wraps the tag array.
type TopTags struct {
	Tag  []TopTag    `json:"tag"`
	Attr TopTagsAttr `json:"@attr"`
}

// TopTagsAttr carries the artist name Last.fm resolved the query to.
type TopTagsAttr struct {
	Artist string `json:"artist"`
}

// TopTag is a single community tag with its relative weight (0-100).
type TopTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	URL   string `json:"url"`
}

// Last.fm error codes relevant to tag lookups.
const (
	errInvalidParams   = 6 // also returned for unknown artists
	errInvalidAPIKey   = 10
	errSuspendedAPIKey = 26
	errRateLimited     = 29
)
