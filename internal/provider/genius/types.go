package genius

// Genius API response types.

type searchResponse struct {
	Response struct {
		Hits []hit `json:"hits"`
	} `json:"response"`
}

type hit struct {
	Type   string     `json:"type"`
	Result songResult `json:"result"`
}

type songResult struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	PrimaryArtist artist `json:"primary_artist"`
}

type artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type songResponse struct {
	Response struct {
		Song song `json:"song"`
	} `json:"response"`
}

type song struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	ProducerArtists    []artist      `json:"producer_artists"`
	WriterArtists      []artist      `json:"writer_artists"`
	CustomPerformances []performance `json:"custom_performances"`
}

// performance is an extra credit role such as "Additional Writer" or
// "Recorded At".
type performance struct {
	Label   string   `json:"label"`
	Artists []artist `json:"artists"`
}
