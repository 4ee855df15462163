package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ImportResult counts the outcome of a chart import.
type ImportResult struct {
	Rows    int `json:"rows"`
	Songs   int `json:"songs"`
	Genres  int `json:"genres"`
	Skipped int `json:"skipped"`
}

// chartColumns maps accepted header names to canonical fields.
var chartColumns = map[string]string{
	"date":           "date",
	"chart_date":     "date",
	"week":           "date",
	"rank":           "rank",
	"song":           "song",
	"title":          "song",
	"song_name":      "song",
	"artist":         "artist",
	"artist_name":    "artist",
	"performer":      "artist",
	"peak-rank":      "peak",
	"peak_rank":      "peak",
	"peak_position":  "peak",
	"weeks-on-board": "weeks",
	"weeks_on_board": "weeks",
	"weeks_on_chart": "weeks",
	"genre":          "genre",
}

// ImportChart reads weekly chart rows from CSV and merges them into the
// catalog. The header must name at least a song and artist column. An
// optional genre column is stored as an import-sourced classification.
func (s *Service) ImportChart(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return res, fmt.Errorf("reading chart header: %w", err)
	}
	idx := make(map[string]int)
	for i, h := range header {
		if field, ok := chartColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	if _, ok := idx["song"]; !ok {
		return res, errors.New("chart header has no song column")
	}
	if _, ok := idx["artist"]; !ok {
		return res, errors.New("chart header has no artist column")
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	seen := make(map[int64]bool)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading chart row %d: %w", res.Rows+1, err)
		}
		res.Rows++

		song := Song{Title: field(rec, "song"), Artist: field(rec, "artist"), FirstChart: field(rec, "date")}
		if song.Title == "" || song.Artist == "" {
			res.Skipped++
			continue
		}
		song.PeakPosition = atoiOrZero(field(rec, "peak"))
		if song.PeakPosition == 0 {
			song.PeakPosition = atoiOrZero(field(rec, "rank"))
		}
		song.WeeksOnChart = atoiOrZero(field(rec, "weeks"))

		if err := s.AddSong(ctx, &song); err != nil {
			return res, err
		}
		if !seen[song.ID] {
			seen[song.ID] = true
			res.Songs++
		}
		if g := strings.ToLower(field(rec, "genre")); g != "" {
			if err := s.UpsertGenre(ctx, song.ID, g, 1.0, SourceImport); err != nil {
				return res, err
			}
			res.Genres++
		}
	}
	return res, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
