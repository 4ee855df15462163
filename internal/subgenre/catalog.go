package subgenre

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dnhngynops/muindb/internal/catalog"
	"github.com/dnhngynops/muindb/internal/provider"
)

// Store is the slice of the catalog the subgenre pass reads and writes.
type Store interface {
	ClassifiedSongs(ctx context.Context, year, limit int) ([]catalog.FeatureSong, error)
	SaveAudioFeatures(ctx context.Context, songID int64, f provider.Features) error
	AttachSubgenre(ctx context.Context, songID int64, parentGenre, subgenre string, confidence float64, source string) error
}

// Summary counts the outcome of a catalog pass.
type Summary struct {
	Songs       int            `json:"songs"`
	Fetched     int            `json:"features_fetched"`
	NoFeatures  int            `json:"no_features"`
	Classified  int            `json:"classified"`
	ByMethod    map[Method]int `json:"by_method"`
	BySubgenre  map[string]int `json:"by_subgenre"`
	WriteErrors int            `json:"write_errors"`
}

// ClassifyCatalog assigns subgenres to classified songs of year (0 for all
// years). Songs without stored features are looked up through features
// when it is non-nil and the result is stored. A nil error with
// WriteErrors > 0 means some songs could not be saved.
func (c *Classifier) ClassifyCatalog(ctx context.Context, store Store, features provider.FeatureSource, year, limit int, method Method) (Summary, error) {
	songs, err := store.ClassifiedSongs(ctx, year, limit)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		Songs:      len(songs),
		ByMethod:   make(map[Method]int),
		BySubgenre: make(map[string]int),
	}

	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		f := song.Features
		if len(f) == 0 && features != nil {
			f, err = features.AudioFeatures(ctx, song.Title, song.Artist)
			switch {
			case err == nil && len(f) > 0:
				if err := store.SaveAudioFeatures(ctx, song.ID, f); err != nil {
					c.logger.Warn("saving audio features", slog.Int64("song_id", song.ID), slog.String("error", err.Error()))
				}
				sum.Fetched++
			case err != nil && !errors.Is(err, context.Canceled):
				c.logger.Debug("audio features unavailable",
					slog.String("title", song.Title), slog.String("artist", song.Artist), slog.String("error", err.Error()))
			}
		}
		if len(f) == 0 {
			sum.NoFeatures++
			continue
		}

		res := c.Classify(song.Genre, f, method)
		sum.ByMethod[res.Method]++
		if res.Subgenre == "" {
			continue
		}
		source := catalog.SourceSubgenreRules
		if res.Method == MethodML {
			source = catalog.SourceSubgenreModel
		}
		if err := store.AttachSubgenre(ctx, song.ID, res.PrimaryGenre, res.Subgenre, res.Confidence, source); err != nil {
			sum.WriteErrors++
			c.logger.Error("saving subgenre", slog.Int64("song_id", song.ID), slog.String("error", err.Error()))
			continue
		}
		sum.Classified++
		sum.BySubgenre[res.Subgenre]++
	}
	return sum, nil
}

// ReadSamples parses training rows from CSV. The header names the feature
// columns and a subgenre (or label) column; rows without a label or with a
// non-numeric feature are skipped.
func ReadSamples(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	labelCol := -1
	cols := make(map[int]string)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch h {
		case "subgenre", "label":
			labelCol = i
		case "danceability", "energy", "loudness", "speechiness", "acousticness",
			"instrumentalness", "liveness", "valence", "tempo", "duration_ms":
			cols[i] = h
		}
	}
	if labelCol < 0 {
		return nil, errors.New("missing subgenre column")
	}
	if len(cols) == 0 {
		return nil, errors.New("no audio feature columns")
	}

	var out []Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if labelCol >= len(rec) || strings.TrimSpace(rec[labelCol]) == "" {
			continue
		}
		s := Sample{Subgenre: strings.ToLower(strings.TrimSpace(rec[labelCol])), Features: provider.Features{}}
		ok := true
		for i, name := range cols {
			if i >= len(rec) {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				ok = false
				break
			}
			s.Features[name] = v
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}
