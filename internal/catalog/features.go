package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dnhngynops/muindb/internal/provider"
)

// featureColumns lists the stored audio features in table order.
var featureColumns = []string{
	"danceability", "energy", "loudness", "speechiness", "acousticness",
	"instrumentalness", "liveness", "valence", "tempo", "duration_ms",
}

// FeatureSong is a classified song with its stored audio features, if any.
type FeatureSong struct {
	Song
	Genre    string            `json:"genre"`
	Features provider.Features `json:"features,omitempty"`
}

// SaveAudioFeatures stores the features of a song, replacing earlier values.
// Unknown feature names are ignored.
func (s *Service) SaveAudioFeatures(ctx context.Context, songID int64, f provider.Features) error {
	args := []any{songID}
	for _, col := range featureColumns {
		if v, ok := f[col]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audio_features (song_id, danceability, energy, loudness, speechiness, acousticness,
			instrumentalness, liveness, valence, tempo, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			danceability = excluded.danceability, energy = excluded.energy,
			loudness = excluded.loudness, speechiness = excluded.speechiness,
			acousticness = excluded.acousticness, instrumentalness = excluded.instrumentalness,
			liveness = excluded.liveness, valence = excluded.valence,
			tempo = excluded.tempo, duration_ms = excluded.duration_ms,
			fetched_at = datetime('now')
	`, args...)
	if err != nil {
		return fmt.Errorf("%w: saving audio features for song %d: %w", ErrPersistence, songID, err)
	}
	return nil
}

// AudioFeatures returns the stored features of a song, or nil when none are
// stored. Null columns are omitted from the map.
func (s *Service) AudioFeatures(ctx context.Context, songID int64) (provider.Features, error) {
	vals := make([]sql.NullFloat64, len(featureColumns))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT danceability, energy, loudness, speechiness, acousticness,
			instrumentalness, liveness, valence, tempo, duration_ms
		FROM audio_features WHERE song_id = ?
	`, songID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading audio features for song %d: %w", songID, err)
	}
	f := make(provider.Features, len(featureColumns))
	for i, col := range featureColumns {
		if vals[i].Valid {
			f[col] = vals[i].Float64
		}
	}
	return f, nil
}

// ClassifiedSongs returns songs that carry a top-level genre, best peak
// first, with their stored features attached when present.
func (s *Service) ClassifiedSongs(ctx context.Context, year, limit int) ([]FeatureSong, error) {
	q := `SELECT ` + songColumns + ` FROM songs s
		WHERE s.first_chart_appearance LIKE ?
		  AND EXISTS (
			SELECT 1 FROM song_genres sg JOIN genres gn ON gn.genre_id = sg.genre_id
			WHERE sg.song_id = s.song_id AND gn.parent_genre_id IS NULL)
		ORDER BY s.peak_position, s.song_id`
	args := []any{yearPattern(year)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing classified songs: %w", err)
	}
	songs, err := collectSongs(rows)
	if err != nil {
		return nil, err
	}

	out := make([]FeatureSong, 0, len(songs))
	for _, song := range songs {
		genre, _, err := s.SongGenre(ctx, song.ID)
		if err != nil {
			return nil, err
		}
		f, err := s.AudioFeatures(ctx, song.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, FeatureSong{Song: song, Genre: genre, Features: f})
	}
	return out, nil
}
