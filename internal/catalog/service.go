// Package catalog is the persistence gateway over the chart catalog: songs,
// genres and subgenres, credits and audio features.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Service provides catalog data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a catalog service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// DB exposes the handle for maintenance tasks such as backups.
func (s *Service) DB() *sql.DB { return s.db }

const songColumns = `s.song_id, s.song_name, s.artist_name, s.first_chart_appearance, s.peak_position, s.weeks_on_chart`

func scanSong(row interface{ Scan(...any) error }) (Song, error) {
	var song Song
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.FirstChart, &song.PeakPosition, &song.WeeksOnChart)
	return song, err
}

func collectSongs(rows *sql.Rows) ([]Song, error) {
	defer rows.Close() //nolint:errcheck
	var out []Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		out = append(out, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating songs: %w", err)
	}
	return out, nil
}

// AddSong inserts a song, or updates chart stats when the title and artist
// already exist: the earliest appearance, best peak and longest run win.
func (s *Service) AddSong(ctx context.Context, song *Song) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO songs (song_name, artist_name, first_chart_appearance, peak_position, weeks_on_chart)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(song_name, artist_name) DO UPDATE SET
			first_chart_appearance = CASE
				WHEN songs.first_chart_appearance = '' THEN excluded.first_chart_appearance
				WHEN excluded.first_chart_appearance = '' THEN songs.first_chart_appearance
				ELSE min(songs.first_chart_appearance, excluded.first_chart_appearance) END,
			peak_position = CASE
				WHEN songs.peak_position = 0 THEN excluded.peak_position
				WHEN excluded.peak_position = 0 THEN songs.peak_position
				ELSE min(songs.peak_position, excluded.peak_position) END,
			weeks_on_chart = max(songs.weeks_on_chart, excluded.weeks_on_chart)
		RETURNING song_id
	`, song.Title, song.Artist, song.FirstChart, song.PeakPosition, song.WeeksOnChart).Scan(&song.ID)
	if err != nil {
		return fmt.Errorf("%w: adding song %q: %w", ErrPersistence, song.Title, err)
	}
	return nil
}

// GetSong retrieves a song by ID. Returns nil when it does not exist.
func (s *Service) GetSong(ctx context.Context, id int64) (*Song, error) {
	song, err := scanSong(s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs s WHERE s.song_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting song %d: %w", id, err)
	}
	return &song, nil
}

// FindSong looks a song up by exact title and artist (case-insensitive).
// Returns nil when it does not exist.
func (s *Service) FindSong(ctx context.Context, title, artist string) (*Song, error) {
	song, err := scanSong(s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs s
		 WHERE s.song_name = ? COLLATE NOCASE AND s.artist_name = ? COLLATE NOCASE
		 LIMIT 1`, title, artist))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding song %q: %w", title, err)
	}
	return &song, nil
}

// SubjectSongs returns the songs whose artist credit contains subject,
// optionally restricted to songs first charting in year.
func (s *Service) SubjectSongs(ctx context.Context, subject string, year int) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs s
		WHERE s.artist_name LIKE ? ESCAPE '\' AND s.first_chart_appearance LIKE ?
		ORDER BY s.peak_position, s.song_id
	`, likePattern(subject), yearPattern(year))
	if err != nil {
		return nil, fmt.Errorf("listing songs for %q: %w", subject, err)
	}
	return collectSongs(rows)
}

// YearArtists returns the distinct artist credits of songs first charting in
// year (0 for all years), ordered by best peak position. limit caps the number
// of songs scanned; 0 means no cap.
func (s *Service) YearArtists(ctx context.Context, year, limit int) ([]string, error) {
	q := `SELECT s.artist_name FROM songs s
		WHERE s.first_chart_appearance LIKE ?
		ORDER BY s.peak_position, s.song_id`
	args := []any{yearPattern(year)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing artists for %d: %w", year, err)
	}
	defer rows.Close() //nolint:errcheck

	seen := make(map[string]bool)
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning artist: %w", err)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, rows.Err()
}
