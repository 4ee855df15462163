package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ProducerSong is a classified song with its credited producers.
type ProducerSong struct {
	Song
	Genre     string   `json:"genre"`
	Producers []string `json:"producers"`
}

// SongsNeedingCredits returns songs without any credit rows, best peak first.
func (s *Service) SongsNeedingCredits(ctx context.Context, year, limit int) ([]Song, error) {
	q := `SELECT ` + songColumns + ` FROM songs s
		WHERE s.first_chart_appearance LIKE ?
		  AND NOT EXISTS (SELECT 1 FROM song_credits sc WHERE sc.song_id = s.song_id)
		ORDER BY s.peak_position, s.song_id`
	args := []any{yearPattern(year)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing songs needing credits: %w", err)
	}
	return collectSongs(rows)
}

// SaveCredits records the producers and writers of a song in one
// transaction. Names are deduplicated by their normalized form.
func (s *Service) SaveCredits(ctx context.Context, songID int64, producers, writers []string, source string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	for _, group := range []struct {
		role  string
		names []string
	}{{RoleProducer, producers}, {RoleWriter, writers}} {
		var roleID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT role_id FROM credit_roles WHERE role_name = ?`, group.role).Scan(&roleID); err != nil {
			return fmt.Errorf("%w: reading role %s: %w", ErrPersistence, group.role, err)
		}
		for i, name := range group.names {
			creditID, err := ensureCredit(ctx, tx, name)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
			if creditID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO song_credits (song_id, credit_id, role_id, is_primary, source)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(song_id, credit_id, role_id) DO NOTHING
			`, songID, creditID, roleID, boolToInt(i == 0), source); err != nil {
				return fmt.Errorf("%w: saving credit for song %d: %w", ErrPersistence, songID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing credits for song %d: %w", ErrPersistence, songID, err)
	}
	return nil
}

func ensureCredit(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	norm := NormalizeCreditName(name)
	if norm == "" {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credits (credit_name, normalized_name) VALUES (?, ?)
		ON CONFLICT(normalized_name) DO NOTHING
	`, strings.TrimSpace(name), norm); err != nil {
		return 0, fmt.Errorf("creating credit %q: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT credit_id FROM credits WHERE normalized_name = ?`, norm).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading credit %q: %w", name, err)
	}
	return id, nil
}

// SongProducers returns the producer names credited on a song.
func (s *Service) SongProducers(ctx context.Context, songID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.credit_name FROM song_credits sc
		JOIN credits c ON c.credit_id = sc.credit_id
		JOIN credit_roles r ON r.role_id = sc.role_id
		WHERE sc.song_id = ? AND r.role_name = ?
		ORDER BY sc.is_primary DESC, c.credit_name
	`, songID, RoleProducer)
	if err != nil {
		return nil, fmt.Errorf("listing producers for song %d: %w", songID, err)
	}
	defer rows.Close() //nolint:errcheck
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning producer: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ProducerSongs returns classified songs that have producer credits, best
// peak first, with each song's top genre and producers.
func (s *Service) ProducerSongs(ctx context.Context, year, limit int) ([]ProducerSong, error) {
	q := `SELECT ` + songColumns + ` FROM songs s
		WHERE s.first_chart_appearance LIKE ?
		  AND EXISTS (
			SELECT 1 FROM song_credits sc JOIN credit_roles r ON r.role_id = sc.role_id
			WHERE sc.song_id = s.song_id AND r.role_name = ?)
		  AND EXISTS (SELECT 1 FROM song_genres sg WHERE sg.song_id = s.song_id)
		ORDER BY s.peak_position, s.song_id`
	args := []any{yearPattern(year), RoleProducer}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing produced songs: %w", err)
	}
	songs, err := collectSongs(rows)
	if err != nil {
		return nil, err
	}

	out := make([]ProducerSong, 0, len(songs))
	for _, song := range songs {
		genre, _, err := s.SongGenre(ctx, song.ID)
		if err != nil {
			return nil, err
		}
		producers, err := s.SongProducers(ctx, song.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ProducerSong{Song: song, Genre: genre, Producers: producers})
	}
	return out, nil
}

// CreditedSongs returns songs on which a person matching name holds a role
// matching role (both substring, case-insensitive), best peak first.
func (s *Service) CreditedSongs(ctx context.Context, name, role string, limit int) ([]Song, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+songColumns+` FROM songs s
		JOIN song_credits sc ON sc.song_id = s.song_id
		JOIN credits c ON c.credit_id = sc.credit_id
		JOIN credit_roles r ON r.role_id = sc.role_id
		WHERE c.credit_name LIKE ? ESCAPE '\' AND r.role_name LIKE ? ESCAPE '\'
		ORDER BY s.peak_position, s.song_id
		LIMIT ?
	`, likePattern(name), likePattern(role), limit)
	if err != nil {
		return nil, fmt.Errorf("listing songs credited to %q: %w", name, err)
	}
	return collectSongs(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
