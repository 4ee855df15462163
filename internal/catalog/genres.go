package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Coverage reports how many of subject's songs (optionally for one year)
// already carry a genre with confidence above minConfidence.
func (s *Service) Coverage(ctx context.Context, subject string, year int, minConfidence float64) (Coverage, error) {
	var c Coverage
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN g.max_conf > ? THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(g.max_conf), 0)
		FROM songs s
		LEFT JOIN (
			SELECT sg.song_id, MAX(sg.confidence_score) AS max_conf
			FROM song_genres sg JOIN genres gn ON gn.genre_id = sg.genre_id
			WHERE gn.parent_genre_id IS NULL
			GROUP BY sg.song_id
		) g ON g.song_id = s.song_id
		WHERE s.artist_name LIKE ? ESCAPE '\' AND s.first_chart_appearance LIKE ?
	`, minConfidence, likePattern(subject), yearPattern(year)).Scan(&c.Total, &c.Classified, &c.MaxConfidence)
	if err != nil {
		return Coverage{}, fmt.Errorf("reading coverage for %q: %w", subject, err)
	}
	return c, nil
}

// StoredClassification returns the most confident persisted genre for
// subject and the subgenres recorded beneath it. When subject was saved with
// a profile for year, the profile's genre, confidence and tags are returned
// as saved. Returns nil when nothing is stored.
func (s *Service) StoredClassification(ctx context.Context, subject string, year int) (*Stored, error) {
	var st Stored
	err := s.db.QueryRowContext(ctx, `
		SELECT gn.genre_name, sg.confidence_score
		FROM song_genres sg
		JOIN genres gn ON gn.genre_id = sg.genre_id
		JOIN songs s ON s.song_id = sg.song_id
		WHERE gn.parent_genre_id IS NULL
		  AND s.artist_name LIKE ? ESCAPE '\' AND s.first_chart_appearance LIKE ?
		ORDER BY sg.confidence_score DESC, gn.genre_name
		LIMIT 1
	`, likePattern(subject), yearPattern(year)).Scan(&st.Genre, &st.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading classification for %q: %w", subject, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sub.subgenre_name, MIN(ss.rank) AS best_rank
		FROM song_subgenres ss
		JOIN subgenres sub ON sub.subgenre_id = ss.subgenre_id
		JOIN genres gn ON gn.genre_id = sub.parent_genre_id
		JOIN songs s ON s.song_id = ss.song_id
		WHERE gn.genre_name = ?
		  AND s.artist_name LIKE ? ESCAPE '\' AND s.first_chart_appearance LIKE ?
		GROUP BY sub.subgenre_name
		ORDER BY best_rank, sub.subgenre_name
		LIMIT 10
	`, st.Genre, likePattern(subject), yearPattern(year))
	if err != nil {
		return nil, fmt.Errorf("reading subgenres for %q: %w", subject, err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var name string
		var rank int
		if err := rows.Scan(&name, &rank); err != nil {
			return nil, fmt.Errorf("scanning subgenre: %w", err)
		}
		st.Subgenres = append(st.Subgenres, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subgenres: %w", err)
	}
	if err := s.loadProfile(ctx, subject, year, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func ensureGenre(ctx context.Context, ex execer, name string) (int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO genres (genre_name) VALUES (?) ON CONFLICT(genre_name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("creating genre %q: %w", name, err)
	}
	var id int64
	if err := ex.QueryRowContext(ctx, `SELECT genre_id FROM genres WHERE genre_name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading genre %q: %w", name, err)
	}
	return id, nil
}

func ensureSubgenre(ctx context.Context, ex execer, name string, parentID int64, description string) (int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO subgenres (subgenre_name, parent_genre_id, description) VALUES (?, ?, ?)
		ON CONFLICT(subgenre_name, parent_genre_id) DO NOTHING
	`, name, parentID, description); err != nil {
		return 0, fmt.Errorf("creating subgenre %q: %w", name, err)
	}
	var id int64
	if err := ex.QueryRowContext(ctx,
		`SELECT subgenre_id FROM subgenres WHERE subgenre_name = ? AND parent_genre_id = ?`,
		name, parentID).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading subgenre %q: %w", name, err)
	}
	return id, nil
}

func upsertSongGenre(ctx context.Context, ex execer, songID, genreID int64, confidence float64, source string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO song_genres (song_id, genre_id, confidence_score, source) VALUES (?, ?, ?, ?)
		ON CONFLICT(song_id, genre_id) DO UPDATE SET
			confidence_score = excluded.confidence_score,
			source = excluded.source,
			updated_at = datetime('now')
	`, songID, genreID, confidence, source)
	return err
}

func upsertSongSubgenre(ctx context.Context, ex execer, songID, subgenreID int64, confidence float64, source string, rank int) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO song_subgenres (song_id, subgenre_id, confidence_score, source, rank) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(song_id, subgenre_id) DO UPDATE SET
			confidence_score = excluded.confidence_score,
			source = excluded.source,
			rank = excluded.rank,
			updated_at = datetime('now')
	`, songID, subgenreID, confidence, source, rank)
	return err
}

// UpsertGenre records genre for one song, creating the genre if needed.
func (s *Service) UpsertGenre(ctx context.Context, songID int64, genre string, confidence float64, source string) error {
	id, err := ensureGenre(ctx, s.db, genre)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := upsertSongGenre(ctx, s.db, songID, id, confidence, source); err != nil {
		return fmt.Errorf("%w: saving genre for song %d: %w", ErrPersistence, songID, err)
	}
	return nil
}

// UpsertSubgenre records subgenre for one song beneath parentGenre.
// description is only used when the subgenre is first created.
func (s *Service) UpsertSubgenre(ctx context.Context, songID int64, parentGenre, subgenre, description string, confidence float64, source string, rank int) error {
	parentID, err := ensureGenre(ctx, s.db, parentGenre)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	subID, err := ensureSubgenre(ctx, s.db, subgenre, parentID, description)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := upsertSongSubgenre(ctx, s.db, songID, subID, confidence, source, rank); err != nil {
		return fmt.Errorf("%w: saving subgenre for song %d: %w", ErrPersistence, songID, err)
	}
	return nil
}

// AttachSubgenre records subgenre on a song beneath parentGenre. A new row
// is ranked after the song's existing subgenres; an existing row keeps its
// rank and takes the new confidence and source.
func (s *Service) AttachSubgenre(ctx context.Context, songID int64, parentGenre, subgenre string, confidence float64, source string) error {
	parentID, err := ensureGenre(ctx, s.db, parentGenre)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	subID, err := ensureSubgenre(ctx, s.db, subgenre, parentID, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO song_subgenres (song_id, subgenre_id, confidence_score, source, rank)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(rank), 0) + 1 FROM song_subgenres WHERE song_id = ?))
		ON CONFLICT(song_id, subgenre_id) DO UPDATE SET
			confidence_score = excluded.confidence_score,
			source = excluded.source,
			updated_at = datetime('now')
	`, songID, subID, confidence, source, songID)
	if err != nil {
		return fmt.Errorf("%w: attaching subgenre to song %d: %w", ErrPersistence, songID, err)
	}
	return nil
}

// AddSubgenre attaches subgenre to a song after its existing subgenres
// unless the song already carries it, in which case nothing changes. It
// reports whether a row was added. description is only used when the
// subgenre is first created.
func (s *Service) AddSubgenre(ctx context.Context, songID int64, parentGenre, subgenre, description string, confidence float64, source string) (bool, error) {
	parentID, err := ensureGenre(ctx, s.db, parentGenre)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	subID, err := ensureSubgenre(ctx, s.db, subgenre, parentID, description)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO song_subgenres (song_id, subgenre_id, confidence_score, source, rank)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(rank), 0) + 1 FROM song_subgenres WHERE song_id = ?))
		ON CONFLICT(song_id, subgenre_id) DO NOTHING
	`, songID, subID, confidence, source, songID)
	if err != nil {
		return false, fmt.Errorf("%w: adding subgenre to song %d: %w", ErrPersistence, songID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return n > 0, nil
}

// NextSubgenreRank returns one past the highest subgenre rank on a song.
func (s *Service) NextSubgenreRank(ctx context.Context, songID int64) (int, error) {
	var rank int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(rank), 0) + 1 FROM song_subgenres WHERE song_id = ?`, songID).Scan(&rank); err != nil {
		return 0, fmt.Errorf("reading subgenre rank for song %d: %w", songID, err)
	}
	return rank, nil
}

// SongGenre returns the most confident top-level genre of a song, or "".
func (s *Service) SongGenre(ctx context.Context, songID int64) (string, float64, error) {
	var name string
	var conf float64
	err := s.db.QueryRowContext(ctx, `
		SELECT gn.genre_name, sg.confidence_score
		FROM song_genres sg JOIN genres gn ON gn.genre_id = sg.genre_id
		WHERE sg.song_id = ? AND gn.parent_genre_id IS NULL
		ORDER BY sg.confidence_score DESC, gn.genre_name LIMIT 1
	`, songID).Scan(&name, &conf)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading genre for song %d: %w", songID, err)
	}
	return name, conf, nil
}

// SaveClassification writes a subject's primary genre onto each of its songs,
// attaches the ranked subgenres and records the subject profile, all in one
// transaction. A subgenre whose
// name is already a top-level genre is skipped. It returns the number of
// songs updated; a subject with no songs is a no-op.
func (s *Service) SaveClassification(ctx context.Context, c Classification) (int, error) {
	songs, err := s.SubjectSongs(ctx, c.Subject, c.Year)
	if err != nil {
		return 0, err
	}
	if len(songs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	source := c.Source
	if source == "" {
		source = SourceClassification
	}
	genreID, err := ensureGenre(ctx, tx, c.Genre)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	type sub struct {
		id int64
		RankedSubgenre
	}
	var subs []sub
	for _, rs := range c.Subgenres {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM genres WHERE genre_name = ?`, strings.ToLower(rs.Name)).Scan(&exists); err != nil {
			return 0, fmt.Errorf("%w: checking genre %q: %w", ErrPersistence, rs.Name, err)
		}
		if exists > 0 {
			continue
		}
		id, err := ensureSubgenre(ctx, tx, rs.Name, genreID, "")
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		subs = append(subs, sub{id: id, RankedSubgenre: rs})
	}

	for _, song := range songs {
		if err := upsertSongGenre(ctx, tx, song.ID, genreID, c.Confidence, source); err != nil {
			return 0, fmt.Errorf("%w: saving genre for song %d: %w", ErrPersistence, song.ID, err)
		}
		for _, sb := range subs {
			if err := upsertSongSubgenre(ctx, tx, song.ID, sb.id, sb.Confidence, sb.Source, sb.Rank); err != nil {
				return 0, fmt.Errorf("%w: saving subgenre for song %d: %w", ErrPersistence, song.ID, err)
			}
		}
	}

	if err := saveProfile(ctx, tx, c); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing classification for %q: %w", ErrPersistence, c.Subject, err)
	}
	return len(songs), nil
}

// GenreDistribution counts songs per top-level genre, using each song's most
// confident genre. year 0 covers the whole catalog.
func (s *Service) GenreDistribution(ctx context.Context, year int) ([]GenreCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH ranked AS (
			SELECT sg.song_id, gn.genre_name,
			       ROW_NUMBER() OVER (PARTITION BY sg.song_id ORDER BY sg.confidence_score DESC, gn.genre_name) AS rn
			FROM song_genres sg
			JOIN genres gn ON gn.genre_id = sg.genre_id
			JOIN songs s ON s.song_id = sg.song_id
			WHERE gn.parent_genre_id IS NULL AND s.first_chart_appearance LIKE ?
		)
		SELECT genre_name, COUNT(*) FROM ranked WHERE rn = 1
		GROUP BY genre_name ORDER BY COUNT(*) DESC, genre_name
	`, yearPattern(year))
	if err != nil {
		return nil, fmt.Errorf("reading genre distribution: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []GenreCount
	var total int
	for rows.Next() {
		var gc GenreCount
		if err := rows.Scan(&gc.Genre, &gc.Songs); err != nil {
			return nil, fmt.Errorf("scanning genre count: %w", err)
		}
		total += gc.Songs
		out = append(out, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating genre counts: %w", err)
	}
	for i := range out {
		out[i].Percent = 100 * float64(out[i].Songs) / float64(total)
	}
	return out, nil
}

// Totals summarizes catalog coverage.
func (s *Service) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM songs),
			(SELECT COUNT(DISTINCT song_id) FROM song_genres),
			(SELECT COUNT(DISTINCT song_id) FROM song_subgenres),
			(SELECT COUNT(DISTINCT song_id) FROM song_credits),
			(SELECT COUNT(*) FROM audio_features),
			(SELECT COUNT(*) FROM genres WHERE parent_genre_id IS NULL),
			(SELECT COUNT(*) FROM subgenres),
			(SELECT COUNT(*) FROM credits)
	`).Scan(&t.Songs, &t.SongsWithGenres, &t.SongsWithSubgenres, &t.SongsWithCredits,
		&t.SongsWithFeatures, &t.Genres, &t.Subgenres, &t.Credits)
	if err != nil {
		return Totals{}, fmt.Errorf("reading catalog totals: %w", err)
	}
	return t, nil
}
