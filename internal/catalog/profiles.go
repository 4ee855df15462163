package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// saveProfile upserts the subject profile row of c inside ex.
func saveProfile(ctx context.Context, ex execer, c Classification) error {
	key := c.ProfileKey
	if key == "" {
		key = c.Subject
	}
	votes, err := encodeList(c.Votes)
	if err != nil {
		return err
	}
	tags, err := encodeList(c.SecondaryTags)
	if err != nil {
		return err
	}
	indicators, err := encodeList(c.CrossoverIndicators)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO subject_profiles
			(subject, year, primary_genre, confidence_score, votes, secondary_tags, crossover_indicators)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, year) DO UPDATE SET
			primary_genre = excluded.primary_genre,
			confidence_score = excluded.confidence_score,
			votes = excluded.votes,
			secondary_tags = excluded.secondary_tags,
			crossover_indicators = excluded.crossover_indicators,
			updated_at = datetime('now')
	`, profileKey(key), max(c.Year, 0), c.Genre, c.Confidence, votes, tags, indicators)
	if err != nil {
		return fmt.Errorf("saving profile for %q: %w", c.Subject, err)
	}
	return nil
}

// loadProfile fills st from the subject profile row of subject and year.
// A missing row leaves st untouched.
func (s *Service) loadProfile(ctx context.Context, subject string, year int, st *Stored) error {
	var genre, votes, tags, indicators string
	var conf float64
	err := s.db.QueryRowContext(ctx, `
		SELECT primary_genre, confidence_score, votes, secondary_tags, crossover_indicators
		FROM subject_profiles WHERE subject = ? AND year = ?
	`, profileKey(subject), max(year, 0)).Scan(&genre, &conf, &votes, &tags, &indicators)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading profile for %q: %w", subject, err)
	}

	p := Stored{Genre: genre, Confidence: conf, Subgenres: st.Subgenres, HasProfile: true}
	for _, f := range []struct {
		raw string
		dst any
	}{
		{votes, &p.Votes},
		{tags, &p.SecondaryTags},
		{indicators, &p.CrossoverIndicators},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return fmt.Errorf("decoding profile for %q: %w", subject, err)
		}
	}
	*st = p
	return nil
}

// encodeList encodes a slice as a JSON array, writing nil as [].
func encodeList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}
	return string(data), nil
}
