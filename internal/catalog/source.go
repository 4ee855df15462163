package catalog

import (
	"context"
	"fmt"

	"github.com/dnhngynops/muindb/internal/provider"
)

// TagSource exposes genres already stored in the catalog as a database
// category source. Rows written by the reasoning engine itself are excluded
// so a stored answer never votes for itself.
type TagSource struct {
	svc *Service
}

// NewTagSource creates the internal-database tag source.
func NewTagSource(svc *Service) *TagSource {
	return &TagSource{svc: svc}
}

// Name returns the source name.
func (t *TagSource) Name() provider.Name { return provider.NameCatalog }

// Category reports the database category.
func (t *TagSource) Category() provider.Category { return provider.CategoryDatabase }

// FetchTags returns the distinct genre and subgenre names stored for songs
// whose artist credit contains artist, with the best stored confidence.
func (t *TagSource) FetchTags(ctx context.Context, artist string) ([]provider.Tag, error) {
	rows, err := t.svc.db.QueryContext(ctx, `
		SELECT name, MAX(conf) FROM (
			SELECT gn.genre_name AS name, sg.confidence_score AS conf
			FROM song_genres sg
			JOIN genres gn ON gn.genre_id = sg.genre_id
			JOIN songs s ON s.song_id = sg.song_id
			WHERE s.artist_name LIKE ? ESCAPE '\' AND sg.source <> ?
			UNION ALL
			SELECT sub.subgenre_name, ss.confidence_score
			FROM song_subgenres ss
			JOIN subgenres sub ON sub.subgenre_id = ss.subgenre_id
			JOIN songs s ON s.song_id = ss.song_id
			WHERE s.artist_name LIKE ? ESCAPE '\' AND ss.source = ?
		)
		GROUP BY name ORDER BY MAX(conf) DESC, name
	`, likePattern(artist), SourceClassification, likePattern(artist), SourceImport)
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameCatalog,
			Cause:    fmt.Errorf("querying stored genres: %w", err),
		}
	}
	defer rows.Close() //nolint:errcheck

	var tags []provider.Tag
	for rows.Next() {
		var tag provider.Tag
		if err := rows.Scan(&tag.Name, &tag.Confidence); err != nil {
			return nil, fmt.Errorf("scanning stored genre: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
