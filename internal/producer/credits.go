package producer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dnhngynops/muindb/internal/catalog"
	"github.com/dnhngynops/muindb/internal/provider"
)

// CreditStore is the slice of the catalog credit collection writes to.
type CreditStore interface {
	SongsNeedingCredits(ctx context.Context, year, limit int) ([]catalog.Song, error)
	SaveCredits(ctx context.Context, songID int64, producers, writers []string, source string) error
}

// CreditSummary counts the outcome of a credit collection pass.
type CreditSummary struct {
	Songs       int `json:"songs"`
	Found       int `json:"found"`
	NotFound    int `json:"not_found"`
	Failed      int `json:"failed"`
	Producers   int `json:"producers"`
	Writers     int `json:"writers"`
	WriteErrors int `json:"write_errors"`
}

// CollectCredits fetches credits for every song of year (0 for all years)
// that has none stored yet. A song whose lookup finds nothing is left
// without credits and retried on the next pass. Missing credentials stop
// the pass.
func CollectCredits(ctx context.Context, store CreditStore, src provider.CreditSource, year, limit int, logger *slog.Logger) (CreditSummary, error) {
	logger = logger.With(slog.String("component", "credits"))
	songs, err := store.SongsNeedingCredits(ctx, year, limit)
	if err != nil {
		return CreditSummary{}, err
	}
	sum := CreditSummary{Songs: len(songs)}

	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		c, err := src.FetchCredits(ctx, song.Title, song.Artist)
		if err != nil {
			var auth *provider.ErrAuthRequired
			var noMatch *provider.ErrNoMatch
			var notFound *provider.ErrNotFound
			switch {
			case errors.As(err, &auth):
				return sum, err
			case errors.As(err, &noMatch), errors.As(err, &notFound):
				sum.NotFound++
				logger.Debug("no credits found", slog.String("title", song.Title), slog.String("artist", song.Artist))
			default:
				sum.Failed++
				logger.Warn("fetching credits",
					slog.String("title", song.Title), slog.String("artist", song.Artist), slog.String("error", err.Error()))
			}
			continue
		}
		if len(c.Producers) == 0 && len(c.Writers) == 0 {
			sum.NotFound++
			continue
		}
		if err := store.SaveCredits(ctx, song.ID, c.Producers, c.Writers, catalog.SourceGenius); err != nil {
			sum.WriteErrors++
			logger.Error("saving credits", slog.Int64("song_id", song.ID), slog.String("error", err.Error()))
			continue
		}
		sum.Found++
		sum.Producers += len(c.Producers)
		sum.Writers += len(c.Writers)
	}
	logger.Info("credit collection finished",
		slog.Int("songs", sum.Songs), slog.Int("found", sum.Found),
		slog.Int("not_found", sum.NotFound), slog.Int("failed", sum.Failed))
	return sum, nil
}
