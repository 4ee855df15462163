package main

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnhngynops/muindb/internal/batch"
	"github.com/dnhngynops/muindb/internal/event"
	"github.com/dnhngynops/muindb/internal/producer"
	"github.com/dnhngynops/muindb/internal/subgenre"
	"github.com/dnhngynops/muindb/internal/webhook"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv>",
		Short: "Load weekly chart rows into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening chart file: %w", err)
				}
				defer f.Close() //nolint:errcheck

				res, err := a.catalog.ImportChart(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows: %d songs, %d genres, %d skipped\n",
					res.Rows, res.Songs, res.Genres, res.Skipped)
				return nil
			})
		},
	}
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var (
		year int
		save bool
	)
	cmd := &cobra.Command{
		Use:   "classify <artist>",
		Short: "Classify one artist and print the profile with insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.engine.ClassifyYear(cmd.Context(), args[0], year)
				if err != nil {
					return err
				}
				if save {
					n, err := a.engine.Persist(cmd.Context(), args[0], year, p)
					if err != nil {
						return err
					}
					a.logger.Info("classification saved", slog.String("subject", args[0]), slog.Int("songs", n))
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "restrict stored songs to this chart year")
	cmd.Flags().BoolVar(&save, "save", false, "write the classification to the artist's songs")
	return cmd
}

func newClassifySongCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify-song <title> <artist>",
		Short: "Classify one song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.engine.ClassifySong(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newClassifyCreatorCmd(opts *rootOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "classify-creator <name>",
		Short: "Classify a producer or writer by the songs they are credited on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				res, err := a.engine.ClassifyCreator(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "producer", "credit role: producer or writer")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		year   int
		limit  int
		resume bool
		backup bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify every artist of a chart year",
		Long: `Classify every artist of a chart year with bounded concurrency.
Progress is checkpointed every few subjects; an interrupted run leaves
its checkpoint behind and a rerun skips artists already classified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				bus := event.NewBus(a.logger, 256)
				bus.Subscribe(event.CheckpointWritten, func(e event.Event) {
					fmt.Fprintf(cmd.ErrOrStderr(), "checkpoint: %v/%v\n", e.Data["processed"], e.Data["total"])
				})
				hooks := webhook.NewDispatcher(a.cfg.Webhooks, a.logger)
				hooks.Subscribe(bus)
				bus.Start()
				defer hooks.Wait()
				defer bus.Stop()

				cfg := a.cfg.Batch
				sum, err := a.driver(bus).Run(cmd.Context(), batch.Options{
					Year:            year,
					Limit:           limit,
					Concurrency:     cfg.Concurrency,
					CheckpointEvery: cfg.CheckpointEvery,
					CheckpointPath:  cfg.CheckpointPath,
					FlushEvery:      a.cfg.Cache.FlushEvery,
					MetricsFile:     cfg.MetricsFile,
					Resume:          resume,
					Backup:          backup || cfg.BackupBeforeRun,
				})
				if sum != nil {
					printBatchSummary(cmd, sum)
				}
				if err != nil {
					return err
				}
				if err := a.maint.Optimize(cmd.Context()); err != nil {
					a.logger.Warn("optimizing database after batch", slog.Any("error", err))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "chart year (0 for every year)")
	cmd.Flags().IntVar(&limit, "limit", 0, "classify at most this many artists")
	cmd.Flags().BoolVar(&resume, "resume", false, "report progress from the last checkpoint before starting")
	cmd.Flags().BoolVar(&backup, "backup", false, "back up the database before the run")
	return cmd
}

func printBatchSummary(cmd *cobra.Command, sum *batch.Summary) {
	out := cmd.OutOrStdout()
	status := "completed"
	if sum.Interrupted {
		status = "interrupted"
	}
	fmt.Fprintf(out, "batch %s %s: %d/%d subjects in %s\n", sum.RunID, status, sum.Processed, sum.Total, sum.Elapsed.Round(time.Second))
	fmt.Fprintf(out, "  succeeded %d, failed %d, skipped %d (%.1f%% success, %.1f/min)\n",
		sum.Succeeded, sum.Failed, sum.Skipped, sum.SuccessRate(), sum.RatePerMinute())
	fmt.Fprintf(out, "  songs updated: %d\n", sum.Songs)
	if len(sum.Distribution) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, g := range sum.Genres() {
		fmt.Fprintf(tw, "  %s\t%d\n", g, sum.Distribution[g])
	}
	_ = tw.Flush()
}

func newCreditsCmd(opts *rootOptions) *cobra.Command {
	var year, limit int
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Fetch producer and writer credits for catalog songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sum, err := producer.CollectCredits(cmd.Context(), a.catalog, a.genius, year, limit, a.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d songs: %d with credits, %d not found, %d failed (%d producers, %d writers)\n",
					sum.Songs, sum.Found, sum.NotFound, sum.Failed, sum.Producers, sum.Writers)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "chart year (0 for every year)")
	cmd.Flags().IntVar(&limit, "limit", 0, "look up at most this many songs")
	return cmd
}

func newProducersCmd(opts *rootOptions) *cobra.Command {
	var year, limit int
	cmd := &cobra.Command{
		Use:   "producers",
		Short: "Add producer-signature subgenres to credited songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sum, err := producer.NewEnricher(a.catalog, a.logger).EnrichCatalog(cmd.Context(), year, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d songs: %d with known producers, %d enriched, %d subgenre links\n",
					sum.Songs, sum.Matched, sum.Enriched, sum.Links)
				printCounts(out, sum.BySubgenre)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "chart year (0 for every year)")
	cmd.Flags().IntVar(&limit, "limit", 0, "enrich at most this many songs")
	return cmd
}

func newSubgenresCmd(opts *rootOptions) *cobra.Command {
	var (
		year   int
		limit  int
		method string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "subgenres",
		Short: "Assign subgenres from audio features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := subgenre.ParseMethod(method)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				if watch || a.cfg.Subgenre.Watch {
					go func() {
						if err := a.subgenres.Watch(cmd.Context(), a.cfg.Subgenre.ModelsDir); err != nil {
							a.logger.Warn("model watcher stopped", slog.Any("error", err))
						}
					}()
				}
				sum, err := a.subgenres.ClassifyCatalog(cmd.Context(), a.catalog, a.spotify, year, limit, m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d songs: %d classified, %d features fetched, %d without features\n",
					sum.Songs, sum.Classified, sum.Fetched, sum.NoFeatures)
				byMethod := make(map[string]int, len(sum.ByMethod))
				for k, v := range sum.ByMethod {
					byMethod[string(k)] = v
				}
				printCounts(out, byMethod)
				printCounts(out, sum.BySubgenre)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "chart year (0 for every year)")
	cmd.Flags().IntVar(&limit, "limit", 0, "classify at most this many songs")
	cmd.Flags().StringVar(&method, "method", "auto", "auto, ml or rules")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload model bundles while running")
	return cmd
}

func newTrainCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "train <genre> <csv>",
		Short: "Fit a subgenre model for a primary genre from labeled features",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("opening samples: %w", err)
				}
				defer f.Close() //nolint:errcheck

				samples, err := subgenre.ReadSamples(f)
				if err != nil {
					return err
				}
				model, err := subgenre.Train(samples, args[0], subgenre.DefaultTrainOptions(args[0]))
				if err != nil {
					return err
				}
				dir := out
				if dir == "" {
					dir = a.cfg.Subgenre.ModelsDir
				}
				path, err := model.Save(dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "trained %s on %d samples (accuracy %.3f): %s\n",
					args[0], len(samples), model.TestAccuracy, filepath.Clean(path))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "model directory (default subgenre.models_dir)")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report catalog coverage and the genre distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				t, err := a.catalog.Totals(ctx)
				if err != nil {
					return err
				}
				dist, err := a.catalog.GenreDistribution(ctx, year)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "songs: %d\n", t.Songs)
				fmt.Fprintf(out, "  with genres: %d\n  with subgenres: %d\n  with credits: %d\n  with features: %d\n",
					t.SongsWithGenres, t.SongsWithSubgenres, t.SongsWithCredits, t.SongsWithFeatures)
				fmt.Fprintf(out, "genres: %d, subgenres: %d, credited people: %d\n", t.Genres, t.Subgenres, t.Credits)

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, g := range dist {
					fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", g.Genre, g.Songs, g.Percent)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "chart year (0 for every year)")
	return cmd
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database and prune old backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				snap, err := a.backups.BeforeRun(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", filepath.Join(a.backups.Dir(), snap.Filename), snap.Size)
				return nil
			})
		},
	}
}

func newMaintainCmd(opts *rootOptions) *cobra.Command {
	var vacuum, check bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Optimize the database and report its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				if check {
					problems, err := a.maint.IntegrityCheck(ctx)
					if err != nil {
						return err
					}
					if len(problems) > 0 {
						for _, p := range problems {
							fmt.Fprintln(cmd.ErrOrStderr(), p)
						}
						return fmt.Errorf("integrity check found %d problems", len(problems))
					}
				}
				if err := a.maint.Optimize(ctx); err != nil {
					return err
				}
				if vacuum {
					if err := a.maint.Vacuum(ctx); err != nil {
						return err
					}
				}
				st, err := a.maint.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database: %d bytes (%d pages of %d, %d free), wal: %d bytes\n",
					st.DBFileSize, st.PageCount, st.PageSize, st.FreePages, st.WALFileSize)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "rebuild the database file")
	cmd.Flags().BoolVar(&check, "check", false, "run an integrity check first")
	return cmd
}

func printCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range sortedByCount(counts) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, counts[k])
	}
	_ = tw.Flush()
}

// sortedByCount orders keys by descending count, then name.
func sortedByCount(counts map[string]int) []string {
	return slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
