package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dnhngynops/muindb/internal/backup"
	"github.com/dnhngynops/muindb/internal/batch"
	"github.com/dnhngynops/muindb/internal/cache"
	"github.com/dnhngynops/muindb/internal/catalog"
	"github.com/dnhngynops/muindb/internal/config"
	"github.com/dnhngynops/muindb/internal/database"
	"github.com/dnhngynops/muindb/internal/encryption"
	"github.com/dnhngynops/muindb/internal/event"
	"github.com/dnhngynops/muindb/internal/genre"
	"github.com/dnhngynops/muindb/internal/logging"
	"github.com/dnhngynops/muindb/internal/maintenance"
	"github.com/dnhngynops/muindb/internal/provider"
	"github.com/dnhngynops/muindb/internal/provider/chartmetric"
	"github.com/dnhngynops/muindb/internal/provider/genius"
	"github.com/dnhngynops/muindb/internal/provider/lastfm"
	"github.com/dnhngynops/muindb/internal/provider/spotify"
	"github.com/dnhngynops/muindb/internal/subgenre"
)

// app is the wired process: configuration, storage, sources and the
// services every command draws on.
type app struct {
	cfg     *config.Config
	logs    *logging.Manager
	logger  *slog.Logger
	db      *sql.DB
	catalog *catalog.Service

	settings *provider.SettingsService
	limiters *provider.RateLimiterMap
	cache    cache.Store
	registry *provider.Registry
	spotify  *spotify.Adapter
	genius   *genius.Adapter

	engine    *genre.Engine
	subgenres *subgenre.Classifier
	backups   *backup.Service
	maint     *maintenance.Service
}

// errNoEncryptionKey is returned by the keys commands when neither a key
// nor a key file is configured.
var errNoEncryptionKey = errors.New("no encryption key configured: set encryption.key or encryption.key_file")

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logs: logManager, logger: logger}

	if err := a.openDatabase(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireSources(); err != nil {
		a.Close()
		return nil, err
	}

	a.engine = genre.NewEngine(a.registry, a.catalog, nil, genre.Options{
		HighConfidence: cfg.Classifier.HighConfidence,
		CrossoverRatio: cfg.Classifier.CrossoverRatio,
		ShortCircuit:   cfg.Classifier.ShortCircuit,
	}, logger)

	a.subgenres = subgenre.New(cfg.Subgenre.RulesThreshold, logger)
	n, err := a.subgenres.LoadDir(cfg.Subgenre.ModelsDir)
	if err != nil {
		logger.Warn("loading subgenre models", slog.String("dir", cfg.Subgenre.ModelsDir), slog.Any("error", err))
	} else {
		logger.Debug("subgenre models loaded", slog.Int("count", n))
	}

	backupDir := cfg.Batch.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	a.backups = backup.NewService(a.db, backupDir, cfg.Batch.BackupRetention, logger)
	a.maint = maintenance.NewService(a.db, cfg.Database.Path, logger)
	return a, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	db, err := database.Open(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	a.logger.Debug("database ready",
		slog.String("path", a.cfg.Database.Path),
		slog.Int("migrations_applied", applied))
	a.catalog = catalog.NewService(db)

	encryptor, err := a.encryptor()
	if err != nil {
		return err
	}
	if encryptor != nil {
		a.settings = provider.NewSettingsService(db, encryptor)
	}
	return nil
}

// encryptor resolves the credential key: configured key, then key file
// (created on first use). Neither configured leaves stored credentials off.
func (a *app) encryptor() (*encryption.Encryptor, error) {
	key := a.cfg.Encryption.Key
	if key == "" && a.cfg.Encryption.KeyFile != "" {
		k, err := encryption.LoadOrCreateKey(a.cfg.Encryption.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("resolving encryption key: %w", err)
		}
		key = k
	}
	if key == "" {
		return nil, nil
	}
	enc, _, err := encryption.NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return enc, nil
}

func (a *app) wireSources() error {
	src := a.cfg.Sources
	a.limiters = provider.NewRateLimiterMap(map[provider.Name]float64{
		provider.NameSpotify:     src.Spotify.RateLimit,
		provider.NameLastFM:      src.LastFM.RateLimit,
		provider.NameChartmetric: src.Chartmetric.RateLimit,
		provider.NameGenius:      src.Genius.RateLimit,
	})

	store, err := cache.Open(a.cfg.Cache.Backend, a.cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening response cache: %w", err)
	}
	a.cache = store

	breaker := provider.BreakerSettings{
		MaxRequests:      a.cfg.Breaker.MaxRequests,
		Interval:         a.cfg.Breaker.Interval,
		Timeout:          a.cfg.Breaker.Timeout,
		FailureThreshold: a.cfg.Breaker.FailureThreshold,
	}
	remote := func(s provider.TagSource) provider.TagSource {
		return provider.WithCache(provider.WithBreaker(s, breaker, a.logger), a.cache)
	}

	a.registry = provider.NewRegistry()
	if src.Spotify.BaseURL != "" {
		a.spotify = spotify.NewWithBaseURL(a.limiters, a.settings, src.Spotify.ClientID, src.Spotify.ClientSecret, a.logger, src.Spotify.BaseURL)
	} else {
		a.spotify = spotify.New(a.limiters, a.settings, src.Spotify.ClientID, src.Spotify.ClientSecret, a.logger)
	}
	if src.Spotify.Enabled {
		a.registry.Register(remote(a.spotify))
	}
	if src.Chartmetric.Enabled {
		var cm *chartmetric.Adapter
		if src.Chartmetric.BaseURL != "" {
			cm = chartmetric.NewWithBaseURL(a.limiters, a.settings, src.Chartmetric.RefreshToken, a.logger, src.Chartmetric.BaseURL)
		} else {
			cm = chartmetric.New(a.limiters, a.settings, src.Chartmetric.RefreshToken, a.logger)
		}
		a.registry.Register(remote(cm))
	}
	if src.LastFM.Enabled {
		var lf *lastfm.Adapter
		if src.LastFM.BaseURL != "" {
			lf = lastfm.NewWithBaseURL(a.limiters, a.settings, src.LastFM.APIKey, a.logger, src.LastFM.BaseURL)
		} else {
			lf = lastfm.New(a.limiters, a.settings, src.LastFM.APIKey, a.logger)
		}
		a.registry.Register(remote(lf))
	}
	if src.Catalog.Enabled {
		a.registry.Register(catalog.NewTagSource(a.catalog))
	}

	if src.Genius.BaseURL != "" {
		a.genius = genius.NewWithBaseURL(a.limiters, a.settings, src.Genius.AccessToken, a.logger, src.Genius.BaseURL)
	} else {
		a.genius = genius.New(a.limiters, a.settings, src.Genius.AccessToken, a.logger)
	}
	return nil
}

// driver builds a batch driver publishing to bus.
func (a *app) driver(bus *event.Bus) *batch.Driver {
	return batch.NewDriver(a.engine, a.catalog, a.cache, bus, a.backups, a.logger)
}

// Close flushes the response cache and releases the database and log file.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("closing response cache", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", slog.Any("error", err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
