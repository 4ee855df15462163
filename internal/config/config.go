package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnhngynops/muindb/internal/logging"
	"github.com/dnhngynops/muindb/internal/webhook"
)

// EnvConfigPath names the variable consulted when no --config flag is given.
const EnvConfigPath = "MUINDB_CONFIG_PATH"

// MaxConcurrency caps batch.concurrency regardless of configuration.
const MaxConcurrency = 5

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Logging    logging.Config    `yaml:"logging"`
	Encryption EncryptionConfig  `yaml:"encryption"`
	Sources    SourcesConfig     `yaml:"sources"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Subgenre   SubgenreConfig    `yaml:"subgenre"`
	Cache      CacheConfig       `yaml:"cache"`
	Batch      BatchConfig       `yaml:"batch"`
	Breaker    BreakerConfig     `yaml:"breaker"`
	Webhooks   []webhook.Webhook `yaml:"webhooks"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EncryptionConfig selects the key that seals stored credentials. Key wins
// over KeyFile; an empty KeyFile path disables the settings-table fallback.
type EncryptionConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"`
}

// SourceConfig is shared by every remote source. Only the credential fields
// a source understands are read.
type SourceConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BaseURL      string  `yaml:"base_url"`
	RateLimit    float64 `yaml:"rate_limit"`
	APIKey       string  `yaml:"api_key"`
	ClientID     string  `yaml:"client_id"`
	ClientSecret string  `yaml:"client_secret"`
	RefreshToken string  `yaml:"refresh_token"`
	AccessToken  string  `yaml:"access_token"`
}

// SourcesConfig holds one block per remote source.
type SourcesConfig struct {
	Spotify     SourceConfig `yaml:"spotify"`
	LastFM      SourceConfig `yaml:"lastfm"`
	Chartmetric SourceConfig `yaml:"chartmetric"`
	Genius      SourceConfig `yaml:"genius"`
	Catalog     SourceConfig `yaml:"catalog"`
}

// ClassifierConfig tunes the multi-source vote.
type ClassifierConfig struct {
	HighConfidence float64 `yaml:"high_confidence"`
	CrossoverRatio float64 `yaml:"crossover_ratio"`
	ShortCircuit   bool    `yaml:"short_circuit"`
}

// SubgenreConfig locates model bundles and sets the rules acceptance bar.
type SubgenreConfig struct {
	ModelsDir      string  `yaml:"models_dir"`
	RulesThreshold float64 `yaml:"rules_threshold"`
	Watch          bool    `yaml:"watch"`
}

// CacheConfig selects the raw response cache.
type CacheConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	FlushEvery int    `yaml:"flush_every"`
}

// BatchConfig controls the batch driver.
type BatchConfig struct {
	Concurrency     int    `yaml:"concurrency"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	CheckpointPath  string `yaml:"checkpoint_path"`
	MetricsFile     string `yaml:"metrics_file"`
	BackupDir       string `yaml:"backup_dir"`
	BackupBeforeRun bool   `yaml:"backup_before_run"`
	BackupRetention int    `yaml:"backup_retention"`
}

// BreakerConfig configures the circuit breaker in front of remote sources.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "muindb.db"},
		Logging:  logging.DefaultConfig(),
		Encryption: EncryptionConfig{
			KeyFile: "muindb.key",
		},
		Sources: SourcesConfig{
			Spotify:     SourceConfig{Enabled: true, RateLimit: 5},
			LastFM:      SourceConfig{Enabled: true, RateLimit: 5},
			Chartmetric: SourceConfig{Enabled: true, RateLimit: 1},
			Genius:      SourceConfig{Enabled: true, RateLimit: 5},
			Catalog:     SourceConfig{Enabled: true},
		},
		Classifier: ClassifierConfig{
			HighConfidence: 0.8,
			CrossoverRatio: 0.6,
			ShortCircuit:   true,
		},
		Subgenre: SubgenreConfig{
			ModelsDir:      "models",
			RulesThreshold: 0.6,
		},
		Cache: CacheConfig{
			Backend:    "json",
			Path:       "genre_cache.json",
			FlushEvery: 10,
		},
		Batch: BatchConfig{
			Concurrency:     3,
			CheckpointEvery: 10,
			CheckpointPath:  "classification_checkpoint.json",
			BackupDir:       "backups",
			BackupRetention: 5,
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Path returns flag when set, otherwise the MUINDB_CONFIG_PATH value.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	str := map[string]*string{
		"MUINDB_DB_PATH":                   &c.Database.Path,
		"MUINDB_LOG_LEVEL":                 &c.Logging.Level,
		"MUINDB_LOG_FORMAT":                &c.Logging.Format,
		"MUINDB_LOG_FILE":                  &c.Logging.File,
		"MUINDB_ENCRYPTION_KEY":            &c.Encryption.Key,
		"MUINDB_ENCRYPTION_KEY_FILE":       &c.Encryption.KeyFile,
		"MUINDB_SPOTIFY_CLIENT_ID":         &c.Sources.Spotify.ClientID,
		"MUINDB_SPOTIFY_CLIENT_SECRET":     &c.Sources.Spotify.ClientSecret,
		"MUINDB_LASTFM_API_KEY":            &c.Sources.LastFM.APIKey,
		"MUINDB_CHARTMETRIC_REFRESH_TOKEN": &c.Sources.Chartmetric.RefreshToken,
		"MUINDB_GENIUS_ACCESS_TOKEN":       &c.Sources.Genius.AccessToken,
		"MUINDB_MODELS_DIR":                &c.Subgenre.ModelsDir,
		"MUINDB_CACHE_BACKEND":             &c.Cache.Backend,
		"MUINDB_CACHE_PATH":                &c.Cache.Path,
		"MUINDB_CHECKPOINT_PATH":           &c.Batch.CheckpointPath,
		"MUINDB_METRICS_FILE":              &c.Batch.MetricsFile,
		"MUINDB_BACKUP_DIR":                &c.Batch.BackupDir,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	var errs []error
	if v := os.Getenv("MUINDB_BATCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MUINDB_BATCH_CONCURRENCY: %w", err))
		} else {
			c.Batch.Concurrency = n
		}
	}
	floats := map[string]*float64{
		"MUINDB_HIGH_CONFIDENCE": &c.Classifier.HighConfidence,
		"MUINDB_CROSSOVER_RATIO": &c.Classifier.CrossoverRatio,
		"MUINDB_RULES_THRESHOLD": &c.Subgenre.RulesThreshold,
	}
	for name, dst := range floats {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = f
	}
	if v := os.Getenv("MUINDB_SHORT_CIRCUIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MUINDB_SHORT_CIRCUIT: %w", err))
		} else {
			c.Classifier.ShortCircuit = b
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if !unit(c.Classifier.HighConfidence) {
		return fmt.Errorf("classifier.high_confidence must be in [0,1], got %g", c.Classifier.HighConfidence)
	}
	if !unit(c.Classifier.CrossoverRatio) {
		return fmt.Errorf("classifier.crossover_ratio must be in [0,1], got %g", c.Classifier.CrossoverRatio)
	}
	if !unit(c.Subgenre.RulesThreshold) {
		return fmt.Errorf("subgenre.rules_threshold must be in [0,1], got %g", c.Subgenre.RulesThreshold)
	}

	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	switch c.Cache.Backend {
	case "json", "badger", "memory":
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.FlushEvery < 1 {
		c.Cache.FlushEvery = 1
	}

	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	c.Batch.Concurrency = min(c.Batch.Concurrency, MaxConcurrency)
	if c.Batch.CheckpointEvery < 1 {
		c.Batch.CheckpointEvery = 10
	}
	if c.Batch.CheckpointPath == "" {
		return fmt.Errorf("batch.checkpoint_path is required")
	}
	if c.Batch.BackupRetention < 0 {
		return fmt.Errorf("batch.backup_retention must not be negative")
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	for i := range c.Webhooks {
		if err := c.Webhooks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func unit(f float64) bool { return f >= 0 && f <= 1 }
