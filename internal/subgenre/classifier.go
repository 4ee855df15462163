package subgenre

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dnhngynops/muindb/internal/provider"
)

// Method selects how Classify may reach a result, and records which one did.
type Method string

const (
	MethodAuto  Method = "auto"
	MethodML    Method = "ml"
	MethodRules Method = "rules"
	MethodNone  Method = "none"
)

// ParseMethod accepts auto, ml or rules. An empty string means auto.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MethodAuto:
		return MethodAuto, nil
	case MethodML, MethodRules:
		return m, nil
	}
	return "", fmt.Errorf("unknown subgenre method %q (want auto, ml or rules)", s)
}

// Result is the outcome for one song. Method none with an empty Subgenre
// is a valid answer, not a failure.
type Result struct {
	PrimaryGenre string  `json:"primary_genre"`
	Subgenre     string  `json:"subgenre,omitempty"`
	Confidence   float64 `json:"confidence"`
	Method       Method  `json:"method"`
}

// Classifier holds the loaded models. It is safe for concurrent use.
type Classifier struct {
	threshold float64
	logger    *slog.Logger

	mu     sync.RWMutex
	models map[string]*Model
}

// New creates a Classifier with no models. rulesThreshold is the minimum
// rule score accepted.
func New(rulesThreshold float64, logger *slog.Logger) *Classifier {
	return &Classifier{
		threshold: rulesThreshold,
		logger:    logger.With(slog.String("component", "subgenre")),
		models:    make(map[string]*Model),
	}
}

// LoadDir loads every bundle in dir and returns how many loaded. A missing
// directory loads nothing; unreadable bundles are logged and skipped.
func (c *Classifier) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("models directory not found, rules only", slog.String("dir", dir))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading models directory: %w", err)
	}

	var loaded int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := genreFromFile(e.Name()); !ok {
			continue
		}
		if err := c.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			c.logger.Error("loading model", slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}
		loaded++
	}
	c.logger.Info("subgenre models loaded", slog.Int("count", loaded), slog.Any("genres", c.Available()))
	return loaded, nil
}

// LoadFile loads one bundle, replacing any model for the same genre.
func (c *Classifier) LoadFile(path string) error {
	m, err := LoadModel(path)
	if err != nil {
		return err
	}
	c.put(m)
	return nil
}

// Add registers a model built in process, such as one just trained.
func (c *Classifier) Add(m *Model) error {
	if err := m.init(); err != nil {
		return err
	}
	c.put(m)
	return nil
}

func (c *Classifier) put(m *Model) {
	c.mu.Lock()
	c.models[strings.ToLower(m.PrimaryGenre)] = m
	c.mu.Unlock()
}

// Remove forgets the model for primary.
func (c *Classifier) Remove(primary string) {
	c.mu.Lock()
	delete(c.models, strings.ToLower(primary))
	c.mu.Unlock()
}

// Model returns the loaded model for primary or ErrModelUnavailable.
func (c *Classifier) Model(primary string) (*Model, error) {
	c.mu.RLock()
	m, ok := c.models[strings.ToLower(primary)]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, primary)
	}
	return m, nil
}

// Available lists the genres with a loaded model, sorted.
func (c *Classifier) Available() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.models))
	for g := range c.models {
		out = append(out, g)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Classify picks a subgenre for a song of the given primary genre. With
// auto or ml, a loaded model answers and its prediction stands whatever
// its probability. With auto or rules and no model answer, the rule table
// is scored. Otherwise the result has method none.
func (c *Classifier) Classify(primary string, f provider.Features, method Method) Result {
	primary = strings.ToLower(strings.TrimSpace(primary))
	if method == "" {
		method = MethodAuto
	}
	res := Result{PrimaryGenre: primary, Method: MethodNone}

	if method == MethodAuto || method == MethodML {
		if m, err := c.Model(primary); err == nil {
			label, prob := m.Predict(f)
			c.logger.Debug("model prediction",
				slog.String("genre", primary), slog.String("subgenre", label), slog.Float64("confidence", prob))
			res.Subgenre, res.Confidence, res.Method = label, prob, MethodML
			return res
		}
	}

	if method == MethodAuto || method == MethodRules {
		if sub, score, ok := matchRules(primary, f, c.threshold); ok {
			res.Subgenre, res.Confidence, res.Method = sub, score, MethodRules
			return res
		}
	}
	return res
}
