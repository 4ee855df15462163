package subgenre

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/dnhngynops/muindb/internal/filesystem"
	"github.com/dnhngynops/muindb/internal/provider"
)

// ModelSuffix ends every model bundle file name.
const ModelSuffix = "_subgenre_model.json"

// ErrModelUnavailable is returned when no model is loaded for a genre.
var ErrModelUnavailable = errors.New("no subgenre model for genre")

// Model is a trained subgenre classifier for one primary genre: polynomial
// feature expansion, standardization and a softmax layer.
type Model struct {
	PrimaryGenre string      `json:"primary_genre"`
	Features     []string    `json:"feature_cols"`
	Degree       int         `json:"polynomial_degree"`
	Mean         []float64   `json:"scaler_mean"`
	Scale        []float64   `json:"scaler_scale"`
	Weights      [][]float64 `json:"weights"`
	Bias         []float64   `json:"bias"`
	Subgenres    []string    `json:"subgenres"`
	TestAccuracy float64     `json:"test_accuracy"`
	TrainedAt    time.Time   `json:"trained_date"`

	terms [][]int
}

// ModelPath is where the bundle for primary lives inside dir.
func ModelPath(dir, primary string) string {
	return filepath.Join(dir, primary+ModelSuffix)
}

// LoadModel reads and checks one bundle.
func LoadModel(path string) (*Model, error) {
	var m Model
	if err := filesystem.ReadJSON(path, &m); err != nil {
		return nil, err
	}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("model %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// Save writes the bundle atomically into dir and returns its path.
func (m *Model) Save(dir string) (string, error) {
	path := ModelPath(dir, m.PrimaryGenre)
	if err := filesystem.WriteJSONAtomic(path, m, 0o644); err != nil {
		return "", fmt.Errorf("saving %s model: %w", m.PrimaryGenre, err)
	}
	return path, nil
}

// init validates dimensions and precomputes the polynomial terms.
func (m *Model) init() error {
	if m.PrimaryGenre == "" {
		return errors.New("missing primary genre")
	}
	if len(m.Features) == 0 || m.Degree < 1 {
		return errors.New("missing features or degree")
	}
	m.terms = polynomialTerms(len(m.Features), m.Degree)
	p := len(m.terms)
	if len(m.Mean) != p || len(m.Scale) != p {
		return fmt.Errorf("scaler has %d/%d columns, want %d", len(m.Mean), len(m.Scale), p)
	}
	for i, sc := range m.Scale {
		if sc == 0 {
			m.Scale[i] = 1
		}
	}
	k := len(m.Subgenres)
	if k < 2 || len(m.Weights) != k || len(m.Bias) != k {
		return fmt.Errorf("classifier shape does not match %d subgenres", k)
	}
	for i, row := range m.Weights {
		if len(row) != p {
			return fmt.Errorf("weight row %d has %d columns, want %d", i, len(row), p)
		}
	}
	return nil
}

// Predict returns the most probable subgenre and its probability. Missing
// features read as zero.
func (m *Model) Predict(f provider.Features) (string, float64) {
	z := m.transform(m.raw(f))

	k := len(m.Subgenres)
	w := mat.NewDense(k, len(z), flatten(m.Weights))
	var logits mat.VecDense
	logits.MulVec(w, mat.NewVecDense(len(z), z))
	logits.AddVec(&logits, mat.NewVecDense(k, append([]float64(nil), m.Bias...)))

	probs := softmax(logits.RawVector().Data)
	best := floats.MaxIdx(probs)
	return m.Subgenres[best], probs[best]
}

// raw extracts the model's feature columns from f.
func (m *Model) raw(f provider.Features) []float64 {
	x := make([]float64, len(m.Features))
	for i, name := range m.Features {
		x[i], _ = featureValue(f, name)
	}
	return x
}

// transform expands x and applies the fitted scaler.
func (m *Model) transform(x []float64) []float64 {
	terms := m.terms
	if terms == nil {
		terms = polynomialTerms(len(m.Features), m.Degree)
	}
	z := expand(x, terms)
	for i := range z {
		z[i] = (z[i] - m.Mean[i]) / m.Scale[i]
	}
	return z
}

// polynomialTerms lists every monomial of total degree 1..degree over n
// inputs as sorted index tuples, lowest degree first and lexicographic
// within a degree.
func polynomialTerms(n, degree int) [][]int {
	var terms [][]int
	var build func(start int, cur []int, left int)
	build = func(start int, cur []int, left int) {
		if left == 0 {
			terms = append(terms, append([]int(nil), cur...))
			return
		}
		for i := start; i < n; i++ {
			build(i, append(cur, i), left-1)
		}
	}
	for d := 1; d <= degree; d++ {
		build(0, nil, d)
	}
	return terms
}

func expand(x []float64, terms [][]int) []float64 {
	out := make([]float64, len(terms))
	for i, t := range terms {
		v := 1.0
		for _, j := range t {
			v *= x[j]
		}
		out[i] = v
	}
	return out
}

func softmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - lse)
	}
	return out
}

func flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// genreFromFile returns the primary genre encoded in a bundle file name.
func genreFromFile(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ModelSuffix) {
		return "", false
	}
	g := strings.TrimSuffix(base, ModelSuffix)
	return g, g != ""
}
