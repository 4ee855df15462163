package subgenre

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/dnhngynops/muindb/internal/provider"
)

// ErrInsufficientData is returned by Train for too few samples or labels.
var ErrInsufficientData = errors.New("insufficient training data")

// Sample is one labeled training song.
type Sample struct {
	Features provider.Features
	Subgenre string
}

// TrainOptions controls model fitting.
type TrainOptions struct {
	Features     []string
	Degree       int
	Epochs       int
	LearningRate float64
	L2           float64
	TestSize     float64
	Seed         uint64
}

// DefaultTrainOptions returns the options used by the train command.
func DefaultTrainOptions(primary string) TrainOptions {
	return TrainOptions{
		Features:     FeaturesFor(primary),
		Degree:       3,
		Epochs:       400,
		LearningRate: 0.1,
		L2:           1e-3,
		TestSize:     0.2,
		Seed:         42,
	}
}

// Train fits a softmax model for primary on samples. The split into train
// and held-out sets is stratified by subgenre and seeded, so equal inputs
// give equal models apart from TrainedAt.
func Train(samples []Sample, primary string, opts TrainOptions) (*Model, error) {
	if len(samples) < MinSongsForML {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientData, len(samples), MinSongsForML)
	}
	if len(opts.Features) == 0 {
		opts.Features = FeaturesFor(primary)
	}
	opts.Degree = max(opts.Degree, 1)

	labels := labelSet(samples)
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: need at least two subgenres, got %d", ErrInsufficientData, len(labels))
	}

	m := &Model{
		PrimaryGenre: primary,
		Features:     slices.Clone(opts.Features),
		Degree:       opts.Degree,
		Subgenres:    labels,
		terms:        polynomialTerms(len(opts.Features), opts.Degree),
	}

	trainIdx, testIdx := stratifiedSplit(samples, opts.TestSize, opts.Seed)
	x := m.design(samples, trainIdx)
	m.fitScaler(x)
	standardize(x, m.Mean, m.Scale)

	y := oneHot(samples, trainIdx, labels)
	m.Weights, m.Bias = fitSoftmax(x, y, opts)

	eval := testIdx
	if len(eval) == 0 {
		eval = trainIdx
	}
	var correct int
	for _, i := range eval {
		if got, _ := m.Predict(samples[i].Features); got == samples[i].Subgenre {
			correct++
		}
	}
	m.TestAccuracy = float64(correct) / float64(len(eval))
	m.TrainedAt = time.Now().UTC()
	return m, nil
}

func labelSet(samples []Sample) []string {
	var labels []string
	for _, s := range samples {
		if s.Subgenre != "" && !slices.Contains(labels, s.Subgenre) {
			labels = append(labels, s.Subgenre)
		}
	}
	slices.Sort(labels)
	return labels
}

// stratifiedSplit holds out round(n*testSize) songs of every subgenre that
// has at least two, keeping at least one of each in training.
func stratifiedSplit(samples []Sample, testSize float64, seed uint64) (train, test []int) {
	byLabel := make(map[string][]int)
	for i, s := range samples {
		if s.Subgenre != "" {
			byLabel[s.Subgenre] = append(byLabel[s.Subgenre], i)
		}
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	for _, label := range labelSet(samples) {
		idx := byLabel[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		n := int(math.Round(float64(len(idx)) * testSize))
		n = min(n, len(idx)-1)
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	slices.Sort(train)
	slices.Sort(test)
	return train, test
}

// design builds the expanded, unscaled feature matrix for rows idx.
func (m *Model) design(samples []Sample, idx []int) *mat.Dense {
	x := mat.NewDense(len(idx), len(m.terms), nil)
	for r, i := range idx {
		copy(x.RawRowView(r), expand(m.raw(samples[i].Features), m.terms))
	}
	return x
}

func (m *Model) fitScaler(x *mat.Dense) {
	_, p := x.Dims()
	m.Mean = make([]float64, p)
	m.Scale = make([]float64, p)
	for j := range p {
		col := mat.Col(nil, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.Mean[j], m.Scale[j] = mean, std
	}
}

func standardize(x *mat.Dense, mean, scale []float64) {
	x.Apply(func(_, j int, v float64) float64 {
		return (v - mean[j]) / scale[j]
	}, x)
}

func oneHot(samples []Sample, idx []int, labels []string) *mat.Dense {
	y := mat.NewDense(len(idx), len(labels), nil)
	for r, i := range idx {
		y.Set(r, slices.Index(labels, samples[i].Subgenre), 1)
	}
	return y
}

// fitSoftmax runs batch gradient descent on the L2-regularized
// cross-entropy of a linear softmax classifier.
func fitSoftmax(x, y *mat.Dense, opts TrainOptions) ([][]float64, []float64) {
	n, p := x.Dims()
	_, k := y.Dims()
	w := mat.NewDense(k, p, nil)
	b := make([]float64, k)
	inv := 1 / float64(n)

	var logits, grad, gradW, reg mat.Dense
	for range max(opts.Epochs, 1) {
		logits.Mul(x, w.T())
		for r := range n {
			row := logits.RawRowView(r)
			floats.Add(row, b)
			copy(row, softmax(row))
		}
		grad.Sub(&logits, y)

		gradW.Mul(grad.T(), x)
		gradW.Scale(inv, &gradW)
		reg.Scale(opts.L2, w)
		gradW.Add(&gradW, &reg)
		gradW.Scale(opts.LearningRate, &gradW)
		w.Sub(w, &gradW)

		for c := range k {
			var sum float64
			for r := range n {
				sum += grad.At(r, c)
			}
			b[c] -= opts.LearningRate * sum * inv
		}
	}

	weights := make([][]float64, k)
	for c := range k {
		weights[c] = mat.Row(nil, c, w)
	}
	return weights, b
}
