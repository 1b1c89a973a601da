package predictor

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
)

const (
	DefaultTestRatio       = 0.2
	DefaultSeed      int64 = 42
)

// EvaluationMetrics are computed once on the held-out split at fit time.
// InSample is set when the set was too small to hold rows out and the
// metrics were computed on the training rows instead.
type EvaluationMetrics struct {
	MSE       float64 `json:"mse"`
	R2        float64 `json:"r2"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	InSample  bool    `json:"in_sample"`
}

// LinearModel is Potency = Slope * EC50_nM + Intercept.
type LinearModel struct {
	Slope     float64           `json:"slope"`
	Intercept float64           `json:"intercept"`
	Metrics   EvaluationMetrics `json:"metrics"`
}

func (m *LinearModel) Kind() Kind { return KindLinear }

// Predict is not clamped; a line over a saturating dose-response can go
// negative outside the observed range.
func (m *LinearModel) Predict(ec50 float64) float64 {
	return m.Slope*ec50 + m.Intercept
}

func (m *LinearModel) Formula() string {
	return fmt.Sprintf("Potency = %.6g * EC50_nM + %.6g", m.Slope, m.Intercept)
}

type LinearStrategy struct {
	TestRatio float64
	Seed      int64
}

func DefaultLinearStrategy() LinearStrategy {
	return LinearStrategy{TestRatio: DefaultTestRatio, Seed: DefaultSeed}
}

func (s LinearStrategy) Kind() Kind { return KindLinear }

func (s LinearStrategy) Validate() error {
	if !(s.TestRatio > 0 && s.TestRatio < 1) {
		return fmt.Errorf("test ratio %v must be in (0, 1)", s.TestRatio)
	}
	return nil
}

func (s LinearStrategy) Fit(set *dataset.SampleSet) (Model, error) {
	return s.FitLinear(set)
}

func (s LinearStrategy) FitLinear(set *dataset.SampleSet) (*LinearModel, error) {
	if set.Len() < MinSamples {
		return nil, ErrInsufficientData
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	xs, ys := set.XY()
	train, test := splitIndices(len(xs), s.TestRatio, s.Seed)
	inSample := false
	if len(train) < MinSamples {
		train = allIndices(len(xs))
		test = train
		inSample = true
	}

	trainX, trainY := gather(xs, train), gather(ys, train)
	slope, intercept := leastSquares(trainX, trainY)

	m := &LinearModel{Slope: slope, Intercept: intercept}
	testX, testY := gather(xs, test), gather(ys, test)
	m.Metrics = evaluate(m, testX, testY)
	m.Metrics.TrainSize = len(train)
	m.Metrics.TestSize = len(test)
	m.Metrics.InSample = inSample
	return m, nil
}

// splitIndices shuffles 0..n-1 with a seeded source and holds out
// ceil(ratio*n) indices for testing. Same seed and n give the same split.
func splitIndices(n int, ratio float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(ratio * float64(n)))
	if nTest > n {
		nTest = n
	}
	return perm[nTest:], perm[:nTest]
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func gather(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// leastSquares fits y = slope*x + intercept. With no spread in x the slope
// is zero and the intercept is the mean of y.
func leastSquares(x, y []float64) (slope, intercept float64) {
	if floats.Min(x) == floats.Max(x) {
		return 0, stat.Mean(y, nil)
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return beta, alpha
}

func evaluate(m *LinearModel, x, y []float64) EvaluationMetrics {
	pred := make([]float64, len(x))
	var sq float64
	for i := range x {
		pred[i] = m.Predict(x[i])
		d := y[i] - pred[i]
		sq += d * d
	}
	out := EvaluationMetrics{MSE: sq / float64(len(x))}
	switch {
	case floats.Min(y) != floats.Max(y):
		out.R2 = stat.RSquaredFrom(pred, y, nil)
	case sq == 0:
		// Constant targets predicted exactly.
		out.R2 = 1
	}
	return out
}
