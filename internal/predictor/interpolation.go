package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
)

type InterpolationStrategy struct{}

func (InterpolationStrategy) Kind() Kind { return KindInterpolation }

func (s InterpolationStrategy) Fit(set *dataset.SampleSet) (Model, error) {
	return s.FitInterpolation(set)
}

// FitInterpolation sorts the samples by EC50 and rejects repeated EC50
// values instead of picking one of them.
func (InterpolationStrategy) FitInterpolation(set *dataset.SampleSet) (*InterpolationModel, error) {
	if set.Len() < MinSamples {
		return nil, ErrInsufficientData
	}

	sorted := make([]dataset.Sample, len(set.Samples))
	copy(sorted, set.Samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EC50nM < sorted[j].EC50nM })

	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	var dups []float64
	for i, smp := range sorted {
		xs[i], ys[i] = smp.EC50nM, smp.Potency
		if i > 0 && xs[i] == xs[i-1] && (len(dups) == 0 || dups[len(dups)-1] != xs[i]) {
			dups = append(dups, xs[i])
		}
	}
	if len(dups) > 0 {
		return nil, &dataset.ValidationError{Kind: dataset.DuplicateX, Values: dups}
	}
	return NewInterpolationModel(xs, ys)
}

// InterpolationModel is a piecewise-linear curve through (Xs[i], Ys[i]).
// Outside [Xs[0], Xs[n-1]] the first or last segment is extended, and
// predictions are floored at zero.
type InterpolationModel struct {
	Xs []float64 `json:"xs"`
	Ys []float64 `json:"ys"`

	pl interp.PiecewiseLinear
}

// NewInterpolationModel builds a model from strictly increasing xs.
func NewInterpolationModel(xs, ys []float64) (*InterpolationModel, error) {
	if len(xs) < MinSamples || len(xs) != len(ys) {
		return nil, ErrInsufficientData
	}
	m := &InterpolationModel{
		Xs: append([]float64(nil), xs...),
		Ys: append([]float64(nil), ys...),
	}
	if bad := nonIncreasing(m.Xs); len(bad) > 0 {
		return nil, fmt.Errorf("interpolation xs must be strictly increasing, offending values %v", bad)
	}
	if err := m.pl.Fit(m.Xs, m.Ys); err != nil {
		return nil, fmt.Errorf("fit piecewise linear: %w", err)
	}
	return m, nil
}

func (m *InterpolationModel) Kind() Kind { return KindInterpolation }

func (m *InterpolationModel) Predict(ec50 float64) float64 {
	return math.Max(0, m.eval(ec50))
}

func (m *InterpolationModel) eval(x float64) float64 {
	n := len(m.Xs)
	switch {
	case x < m.Xs[0]:
		return extend(m.Xs[0], m.Ys[0], m.Xs[1], m.Ys[1], x)
	case x > m.Xs[n-1]:
		return extend(m.Xs[n-2], m.Ys[n-2], m.Xs[n-1], m.Ys[n-1], x)
	}
	return m.pl.Predict(x)
}

func extend(x0, y0, x1, y1, x float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

func (m *InterpolationModel) UnmarshalJSON(data []byte) error {
	var raw struct {
		Xs []float64 `json:"xs"`
		Ys []float64 `json:"ys"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := NewInterpolationModel(raw.Xs, raw.Ys)
	if err != nil {
		return err
	}
	*m = *built
	return nil
}

func nonIncreasing(xs []float64) []float64 {
	var out []float64
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			out = append(out, xs[i])
		}
	}
	return out
}
