// Package predictor fits potency curves over EC50 samples and evaluates them.
//
// Two strategies share one contract: a LinearStrategy fitting an ordinary
// least-squares line on a seeded train split, and an InterpolationStrategy
// building a piecewise-linear curve through the sorted sample points. Both
// return an immutable Model that predicts potency for an EC50 value in nM.
package predictor

import (
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
)

// Kind tags the strategy that produced a model.
type Kind string

const (
	KindLinear        Kind = "linear"
	KindInterpolation Kind = "interpolation"
)

// ErrInsufficientData is returned when fewer than two usable samples remain.
var ErrInsufficientData = errors.New("insufficient data: at least 2 samples required")

var ErrUnknownStrategy = errors.New("unknown strategy")

// MinSamples is the smallest sample count either strategy accepts.
const MinSamples = 2

type Model interface {
	Kind() Kind
	Predict(ec50 float64) float64
}

type Strategy interface {
	Kind() Kind
	Fit(set *dataset.SampleSet) (Model, error)
}

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLinear, KindInterpolation:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStrategy, s)
}

// NewStrategy returns the strategy for kind. testRatio and seed only apply to
// the linear strategy.
func NewStrategy(kind Kind, testRatio float64, seed int64) (Strategy, error) {
	switch kind {
	case KindLinear:
		s := LinearStrategy{TestRatio: testRatio, Seed: seed}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	case KindInterpolation:
		return InterpolationStrategy{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, kind)
}

// FormatPrediction renders a potency the way it is shown to users.
func FormatPrediction(potency float64) string {
	return fmt.Sprintf("The predicted potency relative to DAMGO is: %.2fx", potency)
}
