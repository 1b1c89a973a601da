package predictor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
)

func samples(rows ...[2]float64) *dataset.SampleSet {
	set := &dataset.SampleSet{}
	for i, r := range rows {
		set.Samples = append(set.Samples, dataset.Sample{
			Substance: string(rune('A' + i%26)),
			EC50nM:    r[0],
			Potency:   r[1],
		})
	}
	return set
}

func lineSet(n int, slope, intercept float64) *dataset.SampleSet {
	rows := make([][2]float64, n)
	for i := range rows {
		x := float64(i+1) * 3.5
		rows[i] = [2]float64{x, slope*x + intercept}
	}
	return samples(rows...)
}

func TestLinearRecoversExactLine(t *testing.T) {
	m, err := DefaultLinearStrategy().FitLinear(lineSet(10, 0.25, 1.5))
	require.NoError(t, err)

	assert.InDelta(t, 0.25, m.Slope, 1e-9)
	assert.InDelta(t, 1.5, m.Intercept, 1e-9)
	assert.InDelta(t, 0, m.Metrics.MSE, 1e-12)
	assert.InDelta(t, 1, m.Metrics.R2, 1e-9)
	assert.Equal(t, 8, m.Metrics.TrainSize)
	assert.Equal(t, 2, m.Metrics.TestSize)
	assert.False(t, m.Metrics.InSample)
	assert.InDelta(t, 0.25*40+1.5, m.Predict(40), 1e-9)
}

func TestEvaluateConstantTargets(t *testing.T) {
	x := []float64{10, 20}
	y := []float64{2, 2}

	exact := evaluate(&LinearModel{Slope: 0, Intercept: 2}, x, y)
	assert.InDelta(t, 0, exact.MSE, 1e-12)
	assert.InDelta(t, 1, exact.R2, 1e-12)

	off := evaluate(&LinearModel{Slope: 0, Intercept: 1}, x, y)
	assert.InDelta(t, 1, off.MSE, 1e-12)
	assert.InDelta(t, 0, off.R2, 1e-12)
}

func TestLinearDeterministicWithSeed(t *testing.T) {
	set := samples(
		[2]float64{1.7, 15.2}, [2]float64{2500, 0.01}, [2]float64{0.3, 42},
		[2]float64{12, 3.1}, [2]float64{45, 1.2}, [2]float64{7.5, 5.9},
		[2]float64{110, 0.4}, [2]float64{3.3, 9.8}, [2]float64{60, 0.9},
	)
	s := LinearStrategy{TestRatio: 0.2, Seed: 42}

	first, err := s.FitLinear(set)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.FitLinear(set)
		require.NoError(t, err)
		assert.Equal(t, first.Slope, again.Slope)
		assert.Equal(t, first.Intercept, again.Intercept)
		assert.Equal(t, first.Metrics, again.Metrics)
	}
	assert.GreaterOrEqual(t, first.Metrics.MSE, 0.0)
	assert.LessOrEqual(t, first.Metrics.R2, 1.0)
}

func TestSplitIndicesPartition(t *testing.T) {
	train, test := splitIndices(11, 0.2, 42)
	assert.Len(t, test, 3)
	assert.Len(t, train, 8)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 11)

	train2, test2 := splitIndices(11, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestLinearSmallSetFallsBackToInSample(t *testing.T) {
	m, err := DefaultLinearStrategy().FitLinear(samples([2]float64{10, 1}, [2]float64{20, 2}))
	require.NoError(t, err)
	assert.True(t, m.Metrics.InSample)
	assert.Equal(t, 2, m.Metrics.TrainSize)
	assert.InDelta(t, 0.1, m.Slope, 1e-12)
	assert.InDelta(t, 0, m.Intercept, 1e-12)
}

func TestLinearConstantEC50(t *testing.T) {
	m, err := DefaultLinearStrategy().FitLinear(samples(
		[2]float64{5, 1}, [2]float64{5, 2}, [2]float64{5, 3}, [2]float64{5, 4}, [2]float64{5, 5},
	))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Slope)
	assert.False(t, math.IsNaN(m.Intercept))
}

func TestLinearPredictNotClamped(t *testing.T) {
	m := &LinearModel{Slope: -0.5, Intercept: 2}
	if got := m.Predict(10); got != -3 {
		t.Errorf("expected -3, got %f", got)
	}
}

func TestLinearRejectsBadRatio(t *testing.T) {
	_, err := LinearStrategy{TestRatio: 1.5, Seed: 1}.FitLinear(lineSet(5, 1, 0))
	assert.Error(t, err)
	_, err = NewStrategy(KindLinear, 0, 42)
	assert.Error(t, err)
}

func TestInsufficientData(t *testing.T) {
	one := samples([2]float64{10, 1})
	empty := &dataset.SampleSet{}
	for _, s := range []Strategy{DefaultLinearStrategy(), InterpolationStrategy{}} {
		for _, set := range []*dataset.SampleSet{one, empty, nil} {
			_, err := s.Fit(set)
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("%s: expected ErrInsufficientData, got %v", s.Kind(), err)
			}
		}
	}
}

func TestInterpolationScenario(t *testing.T) {
	set := &dataset.SampleSet{Samples: []dataset.Sample{
		{Substance: "A", EC50nM: 10, Potency: 1.0},
		{Substance: "B", EC50nM: 20, Potency: 2.0},
		{Substance: "B", EC50nM: 30, Potency: 3.0},
	}}
	m, err := InterpolationStrategy{}.FitInterpolation(set)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, m.Predict(25), 1e-9)
	below := m.Predict(5)
	assert.LessOrEqual(t, below, 1.0)
	assert.GreaterOrEqual(t, below, 0.0)
	assert.InDelta(t, 0.5, below, 1e-9)
	assert.InDelta(t, 3.5, m.Predict(35), 1e-9)
}

func TestInterpolationPassesThroughSamples(t *testing.T) {
	set := samples(
		[2]float64{40, 0.2}, [2]float64{0.3, 42}, [2]float64{12, 3.1},
		[2]float64{1.7, 15.2}, [2]float64{2500, 0.01},
	)
	m, err := InterpolationStrategy{}.FitInterpolation(set)
	require.NoError(t, err)

	for _, smp := range set.Samples {
		assert.InDelta(t, smp.Potency, m.Predict(smp.EC50nM), 1e-9, "at EC50 %v", smp.EC50nM)
	}
	assert.True(t, sortedStrictly(m.Xs))
}

func TestInterpolationNeverNegative(t *testing.T) {
	// steeply decreasing data extrapolates below zero on the right
	m, err := InterpolationStrategy{}.FitInterpolation(samples(
		[2]float64{1, 50}, [2]float64{2, 20}, [2]float64{3, 1},
	))
	require.NoError(t, err)

	for _, x := range []float64{1e-9, 0.5, 1, 1.5, 2.5, 3, 3.1, 10, 1e6} {
		if got := m.Predict(x); got < 0 {
			t.Errorf("Predict(%v) = %v, want >= 0", x, got)
		}
	}
	assert.Equal(t, 0.0, m.Predict(100))
}

func TestInterpolationDuplicateX(t *testing.T) {
	_, err := InterpolationStrategy{}.Fit(samples(
		[2]float64{10, 1}, [2]float64{20, 2}, [2]float64{10, 1.5}, [2]float64{20, 2.5}, [2]float64{20, 3},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDuplicateX)

	var ve *dataset.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []float64{10, 20}, ve.Values)
}

func TestInterpolationModelJSON(t *testing.T) {
	m, err := NewInterpolationModel([]float64{1, 2, 4}, []float64{3, 2, 0})
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back InterpolationModel
	require.NoError(t, json.Unmarshal(data, &back))
	assert.InDelta(t, m.Predict(3), back.Predict(3), 1e-12)
	assert.InDelta(t, m.Predict(0.5), back.Predict(0.5), 1e-12)

	assert.Error(t, json.Unmarshal([]byte(`{"xs":[2,1],"ys":[0,0]}`), &back))
}

func TestValidateEC50Input(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr error
	}{
		{"12.5", 12.5, nil},
		{"  0.003 ", 0.003, nil},
		{"1e3", 1000, nil},
		{"-3", 0, ErrNonPositive},
		{"0", 0, ErrNonPositive},
		{"abc", 0, ErrNotANumber},
		{"", 0, ErrNotANumber},
		{"NaN", 0, ErrNotANumber},
		{"+Inf", 0, ErrNotANumber},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ValidateEC50Input(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var ie *InputError
				assert.ErrorAs(t, err, &ie)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("interpolation")
	require.NoError(t, err)
	assert.Equal(t, KindInterpolation, k)

	_, err = ParseKind("spline")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = NewStrategy("spline", DefaultTestRatio, DefaultSeed)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestFormatPrediction(t *testing.T) {
	assert.Equal(t, "The predicted potency relative to DAMGO is: 2.50x", FormatPrediction(2.5))
}

func TestBuildPlot(t *testing.T) {
	set := samples([2]float64{10, 5}, [2]float64{20, 1}, [2]float64{30, 0})
	m, err := InterpolationStrategy{}.Fit(set)
	require.NoError(t, err)

	p := BuildPlot(set, m, 11)
	assert.Equal(t, KindInterpolation, p.Kind)
	assert.Equal(t, []float64{10, 20, 30}, p.XObserved)
	require.Len(t, p.XCurve, 11)
	require.Len(t, p.YCurve, 11)
	assert.Equal(t, 10.0, p.XCurve[0])
	assert.Equal(t, 30.0, p.XCurve[10])
	for _, y := range p.YCurve {
		assert.GreaterOrEqual(t, y, 0.0)
	}

	lin := &LinearModel{Slope: -1, Intercept: 0}
	lp := BuildPlot(set, lin, 0)
	require.Len(t, lp.XCurve, 2)
	assert.Equal(t, -30.0, lp.YCurve[1])
}

func sortedStrictly(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}
