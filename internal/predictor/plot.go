package predictor

import (
	"gonum.org/v1/gonum/floats"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
)

const DefaultCurvePoints = 100

// PlotData holds the observed points and a sampled curve for a chart.
type PlotData struct {
	Kind      Kind      `json:"kind"`
	XObserved []float64 `json:"x_observed"`
	YObserved []float64 `json:"y_observed"`
	XCurve    []float64 `json:"x_curve"`
	YCurve    []float64 `json:"y_curve"`
}

// BuildPlot samples the model at evenly spaced EC50 values spanning the
// observed range. Curve values come from Predict, so interpolation curves
// are never negative.
func BuildPlot(set *dataset.SampleSet, m Model, points int) PlotData {
	if points < 2 {
		points = 2
	}
	xs, ys := set.XY()
	out := PlotData{Kind: m.Kind(), XObserved: xs, YObserved: ys}
	if len(xs) == 0 {
		out.XCurve, out.YCurve = []float64{}, []float64{}
		return out
	}

	out.XCurve = floats.Span(make([]float64, points), floats.Min(xs), floats.Max(xs))
	out.YCurve = make([]float64, points)
	for i, x := range out.XCurve {
		out.YCurve[i] = m.Predict(x)
	}
	return out
}
