// Package plot renders fitted potency curves as PNG or SVG charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"

	"github.com/MikeSquared-Agency/Potency/internal/predictor"
)

var ErrDegenerateRange = errors.New("plot needs at least two distinct EC50 values")

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case PNG:
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unknown plot format %q", s)
}

func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

type Options struct {
	Width  int
	Height int
}

func DefaultOptions() Options {
	return Options{Width: 800, Height: 480}
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    col,
	}
}

// Render draws the observed samples as dots and the model curve as a line.
func Render(w io.Writer, p *predictor.PlotData, f Format, opts Options) error {
	if p == nil || len(p.XObserved) == 0 {
		return ErrDegenerateRange
	}
	if floats.Min(p.XObserved) == floats.Max(p.XObserved) {
		return ErrDegenerateRange
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("EC50 vs Potency (%s)", p.Kind),
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "EC50 (nM)"},
		YAxis:      chart.YAxis{Name: "Potency relative to DAMGO", Range: yRange(p)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Observed",
				XValues: p.XObserved,
				YValues: p.YObserved,
				Style:   pointStyle(chart.ColorBlue),
			},
			chart.ContinuousSeries{
				Name:    curveName(p.Kind),
				XValues: p.XCurve,
				YValues: p.YCurve,
				Style:   chart.Style{StrokeWidth: 2, StrokeColor: drawing.ColorRed},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(f.provider(), w); err != nil {
		return fmt.Errorf("render %s chart: %w", f, err)
	}
	return nil
}

func curveName(k predictor.Kind) string {
	if k == predictor.KindInterpolation {
		return "Interpolation"
	}
	return "Linear fit"
}

// yRange pads a flat curve so the axis keeps a non-zero span. A nil result
// leaves the range to go-chart.
func yRange(p *predictor.PlotData) chart.Range {
	all := make([]float64, 0, len(p.YObserved)+len(p.YCurve))
	all = append(all, p.YObserved...)
	all = append(all, p.YCurve...)
	lo, hi := floats.Min(all), floats.Max(all)
	if hi > lo {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.1, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
