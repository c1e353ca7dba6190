// Package render draws frames as PNG plots and interactive HTML charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

// ErrEmptyFrame is returned when there is nothing to draw.
var ErrEmptyFrame = errors.New("render: empty frame")

// PlotOptions controls PNG output. Zero values select defaults.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func (o PlotOptions) withDefaults(a *ndarray.Array) PlotOptions {
	if o.Width <= 0 {
		o.Width = 10 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 5 * vg.Inch
		if a.Is2D() {
			o.Height = o.Width
		}
	}
	if o.Title == "" {
		o.Title = fmt.Sprintf("Frame %d (image %d)", a.UniqueID, a.ImageNumber)
	}
	return o
}

// Range returns the minimum and maximum finite element values. A frame
// with no finite values reports (0, 0).
func Range(a *ndarray.Array) (lo, hi float64, err error) {
	if a.Len() == 0 {
		return 0, 0, ErrEmptyFrame
	}
	vals := finite(a.Float64s())
	if len(vals) == 0 {
		return 0, 0, nil
	}
	return floats.Min(vals), floats.Max(vals), nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finite(vals []float64) []float64 {
	out := vals[:0:0]
	for _, v := range vals {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// PNG writes a line plot of a 1D frame or a heat map of a 2D frame.
func PNG(w io.Writer, a *ndarray.Array, o PlotOptions) error {
	if a.Len() == 0 {
		return ErrEmptyFrame
	}
	o = o.withDefaults(a)

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "X bin"

	if a.Is2D() {
		if err := addHeatMap(p, a); err != nil {
			return err
		}
		p.Y.Label.Text = "Y bin"
	} else {
		if err := addLine(p, a); err != nil {
			return err
		}
		p.Y.Label.Text = a.DataType.String()
	}

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

func addLine(p *plot.Plot, a *ndarray.Array) error {
	vals := a.Float64s()
	pts := make(plotter.XYs, 0, len(vals))
	for i, v := range vals {
		if isFinite(v) {
			pts = append(pts, plotter.XY{X: float64(i), Y: v})
		}
	}
	if len(pts) == 0 {
		return ErrEmptyFrame
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return nil
}

func addHeatMap(p *plot.Plot, a *ndarray.Array) error {
	lo, hi, err := Range(a)
	if err != nil {
		return err
	}
	if lo == hi {
		hi = lo + 1
	}
	hm := plotter.NewHeatMap(frameGrid{a: a, vals: a.Float64s()}, palette.Heat(64, 1))
	hm.Min, hm.Max = lo, hi
	p.Add(hm)
	return nil
}

// frameGrid adapts a 2D frame to plotter.GridXYZ. Rows are y bins.
type frameGrid struct {
	a    *ndarray.Array
	vals []float64
}

func (g frameGrid) Dims() (c, r int) { return g.a.Width(), g.a.Height() }
func (g frameGrid) X(c int) float64  { return float64(c) }
func (g frameGrid) Y(r int) float64  { return float64(r) }

func (g frameGrid) Z(c, r int) float64 {
	if v := g.vals[r*g.a.Width()+c]; isFinite(v) {
		return v
	}
	return math.NaN()
}
