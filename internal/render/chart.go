package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

// DefaultAssetsHost serves the echarts javascript.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ChartOptions controls HTML output. Zero values select defaults.
type ChartOptions struct {
	AssetsHost string
	// MaxPoints bounds the number of plotted values; larger frames are
	// strided.
	MaxPoints int
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.AssetsHost == "" {
		o.AssetsHost = DefaultAssetsHost
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = 20000
	}
	return o
}

// Stride returns the sampling step that keeps a frame under maxPoints.
// 2D frames are strided on both axes.
func Stride(a *ndarray.Array, maxPoints int) int {
	n := a.Len()
	if maxPoints <= 0 || n <= maxPoints {
		return 1
	}
	ratio := float64(n) / float64(maxPoints)
	if a.Is2D() {
		return int(math.Ceil(math.Sqrt(ratio)))
	}
	return int(math.Ceil(ratio))
}

// ChartHTML renders a line chart for 1D frames or a heat map for 2D frames.
func ChartHTML(w io.Writer, a *ndarray.Array, o ChartOptions) error {
	if a.Len() == 0 {
		return ErrEmptyFrame
	}
	o = o.withDefaults()
	stride := Stride(a, o.MaxPoints)

	initOpts := opts.Initialization{
		PageTitle:  "SimPeaks frame",
		Width:      "1000px",
		Height:     "600px",
		AssetsHost: o.AssetsHost,
	}
	title := opts.Title{
		Title:    fmt.Sprintf("Frame %d", a.UniqueID),
		Subtitle: fmt.Sprintf("image=%d dims=%v type=%s stride=%d", a.ImageNumber, a.Dims, a.DataType, stride),
	}

	if !a.Is2D() {
		return lineChart(w, a, stride, initOpts, title)
	}
	initOpts.Height = initOpts.Width
	return heatMapChart(w, a, stride, initOpts, title)
}

func lineChart(w io.Writer, a *ndarray.Array, stride int, initOpts opts.Initialization, title opts.Title) error {
	vals := a.Float64s()
	xs := make([]string, 0, len(vals)/stride+1)
	data := make([]opts.LineData, 0, len(vals)/stride+1)
	for i := 0; i < len(vals); i += stride {
		xs = append(xs, strconv.Itoa(i))
		if !isFinite(vals[i]) {
			data = append(data, opts.LineData{Value: "-"})
			continue
		}
		data = append(data, opts.LineData{Value: vals[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X bin", NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(xs).AddSeries("intensity", data)
	return line.Render(w)
}

func heatMapChart(w io.Writer, a *ndarray.Array, stride int, initOpts opts.Initialization, title opts.Title) error {
	lo, hi, err := Range(a)
	if err != nil {
		return err
	}
	if lo == hi {
		hi = lo + 1
	}

	vals := a.Float64s()
	width, height := a.Width(), a.Height()
	var xs, ys []string
	for x := 0; x < width; x += stride {
		xs = append(xs, strconv.Itoa(x))
	}
	for y := 0; y < height; y += stride {
		ys = append(ys, strconv.Itoa(y))
	}

	data := make([]opts.HeatMapData, 0, len(xs)*len(ys))
	for yi, y := 0, 0; y < height; yi, y = yi+1, y+stride {
		for xi, x := 0, 0; x < width; xi, x = xi+1, x+stride {
			if v := vals[y*width+x]; isFinite(v) {
				data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
			}
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "X bin"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Y bin", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xs).AddSeries("intensity", data)
	return hm.Render(w)
}
