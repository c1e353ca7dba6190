package render

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

func frame(t *testing.T, dims []int, vals []float64) *ndarray.Array {
	t.Helper()
	a, err := ndarray.New(dims, ndarray.Float64)
	if err != nil {
		t.Fatal(err)
	}
	if vals != nil {
		a.Accumulate(vals)
	}
	return a
}

func TestRange(t *testing.T) {
	a := frame(t, []int{4}, []float64{3, -1, 7, 2})
	lo, hi, err := Range(a)
	if err != nil {
		t.Fatal(err)
	}
	if lo != -1 || hi != 7 {
		t.Errorf("Range = (%g, %g), want (-1, 7)", lo, hi)
	}
	if _, _, err := Range(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Range(nil) err = %v", err)
	}
}

func TestRange_SkipsNonFinite(t *testing.T) {
	a := frame(t, []int{5}, []float64{2, math.NaN(), math.Inf(1), -3, math.Inf(-1)})
	lo, hi, err := Range(a)
	if err != nil {
		t.Fatal(err)
	}
	if lo != -3 || hi != 2 {
		t.Errorf("Range = (%g, %g), want (-3, 2)", lo, hi)
	}

	all := frame(t, []int{2}, []float64{math.NaN(), math.Inf(1)})
	if lo, hi, err := Range(all); err != nil || lo != 0 || hi != 0 {
		t.Errorf("Range of non-finite frame = (%g, %g, %v), want (0, 0, nil)", lo, hi, err)
	}
}

func TestNonFiniteFrames(t *testing.T) {
	cases := map[string]*ndarray.Array{
		"1d": frame(t, []int{4}, []float64{1, math.NaN(), 3, math.Inf(1)}),
		"2d": frame(t, []int{2, 2}, []float64{math.NaN(), 1, math.Inf(-1), 4}),
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := PNG(&buf, a, PlotOptions{}); err != nil {
				t.Fatalf("PNG: %v", err)
			}
			if _, err := png.Decode(&buf); err != nil {
				t.Fatalf("output is not a png: %v", err)
			}
			buf.Reset()
			if err := ChartHTML(&buf, a, ChartOptions{}); err != nil {
				t.Fatalf("ChartHTML: %v", err)
			}
			if strings.Contains(buf.String(), "NaN") {
				t.Error("chart html contains NaN")
			}
		})
	}
}

func TestPNG(t *testing.T) {
	cases := map[string]*ndarray.Array{
		"1d":      frame(t, []int{16}, []float64{0, 1, 4, 9, 16, 9, 4, 1, 0, 0, 0, 0, 0, 0, 0, 0}),
		"2d":      frame(t, []int{4, 3}, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}),
		"2d-flat": frame(t, []int{3, 3}, nil),
		"1d-flat": frame(t, []int{5}, nil),
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := PNG(&buf, a, PlotOptions{}); err != nil {
				t.Fatalf("PNG: %v", err)
			}
			img, err := png.Decode(&buf)
			if err != nil {
				t.Fatalf("output is not a png: %v", err)
			}
			if img.Bounds().Dx() == 0 {
				t.Error("empty image")
			}
		})
	}
}

func TestPNG_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, nil, PlotOptions{}); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("err = %v, want ErrEmptyFrame", err)
	}
	if err := ChartHTML(&buf, nil, ChartOptions{}); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("err = %v, want ErrEmptyFrame", err)
	}
}

func TestStride(t *testing.T) {
	tests := []struct {
		dims []int
		max  int
		want int
	}{
		{[]int{100}, 1000, 1},
		{[]int{100}, 0, 1},
		{[]int{1000}, 100, 10},
		{[]int{1001}, 100, 11},
		{[]int{100, 100}, 2500, 2},
		{[]int{100, 100}, 1000, 4},
	}
	for _, tt := range tests {
		a := frame(t, tt.dims, nil)
		if got := Stride(a, tt.max); got != tt.want {
			t.Errorf("Stride(%v, %d) = %d, want %d", tt.dims, tt.max, got, tt.want)
		}
	}
}

func TestChartHTML(t *testing.T) {
	a := frame(t, []int{8}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	a.UniqueID = 12

	var buf bytes.Buffer
	if err := ChartHTML(&buf, a, ChartOptions{AssetsHost: "/assets/"}); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	for _, want := range []string{"Frame 12", "/assets/echarts.min.js", "intensity"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart html missing %q", want)
		}
	}
}

func TestChartHTML_HeatMap(t *testing.T) {
	a := frame(t, []int{20, 10}, nil)
	a.Add(5, 3)

	var buf bytes.Buffer
	if err := ChartHTML(&buf, a, ChartOptions{MaxPoints: 50}); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	if !strings.Contains(html, "heatmap") {
		t.Error("expected a heatmap series")
	}
	if !strings.Contains(html, "stride=2") {
		t.Error("expected subtitle to report stride 2")
	}
	if !strings.Contains(html, DefaultAssetsHost) {
		t.Error("expected default assets host")
	}
}
