package frame

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/simpeaks/internal/monitoring"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/peaks"
)

// Settings is everything the compositor reads for one frame.
type Settings struct {
	Background Background   `json:"background"`
	Peaks      []peaks.Peak `json:"peaks"`
	Noise      Noise        `json:"noise"`
	Integrate  bool         `json:"integrate"`
}

// Compositor writes frames. It owns the noise random stream and a scratch
// row, so a Compositor must not be shared between goroutines.
type Compositor struct {
	uniform distuv.Uniform
	normal  distuv.Normal
	scratch []float64
}

// NewCompositor returns a compositor whose noise stream is seeded with seed.
// Two compositors with the same seed produce the same noise.
func NewCompositor(seed uint64) *Compositor {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Compositor{
		uniform: distuv.Uniform{Min: -1, Max: 1, Src: src},
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Compose renders s into buf. The buffer is zeroed first unless integration
// is enabled and no reset was requested. Background, each enabled peak and
// noise are then added in that order, each narrowed to the element type as
// it is added. buf must be allocated.
func (c *Compositor) Compose(buf *ndarray.Array, s Settings, reset bool) {
	if buf.Len() == 0 {
		monitoring.Logf("[frame] compose called without an allocated buffer")
		return
	}
	if !s.Integrate || reset {
		buf.Zero()
	}

	width, height := buf.Width(), buf.Height()
	twoD := buf.Is2D()

	row := c.row(buf.Len())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			row[y*width+x] = s.Background.Eval(x, y, twoD)
		}
	}
	buf.Accumulate(row)

	for _, p := range s.Peaks {
		if twoD {
			c.addPeak2D(buf, p, width, height)
		} else {
			c.addPeak1D(buf, p, width)
		}
	}

	var draw func() float64
	switch s.Noise.Kind {
	case NoiseUniform:
		draw = c.uniform.Rand
	case NoiseGaussian:
		draw = c.normal.Rand
	default:
		return
	}
	for i := range row {
		row[i] = s.Noise.Sample(draw())
	}
	buf.Accumulate(row)
}

func (c *Compositor) addPeak1D(buf *ndarray.Array, p peaks.Peak, width int) {
	if !p.Enabled1D() {
		return
	}
	lo, hi, ok := peaks.BinRange(p.MinX, p.MaxX, width)
	if !ok {
		return
	}
	center := peaks.Eval1D(p.Type1D, p, p.PosX)
	scale := p.Amplitude / peaks.ZeroCheck(center)
	for x := lo; x <= hi; x++ {
		buf.Add(x, peaks.Eval1D(p.Type1D, p, float64(x))*scale)
	}
}

func (c *Compositor) addPeak2D(buf *ndarray.Array, p peaks.Peak, width, height int) {
	if !p.Enabled2D() {
		return
	}
	xlo, xhi, okX := peaks.BinRange(p.MinX, p.MaxX, width)
	ylo, yhi, okY := peaks.BinRange(p.MinY, p.MaxY, height)
	if !okX || !okY {
		return
	}
	center := peaks.Eval2D(p.Type2D, p, p.PosX, p.PosY)
	scale := p.Amplitude / peaks.ZeroCheck(center)
	for y := ylo; y <= yhi; y++ {
		for x := xlo; x <= xhi; x++ {
			buf.Add(y*width+x, peaks.Eval2D(p.Type2D, p, float64(x), float64(y))*scale)
		}
	}
}

func (c *Compositor) row(n int) []float64 {
	if cap(c.scratch) < n {
		c.scratch = make([]float64, n)
	}
	c.scratch = c.scratch[:n]
	return c.scratch
}
