package peaks

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func TestZeroCheck(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 1},
		{1e-13, 1},
		{-1e-13, 1},
		{1e-12, 1e-12},
		{-1e-12, -1e-12},
		{0.5, 0.5},
		{-3, -3},
		{math.Inf(1), math.Inf(1)},
	}
	for _, tt := range tests {
		if got := ZeroCheck(tt.in); got != tt.want {
			t.Errorf("ZeroCheck(%g) = %g, want %g", tt.in, got, tt.want)
		}
	}
}

func TestEval1D_CenterIsMaximum(t *testing.T) {
	p := Peak{PosX: 50, FWHMX: 10, P1: 2.5}
	shapes := []Shape1D{Shape1DGaussian, Shape1DLorentz, Shape1DPseudoVoigt, Shape1DLaplace, Shape1DMoffat}
	for _, s := range shapes {
		center := Eval1D(s, p, p.PosX)
		if center <= 0 {
			t.Errorf("%s: center value %g should be positive", s, center)
		}
		for _, off := range []float64{0.1, 0.5, 1, 3, 5, 12, 49} {
			for _, x := range []float64{p.PosX - off, p.PosX + off} {
				if v := Eval1D(s, p, x); v > center {
					t.Errorf("%s: value at %g (%g) exceeds center value %g", s, x, v, center)
				}
			}
		}
	}
}

func TestEval1D_HalfMaximumAtHalfWidth(t *testing.T) {
	p := Peak{PosX: 20, FWHMX: 8, P1: 3}
	shapes := []Shape1D{Shape1DGaussian, Shape1DLorentz, Shape1DPseudoVoigt, Shape1DLaplace, Shape1DMoffat}
	for _, s := range shapes {
		center := Eval1D(s, p, p.PosX)
		left := Eval1D(s, p, p.PosX-p.FWHMX/2)
		right := Eval1D(s, p, p.PosX+p.FWHMX/2)
		if !scalar.EqualWithinAbsOrRel(left, center/2, tol, tol) {
			t.Errorf("%s: left half-width value %g, want %g", s, left, center/2)
		}
		if !scalar.EqualWithinAbsOrRel(right, center/2, tol, tol) {
			t.Errorf("%s: right half-width value %g, want %g", s, right, center/2)
		}
	}
}

func TestGaussian_SumsToOne(t *testing.T) {
	p := Peak{PosX: 100, FWHMX: 10}
	vals := make([]float64, 200)
	for i := range vals {
		vals[i] = Eval1D(Shape1DGaussian, p, float64(i))
	}
	if sum := floats.Sum(vals); math.Abs(sum-1) > 1e-6 {
		t.Errorf("gaussian sum = %g, want ~1", sum)
	}
}

func TestEval1D_FWHMClampedToOne(t *testing.T) {
	for _, s := range Shapes1D() {
		zero := Peak{PosX: 5, FWHMX: 0, P1: 2}
		negative := Peak{PosX: 5, FWHMX: -7, P1: 2}
		one := Peak{PosX: 5, FWHMX: 1, P1: 2}
		for _, x := range []float64{3, 4, 5, 6, 7} {
			want := Eval1D(s, one, x)
			if got := Eval1D(s, zero, x); got != want {
				t.Errorf("%s fwhm=0 at %g: got %g, want %g", s, x, got, want)
			}
			if got := Eval1D(s, negative, x); got != want {
				t.Errorf("%s fwhm<0 at %g: got %g, want %g", s, x, got, want)
			}
		}
	}
}

func TestSquare1D(t *testing.T) {
	p := Peak{PosX: 5, FWHMX: 4}
	for x := 0; x < 10; x++ {
		want := 0.0
		if x >= 4 && x <= 7 {
			want = 1
		}
		if got := Eval1D(Shape1DSquare, p, float64(x)); got != want {
			t.Errorf("square at %d = %g, want %g", x, got, want)
		}
	}
}

func TestTriangle1D(t *testing.T) {
	p := Peak{PosX: 5, FWHMX: 4}
	tests := map[float64]float64{
		1: 0,
		3: 0.5,
		4: 0.75,
		5: 1,
		6: 0.75,
		7: 0.5,
		9: 0,
	}
	for x, want := range tests {
		if got := Eval1D(Shape1DTriangle, p, x); math.Abs(got-want) > tol {
			t.Errorf("triangle at %g = %g, want %g", x, got, want)
		}
	}
}

func TestTriangle1D_LeftSlopeAtTruncatedCenter(t *testing.T) {
	// pos 5.5 truncates to 5, so x=5 is on the rising side.
	p := Peak{PosX: 5.5, FWHMX: 2}
	if got := Eval1D(Shape1DTriangle, p, 5); math.Abs(got-0.75) > tol {
		t.Errorf("triangle at 5 = %g, want 0.75", got)
	}
	if got := Eval1D(Shape1DTriangle, p, 6); math.Abs(got-0.75) > tol {
		t.Errorf("triangle at 6 = %g, want 0.75", got)
	}
}

func TestSmoothStep1D(t *testing.T) {
	p := Peak{PosX: 50, FWHMX: 10}
	tests := map[float64]float64{
		0:   0,
		45:  0,
		50:  0.5,
		55:  1,
		100: 1,
	}
	for x, want := range tests {
		if got := Eval1D(Shape1DSmoothStep, p, x); math.Abs(got-want) > tol {
			t.Errorf("smoothstep at %g = %g, want %g", x, got, want)
		}
	}
	prev := -1.0
	for x := 40.0; x <= 60; x++ {
		v := Eval1D(Shape1DSmoothStep, p, x)
		if v < prev {
			t.Errorf("smoothstep not monotonic at %g: %g < %g", x, v, prev)
		}
		prev = v
	}
}

func TestMoffat_BetaZeroIsGuarded(t *testing.T) {
	p := Peak{PosX: 10, FWHMX: 5, P1: 0}
	for _, x := range []float64{0, 5, 10, 15} {
		v := Eval1D(Shape1DMoffat, p, x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("moffat with beta=0 at %g returned %g", x, v)
		}
		// beta is replaced by 1, which zeroes the prefactor.
		if v != 0 {
			t.Errorf("moffat with beta=0 at %g = %g, want 0", x, v)
		}
	}
}

func TestPseudoVoigtEta(t *testing.T) {
	// With equal widths the ratio is scale invariant.
	want := 0.6825391922897744
	for _, f := range []float64{1, 3.5, 10, 250} {
		if got := PseudoVoigtEta(f, f); math.Abs(got-want) > 1e-12 {
			t.Errorf("eta(%g,%g) = %.15f, want %.15f", f, f, got, want)
		}
	}
}

func TestEval1D_UnknownShape(t *testing.T) {
	p := Peak{PosX: 1, FWHMX: 3, Amplitude: 10}
	if v := Eval1D(Shape1D(42), p, 1); v != 0 {
		t.Errorf("unknown shape = %g, want 0", v)
	}
	if v := Eval1D(Shape1DNone, p, 1); v != 0 {
		t.Errorf("none shape = %g, want 0", v)
	}
}

func TestEval2D_CenterIsMaximum(t *testing.T) {
	p := Peak{PosX: 30, PosY: 20, FWHMX: 8, FWHMY: 5, Correlation: 0.4, P1: 2}
	shapes := []Shape2D{Shape2DGaussian, Shape2DLorentz, Shape2DPseudoVoigt, Shape2DLaplace, Shape2DMoffat, Shape2DCone}
	for _, s := range shapes {
		center := Eval2D(s, p, p.PosX, p.PosY)
		for dx := -6.0; dx <= 6; dx += 1.5 {
			for dy := -6.0; dy <= 6; dy += 1.5 {
				if v := Eval2D(s, p, p.PosX+dx, p.PosY+dy); v > center+tol {
					t.Errorf("%s: value at offset (%g,%g) = %g exceeds center %g", s, dx, dy, v, center)
				}
			}
		}
	}
}

func TestGaussian2D_SeparableWithoutCorrelation(t *testing.T) {
	p := Peak{PosX: 10, PosY: 12, FWHMX: 6, FWHMY: 3}
	for _, pt := range [][2]float64{{10, 12}, {7, 12}, {12, 15}, {0, 0}} {
		want := gaussian(p.PosX, p.FWHMX, pt[0]) * gaussian(p.PosY, p.FWHMY, pt[1])
		got := Eval2D(Shape2DGaussian, p, pt[0], pt[1])
		if !scalar.EqualWithinAbsOrRel(got, want, 1e-15, 1e-12) {
			t.Errorf("gaussian2D at %v = %g, want %g", pt, got, want)
		}
	}
}

func TestGaussian2D_CorrelationTiltsPeak(t *testing.T) {
	p := Peak{PosX: 5, PosY: 5, FWHMX: 4, FWHMY: 4, Correlation: 0.6}
	// Positive correlation favours the (+,+) diagonal over (+,-).
	along := Eval2D(Shape2DGaussian, p, 7, 7)
	across := Eval2D(Shape2DGaussian, p, 7, 3)
	if along <= across {
		t.Errorf("expected %g > %g for positive correlation", along, across)
	}
	if got := clampCorrelation(3); got != 1 {
		t.Errorf("clampCorrelation(3) = %g, want 1", got)
	}
	if got := clampCorrelation(-3); got != -1 {
		t.Errorf("clampCorrelation(-3) = %g, want -1", got)
	}
}

func TestSquare2D(t *testing.T) {
	p := Peak{PosX: 4, PosY: 4, FWHMX: 2, FWHMY: 2}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			want := 0.0
			if (x == 4 || x == 5) && (y == 4 || y == 5) {
				want = 1
			}
			if got := Eval2D(Shape2DSquare, p, float64(x), float64(y)); got != want {
				t.Errorf("square2D at (%d,%d) = %g, want %g", x, y, got, want)
			}
		}
	}
}

func TestPyramid2D(t *testing.T) {
	p := Peak{PosX: 5, PosY: 5, FWHMX: 4, FWHMY: 4}
	tests := []struct {
		x, y, want float64
	}{
		{5, 5, 1},
		{3, 5, 0.5},
		{5, 7, 0.5},
		{6, 6, 0.5},
		{7, 7, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Eval2D(Shape2DPyramid, p, tt.x, tt.y); math.Abs(got-tt.want) > tol {
			t.Errorf("pyramid at (%g,%g) = %g, want %g", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCone2D(t *testing.T) {
	p := Peak{PosX: 10, PosY: 10, FWHMX: 4, FWHMY: 2}
	tests := []struct {
		x, y, want float64
	}{
		{10, 10, 6}, // d=0 branch returns the full height
		{12, 10, 3}, // along X the edge radius is FWHMX
		{8, 10, 3},
		{10, 11, 3}, // along Y the edge radius is FWHMY
		{10, 9, 3},
		{20, 10, 0},
		{10, 13, 0},
	}
	for _, tt := range tests {
		got := Eval2D(Shape2DCone, p, tt.x, tt.y)
		if math.IsNaN(got) || math.Abs(got-tt.want) > tol {
			t.Errorf("cone at (%g,%g) = %g, want %g", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSmoothStep2D_AveragesRamps(t *testing.T) {
	p := Peak{PosX: 10, PosY: 10, FWHMX: 4, FWHMY: 4}
	if got := Eval2D(Shape2DSmoothStep, p, 10, 10); math.Abs(got-0.5) > tol {
		t.Errorf("smoothstep2D center = %g, want 0.5", got)
	}
	// One ramp at 1 and the other at 0 also average to the midpoint.
	if got := Eval2D(Shape2DSmoothStep, p, 12, 8); math.Abs(got-0.5) > tol {
		t.Errorf("smoothstep2D (12,8) = %g, want 0.5", got)
	}
	if got := Eval2D(Shape2DSmoothStep, p, 20, 20); math.Abs(got-1) > tol {
		t.Errorf("smoothstep2D (20,20) = %g, want 1", got)
	}
}

func TestLorentz2D_IgnoresFWHMY(t *testing.T) {
	a := Peak{PosX: 3, PosY: 3, FWHMX: 4, FWHMY: 1}
	b := Peak{PosX: 3, PosY: 3, FWHMX: 4, FWHMY: 40}
	if Eval2D(Shape2DLorentz, a, 5, 6) != Eval2D(Shape2DLorentz, b, 5, 6) {
		t.Error("lorentz2D should depend on FWHMX only")
	}
}

func TestEval2D_NoNaNForClampedInput(t *testing.T) {
	p := Peak{PosX: 2.5, PosY: 7.25, FWHMX: 0, FWHMY: -2, Correlation: 0.3, P1: 0}
	for _, s := range Shapes2D() {
		for x := 0.0; x < 10; x++ {
			for y := 0.0; y < 10; y++ {
				v := Eval2D(s, p, x, y)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("%s at (%g,%g) = %g", s, x, y, v)
				}
			}
		}
	}
}

func TestBinRange(t *testing.T) {
	tests := []struct {
		min, max, size int
		lo, hi         int
		ok             bool
	}{
		{0, 0, 100, 0, 99, true},
		{0, 40, 100, 0, 40, true},
		{10, 0, 100, 10, 99, true},
		{-5, 500, 100, 0, 99, true},
		{60, 40, 100, 60, 40, false},
		{150, 0, 100, 150, 99, false},
		{0, 0, 0, 0, -1, false},
	}
	for _, tt := range tests {
		lo, hi, ok := BinRange(tt.min, tt.max, tt.size)
		if lo != tt.lo || hi != tt.hi || ok != tt.ok {
			t.Errorf("BinRange(%d,%d,%d) = (%d,%d,%v), want (%d,%d,%v)",
				tt.min, tt.max, tt.size, lo, hi, ok, tt.lo, tt.hi, tt.ok)
		}
	}
}
