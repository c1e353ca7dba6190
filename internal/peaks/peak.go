package peaks

import "math"

// Precomputed constants shared by the distributions.
const (
	// ZeroCheckTolerance is the magnitude below which a divisor is treated as zero.
	ZeroCheckTolerance = 1e-12

	twoSqrt2Ln2 = 2.3548200450309493 // 2*sqrt(2*ln2), FWHM to sigma for a Gaussian
	sqrt2Pi     = 2.5066282746310002 // sqrt(2*pi)
	twoLn2      = 1.3862943611198906 // 2*ln2, FWHM to scale b for a Laplace

	// Thompson-Cox-Hastings pseudo-Voigt total FWHM and mixing coefficients.
	pvP1 = 2.69269
	pvP2 = 2.42843
	pvP3 = 4.47163
	pvP4 = 0.07842
	pvE1 = 1.36603
	pvE2 = 0.47719
	pvE3 = 0.11116
)

// Peak describes one peak slot. Only the fields relevant to the selected
// shape are used; the rest are ignored.
type Peak struct {
	Type1D      Shape1D `json:"type_1d"`
	Type2D      Shape2D `json:"type_2d"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
	FWHMX       float64 `json:"fwhm_x"`
	FWHMY       float64 `json:"fwhm_y"`
	Amplitude   float64 `json:"amplitude"` // signed, peaks may subtract
	Correlation float64 `json:"correlation"`
	P1          float64 `json:"p1"` // Moffat beta
	P2          float64 `json:"p2"`

	// Inclusive bin range the peak is drawn into. A zero Max means up to the
	// last bin of the frame.
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Enabled1D reports whether the peak contributes to a 1D frame.
func (p Peak) Enabled1D() bool { return p.Type1D != Shape1DNone }

// Enabled2D reports whether the peak contributes to a 2D frame.
func (p Peak) Enabled2D() bool { return p.Type2D != Shape2DNone }

// BinRange clips [min, max] to a frame axis of length size. A zero max
// selects the last bin. ok is false when no bin remains.
func BinRange(min, max, size int) (lo, hi int, ok bool) {
	if size <= 0 {
		return 0, -1, false
	}
	lo, hi = min, max
	if hi <= 0 || hi > size-1 {
		hi = size - 1
	}
	if lo < 0 {
		lo = 0
	}
	return lo, hi, lo <= hi
}

// ZeroCheck returns 1.0 if v is within ZeroCheckTolerance of zero, otherwise v.
func ZeroCheck(v float64) float64 {
	if v > -ZeroCheckTolerance && v < ZeroCheckTolerance {
		return 1.0
	}
	return v
}

func clampFWHM(fwhm float64) float64 {
	return math.Max(1.0, fwhm)
}

func clampCorrelation(rho float64) float64 {
	return math.Min(1.0, math.Max(-1.0, rho))
}

// PseudoVoigtEta returns the Lorentzian mixing fraction for the given
// Gaussian and Lorentzian FWHM. The result is not clamped to [0, 1].
func PseudoVoigtEta(fwhmG, fwhmL float64) float64 {
	sum := math.Pow(fwhmG, 5) +
		pvP1*math.Pow(fwhmG, 4)*fwhmL +
		pvP2*math.Pow(fwhmG, 3)*math.Pow(fwhmL, 2) +
		pvP3*math.Pow(fwhmG, 2)*math.Pow(fwhmL, 3) +
		pvP4*fwhmG*math.Pow(fwhmL, 4) +
		math.Pow(fwhmL, 5)
	total := math.Pow(sum, 0.2)
	ratio := fwhmL / total
	return pvE1*ratio - pvE2*ratio*ratio + pvE3*ratio*ratio*ratio
}

// moffatAlpha derives the alpha seeing parameter from FWHM and beta.
func moffatAlpha(fwhm, beta float64) float64 {
	return fwhm / (2.0 * math.Sqrt(math.Pow(2.0, 1.0/beta)-1))
}

// smoothStep applies the quintic 6t^5 - 15t^4 + 10t^3 to t in [0, 1].
func smoothStep(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

// ramp is the normalised position of x across an edge of width fwhm
// centred on pos, clamped to [0, 1].
func ramp(x, pos, fwhm float64) float64 {
	low := pos - fwhm/2.0
	return math.Max(0.0, math.Min((x-low)/fwhm, 1.0))
}
