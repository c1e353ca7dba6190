package peaks

import "math"

// Eval1D evaluates the 1D profile of p at coordinate x. Unknown shapes and
// Shape1DNone evaluate to 0.
func Eval1D(shape Shape1D, p Peak, x float64) float64 {
	switch shape {
	case Shape1DNone:
		return 0
	case Shape1DSquare:
		return square(p.PosX, p.FWHMX, x)
	case Shape1DTriangle:
		return triangle(p.PosX, p.FWHMX, x)
	case Shape1DGaussian:
		return gaussian(p.PosX, p.FWHMX, x)
	case Shape1DLorentz:
		return lorentz(p.PosX, p.FWHMX, x)
	case Shape1DPseudoVoigt:
		return pseudoVoigt(p.PosX, p.FWHMX, x)
	case Shape1DLaplace:
		return laplace(p.PosX, p.FWHMX, x)
	case Shape1DMoffat:
		return moffat(p.PosX, p.FWHMX, p.P1, x)
	case Shape1DSmoothStep:
		return smoothStep(ramp(x, p.PosX, clampFWHM(p.FWHMX)))
	}
	return 0
}

// gaussian is the normal density with sigma derived from the FWHM.
// https://en.wikipedia.org/wiki/Normal_distribution
func gaussian(pos, fwhm, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	sigma := fwhm / twoSqrt2Ln2
	d := x - pos
	return (1.0 / (sigma * sqrt2Pi)) * math.Exp(-(d*d)/(2.0*sigma*sigma))
}

// lorentz is the Cauchy density with half width gamma = FWHM/2.
// https://en.wikipedia.org/wiki/Cauchy_distribution
func lorentz(pos, fwhm, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	gamma := fwhm / 2.0
	d := x - pos
	return (1 / (math.Pi * gamma)) * ((gamma * gamma) / (d*d + gamma*gamma))
}

// pseudoVoigt mixes a Gaussian and a Lorentz of the same FWHM. The mixing
// fraction still goes through the full two-width approximation so the
// widths can be separated later.
// https://en.wikipedia.org/wiki/Voigt_profile
func pseudoVoigt(pos, fwhm, x float64) float64 {
	fwhmG := clampFWHM(fwhm)
	fwhmL := clampFWHM(fwhm)
	eta := PseudoVoigtEta(fwhmG, fwhmL)
	return (1.0-eta)*gaussian(pos, fwhm, x) + eta*lorentz(pos, fwhm, x)
}

// laplace is the double exponential with scale b = FWHM/(2 ln2), which puts
// the half-maximum points at pos ± FWHM/2.
// https://en.wikipedia.org/wiki/Laplace_distribution
func laplace(pos, fwhm, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	b := fwhm / twoLn2
	return (1.0 / (2.0 * b)) * math.Exp(-math.Abs(x-pos)/b)
}

// triangle is an isosceles ramp of height 1 and slope 1/FWHM. A coordinate
// at or left of the truncated center uses the rising slope.
func triangle(pos, fwhm, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	b := 1.0 / fwhm
	if x > math.Trunc(pos) {
		b = -b
	}
	return math.Max(0.0, 1.0+b*(x-pos))
}

// square is 1 inside the half-open window (trunc(pos-FWHM/2), trunc(pos+FWHM/2)].
func square(pos, fwhm, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	if x > math.Trunc(pos-fwhm/2.0) && x <= math.Trunc(pos+fwhm/2.0) {
		return 1.0
	}
	return 0.0
}

// moffat uses beta as the shape exponent. Large beta looks Gaussian, beta
// below 1 looks exponential. beta within ZeroCheckTolerance of 0 becomes 1.
// https://en.wikipedia.org/wiki/Moffat_distribution
func moffat(pos, fwhm, beta, x float64) float64 {
	fwhm = clampFWHM(fwhm)
	beta = ZeroCheck(beta)
	alpha := moffatAlpha(fwhm, beta)
	alpha2 := alpha * alpha
	d := x - pos
	return ((beta - 1) / (math.Pi * alpha2)) * math.Pow(1+(d*d)/alpha2, -beta)
}
