package peaks

import "math"

// Eval2D evaluates the 2D profile of p at (x, y). Unknown shapes and
// Shape2DNone evaluate to 0.
func Eval2D(shape Shape2D, p Peak, x, y float64) float64 {
	switch shape {
	case Shape2DNone:
		return 0
	case Shape2DSquare:
		return square(p.PosX, p.FWHMX, x) * square(p.PosY, p.FWHMY, y)
	case Shape2DPyramid:
		return pyramid2D(p, x, y)
	case Shape2DCone:
		return cone2D(p, x, y)
	case Shape2DGaussian:
		return gaussian2D(p, x, y)
	case Shape2DLorentz:
		return lorentz2D(p, x, y)
	case Shape2DPseudoVoigt:
		return pseudoVoigt2D(p, x, y)
	case Shape2DLaplace:
		return laplace2D(p, x, y)
	case Shape2DMoffat:
		return moffat2D(p, x, y)
	case Shape2DSmoothStep:
		return smoothStep2D(p, x, y)
	}
	return 0
}

// gaussian2D is the bivariate normal density with correlation rho.
func gaussian2D(p Peak, x, y float64) float64 {
	fx := clampFWHM(p.FWHMX)
	fy := clampFWHM(p.FWHMY)
	rho := clampCorrelation(p.Correlation)

	sx := fx / twoSqrt2Ln2
	sy := fy / twoSqrt2Ln2
	oneMinusRho2 := 1 - rho*rho

	amp := 1.0 / (2.0 * math.Pi * sx * sy * math.Sqrt(oneMinusRho2))
	factor := -1 / (2 * oneMinusRho2)
	u := (x - p.PosX) / sx
	v := (y - p.PosY) / sy
	return amp * math.Exp(factor*(u*u-2*rho*u*v+v*v))
}

// lorentz2D is the symmetric bivariate Cauchy density. There is no
// well-defined covariance form, so only FWHMX is used.
func lorentz2D(p Peak, x, y float64) float64 {
	fwhm := clampFWHM(p.FWHMX)
	gamma := fwhm / 2.0
	dx := x - p.PosX
	dy := y - p.PosY
	return (1 / (2 * math.Pi)) * (gamma / math.Pow(dx*dx+dy*dy+gamma*gamma, 1.5))
}

// pseudoVoigt2D mixes the bivariate Gaussian and Lorentz using the mean of
// the X and Y FWHM for the mixing fraction.
func pseudoVoigt2D(p Peak, x, y float64) float64 {
	fwhm := (clampFWHM(p.FWHMX) + clampFWHM(p.FWHMY)) / 2.0
	eta := PseudoVoigtEta(fwhm, fwhm)
	return (1.0-eta)*gaussian2D(p, x, y) + eta*lorentz2D(p, x, y)
}

// laplace2D approximates the bivariate Laplace with a decaying exponential
// of the Mahalanobis-like distance. The exact form needs a modified Bessel
// function of the second kind.
// https://en.wikipedia.org/wiki/Multivariate_Laplace_distribution
func laplace2D(p Peak, x, y float64) float64 {
	fx := clampFWHM(p.FWHMX)
	fy := clampFWHM(p.FWHMY)
	rho := clampCorrelation(p.Correlation)

	// Standard deviation is sqrt(2) times the scale b.
	sx := math.Sqrt2 * (fx / twoLn2)
	sy := math.Sqrt2 * (fy / twoLn2)
	oneMinusRho2 := 1 - rho*rho

	amp := 1.0 / (math.Pi * sx * sy * math.Sqrt(oneMinusRho2))
	u := (x - p.PosX) / sx
	v := (y - p.PosY) / sy
	q := u*u - 2*rho*u*v + v*v
	return amp * math.Exp(-math.Sqrt((2.0*q)/oneMinusRho2))
}

// pyramid2D is the 2D analogue of triangle. The slope sign on each axis
// depends on the quadrant relative to the truncated center.
func pyramid2D(p Peak, x, y float64) float64 {
	fx := clampFWHM(p.FWHMX)
	fy := clampFWHM(p.FWHMY)

	b := 1.0 / fx
	c := 1.0 / fy
	if x > math.Trunc(p.PosX) {
		b = -b
	}
	if y > math.Trunc(p.PosY) {
		c = -c
	}
	return math.Max(0.0, 1.0+b*(x-p.PosX)+c*(y-p.PosY))
}

// cone2D is an elliptical cone of height FWHMX+FWHMY whose base ellipse has
// semi-axes FWHMX and FWHMY.
func cone2D(p Peak, x, y float64) float64 {
	fx := clampFWHM(p.FWHMX)
	fy := clampFWHM(p.FWHMY)
	peak := fx + fy

	dx := x - p.PosX
	dy := y - p.PosY
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return peak
	}

	// dy/d can round past ±1 when dx is zero.
	theta := math.Asin(math.Max(-1, math.Min(1, dy/d)))
	// Radius of the base ellipse along the same angle.
	r := (fx * fy) / math.Sqrt(math.Pow(fy*math.Cos(theta), 2)+math.Pow(fx*math.Sin(theta), 2))
	return math.Max(0.0, (r-d)*(peak/r))
}

// moffat2D is the circular Moffat profile using FWHMX.
func moffat2D(p Peak, x, y float64) float64 {
	fwhm := clampFWHM(p.FWHMX)
	beta := ZeroCheck(p.P1)
	alpha := moffatAlpha(fwhm, beta)
	alpha2 := alpha * alpha
	dx := x - p.PosX
	dy := y - p.PosY
	return ((beta - 1) / (math.Pi * alpha2)) * math.Pow(1+(dx*dx+dy*dy)/alpha2, -beta)
}

// smoothStep2D averages the X and Y ramps before applying the quintic.
func smoothStep2D(p Peak, x, y float64) float64 {
	fx := clampFWHM(p.FWHMX)
	fy := clampFWHM(p.FWHMY)
	t := (ramp(x, p.PosX, fx) + ramp(y, p.PosY, fy)) / 2.0
	return smoothStep(t)
}
