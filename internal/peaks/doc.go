// Package peaks is the kernel library for simulated detector frames.
//
// Responsibilities: evaluating closed-form peak shapes (Gaussian, Lorentz,
// pseudo-Voigt, Laplace, Moffat and a handful of geometric shapes) at a
// single 1D coordinate or 2D coordinate pair, and describing peaks.
// Key types: Peak, Shape1D, Shape2D.
//
// Every kernel is a pure function. FWHM inputs are clamped to at least 1.0
// before use and the correlation coefficient is clamped to [-1, 1], so no
// finite input produces a panic. Values are not normalised to a peak height;
// the frame compositor scales each peak by its value at the center.
package peaks
