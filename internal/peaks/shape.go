package peaks

import (
	"fmt"
	"strings"
)

// Shape1D selects the profile used for a peak in a 1D frame.
// The order matches the list presented to users and must not change.
type Shape1D int

const (
	Shape1DNone Shape1D = iota
	Shape1DSquare
	Shape1DTriangle
	Shape1DGaussian
	Shape1DLorentz
	Shape1DPseudoVoigt
	Shape1DLaplace
	Shape1DMoffat
	Shape1DSmoothStep
)

// Shape2D selects the profile used for a peak in a 2D frame.
// The order matches the list presented to users and must not change.
type Shape2D int

const (
	Shape2DNone Shape2D = iota
	Shape2DSquare
	Shape2DPyramid
	Shape2DCone
	Shape2DGaussian
	Shape2DLorentz
	Shape2DPseudoVoigt
	Shape2DLaplace
	Shape2DMoffat
	Shape2DSmoothStep
)

var shape1DNames = map[Shape1D]string{
	Shape1DNone:        "None",
	Shape1DSquare:      "Square",
	Shape1DTriangle:    "Triangle",
	Shape1DGaussian:    "Gaussian",
	Shape1DLorentz:     "Lorentz",
	Shape1DPseudoVoigt: "Pseudo-Voigt",
	Shape1DLaplace:     "Laplace",
	Shape1DMoffat:      "Moffat",
	Shape1DSmoothStep:  "SmoothStep",
}

var shape2DNames = map[Shape2D]string{
	Shape2DNone:        "None",
	Shape2DSquare:      "Square",
	Shape2DPyramid:     "Pyramid",
	Shape2DCone:        "Cone",
	Shape2DGaussian:    "Gaussian",
	Shape2DLorentz:     "Lorentz",
	Shape2DPseudoVoigt: "Pseudo-Voigt",
	Shape2DLaplace:     "Laplace",
	Shape2DMoffat:      "Moffat",
	Shape2DSmoothStep:  "SmoothStep",
}

// String returns the display name. Unknown values report "None" since they
// contribute nothing to a frame.
func (s Shape1D) String() string {
	if name, ok := shape1DNames[s]; ok {
		return name
	}
	return "None"
}

// String returns the display name. Unknown values report "None".
func (s Shape2D) String() string {
	if name, ok := shape2DNames[s]; ok {
		return name
	}
	return "None"
}

// normaliseName folds case and drops separators so "pseudo_voigt",
// "Pseudo-Voigt" and "pseudovoigt" all match.
func normaliseName(name string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

// ParseShape1D maps a display name to its Shape1D.
func ParseShape1D(name string) (Shape1D, error) {
	key := normaliseName(name)
	for s, n := range shape1DNames {
		if normaliseName(n) == key {
			return s, nil
		}
	}
	return Shape1DNone, fmt.Errorf("unknown 1D peak shape %q", name)
}

// ParseShape2D maps a display name to its Shape2D.
func ParseShape2D(name string) (Shape2D, error) {
	key := normaliseName(name)
	for s, n := range shape2DNames {
		if normaliseName(n) == key {
			return s, nil
		}
	}
	return Shape2DNone, fmt.Errorf("unknown 2D peak shape %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape1D) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape1D) UnmarshalText(text []byte) error {
	v, err := ParseShape1D(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape2D) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape2D) UnmarshalText(text []byte) error {
	v, err := ParseShape2D(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Shapes1D lists every 1D shape in display order.
func Shapes1D() []Shape1D {
	return []Shape1D{
		Shape1DNone, Shape1DSquare, Shape1DTriangle, Shape1DGaussian, Shape1DLorentz,
		Shape1DPseudoVoigt, Shape1DLaplace, Shape1DMoffat, Shape1DSmoothStep,
	}
}

// Shapes2D lists every 2D shape in display order.
func Shapes2D() []Shape2D {
	return []Shape2D{
		Shape2DNone, Shape2DSquare, Shape2DPyramid, Shape2DCone, Shape2DGaussian,
		Shape2DLorentz, Shape2DPseudoVoigt, Shape2DLaplace, Shape2DMoffat, Shape2DSmoothStep,
	}
}
