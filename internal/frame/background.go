// Package frame composites background, peaks and noise into a frame buffer.
package frame

import (
	"fmt"
	"math"
	"strings"
)

// AxisKind selects the background form along one axis.
type AxisKind int

const (
	AxisNone AxisKind = iota
	AxisPolynomial
	AxisExponential
)

var axisKindNames = map[AxisKind]string{
	AxisNone:        "none",
	AxisPolynomial:  "polynomial",
	AxisExponential: "exponential",
}

func (k AxisKind) String() string {
	if n, ok := axisKindNames[k]; ok {
		return n
	}
	return "none"
}

// ParseAxisKind accepts the names returned by String, case insensitive.
func ParseAxisKind(name string) (AxisKind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, n := range axisKindNames {
		if n == key {
			return k, nil
		}
	}
	return AxisNone, fmt.Errorf("unknown background kind %q", name)
}

func (k AxisKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AxisKind) UnmarshalText(text []byte) error {
	v, err := ParseAxisKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Axis is the background along one axis.
//
//	polynomial:  c0 + c1*u + c2*u^2 + c3*u^3
//	exponential: c0 + c1*exp(c2*u)
//
// with u = bin - Shift.
type Axis struct {
	Kind  AxisKind `json:"kind"`
	C0    float64  `json:"c0"`
	C1    float64  `json:"c1"`
	C2    float64  `json:"c2"`
	C3    float64  `json:"c3"`
	Shift float64  `json:"shift"`
}

// Eval returns the background contribution at bin.
func (a Axis) Eval(bin int) float64 {
	u := float64(bin) - a.Shift
	switch a.Kind {
	case AxisPolynomial:
		return a.C0 + a.C1*u + a.C2*u*u + a.C3*u*u*u
	case AxisExponential:
		return a.C0 + a.C1*math.Exp(a.C2*u)
	}
	return 0
}

// Background holds the per-axis forms. Y only applies to 2D frames.
type Background struct {
	X Axis `json:"x"`
	Y Axis `json:"y"`
}

// Eval returns the summed background at (x, y).
func (b Background) Eval(x, y int, twoD bool) float64 {
	v := b.X.Eval(x)
	if twoD {
		v += b.Y.Eval(y)
	}
	return v
}
