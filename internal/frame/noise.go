package frame

import (
	"fmt"
	"math"
	"strings"
)

// NoiseKind selects the unit distribution noise is drawn from: uniform on
// [-1, 1] or the standard normal.
type NoiseKind int

const (
	NoiseNone NoiseKind = iota
	NoiseUniform
	NoiseGaussian
)

var noiseKindNames = map[NoiseKind]string{
	NoiseNone:     "none",
	NoiseUniform:  "uniform",
	NoiseGaussian: "gaussian",
}

func (k NoiseKind) String() string {
	if n, ok := noiseKindNames[k]; ok {
		return n
	}
	return "none"
}

// ParseNoiseKind accepts the names returned by String, case insensitive.
func ParseNoiseKind(name string) (NoiseKind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, n := range noiseKindNames {
		if n == key {
			return k, nil
		}
	}
	return NoiseNone, fmt.Errorf("unknown noise kind %q", name)
}

func (k NoiseKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *NoiseKind) UnmarshalText(text []byte) error {
	v, err := ParseNoiseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Noise describes the per-bin noise added after the peaks.
type Noise struct {
	Kind  NoiseKind `json:"kind"`
	Level float64   `json:"level"`
	Clamp bool      `json:"clamp"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Normalize swaps inverted clamp bounds.
func (n Noise) Normalize() Noise {
	if n.Lower > n.Upper {
		n.Lower, n.Upper = n.Upper, n.Lower
	}
	return n
}

// Sample scales a unit draw by Level and applies the clamp if enabled.
func (n Noise) Sample(draw float64) float64 {
	v := draw * n.Level
	if n.Clamp {
		lo, hi := n.Lower, n.Upper
		if lo > hi {
			lo, hi = hi, lo
		}
		v = math.Max(lo, math.Min(hi, v))
	}
	return v
}
